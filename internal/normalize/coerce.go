package normalize

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// toNumber coerces a raw value to a finite, non-negative number. The bool is
// false when a non-blank value could not be parsed.
func toNumber(v interface{}) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case nil:
		return 0, true
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case int32:
		f = float64(x)
	case json.Number:
		d, err := decimal.NewFromString(x.String())
		if err != nil {
			return 0, false
		}
		f = d.InexactFloat64()
	case string:
		if strings.TrimSpace(x) == "" {
			return 0, true
		}
		d, ok := parseAmount(x)
		if !ok {
			return 0, false
		}
		f = d.InexactFloat64()
	case []interface{}:
		if len(x) == 0 {
			return 0, true
		}
		return toNumber(x[0])
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0, true
	}
	return f, true
}

func toCount(v interface{}) (int64, bool) {
	f, ok := toNumber(v)
	return int64(math.Round(f)), ok
}

func toMoney(v interface{}) (float64, bool) {
	f, ok := toNumber(v)
	return decimal.NewFromFloat(f).Round(2).InexactFloat64(), ok
}

// parseAmount reads strings like "12", "US$1,234.50", "€5,99" or "1.234,56 EUR".
func parseAmount(s string) (decimal.Decimal, bool) {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' || r == '-' {
			b.WriteRune(r)
		}
	}
	clean := b.String()
	if clean == "" {
		return decimal.Zero, false
	}

	lastDot := strings.LastIndex(clean, ".")
	lastComma := strings.LastIndex(clean, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			clean = strings.ReplaceAll(clean, ".", "")
			clean = strings.Replace(clean, ",", ".", 1)
		} else {
			clean = strings.ReplaceAll(clean, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(clean, ",") == 1 && len(clean)-lastComma-1 != 3 {
			clean = strings.Replace(clean, ",", ".", 1)
		} else {
			clean = strings.ReplaceAll(clean, ",", "")
		}
	case lastDot >= 0:
		if strings.Count(clean, ".") > 1 {
			clean = strings.ReplaceAll(clean, ".", "")
		}
	}

	d, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// toText returns the first non-blank string in v.
func toText(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case []interface{}:
		for _, item := range x {
			if s := toText(item); s != "" {
				return s
			}
		}
		return ""
	case []string:
		for _, item := range x {
			if s := strings.TrimSpace(item); s != "" {
				return s
			}
		}
		return ""
	default:
		return ""
	}
}

// joinText joins every non-blank element of a list value.
func joinText(v interface{}) string {
	var parts []string
	switch x := v.(type) {
	case []interface{}:
		for _, item := range x {
			if s := toText(item); s != "" {
				parts = append(parts, s)
			}
		}
	case []string:
		for _, item := range x {
			if s := strings.TrimSpace(item); s != "" {
				parts = append(parts, s)
			}
		}
	default:
		return toText(v)
	}
	return strings.Join(parts, ", ")
}
