package validate

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/Havoc420didi/didi-amazon-analyst-sub001/internal/model"
	"github.com/Havoc420didi/didi-amazon-analyst-sub001/internal/recompute"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var testDate = time.Date(2025, 7, 27, 0, 0, 0, 0, time.UTC)

func validPoint(asin, region string) model.InventoryPoint {
	mergeType := model.MergeTypeCountry
	if region == model.RegionEU {
		mergeType = model.MergeTypeEU
	}
	p := model.InventoryPoint{
		ASIN:           asin,
		Region:         region,
		DataDate:       testDate,
		FBAAvailable:   10,
		FBAInbound:     5,
		LocalAvailable: 2,
		Sales7Days:     3,
		MergeType:      mergeType,
		StoreCount:     1,
		MergedStores:   model.StoreList{"01 VivaJoy"},
	}
	recompute.Apply(&p)
	return p
}

func hasRule(err error, rule string) bool {
	var verr *Error
	if !errors.As(err, &verr) {
		return false
	}
	for _, v := range verr.Violations {
		if v.Rule == rule {
			return true
		}
	}
	return false
}

func TestValidateAcceptsCleanPoints(t *testing.T) {
	points := []model.InventoryPoint{validPoint("B000000001", model.RegionEU), validPoint("B000000001", "US")}
	report, err := NewValidator(zap.NewNop()).Validate(testDate, points)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(report.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", report.Warnings)
	}
}

func TestValidateHardFailures(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(p *model.InventoryPoint)
		rule   string
	}{
		{"negative counter", func(p *model.InventoryPoint) {
			p.FBAInbound = -1
			p.TotalInventory = p.FBAAvailable - 1 + p.LocalAvailable
		}, "non_negative"},
		{"identity mismatch", func(p *model.InventoryPoint) { p.TotalInventory++ }, "inventory_identity"},
		{"nan ratio", func(p *model.InventoryPoint) { p.AdCTR = math.NaN() }, "finite_non_negative"},
		{"unknown region", func(p *model.InventoryPoint) { p.Region = model.RegionUnknown }, "region"},
		{"blank asin", func(p *model.InventoryPoint) { p.ASIN = "" }, "asin"},
		{"bad asin", func(p *model.InventoryPoint) { p.ASIN = "B00 00001" }, "asin"},
		{"store count", func(p *model.InventoryPoint) { p.StoreCount = 2 }, "store_count"},
		{"empty stores", func(p *model.InventoryPoint) { p.StoreCount = 0; p.MergedStores = nil }, "store_count"},
		{"merge type", func(p *model.InventoryPoint) { p.MergeType = model.MergeTypeEU }, "merge_type"},
		{"average sales", func(p *model.InventoryPoint) { p.AverageSales = 1 }, "average_sales"},
		{"data date", func(p *model.InventoryPoint) { p.DataDate = testDate.AddDate(0, 0, 1) }, "data_date"},
	}
	for _, tc := range cases {
		p := validPoint("B000000001", "US")
		tc.mutate(&p)
		_, err := NewValidator(zap.NewNop()).Validate(testDate, []model.InventoryPoint{p})
		if !hasRule(err, tc.rule) {
			t.Fatalf("%s: expected rule %q, got %v", tc.name, tc.rule, err)
		}
	}
}

func TestValidateDuplicateKey(t *testing.T) {
	points := []model.InventoryPoint{validPoint("B000000001", "US"), validPoint("B000000001", "US")}
	_, err := NewValidator(zap.NewNop()).Validate(testDate, points)
	if !hasRule(err, "unique_key") {
		t.Fatalf("expected unique_key violation, got %v", err)
	}
}

func TestValidateOutliersOnlyWarn(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)

	p := validPoint("B01EU", model.RegionEU)
	p.AdImpressions, p.AdClicks, p.AdSpend = 10, 8, 1000
	recompute.Apply(&p)

	report, err := NewValidator(zap.New(core)).Validate(testDate, []model.InventoryPoint{p})
	if err != nil {
		t.Fatalf("outliers must not fail the date: %v", err)
	}
	rules := map[string]bool{}
	for _, w := range report.Warnings {
		rules[w.Rule] = true
	}
	for _, want := range []string{"asin_length", "outlier_ctr", "outlier_cpc"} {
		if !rules[want] {
			t.Fatalf("missing warning %q in %v", want, report.Warnings)
		}
	}
	if logs.Len() != len(report.Warnings) {
		t.Fatalf("expected one log line per warning, got %d/%d", logs.Len(), len(report.Warnings))
	}
}
