package validate

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/Havoc420didi/didi-amazon-analyst-sub001/internal/model"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	asinLength = 10

	maxCTR   = 0.5
	maxCPC   = 100.0
	maxCVR   = 1.0
	maxACOAS = 1.0
)

// Violation is one failed check on one inventory point.
type Violation struct {
	ASIN    string `json:"asin"`
	Region  string `json:"region"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s-%s %s: %s", v.ASIN, v.Region, v.Rule, v.Message)
}

// Error aborts the commit of a data date.
type Error struct {
	DataDate   time.Time
	Violations []Violation
}

func (e *Error) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for i, v := range e.Violations {
		if i == 5 {
			parts = append(parts, fmt.Sprintf("and %d more", len(e.Violations)-5))
			break
		}
		parts = append(parts, v.String())
	}
	return fmt.Sprintf("validation failed for %s: %s", e.DataDate.Format("2006-01-02"), strings.Join(parts, "; "))
}

type Report struct {
	Warnings []Violation
}

type Validator struct {
	logger *zap.Logger
}

func NewValidator(log *zap.Logger) *Validator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Validator{logger: log}
}

// Validate checks recomputed points. Warnings are logged and returned; any
// hard violation is returned as *Error.
func (v *Validator) Validate(dataDate time.Time, points []model.InventoryPoint) (Report, error) {
	var hard []Violation
	var report Report
	seen := make(map[string]struct{}, len(points))

	for i := range points {
		p := &points[i]
		fail := func(rule, format string, args ...interface{}) {
			hard = append(hard, Violation{ASIN: p.ASIN, Region: p.Region, Rule: rule, Message: fmt.Sprintf(format, args...)})
		}
		warn := func(rule, format string, args ...interface{}) {
			report.Warnings = append(report.Warnings, Violation{ASIN: p.ASIN, Region: p.Region, Rule: rule, Message: fmt.Sprintf(format, args...)})
		}

		key := p.ASIN + "|" + p.Region
		if _, dup := seen[key]; dup {
			fail("unique_key", "duplicate (asin, region) for date")
		}
		seen[key] = struct{}{}

		if !p.DataDate.Equal(dataDate) {
			fail("data_date", "point dated %s", p.DataDate.Format("2006-01-02"))
		}

		switch {
		case strings.TrimSpace(p.ASIN) == "":
			fail("asin", "blank asin")
		case !model.IsASIN(p.ASIN):
			fail("asin", "asin %q is not alphanumeric", p.ASIN)
		case len(p.ASIN) != asinLength:
			warn("asin_length", "asin %q has %d characters", p.ASIN, len(p.ASIN))
		}

		if p.Region == "" || p.Region == model.RegionUnknown {
			fail("region", "region %q is not reportable", p.Region)
		}

		for _, c := range []struct {
			name string
			v    int64
		}{
			{"fba_available", p.FBAAvailable}, {"fba_inbound", p.FBAInbound}, {"fba_sellable", p.FBASellable},
			{"fba_unsellable", p.FBAUnsellable}, {"local_available", p.LocalAvailable}, {"inbound_shipped", p.InboundShipped},
			{"total_inventory", p.TotalInventory}, {"sales_7days", p.Sales7Days}, {"total_sales", p.TotalSales},
			{"order_count", p.OrderCount}, {"promotional_orders", p.PromotionalOrders}, {"ad_impressions", p.AdImpressions},
			{"ad_clicks", p.AdClicks}, {"ad_order_count", p.AdOrderCount},
		} {
			if c.v < 0 {
				fail("non_negative", "%s is %d", c.name, c.v)
			}
		}
		for _, f := range []struct {
			name string
			v    float64
		}{
			{"sales_amount", p.SalesAmount}, {"average_price", p.AveragePrice}, {"ad_spend", p.AdSpend}, {"ad_sales", p.AdSales},
			{"ad_ctr", p.AdCTR}, {"ad_cvr", p.AdCVR}, {"ad_cpc", p.AdCPC}, {"ad_roas", p.AdROAS}, {"acoas", p.ACOAS},
			{"average_sales", p.AverageSales}, {"daily_sales_amount", p.DailySalesAmount}, {"turnover_days", p.TurnoverDays},
		} {
			if math.IsNaN(f.v) || math.IsInf(f.v, 0) || f.v < 0 {
				fail("finite_non_negative", "%s is %v", f.name, f.v)
			}
		}

		if p.TotalInventory != p.FBAAvailable+p.FBAInbound+p.LocalAvailable {
			fail("inventory_identity", "total %d != %d + %d + %d", p.TotalInventory, p.FBAAvailable, p.FBAInbound, p.LocalAvailable)
		}
		if p.StoreCount < 1 || p.StoreCount != len(p.MergedStores) {
			fail("store_count", "store_count %d with %d merged stores", p.StoreCount, len(p.MergedStores))
		}

		wantType := model.MergeTypeCountry
		if p.Region == model.RegionEU {
			wantType = model.MergeTypeEU
		}
		if p.MergeType != wantType {
			fail("merge_type", "%q for region %s", p.MergeType, p.Region)
		}

		wantAvg := decimal.NewFromFloat(float64(p.Sales7Days) / 7).Round(4).InexactFloat64()
		if p.AverageSales != wantAvg {
			fail("average_sales", "%v != sales_7days/7 (%v)", p.AverageSales, wantAvg)
		}

		if p.AdCTR > maxCTR {
			warn("outlier_ctr", "ctr %.4f", p.AdCTR)
		}
		if p.AdCPC > maxCPC {
			warn("outlier_cpc", "cpc %.2f", p.AdCPC)
		}
		if p.AdCVR > maxCVR {
			warn("outlier_cvr", "cvr %.4f", p.AdCVR)
		}
		if p.ACOAS > maxACOAS {
			warn("outlier_acoas", "acoas %.4f", p.ACOAS)
		}
	}

	for _, w := range report.Warnings {
		v.logger.Warn("inventory point warning",
			zap.String("data_date", dataDate.Format("2006-01-02")),
			zap.String("asin", w.ASIN),
			zap.String("region", w.Region),
			zap.String("rule", w.Rule),
			zap.String("detail", w.Message),
		)
	}

	if len(hard) > 0 {
		return report, &Error{DataDate: dataDate, Violations: hard}
	}
	return report, nil
}
