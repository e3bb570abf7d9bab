package recompute

import (
	"github.com/Havoc420didi/didi-amazon-analyst-sub001/internal/model"
	"github.com/shopspring/decimal"
)

const (
	// TurnoverSentinel marks stock that is not selling at all.
	TurnoverSentinel = 999.0

	LowStockDays         = 45.0
	TurnoverExceededDays = 100.0
	EffectiveDailySales  = 16.7

	salesWindowDays = 7

	ratioPlaces = 4
	moneyPlaces = 2
)

// Apply recomputes every derived metric of p from its merged absolutes.
func Apply(p *model.InventoryPoint) {
	p.TotalInventory = p.FBAAvailable + p.FBAInbound + p.LocalAvailable

	avgSales := div(float64(p.Sales7Days), salesWindowDays)
	daily := div(p.SalesAmount, salesWindowDays)

	p.AverageSales = round(avgSales, ratioPlaces)
	p.DailySalesAmount = round(daily, moneyPlaces)

	p.AdCTR = round(div(float64(p.AdClicks), float64(p.AdImpressions)), ratioPlaces)
	p.AdCVR = round(div(float64(p.AdOrderCount), float64(p.AdClicks)), ratioPlaces)
	p.AdCPC = round(div(p.AdSpend, float64(p.AdClicks)), ratioPlaces)
	p.AdROAS = round(div(p.AdSales, p.AdSpend), ratioPlaces)
	p.ACOAS = round(div(p.AdSpend, daily*salesWindowDays), ratioPlaces)

	if p.TotalSales > 0 {
		p.AveragePrice = round(p.SalesAmount/float64(p.TotalSales), moneyPlaces)
	}

	p.TurnoverDays = TurnoverDays(p.TotalInventory, p.Sales7Days)
	p.InventoryStatus = Classify(p.TotalInventory, p.TurnoverDays)
	p.IsEffectivePoint = p.DailySalesAmount >= EffectiveDailySales
}

// ApplyAll recomputes a batch in place.
func ApplyAll(points []model.InventoryPoint) {
	for i := range points {
		Apply(&points[i])
	}
}

// TurnoverDays is total inventory over average daily sales. Stock with no
// sales reports the sentinel; no stock and no sales reports zero.
func TurnoverDays(totalInventory, sales7Days int64) float64 {
	if sales7Days <= 0 {
		if totalInventory > 0 {
			return TurnoverSentinel
		}
		return 0
	}
	return round(float64(totalInventory)*salesWindowDays/float64(sales7Days), moneyPlaces)
}

// Classify applies the inventory status rules in priority order.
func Classify(totalInventory int64, turnoverDays float64) string {
	switch {
	case totalInventory <= 0:
		return model.StatusOutOfStock
	case turnoverDays < LowStockDays:
		return model.StatusLowStock
	case turnoverDays > TurnoverExceededDays:
		return model.StatusTurnoverExceeded
	default:
		return model.StatusHealthy
	}
}

func div(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}

func round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}
