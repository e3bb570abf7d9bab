// Package merge consolidates the observations of one data date into
// inventory points, one per (asin, region).
//
// EU observations are merged in two stages: each store prefix contributes a
// single representative observation (its best-stocked storefront), then the
// representatives are combined with local warehouse stock taken as a maximum.
// Non-EU countries combine every observation and sum local stock.
package merge

import (
	"cmp"
	"slices"
	"time"

	"github.com/Havoc420didi/didi-amazon-analyst-sub001/internal/model"
	"github.com/shopspring/decimal"
)

type localRule int

const (
	localSum localRule = iota
	localMax
)

type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

// Merge builds the inventory points for dataDate. Observations without a
// usable region are skipped and counted in the second return value.
func (e *Engine) Merge(dataDate time.Time, observations []model.Observation) ([]model.InventoryPoint, int) {
	skipped := 0
	byASIN := make(map[string][]model.Observation)
	for _, o := range observations {
		if o.Region == "" || o.Region == model.RegionUnknown || o.ASIN == "" {
			skipped++
			continue
		}
		byASIN[o.ASIN] = append(byASIN[o.ASIN], o)
	}

	points := make([]model.InventoryPoint, 0, len(byASIN))
	for asin, obs := range byASIN {
		var euObs []model.Observation
		byCountry := make(map[string][]model.Observation)
		for _, o := range obs {
			if o.Region == model.RegionEU {
				euObs = append(euObs, o)
				continue
			}
			byCountry[o.Region] = append(byCountry[o.Region], o)
		}

		if len(euObs) > 0 {
			points = append(points, mergeEU(asin, dataDate, euObs))
		}
		for country, group := range byCountry {
			points = append(points, mergeCountry(asin, country, dataDate, group))
		}
	}

	slices.SortFunc(points, func(a, b model.InventoryPoint) int {
		if c := cmp.Compare(a.Region, b.Region); c != 0 {
			return c
		}
		return cmp.Compare(a.ASIN, b.ASIN)
	})
	return points, skipped
}

// SelectRepresentatives picks, for every store prefix, the observation with
// the most FBA stock. The result is ordered by store prefix.
func SelectRepresentatives(euObs []model.Observation) []model.Observation {
	byPrefix := make(map[string][]model.Observation)
	for _, o := range euObs {
		byPrefix[o.StorePrefix] = append(byPrefix[o.StorePrefix], o)
	}

	prefixes := make([]string, 0, len(byPrefix))
	for p := range byPrefix {
		prefixes = append(prefixes, p)
	}
	slices.Sort(prefixes)

	reps := make([]model.Observation, 0, len(prefixes))
	for _, p := range prefixes {
		reps = append(reps, best(byPrefix[p]))
	}
	return reps
}

func mergeEU(asin string, dataDate time.Time, euObs []model.Observation) model.InventoryPoint {
	reps := SelectRepresentatives(euObs)

	p := aggregate(reps, localMax)
	p.ASIN = asin
	p.Region = model.RegionEU
	p.DataDate = dataDate
	p.MergeType = model.MergeTypeEU
	p.Store = model.StoreEUAggregate
	p.InventoryPointName = model.PointName(asin, model.RegionEU)
	p.MergedStores = prefixesOf(reps)
	p.StoreCount = len(p.MergedStores)
	applyDisplay(&p, reps)
	return p
}

func mergeCountry(asin, country string, dataDate time.Time, obs []model.Observation) model.InventoryPoint {
	sorted := slices.Clone(obs)
	slices.SortFunc(sorted, compareObservation)

	p := aggregate(sorted, localSum)
	p.ASIN = asin
	p.Region = country
	p.DataDate = dataDate
	p.MergeType = model.MergeTypeCountry
	p.InventoryPointName = model.PointName(asin, country)
	p.MergedStores = prefixesOf(sorted)
	p.StoreCount = len(p.MergedStores)
	if p.StoreCount > 1 {
		p.Store = country + " aggregate"
	} else {
		p.Store = sorted[0].StoreName
		if p.Store == "" {
			p.Store = sorted[0].StorePrefix
		}
	}
	applyDisplay(&p, sorted)
	return p
}

// aggregate combines counters in the order given. Money is summed in decimal
// so the result does not depend on that order.
func aggregate(obs []model.Observation, rule localRule) model.InventoryPoint {
	var p model.InventoryPoint
	salesAmount, adSpend, adSales := decimal.Zero, decimal.Zero, decimal.Zero

	for i, o := range obs {
		p.FBAAvailable += o.FBAAvailable
		p.FBAInbound += o.FBAInbound
		p.FBASellable += o.FBASellable
		p.FBAUnsellable += o.FBAUnsellable
		p.InboundShipped += o.InboundShipped
		switch rule {
		case localMax:
			if i == 0 || o.LocalAvailable > p.LocalAvailable {
				p.LocalAvailable = o.LocalAvailable
			}
		default:
			p.LocalAvailable += o.LocalAvailable
		}

		p.Sales7Days += o.Sales7Days
		p.TotalSales += o.TotalSales
		p.OrderCount += o.OrderCount
		p.PromotionalOrders += o.PromotionalOrders
		salesAmount = salesAmount.Add(decimal.NewFromFloat(o.SalesAmount))

		p.AdImpressions += o.AdImpressions
		p.AdClicks += o.AdClicks
		p.AdOrderCount += o.AdOrderCount
		adSpend = adSpend.Add(decimal.NewFromFloat(o.AdSpend))
		adSales = adSales.Add(decimal.NewFromFloat(o.AdSales))
	}

	p.SalesAmount = salesAmount.Round(2).InexactFloat64()
	p.AdSpend = adSpend.Round(2).InexactFloat64()
	p.AdSales = adSales.Round(2).InexactFloat64()
	p.TotalInventory = p.FBAAvailable + p.FBAInbound + p.LocalAvailable
	return p
}

// applyDisplay copies descriptive fields from the best-stocked observation,
// filling blanks from the others in the order given.
func applyDisplay(p *model.InventoryPoint, obs []model.Observation) {
	lead := best(obs)
	p.ProductName = lead.ProductName
	p.SKU = lead.SKU
	p.Category = lead.Category
	p.SalesPerson = lead.SalesPerson
	p.DevName = lead.DevName
	p.ProductTag = lead.ProductTag
	p.AveragePrice = lead.AveragePrice

	fill := func(dst *string, get func(o *model.Observation) string) {
		if *dst != "" {
			return
		}
		for i := range obs {
			if v := get(&obs[i]); v != "" {
				*dst = v
				return
			}
		}
	}
	fill(&p.ProductName, func(o *model.Observation) string { return o.ProductName })
	fill(&p.SKU, func(o *model.Observation) string { return o.SKU })
	fill(&p.Category, func(o *model.Observation) string { return o.Category })
	fill(&p.SalesPerson, func(o *model.Observation) string { return o.SalesPerson })
	fill(&p.DevName, func(o *model.Observation) string { return o.DevName })
	fill(&p.ProductTag, func(o *model.Observation) string { return o.ProductTag })
}

func prefixesOf(obs []model.Observation) model.StoreList {
	seen := make(map[string]struct{}, len(obs))
	out := make(model.StoreList, 0, len(obs))
	for _, o := range obs {
		if _, ok := seen[o.StorePrefix]; ok {
			continue
		}
		seen[o.StorePrefix] = struct{}{}
		out = append(out, o.StorePrefix)
	}
	slices.Sort(out)
	return out
}

// best returns the observation with the most FBA stock; ties go to higher
// 7-day sales, then the smaller country code, then canonical order.
func best(obs []model.Observation) model.Observation {
	top := obs[0]
	for _, o := range obs[1:] {
		if rank(o, top) < 0 {
			top = o
		}
	}
	return top
}

func rank(a, b model.Observation) int {
	if c := cmp.Compare(b.FBAStock(), a.FBAStock()); c != 0 {
		return c
	}
	if c := cmp.Compare(b.Sales7Days, a.Sales7Days); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Country, b.Country); c != 0 {
		return c
	}
	return compareObservation(a, b)
}

// compareObservation is a total order over every field the engine reads.
func compareObservation(a, b model.Observation) int {
	return cmp.Or(
		cmp.Compare(a.StorePrefix, b.StorePrefix),
		cmp.Compare(a.Country, b.Country),
		cmp.Compare(a.ShopID, b.ShopID),
		cmp.Compare(a.StoreName, b.StoreName),
		cmp.Compare(a.SKU, b.SKU),
		cmp.Compare(a.ProductName, b.ProductName),
		cmp.Compare(a.Category, b.Category),
		cmp.Compare(a.SalesPerson, b.SalesPerson),
		cmp.Compare(a.DevName, b.DevName),
		cmp.Compare(a.ProductTag, b.ProductTag),
		cmp.Compare(a.FBAAvailable, b.FBAAvailable),
		cmp.Compare(a.FBAInbound, b.FBAInbound),
		cmp.Compare(a.FBASellable, b.FBASellable),
		cmp.Compare(a.FBAUnsellable, b.FBAUnsellable),
		cmp.Compare(a.LocalAvailable, b.LocalAvailable),
		cmp.Compare(a.InboundShipped, b.InboundShipped),
		cmp.Compare(a.Sales7Days, b.Sales7Days),
		cmp.Compare(a.TotalSales, b.TotalSales),
		cmp.Compare(a.OrderCount, b.OrderCount),
		cmp.Compare(a.PromotionalOrders, b.PromotionalOrders),
		cmp.Compare(a.SalesAmount, b.SalesAmount),
		cmp.Compare(a.AveragePrice, b.AveragePrice),
		cmp.Compare(a.AdImpressions, b.AdImpressions),
		cmp.Compare(a.AdClicks, b.AdClicks),
		cmp.Compare(a.AdSpend, b.AdSpend),
		cmp.Compare(a.AdOrderCount, b.AdOrderCount),
		cmp.Compare(a.AdSales, b.AdSales),
	)
}
