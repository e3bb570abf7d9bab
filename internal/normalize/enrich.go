package normalize

import (
	"cmp"
	"strings"

	"github.com/Havoc420didi/didi-amazon-analyst-sub001/internal/model"
)

var (
	keysWarehouseSKU = []string{"sku", "local_sku", "seller_sku"}
	keysWarehouseQty = []string{"product_valid_num", "available", "quantity", "local_available"}
)

type fbaKey struct {
	shopID string
	asin   string
}

type fbaStock struct {
	available, inbound, sellable, unsellable, shipped int64
}

// FBASnapshot indexes the FBA inventory listing by (shop id, asin).
type FBASnapshot map[fbaKey]fbaStock

func NewFBASnapshot(rows []map[string]interface{}) FBASnapshot {
	snap := make(FBASnapshot, len(rows))
	for _, row := range rows {
		asin := strings.ToUpper(toText(lookup(row, keysASIN)))
		shopID := toText(lookup(row, keysShopID))
		if asin == "" || shopID == "" {
			continue
		}
		k := fbaKey{shopID: shopID, asin: asin}
		s := snap[k]
		s.available += countOf(row, keysFBAAvailable)
		s.inbound += countOf(row, keysFBAInbound)
		s.sellable += countOf(row, keysFBASellable)
		s.unsellable += countOf(row, keysFBAUnsellable)
		s.shipped += countOf(row, keysInboundShipped)
		snap[k] = s
	}
	return snap
}

// Apply overwrites the FBA counters of observations found in the snapshot
// and returns how many were updated.
func (s FBASnapshot) Apply(obs []model.Observation) int {
	updated := 0
	for i := range obs {
		stock, ok := s[fbaKey{shopID: obs[i].ShopID, asin: obs[i].ASIN}]
		if !ok {
			continue
		}
		obs[i].FBAAvailable = stock.available
		obs[i].FBAInbound = stock.inbound
		obs[i].FBASellable = stock.sellable
		obs[i].FBAUnsellable = stock.unsellable
		obs[i].InboundShipped = stock.shipped
		updated++
	}
	return updated
}

// WarehouseStock is the local warehouse quantity per sku.
type WarehouseStock map[string]int64

func NewWarehouseStock(rows []map[string]interface{}) WarehouseStock {
	stock := make(WarehouseStock, len(rows))
	for _, row := range rows {
		sku := toText(lookup(row, keysWarehouseSKU))
		if sku == "" {
			continue
		}
		stock[sku] += countOf(row, keysWarehouseQty)
	}
	return stock
}

// Apply assigns each sku's warehouse quantity to exactly one observation, the
// one with the most FBA stock, so merged totals count the stock once. Skus
// whose analytics rows already report local stock are left alone.
func (w WarehouseStock) Apply(obs []model.Observation) int {
	holder := make(map[string]int)
	reported := make(map[string]bool)
	for i := range obs {
		sku := obs[i].SKU
		if sku == "" {
			continue
		}
		if obs[i].LocalAvailable != 0 {
			reported[sku] = true
			continue
		}
		if j, ok := holder[sku]; !ok || holderOrder(obs[i], obs[j]) < 0 {
			holder[sku] = i
		}
	}

	updated := 0
	for sku, i := range holder {
		if reported[sku] {
			continue
		}
		if qty := w[sku]; qty > 0 {
			obs[i].LocalAvailable = qty
			updated++
		}
	}
	return updated
}

func holderOrder(a, b model.Observation) int {
	return cmp.Or(
		cmp.Compare(b.FBAStock(), a.FBAStock()),
		cmp.Compare(b.Sales7Days, a.Sales7Days),
		cmp.Compare(a.Country, b.Country),
		cmp.Compare(a.StorePrefix, b.StorePrefix),
		cmp.Compare(a.ShopID, b.ShopID),
		cmp.Compare(a.ASIN, b.ASIN),
	)
}

func countOf(row map[string]interface{}, keys []string) int64 {
	v, _ := toCount(lookup(row, keys))
	return v
}
