package normalize

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Havoc420didi/didi-amazon-analyst-sub001/internal/model"
	"github.com/Havoc420didi/didi-amazon-analyst-sub001/internal/region"
	"go.uber.org/zap"
)

var (
	ErrMissingASIN   = errors.New("row has no asin")
	ErrMalformedASIN = errors.New("row has a malformed asin")
	ErrUnknownRegion = errors.New("row has no resolvable region")
)

// Vendor keys differ between endpoints and API versions; the first present alias wins.
var (
	keysASIN        = []string{"asin", "asins", "parent_asin"}
	keysSKU         = []string{"seller_sku", "sku", "msku", "local_sku"}
	keysProductName = []string{"local_name", "product_name", "item_name", "title"}
	keysCategory    = []string{"category_name", "category"}
	keysSalesPerson = []string{"principal_names", "sales_person", "principal_realname"}
	keysDevName     = []string{"developer_name", "product_developer", "dev_name"}
	keysProductTag  = []string{"tags", "product_tag", "tag_names"}
	keysShopID      = []string{"sid", "shop_id", "seller_id"}
	keysStoreName   = []string{"seller_name", "store_name", "shop_name"}
	keysMarketplace = []string{"marketplace_id", "marketplace", "country_code", "country"}

	keysFBAAvailable   = []string{"fba_available", "afn_fulfillable_quantity", "available_inventory"}
	keysFBAInbound     = []string{"fba_inbound", "afn_inbound_total", "inbound_quantity"}
	keysFBASellable    = []string{"fba_sellable", "sellable_quantity"}
	keysFBAUnsellable  = []string{"fba_unsellable", "afn_unsellable_quantity"}
	keysLocalAvailable = []string{"local_available", "local_quantity", "warehouse_available"}
	keysInboundShipped = []string{"inbound_shipped", "afn_inbound_shipped_quantity"}

	keysSales7Days        = []string{"sales_7days", "volume_7d", "seven_days_volume"}
	keysTotalSales        = []string{"total_sales", "volume", "units"}
	keysOrderCount        = []string{"order_count", "order_items", "orders"}
	keysPromotionalOrders = []string{"promotional_orders", "promotion_order_items"}
	keysSalesAmount       = []string{"sales_amount", "amount", "sales"}
	keysAveragePrice      = []string{"average_price", "avg_price", "price"}

	keysAdImpressions = []string{"ad_impressions", "impressions"}
	keysAdClicks      = []string{"ad_clicks", "clicks"}
	keysAdSpend       = []string{"ad_spend", "spend", "ad_cost"}
	keysAdOrderCount  = []string{"ad_order_count", "ad_orders", "ad_order_quantity"}
	keysAdSales       = []string{"ad_sales", "ad_sales_amount"}
)

// Stats counts what happened to the rows of one data date.
type Stats struct {
	RowsIn               int `json:"rows_in"`
	Normalized           int `json:"normalized"`
	DroppedShape         int `json:"dropped_shape"`
	DroppedUnknownRegion int `json:"dropped_unknown_region"`
	CoercedValues        int `json:"coerced_values"`
}

type Normalizer struct {
	classifier *region.Classifier
	logger     *zap.Logger
}

func NewNormalizer(classifier *region.Classifier, log *zap.Logger) *Normalizer {
	if log == nil {
		log = zap.NewNop()
	}
	if classifier == nil {
		classifier = region.NewClassifier(log)
	}
	return &Normalizer{classifier: classifier, logger: log}
}

// Normalize turns one raw row into an Observation. The int result is the
// number of non-blank numeric values that had to be coerced to zero.
func (n *Normalizer) Normalize(row map[string]interface{}, dataDate time.Time) (model.Observation, int, error) {
	asin := strings.ToUpper(toText(lookup(row, keysASIN)))
	if asin == "" {
		return model.Observation{}, 0, ErrMissingASIN
	}
	if !model.IsASIN(asin) {
		return model.Observation{}, 0, fmt.Errorf("%w: %q", ErrMalformedASIN, asin)
	}

	obs := model.Observation{
		ASIN:        asin,
		SKU:         toText(lookup(row, keysSKU)),
		ProductName: toText(lookup(row, keysProductName)),
		Category:    toText(lookup(row, keysCategory)),
		SalesPerson: joinText(lookup(row, keysSalesPerson)),
		DevName:     joinText(lookup(row, keysDevName)),
		ProductTag:  joinText(lookup(row, keysProductTag)),
		ShopID:      toText(lookup(row, keysShopID)),
		StoreName:   toText(lookup(row, keysStoreName)),
		DataDate:    dataDate,
	}

	prefix, country, ok := SplitStoreName(obs.StoreName)
	if !ok {
		prefix = obs.StoreName
		country, _ = region.ResolveCountry(toText(lookup(row, keysMarketplace)))
	}
	if prefix == "" {
		prefix = obs.ShopID
	}
	obs.StorePrefix = prefix
	obs.Country = country
	if country == "" {
		obs.Region = n.classifier.Classify(toText(lookup(row, keysMarketplace)))
	} else {
		obs.Region = region.TagForCountry(country)
	}
	if obs.Region == model.RegionUnknown || obs.Region == "" {
		return model.Observation{}, 0, ErrUnknownRegion
	}

	coerced := 0
	count := func(keys []string) int64 {
		v, ok := toCount(lookup(row, keys))
		if !ok {
			coerced++
		}
		return v
	}
	money := func(keys []string) float64 {
		v, ok := toMoney(lookup(row, keys))
		if !ok {
			coerced++
		}
		return v
	}

	obs.FBAAvailable = count(keysFBAAvailable)
	obs.FBAInbound = count(keysFBAInbound)
	obs.FBASellable = count(keysFBASellable)
	obs.FBAUnsellable = count(keysFBAUnsellable)
	obs.LocalAvailable = count(keysLocalAvailable)
	obs.InboundShipped = count(keysInboundShipped)

	obs.Sales7Days = count(keysSales7Days)
	obs.TotalSales = count(keysTotalSales)
	obs.OrderCount = count(keysOrderCount)
	obs.PromotionalOrders = count(keysPromotionalOrders)
	obs.SalesAmount = money(keysSalesAmount)
	obs.AveragePrice = money(keysAveragePrice)

	obs.AdImpressions = count(keysAdImpressions)
	obs.AdClicks = count(keysAdClicks)
	obs.AdSpend = money(keysAdSpend)
	obs.AdOrderCount = count(keysAdOrderCount)
	obs.AdSales = money(keysAdSales)

	return obs, coerced, nil
}

// NormalizeAll normalizes every row, dropping the ones that cannot become observations.
func (n *Normalizer) NormalizeAll(rows []map[string]interface{}, dataDate time.Time) ([]model.Observation, Stats) {
	stats := Stats{RowsIn: len(rows)}
	out := make([]model.Observation, 0, len(rows))
	for i, row := range rows {
		obs, coerced, err := n.Normalize(row, dataDate)
		stats.CoercedValues += coerced
		switch {
		case errors.Is(err, ErrMissingASIN), errors.Is(err, ErrMalformedASIN):
			stats.DroppedShape++
			n.logger.Warn("dropping row", zap.Int("row", i), zap.Error(err))
			continue
		case errors.Is(err, ErrUnknownRegion):
			stats.DroppedUnknownRegion++
			n.logger.Warn("dropping row", zap.Int("row", i), zap.String("store_name", toText(lookup(row, keysStoreName))), zap.Error(err))
			continue
		case err != nil:
			stats.DroppedShape++
			continue
		}
		out = append(out, obs)
	}
	stats.Normalized = len(out)
	if stats.CoercedValues > 0 {
		n.logger.Warn("coerced unparseable numeric values to zero",
			zap.String("data_date", dataDate.Format("2006-01-02")),
			zap.Int("count", stats.CoercedValues),
		)
	}
	return out, stats
}

// SplitStoreName splits "01 VivaJoy-UK" into ("01 VivaJoy", "UK"). ok is false
// when either side is blank or the suffix is not a known country code.
func SplitStoreName(storeName string) (prefix, country string, ok bool) {
	idx := strings.LastIndex(storeName, "-")
	if idx < 0 {
		return "", "", false
	}
	prefix = strings.TrimSpace(storeName[:idx])
	candidate := strings.ToUpper(strings.TrimSpace(storeName[idx+1:]))
	if prefix == "" || candidate == "" {
		return "", "", false
	}
	resolved, known := region.ResolveCountry(candidate)
	if !known || len(candidate) != 2 {
		return "", "", false
	}
	return prefix, resolved, true
}

func lookup(row map[string]interface{}, keys []string) interface{} {
	for _, k := range keys {
		if v, ok := row[k]; ok && v != nil {
			return v
		}
	}
	return nil
}
