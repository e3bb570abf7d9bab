package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

const (
	RegionEU      = "EU"
	RegionUnknown = "UNKNOWN"

	MergeTypeEU      = "eu_merged"
	MergeTypeCountry = "country_merged"

	StoreEUAggregate = "EU aggregate"
)

const (
	StatusOutOfStock       = "out_of_stock"
	StatusLowStock         = "low_stock"
	StatusTurnoverExceeded = "turnover_exceeded"
	StatusHealthy          = "healthy"
)

type InventoryPoint struct {
	ID                 string    `db:"id" json:"id"`
	ASIN               string    `db:"asin" json:"asin"`
	Region             string    `db:"region" json:"region"`
	DataDate           time.Time `db:"data_date" json:"data_date"`
	InventoryPointName string    `db:"inventory_point_name" json:"inventory_point_name"`

	ProductName string `db:"product_name" json:"product_name"`
	SKU         string `db:"sku" json:"sku"`
	Category    string `db:"category" json:"category"`
	SalesPerson string `db:"sales_person" json:"sales_person"`
	DevName     string `db:"dev_name" json:"dev_name"`
	ProductTag  string `db:"product_tag" json:"product_tag"`
	Store       string `db:"store" json:"store"`

	FBAAvailable   int64 `db:"fba_available" json:"fba_available"`
	FBAInbound     int64 `db:"fba_inbound" json:"fba_inbound"`
	FBASellable    int64 `db:"fba_sellable" json:"fba_sellable"`
	FBAUnsellable  int64 `db:"fba_unsellable" json:"fba_unsellable"`
	LocalAvailable int64 `db:"local_available" json:"local_available"`
	InboundShipped int64 `db:"inbound_shipped" json:"inbound_shipped"`
	TotalInventory int64 `db:"total_inventory" json:"total_inventory"`

	Sales7Days        int64   `db:"sales_7days" json:"sales_7days"`
	TotalSales        int64   `db:"total_sales" json:"total_sales"`
	OrderCount        int64   `db:"order_count" json:"order_count"`
	PromotionalOrders int64   `db:"promotional_orders" json:"promotional_orders"`
	SalesAmount       float64 `db:"sales_amount" json:"sales_amount"`
	AveragePrice      float64 `db:"average_price" json:"average_price"`

	AdImpressions int64   `db:"ad_impressions" json:"ad_impressions"`
	AdClicks      int64   `db:"ad_clicks" json:"ad_clicks"`
	AdSpend       float64 `db:"ad_spend" json:"ad_spend"`
	AdOrderCount  int64   `db:"ad_order_count" json:"ad_order_count"`
	AdSales       float64 `db:"ad_sales" json:"ad_sales"`

	AdCTR            float64 `db:"ad_ctr" json:"ad_ctr"`
	AdCVR            float64 `db:"ad_cvr" json:"ad_cvr"`
	AdCPC            float64 `db:"ad_cpc" json:"ad_cpc"`
	AdROAS           float64 `db:"ad_roas" json:"ad_roas"`
	ACOAS            float64 `db:"acoas" json:"acoas"`
	AverageSales     float64 `db:"average_sales" json:"average_sales"`
	DailySalesAmount float64 `db:"daily_sales_amount" json:"daily_sales_amount"`
	TurnoverDays     float64 `db:"turnover_days" json:"turnover_days"`
	InventoryStatus  string  `db:"inventory_status" json:"inventory_status"`
	IsEffectivePoint bool    `db:"is_effective_point" json:"is_effective_point"`

	MergeType    string    `db:"merge_type" json:"merge_type"`
	StoreCount   int       `db:"store_count" json:"store_count"`
	MergedStores StoreList `db:"merged_stores" json:"merged_stores"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// PointName renders the display key of an inventory point.
func PointName(asin, region string) string {
	return asin + "-" + region
}

// StoreList is persisted as a JSON array.
type StoreList []string

func (s StoreList) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(s))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (s *StoreList) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*s = StoreList{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("store list: unsupported type %T", src)
	}
	if len(raw) == 0 {
		*s = StoreList{}
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("store list: invalid json: %w", err)
	}
	*s = out
	return nil
}
