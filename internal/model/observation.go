package model

import "time"

// Observation is one normalized product-shop row for a single data date.
type Observation struct {
	ASIN        string
	SKU         string
	ProductName string
	Category    string
	SalesPerson string
	DevName     string
	ProductTag  string

	ShopID      string
	StoreName   string
	StorePrefix string
	Country     string
	Region      string
	DataDate    time.Time

	FBAAvailable   int64
	FBAInbound     int64
	FBASellable    int64
	FBAUnsellable  int64
	LocalAvailable int64
	InboundShipped int64

	Sales7Days        int64
	TotalSales        int64
	OrderCount        int64
	PromotionalOrders int64
	SalesAmount       float64
	AveragePrice      float64

	AdImpressions int64
	AdClicks      int64
	AdSpend       float64
	AdOrderCount  int64
	AdSales       float64
}

// FBAStock is the quantity used to rank observations of one shop.
func (o *Observation) FBAStock() int64 {
	return o.FBAAvailable + o.FBAInbound
}

// IsASIN reports whether s is a non-empty ASCII alphanumeric product key.
func IsASIN(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !(r >= 'A' && r <= 'Z') && !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}
