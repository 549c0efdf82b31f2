package domain

import (
	"maps"
	"time"
)

// RecordSource tells consumers whether a record was freshly derived
type RecordSource string

const (
	// SourceLive is a record validated from a fresh run against every retailer
	SourceLive RecordSource = "live"
	// SourceCached is a last-known-good live record served after a failed run
	SourceCached RecordSource = "cached"
	// SourceFallback is the static default record
	SourceFallback RecordSource = "fallback"
)

// PriceRecord is one product's prices across the configured retailers
type PriceRecord struct {
	ProductName      string             `json:"productName"`
	Identifier       string             `json:"upc"`
	BaselineRetailer string             `json:"baselineRetailer"`
	BaselinePrice    *float64           `json:"baselinePrice,omitempty"`
	Prices           map[string]float64 `json:"prices"`
	LastUpdated      time.Time          `json:"lastUpdated"`
	Source           RecordSource       `json:"source"`
	RunID            string             `json:"runId"`
}

// Price returns the price for a retailer, nil when absent
func (r *PriceRecord) Price(retailerKey string) *float64 {
	p, ok := r.Prices[retailerKey]
	if !ok {
		return nil
	}
	return &p
}

// Clone returns a deep copy of the record
func (r *PriceRecord) Clone() *PriceRecord {
	c := *r
	c.Prices = maps.Clone(r.Prices)
	if c.Prices == nil {
		c.Prices = map[string]float64{}
	}
	if r.BaselinePrice != nil {
		b := *r.BaselinePrice
		c.BaselinePrice = &b
	}
	return &c
}

// FallbackDefaults is the static record substituted when no live or cached data exists
type FallbackDefaults struct {
	ProductName string             `mapstructure:"product_name" json:"productName" validate:"required"`
	Prices      map[string]float64 `mapstructure:"prices" json:"prices" validate:"dive,gte=0"`
}
