package domain

import "time"

// PriceDelta is the percentage difference of a retailer price against the baseline
type PriceDelta struct {
	Exact   float64 `json:"exact"`
	Rounded float64 `json:"rounded"` // one decimal place, for display
}

// RetailerCell is one retailer column of a comparison row
type RetailerCell struct {
	Retailer string      `json:"retailer"`
	Name     string      `json:"name"`
	Price    *float64    `json:"price,omitempty"`
	Delta    *PriceDelta `json:"delta,omitempty"`
	Baseline bool        `json:"baseline,omitempty"`
}

// ComparisonRow is a presentation-ready view of a PriceRecord
type ComparisonRow struct {
	ProductName   string         `json:"productName"`
	Identifier    string         `json:"upc"`
	BaselinePrice *float64       `json:"baselinePrice,omitempty"`
	Cells         []RetailerCell `json:"cells"`
	LastUpdated   time.Time      `json:"lastUpdated"`
	Source        RecordSource   `json:"source"`
}
