package usecase

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/pricelens/backend/internal/domain"
)

// SortField is one of the sortable comparison columns
type SortField string

const (
	SortProductName   SortField = "productName"
	SortIdentifier    SortField = "identifier"
	SortLastUpdated   SortField = "lastUpdated"
	SortBaselinePrice SortField = "baselinePrice"
	SortRetailerPrice SortField = "retailerPrice"
	SortDelta         SortField = "delta"
)

// SortKey selects the sort column. Retailer is set only for the
// per-retailer fields (retailerPrice, delta).
type SortKey struct {
	Field    SortField
	Retailer string
}

func (k SortKey) String() string {
	if k.Retailer != "" {
		return string(k.Field) + ":" + k.Retailer
	}
	return string(k.Field)
}

// Direction is the sort direction
type Direction string

const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

// ParseSortKey parses "productName", "identifier" (alias "upc"),
// "lastUpdated", "baselinePrice", "retailerPrice:<key>" or "delta:<key>".
// An empty string sorts by product name.
func ParseSortKey(s string) (SortKey, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return SortKey{Field: SortProductName}, nil
	}

	field, retailer, hasRetailer := strings.Cut(s, ":")
	switch SortField(field) {
	case SortProductName, SortIdentifier, SortLastUpdated, SortBaselinePrice:
		if hasRetailer {
			return SortKey{}, fmt.Errorf("%w: %q takes no retailer", domain.ErrInvalidSortKey, s)
		}
		return SortKey{Field: SortField(field)}, nil
	case "upc":
		if hasRetailer {
			return SortKey{}, fmt.Errorf("%w: %q takes no retailer", domain.ErrInvalidSortKey, s)
		}
		return SortKey{Field: SortIdentifier}, nil
	case SortRetailerPrice, SortDelta:
		retailer = strings.ToLower(strings.TrimSpace(retailer))
		if retailer == "" {
			return SortKey{}, fmt.Errorf("%w: %q needs a retailer, e.g. %s:target", domain.ErrInvalidSortKey, s, field)
		}
		return SortKey{Field: SortField(field), Retailer: retailer}, nil
	}

	return SortKey{}, fmt.Errorf("%w: %q", domain.ErrInvalidSortKey, s)
}

// ParseDirection parses "asc" or "desc" (case-insensitive). Empty means ascending.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "asc", "ascending":
		return Ascending, nil
	case "desc", "descending":
		return Descending, nil
	}
	return "", fmt.Errorf("%w: direction %q", domain.ErrInvalidSortKey, s)
}

// Delta computes the percentage difference of price against baseline. It is
// undefined when either value is absent or the baseline is zero.
func Delta(price, baseline *float64) (domain.PriceDelta, bool) {
	if price == nil || baseline == nil || *baseline == 0 {
		return domain.PriceDelta{}, false
	}

	exact := (*price - *baseline) / *baseline * 100
	rounded, _ := decimal.NewFromFloat(exact).Round(1).Float64()
	return domain.PriceDelta{Exact: exact, Rounded: rounded}, true
}

// Filter keeps records whose product name contains term, ignoring case.
// A blank term keeps everything. The input slice is not modified.
func Filter(records []*domain.PriceRecord, term string) []*domain.PriceRecord {
	term = strings.TrimSpace(term)
	if term == "" {
		return slices.Clone(records)
	}

	fold := cases.Fold()
	needle := fold.String(term)

	out := make([]*domain.PriceRecord, 0, len(records))
	for _, r := range records {
		if strings.Contains(fold.String(r.ProductName), needle) {
			out = append(out, r)
		}
	}
	return out
}

type sortValue struct {
	present bool
	str     string
	num     float64
	ts      time.Time
}

type keyedRecord struct {
	record *domain.PriceRecord
	value  sortValue
}

// SortBy returns a stably sorted copy of records. Records without a value for
// the key compare equal to each other and come last in both directions.
func SortBy(records []*domain.PriceRecord, key SortKey, dir Direction) []*domain.PriceRecord {
	keyed := make([]keyedRecord, len(records))
	for i, r := range records {
		keyed[i] = keyedRecord{record: r, value: valueOf(r, key)}
	}

	// collators keep per-instance buffers, so each sort gets its own
	var coll *collate.Collator
	switch key.Field {
	case SortIdentifier:
		coll = collate.New(language.English, collate.Numeric)
	case SortProductName:
		coll = collate.New(language.English)
	}

	slices.SortStableFunc(keyed, func(a, b keyedRecord) int {
		switch {
		case !a.value.present && !b.value.present:
			return 0
		case !a.value.present:
			return 1
		case !b.value.present:
			return -1
		}

		var c int
		switch key.Field {
		case SortProductName, SortIdentifier:
			c = coll.CompareString(a.value.str, b.value.str)
		case SortLastUpdated:
			c = a.value.ts.Compare(b.value.ts)
		default:
			c = compareFloat(a.value.num, b.value.num)
		}
		if dir == Descending {
			c = -c
		}
		return c
	})

	out := make([]*domain.PriceRecord, len(keyed))
	for i, k := range keyed {
		out[i] = k.record
	}
	return out
}

func valueOf(r *domain.PriceRecord, key SortKey) sortValue {
	switch key.Field {
	case SortProductName:
		return sortValue{present: r.ProductName != "", str: r.ProductName}
	case SortIdentifier:
		return sortValue{present: r.Identifier != "", str: r.Identifier}
	case SortLastUpdated:
		return sortValue{present: !r.LastUpdated.IsZero(), ts: r.LastUpdated}
	case SortBaselinePrice:
		if r.BaselinePrice == nil {
			return sortValue{}
		}
		return sortValue{present: true, num: *r.BaselinePrice}
	case SortRetailerPrice:
		p := r.Price(key.Retailer)
		if p == nil {
			return sortValue{}
		}
		return sortValue{present: true, num: *p}
	case SortDelta:
		d, ok := Delta(r.Price(key.Retailer), r.BaselinePrice)
		if !ok {
			return sortValue{}
		}
		return sortValue{present: true, num: d.Exact}
	}
	return sortValue{}
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Query describes one comparison view
type Query struct {
	Search    string
	Sort      SortKey
	Direction Direction
}

// ComparisonService renders PriceRecords into comparison rows for the
// configured retailers
type ComparisonService struct {
	retailers []domain.RetailerConfig
	keys      map[string]bool
}

// NewComparisonService creates a comparison service over the retailer table
func NewComparisonService(retailers []domain.RetailerConfig) *ComparisonService {
	keys := make(map[string]bool, len(retailers))
	for _, rc := range retailers {
		keys[rc.Key] = true
	}
	return &ComparisonService{retailers: slices.Clone(retailers), keys: keys}
}

// Retailers returns the retailer columns in display order
func (s *ComparisonService) Retailers() []domain.RetailerConfig {
	return slices.Clone(s.retailers)
}

// ParseQuery parses request parameters into a Query. Per-retailer sort keys
// must name a configured retailer.
func (s *ComparisonService) ParseQuery(search, sortBy, direction string) (Query, error) {
	key, err := ParseSortKey(sortBy)
	if err != nil {
		return Query{}, err
	}
	if key.Retailer != "" && !s.keys[key.Retailer] {
		return Query{}, fmt.Errorf("%w: unknown retailer %q", domain.ErrInvalidSortKey, key.Retailer)
	}
	dir, err := ParseDirection(direction)
	if err != nil {
		return Query{}, err
	}
	return Query{Search: search, Sort: key, Direction: dir}, nil
}

// Compare filters and sorts records, then derives one row per record with a
// cell for every configured retailer
func (s *ComparisonService) Compare(records []*domain.PriceRecord, q Query) []domain.ComparisonRow {
	if q.Sort.Field == "" {
		q.Sort.Field = SortProductName
	}
	sorted := SortBy(Filter(records, q.Search), q.Sort, q.Direction)

	rows := make([]domain.ComparisonRow, 0, len(sorted))
	for _, r := range sorted {
		row := domain.ComparisonRow{
			ProductName:   r.ProductName,
			Identifier:    r.Identifier,
			BaselinePrice: r.BaselinePrice,
			Cells:         make([]domain.RetailerCell, 0, len(s.retailers)),
			LastUpdated:   r.LastUpdated,
			Source:        r.Source,
		}
		for _, rc := range s.retailers {
			cell := domain.RetailerCell{
				Retailer: rc.Key,
				Name:     rc.Name,
				Price:    r.Price(rc.Key),
				Baseline: rc.Key == r.BaselineRetailer,
			}
			if !cell.Baseline {
				if d, ok := Delta(cell.Price, r.BaselinePrice); ok {
					cell.Delta = &d
				}
			}
			row.Cells = append(row.Cells, cell)
		}
		rows = append(rows, row)
	}
	return rows
}
