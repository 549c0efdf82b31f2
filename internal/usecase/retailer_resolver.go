package usecase

import (
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/pricelens/backend/internal/domain"
)

// RetailerResolver maps a product identifier to one extraction request per
// configured retailer. The table is copied at construction and never mutated.
type RetailerResolver struct {
	retailers []domain.RetailerConfig
	baseline  int
	keys      map[string]bool
}

// NewRetailerResolver validates the retailer table. A malformed table is a
// configuration defect and must stop startup.
func NewRetailerResolver(retailers []domain.RetailerConfig) (*RetailerResolver, error) {
	if len(retailers) == 0 {
		return nil, fmt.Errorf("%w: no retailers configured", domain.ErrInvalidRetailerConfig)
	}

	r := &RetailerResolver{
		retailers: make([]domain.RetailerConfig, 0, len(retailers)),
		baseline:  -1,
		keys:      make(map[string]bool, len(retailers)),
	}

	for i, rc := range retailers {
		if err := validate.Struct(rc); err != nil {
			return nil, fmt.Errorf("%w: retailer %d (%q): %v", domain.ErrInvalidRetailerConfig, i, rc.Key, err)
		}
		if err := rc.Schema.Check(); err != nil {
			return nil, fmt.Errorf("retailer %q: %w", rc.Key, err)
		}
		if r.keys[rc.Key] {
			return nil, fmt.Errorf("%w: duplicate retailer key %q", domain.ErrInvalidRetailerConfig, rc.Key)
		}
		if rc.Baseline {
			if r.baseline >= 0 {
				return nil, fmt.Errorf("%w: more than one baseline retailer", domain.ErrInvalidRetailerConfig)
			}
			r.baseline = i
		}

		r.keys[rc.Key] = true
		rc.Schema = slices.Clone(rc.Schema)
		r.retailers = append(r.retailers, rc)
	}

	if r.baseline < 0 {
		return nil, fmt.Errorf("%w: no baseline retailer", domain.ErrInvalidRetailerConfig)
	}

	return r, nil
}

// NormalizeIdentifier trims the identifier and rejects empty values
func NormalizeIdentifier(identifier string) (string, error) {
	id := strings.TrimSpace(identifier)
	if id == "" {
		return "", domain.ErrInvalidIdentifier
	}
	return id, nil
}

// Resolve builds the extraction requests for identifier, in table order
func (r *RetailerResolver) Resolve(identifier string) []domain.ExtractRequest {
	escaped := url.PathEscape(identifier)
	requests := make([]domain.ExtractRequest, 0, len(r.retailers))
	for _, rc := range r.retailers {
		requests = append(requests, domain.ExtractRequest{
			RetailerKey:    rc.Key,
			URL:            rc.ProductURL(escaped),
			Schema:         rc.Schema,
			GuidancePrompt: rc.GuidancePrompt,
		})
	}
	return requests
}

// Retailers returns a copy of the retailer table
func (r *RetailerResolver) Retailers() []domain.RetailerConfig {
	return slices.Clone(r.retailers)
}

// Baseline returns the baseline retailer
func (r *RetailerResolver) Baseline() domain.RetailerConfig {
	return r.retailers[r.baseline]
}

// Keys returns the retailer keys in table order
func (r *RetailerResolver) Keys() []string {
	keys := make([]string, 0, len(r.retailers))
	for _, rc := range r.retailers {
		keys = append(keys, rc.Key)
	}
	return keys
}

// Has reports whether key is a configured retailer
func (r *RetailerResolver) Has(key string) bool {
	return r.keys[key]
}
