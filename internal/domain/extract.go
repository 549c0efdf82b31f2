package domain

import "fmt"

// ExtractResult is the outcome of one extraction call. Exactly one of
// Fields (on success) or ErrorMessage (on failure) is meaningful.
type ExtractResult struct {
	Success      bool
	Fields       map[string]any
	ErrorMessage string
}

// ExtractSucceeded builds a successful result
func ExtractSucceeded(fields map[string]any) ExtractResult {
	if fields == nil {
		fields = map[string]any{}
	}
	return ExtractResult{Success: true, Fields: fields}
}

// ExtractFailed builds a failed result
func ExtractFailed(format string, args ...any) ExtractResult {
	return ExtractResult{ErrorMessage: fmt.Sprintf(format, args...)}
}

// Err returns nil for a successful result and an ErrExtractionFailed wrap otherwise
func (r ExtractResult) Err() error {
	if r.Success {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrExtractionFailed, r.ErrorMessage)
}

// ProductExtract is the validated, typed view of one retailer's extraction
type ProductExtract struct {
	Title      string  `json:"title" validate:"required"`
	Price      float64 `json:"price" validate:"gte=0"`
	Identifier string  `json:"identifier,omitempty"`
}
