package domain

import "errors"

var (
	// ErrInvalidIdentifier is returned when a product identifier is empty
	ErrInvalidIdentifier = errors.New("invalid product identifier")

	// ErrExtractionFailed is returned when the extraction backend reports a failure for a retailer
	ErrExtractionFailed = errors.New("extraction failed")

	// ErrSchemaValidation is returned when extracted fields do not match the retailer schema
	ErrSchemaValidation = errors.New("extracted fields failed schema validation")

	// ErrInvalidRetailerConfig is returned when the retailer table is malformed
	ErrInvalidRetailerConfig = errors.New("invalid retailer configuration")

	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrInvalidSortKey is returned when a sort key or direction cannot be parsed
	ErrInvalidSortKey = errors.New("invalid sort key")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrCacheUnavailable is returned when cache service is unavailable
	ErrCacheUnavailable = errors.New("cache service unavailable")
)
