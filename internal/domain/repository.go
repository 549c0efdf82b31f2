package domain

import (
	"context"
	"time"
)

// CacheRepository defines the interface for caching operations.
// Values are stored as JSON; Get decodes into dest.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// Extractor turns a retailer page into structured fields using the hosted
// extraction backend. Failures are reported inside the result, never as a panic.
type Extractor interface {
	Extract(ctx context.Context, req ExtractRequest) ExtractResult
}
