package cache

import (
	"context"
	"fmt"

	"github.com/pricelens/backend/internal/domain"
)

const (
	TypeMemory = "memory"
	TypeRedis  = "redis"
)

// Store is a CacheRepository that owns resources to release on shutdown
type Store interface {
	domain.CacheRepository
	Close() error
}

// New builds the cache selected by cacheType
func New(ctx context.Context, cacheType, redisURL string) (Store, error) {
	switch cacheType {
	case TypeMemory, "":
		return NewMemoryCache(), nil
	case TypeRedis:
		return NewRedisCache(ctx, redisURL)
	default:
		return nil, fmt.Errorf("unknown cache type %q", cacheType)
	}
}
