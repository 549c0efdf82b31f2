// Package app wires configuration into the cache, the extraction client and
// the price services shared by the server and the CLI.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/pricelens/backend/config"
	"github.com/pricelens/backend/internal/domain"
	"github.com/pricelens/backend/internal/infrastructure/cache"
	"github.com/pricelens/backend/internal/infrastructure/firecrawl"
	"github.com/pricelens/backend/internal/usecase"
)

// App holds the constructed services
type App struct {
	Aggregator *usecase.AggregationService
	Comparer   *usecase.ComparisonService
	Cache      cache.Store
}

// New builds the application from cfg. A nil extractor uses the Firecrawl client.
func New(ctx context.Context, cfg *config.Config, extractor domain.Extractor, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	resolver, err := usecase.NewRetailerResolver(cfg.Retailers)
	if err != nil {
		return nil, fmt.Errorf("retailer table: %w", err)
	}

	store, err := cache.New(ctx, cfg.Cache.Type, cfg.Cache.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}

	if extractor == nil {
		client := firecrawl.NewClient(cfg.FirecrawlClient(), logger.Named("firecrawl"))
		if cfg.Server.Environment == "development" {
			client.SetDebug(true)
		}
		extractor = client
	}

	logger.Info("app.configured",
		zap.String("cache", cfg.Cache.Type),
		zap.Duration("cache_ttl", cfg.Cache.TTL),
		zap.String("retry_mode", cfg.Retry.Mode),
		zap.Int("retry_attempts", cfg.Retry.MaxAttempts),
		zap.Strings("retailers", resolver.Keys()),
		zap.String("baseline", resolver.Baseline().Key),
	)

	return &App{
		Aggregator: usecase.NewAggregationService(resolver, extractor, store, cfg.Engine(), logger.Named("aggregation")),
		Comparer:   usecase.NewComparisonService(resolver.Retailers()),
		Cache:      store,
	}, nil
}

// Close releases the cache connection
func (a *App) Close() error {
	return a.Cache.Close()
}
