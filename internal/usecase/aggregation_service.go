package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pricelens/backend/internal/domain"
	"github.com/pricelens/backend/internal/metrics"
	"github.com/pricelens/backend/internal/retry"
)

// RetryMode selects the unit the retry policy is applied to
type RetryMode string

const (
	// RetryModeBatch retries the whole fan-out; every retailer is re-issued
	RetryModeBatch RetryMode = "batch"
	// RetryModePerRetailer retries each retailer call on its own and keeps successes
	RetryModePerRetailer RetryMode = "per_retailer"
)

const (
	defaultCallTimeout      = 45 * time.Second
	defaultCacheTTL         = 24 * time.Hour
	defaultBatchConcurrency = 4
	cacheOpTimeout          = 3 * time.Second
)

// AggregationConfig holds aggregation engine settings
type AggregationConfig struct {
	Retry            retry.Policy
	RetryMode        RetryMode
	CallTimeout      time.Duration
	CacheTTL         time.Duration
	Fallback         domain.FallbackDefaults
	BatchConcurrency int
}

// DefaultFallback returns the static record used when nothing better exists
func DefaultFallback() domain.FallbackDefaults {
	return domain.FallbackDefaults{
		ProductName: "Tumbling Mat, Ivory",
		Prices: map[string]float64{
			"maisonette": 207.20,
			"target":     255.99,
			"cbkids":     220.15,
		},
	}
}

// CacheKey is the cache key of the last-known-good record for an identifier
func CacheKey(identifier string) string {
	return "prices:" + identifier
}

// AggregationService fetches one product from every configured retailer and
// merges the results into a PriceRecord
type AggregationService struct {
	resolver  *RetailerResolver
	extractor domain.Extractor
	cache     domain.CacheRepository
	cfg       AggregationConfig
	logger    *zap.Logger

	now      func() time.Time
	newRunID func() string
}

// NewAggregationService creates the aggregation engine. cache may be nil, in
// which case failed runs go straight to the static fallback.
func NewAggregationService(
	resolver *RetailerResolver,
	extractor domain.Extractor,
	cache domain.CacheRepository,
	cfg AggregationConfig,
	logger *zap.Logger,
) *AggregationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Retry.MaxAttempts == 0 {
		onRetry := cfg.Retry.OnRetry
		cfg.Retry = retry.DefaultPolicy()
		cfg.Retry.OnRetry = onRetry
	}
	if cfg.RetryMode == "" {
		cfg.RetryMode = RetryModeBatch
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = defaultCallTimeout
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	if cfg.Fallback.ProductName == "" {
		cfg.Fallback = DefaultFallback()
	}
	if cfg.BatchConcurrency <= 0 {
		cfg.BatchConcurrency = defaultBatchConcurrency
	}

	return &AggregationService{
		resolver:  resolver,
		extractor: extractor,
		cache:     cache,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
		newRunID:  func() string { return uuid.NewString() },
	}
}

// Retailers returns the retailer table the service aggregates over
func (s *AggregationService) Retailers() []domain.RetailerConfig {
	return s.resolver.Retailers()
}

// Aggregate returns one PriceRecord for identifier. The only error is
// ErrInvalidIdentifier; every other failure degrades to a cached or static record.
func (s *AggregationService) Aggregate(ctx context.Context, identifier string) (*domain.PriceRecord, error) {
	id, err := NormalizeIdentifier(identifier)
	if err != nil {
		return nil, err
	}

	runID := s.newRunID()
	log := s.logger.With(zap.String("upc", id), zap.String("run_id", runID))
	start := time.Now()

	extracts, err := s.collect(ctx, s.resolver.Resolve(id), log)
	if err != nil {
		log.Warn("aggregation.failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return s.fallback(ctx, id, runID, log), nil
	}

	record := s.merge(id, runID, extracts)
	s.store(ctx, record, log)

	metrics.AggregationsTotal.WithLabelValues(string(domain.SourceLive)).Inc()
	metrics.LastLiveAggregation.Set(float64(record.LastUpdated.Unix()))
	log.Info("aggregation.live",
		zap.Int("retailers", len(record.Prices)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return record, nil
}

// AggregateMany aggregates several identifiers in parallel with bounded
// concurrency. Order is preserved and invalid identifiers are skipped.
func (s *AggregationService) AggregateMany(ctx context.Context, identifiers []string) []*domain.PriceRecord {
	records := make([]*domain.PriceRecord, len(identifiers))

	var g errgroup.Group
	g.SetLimit(s.cfg.BatchConcurrency)
	for i, identifier := range identifiers {
		g.Go(func() error {
			record, err := s.Aggregate(ctx, identifier)
			if err != nil {
				s.logger.Debug("aggregation.skipped", zap.String("upc", identifier), zap.Error(err))
				return nil
			}
			records[i] = record
			return nil
		})
	}
	_ = g.Wait()

	out := make([]*domain.PriceRecord, 0, len(records))
	for _, r := range records {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

// collect runs one validated extraction per request under the configured retry mode
func (s *AggregationService) collect(ctx context.Context, requests []domain.ExtractRequest, log *zap.Logger) (map[string]*domain.ProductExtract, error) {
	if s.cfg.RetryMode == RetryModePerRetailer {
		return s.fanOut(ctx, requests, func(ctx context.Context, req domain.ExtractRequest) (*domain.ProductExtract, error) {
			return retry.Do(ctx, s.policy(req.RetailerKey, log), func(ctx context.Context) (*domain.ProductExtract, error) {
				return s.fetch(ctx, req)
			})
		})
	}

	return retry.Do(ctx, s.policy(string(RetryModeBatch), log), func(ctx context.Context) (map[string]*domain.ProductExtract, error) {
		return s.fanOut(ctx, requests, s.fetch)
	})
}

// fanOut issues every request concurrently; the first failure cancels the rest
func (s *AggregationService) fanOut(
	ctx context.Context,
	requests []domain.ExtractRequest,
	call func(context.Context, domain.ExtractRequest) (*domain.ProductExtract, error),
) (map[string]*domain.ProductExtract, error) {
	results := make([]*domain.ProductExtract, len(requests))

	g, gctx := errgroup.WithContext(ctx)
	for i, req := range requests {
		g.Go(func() error {
			extract, err := call(gctx, req)
			if err != nil {
				return fmt.Errorf("retailer %s: %w", req.RetailerKey, err)
			}
			results[i] = extract
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]*domain.ProductExtract, len(requests))
	for i, req := range requests {
		out[req.RetailerKey] = results[i]
	}
	return out, nil
}

// fetch performs one bounded extraction call and validates its fields
func (s *AggregationService) fetch(ctx context.Context, req domain.ExtractRequest) (*domain.ProductExtract, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	defer cancel()

	extract, err := ValidateExtract(req.Schema, s.extractor.Extract(callCtx, req))
	if err != nil {
		if errors.Is(err, domain.ErrSchemaValidation) {
			metrics.ValidationFailuresTotal.WithLabelValues(req.RetailerKey).Inc()
		}
		return nil, err
	}
	return extract, nil
}

func (s *AggregationService) policy(scope string, log *zap.Logger) retry.Policy {
	p := s.cfg.Retry
	next := p.OnRetry
	p.OnRetry = func(attempt int, err error, wait time.Duration) {
		metrics.RetriesTotal.WithLabelValues(scope).Inc()
		log.Info("aggregation.retry",
			zap.String("scope", scope),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
		if next != nil {
			next(attempt, err, wait)
		}
	}
	return p
}

func (s *AggregationService) merge(id, runID string, extracts map[string]*domain.ProductExtract) *domain.PriceRecord {
	baseline := s.resolver.Baseline()

	prices := make(map[string]float64, len(extracts))
	for key, e := range extracts {
		prices[key] = e.Price
	}
	baselinePrice := prices[baseline.Key]

	return &domain.PriceRecord{
		ProductName:      extracts[baseline.Key].Title,
		Identifier:       id,
		BaselineRetailer: baseline.Key,
		BaselinePrice:    &baselinePrice,
		Prices:           prices,
		LastUpdated:      s.now().UTC(),
		Source:           domain.SourceLive,
		RunID:            runID,
	}
}

// store saves a live record as the last-known-good. Errors are logged only.
func (s *AggregationService) store(ctx context.Context, record *domain.PriceRecord, log *zap.Logger) {
	if s.cache == nil {
		return
	}
	cacheCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cacheOpTimeout)
	defer cancel()

	if err := s.cache.Set(cacheCtx, CacheKey(record.Identifier), record, s.cfg.CacheTTL); err != nil {
		log.Warn("aggregation.cache_store_failed", zap.Error(err))
	}
}

// fallback returns the last-known-good record when one is cached, otherwise
// the static defaults
func (s *AggregationService) fallback(ctx context.Context, id, runID string, log *zap.Logger) *domain.PriceRecord {
	if record, ok := s.lastKnownGood(ctx, id, log); ok {
		record.Source = domain.SourceCached
		record.RunID = runID
		s.restrictToRetailers(record)

		metrics.AggregationsTotal.WithLabelValues(string(domain.SourceCached)).Inc()
		log.Info("aggregation.fallback", zap.String("source", string(domain.SourceCached)), zap.Time("last_updated", record.LastUpdated))
		return record
	}

	baseline := s.resolver.Baseline()
	record := &domain.PriceRecord{
		ProductName:      s.cfg.Fallback.ProductName,
		Identifier:       id,
		BaselineRetailer: baseline.Key,
		Prices:           make(map[string]float64, len(s.cfg.Fallback.Prices)),
		LastUpdated:      s.now().UTC(),
		Source:           domain.SourceFallback,
		RunID:            runID,
	}
	for key, price := range s.cfg.Fallback.Prices {
		record.Prices[key] = price
	}
	s.restrictToRetailers(record)

	metrics.AggregationsTotal.WithLabelValues(string(domain.SourceFallback)).Inc()
	log.Info("aggregation.fallback", zap.String("source", string(domain.SourceFallback)))
	return record
}

func (s *AggregationService) lastKnownGood(ctx context.Context, id string, log *zap.Logger) (*domain.PriceRecord, bool) {
	if s.cache == nil {
		return nil, false
	}
	cacheCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cacheOpTimeout)
	defer cancel()

	var cached domain.PriceRecord
	if err := s.cache.Get(cacheCtx, CacheKey(id), &cached); err != nil {
		metrics.CacheAccessTotal.WithLabelValues("miss").Inc()
		if !errors.Is(err, domain.ErrCacheMiss) {
			log.Warn("aggregation.cache_lookup_failed", zap.Error(err))
		}
		return nil, false
	}

	metrics.CacheAccessTotal.WithLabelValues("hit").Inc()
	return cached.Clone(), true
}

// restrictToRetailers drops prices for retailers no longer in the table and
// recomputes the baseline price
func (s *AggregationService) restrictToRetailers(record *domain.PriceRecord) {
	for key := range record.Prices {
		if !s.resolver.Has(key) {
			delete(record.Prices, key)
		}
	}

	record.BaselineRetailer = s.resolver.Baseline().Key
	record.BaselinePrice = record.Price(record.BaselineRetailer)
}
