package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Tracks extraction calls by retailer and outcome.
	ExtractionRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricelens_extraction_requests_total",
			Help: "Total number of extraction backend requests (by retailer and result).",
		},
		[]string{"retailer", "result"}, // result = "ok" | "error"
	)

	// Measures duration of extraction calls.
	ExtractionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pricelens_extraction_duration_seconds",
			Help:    "Duration of extraction backend requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms → ~100s
		},
		[]string{"retailer"},
	)

	// Counts extracted payloads rejected by schema validation.
	ValidationFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricelens_validation_failures_total",
			Help: "Number of extraction results rejected by schema validation.",
		},
		[]string{"retailer"},
	)

	// Counts retry waits taken by the aggregation engine.
	RetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricelens_retries_total",
			Help: "Number of retry backoff waits by scope.",
		},
		[]string{"scope"}, // "batch" or a retailer key
	)

	// Counts aggregation runs by the source of the returned record.
	AggregationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricelens_aggregations_total",
			Help: "Aggregation runs by source of the returned record.",
		},
		[]string{"source"}, // live | cached | fallback
	)

	// Tracks cache hits and misses for last-known-good records.
	CacheAccessTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricelens_cache_access_total",
			Help: "Number of cache hits/misses for last-known-good records.",
		},
		[]string{"result"}, // hit | miss
	)

	// Gauges the last successful live aggregation (seconds since epoch).
	LastLiveAggregation = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pricelens_last_live_aggregation_timestamp",
			Help: "Timestamp (unix seconds) of the last live aggregation.",
		},
	)
)

// ObserveExtraction records one extraction call.
func ObserveExtraction(retailer string, start time.Time, ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	ExtractionRequestsTotal.WithLabelValues(retailer, result).Inc()
	ExtractionDuration.WithLabelValues(retailer).Observe(time.Since(start).Seconds())
}
