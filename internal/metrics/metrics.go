package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus collectors for the recommender:
// - Request outcomes and latency
// - Neighbor pool vs fallback usage
// - Vector cache efficiency
// - Snapshot source health

var (
	// Recommendation Metrics
	RecommendationRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommend_requests_total",
			Help: "Total number of recommendation requests by outcome",
		},
		[]string{"operation", "outcome"}, // outcome: "ok", "empty", "error"
	)

	RecommendationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recommend_duration_seconds",
			Help:    "Duration of recommendation computations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	RecommendedProducts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommend_products_total",
			Help: "Total number of products returned, by strategy",
		},
		[]string{"strategy"}, // "NeighborPool", "Fallback"
	)

	// Vector Cache Metrics
	VectorCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recommend_vector_cache_hits_total",
			Help: "Total number of brand vector cache hits",
		},
	)

	VectorCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recommend_vector_cache_misses_total",
			Help: "Total number of brand vector cache misses",
		},
	)

	// Snapshot Source Metrics
	SnapshotLoadDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "snapshot_load_duration_seconds",
			Help:    "Duration of snapshot loads in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	SnapshotLoadErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snapshot_load_errors_total",
			Help: "Total number of failed snapshot loads",
		},
		[]string{"source", "error_type"}, // error_type: "source", "circuit_open"
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)
)
