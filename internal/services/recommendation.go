package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/yishak-cs/shop-recommender/internal/metrics"
	"github.com/yishak-cs/shop-recommender/internal/models"
	"github.com/yishak-cs/shop-recommender/internal/recommend"
)

const tracerName = "github.com/yishak-cs/shop-recommender/internal/services"

// ErrSourceUnavailable is returned while the snapshot source circuit is open
var ErrSourceUnavailable = errors.New("snapshot source unavailable")

// SnapshotSource provides the users, orders and products recommendations
// are computed from
type SnapshotSource interface {
	LoadSnapshot(ctx context.Context) (*models.Snapshot, error)
	Health(ctx context.Context) error
	Name() string
}

// BreakerConfig controls when snapshot loading stops hitting a failing source
type BreakerConfig struct {
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

// DefaultBreakerConfig trips after 5 consecutive failures and retries after 30s
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		OpenTimeout:      30 * time.Second,
	}
}

// RecommendationService handles all recommendation logic
type RecommendationService struct {
	source  SnapshotSource
	engine  *recommend.Engine
	breaker *gobreaker.CircuitBreaker[*models.Snapshot]
	logger  zerolog.Logger
}

// NewRecommendationService creates a new recommendation service
func NewRecommendationService(source SnapshotSource, engine *recommend.Engine, cfg BreakerConfig, logger zerolog.Logger) *RecommendationService {
	logger = logger.With().Str("component", "recommendation_service").Str("source", source.Name()).Logger()
	breakerName := "snapshot_" + source.Name()

	settings := gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		// a caller giving up says nothing about the source either way
		IsExcluded: func(err error) bool {
			return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
	}
	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(float64(gobreaker.StateClosed))

	return &RecommendationService{
		source:  source,
		engine:  engine,
		breaker: gobreaker.NewCircuitBreaker[*models.Snapshot](settings),
		logger:  logger,
	}
}

// GetKNNRecommendations answers: "What did shoppers with the most similar
// brand taste buy that this user has not?"
func (s *RecommendationService) GetKNNRecommendations(ctx context.Context, userID string, k, n int) ([]models.Recommendation, error) {
	ctx, span := s.startSpan(ctx, "recommend.knn", userID,
		attribute.Int("recommend.k", k),
		attribute.Int("recommend.n", n),
	)
	defer span.End()

	start := time.Now()
	defer observeDuration("knn", start)

	snap, err := s.loadSnapshot(ctx)
	if err != nil {
		return nil, s.fail(span, "knn", err)
	}

	recommendations, err := s.engine.Recommend(ctx, userID, snap, k, n)
	if err != nil {
		return nil, s.fail(span, "knn", fmt.Errorf("failed to get recommendations: %w", err))
	}

	pooled := 0
	for _, rec := range recommendations {
		metrics.RecommendedProducts.WithLabelValues(rec.Strategy).Inc()
		if rec.Strategy == models.StrategyNeighborPool {
			pooled++
		}
	}
	span.SetAttributes(
		attribute.Int("recommend.results", len(recommendations)),
		attribute.Int("recommend.pooled", pooled),
	)
	recordOutcome("knn", len(recommendations))

	s.logger.Debug().
		Str("user_id", userID).
		Int("results", len(recommendations)).
		Int("pooled", pooled).
		Dur("took", time.Since(start)).
		Msg("served recommendations")

	return recommendations, nil
}

// GetNeighbors returns the k users whose brand vectors are closest to userID
func (s *RecommendationService) GetNeighbors(ctx context.Context, userID string, k int) ([]models.Neighbor, error) {
	ctx, span := s.startSpan(ctx, "recommend.neighbors", userID, attribute.Int("recommend.k", k))
	defer span.End()
	defer observeDuration("neighbors", time.Now())

	snap, err := s.loadSnapshot(ctx)
	if err != nil {
		return nil, s.fail(span, "neighbors", err)
	}

	neighbors, err := s.engine.Neighbors(ctx, userID, snap, k)
	if err != nil {
		return nil, s.fail(span, "neighbors", fmt.Errorf("failed to get neighbors: %w", err))
	}

	recordOutcome("neighbors", len(neighbors))
	return neighbors, nil
}

// GetBrandVector returns how many times userID bought each brand. An unknown
// user gets an empty vector.
func (s *RecommendationService) GetBrandVector(ctx context.Context, userID string) (recommend.BrandVector, error) {
	ctx, span := s.startSpan(ctx, "recommend.brand_vector", userID)
	defer span.End()
	defer observeDuration("brand_vector", time.Now())

	snap, err := s.loadSnapshot(ctx)
	if err != nil {
		return nil, s.fail(span, "brand_vector", err)
	}

	vectors, err := s.engine.Vectors(ctx, snap)
	if err != nil {
		return nil, s.fail(span, "brand_vector", fmt.Errorf("failed to get brand vector: %w", err))
	}

	// copy so callers cannot touch cached vectors
	vector := make(recommend.BrandVector, len(vectors[userID]))
	for brand, count := range vectors[userID] {
		vector[brand] = count
	}

	recordOutcome("brand_vector", len(vector))
	return vector, nil
}

// Health checks the snapshot source
func (s *RecommendationService) Health(ctx context.Context) error {
	if err := s.source.Health(ctx); err != nil {
		return fmt.Errorf("%s source: %w", s.source.Name(), err)
	}
	return nil
}

// SourceName returns the name of the configured snapshot source
func (s *RecommendationService) SourceName() string {
	return s.source.Name()
}

// loadSnapshot reads a fresh snapshot through the circuit breaker
func (s *RecommendationService) loadSnapshot(ctx context.Context) (*models.Snapshot, error) {
	name := s.source.Name()
	start := time.Now()

	snap, err := s.breaker.Execute(func() (*models.Snapshot, error) {
		return s.source.LoadSnapshot(ctx)
	})
	metrics.SnapshotLoadDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		metrics.SnapshotLoadErrors.WithLabelValues(name, "circuit_open").Inc()
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}
	if err != nil {
		metrics.SnapshotLoadErrors.WithLabelValues(name, "source").Inc()
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	return snap, nil
}

func (s *RecommendationService) startSpan(ctx context.Context, name, userID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs,
		attribute.String("recommend.user_id", userID),
		attribute.String("recommend.source", s.source.Name()),
	)
	return otel.Tracer(tracerName).Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
}

func (s *RecommendationService) fail(span trace.Span, operation string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	metrics.RecommendationRequests.WithLabelValues(operation, "error").Inc()
	s.logger.Error().Err(err).Str("operation", operation).Msg("request failed")
	return err
}

func recordOutcome(operation string, results int) {
	outcome := "ok"
	if results == 0 {
		outcome = "empty"
	}
	metrics.RecommendationRequests.WithLabelValues(operation, outcome).Inc()
}

func observeDuration(operation string, start time.Time) {
	metrics.RecommendationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
