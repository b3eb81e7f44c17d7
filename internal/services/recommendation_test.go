package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/yishak-cs/shop-recommender/internal/metrics"
	"github.com/yishak-cs/shop-recommender/internal/models"
	"github.com/yishak-cs/shop-recommender/internal/recommend"
)

type fakeSource struct {
	name  string
	snap  *models.Snapshot
	err   error
	loads int
}

func (f *fakeSource) LoadSnapshot(ctx context.Context) (*models.Snapshot, error) {
	f.loads++
	if f.err != nil {
		return nil, f.err
	}
	return f.snap, nil
}

func (f *fakeSource) Health(ctx context.Context) error { return f.err }

func (f *fakeSource) Name() string { return f.name }

func intPtr(v int) *int { return &v }

// U1 and U2 share a Nike purchase; U2 also bought an Adidas item U1 lacks.
func shopSnapshot() *models.Snapshot {
	return &models.Snapshot{
		Users: []models.User{{ID: "U1"}, {ID: "U2"}, {ID: "U3"}},
		Products: []models.Product{
			{ID: "P1", BrandID: "nike", StockQuantity: 10},
			{ID: "P2", BrandID: "nike", StockQuantity: 4},
			{ID: "P3", BrandID: "adidas", StockQuantity: 7},
			{ID: "P4", BrandID: "puma", StockQuantity: 2, SalesCount: intPtr(30)},
		},
		Orders: []models.Order{
			{ID: "O1", UserID: "U1", Items: []models.OrderItem{{ProductID: "P1", Quantity: 1}}},
			{ID: "O2", UserID: "U2", Items: []models.OrderItem{{ProductID: "P2", Quantity: 1}, {ProductID: "P3", Quantity: 1}}},
			{ID: "O3", UserID: "U3", Items: []models.OrderItem{{ProductID: "P4", Quantity: 1}}},
		},
	}
}

func newTestService(t *testing.T, source *fakeSource, cfg BreakerConfig) *RecommendationService {
	t.Helper()
	engine, err := recommend.NewEngine(recommend.Config{}, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(engine.Close)
	return NewRecommendationService(source, engine, cfg, zerolog.Nop())
}

func TestGetKNNRecommendations(t *testing.T) {
	source := &fakeSource{name: "knn_test", snap: shopSnapshot()}
	svc := newTestService(t, source, DefaultBreakerConfig())

	pooledBefore := testutil.ToFloat64(metrics.RecommendedProducts.WithLabelValues(models.StrategyNeighborPool))

	recs, err := svc.GetKNNRecommendations(context.Background(), "U1", 1, 3)
	if err != nil {
		t.Fatalf("GetKNNRecommendations() error = %v", err)
	}

	var got []string
	for _, r := range recs {
		got = append(got, r.Product.ID)
	}
	// pooled P2, P3 from U2, then P4 by sales count
	want := []string{"P2", "P3", "P4"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
	if recs[2].Strategy != models.StrategyFallback || recs[2].Score != 30 {
		t.Errorf("fallback rec = %+v", recs[2])
	}

	pooledAfter := testutil.ToFloat64(metrics.RecommendedProducts.WithLabelValues(models.StrategyNeighborPool))
	if pooledAfter-pooledBefore != 2 {
		t.Errorf("pooled metric delta = %v, want 2", pooledAfter-pooledBefore)
	}
	if source.loads != 1 {
		t.Errorf("loads = %d, want 1", source.loads)
	}
}

func TestGetKNNRecommendations_UnknownUser(t *testing.T) {
	svc := newTestService(t, &fakeSource{name: "unknown_test", snap: shopSnapshot()}, DefaultBreakerConfig())

	recs, err := svc.GetKNNRecommendations(context.Background(), "nobody", 3, 5)
	if err != nil {
		t.Fatalf("GetKNNRecommendations() error = %v", err)
	}
	if recs == nil || len(recs) != 0 {
		t.Errorf("got %v, want empty non-nil slice", recs)
	}
}

func TestGetKNNRecommendations_MalformedSnapshot(t *testing.T) {
	snap := shopSnapshot()
	snap.Orders = append(snap.Orders, models.Order{ID: "orphan"})
	svc := newTestService(t, &fakeSource{name: "malformed_test", snap: snap}, DefaultBreakerConfig())

	_, err := svc.GetKNNRecommendations(context.Background(), "U1", 3, 5)
	if !errors.Is(err, recommend.ErrMissingOrderOwner) {
		t.Fatalf("error = %v, want ErrMissingOrderOwner", err)
	}
}

func TestGetNeighborsAndBrandVector(t *testing.T) {
	svc := newTestService(t, &fakeSource{name: "inspect_test", snap: shopSnapshot()}, DefaultBreakerConfig())
	ctx := context.Background()

	neighbors, err := svc.GetNeighbors(ctx, "U1", 5)
	if err != nil {
		t.Fatalf("GetNeighbors() error = %v", err)
	}
	if len(neighbors) != 2 || neighbors[0].UserID != "U2" || neighbors[0].Distance != 1 {
		t.Errorf("neighbors = %+v", neighbors)
	}

	vector, err := svc.GetBrandVector(ctx, "U2")
	if err != nil {
		t.Fatalf("GetBrandVector() error = %v", err)
	}
	if len(vector) != 2 || vector["nike"] != 1 || vector["adidas"] != 1 {
		t.Errorf("vector = %v", vector)
	}

	// the returned vector is a copy
	vector["nike"] = 99
	again, err := svc.GetBrandVector(ctx, "U2")
	if err != nil {
		t.Fatal(err)
	}
	if again["nike"] != 1 {
		t.Errorf("vector mutated through returned map: %v", again)
	}

	empty, err := svc.GetBrandVector(ctx, "nobody")
	if err != nil || len(empty) != 0 {
		t.Errorf("GetBrandVector(unknown) = %v, %v", empty, err)
	}
}

func TestCircuitBreakerOpens(t *testing.T) {
	boom := errors.New("neo4j down")
	source := &fakeSource{name: "breaker_test", err: boom}
	svc := newTestService(t, source, BreakerConfig{FailureThreshold: 2, OpenTimeout: time.Minute})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := svc.GetKNNRecommendations(ctx, "U1", 3, 5); !errors.Is(err, boom) {
			t.Fatalf("call %d error = %v, want %v", i, err, boom)
		}
	}

	openBefore := testutil.ToFloat64(metrics.SnapshotLoadErrors.WithLabelValues("breaker_test", "circuit_open"))

	_, err := svc.GetKNNRecommendations(ctx, "U1", 3, 5)
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Fatalf("error = %v, want ErrSourceUnavailable", err)
	}
	if source.loads != 2 {
		t.Errorf("source loaded %d times, want 2", source.loads)
	}

	if delta := testutil.ToFloat64(metrics.SnapshotLoadErrors.WithLabelValues("breaker_test", "circuit_open")) - openBefore; delta != 1 {
		t.Errorf("circuit_open errors delta = %v, want 1", delta)
	}
	if state := testutil.ToFloat64(metrics.CircuitBreakerState.WithLabelValues("snapshot_breaker_test")); state != 2 {
		t.Errorf("breaker state gauge = %v, want 2 (open)", state)
	}
}

func TestCircuitBreaker_IgnoresAbandonedLoads(t *testing.T) {
	boom := errors.New("neo4j down")
	source := &fakeSource{name: "abandoned_test"}
	svc := newTestService(t, source, BreakerConfig{FailureThreshold: 2, OpenTimeout: time.Minute})
	ctx := context.Background()

	steps := []error{boom, context.Canceled, context.DeadlineExceeded, boom}
	for i, stepErr := range steps {
		source.err = stepErr
		if _, err := svc.GetKNNRecommendations(ctx, "U1", 3, 5); !errors.Is(err, stepErr) {
			t.Fatalf("step %d error = %v, want %v", i, err, stepErr)
		}
	}

	// two real failures in a row despite the abandoned loads between them
	source.err = nil
	source.snap = shopSnapshot()
	if _, err := svc.GetKNNRecommendations(ctx, "U1", 3, 5); !errors.Is(err, ErrSourceUnavailable) {
		t.Fatalf("error = %v, want ErrSourceUnavailable", err)
	}
	if source.loads != len(steps) {
		t.Errorf("source loaded %d times, want %d", source.loads, len(steps))
	}
}

func TestCircuitBreaker_AbandonedLoadsDoNotTrip(t *testing.T) {
	source := &fakeSource{name: "cancel_only_test", err: context.Canceled}
	svc := newTestService(t, source, BreakerConfig{FailureThreshold: 1, OpenTimeout: time.Minute})

	for i := 0; i < 3; i++ {
		if _, err := svc.GetKNNRecommendations(context.Background(), "U1", 3, 5); !errors.Is(err, context.Canceled) {
			t.Fatalf("call %d error = %v, want context.Canceled", i, err)
		}
	}
	if source.loads != 3 {
		t.Errorf("source loaded %d times, want 3", source.loads)
	}
}

func TestHealth(t *testing.T) {
	ok := newTestService(t, &fakeSource{name: "health_ok"}, DefaultBreakerConfig())
	if err := ok.Health(context.Background()); err != nil {
		t.Errorf("Health() error = %v", err)
	}

	boom := errors.New("unreachable")
	bad := newTestService(t, &fakeSource{name: "health_bad", err: boom}, DefaultBreakerConfig())
	if err := bad.Health(context.Background()); !errors.Is(err, boom) {
		t.Errorf("Health() error = %v, want %v", err, boom)
	}
	if bad.SourceName() != "health_bad" {
		t.Errorf("SourceName() = %q", bad.SourceName())
	}
}
