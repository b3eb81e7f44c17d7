package recommend

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/yishak-cs/shop-recommender/internal/metrics"
	"github.com/yishak-cs/shop-recommender/internal/models"
)

// minOrdersPerWorker keeps small snapshots on the sequential path
const minOrdersPerWorker = 256

// Config holds engine tuning knobs
type Config struct {
	// Workers is the number of goroutines used to build vectors.
	// Values below 2 build sequentially.
	Workers int

	// CacheEntries is the number of snapshots whose vectors are cached.
	// Zero disables the cache.
	CacheEntries int64
}

// Engine runs the nearest-neighbor recommender over snapshots.
// It is safe for concurrent use.
type Engine struct {
	logger  zerolog.Logger
	workers int
	cache   *vectorCache
}

// NewEngine creates a new recommendation engine
func NewEngine(cfg Config, logger zerolog.Logger) (*Engine, error) {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.CacheEntries < 0 {
		return nil, fmt.Errorf("invalid cache size %d", cfg.CacheEntries)
	}

	e := &Engine{
		logger:  logger.With().Str("component", "recommend").Logger(),
		workers: cfg.Workers,
	}

	if cfg.CacheEntries > 0 {
		cache, err := newVectorCache(cfg.CacheEntries)
		if err != nil {
			return nil, err
		}
		e.cache = cache
	}

	return e, nil
}

// Close releases the vector cache
func (e *Engine) Close() {
	if e.cache != nil {
		e.cache.close()
	}
}

// Vectors returns the brand vector of every user in the snapshot. The map may
// be shared with the cache and must not be modified.
func (e *Engine) Vectors(ctx context.Context, snap *models.Snapshot) (map[string]BrandVector, error) {
	if err := Validate(snap); err != nil {
		return nil, err
	}
	return e.vectors(ctx, snap)
}

// Neighbors returns the k users nearest to targetID
func (e *Engine) Neighbors(ctx context.Context, targetID string, snap *models.Snapshot, k int) ([]models.Neighbor, error) {
	if err := Validate(snap); err != nil {
		return nil, err
	}

	vectors, err := e.vectors(ctx, snap)
	if err != nil {
		return nil, err
	}
	return NearestNeighbors(targetID, vectors, clamp(k)), nil
}

// Recommend returns at most n products for targetID, drawn first from what
// its k nearest neighbors bought and then from the catalog. Negative k or n
// are treated as zero. An unknown target yields an empty list.
func (e *Engine) Recommend(ctx context.Context, targetID string, snap *models.Snapshot, k, n int) ([]models.Recommendation, error) {
	if err := Validate(snap); err != nil {
		return nil, err
	}
	k, n = clamp(k), clamp(n)

	logger := e.logger.With().Str("user_id", targetID).Int("k", k).Int("n", n).Logger()

	vectors, err := e.vectors(ctx, snap)
	if err != nil {
		return nil, err
	}

	// 1. Find nearest neighbors
	neighbors := NearestNeighbors(targetID, vectors, k)
	if len(neighbors) == 0 {
		logger.Debug().Msg("no neighbors, returning empty recommendations")
		return []models.Recommendation{}, nil
	}

	// 2. Pool what the neighbors bought
	purchased := PurchasedSet(targetID, snap.Orders)
	pool := AggregatePool(purchased, neighbors, snap.Orders, n)

	catalog := productIndex(snap.Products)
	recommendations := make([]models.Recommendation, 0, n)
	selected := make(map[string]struct{}, n)

	for _, entry := range pool {
		product, ok := catalog[entry.ProductID]
		if !ok {
			logger.Debug().Str("product_id", entry.ProductID).Msg("pooled product missing from catalog, dropping")
			continue
		}
		selected[product.ID] = struct{}{}
		recommendations = append(recommendations, models.Recommendation{
			Product:     product,
			Score:       float64(entry.Support),
			Explanation: fmt.Sprintf("Bought %d times by shoppers with similar brand taste", entry.Support),
			Strategy:    models.StrategyNeighborPool,
		})
	}

	// 3. Pad from the catalog if the pool came up short
	if len(recommendations) < n {
		fill := FillFallback(snap.Products, purchased, selected, n-len(recommendations))
		for _, product := range fill {
			recommendations = append(recommendations, models.Recommendation{
				Product:     product,
				Score:       popularityScore(product),
				Explanation: fallbackExplanation(product),
				Strategy:    models.StrategyFallback,
			})
		}
		logger.Debug().
			Int("pooled", len(selected)).
			Int("fallback", len(fill)).
			Msg("padded recommendations from catalog")
	}

	return recommendations, nil
}

// vectors builds or fetches the snapshot's brand vectors
func (e *Engine) vectors(ctx context.Context, snap *models.Snapshot) (map[string]BrandVector, error) {
	var key uint64
	if e.cache != nil {
		key = snapshotDigest(snap)
		if vectors, ok := e.cache.get(key); ok {
			metrics.VectorCacheHits.Inc()
			return vectors, nil
		}
		metrics.VectorCacheMisses.Inc()
	}

	vectors, stats, err := e.buildVectors(ctx, snap)
	if err != nil {
		return nil, fmt.Errorf("failed to build brand vectors: %w", err)
	}

	if stats.skippedOrders > 0 || stats.skippedItems > 0 {
		e.logger.Debug().
			Int("skipped_orders", stats.skippedOrders).
			Int("skipped_items", stats.skippedItems).
			Msg("ignored orders for unknown users and lines without a branded product")
	}

	if e.cache != nil {
		e.cache.set(key, vectors)
	}
	return vectors, nil
}

// buildVectors splits the order scan across workers when the snapshot is
// large enough. Partial counts are merged by addition, so the result matches
// BuildVectors exactly.
func (e *Engine) buildVectors(ctx context.Context, snap *models.Snapshot) (map[string]BrandVector, accumulateStats, error) {
	vectors := emptyVectors(snap.Users)
	brands := brandIndex(snap.Products)

	workers := e.workers
	if maxWorkers := len(snap.Orders) / minOrdersPerWorker; workers > maxWorkers {
		workers = maxWorkers
	}
	if workers < 2 {
		if err := ctx.Err(); err != nil {
			return nil, accumulateStats{}, err
		}
		stats := accumulate(vectors, snap.Orders, vectors, brands)
		return vectors, stats, nil
	}

	chunkSize := (len(snap.Orders) + workers - 1) / workers
	partials := make([]map[string]BrandVector, workers)
	partialStats := make([]accumulateStats, workers)

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		start := w * chunkSize
		end := min(start+chunkSize, len(snap.Orders))
		if start >= end {
			break
		}

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			partial := make(map[string]BrandVector)
			partialStats[w] = accumulate(partial, snap.Orders[start:end], vectors, brands)
			partials[w] = partial
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, accumulateStats{}, err
	}

	var stats accumulateStats
	for w, partial := range partials {
		stats.add(partialStats[w])
		for userID, counts := range partial {
			vec := vectors[userID]
			for brand, c := range counts {
				vec[brand] += c
			}
		}
	}
	return vectors, stats, nil
}

// productIndex maps product ID to product; the first duplicate wins
func productIndex(products []models.Product) map[string]models.Product {
	index := make(map[string]models.Product, len(products))
	for _, p := range products {
		if _, dup := index[p.ID]; !dup {
			index[p.ID] = p
		}
	}
	return index
}

func fallbackExplanation(p models.Product) string {
	if p.SalesCount != nil {
		return fmt.Sprintf("Popular pick: %d sold", *p.SalesCount)
	}
	return fmt.Sprintf("Selling fast: %d left in stock", p.StockQuantity)
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	return v
}

// defaultEngine backs the package-level Recommend
var defaultEngine = &Engine{logger: zerolog.Nop(), workers: 1}

// Recommend returns at most n products the target user has not bought,
// ranked from the purchases of its k nearest neighbors and padded from the
// catalog. It performs no writes and depends only on its arguments.
func Recommend(target models.User, users []models.User, orders []models.Order, products []models.Product, k, n int) ([]models.Product, error) {
	snap := &models.Snapshot{Users: users, Orders: orders, Products: products}

	recommendations, err := defaultEngine.Recommend(context.Background(), target.ID, snap, k, n)
	if err != nil {
		return nil, err
	}

	result := make([]models.Product, len(recommendations))
	for i, rec := range recommendations {
		result[i] = rec.Product
	}
	return result, nil
}
