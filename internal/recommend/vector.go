// Package recommend implements the brand-similarity nearest-neighbor
// recommender.
//
// A user is described by a sparse vector counting how many order lines they
// bought from each brand. For a target user the engine picks the k users whose
// vectors are closest in Euclidean distance, pools the products those users
// bought (minus anything the target already owns), ranks them by how often
// they were bought, and pads the list from the catalog when the pool is short.
//
// Every call recomputes from the snapshot it is given; nothing is persisted.
package recommend

import (
	"math"

	"github.com/yishak-cs/shop-recommender/internal/models"
)

// BrandVector maps a brand ID to the number of order lines bought from that
// brand. Absent brands are implicitly zero.
type BrandVector map[string]int

// BuildVectors produces one BrandVector per known user. Users without orders
// get an empty vector. Orders owned by unknown users, lines for unknown
// products and products without a brand contribute nothing.
func BuildVectors(users []models.User, orders []models.Order, products []models.Product) map[string]BrandVector {
	vectors := emptyVectors(users)
	accumulate(vectors, orders, vectors, brandIndex(products))
	return vectors
}

// emptyVectors initializes an empty vector for every user
func emptyVectors(users []models.User) map[string]BrandVector {
	vectors := make(map[string]BrandVector, len(users))
	for _, u := range users {
		vectors[u.ID] = BrandVector{}
	}
	return vectors
}

// brandIndex maps product ID to brand ID for products that carry a brand.
// The first occurrence of a duplicated product ID wins.
func brandIndex(products []models.Product) map[string]string {
	brands := make(map[string]string, len(products))
	seen := make(map[string]struct{}, len(products))
	for _, p := range products {
		if _, dup := seen[p.ID]; dup {
			continue
		}
		seen[p.ID] = struct{}{}
		if p.BrandID != "" {
			brands[p.ID] = p.BrandID
		}
	}
	return brands
}

// accumulateStats counts the records accumulate ignored
type accumulateStats struct {
	skippedOrders int
	skippedItems  int
}

func (s *accumulateStats) add(o accumulateStats) {
	s.skippedOrders += o.skippedOrders
	s.skippedItems += o.skippedItems
}

// accumulate adds one count per order line into dst. known decides which
// owners are valid and is only read, so it may be shared between goroutines
// as long as dst is not.
func accumulate(dst map[string]BrandVector, orders []models.Order, known map[string]BrandVector, brands map[string]string) accumulateStats {
	var stats accumulateStats
	for _, order := range orders {
		if _, ok := known[order.UserID]; !ok {
			stats.skippedOrders++
			continue
		}

		vec := dst[order.UserID]
		for _, item := range order.Items {
			brand, ok := brands[item.ProductID]
			if !ok {
				stats.skippedItems++
				continue
			}
			if vec == nil {
				vec = BrandVector{}
				dst[order.UserID] = vec
			}
			vec[brand]++
		}
	}
	return stats
}

// Distance returns the Euclidean distance between two brand vectors over the
// union of their brands. It is symmetric and zero only for identical vectors.
func Distance(a, b BrandVector) float64 {
	// Integer sum keeps the result independent of map iteration order.
	var sumOfSquares int64
	for brand, va := range a {
		d := int64(va - b[brand])
		sumOfSquares += d * d
	}
	for brand, vb := range b {
		if _, ok := a[brand]; ok {
			continue
		}
		d := int64(vb)
		sumOfSquares += d * d
	}
	return math.Sqrt(float64(sumOfSquares))
}
