package recommend

import (
	"sort"

	"github.com/yishak-cs/shop-recommender/internal/models"
)

// FillFallback picks up to need catalog products that are neither purchased
// nor already selected, most popular first.
//
// Popularity uses SalesCount when the catalog supplies it: products with a
// count rank ahead of those without, higher counts first. Products without a
// count fall back to remaining stock, lowest first, as a proxy for selling
// fast. Remaining ties go to the lower product ID.
func FillFallback(products []models.Product, purchased, selected map[string]struct{}, need int) []models.Product {
	if need <= 0 {
		return []models.Product{}
	}

	seen := make(map[string]struct{}, len(products))
	candidates := make([]models.Product, 0, len(products))
	for _, p := range products {
		if _, dup := seen[p.ID]; dup {
			continue
		}
		seen[p.ID] = struct{}{}
		if _, owned := purchased[p.ID]; owned {
			continue
		}
		if _, taken := selected[p.ID]; taken {
			continue
		}
		candidates = append(candidates, p)
	}

	sort.Slice(candidates, func(i, j int) bool {
		return morePopular(candidates[i], candidates[j])
	})

	if len(candidates) > need {
		candidates = candidates[:need]
	}
	return candidates
}

// morePopular reports whether a ranks ahead of b in the fallback order
func morePopular(a, b models.Product) bool {
	switch {
	case a.SalesCount != nil && b.SalesCount != nil:
		if *a.SalesCount != *b.SalesCount {
			return *a.SalesCount > *b.SalesCount
		}
	case a.SalesCount != nil:
		return true
	case b.SalesCount != nil:
		return false
	default:
		if a.StockQuantity != b.StockQuantity {
			return a.StockQuantity < b.StockQuantity
		}
	}
	return a.ID < b.ID
}

// popularityScore is the value morePopular ranked a product by
func popularityScore(p models.Product) float64 {
	if p.SalesCount != nil {
		return float64(*p.SalesCount)
	}
	return float64(p.StockQuantity)
}
