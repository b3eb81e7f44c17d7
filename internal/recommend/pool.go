package recommend

import (
	"sort"

	"github.com/yishak-cs/shop-recommender/internal/models"
)

// PurchasedSet returns the IDs of every product the user has an order line for
func PurchasedSet(userID string, orders []models.Order) map[string]struct{} {
	purchased := make(map[string]struct{})
	for _, order := range orders {
		if order.UserID != userID {
			continue
		}
		for _, item := range order.Items {
			purchased[item.ProductID] = struct{}{}
		}
	}
	return purchased
}

// AggregatePool counts, for every neighbor, each order line of theirs whose
// product is not in purchased. The result is sorted by descending support,
// then ascending product ID, and holds at most n entries.
func AggregatePool(purchased map[string]struct{}, neighbors []models.Neighbor, orders []models.Order, n int) []models.PoolEntry {
	if n <= 0 || len(neighbors) == 0 {
		return []models.PoolEntry{}
	}

	ordersByUser := make(map[string][]models.Order)
	for _, order := range orders {
		ordersByUser[order.UserID] = append(ordersByUser[order.UserID], order)
	}

	support := make(map[string]int)
	for _, nb := range neighbors {
		for _, order := range ordersByUser[nb.UserID] {
			for _, item := range order.Items {
				if _, owned := purchased[item.ProductID]; owned {
					continue
				}
				support[item.ProductID]++
			}
		}
	}

	pool := make([]models.PoolEntry, 0, len(support))
	for productID, count := range support {
		pool = append(pool, models.PoolEntry{ProductID: productID, Support: count})
	}

	sort.Slice(pool, func(i, j int) bool {
		if pool[i].Support != pool[j].Support {
			return pool[i].Support > pool[j].Support
		}
		return pool[i].ProductID < pool[j].ProductID
	})

	if len(pool) > n {
		pool = pool[:n]
	}
	return pool
}
