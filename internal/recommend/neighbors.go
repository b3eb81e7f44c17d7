package recommend

import (
	"sort"

	"github.com/yishak-cs/shop-recommender/internal/models"
)

// NearestNeighbors returns the k users closest to targetID, nearest first.
// Equal distances are ordered by ascending user ID. An unknown target or a
// non-positive k yields an empty list; a k larger than the population returns
// every other user.
func NearestNeighbors(targetID string, vectors map[string]BrandVector, k int) []models.Neighbor {
	target, ok := vectors[targetID]
	if !ok || k <= 0 {
		return []models.Neighbor{}
	}

	neighbors := make([]models.Neighbor, 0, len(vectors))
	for userID, vec := range vectors {
		if userID == targetID {
			continue
		}
		neighbors = append(neighbors, models.Neighbor{
			UserID:   userID,
			Distance: Distance(target, vec),
		})
	}

	sort.Slice(neighbors, func(i, j int) bool {
		if neighbors[i].Distance != neighbors[j].Distance {
			return neighbors[i].Distance < neighbors[j].Distance
		}
		return neighbors[i].UserID < neighbors[j].UserID
	})

	if len(neighbors) > k {
		neighbors = neighbors[:k]
	}
	return neighbors
}
