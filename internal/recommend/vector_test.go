package recommend

import (
	"math"
	"testing"

	"github.com/yishak-cs/shop-recommender/internal/models"
)

func order(id, userID string, productIDs ...string) models.Order {
	items := make([]models.OrderItem, len(productIDs))
	for i, pid := range productIDs {
		items[i] = models.OrderItem{ProductID: pid, Quantity: 1}
	}
	return models.Order{ID: id, UserID: userID, Items: items}
}

func users(ids ...string) []models.User {
	out := make([]models.User, len(ids))
	for i, id := range ids {
		out[i] = models.User{ID: id, Name: "user " + id}
	}
	return out
}

func equalVectors(a, b BrandVector) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

func TestBuildVectors(t *testing.T) {
	products := []models.Product{
		{ID: "P1", BrandID: "B1"},
		{ID: "P2", BrandID: "B1"},
		{ID: "P3", BrandID: "B2"},
		{ID: "P4"}, // no brand
	}

	tests := []struct {
		name   string
		users  []models.User
		orders []models.Order
		want   map[string]BrandVector
	}{
		{
			name:   "user without orders gets empty vector",
			users:  users("U1"),
			orders: nil,
			want:   map[string]BrandVector{"U1": {}},
		},
		{
			name:  "counts one per order line across orders",
			users: users("U1", "U2"),
			orders: []models.Order{
				order("o1", "U1", "P1", "P2"),
				order("o2", "U1", "P3"),
				order("o3", "U2", "P2"),
			},
			want: map[string]BrandVector{
				"U1": {"B1": 2, "B2": 1},
				"U2": {"B1": 1},
			},
		},
		{
			name:  "quantity is ignored",
			users: users("U1"),
			orders: []models.Order{
				{ID: "o1", UserID: "U1", Items: []models.OrderItem{{ProductID: "P1", Quantity: 7}}},
			},
			want: map[string]BrandVector{"U1": {"B1": 1}},
		},
		{
			name:  "skips unknown users, unknown products and brandless products",
			users: users("U1"),
			orders: []models.Order{
				order("o1", "ghost", "P1"),
				order("o2", "U1", "missing", "P4", "P3"),
			},
			want: map[string]BrandVector{"U1": {"B2": 1}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildVectors(tt.users, tt.orders, products)
			if len(got) != len(tt.want) {
				t.Fatalf("len(vectors) = %d, want %d", len(got), len(tt.want))
			}
			for userID, want := range tt.want {
				vec, ok := got[userID]
				if !ok {
					t.Fatalf("missing vector for %s", userID)
				}
				if vec == nil {
					t.Errorf("vector for %s is nil, want empty map", userID)
				}
				if !equalVectors(vec, want) {
					t.Errorf("vector[%s] = %v, want %v", userID, vec, want)
				}
			}
		})
	}
}

func TestBuildVectors_Deterministic(t *testing.T) {
	products := []models.Product{{ID: "P1", BrandID: "B1"}, {ID: "P2", BrandID: "B2"}}
	orders := []models.Order{order("o1", "U1", "P1", "P2"), order("o2", "U2", "P2")}

	first := BuildVectors(users("U1", "U2"), orders, products)
	for i := 0; i < 10; i++ {
		again := BuildVectors(users("U1", "U2"), orders, products)
		for userID, vec := range first {
			if !equalVectors(vec, again[userID]) {
				t.Fatalf("run %d: vector[%s] = %v, want %v", i, userID, again[userID], vec)
			}
		}
	}
}

func TestDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b BrandVector
		want float64
	}{
		{"both empty", BrandVector{}, BrandVector{}, 0},
		{"nil and empty", nil, BrandVector{}, 0},
		{"identical", BrandVector{"B1": 2, "B2": 3}, BrandVector{"B1": 2, "B2": 3}, 0},
		{"same brand different count", BrandVector{"B1": 2}, BrandVector{"B1": 1}, 1},
		{"disjoint brands", BrandVector{"B1": 2}, BrandVector{"B2": 1}, math.Sqrt(5)},
		{"one empty", BrandVector{"B1": 3, "B2": 4}, BrandVector{}, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Distance(tt.a, tt.b); math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("Distance(a, b) = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestDistance_Symmetric(t *testing.T) {
	vectors := []BrandVector{
		{},
		{"B1": 1},
		{"B1": 2, "B2": 5},
		{"B2": 1, "B3": 9, "B4": 2},
		{"B1": 100, "B5": 1},
	}

	for i, a := range vectors {
		if d := Distance(a, a); d != 0 {
			t.Errorf("Distance(v%d, v%d) = %f, want 0", i, i, d)
		}
		for j, b := range vectors {
			if Distance(a, b) != Distance(b, a) {
				t.Errorf("Distance(v%d, v%d) = %f but Distance(v%d, v%d) = %f",
					i, j, Distance(a, b), j, i, Distance(b, a))
			}
			if i != j && Distance(a, b) == 0 {
				t.Errorf("Distance(v%d, v%d) = 0 for different vectors", i, j)
			}
		}
	}
}
