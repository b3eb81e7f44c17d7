package recommend

import (
	"testing"

	"github.com/yishak-cs/shop-recommender/internal/models"
)

func TestPurchasedSet(t *testing.T) {
	orders := []models.Order{
		order("o1", "U1", "P1", "P2"),
		order("o2", "U1", "P2", "P5"),
		order("o3", "U2", "P3"),
	}

	got := PurchasedSet("U1", orders)
	want := []string{"P1", "P2", "P5"}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d (%v)", len(got), len(want), got)
	}
	for _, id := range want {
		if _, ok := got[id]; !ok {
			t.Errorf("missing %s", id)
		}
	}

	if empty := PurchasedSet("nobody", orders); len(empty) != 0 {
		t.Errorf("PurchasedSet(nobody) = %v, want empty", empty)
	}
}

func TestAggregatePool(t *testing.T) {
	orders := []models.Order{
		order("o1", "U1", "P1"),
		order("o2", "U2", "P1", "P2", "P3"),
		order("o3", "U2", "P2"),
		order("o4", "U3", "P2", "P4", "P3"),
		order("o5", "U4", "P9"), // not a neighbor
	}
	neighbors := []models.Neighbor{{UserID: "U2", Distance: 1}, {UserID: "U3", Distance: 2}}
	purchased := PurchasedSet("U1", orders)

	tests := []struct {
		name string
		n    int
		want []models.PoolEntry
	}{
		{
			name: "ranks by support then product id",
			n:    10,
			want: []models.PoolEntry{
				{ProductID: "P2", Support: 3},
				{ProductID: "P3", Support: 2},
				{ProductID: "P4", Support: 1},
			},
		},
		{
			name: "caps at n",
			n:    2,
			want: []models.PoolEntry{
				{ProductID: "P2", Support: 3},
				{ProductID: "P3", Support: 2},
			},
		},
		{
			name: "n zero",
			n:    0,
			want: []models.PoolEntry{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AggregatePool(purchased, neighbors, orders, tt.n)
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d (%v)", len(got), len(tt.want), got)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("pool[%d] = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestAggregatePool_NeverIncludesOwnedProducts(t *testing.T) {
	orders := []models.Order{
		order("o1", "U1", "P1", "P2"),
		order("o2", "U2", "P1", "P2", "P1"),
	}
	neighbors := []models.Neighbor{{UserID: "U2"}}

	got := AggregatePool(PurchasedSet("U1", orders), neighbors, orders, 5)
	if len(got) != 0 {
		t.Errorf("pool = %v, want empty", got)
	}
}

func TestAggregatePool_MonotonicSupport(t *testing.T) {
	// P-more is bought by two neighbors, P-less by one
	orders := []models.Order{
		order("o1", "U2", "P-less", "P-more"),
		order("o2", "U3", "P-more"),
	}
	neighbors := []models.Neighbor{{UserID: "U2"}, {UserID: "U3"}}

	got := AggregatePool(map[string]struct{}{}, neighbors, orders, 5)
	if len(got) != 2 || got[0].ProductID != "P-more" {
		t.Errorf("pool = %v, want P-more ranked first", got)
	}
}
