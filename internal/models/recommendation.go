package models

import "time"

// User represents a shopper
type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role,omitempty"`
}

// Brand represents a product brand
type Brand struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Product represents a catalog entry. BrandID is optional; products without a
// brand carry no similarity signal but can still be recommended.
type Product struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Description   string   `json:"description,omitempty"`
	Price         float64  `json:"price"`
	StockQuantity int      `json:"stock_quantity"`
	BrandID       string   `json:"brand_id,omitempty"`
	Category      string   `json:"category,omitempty"`
	Sizes         []string `json:"sizes,omitempty"`
	ImageURL      string   `json:"image_url,omitempty"`

	// SalesCount is the aggregate number of units sold, when the catalog
	// supplies it. Nil means unknown.
	SalesCount *int `json:"sales_count,omitempty"`
}

// OrderItem is a single line of an order
type OrderItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// Order represents a checkout made by a user
type Order struct {
	ID          string      `json:"id"`
	UserID      string      `json:"user_id"`
	Items       []OrderItem `json:"items"`
	TotalAmount float64     `json:"total_amount,omitempty"`
	CreatedAt   time.Time   `json:"created_at,omitempty"`
}

// Snapshot is the full set of users, orders and products a recommendation is
// computed from
type Snapshot struct {
	Users    []User    `json:"users"`
	Brands   []Brand   `json:"brands,omitempty"`
	Products []Product `json:"products"`
	Orders   []Order   `json:"orders"`
}

// FindUser returns the user with the given ID
func (s *Snapshot) FindUser(userID string) (User, bool) {
	for _, u := range s.Users {
		if u.ID == userID {
			return u, true
		}
	}
	return User{}, false
}

// Neighbor pairs a user with its dissimilarity to a target user
type Neighbor struct {
	UserID   string  `json:"user_id"`
	Distance float64 `json:"distance"`
}

// PoolEntry is a candidate product and the number of neighbor purchase
// events that reference it
type PoolEntry struct {
	ProductID string `json:"product_id"`
	Support   int    `json:"support"`
}

// Recommendation strategies
const (
	StrategyNeighborPool = "NeighborPool"
	StrategyFallback     = "Fallback"
)

// Recommendation represents a recommended product with its score and explanation
type Recommendation struct {
	Product     Product `json:"product"`
	Score       float64 `json:"score"`
	Explanation string  `json:"explanation"`
	Strategy    string  `json:"strategy"`
}
