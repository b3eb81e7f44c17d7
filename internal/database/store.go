package database

import (
	"context"
	"fmt"
	"time"

	"github.com/yishak-cs/shop-recommender/internal/models"
)

// Querier runs read queries; Neo4jClient satisfies it
type Querier interface {
	ExecuteRead(ctx context.Context, query string, params map[string]any) ([]map[string]any, error)
	Health(ctx context.Context) error
}

// Neo4jStore loads recommendation snapshots from the shop graph:
//
//	(:User)-[:PLACED]->(:Order)-[:CONTAINS {quantity, line}]->(:Product)-[:MADE_BY]->(:Brand)
type Neo4jStore struct {
	client Querier
}

// NewNeo4jStore creates a new graph-backed snapshot store
func NewNeo4jStore(client Querier) *Neo4jStore {
	return &Neo4jStore{client: client}
}

// Name identifies the store in logs and metrics
func (s *Neo4jStore) Name() string {
	return "neo4j"
}

// Health checks the underlying database
func (s *Neo4jStore) Health(ctx context.Context) error {
	return s.client.Health(ctx)
}

const (
	usersQuery = `
		MATCH (u:User)
		RETURN u.id AS id, u.name AS name, u.role AS role
		ORDER BY id
	`

	brandsQuery = `
		MATCH (b:Brand)
		RETURN b.id AS id, b.name AS name, b.description AS description
		ORDER BY id
	`

	productsQuery = `
		MATCH (p:Product)
		OPTIONAL MATCH (p)-[:MADE_BY]->(b:Brand)
		RETURN p.id AS id,
			   p.name AS name,
			   p.description AS description,
			   p.price AS price,
			   p.stock_quantity AS stock_quantity,
			   b.id AS brand_id,
			   p.category AS category,
			   p.image_url AS image_url,
			   p.sales_count AS sales_count
		ORDER BY id
	`

	// Lines are ordered by their position in the original order. Products
	// bought twice in one order keep both lines.
	ordersQuery = `
		MATCH (u:User)-[:PLACED]->(o:Order)
		OPTIONAL MATCH (o)-[c:CONTAINS]->(p:Product)
		WITH u, o, c, p
		ORDER BY o.id, c.line
		RETURN o.id AS id,
			   u.id AS user_id,
			   o.total_amount AS total_amount,
			   o.created_at AS created_at,
			   collect(CASE WHEN p IS NULL THEN NULL
			                ELSE {product_id: p.id, quantity: c.quantity} END) AS items
		ORDER BY id
	`
)

// LoadSnapshot reads every user, brand, product and order
func (s *Neo4jStore) LoadSnapshot(ctx context.Context) (*models.Snapshot, error) {
	snap := &models.Snapshot{}

	userRows, err := s.client.ExecuteRead(ctx, usersQuery, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load users: %w", err)
	}
	for _, row := range userRows {
		snap.Users = append(snap.Users, models.User{
			ID:   asString(row["id"]),
			Name: asString(row["name"]),
			Role: asString(row["role"]),
		})
	}

	brandRows, err := s.client.ExecuteRead(ctx, brandsQuery, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load brands: %w", err)
	}
	for _, row := range brandRows {
		snap.Brands = append(snap.Brands, models.Brand{
			ID:          asString(row["id"]),
			Name:        asString(row["name"]),
			Description: asString(row["description"]),
		})
	}

	productRows, err := s.client.ExecuteRead(ctx, productsQuery, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load products: %w", err)
	}
	for _, row := range productRows {
		snap.Products = append(snap.Products, rowToProduct(row))
	}

	orderRows, err := s.client.ExecuteRead(ctx, ordersQuery, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load orders: %w", err)
	}
	for _, row := range orderRows {
		snap.Orders = append(snap.Orders, rowToOrder(row))
	}

	return snap, nil
}

func rowToProduct(row map[string]any) models.Product {
	product := models.Product{
		ID:            asString(row["id"]),
		Name:          asString(row["name"]),
		Description:   asString(row["description"]),
		Price:         asFloat(row["price"]),
		StockQuantity: asInt(row["stock_quantity"]),
		BrandID:       asString(row["brand_id"]),
		Category:      asString(row["category"]),
		ImageURL:      asString(row["image_url"]),
	}
	if row["sales_count"] != nil {
		sales := asInt(row["sales_count"])
		product.SalesCount = &sales
	}
	return product
}

func rowToOrder(row map[string]any) models.Order {
	order := models.Order{
		ID:          asString(row["id"]),
		UserID:      asString(row["user_id"]),
		TotalAmount: asFloat(row["total_amount"]),
		Items:       []models.OrderItem{},
	}
	if t, ok := row["created_at"].(time.Time); ok {
		order.CreatedAt = t
	}

	items, _ := row["items"].([]any)
	for _, raw := range items {
		item, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		order.Items = append(order.Items, models.OrderItem{
			ProductID: asString(item["product_id"]),
			Quantity:  asInt(item["quantity"]),
		})
	}
	return order
}

// asString returns v as a string; nulls become ""
func asString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case int64:
		return fmt.Sprintf("%d", val)
	case nil:
		return ""
	default:
		return fmt.Sprint(val)
	}
}

func asInt(v any) int {
	switch val := v.(type) {
	case int64:
		return int(val)
	case int:
		return val
	case float64:
		return int(val)
	default:
		return 0
	}
}

func asFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int64:
		return float64(val)
	case int:
		return float64(val)
	default:
		return 0
	}
}
