package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Executor runs Cypher against the shop graph; Neo4jClient satisfies it
type Executor interface {
	Querier
	ExecuteWrite(ctx context.Context, query string, params map[string]any) error
	ExecuteWriteWithResult(ctx context.Context, query string, params map[string]any) ([]map[string]any, error)
}

// CSVImporter seeds the shop graph from CSV files served under <baseURL>/data/
type CSVImporter struct {
	client Executor
	logger zerolog.Logger
}

// NewCSVImporter creates a new CSV importer
func NewCSVImporter(client Executor, logger zerolog.Logger) *CSVImporter {
	return &CSVImporter{
		client: client,
		logger: logger.With().Str("component", "csv_importer").Logger(),
	}
}

type importStep struct {
	name  string
	file  string
	query string
}

// Import order matters: brands before products, orders before their lines.
var importSteps = []importStep{
	{
		name: "users",
		file: "users.csv",
		query: `
			LOAD CSV WITH HEADERS FROM $csvURL AS row
			WITH row WHERE row.user_id IS NOT NULL
			MERGE (u:User {id: row.user_id})
			SET u.name = row.name,
				u.role = coalesce(row.role, 'customer')
			RETURN count(u) AS imported
		`,
	},
	{
		name: "brands",
		file: "brands.csv",
		query: `
			LOAD CSV WITH HEADERS FROM $csvURL AS row
			WITH row WHERE row.brand_id IS NOT NULL
			MERGE (b:Brand {id: row.brand_id})
			SET b.name = row.name,
				b.description = row.description
			RETURN count(b) AS imported
		`,
	},
	{
		name: "products",
		file: "products.csv",
		query: `
			LOAD CSV WITH HEADERS FROM $csvURL AS row
			WITH row WHERE row.product_id IS NOT NULL
			MERGE (p:Product {id: row.product_id})
			SET p.name = row.name,
				p.description = row.description,
				p.price = toFloat(row.price),
				p.stock_quantity = toInteger(row.stock_quantity),
				p.category = row.category,
				p.image_url = row.image_url
			WITH p, row
			OPTIONAL MATCH (b:Brand {id: row.brand_id})
			FOREACH (_ IN CASE WHEN b IS NULL THEN [] ELSE [1] END |
				MERGE (p)-[:MADE_BY]->(b))
			RETURN count(p) AS imported
		`,
	},
	{
		name: "orders",
		file: "orders.csv",
		query: `
			LOAD CSV WITH HEADERS FROM $csvURL AS row
			WITH row WHERE row.order_id IS NOT NULL AND row.user_id IS NOT NULL
			MERGE (o:Order {id: row.order_id})
			SET o.total_amount = toFloat(row.total_amount),
				o.created_at = datetime(row.created_at)
			WITH o, row
			MATCH (u:User {id: row.user_id})
			MERGE (u)-[:PLACED]->(o)
			RETURN count(o) AS imported
		`,
	},
	{
		name: "order_items",
		file: "order_items.csv",
		query: `
			LOAD CSV WITH HEADERS FROM $csvURL AS row
			WITH row WHERE row.order_id IS NOT NULL AND row.product_id IS NOT NULL
			MATCH (o:Order {id: row.order_id})
			MATCH (p:Product {id: row.product_id})
			CREATE (o)-[c:CONTAINS {
				quantity: coalesce(toInteger(row.quantity), 1),
				line: toInteger(row.line)
			}]->(p)
			RETURN count(c) AS imported
		`,
	},
}

// ImportAllData clears the graph and imports all CSV files in dependency order
func (i *CSVImporter) ImportAllData(ctx context.Context, baseURL string) error {
	i.logger.Info().Str("base_url", baseURL).Msg("starting CSV import")

	if err := i.clearDatabase(ctx); err != nil {
		return fmt.Errorf("failed to clear database: %w", err)
	}

	for _, step := range importSteps {
		if err := i.importFile(ctx, baseURL, step); err != nil {
			return fmt.Errorf("failed to import %s: %w", step.name, err)
		}
	}

	if err := i.BuildRelationships(ctx); err != nil {
		return fmt.Errorf("failed to build relationships: %w", err)
	}

	i.logger.Info().Msg("CSV import completed")
	return nil
}

func (i *CSVImporter) importFile(ctx context.Context, baseURL string, step importStep) error {
	params := map[string]any{
		"csvURL": csvURL(baseURL, step.file),
	}

	results, err := i.client.ExecuteWriteWithResult(ctx, step.query, params)
	if err != nil {
		return err
	}

	imported := 0
	if len(results) > 0 {
		imported = asInt(results[0]["imported"])
	}
	i.logger.Info().Str("step", step.name).Int("imported", imported).Msg("imported CSV file")
	return nil
}

func csvURL(baseURL, file string) string {
	return fmt.Sprintf("%s/data/%s", strings.TrimSuffix(baseURL, "/"), file)
}

// BuildRelationships derives per-product sales counts from order lines.
// Products that never sold get 0 so the fallback ranks them on real data.
func (i *CSVImporter) BuildRelationships(ctx context.Context) error {
	query := `
		MATCH (p:Product)
		OPTIONAL MATCH (:Order)-[c:CONTAINS]->(p)
		WITH p, coalesce(sum(c.quantity), 0) AS sold
		SET p.sales_count = sold
		RETURN count(p) AS updated
	`

	results, err := i.client.ExecuteWriteWithResult(ctx, query, nil)
	if err != nil {
		return err
	}

	if len(results) > 0 {
		i.logger.Info().Int("products", asInt(results[0]["updated"])).Msg("updated sales counts")
	}
	return nil
}

// clearDatabase removes all existing data
func (i *CSVImporter) clearDatabase(ctx context.Context) error {
	i.logger.Info().Msg("clearing existing database")
	return i.client.ExecuteWrite(ctx, "MATCH (n) DETACH DELETE n", nil)
}

// GetImportStatus returns node and relationship counts for the shop graph
func (i *CSVImporter) GetImportStatus(ctx context.Context) (map[string]int, error) {
	query := `
		CALL { MATCH (u:User) RETURN count(u) AS users }
		CALL { MATCH (b:Brand) RETURN count(b) AS brands }
		CALL { MATCH (p:Product) RETURN count(p) AS products }
		CALL { MATCH (o:Order) RETURN count(o) AS orders }
		CALL { MATCH ()-[c:CONTAINS]->() RETURN count(c) AS order_lines }
		RETURN users, brands, products, orders, order_lines
	`

	results, err := i.client.ExecuteRead(ctx, query, nil)
	if err != nil {
		return nil, err
	}

	keys := []string{"users", "brands", "products", "orders", "order_lines"}
	status := make(map[string]int, len(keys))
	for _, key := range keys {
		status[key] = 0
		if len(results) > 0 {
			status[key] = asInt(results[0][key])
		}
	}
	return status, nil
}
