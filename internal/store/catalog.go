package store

import (
	"context"
	"fmt"

	"github.com/withindevelopment-activate/within-the-app-sub000/internal/dependency"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/entity"
)

type catalogStore struct {
	*MYSQLStore
}

// Catalog returns an object implementing the Catalog interface.
func (ms *MYSQLStore) Catalog() dependency.Catalog {
	return &catalogStore{
		MYSQLStore: ms,
	}
}

type positioned struct {
	Key      string `db:"k"`
	Position int    `db:"position"`
	Value    string `db:"v"`
}

// LoadCatalog returns the full catalog with variation lists already decoded.
func (ms *catalogStore) LoadCatalog(ctx context.Context) (*entity.Catalog, error) {
	c := &entity.Catalog{}

	canonical, err := QueryListNamed[entity.CanonicalProduct](ctx, ms.db,
		`SELECT sku, name, ad_name FROM canonical_product ORDER BY sku`, nil)
	if err != nil {
		return nil, fmt.Errorf("can't get canonical products: %w", err)
	}
	variations, err := QueryListNamed[positioned](ctx, ms.db,
		`SELECT product_sku AS k, position, variation_sku AS v FROM canonical_variation ORDER BY product_sku, position`, nil)
	if err != nil {
		return nil, fmt.Errorf("can't get canonical variations: %w", err)
	}
	byProduct := map[string][]string{}
	for _, v := range variations {
		byProduct[v.Key] = append(byProduct[v.Key], v.Value)
	}
	for i := range canonical {
		canonical[i].Variations = byProduct[canonical[i].SKU]
	}
	c.Canonical = canonical

	c.Products, err = QueryListNamed[entity.CatalogProduct](ctx, ms.db,
		`SELECT sku, name, legacy FROM catalog_product ORDER BY legacy, sku`, nil)
	if err != nil {
		return nil, fmt.Errorf("can't get catalog products: %w", err)
	}

	c.Packages, err = QueryListNamed[entity.Package](ctx, ms.db,
		`SELECT package_sku, indication_code, name, region FROM product_package ORDER BY package_sku, region`, nil)
	if err != nil {
		return nil, fmt.Errorf("can't get packages: %w", err)
	}

	mappings, err := QueryListNamed[positioned](ctx, ms.db,
		`SELECT actual_sku AS k, position, associated_sku AS v FROM sku_mapping ORDER BY actual_sku, position`, nil)
	if err != nil {
		return nil, fmt.Errorf("can't get sku mappings: %w", err)
	}
	for _, m := range mappings {
		n := len(c.Mappings)
		if n == 0 || c.Mappings[n-1].ActualSKU != m.Key {
			c.Mappings = append(c.Mappings, entity.SKUMapping{ActualSKU: m.Key})
			n++
		}
		c.Mappings[n-1].AssociatedSKUs = append(c.Mappings[n-1].AssociatedSKUs, m.Value)
	}
	return c, nil
}

// ReplaceCatalog swaps the stored catalog for c in one transaction.
func (ms *catalogStore) ReplaceCatalog(ctx context.Context, c *entity.Catalog) error {
	return ms.Tx(ctx, func(ctx context.Context, rep dependency.Repository) error {
		db := rep.(*MYSQLStore).db
		for _, table := range []string{"canonical_variation", "canonical_product", "catalog_product", "product_package", "sku_mapping"} {
			if _, err := db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("can't clear %s: %w", table, err)
			}
		}

		seen := map[string]bool{}
		first := func(key string) bool {
			if seen[key] {
				return false
			}
			seen[key] = true
			return true
		}

		var products, variations []map[string]any
		for _, p := range c.Canonical {
			if !first("canonical\x00" + p.SKU) {
				continue
			}
			products = append(products, map[string]any{"sku": p.SKU, "name": p.Name, "ad_name": p.AdName})
			for i, v := range p.Variations {
				variations = append(variations, map[string]any{"product_sku": p.SKU, "position": i, "variation_sku": v})
			}
		}
		var catalog []map[string]any
		for _, p := range c.Products {
			if !first(fmt.Sprintf("product\x00%s\x00%t", p.SKU, p.Legacy)) {
				continue
			}
			catalog = append(catalog, map[string]any{"sku": p.SKU, "name": p.Name, "legacy": p.Legacy})
		}
		var packages []map[string]any
		for _, p := range c.Packages {
			if !first("package\x00" + p.PackageSKU + "\x00" + p.Region) {
				continue
			}
			packages = append(packages, map[string]any{
				"package_sku": p.PackageSKU, "indication_code": p.IndicationCode, "name": p.Name, "region": p.Region,
			})
		}
		var mappings []map[string]any
		for _, m := range c.Mappings {
			if !first("mapping\x00" + m.ActualSKU) {
				continue
			}
			for i, a := range m.AssociatedSKUs {
				mappings = append(mappings, map[string]any{"actual_sku": m.ActualSKU, "position": i, "associated_sku": a})
			}
		}

		for _, b := range []struct {
			table string
			rows  []map[string]any
		}{
			{"canonical_product", products},
			{"canonical_variation", variations},
			{"catalog_product", catalog},
			{"product_package", packages},
			{"sku_mapping", mappings},
		} {
			for _, chunk := range chunks(b.rows, 500) {
				if err := BulkInsert(ctx, db, b.table, chunk); err != nil {
					return fmt.Errorf("can't insert %s: %w", b.table, err)
				}
			}
		}
		return nil
	})
}

func chunks[T any](rows []T, size int) [][]T {
	var out [][]T
	for len(rows) > size {
		out = append(out, rows[:size])
		rows = rows[size:]
	}
	if len(rows) > 0 {
		out = append(out, rows)
	}
	return out
}
