package catalog

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/withindevelopment-activate/within-the-app-sub000/internal/entity"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/tabular"
)

// Sources are the catalog exports. Nil readers are skipped.
type Sources struct {
	Canonical io.Reader
	Products  io.Reader
	Legacy    io.Reader
	Packages  io.Reader
	Mappings  io.Reader
}

var (
	colSKU            = []string{"sku", "SKU"}
	colName           = []string{"name", "product_name", "Name"}
	colAdName         = []string{"ad_name", "Ad Name"}
	colVariations     = []string{"variations", "Variations"}
	colPackageSKU     = []string{"package_sku", "Package SKU"}
	colIndicationCode = []string{"indication_code", "Indication Code"}
	colRegion         = []string{"region", "Region"}
	colActualSKU      = []string{"actual_sku", "Actual SKU"}
	colAssociatedSKUs = []string{"associated_skus", "Associated SKUs"}
)

// Import reads the catalog exports. List columns are decoded here, once; a
// row whose list cell is malformed is skipped with a warning.
func Import(ctx context.Context, src Sources) (*entity.Catalog, error) {
	c := &entity.Catalog{}

	if src.Canonical != nil {
		t, err := tabular.Read("canonical products", src.Canonical, 1)
		if err != nil {
			return nil, err
		}
		if err := t.Require(colSKU, colName, colVariations); err != nil {
			return nil, err
		}
		for i, row := range t.Rows {
			vars, err := ParseList(t.Get(row, colVariations...))
			if err != nil {
				slog.Default().WarnContext(ctx, "skipping canonical product with malformed variations",
					slog.Int("row", i+2),
					slog.String("err", err.Error()),
				)
				continue
			}
			c.Canonical = append(c.Canonical, entity.CanonicalProduct{
				SKU:        t.Get(row, colSKU...),
				Name:       t.Get(row, colName...),
				AdName:     t.Get(row, colAdName...),
				Variations: vars,
			})
		}
	}

	for _, f := range []struct {
		name   string
		r      io.Reader
		legacy bool
	}{
		{"products", src.Products, false},
		{"legacy products", src.Legacy, true},
	} {
		if f.r == nil {
			continue
		}
		t, err := tabular.Read(f.name, f.r, 1)
		if err != nil {
			return nil, err
		}
		if err := t.Require(colSKU, colName); err != nil {
			return nil, err
		}
		for _, row := range t.Rows {
			sku := t.Get(row, colSKU...)
			if sku == "" {
				continue
			}
			c.Products = append(c.Products, entity.CatalogProduct{
				SKU:    sku,
				Name:   t.Get(row, colName...),
				Legacy: f.legacy,
			})
		}
	}

	if src.Packages != nil {
		t, err := tabular.Read("packages", src.Packages, 1)
		if err != nil {
			return nil, err
		}
		if err := t.Require(colPackageSKU, colIndicationCode); err != nil {
			return nil, err
		}
		for _, row := range t.Rows {
			c.Packages = append(c.Packages, entity.Package{
				PackageSKU:     t.Get(row, colPackageSKU...),
				IndicationCode: t.Get(row, colIndicationCode...),
				Name:           t.Get(row, colName...),
				Region:         t.Get(row, colRegion...),
			})
		}
	}

	if src.Mappings != nil {
		t, err := tabular.Read("sku mappings", src.Mappings, 1)
		if err != nil {
			return nil, err
		}
		if err := t.Require(colActualSKU, colAssociatedSKUs); err != nil {
			return nil, err
		}
		for i, row := range t.Rows {
			actual := t.Get(row, colActualSKU...)
			assoc, err := ParseList(t.Get(row, colAssociatedSKUs...))
			if err != nil || actual == "" {
				if err == nil {
					err = fmt.Errorf("empty actual sku")
				}
				slog.Default().WarnContext(ctx, "skipping malformed sku mapping",
					slog.Int("row", i+2),
					slog.String("err", err.Error()),
				)
				continue
			}
			c.Mappings = append(c.Mappings, entity.SKUMapping{
				ActualSKU:      actual,
				AssociatedSKUs: assoc,
			})
		}
	}

	return c, nil
}
