// Package catalog indexes the product reference data used to attribute ads
// and orders to products.
package catalog

import (
	"strings"

	"github.com/withindevelopment-activate/within-the-app-sub000/internal/entity"
	"golang.org/x/text/cases"
)

// Options configures how variation SKUs are resolved to display names.
type Options struct {
	// PackagePrefix marks variation SKUs that are package indication codes.
	PackagePrefix string `mapstructure:"package_prefix"`
}

// Variation is a sellable SKU of a canonical product.
type Variation struct {
	SKU  string
	Name string
}

// Index is a read-only view over a Catalog. It is built once per run and is
// safe for concurrent use.
type Index struct {
	products     []entity.CanonicalProduct
	bySKU        map[string]int
	byAdName     map[string][]string
	productNames map[string]string
	packages     map[string]entity.Package
	prefix       string
}

// Key normalizes a product name, ad name or campaign token for matching:
// trimmed, whitespace collapsed and case folded.
func Key(s string) string {
	return cases.Fold().String(strings.Join(strings.Fields(s), " "))
}

// NewIndex builds an index over c.
func NewIndex(c *entity.Catalog, opts Options) *Index {
	ix := &Index{
		bySKU:        map[string]int{},
		byAdName:     map[string][]string{},
		productNames: map[string]string{},
		packages:     map[string]entity.Package{},
		prefix:       opts.PackagePrefix,
	}
	if c == nil {
		return ix
	}

	for _, p := range c.Canonical {
		if p.SKU == "" {
			continue
		}
		if _, dup := ix.bySKU[p.SKU]; dup {
			continue
		}
		ix.bySKU[p.SKU] = len(ix.products)
		ix.products = append(ix.products, p)

		adName := p.AdName
		if strings.TrimSpace(adName) == "" {
			adName = p.Name
		}
		k := Key(adName)
		if k != "" {
			ix.byAdName[k] = append(ix.byAdName[k], p.SKU)
		}
	}
	for _, p := range c.Products {
		if _, ok := ix.productNames[p.SKU]; !ok || !p.Legacy {
			ix.productNames[p.SKU] = p.Name
		}
	}
	for _, p := range c.Packages {
		if p.IndicationCode != "" {
			if _, ok := ix.packages[p.IndicationCode]; !ok {
				ix.packages[p.IndicationCode] = p
			}
		}
	}
	return ix
}

// Product returns the canonical product with the given SKU.
func (ix *Index) Product(sku string) (entity.CanonicalProduct, bool) {
	i, ok := ix.bySKU[sku]
	if !ok {
		return entity.CanonicalProduct{}, false
	}
	return ix.products[i], true
}

// Products returns canonical products in catalog order.
func (ix *Index) Products() []entity.CanonicalProduct {
	return ix.products
}

// SKUsForAdName returns every canonical SKU advertised under token. Several
// products may share an ad name.
func (ix *Index) SKUsForAdName(token string) []string {
	return ix.byAdName[Key(token)]
}

// VariationName returns the display name of a variation SKU, or "" when the
// catalogs do not know it.
func (ix *Index) VariationName(sku string) string {
	if ix.prefix != "" && strings.HasPrefix(sku, ix.prefix) {
		if p, ok := ix.packages[sku]; ok {
			return p.Name
		}
		return ""
	}
	return ix.productNames[sku]
}

// Variations returns the variations of the canonical product sku with their
// display names.
func (ix *Index) Variations(sku string) []Variation {
	p, ok := ix.Product(sku)
	if !ok {
		return nil
	}
	out := make([]Variation, 0, len(p.Variations))
	for _, v := range p.Variations {
		out = append(out, Variation{SKU: v, Name: ix.VariationName(v)})
	}
	return out
}
