// Package sku rewrites order-line SKUs onto the SKUs the catalog uses.
package sku

import (
	"sort"

	"github.com/withindevelopment-activate/within-the-app-sub000/internal/entity"
)

const maxHops = 16

// Config holds resolver configuration.
type Config struct {
	// ExcludedRegion drops that region's packages from the known SKU set.
	ExcludedRegion string `mapstructure:"excluded_region"`
}

// Resolver maps raw SKUs to canonical ones. It is immutable after New and safe
// for concurrent use.
type Resolver struct {
	known        map[string]bool
	packageCodes map[string]string
	replace      map[string]string
}

// New builds a resolver from the catalog.
func New(c *entity.Catalog, cfg Config) *Resolver {
	r := &Resolver{
		known:        map[string]bool{},
		packageCodes: map[string]string{},
		replace:      map[string]string{},
	}
	if c == nil {
		return r
	}

	for _, p := range c.Products {
		if p.SKU != "" {
			r.known[p.SKU] = true
		}
	}
	for _, p := range c.Packages {
		if p.PackageSKU != "" && p.IndicationCode != "" {
			if _, ok := r.packageCodes[p.PackageSKU]; !ok {
				r.packageCodes[p.PackageSKU] = p.IndicationCode
			}
		}
		if cfg.ExcludedRegion != "" && p.Region == cfg.ExcludedRegion {
			continue
		}
		if p.IndicationCode != "" {
			r.known[p.IndicationCode] = true
		}
	}
	for _, m := range c.Mappings {
		for _, a := range m.AssociatedSKUs {
			if a == "" || a == m.ActualSKU {
				continue
			}
			if _, ok := r.replace[a]; !ok {
				r.replace[a] = m.ActualSKU
			}
		}
	}
	return r
}

// Known reports whether sku is in the product or package catalogs.
func (r *Resolver) Known(sku string) bool {
	return r.known[sku]
}

func (r *Resolver) step(s string) string {
	if !r.known[s] {
		if code, ok := r.packageCodes[s]; ok {
			s = code
		}
	}
	if to, ok := r.replace[s]; ok {
		s = to
	}
	return s
}

// ResolveSKU follows package substitution and the replacement dictionary until
// the SKU stops changing. On a mapping cycle the smallest SKU of the cycle is
// returned, so resolving a resolved SKU is a no-op.
func (r *Resolver) ResolveSKU(s string) string {
	seen := map[string]int{s: 0}
	path := []string{s}
	cur := s
	for i := 0; i < maxHops; i++ {
		next := r.step(cur)
		if next == cur {
			return cur
		}
		if at, ok := seen[next]; ok {
			cycle := append([]string(nil), path[at:]...)
			sort.Strings(cycle)
			return cycle[0]
		}
		seen[next] = len(path)
		path = append(path, next)
		cur = next
	}
	return cur
}

// Resolve returns a copy of lines with every SKU resolved. Unknown SKUs with
// no package or mapping entry are left unchanged.
func (r *Resolver) Resolve(lines []entity.OrderLine) []entity.OrderLine {
	out := make([]entity.OrderLine, len(lines))
	cache := map[string]string{}
	for i, l := range lines {
		to, ok := cache[l.SKU]
		if !ok {
			to = r.ResolveSKU(l.SKU)
			cache[l.SKU] = to
		}
		l.SKU = to
		out[i] = l
	}
	return out
}
