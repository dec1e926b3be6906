package landing

import (
	"regexp"
	"strings"

	"github.com/withindevelopment-activate/within-the-app-sub000/internal/calc"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/catalog"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/entity"
)

// ProductPathMarker selects product pages from the analytics rows.
const ProductPathMarker = "/products/"

var sizePattern = regexp.MustCompile(`\d+\s*[x×*]\s*\d+|\d+\s*(cm|سم)`)

// MatchConfig holds the exclusions of the fuzzy pass.
type MatchConfig struct {
	SizeMarkers   []string `mapstructure:"size_markers"`
	ReviewMarkers []string `mapstructure:"review_markers"`
}

// DefaultMatchConfig returns the default exclusions.
func DefaultMatchConfig() MatchConfig {
	return MatchConfig{
		SizeMarkers:   []string{"مقاسات", "sizes"},
		ReviewMarkers: []string{"/reviews", "review"},
	}
}

// ProductPaths returns the distinct product-page paths of metrics.
func ProductPaths(metrics []entity.PageMetric) []string {
	seen := map[string]bool{}
	var out []string
	for _, m := range metrics {
		if !strings.Contains(m.PagePath, ProductPathMarker) || seen[m.PagePath] {
			continue
		}
		seen[m.PagePath] = true
		out = append(out, m.PagePath)
	}
	return out
}

type page struct {
	path    string
	heading string
	users   int64
	carts   int64
	used    bool
}

// Match credits each product page to a canonical product. Pass one compares
// headings to variation display names exactly; pass two looks for the
// product display name inside the remaining headings, skipping size-chart and
// review pages. Pages without a heading contribute nothing.
func Match(metrics []entity.PageMetric, headings map[string]string, idx *catalog.Index, c MatchConfig) []entity.LandingPageRow {
	var pages []*page
	byPath := map[string]*page{}
	for _, m := range metrics {
		if !strings.Contains(m.PagePath, ProductPathMarker) {
			continue
		}
		h, ok := headings[m.PagePath]
		if !ok || h == NotFound || strings.TrimSpace(h) == "" {
			continue
		}
		if p, ok := byPath[m.PagePath]; ok {
			p.users += m.ActiveUsers
			p.carts += m.AddToCarts
			continue
		}
		p := &page{path: m.PagePath, heading: strings.TrimSpace(h), users: m.ActiveUsers, carts: m.AddToCarts}
		byPath[m.PagePath] = p
		pages = append(pages, p)
	}

	type acc struct {
		users, carts int64
		hit          bool
	}
	credit := map[string]*acc{}
	give := func(sku string, p *page) {
		a, ok := credit[sku]
		if !ok {
			a = &acc{}
			credit[sku] = a
		}
		a.users += p.users
		a.carts += p.carts
		a.hit = true
		p.used = true
	}

	for _, prod := range idx.Products() {
		for _, v := range idx.Variations(prod.SKU) {
			name := strings.TrimSpace(v.Name)
			if name == "" {
				continue
			}
			for _, p := range pages {
				if !p.used && p.heading == name {
					give(prod.SKU, p)
				}
			}
		}
	}

	for _, p := range pages {
		if p.used || c.excluded(p) {
			continue
		}
		h := catalog.Key(p.heading)
		for _, prod := range idx.Products() {
			name := catalog.Key(prod.Name)
			if name == "" {
				continue
			}
			if h == name || strings.Contains(h, name) {
				give(prod.SKU, p)
				break
			}
		}
	}

	var out []entity.LandingPageRow
	for _, prod := range idx.Products() {
		a, ok := credit[prod.SKU]
		if !ok || !a.hit {
			continue
		}
		out = append(out, entity.LandingPageRow{
			SKU:            prod.SKU,
			Name:           prod.Name,
			ActiveUsers:    a.users,
			AddToCarts:     a.carts,
			ConversionRate: calc.PercentInt(int(a.carts), int(a.users)),
		})
	}
	return out
}

func (c MatchConfig) excluded(p *page) bool {
	if sizePattern.MatchString(p.heading) {
		return true
	}
	h := strings.ToLower(p.heading)
	for _, m := range c.SizeMarkers {
		if m != "" && strings.Contains(h, strings.ToLower(m)) {
			return true
		}
	}
	path := strings.ToLower(p.path)
	for _, m := range c.ReviewMarkers {
		if m != "" && strings.Contains(path, strings.ToLower(m)) {
			return true
		}
	}
	return false
}
