package sku

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/entity"
)

func testCatalog() *entity.Catalog {
	return &entity.Catalog{
		Products: []entity.CatalogProduct{
			{SKU: "S1"},
			{SKU: "S2"},
			{SKU: "OLD9", Legacy: true},
		},
		Packages: []entity.Package{
			{PackageSKU: "7001", IndicationCode: "PKG-1", Region: "KSA"},
			{PackageSKU: "7001", IndicationCode: "PKG-DUP", Region: "KSA"},
			{PackageSKU: "7002", IndicationCode: "PKG-2", Region: "UAE"},
		},
		Mappings: []entity.SKUMapping{
			{ActualSKU: "S1", AssociatedSKUs: []string{"A1", "A2"}},
			{ActualSKU: "S2", AssociatedSKUs: []string{"OLD9"}},
			{ActualSKU: "C1", AssociatedSKUs: []string{"C2"}},
			{ActualSKU: "C2", AssociatedSKUs: []string{"C1"}},
			{ActualSKU: "S1", AssociatedSKUs: []string{"PKG-1"}},
		},
	}
}

func TestResolveSKU(t *testing.T) {
	r := New(testCatalog(), Config{ExcludedRegion: "UAE"})

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "known passes", in: "S2", want: "S2"},
		{name: "alias replaced", in: "A2", want: "S1"},
		{name: "known legacy still replaced", in: "OLD9", want: "S2"},
		{name: "package sku chained through mapping", in: "7001", want: "S1"},
		{name: "excluded region package substituted", in: "7002", want: "PKG-2"},
		{name: "unmapped unknown unchanged", in: "ZZZ", want: "ZZZ"},
		{name: "mapping cycle is stable", in: "C2", want: "C1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.ResolveSKU(tt.in))
		})
	}
}

func TestKnown(t *testing.T) {
	r := New(testCatalog(), Config{ExcludedRegion: "UAE"})
	assert.True(t, r.Known("PKG-1"))
	assert.False(t, r.Known("PKG-2"))
	assert.False(t, r.Known("7001"))
}

func TestResolveIdempotent(t *testing.T) {
	r := New(testCatalog(), Config{ExcludedRegion: "UAE"})
	lines := []entity.OrderLine{
		{OrderId: "1", SKU: "A1"},
		{OrderId: "2", SKU: "7001"},
		{OrderId: "3", SKU: "C1"},
		{OrderId: "4", SKU: "C2"},
		{OrderId: "5", SKU: "ZZZ"},
		{OrderId: "6", SKU: "OLD9"},
	}

	once := r.Resolve(lines)
	twice := r.Resolve(once)
	assert.Equal(t, once, twice)

	// input is not mutated
	assert.Equal(t, "A1", lines[0].SKU)
}
