package catalog

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/entity"
	gerr "github.com/withindevelopment-activate/within-the-app-sub000/internal/errors"
)

func TestParseList(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    []string
		wantErr bool
	}{
		{name: "empty", in: "", want: nil},
		{name: "json", in: `["A1", "B2"]`, want: []string{"A1", "B2"}},
		{name: "single quoted", in: `['A1', 'B2']`, want: []string{"A1", "B2"}},
		{name: "trailing comma", in: `['A1',]`, want: []string{"A1"}},
		{name: "escaped quote", in: `['it\'s']`, want: []string{"it's"}},
		{name: "empty list", in: `[]`, want: []string{}},
		{name: "bare value", in: `A1`, wantErr: true},
		{name: "unquoted items", in: `[A1, B2]`, wantErr: true},
		{name: "unterminated", in: `['A1]`, wantErr: true},
		{name: "missing comma", in: `['A1' 'B2']`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseList(tt.in)
			if tt.wantErr {
				assert.True(t, errors.Is(err, gerr.ErrMalformedList))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func testCatalog() *entity.Catalog {
	return &entity.Catalog{
		Canonical: []entity.CanonicalProduct{
			{SKU: "P1", Name: "Memory Pillow", AdName: "Pillow", Variations: []string{"V1", "V2"}},
			{SKU: "P2", Name: "Pillow Cover", AdName: "pillow ", Variations: []string{"V3"}},
			{SKU: "P3", Name: "Sleep Bundle", AdName: "Bundle", Variations: []string{"PKG-10"}},
		},
		Products: []entity.CatalogProduct{
			{SKU: "V1", Name: "Memory Pillow Small"},
			{SKU: "V2", Name: "Memory Pillow Large"},
			{SKU: "V3", Name: "Pillow Cover Old", Legacy: true},
			{SKU: "V3", Name: "Pillow Cover"},
		},
		Packages: []entity.Package{
			{PackageSKU: "9001", IndicationCode: "PKG-10", Name: "Sleep Bundle Set"},
		},
	}
}

func TestIndex(t *testing.T) {
	ix := NewIndex(testCatalog(), Options{PackagePrefix: "PKG"})

	t.Run("ad name shared by several products", func(t *testing.T) {
		assert.Equal(t, []string{"P1", "P2"}, ix.SKUsForAdName("  PILLOW"))
	})

	t.Run("unknown token", func(t *testing.T) {
		assert.Empty(t, ix.SKUsForAdName("Blanket"))
	})

	t.Run("variation names via product catalog", func(t *testing.T) {
		assert.Equal(t, []Variation{
			{SKU: "V1", Name: "Memory Pillow Small"},
			{SKU: "V2", Name: "Memory Pillow Large"},
		}, ix.Variations("P1"))
	})

	t.Run("current name wins over legacy", func(t *testing.T) {
		assert.Equal(t, "Pillow Cover", ix.VariationName("V3"))
	})

	t.Run("package variation via package catalog", func(t *testing.T) {
		assert.Equal(t, "Sleep Bundle Set", ix.VariationName("PKG-10"))
	})

	t.Run("products keep catalog order", func(t *testing.T) {
		var skus []string
		for _, p := range ix.Products() {
			skus = append(skus, p.SKU)
		}
		assert.Equal(t, []string{"P1", "P2", "P3"}, skus)
	})
}

func TestKey(t *testing.T) {
	assert.Equal(t, "memory pillow", Key("  Memory   PILLOW "))
}

func TestImport(t *testing.T) {
	ctx := context.Background()

	t.Run("skips malformed mapping rows", func(t *testing.T) {
		c, err := Import(ctx, Sources{
			Mappings: strings.NewReader("actual_sku,associated_skus\n" +
				"A,\"['X', 'Y']\"\n" +
				"B,not-a-list\n" +
				"C,\"[\"\"Z\"\"]\"\n"),
		})
		require.NoError(t, err)
		assert.Equal(t, []entity.SKUMapping{
			{ActualSKU: "A", AssociatedSKUs: []string{"X", "Y"}},
			{ActualSKU: "C", AssociatedSKUs: []string{"Z"}},
		}, c.Mappings)
	})

	t.Run("canonical products and packages", func(t *testing.T) {
		c, err := Import(ctx, Sources{
			Canonical: strings.NewReader("sku,name,ad_name,variations\nP1,Memory Pillow,Pillow,\"['V1']\"\n"),
			Packages:  strings.NewReader("package_sku,indication_code,name,region\n9001,PKG-10,Bundle,KSA\n"),
			Legacy:    strings.NewReader("sku,name\nOLD1,Old Pillow\n"),
		})
		require.NoError(t, err)
		require.Len(t, c.Canonical, 1)
		assert.Equal(t, []string{"V1"}, c.Canonical[0].Variations)
		assert.Equal(t, "KSA", c.Packages[0].Region)
		assert.True(t, c.Products[0].Legacy)
	})

	t.Run("missing column", func(t *testing.T) {
		_, err := Import(ctx, Sources{Packages: strings.NewReader("package_sku,name\n1,x\n")})
		require.Error(t, err)
		assert.True(t, gerr.IsValidation(err))
		assert.Contains(t, err.Error(), "indication_code")
	})
}
