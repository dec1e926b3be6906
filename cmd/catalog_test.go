package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/store/memory"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestResolveCatalogPaths(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "canonical.csv", "sku,name,variations\n")
	writeFile(t, dir, "packages.csv", "package_sku,indication_code\n")

	override := "/tmp/other-packages.csv"
	paths := resolveCatalogPaths(dir, map[string]*string{"packages": &override})
	assert.Equal(t, map[string]string{
		"canonical": filepath.Join(dir, "canonical.csv"),
		"packages":  override,
	}, paths)

	assert.Empty(t, resolveCatalogPaths("", nil))
}

func TestImportCatalog(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "canonical.csv", "sku,name,ad_name,variations\nP1,Memory Pillow,Pillow,\"[\"\"V1\"\",\"\"V2\"\"]\"\n")
	writeFile(t, dir, "products.csv", "sku,name\nV1,Memory Pillow Large\n")

	repo := memory.New()
	ctx := context.Background()
	require.NoError(t, importCatalog(ctx, repo, resolveCatalogPaths(dir, nil)))

	c, err := repo.Catalog().LoadCatalog(ctx)
	require.NoError(t, err)
	require.Len(t, c.Canonical, 1)
	assert.Equal(t, []string{"V1", "V2"}, c.Canonical[0].Variations)
	assert.Len(t, c.Products, 1)
}
