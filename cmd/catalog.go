package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/catalog"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/dependency"
)

// catalogFiles are the export names looked up in a catalog directory.
var catalogFiles = map[string]string{
	"canonical": "canonical.csv",
	"products":  "products.csv",
	"legacy":    "legacy.csv",
	"packages":  "packages.csv",
	"mappings":  "mappings.csv",
}

var (
	catalogCmd = &cobra.Command{
		Use:   "catalog",
		Short: "Manage the product catalog",
	}

	catalogImportCmd = &cobra.Command{
		Use:   "import",
		Short: "Replace the stored catalog with the given CSV exports",
		RunE:  runCatalogImport,
	}

	catalogPaths = map[string]*string{}
	catalogDir   string
)

func init() {
	for name, file := range catalogFiles {
		p := new(string)
		catalogPaths[name] = p
		catalogImportCmd.Flags().StringVar(p, name, "", fmt.Sprintf("path to the %s export (default <dir>/%s)", name, file))
	}
	catalogImportCmd.Flags().StringVar(&catalogDir, "dir", "", "directory holding the catalog exports")
	catalogCmd.AddCommand(catalogImportCmd)
}

func runCatalogImport(cmd *cobra.Command, args []string) error {
	_, a, err := bootstrap()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if err := a.Open(ctx); err != nil {
		return err
	}
	defer a.Close()

	paths := resolveCatalogPaths(catalogDir, catalogPaths)
	if len(paths) == 0 {
		return fmt.Errorf("no catalog exports given")
	}
	return importCatalog(ctx, a.Repository(), paths)
}

// resolveCatalogPaths merges explicit flags with the files found in dir.
func resolveCatalogPaths(dir string, flags map[string]*string) map[string]string {
	out := map[string]string{}
	for name, file := range catalogFiles {
		if p := flags[name]; p != nil && *p != "" {
			out[name] = *p
			continue
		}
		if dir == "" {
			continue
		}
		p := filepath.Join(dir, file)
		if _, err := os.Stat(p); err == nil {
			out[name] = p
		}
	}
	return out
}

func importCatalog(ctx context.Context, repo dependency.Repository, paths map[string]string) error {
	readers := map[string]io.Reader{}
	for name, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return fmt.Errorf("can't open %s export: %w", name, err)
		}
		defer f.Close()
		readers[name] = f
	}

	c, err := catalog.Import(ctx, catalog.Sources{
		Canonical: readers["canonical"],
		Products:  readers["products"],
		Legacy:    readers["legacy"],
		Packages:  readers["packages"],
		Mappings:  readers["mappings"],
	})
	if err != nil {
		return err
	}
	if err := repo.Catalog().ReplaceCatalog(ctx, c); err != nil {
		return fmt.Errorf("can't store catalog: %w", err)
	}
	slog.Default().InfoContext(ctx, "catalog imported",
		slog.Int("canonical", len(c.Canonical)),
		slog.Int("products", len(c.Products)),
		slog.Int("packages", len(c.Packages)),
		slog.Int("mappings", len(c.Mappings)),
	)
	return nil
}
