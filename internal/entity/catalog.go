package entity

// CanonicalProduct is the merchandising product as advertised. Variations are
// sellable SKUs (sizes, colours, bundles) that roll up into it.
type CanonicalProduct struct {
	SKU        string   `db:"sku"`
	Name       string   `db:"name"`
	AdName     string   `db:"ad_name"`
	Variations []string `db:"-"`
}

// CatalogProduct is a row of the current or legacy product catalog.
type CatalogProduct struct {
	SKU    string `db:"sku"`
	Name   string `db:"name"`
	Legacy bool   `db:"legacy"`
}

// Package is a bundle listing. Orders may reference a package by its own SKU;
// the indication code is the SKU used everywhere else.
type Package struct {
	PackageSKU     string `db:"package_sku"`
	IndicationCode string `db:"indication_code"`
	Name           string `db:"name"`
	Region         string `db:"region"`
}

// SKUMapping maps legacy or alias SKUs onto the SKU currently in use.
type SKUMapping struct {
	ActualSKU      string   `db:"actual_sku"`
	AssociatedSKUs []string `db:"-"`
}

// Catalog is the reference data set loaded once per reporting run.
type Catalog struct {
	Canonical []CanonicalProduct
	Products  []CatalogProduct
	Packages  []Package
	Mappings  []SKUMapping
}
