package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// TimeRange represents a reporting period.
type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// LabelValue is a row of the two-column summary tables.
type LabelValue struct {
	Label string          `json:"label"`
	Value decimal.Decimal `json:"value"`
}

// ProductStats holds order counts for one advertised product.
type ProductStats struct {
	Quantity           int             `json:"quantity"`
	Orders             int             `json:"orders"`
	UnfilteredQuantity int             `json:"unfiltered_quantity"`
	UnfilteredOrders   int             `json:"unfiltered_orders"`
	WebsiteOrders      int             `json:"website_orders"`
	QuantityPercentage decimal.Decimal `json:"quantity_percentage"`
	OrdersPercentage   decimal.Decimal `json:"orders_percentage"`
}

// PlatformProductRow is a product's performance on one platform, or merged
// across platforms when Platform is empty.
type PlatformProductRow struct {
	Platform       Platform        `json:"platform,omitempty"`
	ProductKey     string          `json:"product_key"`
	Ads            int             `json:"ads"`
	Spend          decimal.Decimal `json:"spend"`
	PlatformOrders int             `json:"platform_orders"`
	Sales          decimal.Decimal `json:"sales"`
	ROAS           decimal.Decimal `json:"roas"`
	CPA            decimal.Decimal `json:"cpa"`
	CartAverage    decimal.Decimal `json:"cart_average"`
}

// ProductPerformanceRow is the merged per-product table row.
type ProductPerformanceRow struct {
	PlatformProductRow
	SKUs        []string        `json:"skus"`
	Stats       ProductStats    `json:"stats"`
	BudgetShare decimal.Decimal `json:"budget_share"`
}

// PageMetric is an analytics row for one page path.
type PageMetric struct {
	PagePath    string `json:"page_path"`
	ActiveUsers int64  `json:"active_users"`
	AddToCarts  int64  `json:"add_to_carts"`
}

// LandingPageRow is the per-product landing performance row.
type LandingPageRow struct {
	SKU            string          `json:"sku"`
	Name           string          `json:"name"`
	ActiveUsers    int64           `json:"active_users"`
	AddToCarts     int64           `json:"add_to_carts"`
	ConversionRate decimal.Decimal `json:"conversion_rate"`
}

// Report is the full output of one reporting run.
type Report struct {
	RunId        string                  `json:"run_id"`
	Period       TimeRange               `json:"period"`
	General      []LabelValue            `json:"general"`
	OrderSources []LabelValue            `json:"order_sources"`
	Platforms    []PlatformSummary       `json:"platforms"`
	Products     []ProductPerformanceRow `json:"products"`
	PerPlatform  []PlatformProductRow    `json:"per_platform"`
	LandingPages []LandingPageRow        `json:"landing_pages"`
}
