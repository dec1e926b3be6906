package entity

import "github.com/shopspring/decimal"

// Platform is an ad platform whose spend export is ingested.
type Platform string

const (
	PlatformFacebook Platform = "facebook"
	PlatformTikTok   Platform = "tiktok"
	PlatformSnapchat Platform = "snapchat"
	PlatformGoogle   Platform = "google"
)

// Platforms lists platforms in report order.
var Platforms = []Platform{PlatformFacebook, PlatformTikTok, PlatformSnapchat, PlatformGoogle}

// ValidPlatforms is a set of valid platform names.
var ValidPlatforms = map[Platform]bool{
	PlatformFacebook: true,
	PlatformTikTok:   true,
	PlatformSnapchat: true,
	PlatformGoogle:   true,
}

// SpendRow is one campaign row of a platform export.
type SpendRow struct {
	Platform   Platform
	Campaign   string
	ProductKey string
	Spent      decimal.Decimal
	Sales      decimal.Decimal
	Orders     int
}

// Active reports whether the row spent anything in the period.
func (r SpendRow) Active() bool {
	return !r.Spent.IsZero()
}

// PlatformSummary is the per-platform totals row.
type PlatformSummary struct {
	Platform    Platform        `json:"platform"`
	Spend       decimal.Decimal `json:"spend"`
	Sales       decimal.Decimal `json:"sales"`
	Orders      int             `json:"orders"`
	ROAS        decimal.Decimal `json:"roas"`
	CPA         decimal.Decimal `json:"cpa"`
	CartAverage decimal.Decimal `json:"cart_average"`
}
