// Package spend parses ad-platform spend exports into campaign rows.
package spend

import (
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/entity"
)

// Schema describes one platform's export layout. Each column lists accepted
// spellings, first match wins.
type Schema struct {
	Platform  entity.Platform
	HeaderRow int
	Campaign  []string
	Spend     []string
	Results   []string
	ROAS      []string
	// Sales is summed when present; otherwise sales are spend × ROAS.
	Sales []string
	// Required must be present for the file to be accepted.
	Required []string
}

// DefaultSchemas returns the export layouts of the supported platforms.
func DefaultSchemas() map[entity.Platform]Schema {
	return map[entity.Platform]Schema{
		entity.PlatformFacebook: {
			Platform:  entity.PlatformFacebook,
			HeaderRow: 1,
			Campaign:  []string{"Campaign name", "Ad set name", "Ad name"},
			Spend:     []string{"Amount spent (SAR)", "Amount spent (USD)", "Amount spent"},
			Results:   []string{"Results", "Purchases"},
			ROAS:      []string{"Purchase ROAS (return on ad spend)", "Purchase ROAS", "Website purchase ROAS (return on ad spend)"},
			Required:  []string{"Purchase ROAS (return on ad spend)", "Purchase ROAS", "Website purchase ROAS (return on ad spend)"},
		},
		entity.PlatformTikTok: {
			Platform:  entity.PlatformTikTok,
			HeaderRow: 1,
			Campaign:  []string{"Campaign name", "Ad group name", "Ad name"},
			Spend:     []string{"Cost", "Total cost"},
			Results:   []string{"Conversions", "Complete payment", "Results"},
			ROAS:      []string{"Payment completion ROAS (website)", "Complete payment ROAS", "ROAS"},
			Required:  []string{"Cost", "Total cost"},
		},
		entity.PlatformSnapchat: {
			Platform:  entity.PlatformSnapchat,
			HeaderRow: 1,
			Campaign:  []string{"Campaign Name", "Ad Set Name", "Ad Name"},
			Spend:     []string{"Amount Spent", "Spend"},
			Results:   []string{"Purchases", "Conversion Purchases"},
			ROAS:      []string{"Purchase ROAS", "Return On Ad Spend"},
			Sales:     []string{"Purchases Value", "Conversion Purchases Value"},
			Required:  []string{"Amount Spent", "Spend"},
		},
		entity.PlatformGoogle: {
			Platform:  entity.PlatformGoogle,
			HeaderRow: 3,
			Campaign:  []string{"Campaign"},
			Spend:     []string{"Cost"},
			Results:   []string{"Conversions"},
			ROAS:      []string{"Conv. value / cost"},
			Sales:     []string{"Conv. value", "Conversion value"},
			Required:  []string{"Cost"},
		},
	}
}
