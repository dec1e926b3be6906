package spend

import (
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/calc"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/entity"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/tabular"
)

// ProductKey returns the product token of a campaign name: the trimmed text
// before the first '-'.
func ProductKey(campaign string) string {
	if i := strings.Index(campaign, "-"); i >= 0 {
		campaign = campaign[:i]
	}
	return strings.TrimSpace(campaign)
}

// Parse reads a platform export into campaign rows. A file missing the
// schema's campaign, spend or required column is rejected.
func Parse(r io.Reader, s Schema) ([]entity.SpendRow, error) {
	name := fmt.Sprintf("%s spend", s.Platform)
	t, err := tabular.Read(name, r, s.HeaderRow)
	if err != nil {
		return nil, err
	}
	if err := t.Require(s.Campaign, s.Spend, s.Required); err != nil {
		return nil, err
	}

	useSales := len(s.Sales) > 0 && t.Has(s.Sales...)

	rows := make([]entity.SpendRow, 0, len(t.Rows))
	for _, row := range t.Rows {
		campaign := t.Get(row, s.Campaign...)
		if campaign == "" || isTotalRow(campaign) {
			continue
		}
		spent := tabular.Decimal(t.Get(row, s.Spend...))
		var sales decimal.Decimal
		if useSales {
			sales = tabular.Decimal(t.Get(row, s.Sales...))
		} else if len(s.ROAS) > 0 {
			sales = spent.Mul(tabular.Decimal(t.Get(row, s.ROAS...)))
		}
		rows = append(rows, entity.SpendRow{
			Platform:   s.Platform,
			Campaign:   campaign,
			ProductKey: ProductKey(campaign),
			Spent:      spent,
			Sales:      sales,
			Orders:     tabular.Int(t.Get(row, s.Results...)),
		})
	}
	return rows, nil
}

func isTotalRow(campaign string) bool {
	return strings.HasPrefix(strings.ToLower(campaign), "total")
}

// Summarize totals a platform's rows.
func Summarize(p entity.Platform, rows []entity.SpendRow) entity.PlatformSummary {
	s := entity.PlatformSummary{Platform: p}
	for _, r := range rows {
		s.Spend = s.Spend.Add(r.Spent)
		s.Sales = s.Sales.Add(r.Sales)
		s.Orders += r.Orders
	}
	s.Spend = calc.Round2(s.Spend)
	s.Sales = calc.Round2(s.Sales)
	s.ROAS = calc.ROAS(s.Sales, s.Spend)
	s.CPA = calc.CPA(s.Spend, s.Orders)
	s.CartAverage = calc.CartAverage(s.Sales, s.Orders)
	return s
}

// SummarizeAll returns one summary per platform in report order followed by
// a grand total row with an empty platform.
func SummarizeAll(byPlatform map[entity.Platform][]entity.SpendRow) []entity.PlatformSummary {
	out := make([]entity.PlatformSummary, 0, len(byPlatform)+1)
	var all []entity.SpendRow
	for _, p := range entity.Platforms {
		rows, ok := byPlatform[p]
		if !ok {
			continue
		}
		out = append(out, Summarize(p, rows))
		all = append(all, rows...)
	}
	out = append(out, Summarize("", all))
	return out
}

// TotalSpend sums spend over every platform.
func TotalSpend(byPlatform map[entity.Platform][]entity.SpendRow) decimal.Decimal {
	total := decimal.Zero
	for _, rows := range byPlatform {
		for _, r := range rows {
			total = total.Add(r.Spent)
		}
	}
	return total
}
