// Package attribution joins ad spend to ordered products through the catalog.
package attribution

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/calc"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/catalog"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/entity"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/orders"
)

// Batch is the set of canonical SKUs advertised under one product token.
// A token matching a single product is a Batch of one.
type Batch []string

// Result holds the product tables of a run.
type Result struct {
	Products    []entity.ProductPerformanceRow
	PerPlatform []entity.PlatformProductRow
	// Unmatched lists tokens no catalog product is advertised under.
	Unmatched []string
}

// Engine attributes spend and orders to canonical products.
type Engine struct {
	idx *catalog.Index
}

// New creates an engine over idx.
func New(idx *catalog.Index) *Engine {
	return &Engine{idx: idx}
}

type token struct {
	key     string
	display string
}

// activeTokens returns the product tokens of active ads across platforms,
// deduped on the normalized key in first-seen order.
func activeTokens(spend map[entity.Platform][]entity.SpendRow) []token {
	seen := map[string]bool{}
	var out []token
	for _, p := range entity.Platforms {
		for _, r := range spend[p] {
			if !r.Active() {
				continue
			}
			k := catalog.Key(r.ProductKey)
			if k == "" || seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, token{key: k, display: strings.TrimSpace(r.ProductKey)})
		}
	}
	return out
}

// lineIndex groups order lines by SKU.
type lineIndex map[string][]entity.OrderLine

func indexLines(lines []entity.OrderLine, skip map[string]bool) lineIndex {
	ix := lineIndex{}
	for _, l := range lines {
		if skip[l.OrderId] {
			continue
		}
		ix[l.SKU] = append(ix[l.SKU], l)
	}
	return ix
}

// Breakdown sums quantity and distinct orders over every variation of the
// batch's products. A variation whose lines carry several product names only
// counts lines naming the product's ad name; if none do it is skipped.
func (e *Engine) Breakdown(b Batch, lines []entity.OrderLine) (quantity, orderCount int) {
	return e.breakdown(b, indexLines(lines, nil))
}

func (e *Engine) breakdown(b Batch, lines lineIndex) (quantity, orderCount int) {
	for _, sku := range b {
		p, ok := e.idx.Product(sku)
		if !ok {
			continue
		}
		adName := p.AdName
		if strings.TrimSpace(adName) == "" {
			adName = p.Name
		}
		adKey := catalog.Key(adName)

		for _, v := range p.Variations {
			matched := narrow(lines[v], adKey)
			ids := map[string]bool{}
			for _, l := range matched {
				quantity += l.Quantity
				ids[l.OrderId] = true
			}
			orderCount += len(ids)
		}
	}
	return quantity, orderCount
}

func narrow(ls []entity.OrderLine, adKey string) []entity.OrderLine {
	names := map[string]bool{}
	for _, l := range ls {
		names[catalog.Key(l.ProductName)] = true
	}
	if len(names) <= 1 {
		return ls
	}
	var out []entity.OrderLine
	for _, l := range ls {
		if adKey != "" && strings.Contains(catalog.Key(l.ProductName), adKey) {
			out = append(out, l)
		}
	}
	return out
}

// PlatformRows groups a platform's active ads by product token.
func PlatformRows(p entity.Platform, rows []entity.SpendRow) []entity.PlatformProductRow {
	byKey := map[string]*entity.PlatformProductRow{}
	var order []string
	for _, r := range rows {
		if !r.Active() {
			continue
		}
		k := catalog.Key(r.ProductKey)
		if k == "" {
			continue
		}
		row, ok := byKey[k]
		if !ok {
			row = &entity.PlatformProductRow{Platform: p, ProductKey: strings.TrimSpace(r.ProductKey)}
			byKey[k] = row
			order = append(order, k)
		}
		row.Ads++
		row.Spend = row.Spend.Add(r.Spent)
		row.Sales = row.Sales.Add(r.Sales)
		row.PlatformOrders += r.Orders
	}

	out := make([]entity.PlatformProductRow, 0, len(order))
	for _, k := range order {
		out = append(out, finish(*byKey[k]))
	}
	return out
}

func finish(r entity.PlatformProductRow) entity.PlatformProductRow {
	r.Spend = calc.Round2(r.Spend)
	r.Sales = calc.Round2(r.Sales)
	r.ROAS = calc.ROAS(r.Sales, r.Spend)
	r.CPA = calc.CPA(r.Spend, r.PlatformOrders)
	r.CartAverage = calc.CartAverage(r.Sales, r.PlatformOrders)
	return r
}

// Attribute builds the product performance tables.
func (e *Engine) Attribute(spend map[entity.Platform][]entity.SpendRow, rec *orders.Reconciled) *Result {
	res := &Result{}
	if rec == nil {
		rec = &orders.Reconciled{}
	}

	filtered := indexLines(rec.Filtered, nil)
	unfiltered := indexLines(rec.Unfiltered, nil)
	websiteOnly := indexLines(rec.Filtered, rec.CustomerServiceIds)

	merged := map[string]*entity.ProductPerformanceRow{}
	tokens := activeTokens(spend)
	for _, t := range tokens {
		b := Batch(e.idx.SKUsForAdName(t.key))
		if len(b) == 0 {
			res.Unmatched = append(res.Unmatched, t.display)
		}
		row := &entity.ProductPerformanceRow{
			PlatformProductRow: entity.PlatformProductRow{ProductKey: t.display},
			SKUs:               append([]string{}, b...),
		}
		row.Stats.Quantity, row.Stats.Orders = e.breakdown(b, filtered)
		row.Stats.UnfilteredQuantity, row.Stats.UnfilteredOrders = e.breakdown(b, unfiltered)
		_, row.Stats.WebsiteOrders = e.breakdown(b, websiteOnly)
		merged[t.key] = row
	}

	for _, p := range entity.Platforms {
		rows, ok := spend[p]
		if !ok {
			continue
		}
		for _, pr := range PlatformRows(p, rows) {
			res.PerPlatform = append(res.PerPlatform, pr)
			m, ok := merged[catalog.Key(pr.ProductKey)]
			if !ok {
				continue
			}
			m.Ads += pr.Ads
			m.Spend = m.Spend.Add(pr.Spend)
			m.Sales = m.Sales.Add(pr.Sales)
			m.PlatformOrders += pr.PlatformOrders
		}
	}

	var sumQty, sumOrders int
	grand := decimal.Zero
	for _, m := range merged {
		sumQty += m.Stats.Quantity
		sumOrders += m.Stats.Orders
		grand = grand.Add(m.Spend)
	}

	res.Products = make([]entity.ProductPerformanceRow, 0, len(tokens))
	for _, t := range tokens {
		m := merged[t.key]
		m.PlatformProductRow = finish(m.PlatformProductRow)
		m.Stats.QuantityPercentage = calc.PercentInt(m.Stats.Quantity, sumQty)
		m.Stats.OrdersPercentage = calc.PercentInt(m.Stats.Orders, sumOrders)
		m.BudgetShare = calc.Percent(m.Spend, grand)
		res.Products = append(res.Products, *m)
	}
	sort.SliceStable(res.Products, func(i, j int) bool {
		return res.Products[i].Spend.GreaterThan(res.Products[j].Spend)
	})
	return res
}
