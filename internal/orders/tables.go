package orders

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/calc"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/entity"
)

func lv(label string, v decimal.Decimal) entity.LabelValue {
	return entity.LabelValue{Label: label, Value: v}
}

func count(label string, n int) entity.LabelValue {
	return lv(label, decimal.NewFromInt(int64(n)))
}

// bucketOrder puts Tap and Tabby first, the rest alphabetically.
func bucketOrder(counts map[string]int) []string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	rank := func(k string) int {
		switch k {
		case entity.PaymentTap:
			return 0
		case entity.PaymentTabby:
			return 1
		case entity.PaymentUnknown:
			return 3
		}
		return 2
	}
	sort.Slice(keys, func(i, j int) bool {
		ri, rj := rank(keys[i]), rank(keys[j])
		if ri != rj {
			return ri < rj
		}
		return keys[i] < keys[j]
	})
	return keys
}

// SourceBreakdown builds the order-source table: website vs customer-service
// orders and their payment buckets, each as a count, a share of its cohort and
// a share of all unique orders.
func SourceBreakdown(r *Reconciled) []entity.LabelValue {
	total := len(r.Orders)
	cohorts := map[entity.OrderChannel]map[string]int{
		entity.ChannelWebsite:         {},
		entity.ChannelCustomerService: {},
	}
	sizes := map[entity.OrderChannel]int{}
	for _, o := range r.Orders {
		cohorts[o.Channel][o.PaymentBucket]++
		sizes[o.Channel]++
	}

	out := []entity.LabelValue{count("Total orders", total)}
	for _, ch := range []struct {
		channel entity.OrderChannel
		label   string
	}{
		{entity.ChannelWebsite, "Website"},
		{entity.ChannelCustomerService, "Customer service"},
	} {
		n := sizes[ch.channel]
		out = append(out,
			count(ch.label+" orders", n),
			lv(ch.label+" orders % of total", calc.PercentInt(n, total)),
		)
		buckets := cohorts[ch.channel]
		for _, b := range bucketOrder(buckets) {
			c := buckets[b]
			out = append(out,
				count(fmt.Sprintf("%s %s orders", ch.label, b), c),
				lv(fmt.Sprintf("%s %s %% of %s", ch.label, b, lowerFirst(ch.label)), calc.PercentInt(c, n)),
				lv(fmt.Sprintf("%s %s %% of total", ch.label, b), calc.PercentInt(c, total)),
			)
		}
	}
	return out
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	b := []byte(s)
	if b[0] >= 'A' && b[0] <= 'Z' {
		b[0] += 'a' - 'A'
	}
	return string(b)
}

// GeneralInputs are the figures the general analysis needs besides orders.
type GeneralInputs struct {
	AdSpend         decimal.Decimal
	InfluencerSpend decimal.Decimal
	ActiveUsers     int64
}

// UniqueIds counts distinct order ids in lines.
func UniqueIds(lines []entity.OrderLine) int {
	seen := map[string]bool{}
	for _, l := range lines {
		seen[l.OrderId] = true
	}
	return len(seen)
}

// Sales sums the totals of the unique orders.
func Sales(r *Reconciled) decimal.Decimal {
	total := decimal.Zero
	for _, o := range r.Orders {
		total = total.Add(o.Total)
	}
	return total
}

// GeneralAnalysis builds the headline table of a run.
func GeneralAnalysis(r *Reconciled, in GeneralInputs) []entity.LabelValue {
	sales := calc.Round2(Sales(r))
	orders := len(r.Orders)
	withInfluencer := in.AdSpend.Add(in.InfluencerSpend)
	websiteOrders := UniqueIds(r.Unfiltered)
	users := decimal.NewFromInt(in.ActiveUsers)

	return []entity.LabelValue{
		lv("Ad spend", calc.Round2(in.AdSpend)),
		lv("Influencer spend", calc.Round2(in.InfluencerSpend)),
		lv("Total spend", calc.Round2(withInfluencer)),
		lv("Sales", sales),
		count("Orders", orders),
		count("Website orders incl. cancelled", websiteOrders),
		lv("ROI without influencer", calc.ROAS(sales, in.AdSpend)),
		lv("ROI with influencer", calc.ROAS(sales, withInfluencer)),
		lv("CPA", calc.CPA(in.AdSpend, orders)),
		lv("CPA with influencer", calc.CPA(withInfluencer, orders)),
		lv("Cart average", calc.CartAverage(sales, orders)),
		count("Active users", int(in.ActiveUsers)),
		lv("Conversion rate %", calc.Percent(decimal.NewFromInt(int64(websiteOrders)), users)),
		lv("Cost per visitor", calc.Div(in.AdSpend, users).Round(2)),
	}
}
