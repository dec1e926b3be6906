// Package orders reconciles the store's order export into unique orders and
// the order-source tables.
package orders

import (
	"sort"
	"strings"

	"github.com/withindevelopment-activate/within-the-app-sub000/internal/entity"
)

// Config holds the literals of the store export. Matching is case-insensitive
// on trimmed values.
type Config struct {
	FeeMarkers        []string `mapstructure:"fee_markers"`
	CancelledStatuses []string `mapstructure:"cancelled_statuses"`
	DashboardSources  []string `mapstructure:"dashboard_sources"`
	TapMethods        []string `mapstructure:"tap_methods"`
	TabbyMethods      []string `mapstructure:"tabby_methods"`
	TabbyKeywords     []string `mapstructure:"tabby_keywords"`
	TapKeywords       []string `mapstructure:"tap_keywords"`
}

// DefaultConfig returns the literals used by the store's Arabic export.
func DefaultConfig() Config {
	return Config{
		FeeMarkers:        []string{"رسوم", "payment fee"},
		CancelledStatuses: []string{"ملغي", "ملغى", "قيد الاسترجاع", "مسترجع", "cancelled", "canceled", "pending return", "returned"},
		DashboardSources:  []string{"لوحة التحكم", "dashboard"},
		TapMethods:        []string{"بطاقة إئتمانية", "بطاقة ائتمانية", "تحويل بنكي", "credit card", "credit_card", "bank transfer", "bank_transfer"},
		TabbyMethods:      []string{"تابي", "tabby"},
		TabbyKeywords:     []string{"تابي", "tabby"},
		TapKeywords:       []string{"تاب", "tap"},
	}
}

// Reconciled is the outcome of one reconciliation.
type Reconciled struct {
	// Lines are all lines left after fee lines were dropped.
	Lines []entity.OrderLine
	// Filtered excludes cancelled, pending-return and returned orders.
	Filtered []entity.OrderLine
	// Unfiltered excludes customer-service orders but keeps cancellations.
	Unfiltered []entity.OrderLine
	// Orders are the unique orders of the filtered set.
	Orders             []entity.Order
	CancelledIds       map[string]bool
	CustomerServiceIds map[string]bool
}

// Reconciler turns raw export lines into a Reconciled set.
type Reconciler struct {
	c Config
}

// New creates a reconciler. Empty lists in c fall back to the defaults.
func New(c Config) *Reconciler {
	d := DefaultConfig()
	if len(c.FeeMarkers) == 0 {
		c.FeeMarkers = d.FeeMarkers
	}
	if len(c.CancelledStatuses) == 0 {
		c.CancelledStatuses = d.CancelledStatuses
	}
	if len(c.DashboardSources) == 0 {
		c.DashboardSources = d.DashboardSources
	}
	if len(c.TapMethods) == 0 {
		c.TapMethods = d.TapMethods
	}
	if len(c.TabbyMethods) == 0 {
		c.TabbyMethods = d.TabbyMethods
	}
	if len(c.TabbyKeywords) == 0 {
		c.TabbyKeywords = d.TabbyKeywords
	}
	if len(c.TapKeywords) == 0 {
		c.TapKeywords = d.TapKeywords
	}
	return &Reconciler{c: c}
}

func norm(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func equalsAny(s string, set []string) bool {
	s = norm(s)
	for _, v := range set {
		if s == norm(v) {
			return true
		}
	}
	return false
}

func containsAny(s string, set []string) bool {
	s = norm(s)
	for _, v := range set {
		if v = norm(v); v != "" && strings.Contains(s, v) {
			return true
		}
	}
	return false
}

// IsFeeLine reports whether l is a payment-fee line rather than a product.
func (r *Reconciler) IsFeeLine(l entity.OrderLine) bool {
	return strings.TrimSpace(l.CustomerName) == "" && containsAny(l.ProductName, r.c.FeeMarkers)
}

// Reconcile drops fee lines, splits cancelled and customer-service orders
// and deduplicates order headers.
func (r *Reconciler) Reconcile(lines []entity.OrderLine) *Reconciled {
	res := &Reconciled{
		CancelledIds:       map[string]bool{},
		CustomerServiceIds: map[string]bool{},
	}

	for _, l := range lines {
		if r.IsFeeLine(l) {
			continue
		}
		res.Lines = append(res.Lines, l)
		if equalsAny(l.Status, r.c.CancelledStatuses) {
			res.CancelledIds[l.OrderId] = true
		}
		if equalsAny(l.Source, r.c.DashboardSources) {
			res.CustomerServiceIds[l.OrderId] = true
		}
	}

	for _, l := range res.Lines {
		if !res.CancelledIds[l.OrderId] {
			res.Filtered = append(res.Filtered, l)
		}
		if !res.CustomerServiceIds[l.OrderId] {
			res.Unfiltered = append(res.Unfiltered, l)
		}
	}

	res.Orders = r.dedup(res.Filtered, res.CustomerServiceIds)
	return res
}

// dedup keeps one header per order id. Lines with a payment method win over
// lines without one; output follows first appearance of each id.
func (r *Reconciler) dedup(lines []entity.OrderLine, cs map[string]bool) []entity.Order {
	first := map[string]int{}
	for i, l := range lines {
		if _, ok := first[l.OrderId]; !ok {
			first[l.OrderId] = i
		}
	}

	sorted := make([]entity.OrderLine, len(lines))
	copy(sorted, lines)
	sort.SliceStable(sorted, func(i, j int) bool {
		return strings.TrimSpace(sorted[i].PaymentMethod) != "" && strings.TrimSpace(sorted[j].PaymentMethod) == ""
	})

	seen := map[string]bool{}
	out := make([]entity.Order, 0, len(first))
	for _, l := range sorted {
		if seen[l.OrderId] {
			continue
		}
		seen[l.OrderId] = true
		o := entity.Order{
			OrderId:       l.OrderId,
			Channel:       entity.ChannelWebsite,
			PaymentMethod: strings.TrimSpace(l.PaymentMethod),
			Status:        l.Status,
			Total:         l.Total,
			CreatedAt:     l.CreatedAt,
		}
		if cs[l.OrderId] {
			o.Channel = entity.ChannelCustomerService
			o.PaymentBucket = r.noteBucket(l.CustomerNote)
		} else {
			o.PaymentBucket = r.methodBucket(o.PaymentMethod)
		}
		out = append(out, o)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return first[out[i].OrderId] < first[out[j].OrderId]
	})
	return out
}

func (r *Reconciler) methodBucket(method string) string {
	switch {
	case strings.TrimSpace(method) == "":
		return entity.PaymentUnknown
	case equalsAny(method, r.c.TapMethods):
		return entity.PaymentTap
	case equalsAny(method, r.c.TabbyMethods):
		return entity.PaymentTabby
	default:
		return strings.TrimSpace(method)
	}
}

// noteBucket infers the payment of a customer-service order from the agent's
// note. Tabby is checked first; its keywords contain Tap's.
func (r *Reconciler) noteBucket(note string) string {
	switch {
	case containsAny(note, r.c.TabbyKeywords):
		return entity.PaymentTabby
	case containsAny(note, r.c.TapKeywords):
		return entity.PaymentTap
	default:
		return entity.PaymentTap
	}
}
