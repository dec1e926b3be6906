package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/withindevelopment-activate/within-the-app-sub000/internal/dependency"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/entity"
	gerr "github.com/withindevelopment-activate/within-the-app-sub000/internal/errors"
)

// SyncType is the sync status key of the identity merge.
const SyncType = "customer_identity"

// AssistCredit is the purchase credit an add-to-cart from another campaign
// earns when it carried a purchased product.
const AssistCredit = 0.5

// Sync statuses.
const (
	StatusOK      = "ok"
	StatusPartial = "partial"
	StatusFailed  = "failed"
)

var mergedTypes = []entity.EventType{entity.EventAddToCart, entity.EventPurchase}

// Metrics receives identity sync results.
type Metrics interface {
	ObserveIdentitySync(res *SyncResult)
}

// SyncResult summarises one sync run.
type SyncResult struct {
	Fetched       int    `json:"fetched"`
	Groups        int    `json:"groups"`
	Upserted      int    `json:"upserted"`
	Skipped       int    `json:"skipped"`
	Failed        int    `json:"failed"`
	HighWaterMark int64  `json:"high_water_mark"`
	Status        string `json:"status"`
}

// Merger folds add_to_cart and purchase events into customer records.
type Merger struct {
	repo      dependency.Repository
	batchSize int
	metrics   Metrics
}

// NewMerger creates a merger reading events in pages of batchSize.
func NewMerger(repo dependency.Repository, batchSize int, m Metrics) *Merger {
	if batchSize <= 0 {
		batchSize = DefaultConfig().BatchSize
	}
	return &Merger{repo: repo, batchSize: batchSize, metrics: m}
}

// group is the events of one visitor within a page, in id order.
type group struct {
	visitorId string
	events    []entity.VisitorEvent
}

func (g group) firstId() int64 { return g.events[0].Id }

func groupByVisitor(events []entity.VisitorEvent) []group {
	idx := map[string]int{}
	var out []group
	for _, ev := range events {
		i, ok := idx[ev.VisitorId]
		if !ok {
			i = len(out)
			idx[ev.VisitorId] = i
			out = append(out, group{visitorId: ev.VisitorId})
		}
		out[i].events = append(out[i].events, ev)
	}
	return out
}

// Sync folds every event newer than the stored high-water mark.
//
// A group that fails is logged and skipped. The mark then stops just below
// the first event of the earliest failed group so its events are read again
// on the next run, and paging ends with the failing page. Every folded event
// id is recorded with its customer, so replayed events of groups that did
// fold are skipped while the failed group's events still count.
//
// Records are written last-write-wins: two syncs running at once may lose
// one of their updates to the same record.
func (m *Merger) Sync(ctx context.Context) (*SyncResult, error) {
	st, err := m.repo.Sync().GetSyncStatus(ctx, SyncType)
	if err != nil {
		return nil, fmt.Errorf("can't get sync status: %w", err)
	}

	res := &SyncResult{HighWaterMark: st.HighWaterMark}
	cursor := st.HighWaterMark
	var failedAt int64
	var lastErr error

	for failedAt == 0 {
		events, err := m.repo.Events().ListEventsAfter(ctx, cursor, mergedTypes, m.batchSize)
		if err != nil {
			lastErr = fmt.Errorf("can't list events: %w", err)
			break
		}
		if len(events) == 0 {
			break
		}
		res.Fetched += len(events)

		for _, g := range groupByVisitor(events) {
			res.Groups++
			folded, err := m.fold(ctx, g)
			if err != nil {
				slog.Default().ErrorContext(ctx, "can't merge visitor group",
					slog.String("visitor_id", g.visitorId),
					slog.Int64("first_event_id", g.firstId()),
					slog.String("err", err.Error()),
				)
				res.Failed++
				lastErr = err
				if failedAt == 0 || g.firstId() < failedAt {
					failedAt = g.firstId()
				}
				continue
			}
			if folded {
				res.Upserted++
			} else {
				res.Skipped++
			}
		}

		cursor = events[len(events)-1].Id
		if len(events) < m.batchSize {
			break
		}
	}

	res.HighWaterMark = cursor
	if failedAt != 0 {
		res.HighWaterMark = failedAt - 1
	}

	status := StatusOK
	msg := ""
	if lastErr != nil {
		status = StatusPartial
		if res.Groups == 0 {
			status = StatusFailed
		}
		msg = lastErr.Error()
	}
	res.Status = status
	if err := m.repo.Sync().UpdateSyncStatus(ctx, &entity.SyncStatus{
		SyncType:      SyncType,
		HighWaterMark: res.HighWaterMark,
		LastSyncAt:    m.repo.Now(),
		Status:        status,
		RecordsSynced: res.Upserted,
		ErrorMessage:  msg,
	}); err != nil {
		return res, fmt.Errorf("can't update sync status: %w", err)
	}

	if m.metrics != nil {
		m.metrics.ObserveIdentitySync(res)
	}
	slog.Default().InfoContext(ctx, "identity sync finished",
		slog.Int("fetched", res.Fetched),
		slog.Int("groups", res.Groups),
		slog.Int("upserted", res.Upserted),
		slog.Int("failed", res.Failed),
		slog.Int64("high_water_mark", res.HighWaterMark),
	)
	if status == StatusFailed {
		return res, lastErr
	}
	return res, nil
}

// fold merges one group into its customer record. It returns false when all
// of the group's events were already folded by an earlier run.
func (m *Merger) fold(ctx context.Context, g group) (bool, error) {
	folded := false
	err := m.repo.Tx(ctx, func(ctx context.Context, rep dependency.Repository) error {
		ids := make([]int64, 0, len(g.events))
		for _, ev := range g.events {
			ids = append(ids, ev.Id)
		}
		done, err := rep.Customers().FoldedEvents(ctx, ids)
		if err != nil {
			return err
		}
		events := slices.DeleteFunc(slices.Clone(g.events), func(ev entity.VisitorEvent) bool {
			return done[ev.Id]
		})
		if len(events) == 0 {
			return nil
		}

		agg := Aggregate(events)
		existing, err := findExisting(ctx, rep.Customers(), agg)
		if err != nil {
			return err
		}

		rec := Merge(existing, agg)
		if err := rep.Customers().UpsertCustomer(ctx, rec); err != nil {
			return fmt.Errorf("can't upsert customer: %w", err)
		}
		fresh := make([]int64, 0, len(events))
		for _, ev := range events {
			fresh = append(fresh, ev.Id)
		}
		if err := rep.Customers().MarkFolded(ctx, rec.Id, fresh); err != nil {
			return err
		}
		folded = true
		return nil
	})
	return folded, err
}

// findExisting looks a group's record up by customer id, then by shared
// visitor ids, then by the email or mobile key a record may already hold.
func findExisting(ctx context.Context, cs dependency.Customers, agg *entity.CustomerRecord) (*entity.CustomerRecord, error) {
	found := func(rec *entity.CustomerRecord, err error, by string) (*entity.CustomerRecord, bool, error) {
		switch {
		case err == nil:
			return rec, true, nil
		case errors.Is(err, gerr.ErrNotFound):
			return nil, false, nil
		default:
			return nil, false, fmt.Errorf("can't get customer by %s: %w", by, err)
		}
	}

	if agg.CustomerId != "" {
		rec, err := cs.GetCustomerByCustomerId(ctx, agg.CustomerId)
		if rec, ok, err := found(rec, err, "id"); ok || err != nil {
			return rec, err
		}
	}
	rec, err := cs.GetCustomerByVisitorIds(ctx, agg.VisitorIds)
	if rec, ok, err := found(rec, err, "visitor ids"); ok || err != nil {
		return rec, err
	}
	for _, key := range contactKeys(agg) {
		rec, err := cs.GetCustomerByUnifiedKey(ctx, key)
		if rec, ok, err := found(rec, err, "unified key"); ok || err != nil {
			return rec, err
		}
	}
	return nil, nil
}

func contactKeys(rec *entity.CustomerRecord) []string {
	var keys []string
	if rec.Email != "" {
		keys = append(keys, emailKey(rec.Email))
	}
	if rec.Mobile != "" {
		keys = append(keys, mobileKey(rec.Mobile))
	}
	return keys
}

func emailKey(email string) string { return "email:" + strings.ToLower(email) }

func mobileKey(mobile string) string { return "mobile:" + mobile }

func campaignOf(ev entity.VisitorEvent) string {
	if c := strings.TrimSpace(ev.Campaign); c != "" {
		return c
	}
	if c := strings.TrimSpace(ev.UTM.Campaign); c != "" {
		return c
	}
	return entity.DefaultCampaign
}

func sourceOf(ev entity.VisitorEvent) string {
	if s := strings.TrimSpace(ev.SourceRecord.Source); s != "" {
		return s
	}
	return entity.DefaultSource
}

func productNames(ev entity.VisitorEvent) map[string]bool {
	out := map[string]bool{}
	for _, n := range ev.Detail.ProductNames() {
		out[strings.ToLower(strings.Join(strings.Fields(n), " "))] = true
	}
	return out
}

func intersects(a, b map[string]bool) bool {
	for k := range a {
		if b[k] {
			return true
		}
	}
	return false
}

func credit(m map[string]entity.Contribution, key string, c entity.Contribution) {
	m[key] = m[key].Add(c)
}

// Aggregate builds the contribution record of a visitor group.
func Aggregate(events []entity.VisitorEvent) *entity.CustomerRecord {
	rec := &entity.CustomerRecord{
		Campaigns: map[string]entity.Contribution{},
		Sources:   map[string]entity.Contribution{},
	}
	for _, ev := range events {
		if !slices.Contains(rec.VisitorIds, ev.VisitorId) && ev.VisitorId != "" {
			rec.VisitorIds = append(rec.VisitorIds, ev.VisitorId)
		}
		rec.CustomerInfo = fillInfo(rec.CustomerInfo, ev.CustomerInfo, false)
		if ev.CreatedAt.After(rec.LastVisit) {
			rec.LastVisit = ev.CreatedAt
		}
		if ev.Id > rec.LastEventId {
			rec.LastEventId = ev.Id
		}

		var c entity.Contribution
		switch ev.EventType {
		case entity.EventPurchase:
			rec.PurchaseCount++
			c.Purchases = 1
		case entity.EventAddToCart:
			rec.AddToCartCount++
			c.AddToCarts = 1
		default:
			continue
		}
		credit(rec.Campaigns, campaignOf(ev), c)
		credit(rec.Sources, sourceOf(ev), c)
	}

	for _, p := range events {
		if p.EventType != entity.EventPurchase {
			continue
		}
		names := productNames(p)
		if len(names) == 0 {
			continue
		}
		pc := campaignOf(p)
		for _, a := range events {
			if a.EventType != entity.EventAddToCart || campaignOf(a) == pc {
				continue
			}
			if !intersects(productNames(a), names) {
				continue
			}
			assist := entity.Contribution{Purchases: AssistCredit}
			credit(rec.Campaigns, campaignOf(a), assist)
			credit(rec.Sources, sourceOf(a), assist)
		}
	}
	return rec
}

// fillInfo copies the non-empty fields of src into dst. With overwrite
// unset only empty dst fields are filled.
func fillInfo(dst, src entity.CustomerInfo, overwrite bool) entity.CustomerInfo {
	set := func(d *string, s string) {
		if s != "" && (overwrite || *d == "") {
			*d = s
		}
	}
	set(&dst.CustomerId, src.CustomerId)
	set(&dst.Email, src.Email)
	set(&dst.Mobile, src.Mobile)
	set(&dst.Name, src.Name)
	return dst
}

// Merge folds agg into existing. A nil existing creates a new record keyed
// by the group's identity.
func Merge(existing, agg *entity.CustomerRecord) *entity.CustomerRecord {
	if existing == nil {
		rec := *agg
		rec.UnifiedKey = UnifiedKey(agg)
		return &rec
	}

	rec := *existing
	rec.VisitorIds = slices.Clone(existing.VisitorIds)
	for _, v := range agg.VisitorIds {
		if !slices.Contains(rec.VisitorIds, v) {
			rec.VisitorIds = append(rec.VisitorIds, v)
		}
	}
	rec.Campaigns = sumContributions(existing.Campaigns, agg.Campaigns)
	rec.Sources = sumContributions(existing.Sources, agg.Sources)
	rec.PurchaseCount += agg.PurchaseCount
	rec.AddToCartCount += agg.AddToCartCount
	if agg.LastVisit.After(rec.LastVisit) {
		rec.LastVisit = agg.LastVisit
	}
	if agg.LastEventId > rec.LastEventId {
		rec.LastEventId = agg.LastEventId
	}
	rec.CustomerInfo = fillInfo(rec.CustomerInfo, agg.CustomerInfo, true)
	if rec.UnifiedKey == "" {
		rec.UnifiedKey = UnifiedKey(&rec)
	}
	return &rec
}

func sumContributions(a, b map[string]entity.Contribution) map[string]entity.Contribution {
	out := make(map[string]entity.Contribution, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = out[k].Add(v)
	}
	return out
}

// UnifiedKey is the stable upsert key of a record: customer id, then email,
// then mobile, then the first visitor id. It is assigned once and kept when
// the visitor set grows.
func UnifiedKey(rec *entity.CustomerRecord) string {
	switch {
	case rec.CustomerId != "":
		return "customer:" + rec.CustomerId
	case rec.Email != "":
		return emailKey(rec.Email)
	case rec.Mobile != "":
		return mobileKey(rec.Mobile)
	case len(rec.VisitorIds) > 0:
		return "visitor:" + rec.VisitorIds[0]
	}
	return ""
}
