// Package memory is an in-process implementation of the repository used by
// tests and by offline CLI runs that have no database configured.
package memory

import (
	"context"
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/withindevelopment-activate/within-the-app-sub000/internal/dependency"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/entity"
	gerr "github.com/withindevelopment-activate/within-the-app-sub000/internal/errors"
)

// Store keeps every table in maps guarded by a single mutex.
type Store struct {
	mu sync.RWMutex

	catalog   *entity.Catalog
	lines     map[string]entity.OrderLine
	events    []entity.VisitorEvent
	customers []*entity.CustomerRecord
	folded    map[int64]int64
	sync      map[string]entity.SyncStatus

	nextCustomerId int64
	now            func() time.Time
}

var _ dependency.Repository = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		catalog: &entity.Catalog{},
		lines:   map[string]entity.OrderLine{},
		folded:  map[int64]int64{},
		sync:    map[string]entity.SyncStatus{},
		now:     time.Now,
	}
}

// WithClock overrides the store clock.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) Catalog() dependency.Catalog     { return (*catalogStore)(s) }
func (s *Store) Orders() dependency.Orders       { return (*orderStore)(s) }
func (s *Store) Events() dependency.Events       { return (*eventStore)(s) }
func (s *Store) Customers() dependency.Customers { return (*customerStore)(s) }
func (s *Store) Sync() dependency.SyncStatus     { return (*syncStore)(s) }

// Tx runs f against the same store; the memory store has no rollback.
func (s *Store) Tx(ctx context.Context, f func(context.Context, dependency.Repository) error) error {
	return f(ctx, s)
}

func (s *Store) Now() time.Time { return s.now() }

func (s *Store) Close() {}

// AllEvents returns a copy of the stored events.
func (s *Store) AllEvents() []entity.VisitorEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.events)
}

// AllCustomers returns copies of the stored customer records.
func (s *Store) AllCustomers() []entity.CustomerRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]entity.CustomerRecord, 0, len(s.customers))
	for _, c := range s.customers {
		out = append(out, cloneCustomer(c))
	}
	return out
}

type catalogStore Store

func (s *catalogStore) LoadCatalog(_ context.Context) (*entity.Catalog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := *s.catalog
	return &c, nil
}

func (s *catalogStore) ReplaceCatalog(_ context.Context, c *entity.Catalog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.catalog = &cp
	return nil
}

type orderStore Store

func lineKey(l entity.OrderLine) string {
	return l.OrderId + "\x00" + strconv.Itoa(l.LineNo)
}

func (s *orderStore) UpsertOrderLines(_ context.Context, lines []entity.OrderLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range lines {
		s.lines[lineKey(l)] = l
	}
	return nil
}

func (s *orderStore) GetOrderLines(_ context.Context, from, to time.Time) ([]entity.OrderLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []entity.OrderLine
	for _, l := range s.lines {
		if l.CreatedAt.Before(from) || !l.CreatedAt.Before(to) {
			continue
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OrderId != out[j].OrderId {
			return out[i].OrderId < out[j].OrderId
		}
		return out[i].LineNo < out[j].LineNo
	})
	return out, nil
}

type eventStore Store

func (s *eventStore) InsertEvent(_ context.Context, ev *entity.VisitorEventInsert) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := int64(len(s.events) + 1)
	s.events = append(s.events, entity.VisitorEvent{Id: id, VisitorEventInsert: *ev})
	return id, nil
}

func (s *eventStore) PurchaseExists(_ context.Context, orderId string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ev := range s.events {
		if ev.EventType == entity.EventPurchase && ev.Detail.OrderId == orderId {
			return true, nil
		}
	}
	return false, nil
}

func (s *eventStore) SessionSource(_ context.Context, sessionId string) (*entity.SourceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.events) - 1; i >= 0; i-- {
		if s.events[i].SessionId == sessionId {
			src := s.events[i].SourceRecord
			return &src, nil
		}
	}
	return nil, nil
}

func (s *eventStore) sources(match func(entity.VisitorEvent) bool) []entity.SourceRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []entity.SourceRecord
	seen := map[string]bool{}
	for _, ev := range s.events {
		if !match(ev) || ev.IsUnknown() || seen[ev.SourceRecord.Source] {
			continue
		}
		seen[ev.SourceRecord.Source] = true
		out = append(out, ev.SourceRecord)
	}
	return out
}

func (s *eventStore) VisitorSources(_ context.Context, visitorId string) ([]entity.SourceRecord, error) {
	return s.sources(func(ev entity.VisitorEvent) bool { return ev.VisitorId == visitorId }), nil
}

func (s *eventStore) MobileSources(_ context.Context, mobile string) ([]entity.SourceRecord, error) {
	if mobile == "" {
		return nil, nil
	}
	return s.sources(func(ev entity.VisitorEvent) bool { return ev.Mobile == mobile }), nil
}

func (s *eventStore) BackfillSessionSource(_ context.Context, sessionId string, src entity.SourceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.events {
		if s.events[i].SessionId == sessionId {
			s.events[i].SourceRecord = src
		}
	}
	return nil
}

func (s *eventStore) ListEventsAfter(_ context.Context, afterId int64, types []entity.EventType, limit int) ([]entity.VisitorEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []entity.VisitorEvent
	for _, ev := range s.events {
		if ev.Id <= afterId || (len(types) > 0 && !slices.Contains(types, ev.EventType)) {
			continue
		}
		out = append(out, ev)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

type customerStore Store

func cloneCustomer(c *entity.CustomerRecord) entity.CustomerRecord {
	cp := *c
	cp.VisitorIds = slices.Clone(c.VisitorIds)
	cp.Campaigns = cloneContrib(c.Campaigns)
	cp.Sources = cloneContrib(c.Sources)
	return cp
}

func cloneContrib(m map[string]entity.Contribution) map[string]entity.Contribution {
	out := make(map[string]entity.Contribution, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *customerStore) GetCustomerByCustomerId(_ context.Context, customerId string) (*entity.CustomerRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.customers {
		if c.CustomerId != "" && c.CustomerId == customerId {
			cp := cloneCustomer(c)
			return &cp, nil
		}
	}
	return nil, gerr.ErrNotFound
}

func (s *customerStore) GetCustomerByVisitorIds(_ context.Context, visitorIds []string) (*entity.CustomerRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.customers {
		for _, v := range c.VisitorIds {
			if slices.Contains(visitorIds, v) {
				cp := cloneCustomer(c)
				return &cp, nil
			}
		}
	}
	return nil, gerr.ErrNotFound
}

func (s *customerStore) GetCustomerByUnifiedKey(_ context.Context, key string) (*entity.CustomerRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.customers {
		if strings.EqualFold(c.UnifiedKey, key) {
			cp := cloneCustomer(c)
			return &cp, nil
		}
	}
	return nil, gerr.ErrNotFound
}

func (s *customerStore) UpsertCustomer(_ context.Context, rec *entity.CustomerRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.UpdatedAt = s.now()
	for i, c := range s.customers {
		if rec.Id != 0 && c.Id == rec.Id {
			cp := cloneCustomer(rec)
			s.customers[i] = &cp
			return nil
		}
		if rec.Id == 0 && strings.EqualFold(c.UnifiedKey, rec.UnifiedKey) {
			return gerr.ErrConflict
		}
	}
	if rec.Id != 0 {
		return gerr.ErrNotFound
	}
	s.nextCustomerId++
	rec.Id = s.nextCustomerId
	cp := cloneCustomer(rec)
	s.customers = append(s.customers, &cp)
	return nil
}

func (s *customerStore) FoldedEvents(_ context.Context, eventIds []int64) (map[int64]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := map[int64]bool{}
	for _, id := range eventIds {
		if _, ok := s.folded[id]; ok {
			out[id] = true
		}
	}
	return out, nil
}

func (s *customerStore) MarkFolded(_ context.Context, customerId int64, eventIds []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range eventIds {
		if _, ok := s.folded[id]; ok {
			return gerr.ErrConflict
		}
	}
	for _, id := range eventIds {
		s.folded[id] = customerId
	}
	return nil
}

type syncStore Store

func (s *syncStore) GetSyncStatus(_ context.Context, syncType string) (*entity.SyncStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.sync[syncType]
	if !ok {
		return &entity.SyncStatus{SyncType: syncType}, nil
	}
	return &st, nil
}

func (s *syncStore) UpdateSyncStatus(_ context.Context, st *entity.SyncStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sync[st.SyncType] = *st
	return nil
}
