package tracking

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/asaskevich/govalidator"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/dependency"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/entity"
	gerr "github.com/withindevelopment-activate/within-the-app-sub000/internal/errors"
)

// Outcomes reported to Metrics.
const (
	OutcomeStored    = "stored"
	OutcomeCrawler   = "crawler"
	OutcomeDuplicate = "duplicate_purchase"
	OutcomeInvalid   = "invalid"
	OutcomeError     = "error"
)

// Metrics receives tracking outcomes.
type Metrics interface {
	ObserveTrack(eventType, outcome string)
}

// Request is the tracking payload sent by the storefront script.
type Request struct {
	VisitorId     string              `json:"visitor_id" valid:"required,stringlength(1|128)"`
	SessionId     string              `json:"session_id" valid:"required,stringlength(1|128)"`
	EventType     string              `json:"event_type" valid:"required,in(pageview|add_to_cart|purchase)"`
	EventDetail   json.RawMessage     `json:"event_detail" valid:"-"`
	UTMSource     string              `json:"utm_source" valid:"-"`
	UTMMedium     string              `json:"utm_medium" valid:"-"`
	UTMCampaign   string              `json:"utm_campaign" valid:"-"`
	UTMTerm       string              `json:"utm_term" valid:"-"`
	UTMContent    string              `json:"utm_content" valid:"-"`
	Referrer      string              `json:"referrer" valid:"-"`
	PageURL       string              `json:"page_url" valid:"-"`
	TrafficSource string              `json:"traffic_source" valid:"-"`
	ClientInfo    entity.ClientInfo   `json:"client_info" valid:"-"`
	Customer      entity.CustomerInfo `json:"customer" valid:"-"`
	IP            string              `json:"-" valid:"-"`
}

// Result describes what happened to a tracking request.
type Result struct {
	Stored  bool                `json:"stored"`
	EventId int64               `json:"event_id,omitempty"`
	Reason  string              `json:"reason,omitempty"`
	Source  entity.SourceRecord `json:"source"`
}

// Tracker validates, attributes and stores visitor events.
type Tracker struct {
	c        Config
	events   dependency.Events
	resolver *Resolver
	metrics  Metrics
	now      func() time.Time
}

// New creates a tracker on top of the events store.
func New(c Config, events dependency.Events, m Metrics) (*Tracker, error) {
	if len(c.CrawlerMarkers) == 0 {
		c.CrawlerMarkers = DefaultConfig().CrawlerMarkers
	}
	r, err := NewResolver(events, c.StoreURL)
	if err != nil {
		return nil, err
	}
	return &Tracker{
		c:        c,
		events:   events,
		resolver: r,
		metrics:  m,
		now:      time.Now,
	}, nil
}

func (t *Tracker) observe(eventType, outcome string) {
	if t.metrics != nil {
		t.metrics.ObserveTrack(eventType, outcome)
	}
}

// Track records one event. Crawler hits and repeated purchases are dropped
// without error and reported through Result.Reason.
func (t *Tracker) Track(ctx context.Context, req Request) (*Result, error) {
	ev, err := t.toEvent(ctx, req)
	if err != nil {
		t.observe(req.EventType, OutcomeInvalid)
		return nil, err
	}

	if IsCrawler(ev.ClientInfo.UserAgent, t.c.CrawlerMarkers) {
		t.observe(req.EventType, OutcomeCrawler)
		return &Result{Reason: OutcomeCrawler}, nil
	}

	if ev.EventType == entity.EventPurchase && ev.Detail.OrderId != "" {
		exists, err := t.events.PurchaseExists(ctx, ev.Detail.OrderId)
		if err != nil {
			t.observe(req.EventType, OutcomeError)
			return nil, fmt.Errorf("can't check purchase: %w", err)
		}
		if exists {
			slog.Default().InfoContext(ctx, "duplicate purchase ignored",
				slog.String("order_id", ev.Detail.OrderId),
				slog.String("visitor_id", ev.VisitorId),
			)
			t.observe(req.EventType, OutcomeDuplicate)
			return &Result{Reason: OutcomeDuplicate}, nil
		}
	}

	src, err := t.resolver.Resolve(ctx, ev)
	if err != nil {
		t.observe(req.EventType, OutcomeError)
		return nil, fmt.Errorf("can't resolve source: %w", err)
	}
	ev.SourceRecord = src

	id, err := t.events.InsertEvent(ctx, ev)
	if err != nil {
		t.observe(req.EventType, OutcomeError)
		return nil, fmt.Errorf("can't insert event: %w", err)
	}
	t.observe(req.EventType, OutcomeStored)
	return &Result{Stored: true, EventId: id, Source: src}, nil
}

func (t *Tracker) toEvent(ctx context.Context, req Request) (*entity.VisitorEventInsert, error) {
	req.VisitorId = strings.TrimSpace(req.VisitorId)
	req.SessionId = strings.TrimSpace(req.SessionId)
	req.EventType = strings.ToLower(strings.TrimSpace(req.EventType))
	if _, err := govalidator.ValidateStruct(req); err != nil {
		return nil, gerr.NewValidation("request", "%v", err)
	}

	detail, err := ParseDetail(req.EventDetail)
	if err != nil {
		slog.Default().WarnContext(ctx, "event detail partly dropped",
			slog.String("visitor_id", req.VisitorId),
			slog.String("event_type", req.EventType),
			slog.String("err", err.Error()),
		)
	}

	cust := req.Customer
	cust.Email = strings.ToLower(strings.TrimSpace(cust.Email))
	if cust.Email != "" && !govalidator.IsEmail(cust.Email) {
		cust.Email = ""
	}
	cust.Mobile = normalizeMobile(cust.Mobile)

	return &entity.VisitorEventInsert{
		VisitorId: req.VisitorId,
		SessionId: req.SessionId,
		EventType: entity.EventType(req.EventType),
		Detail:    detail,
		UTM: entity.UTM{
			Source:   strings.TrimSpace(req.UTMSource),
			Medium:   strings.TrimSpace(req.UTMMedium),
			Campaign: strings.TrimSpace(req.UTMCampaign),
			Term:     strings.TrimSpace(req.UTMTerm),
			Content:  strings.TrimSpace(req.UTMContent),
		},
		Referrer:     strings.TrimSpace(req.Referrer),
		PageURL:      strings.TrimSpace(req.PageURL),
		ClientSource: strings.TrimSpace(req.TrafficSource),
		IP:           req.IP,
		ClientInfo:   req.ClientInfo,
		CustomerInfo: cust,
		Campaign:     strings.TrimSpace(req.UTMCampaign),
		CreatedAt:    t.now().UTC(),
	}, nil
}

// normalizeMobile keeps digits and a leading plus sign.
func normalizeMobile(s string) string {
	s = strings.TrimSpace(s)
	var b strings.Builder
	for i, r := range s {
		if (r >= '0' && r <= '9') || (r == '+' && i == 0) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
