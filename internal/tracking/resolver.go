package tracking

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/withindevelopment-activate/within-the-app-sub000/internal/dependency"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/entity"
)

// Config holds tracking configuration.
type Config struct {
	StoreURL       string   `mapstructure:"store_url"`
	CrawlerMarkers []string `mapstructure:"crawler_markers"`
}

// DefaultConfig returns the default tracking configuration.
func DefaultConfig() Config {
	return Config{
		CrawlerMarkers: []string{
			"bot", "crawler", "spider", "slurp", "facebookexternalhit",
			"headlesschrome", "lighthouse", "pingdom", "curl/", "python-requests",
		},
	}
}

// Resolver decides the traffic source of an event and keeps the session's
// recorded source consistent with it.
type Resolver struct {
	events    dependency.Events
	store     *url.URL
	storeHost string
}

// NewResolver creates a resolver for the store at storeURL.
func NewResolver(events dependency.Events, storeURL string) (*Resolver, error) {
	r := &Resolver{events: events}
	if storeURL = strings.TrimSpace(storeURL); storeURL != "" {
		u, err := url.Parse(storeURL)
		if err != nil {
			return nil, fmt.Errorf("invalid store url %q: %w", storeURL, err)
		}
		r.store = u
		r.storeHost = hostOf(u.Host)
	}
	return r, nil
}

// Infer picks the strongest source the event itself carries. It does not
// consult any history.
func (r *Resolver) Infer(ev *entity.VisitorEventInsert) entity.SourceRecord {
	cands := r.candidates(ev)
	best := candidate{source: entity.SourceUnknown, typ: entity.AttributionUnknown}
	if len(cands) > 0 {
		best = cands[0]
		for _, c := range cands[1:] {
			if c.weight() > best.weight() {
				best = c
			}
		}
	}

	if best.source == entity.SourceDirect {
		if strings.TrimSpace(ev.Referrer) == "" && isStoreRoot(ev.PageURL, r.store) {
			return entity.SourceRecord{Source: entity.SourceDirect, Type: entity.AttributionDirectConfirmed}
		}
		return entity.SourceRecord{Source: entity.SourceUnknown, Type: entity.AttributionUnknown}
	}
	return entity.SourceRecord{Source: best.source, Type: best.typ}
}

func (r *Resolver) candidates(ev *entity.VisitorEventInsert) []candidate {
	var out []candidate
	if s := normalizeSource(ev.UTM.Source); s != "" {
		c := candidate{source: s, typ: entity.AttributionUTM}
		if s != entity.SourceDirect {
			return []candidate{c}
		}
		out = append(out, c)
	}
	if s, ok := FromReferrer(ev.Referrer, r.storeHost); ok {
		out = append(out, candidate{source: s, typ: entity.AttributionReferrer})
	}
	if s, ok := FromClickIds(ev.PageURL); ok {
		out = append(out, candidate{source: s, typ: entity.AttributionReferrer})
	}
	if s, ok := FromUserAgent(ev.ClientInfo.UserAgent); ok {
		out = append(out, candidate{source: s, typ: entity.AttributionUserAgent})
	}
	if s := normalizeSource(ev.ClientSource); s != "" {
		out = append(out, candidate{source: s, typ: entity.AttributionClientReported})
	}
	if strings.TrimSpace(ev.Referrer) == "" {
		out = append(out, candidate{source: entity.SourceDirect, typ: entity.AttributionDirect})
	}
	return out
}

func recordWeight(s entity.SourceRecord) int {
	if s.IsUnknown() {
		return 0
	}
	return candidate{source: s.Source, typ: s.Type}.weight()
}

func strongest(recs []entity.SourceRecord) (entity.SourceRecord, bool) {
	var best entity.SourceRecord
	found := false
	for _, s := range recs {
		if s.IsUnknown() {
			continue
		}
		if !found || recordWeight(s) > recordWeight(best) {
			best, found = s, true
		}
	}
	return best, found
}

// Resolve returns the source to store with ev. A session that already has a
// known source keeps it unless the event carries a strictly heavier one.
// Sessions without one fall back to the visitor's history and then to the
// mobile number's history. An inherited source keeps its attribution type,
// and with it its weight. Whenever the session's source changes its earlier
// rows are rewritten to match.
//
// Reads and writes are not serialised: two requests of one session racing
// through Resolve leave whichever wrote last.
func (r *Resolver) Resolve(ctx context.Context, ev *entity.VisitorEventInsert) (entity.SourceRecord, error) {
	cand := r.Infer(ev)
	if ev.SessionId == "" {
		return cand, nil
	}

	rec, err := r.events.SessionSource(ctx, ev.SessionId)
	if err != nil {
		return entity.SourceRecord{}, fmt.Errorf("can't get session source: %w", err)
	}

	if rec != nil && !rec.IsUnknown() {
		if recordWeight(cand) <= recordWeight(*rec) {
			return *rec, nil
		}
		if err := r.events.BackfillSessionSource(ctx, ev.SessionId, cand); err != nil {
			return entity.SourceRecord{}, fmt.Errorf("can't backfill session source: %w", err)
		}
		slog.Default().DebugContext(ctx, "session source upgraded",
			slog.String("session_id", ev.SessionId),
			slog.String("from", rec.Source),
			slog.String("to", cand.Source),
		)
		return cand, nil
	}

	best := cand
	if ev.VisitorId != "" {
		hist, err := r.events.VisitorSources(ctx, ev.VisitorId)
		if err != nil {
			return entity.SourceRecord{}, fmt.Errorf("can't get visitor sources: %w", err)
		}
		if h, ok := strongest(hist); ok && recordWeight(h) > recordWeight(best) {
			best = h
		}
	}
	if ev.Mobile != "" {
		hist, err := r.events.MobileSources(ctx, ev.Mobile)
		if err != nil {
			return entity.SourceRecord{}, fmt.Errorf("can't get mobile sources: %w", err)
		}
		if h, ok := strongest(hist); ok && recordWeight(h) > recordWeight(best) {
			best = h
		}
	}

	if rec != nil && !best.IsUnknown() {
		if err := r.events.BackfillSessionSource(ctx, ev.SessionId, best); err != nil {
			return entity.SourceRecord{}, fmt.Errorf("can't backfill session source: %w", err)
		}
	}
	return best, nil
}
