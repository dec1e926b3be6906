package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/withindevelopment-activate/within-the-app-sub000/internal/dependency"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/entity"
)

type eventStore struct {
	*MYSQLStore
}

// Events returns an object implementing the Events interface.
func (ms *MYSQLStore) Events() dependency.Events {
	return &eventStore{
		MYSQLStore: ms,
	}
}

// eventRow is a visitor_event row with the JSON columns still encoded.
type eventRow struct {
	entity.VisitorEvent
	DetailJSON     sql.NullString `db:"detail"`
	ClientInfoJSON sql.NullString `db:"client_info"`
	OrderId        string         `db:"order_id"`
}

const eventColumns = `
	id, visitor_id, session_id, event_type, detail, order_id,
	utm_source, utm_medium, utm_campaign, utm_term, utm_content,
	COALESCE(referrer, '') AS referrer, COALESCE(page_url, '') AS page_url,
	client_source, ip, client_info,
	customer_id, email, mobile, customer_name,
	source, attribution_type, campaign, created_at`

// InsertEvent appends a visitor event and returns its sequence id.
func (ms *eventStore) InsertEvent(ctx context.Context, ev *entity.VisitorEventInsert) (int64, error) {
	detail, err := json.Marshal(ev.Detail)
	if err != nil {
		return 0, fmt.Errorf("can't marshal event detail: %w", err)
	}
	clientInfo, err := json.Marshal(ev.ClientInfo)
	if err != nil {
		return 0, fmt.Errorf("can't marshal client info: %w", err)
	}

	query := `
		INSERT INTO visitor_event (
			visitor_id, session_id, event_type, detail, order_id,
			utm_source, utm_medium, utm_campaign, utm_term, utm_content,
			referrer, page_url, client_source, ip, client_info,
			customer_id, email, mobile, customer_name,
			source, attribution_type, campaign, created_at
		) VALUES (
			:visitorId, :sessionId, :eventType, :detail, :orderId,
			:utmSource, :utmMedium, :utmCampaign, :utmTerm, :utmContent,
			:referrer, :pageUrl, :clientSource, :ip, :clientInfo,
			:customerId, :email, :mobile, :customerName,
			:source, :attributionType, :campaign, :createdAt
		)`
	id, err := ExecNamedLastId(ctx, ms.db, query, map[string]any{
		"visitorId":       ev.VisitorId,
		"sessionId":       ev.SessionId,
		"eventType":       ev.EventType,
		"detail":          string(detail),
		"orderId":         ev.Detail.OrderId,
		"utmSource":       ev.UTM.Source,
		"utmMedium":       ev.UTM.Medium,
		"utmCampaign":     ev.UTM.Campaign,
		"utmTerm":         ev.UTM.Term,
		"utmContent":      ev.UTM.Content,
		"referrer":        ev.Referrer,
		"pageUrl":         ev.PageURL,
		"clientSource":    ev.ClientSource,
		"ip":              ev.IP,
		"clientInfo":      string(clientInfo),
		"customerId":      ev.CustomerId,
		"email":           ev.Email,
		"mobile":          ev.Mobile,
		"customerName":    ev.CustomerInfo.Name,
		"source":          ev.SourceRecord.Source,
		"attributionType": ev.Type,
		"campaign":        ev.Campaign,
		"createdAt":       ev.CreatedAt.UTC(),
	})
	if err != nil {
		return 0, fmt.Errorf("can't insert visitor event: %w", err)
	}
	return int64(id), nil
}

// PurchaseExists compares the extracted order id column, never the raw payload.
func (ms *eventStore) PurchaseExists(ctx context.Context, orderId string) (bool, error) {
	query := `SELECT COUNT(*) FROM visitor_event WHERE event_type = :eventType AND order_id = :orderId`
	n, err := QueryCountNamed(ctx, ms.db, query, map[string]any{
		"eventType": entity.EventPurchase,
		"orderId":   orderId,
	})
	if err != nil {
		return false, fmt.Errorf("can't count purchases: %w", err)
	}
	return n > 0, nil
}

// SessionSource returns the source of the session's latest row, nil if the
// session has no rows.
func (ms *eventStore) SessionSource(ctx context.Context, sessionId string) (*entity.SourceRecord, error) {
	query := `
		SELECT source, attribution_type
		FROM visitor_event
		WHERE session_id = :sessionId
		ORDER BY id DESC
		LIMIT 1`
	src, err := QueryNamedOne[entity.SourceRecord](ctx, ms.db, query, map[string]any{"sessionId": sessionId})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("can't get session source: %w", err)
	}
	return &src, nil
}

func (ms *eventStore) sources(ctx context.Context, column, value string) ([]entity.SourceRecord, error) {
	query := fmt.Sprintf(`
		SELECT DISTINCT source, attribution_type
		FROM visitor_event
		WHERE %s = :value AND source <> '' AND source <> :unknown`, column)
	return QueryListNamed[entity.SourceRecord](ctx, ms.db, query, map[string]any{
		"value":   value,
		"unknown": entity.SourceUnknown,
	})
}

// VisitorSources returns the distinct non-unknown sources recorded for a visitor.
// A source may appear once per attribution type.
func (ms *eventStore) VisitorSources(ctx context.Context, visitorId string) ([]entity.SourceRecord, error) {
	recs, err := ms.sources(ctx, "visitor_id", visitorId)
	if err != nil {
		return nil, fmt.Errorf("can't get visitor sources: %w", err)
	}
	return recs, nil
}

// MobileSources returns the distinct non-unknown sources recorded for a mobile number.
func (ms *eventStore) MobileSources(ctx context.Context, mobile string) ([]entity.SourceRecord, error) {
	if mobile == "" {
		return nil, nil
	}
	recs, err := ms.sources(ctx, "mobile", mobile)
	if err != nil {
		return nil, fmt.Errorf("can't get mobile sources: %w", err)
	}
	return recs, nil
}

// BackfillSessionSource rewrites the source of every stored row of a session.
func (ms *eventStore) BackfillSessionSource(ctx context.Context, sessionId string, src entity.SourceRecord) error {
	query := `
		UPDATE visitor_event
		SET source = :source, attribution_type = :attributionType
		WHERE session_id = :sessionId`
	return ExecNamed(ctx, ms.db, query, map[string]any{
		"source":          src.Source,
		"attributionType": src.Type,
		"sessionId":       sessionId,
	})
}

// ListEventsAfter pages events with id > afterId in id order. Rows whose
// JSON columns cannot be decoded are returned with empty payloads.
func (ms *eventStore) ListEventsAfter(ctx context.Context, afterId int64, types []entity.EventType, limit int) ([]entity.VisitorEvent, error) {
	query := `SELECT ` + eventColumns + `
		FROM visitor_event
		WHERE id > :afterId AND event_type IN (:types)
		ORDER BY id
		LIMIT :limit`
	if len(types) == 0 {
		types = []entity.EventType{entity.EventPageView, entity.EventAddToCart, entity.EventPurchase}
	}
	rows, err := QueryListNamed[eventRow](ctx, ms.db, query, map[string]any{
		"afterId": afterId,
		"types":   types,
		"limit":   limit,
	})
	if err != nil {
		return nil, fmt.Errorf("can't list events: %w", err)
	}

	out := make([]entity.VisitorEvent, 0, len(rows))
	for _, r := range rows {
		ev := r.VisitorEvent
		if r.DetailJSON.Valid && r.DetailJSON.String != "" {
			if err := json.Unmarshal([]byte(r.DetailJSON.String), &ev.Detail); err != nil {
				slog.Default().WarnContext(ctx, "malformed event detail",
					slog.Int64("id", r.Id),
					slog.String("err", err.Error()),
				)
				ev.Detail = entity.EventDetail{}
			}
		}
		if ev.Detail.OrderId == "" {
			ev.Detail.OrderId = r.OrderId
		}
		if r.ClientInfoJSON.Valid && r.ClientInfoJSON.String != "" {
			if err := json.Unmarshal([]byte(r.ClientInfoJSON.String), &ev.ClientInfo); err != nil {
				ev.ClientInfo = entity.ClientInfo{}
			}
		}
		out = append(out, ev)
	}
	return out, nil
}
