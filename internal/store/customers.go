package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/dependency"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/entity"
	gerr "github.com/withindevelopment-activate/within-the-app-sub000/internal/errors"
)

type customerStore struct {
	*MYSQLStore
}

// Customers returns an object implementing the Customers interface.
func (ms *MYSQLStore) Customers() dependency.Customers {
	return &customerStore{
		MYSQLStore: ms,
	}
}

const (
	contributionCampaign = "campaign"
	contributionSource   = "source"
)

type contributionRow struct {
	Kind       string          `db:"kind"`
	Label      string          `db:"label"`
	Purchases  decimal.Decimal `db:"purchases"`
	AddToCarts int             `db:"add_to_carts"`
}

const customerColumns = `
	c.id, c.unified_key, c.customer_id, c.email, c.mobile, c.customer_name,
	c.purchase_count, c.add_to_cart_count, c.last_visit, c.last_event_id, c.updated_at`

// GetCustomerByCustomerId returns the record of a store customer id.
func (ms *customerStore) GetCustomerByCustomerId(ctx context.Context, customerId string) (*entity.CustomerRecord, error) {
	query := `SELECT ` + customerColumns + ` FROM customer c WHERE c.customer_id = :customerId ORDER BY c.id LIMIT 1`
	return ms.getOne(ctx, query, map[string]any{"customerId": customerId})
}

// GetCustomerByVisitorIds returns the first record sharing any visitor id.
func (ms *customerStore) GetCustomerByVisitorIds(ctx context.Context, visitorIds []string) (*entity.CustomerRecord, error) {
	if len(visitorIds) == 0 {
		return nil, gerr.ErrNotFound
	}
	query := `
		SELECT ` + customerColumns + `
		FROM customer c
		JOIN customer_visitor cv ON cv.customer_id = c.id
		WHERE cv.visitor_id IN (:visitorIds)
		ORDER BY c.id
		LIMIT 1`
	return ms.getOne(ctx, query, map[string]any{"visitorIds": visitorIds})
}

// GetCustomerByUnifiedKey returns the record holding a unified key.
func (ms *customerStore) GetCustomerByUnifiedKey(ctx context.Context, key string) (*entity.CustomerRecord, error) {
	query := `SELECT ` + customerColumns + ` FROM customer c WHERE c.unified_key = :key`
	return ms.getOne(ctx, query, map[string]any{"key": key})
}

func (ms *customerStore) getOne(ctx context.Context, query string, params map[string]any) (*entity.CustomerRecord, error) {
	rec, err := QueryNamedOne[entity.CustomerRecord](ctx, ms.db, query, params)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, gerr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("can't get customer: %w", err)
	}

	visitors, err := QueryListNamed[positioned](ctx, ms.db, `
		SELECT CAST(customer_id AS CHAR) AS k, position, visitor_id AS v
		FROM customer_visitor
		WHERE customer_id = :id
		ORDER BY position`, map[string]any{"id": rec.Id})
	if err != nil {
		return nil, fmt.Errorf("can't get customer visitors: %w", err)
	}
	for _, v := range visitors {
		rec.VisitorIds = append(rec.VisitorIds, v.Value)
	}

	contributions, err := QueryListNamed[contributionRow](ctx, ms.db, `
		SELECT kind, label, purchases, add_to_carts
		FROM customer_contribution
		WHERE customer_id = :id`, map[string]any{"id": rec.Id})
	if err != nil {
		return nil, fmt.Errorf("can't get customer contributions: %w", err)
	}
	rec.Campaigns = map[string]entity.Contribution{}
	rec.Sources = map[string]entity.Contribution{}
	for _, c := range contributions {
		v := entity.Contribution{Purchases: c.Purchases.InexactFloat64(), AddToCarts: c.AddToCarts}
		if c.Kind == contributionCampaign {
			rec.Campaigns[c.Label] = v
		} else {
			rec.Sources[c.Label] = v
		}
	}
	return &rec, nil
}

// UpsertCustomer updates rec by id, or inserts it when it has no id yet.
// Visitor ids and contributions are replaced wholesale. An insert whose
// unified key is taken fails with gerr.ErrConflict instead of overwriting
// the other record.
func (ms *customerStore) UpsertCustomer(ctx context.Context, rec *entity.CustomerRecord) error {
	params := map[string]any{
		"id":             rec.Id,
		"unifiedKey":     rec.UnifiedKey,
		"customerId":     rec.CustomerId,
		"email":          rec.Email,
		"mobile":         rec.Mobile,
		"customerName":   rec.CustomerInfo.Name,
		"purchaseCount":  rec.PurchaseCount,
		"addToCartCount": rec.AddToCartCount,
		"lastVisit":      rec.LastVisit.UTC(),
		"lastEventId":    rec.LastEventId,
	}

	if rec.Id != 0 {
		query := `
			UPDATE customer SET
				unified_key = :unifiedKey,
				customer_id = :customerId,
				email = :email,
				mobile = :mobile,
				customer_name = :customerName,
				purchase_count = :purchaseCount,
				add_to_cart_count = :addToCartCount,
				last_visit = :lastVisit,
				last_event_id = :lastEventId
			WHERE id = :id`
		if err := ExecNamed(ctx, ms.db, query, params); err != nil {
			return fmt.Errorf("can't update customer: %w", err)
		}
	} else {
		query := `
			INSERT INTO customer (
				unified_key, customer_id, email, mobile, customer_name,
				purchase_count, add_to_cart_count, last_visit, last_event_id
			) VALUES (
				:unifiedKey, :customerId, :email, :mobile, :customerName,
				:purchaseCount, :addToCartCount, :lastVisit, :lastEventId
			)`
		id, err := ExecNamedLastId(ctx, ms.db, query, params)
		if ms.IsErrUniqueViolation(err) {
			return fmt.Errorf("can't insert customer %s: %w", rec.UnifiedKey, gerr.ErrConflict)
		}
		if err != nil {
			return fmt.Errorf("can't insert customer: %w", err)
		}
		rec.Id = int64(id)
	}

	if _, err := ms.db.ExecContext(ctx, `DELETE FROM customer_visitor WHERE customer_id = ?`, rec.Id); err != nil {
		return fmt.Errorf("can't clear customer visitors: %w", err)
	}
	if _, err := ms.db.ExecContext(ctx, `DELETE FROM customer_contribution WHERE customer_id = ?`, rec.Id); err != nil {
		return fmt.Errorf("can't clear customer contributions: %w", err)
	}

	var visitors []map[string]any
	for i, v := range rec.VisitorIds {
		visitors = append(visitors, map[string]any{"customer_id": rec.Id, "position": i, "visitor_id": v})
	}
	var contributions []map[string]any
	add := func(kind string, m map[string]entity.Contribution) {
		for label, c := range m {
			contributions = append(contributions, map[string]any{
				"customer_id":  rec.Id,
				"kind":         kind,
				"label":        label,
				"purchases":    decimal.NewFromFloat(c.Purchases),
				"add_to_carts": c.AddToCarts,
			})
		}
	}
	add(contributionCampaign, rec.Campaigns)
	add(contributionSource, rec.Sources)

	for _, chunk := range chunks(visitors, 500) {
		if err := BulkInsert(ctx, ms.db, "customer_visitor", chunk); err != nil {
			return fmt.Errorf("can't insert customer visitors: %w", err)
		}
	}
	for _, chunk := range chunks(contributions, 500) {
		if err := BulkInsert(ctx, ms.db, "customer_contribution", chunk); err != nil {
			return fmt.Errorf("can't insert customer contributions: %w", err)
		}
	}
	return nil
}

type foldedRow struct {
	EventId int64 `db:"event_id"`
}

// FoldedEvents returns which of eventIds were already merged into a record.
func (ms *customerStore) FoldedEvents(ctx context.Context, eventIds []int64) (map[int64]bool, error) {
	out := map[int64]bool{}
	if len(eventIds) == 0 {
		return out, nil
	}
	rows, err := QueryListNamed[foldedRow](ctx, ms.db, `
		SELECT event_id FROM customer_event WHERE event_id IN (:eventIds)`,
		map[string]any{"eventIds": eventIds})
	if err != nil {
		return nil, fmt.Errorf("can't get folded events: %w", err)
	}
	for _, r := range rows {
		out[r.EventId] = true
	}
	return out, nil
}

// MarkFolded records that eventIds were merged into customerId. An event is
// folded once; a second attempt fails with gerr.ErrConflict.
func (ms *customerStore) MarkFolded(ctx context.Context, customerId int64, eventIds []int64) error {
	rows := make([]map[string]any, 0, len(eventIds))
	for _, id := range eventIds {
		rows = append(rows, map[string]any{"event_id": id, "customer_id": customerId})
	}
	for _, chunk := range chunks(rows, 500) {
		err := BulkInsert(ctx, ms.db, "customer_event", chunk)
		if ms.IsErrUniqueViolation(err) {
			return fmt.Errorf("can't mark events folded: %w", gerr.ErrConflict)
		}
		if err != nil {
			return fmt.Errorf("can't mark events folded: %w", err)
		}
	}
	return nil
}
