package store

import (
	"context"
	"fmt"
	"time"

	"github.com/withindevelopment-activate/within-the-app-sub000/internal/dependency"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/entity"
)

type orderStore struct {
	*MYSQLStore
}

// Orders returns an object implementing the Orders interface.
func (ms *MYSQLStore) Orders() dependency.Orders {
	return &orderStore{
		MYSQLStore: ms,
	}
}

// UpsertOrderLines stores order lines keyed by (order id, line number).
func (ms *orderStore) UpsertOrderLines(ctx context.Context, lines []entity.OrderLine) error {
	if len(lines) == 0 {
		return nil
	}
	query := `
		INSERT INTO order_line (
			order_id, line_no, sku, product_name, quantity, net_price, gross_price,
			status, source, payment_method, customer_name, customer_note, total, created_at
		) VALUES (
			:orderId, :lineNo, :sku, :productName, :quantity, :netPrice, :grossPrice,
			:status, :source, :paymentMethod, :customerName, :customerNote, :total, :createdAt
		)
		ON DUPLICATE KEY UPDATE
			sku = VALUES(sku),
			product_name = VALUES(product_name),
			quantity = VALUES(quantity),
			net_price = VALUES(net_price),
			gross_price = VALUES(gross_price),
			status = VALUES(status),
			source = VALUES(source),
			payment_method = VALUES(payment_method),
			customer_name = VALUES(customer_name),
			customer_note = VALUES(customer_note),
			total = VALUES(total),
			created_at = VALUES(created_at)
	`
	for _, l := range lines {
		params := map[string]any{
			"orderId":       l.OrderId,
			"lineNo":        l.LineNo,
			"sku":           l.SKU,
			"productName":   l.ProductName,
			"quantity":      l.Quantity,
			"netPrice":      l.NetPrice,
			"grossPrice":    l.GrossPrice,
			"status":        l.Status,
			"source":        l.Source,
			"paymentMethod": l.PaymentMethod,
			"customerName":  l.CustomerName,
			"customerNote":  l.CustomerNote,
			"total":         l.Total,
			"createdAt":     l.CreatedAt.UTC(),
		}
		if err := ExecNamed(ctx, ms.db, query, params); err != nil {
			return fmt.Errorf("failed to upsert order line %s/%d: %w", l.OrderId, l.LineNo, err)
		}
	}
	return nil
}

// GetOrderLines returns the lines of orders created in [from, to).
func (ms *orderStore) GetOrderLines(ctx context.Context, from, to time.Time) ([]entity.OrderLine, error) {
	query := `
		SELECT
			order_id, line_no, sku, product_name, quantity, net_price, gross_price,
			status, source, payment_method, customer_name, COALESCE(customer_note, '') AS customer_note,
			total, created_at
		FROM order_line
		WHERE created_at >= :from AND created_at < :to
		ORDER BY order_id, line_no
	`
	lines, err := QueryListNamed[entity.OrderLine](ctx, ms.db, query, map[string]any{
		"from": from.UTC(),
		"to":   to.UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("can't get order lines: %w", err)
	}
	return lines, nil
}
