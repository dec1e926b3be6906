// Package orderbackfill pulls historical orders from the store API into the
// order_line table.
package orderbackfill

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/withindevelopment-activate/within-the-app-sub000/internal/dependency"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/entity"
	"golang.org/x/sync/errgroup"
)

// Config configures the backfill. BatchSleep and PageSleep keep the request
// rate under the upstream limit and must not be zeroed in production.
type Config struct {
	BaseURL     string        `mapstructure:"base_url"`
	Token       string        `mapstructure:"token"`
	PerPage     int           `mapstructure:"per_page"`
	DetailBatch int           `mapstructure:"detail_batch"`
	BatchSleep  time.Duration `mapstructure:"batch_sleep"`
	PageSleep   time.Duration `mapstructure:"page_sleep"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxRetries  int           `mapstructure:"max_retries"`
	RetryDelay  time.Duration `mapstructure:"retry_delay"`
	MaxPages    int           `mapstructure:"max_pages"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		PerPage:     50,
		DetailBatch: 10,
		BatchSleep:  2 * time.Second,
		PageSleep:   5 * time.Second,
		Timeout:     30 * time.Second,
		MaxRetries:  3,
		RetryDelay:  time.Second,
	}
}

// Result summarises a backfill run.
type Result struct {
	Pages  int `json:"pages"`
	Orders int `json:"orders"`
	Lines  int `json:"lines"`
	Failed int `json:"failed"`
}

// Backfiller pages through the order list and fetches each order's detail.
type Backfiller struct {
	c      Config
	client *http.Client
	orders dependency.Orders
	sleep  func(ctx context.Context, d time.Duration) error
}

// New creates a backfiller writing to orders.
func New(c Config, orders dependency.Orders) *Backfiller {
	d := DefaultConfig()
	if c.PerPage <= 0 {
		c.PerPage = d.PerPage
	}
	if c.DetailBatch <= 0 {
		c.DetailBatch = d.DetailBatch
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = d.RetryDelay
	}
	return &Backfiller{
		c:      c,
		client: &http.Client{Timeout: c.Timeout},
		orders: orders,
		sleep:  sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Run backfills orders created between from and to. A failing order detail
// is logged and skipped; a failing page aborts the run.
func (b *Backfiller) Run(ctx context.Context, from, to time.Time) (*Result, error) {
	res := &Result{}
	for page := 1; b.c.MaxPages == 0 || page <= b.c.MaxPages; page++ {
		var list listResponse
		if err := b.getJSON(ctx, "/orders", listQuery(page, b.c.PerPage, from, to), &list); err != nil {
			return res, fmt.Errorf("can't list orders page %d: %w", page, err)
		}
		res.Pages++
		if len(list.Orders) == 0 {
			break
		}

		ids := make([]string, 0, len(list.Orders))
		for _, o := range list.Orders {
			ids = append(ids, string(o.Id))
		}
		lines, failed, err := b.details(ctx, ids)
		if err != nil {
			return res, err
		}
		res.Failed += failed
		res.Orders += len(ids) - failed

		if err := b.orders.UpsertOrderLines(ctx, lines); err != nil {
			return res, fmt.Errorf("can't store orders of page %d: %w", page, err)
		}
		res.Lines += len(lines)

		slog.Default().InfoContext(ctx, "backfilled orders page",
			slog.Int("page", page),
			slog.Int("orders", len(ids)),
			slog.Int("failed", failed),
		)

		if list.Pagination.TotalPages > 0 && page >= list.Pagination.TotalPages {
			break
		}
		if err := b.sleep(ctx, b.c.PageSleep); err != nil {
			return res, err
		}
	}
	return res, nil
}

// details fetches order details in batches of DetailBatch, sleeping between
// batches.
func (b *Backfiller) details(ctx context.Context, ids []string) ([]entity.OrderLine, int, error) {
	var (
		mu     sync.Mutex
		lines  []entity.OrderLine
		failed int
	)
	for start := 0; start < len(ids); start += b.c.DetailBatch {
		if start > 0 {
			if err := b.sleep(ctx, b.c.BatchSleep); err != nil {
				return nil, 0, err
			}
		}
		end := min(start+b.c.DetailBatch, len(ids))

		g, gctx := errgroup.WithContext(ctx)
		for _, id := range ids[start:end] {
			id := id
			g.Go(func() error {
				var d detailResponse
				if err := b.getJSON(gctx, "/orders/"+id, nil, &d); err != nil {
					slog.Default().ErrorContext(ctx, "can't fetch order detail",
						slog.String("order_id", id),
						slog.String("err", err.Error()),
					)
					mu.Lock()
					failed++
					mu.Unlock()
					return nil
				}
				if d.Order.Id == "" {
					d.Order.Id = flexId(id)
				}
				ls := d.Order.lines()
				mu.Lock()
				lines = append(lines, ls...)
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, 0, err
		}
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
	}
	return lines, failed, nil
}
