// Package app wires configuration into the running service and the
// one-shot commands.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/withindevelopment-activate/within-the-app-sub000/config"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/analytics/ga4"
	httpapi "github.com/withindevelopment-activate/within-the-app-sub000/internal/api/http"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/auth/jwt"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/cache"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/dependency"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/identity"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/landing"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/metrics"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/orderbackfill"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/ratelimit"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/report"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/store"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/store/memory"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/tracking"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/warehouse"
)

// App is the main application
type App struct {
	c        *config.Config
	db       dependency.Repository
	ping     func(ctx context.Context) error
	redis    *redis.Client
	exporter *warehouse.Exporter
	metrics  *metrics.Collector
	hs       *httpapi.Server
	idw      *identity.Worker
	done     chan struct{}
	doneOnce sync.Once
}

// New returns a new instance of App
func New(c *config.Config) *App {
	return &App{
		c:       c,
		metrics: metrics.New(),
		done:    make(chan struct{}),
	}
}

// Open connects the repository. Without a MySQL DSN the app runs on an
// in-memory store, which suits one-shot report runs.
func (a *App) Open(ctx context.Context) error {
	if a.db != nil {
		return nil
	}
	if a.c.DB.DSN == "" {
		slog.Default().WarnContext(ctx, "no mysql dsn configured, using in-memory store")
		a.db = memory.New()
		return nil
	}
	db, err := store.New(ctx, a.c.DB)
	if err != nil {
		return fmt.Errorf("couldn't connect to mysql: %w", err)
	}
	a.db = db
	a.ping = db.Ping
	return nil
}

// Repository returns the opened repository.
func (a *App) Repository() dependency.Repository {
	return a.db
}

// Metrics returns the metrics collector.
func (a *App) Metrics() *metrics.Collector {
	return a.metrics
}

// Merger creates the identity merger.
func (a *App) Merger() *identity.Merger {
	return identity.NewMerger(a.db, a.c.Identity.BatchSize, a.metrics)
}

// Backfiller creates the order backfill client.
func (a *App) Backfiller() *orderbackfill.Backfiller {
	return orderbackfill.New(a.c.Backfill, a.db.Orders())
}

// Pipeline creates the report pipeline with every optional backend that is
// configured. Optional backends that fail to start are logged and skipped.
func (a *App) Pipeline(ctx context.Context) (*report.Pipeline, error) {
	opts := []report.Option{report.WithMetrics(a.metrics)}

	ga, err := ga4.NewClient(ctx, &a.c.GA4)
	if err != nil {
		return nil, fmt.Errorf("can't create ga4 client: %w", err)
	}
	opts = append(opts, report.WithAnalytics(ga))

	if a.c.Landing.BaseURL != "" {
		fopts := []landing.Option{landing.WithMetrics(a.metrics)}
		if hc := a.headingCache(ctx); hc != nil {
			fopts = append(fopts, landing.WithCache(hc))
		}
		opts = append(opts, report.WithHeadingFetcher(landing.NewFetcher(a.c.Landing, fopts...)))
	}

	if a.c.Bucket.Enabled() {
		b, err := a.c.Bucket.New()
		if err != nil {
			slog.Default().ErrorContext(ctx, "can't create archive bucket", slog.String("err", err.Error()))
		} else {
			opts = append(opts, report.WithFileStore(b))
		}
	}

	if a.c.Warehouse.Enabled {
		if a.exporter == nil {
			a.exporter, err = warehouse.New(ctx, &a.c.Warehouse)
			if err != nil {
				slog.Default().ErrorContext(ctx, "can't create warehouse exporter", slog.String("err", err.Error()))
			}
		}
		if a.exporter != nil {
			opts = append(opts, report.WithExporter(a.exporter))
		}
	}

	return report.New(a.c.Report, a.db, opts...), nil
}

func (a *App) headingCache(ctx context.Context) *cache.HeadingCache {
	if a.c.Redis.URL == "" {
		return nil
	}
	if a.redis == nil {
		client, err := cache.Connect(ctx, a.c.Redis.URL)
		if err != nil {
			slog.Default().WarnContext(ctx, "redis unavailable, headings will not be cached",
				slog.String("err", err.Error()))
			return nil
		}
		a.redis = client
	}
	return cache.NewHeadingCache(a.redis, a.c.Redis.KeyPrefix)
}

// Start starts the app
func (a *App) Start(ctx context.Context) error {
	slog.Default().InfoContext(ctx, "starting attribution service")

	if err := a.Open(ctx); err != nil {
		return err
	}

	tracker, err := tracking.New(a.c.Tracking, a.db.Events(), a.metrics)
	if err != nil {
		return fmt.Errorf("can't create tracker: %w", err)
	}
	pipeline, err := a.Pipeline(ctx)
	if err != nil {
		return err
	}
	merger := a.Merger()

	svc := httpapi.Services{
		Tracker:  tracker,
		Reports:  pipeline,
		Identity: merger,
		Limiter:  ratelimit.NewMultiKeyLimiter(a.c.RateLimit),
		Metrics:  a.metrics,
		Health:   a.ping,
	}
	if a.c.JWT.Secret != "" {
		svc.JWTAuth, err = jwt.New(a.c.JWT)
		if err != nil {
			return err
		}
	} else {
		slog.Default().WarnContext(ctx, "jwt secret not set, report and sync endpoints are disabled")
	}

	if a.c.Identity.Enabled {
		a.idw = identity.NewWorker(merger, &a.c.Identity)
		if err := a.idw.Start(ctx); err != nil {
			return fmt.Errorf("cannot start identity sync worker: %w", err)
		}
	}

	a.hs = httpapi.New(&a.c.HTTP, svc)
	if err := a.hs.Start(ctx); err != nil {
		return fmt.Errorf("cannot start http server: %w", err)
	}
	go func() {
		<-a.hs.Done()
		a.closeDone()
	}()
	return nil
}

// Stop stops the application and waits for all services to exit
func (a *App) Stop(ctx context.Context) {
	if a.idw != nil {
		if err := a.idw.Stop(); err != nil {
			slog.Default().ErrorContext(ctx, "can't stop identity sync worker", slog.String("err", err.Error()))
		}
	}
	if a.hs != nil {
		if err := a.hs.Stop(ctx); err != nil {
			slog.Default().ErrorContext(ctx, "can't stop http server", slog.String("err", err.Error()))
		}
	}
	a.Close()
	a.closeDone()
}

// Close releases the repository and the optional backends.
func (a *App) Close() {
	if a.exporter != nil {
		_ = a.exporter.Close()
		a.exporter = nil
	}
	if a.redis != nil {
		_ = a.redis.Close()
		a.redis = nil
	}
	if a.db != nil {
		a.db.Close()
		a.db = nil
	}
}

func (a *App) closeDone() {
	a.doneOnce.Do(func() { close(a.done) })
}

// Done returns a channel that is closed after the application has exited
func (a *App) Done() chan struct{} {
	return a.done
}
