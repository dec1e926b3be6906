// Package report runs the reporting pipeline over one period's uploads:
// SKU resolution, order reconciliation, spend aggregation, product
// attribution and landing-page matching.
package report

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/attribution"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/catalog"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/dependency"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/entity"
	gerr "github.com/withindevelopment-activate/within-the-app-sub000/internal/errors"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/landing"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/orders"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/sku"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/spend"
)

const (
	StatusOK      = "ok"
	StatusInvalid = "invalid"
	StatusFailed  = "failed"
)

// Config holds pipeline configuration.
type Config struct {
	Orders             orders.Config       `mapstructure:"orders"`
	SKU                sku.Config          `mapstructure:"sku"`
	Catalog            catalog.Options     `mapstructure:"catalog"`
	Match              landing.MatchConfig `mapstructure:"match"`
	AnalyticsHeaderRow int                 `mapstructure:"analytics_header_row"`
	ArchiveUploads     bool                `mapstructure:"archive_uploads"`
	ExportProducts     bool                `mapstructure:"export_products"`
}

// DefaultConfig returns the default pipeline configuration.
func DefaultConfig() Config {
	return Config{
		Orders:             orders.DefaultConfig(),
		Match:              landing.DefaultMatchConfig(),
		AnalyticsHeaderRow: landing.DefaultAnalyticsHeaderRow,
	}
}

// File is one uploaded export.
type File struct {
	Name string
	Data []byte
}

func (f *File) reader() *bytes.Reader {
	return bytes.NewReader(f.Data)
}

// Input is what a reporting run works on. Orders may be nil when the order
// lines of the period were backfilled into the store; Analytics may be nil
// when the analytics API is enabled.
type Input struct {
	Period          entity.TimeRange
	InfluencerSpend decimal.Decimal
	Orders          *File
	Spend           map[entity.Platform]*File
	Analytics       *File
}

// Analytics is the analytics API used when no analytics export is uploaded.
type Analytics interface {
	Enabled() bool
	GetActiveUsers(ctx context.Context, startDate, endDate time.Time) (int64, error)
	GetLandingPageMetrics(ctx context.Context, startDate, endDate time.Time, pathMarker string) ([]entity.PageMetric, error)
}

// HeadingFetcher fetches the H1 heading of landing pages.
type HeadingFetcher interface {
	Headings(ctx context.Context, paths []string) (map[string]string, error)
}

// Metrics receives run outcomes.
type Metrics interface {
	ObserveReport(status string, d time.Duration)
}

// Pipeline produces reports.
type Pipeline struct {
	c         Config
	repo      dependency.Repository
	schemas   map[entity.Platform]spend.Schema
	fetcher   HeadingFetcher
	analytics Analytics
	files     dependency.FileStore
	exporter  dependency.ReportExporter
	metrics   Metrics
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithHeadingFetcher sets the landing page heading fetcher. Without one no
// landing page is matched.
func WithHeadingFetcher(f HeadingFetcher) Option {
	return func(p *Pipeline) { p.fetcher = f }
}

// WithAnalytics sets the analytics API client.
func WithAnalytics(a Analytics) Option {
	return func(p *Pipeline) { p.analytics = a }
}

// WithFileStore sets where raw uploads are archived.
func WithFileStore(fs dependency.FileStore) Option {
	return func(p *Pipeline) { p.files = fs }
}

// WithExporter sets the warehouse exporter of product rows.
func WithExporter(e dependency.ReportExporter) Option {
	return func(p *Pipeline) { p.exporter = e }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// New creates a pipeline reading the catalog and stored orders from repo.
func New(c Config, repo dependency.Repository, opts ...Option) *Pipeline {
	p := &Pipeline{
		c:       c,
		repo:    repo,
		schemas: spend.DefaultSchemas(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *Pipeline) analyticsEnabled() bool {
	return p.analytics != nil && p.analytics.Enabled()
}

// validate checks that every required upload is present and reports all
// missing ones in a single error.
func (p *Pipeline) validate(in *Input) error {
	var missing []string
	if len(in.Spend) == 0 {
		missing = append(missing, "at least one spend export")
	}
	for pl, f := range in.Spend {
		if !entity.ValidPlatforms[pl] {
			return gerr.NewValidation("spend", "unknown platform %q", pl)
		}
		if f == nil || len(f.Data) == 0 {
			missing = append(missing, fmt.Sprintf("%s spend export", pl))
		}
	}
	if (in.Orders == nil || len(in.Orders.Data) == 0) && p.repo == nil {
		missing = append(missing, "orders export")
	}
	if (in.Analytics == nil || len(in.Analytics.Data) == 0) && !p.analyticsEnabled() {
		missing = append(missing, "analytics export")
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return gerr.NewValidation("uploads", "missing required upload(s): %s", strings.Join(missing, ", "))
	}
	if !in.Period.From.IsZero() && !in.Period.To.IsZero() && !in.Period.From.Before(in.Period.To) {
		return gerr.NewValidation("period", "from must be before to")
	}
	return nil
}

// Run executes the pipeline. Invalid input fails before any side effect.
func (p *Pipeline) Run(ctx context.Context, in *Input) (*entity.Report, error) {
	start := time.Now()
	rep, err := p.run(ctx, in)
	status := StatusOK
	switch {
	case gerr.IsValidation(err):
		status = StatusInvalid
	case err != nil:
		status = StatusFailed
	}
	if p.metrics != nil {
		p.metrics.ObserveReport(status, time.Since(start))
	}
	return rep, err
}

func (p *Pipeline) run(ctx context.Context, in *Input) (*entity.Report, error) {
	if err := p.validate(in); err != nil {
		return nil, err
	}

	spendRows, err := p.parseSpend(in.Spend)
	if err != nil {
		return nil, err
	}
	var metrics []entity.PageMetric
	if in.Analytics != nil && len(in.Analytics.Data) > 0 {
		metrics, err = landing.ParseAnalytics(in.Analytics.reader(), p.c.AnalyticsHeaderRow)
		if err != nil {
			return nil, err
		}
	}
	var rawLines []entity.OrderLine
	if in.Orders != nil && len(in.Orders.Data) > 0 {
		rawLines, err = orders.Parse(in.Orders.reader())
		if err != nil {
			return nil, err
		}
	}

	runId := uuid.NewString()
	rep := &entity.Report{RunId: runId, Period: in.Period}
	p.archive(ctx, runId, in)

	cat := &entity.Catalog{}
	if p.repo != nil {
		cat, err = p.repo.Catalog().LoadCatalog(ctx)
		if err != nil {
			return nil, fmt.Errorf("can't load catalog: %w", err)
		}
		if rawLines == nil {
			rawLines, err = p.repo.Orders().GetOrderLines(ctx, in.Period.From, in.Period.To)
			if err != nil {
				return nil, fmt.Errorf("can't load stored orders: %w", err)
			}
		}
	}
	idx := catalog.NewIndex(cat, p.c.Catalog)
	lines := sku.New(cat, p.c.SKU).Resolve(rawLines)
	rec := orders.New(p.c.Orders).Reconcile(lines)

	res := attribution.New(idx).Attribute(spendRows, rec)
	if len(res.Unmatched) > 0 {
		slog.Default().WarnContext(ctx, "advertised products not in catalog",
			slog.String("run_id", runId),
			slog.String("tokens", strings.Join(res.Unmatched, ", ")),
		)
	}
	rep.Products = res.Products
	rep.PerPlatform = res.PerPlatform
	rep.Platforms = spend.SummarizeAll(spendRows)

	activeUsers, err := p.landingPages(ctx, rep, metrics, idx)
	if err != nil {
		return nil, err
	}

	rep.OrderSources = orders.SourceBreakdown(rec)
	rep.General = orders.GeneralAnalysis(rec, orders.GeneralInputs{
		AdSpend:         spend.TotalSpend(spendRows),
		InfluencerSpend: in.InfluencerSpend,
		ActiveUsers:     activeUsers,
	})

	if p.c.ExportProducts && p.exporter != nil {
		if err := p.exporter.ExportProducts(ctx, runId, in.Period, rep.Products); err != nil {
			slog.Default().ErrorContext(ctx, "can't export product rows",
				slog.String("run_id", runId),
				slog.String("err", err.Error()),
			)
		}
	}

	slog.Default().InfoContext(ctx, "report generated",
		slog.String("run_id", runId),
		slog.Int("orders", len(rec.Orders)),
		slog.Int("products", len(rep.Products)),
		slog.Int("landing_pages", len(rep.LandingPages)),
	)
	return rep, nil
}

func (p *Pipeline) parseSpend(files map[entity.Platform]*File) (map[entity.Platform][]entity.SpendRow, error) {
	out := make(map[entity.Platform][]entity.SpendRow, len(files))
	for _, pl := range entity.Platforms {
		f, ok := files[pl]
		if !ok {
			continue
		}
		schema, ok := p.schemas[pl]
		if !ok {
			return nil, gerr.NewValidation("spend", "no export layout for platform %q", pl)
		}
		rows, err := spend.Parse(f.reader(), schema)
		if err != nil {
			return nil, err
		}
		out[pl] = rows
	}
	return out, nil
}

// landingPages fills the landing page table and returns the period's active
// users. Analytics API failures are logged and leave the table empty and the
// active users at zero.
func (p *Pipeline) landingPages(ctx context.Context, rep *entity.Report, metrics []entity.PageMetric, idx *catalog.Index) (int64, error) {
	var activeUsers int64
	if metrics != nil {
		activeUsers = landing.TotalActiveUsers(metrics)
	} else if p.analyticsEnabled() {
		var err error
		metrics, err = p.analytics.GetLandingPageMetrics(ctx, rep.Period.From, rep.Period.To, landing.ProductPathMarker)
		if err != nil {
			slog.Default().ErrorContext(ctx, "can't get landing page metrics",
				slog.String("run_id", rep.RunId),
				slog.String("err", err.Error()),
			)
			metrics = nil
		}
		activeUsers, err = p.analytics.GetActiveUsers(ctx, rep.Period.From, rep.Period.To)
		if err != nil {
			slog.Default().ErrorContext(ctx, "can't get active users",
				slog.String("run_id", rep.RunId),
				slog.String("err", err.Error()),
			)
			activeUsers = 0
		}
	}

	headings := map[string]string{}
	if p.fetcher != nil && len(metrics) > 0 {
		var err error
		headings, err = p.fetcher.Headings(ctx, landing.ProductPaths(metrics))
		if err != nil {
			return 0, fmt.Errorf("can't fetch landing page headings: %w", err)
		}
	}
	rep.LandingPages = landing.Match(metrics, headings, idx, p.c.Match)
	return activeUsers, nil
}

// archive stores the raw uploads. Failures are logged; they never fail the run.
func (p *Pipeline) archive(ctx context.Context, runId string, in *Input) {
	if !p.c.ArchiveUploads || p.files == nil {
		return
	}
	files := []*File{in.Orders, in.Analytics}
	for _, pl := range entity.Platforms {
		files = append(files, in.Spend[pl])
	}
	for _, f := range files {
		if f == nil || len(f.Data) == 0 {
			continue
		}
		if _, err := p.files.Archive(ctx, runId, f.Name, f.reader(), int64(len(f.Data))); err != nil {
			slog.Default().ErrorContext(ctx, "can't archive upload",
				slog.String("run_id", runId),
				slog.String("name", f.Name),
				slog.String("err", err.Error()),
			)
		}
	}
}
