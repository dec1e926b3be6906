package report

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/entity"
	gerr "github.com/withindevelopment-activate/within-the-app-sub000/internal/errors"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/store/memory"
)

const (
	ordersCSV = "order_id,sku,product_name,quantity,status,source,payment_method,customer_name,total\n" +
		"1001,V1,Memory Pillow Large,2,completed,website,credit card,Sara,200\n" +
		"1002,V1,Memory Pillow Large,1,cancelled,website,tabby,Ali,100\n"
	facebookCSV = "Campaign name,Amount spent (SAR),Purchase ROAS,Results\n" +
		"Pillow - Conv,100,2.5,4\n" +
		"Blanket - Conv,50,1,1\n"
	analyticsCSV = "Page path and screen class,Active users,Add to carts,Key events\n" +
		"/products/pillow,200,20,2\n" +
		"/,300,0,0\n"
)

type fakeFetcher struct {
	headings map[string]string
	asked    []string
}

func (f *fakeFetcher) Headings(_ context.Context, paths []string) (map[string]string, error) {
	f.asked = append(f.asked, paths...)
	return f.headings, nil
}

type fakeFiles struct {
	names []string
	fail  bool
}

func (f *fakeFiles) Archive(_ context.Context, runId, name string, r io.Reader, size int64) (string, error) {
	if f.fail {
		return "", errors.New("bucket down")
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	if int64(len(b)) != size {
		return "", errors.New("size mismatch")
	}
	f.names = append(f.names, name)
	return "https://files/" + runId + "/" + name, nil
}

type fakeExporter struct {
	rows []entity.ProductPerformanceRow
}

func (e *fakeExporter) ExportProducts(_ context.Context, _ string, _ entity.TimeRange, rows []entity.ProductPerformanceRow) error {
	e.rows = append(e.rows, rows...)
	return nil
}

type fakeMetrics struct {
	statuses []string
}

func (m *fakeMetrics) ObserveReport(status string, _ time.Duration) {
	m.statuses = append(m.statuses, status)
}

func newStore(t *testing.T) *memory.Store {
	t.Helper()
	st := memory.New()
	require.NoError(t, st.Catalog().ReplaceCatalog(context.Background(), &entity.Catalog{
		Canonical: []entity.CanonicalProduct{
			{SKU: "P1", Name: "Memory Pillow", AdName: "Pillow", Variations: []string{"V1"}},
		},
		Products: []entity.CatalogProduct{
			{SKU: "V1", Name: "Memory Pillow Large"},
		},
	}))
	return st
}

func find(t *testing.T, rows []entity.LabelValue, label string) decimal.Decimal {
	t.Helper()
	for _, r := range rows {
		if r.Label == label {
			return r.Value
		}
	}
	t.Fatalf("row %q not found", label)
	return decimal.Zero
}

func period() entity.TimeRange {
	return entity.TimeRange{
		From: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestRun(t *testing.T) {
	fetcher := &fakeFetcher{headings: map[string]string{"/products/pillow": "Memory Pillow Large"}}
	files := &fakeFiles{}
	exporter := &fakeExporter{}
	m := &fakeMetrics{}

	c := DefaultConfig()
	c.AnalyticsHeaderRow = 1
	c.ArchiveUploads = true
	c.ExportProducts = true
	p := New(c, newStore(t),
		WithHeadingFetcher(fetcher),
		WithFileStore(files),
		WithExporter(exporter),
		WithMetrics(m),
	)

	rep, err := p.Run(context.Background(), &Input{
		Period:          period(),
		InfluencerSpend: decimal.NewFromInt(50),
		Orders:          &File{Name: "orders.csv", Data: []byte(ordersCSV)},
		Spend:           map[entity.Platform]*File{entity.PlatformFacebook: {Name: "facebook.csv", Data: []byte(facebookCSV)}},
		Analytics:       &File{Name: "analytics.csv", Data: []byte(analyticsCSV)},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, rep.RunId)

	// Blanket is advertised but not in the catalog: it keeps a row with no SKUs.
	require.Len(t, rep.Products, 2)
	assert.Equal(t, "Pillow", rep.Products[0].ProductKey)
	assert.Equal(t, 2, rep.Products[0].Stats.Quantity)
	assert.Equal(t, 1, rep.Products[0].Stats.Orders)
	assert.Empty(t, rep.Products[1].SKUs)

	// one platform plus the grand total row
	require.Len(t, rep.Platforms, 2)
	assert.Equal(t, entity.PlatformFacebook, rep.Platforms[0].Platform)
	assert.Equal(t, "150", rep.Platforms[0].Spend.String())

	require.Len(t, rep.LandingPages, 1)
	assert.Equal(t, "P1", rep.LandingPages[0].SKU)
	assert.Equal(t, "10", rep.LandingPages[0].ConversionRate.String())
	assert.Equal(t, []string{"/products/pillow"}, fetcher.asked)

	assert.Equal(t, "1", find(t, rep.General, "Orders").String())
	assert.Equal(t, "500", find(t, rep.General, "Active users").String())
	assert.Equal(t, "200", find(t, rep.General, "Total spend").String())
	assert.Equal(t, "1", find(t, rep.OrderSources, "Total orders").String())

	assert.ElementsMatch(t, []string{"orders.csv", "analytics.csv", "facebook.csv"}, files.names)
	assert.Len(t, exporter.rows, 2)
	assert.Equal(t, []string{StatusOK}, m.statuses)
}

func TestRunUsesStoredOrders(t *testing.T) {
	st := newStore(t)
	require.NoError(t, st.Orders().UpsertOrderLines(context.Background(), []entity.OrderLine{
		{OrderId: "9", LineNo: 1, SKU: "V1", ProductName: "Memory Pillow Large", Quantity: 4,
			Status: "completed", Source: "website", Total: decimal.NewFromInt(400),
			CreatedAt: time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)},
	}))
	c := DefaultConfig()
	c.AnalyticsHeaderRow = 1

	rep, err := New(c, st).Run(context.Background(), &Input{
		Period:    period(),
		Spend:     map[entity.Platform]*File{entity.PlatformFacebook: {Name: "facebook.csv", Data: []byte(facebookCSV)}},
		Analytics: &File{Name: "analytics.csv", Data: []byte(analyticsCSV)},
	})
	require.NoError(t, err)
	require.Len(t, rep.Products, 2)
	assert.Equal(t, 4, rep.Products[0].Stats.Quantity)
	assert.Empty(t, rep.LandingPages)
}

func TestRunArchiveFailureIsSoft(t *testing.T) {
	c := DefaultConfig()
	c.AnalyticsHeaderRow = 1
	c.ArchiveUploads = true
	_, err := New(c, newStore(t), WithFileStore(&fakeFiles{fail: true})).Run(context.Background(), &Input{
		Period:    period(),
		Orders:    &File{Name: "orders.csv", Data: []byte(ordersCSV)},
		Spend:     map[entity.Platform]*File{entity.PlatformFacebook: {Name: "facebook.csv", Data: []byte(facebookCSV)}},
		Analytics: &File{Name: "analytics.csv", Data: []byte(analyticsCSV)},
	})
	require.NoError(t, err)
}

type failingAnalytics struct{}

func (failingAnalytics) Enabled() bool { return true }

func (failingAnalytics) GetActiveUsers(context.Context, time.Time, time.Time) (int64, error) {
	return 0, errors.New("quota exceeded")
}

func (failingAnalytics) GetLandingPageMetrics(context.Context, time.Time, time.Time, string) ([]entity.PageMetric, error) {
	return nil, errors.New("quota exceeded")
}

func TestRunAnalyticsFailureIsSoft(t *testing.T) {
	fetcher := &fakeFetcher{}
	rep, err := New(DefaultConfig(), newStore(t), WithAnalytics(failingAnalytics{}), WithHeadingFetcher(fetcher)).Run(context.Background(), &Input{
		Period: period(),
		Orders: &File{Name: "orders.csv", Data: []byte(ordersCSV)},
		Spend:  map[entity.Platform]*File{entity.PlatformFacebook: {Name: "facebook.csv", Data: []byte(facebookCSV)}},
	})
	require.NoError(t, err)
	assert.Empty(t, rep.LandingPages)
	assert.Empty(t, fetcher.asked)
	assert.NotEmpty(t, rep.Products)
	assert.True(t, find(t, rep.General, "Active users").IsZero())
}

func TestRunValidation(t *testing.T) {
	m := &fakeMetrics{}

	t.Run("missing uploads reported together", func(t *testing.T) {
		_, err := New(DefaultConfig(), nil, WithMetrics(m)).Run(context.Background(), &Input{Period: period()})
		require.Error(t, err)
		assert.True(t, gerr.IsValidation(err))
		assert.Contains(t, err.Error(), "analytics export")
		assert.Contains(t, err.Error(), "at least one spend export")
		assert.Contains(t, err.Error(), "orders export")
	})

	t.Run("unknown platform", func(t *testing.T) {
		_, err := New(DefaultConfig(), newStore(t)).Run(context.Background(), &Input{
			Spend:     map[entity.Platform]*File{"myspace": {Name: "x.csv", Data: []byte("a\n")}},
			Analytics: &File{Name: "analytics.csv", Data: []byte(analyticsCSV)},
		})
		assert.True(t, gerr.IsValidation(err))
	})

	t.Run("missing column", func(t *testing.T) {
		files := &fakeFiles{}
		c := DefaultConfig()
		c.AnalyticsHeaderRow = 1
		c.ArchiveUploads = true
		_, err := New(c, newStore(t), WithFileStore(files)).Run(context.Background(), &Input{
			Orders:    &File{Name: "orders.csv", Data: []byte("order_id,sku\n1,V1\n")},
			Spend:     map[entity.Platform]*File{entity.PlatformFacebook: {Name: "facebook.csv", Data: []byte(facebookCSV)}},
			Analytics: &File{Name: "analytics.csv", Data: []byte(analyticsCSV)},
		})
		assert.True(t, gerr.IsValidation(err))
		assert.Empty(t, files.names)
	})

	assert.Equal(t, []string{StatusInvalid}, m.statuses)
}
