package landing

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/catalog"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/entity"
)

func TestExtractH1(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		want    string
		wantErr bool
	}{
		{name: "plain", doc: `<html><body><h1>Memory Pillow</h1></body></html>`, want: "Memory Pillow"},
		{name: "nested and spaced", doc: `<h1 class="t">  Memory <span>Pillow</span>
			</h1><h1>Second</h1>`, want: "Memory Pillow"},
		{name: "no heading", doc: `<html><h2>x</h2></html>`, wantErr: true},
		{name: "empty heading", doc: `<h1>  </h1>`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractH1(strings.NewReader(tt.doc))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

type memCache struct {
	mu sync.Mutex
	m  map[string]string
}

func (c *memCache) Get(_ context.Context, url string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.m[url]
	return v, ok, nil
}

func (c *memCache) Set(_ context.Context, url, h string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[url] = h
	return nil
}

func TestHeadings(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/products/pillow":
			fmt.Fprint(w, "<h1>Memory Pillow</h1>")
		case "/products/cover":
			fmt.Fprint(w, "<h1>Pillow Cover</h1>")
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	cache := &memCache{m: map[string]string{}}
	f := NewFetcher(Config{BaseURL: srv.URL, Concurrency: 2, MaxRetries: 0}, WithCache(cache))

	paths := []string{"/products/pillow", "/products/cover", "/products/gone", "/products/pillow"}
	got, err := f.Headings(context.Background(), paths)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"/products/pillow": "Memory Pillow",
		"/products/cover":  "Pillow Cover",
		"/products/gone":   NotFound,
	}, got)
	assert.Equal(t, int32(3), hits.Load())

	// second run is served from the cache except for the failed page
	_, err = f.Headings(context.Background(), paths)
	require.NoError(t, err)
	assert.Equal(t, int32(4), hits.Load())
}

func TestHeadingsCircuitBreaker(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f := NewFetcher(Config{BaseURL: srv.URL, Concurrency: 1, BreakerThreshold: 2})
	paths := []string{"/products/a", "/products/b", "/products/c", "/products/d", "/products/e"}
	got, err := f.Headings(context.Background(), paths)
	require.NoError(t, err)
	assert.Len(t, got, 5)
	for _, h := range got {
		assert.Equal(t, NotFound, h)
	}
	assert.Equal(t, int32(2), hits.Load())
}

func testIndex() *catalog.Index {
	return catalog.NewIndex(&entity.Catalog{
		Canonical: []entity.CanonicalProduct{
			{SKU: "P1", Name: "Memory Pillow", Variations: []string{"V1"}},
			{SKU: "P2", Name: "Pillow Cover", Variations: []string{"V2"}},
		},
		Products: []entity.CatalogProduct{
			{SKU: "V1", Name: "Memory Pillow Large"},
			{SKU: "V2", Name: "Pillow Cover Grey"},
		},
	}, catalog.Options{})
}

func TestMatch(t *testing.T) {
	metrics := []entity.PageMetric{
		{PagePath: "/products/pillow-large", ActiveUsers: 100, AddToCarts: 10},
		{PagePath: "/products/pillow-promo", ActiveUsers: 50, AddToCarts: 5},
		{PagePath: "/products/cover-grey", ActiveUsers: 40, AddToCarts: 2},
		{PagePath: "/products/size-chart", ActiveUsers: 30, AddToCarts: 0},
		{PagePath: "/products/pillow/reviews", ActiveUsers: 20, AddToCarts: 0},
		{PagePath: "/products/broken", ActiveUsers: 10, AddToCarts: 1},
		{PagePath: "/blog/pillows", ActiveUsers: 500, AddToCarts: 0},
	}
	headings := map[string]string{
		"/products/pillow-large":   "Memory Pillow Large",
		"/products/pillow-promo":   "Offer: memory pillow for summer",
		"/products/cover-grey":     " Pillow Cover Grey ",
		"/products/size-chart":     "Memory Pillow 50 x 70",
		"/products/pillow/reviews": "Memory Pillow",
		"/products/broken":         NotFound,
		"/blog/pillows":            "Memory Pillow",
	}

	rows := Match(metrics, headings, testIndex(), DefaultMatchConfig())
	require.Len(t, rows, 2)

	assert.Equal(t, "P1", rows[0].SKU)
	assert.Equal(t, int64(150), rows[0].ActiveUsers)
	assert.Equal(t, int64(15), rows[0].AddToCarts)
	assert.Equal(t, "10", rows[0].ConversionRate.String())

	assert.Equal(t, "P2", rows[1].SKU)
	assert.Equal(t, "5", rows[1].ConversionRate.String())
}

func TestMatchZeroUsers(t *testing.T) {
	rows := Match([]entity.PageMetric{{PagePath: "/products/x", ActiveUsers: 0, AddToCarts: 3}},
		map[string]string{"/products/x": "Memory Pillow Large"}, testIndex(), DefaultMatchConfig())
	require.Len(t, rows, 1)
	assert.True(t, rows[0].ConversionRate.IsZero())
}

func TestParseAnalytics(t *testing.T) {
	csv := "Page path and screen class,Active users,Add to carts,Key events\n" +
		"/products/pillow,\"1,200\",30,4\n" +
		"/,500,0,0\n"
	rows, err := ParseAnalytics(strings.NewReader(csv), 1)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(1200), rows[0].ActiveUsers)
	assert.Equal(t, []string{"/products/pillow"}, ProductPaths(rows))
	assert.Equal(t, int64(1700), TotalActiveUsers(rows))

	_, err = ParseAnalytics(strings.NewReader("Page path,Active users\n/,1\n"), 1)
	assert.Error(t, err)
}
