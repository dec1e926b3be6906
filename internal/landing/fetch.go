// Package landing attributes product-page analytics to catalog products by
// the H1 heading of each page.
package landing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// NotFound is recorded for pages whose heading could not be fetched.
const NotFound = "not found"

var errNoHeading = errors.New("no h1 heading")

// Config configures the heading fetcher.
type Config struct {
	BaseURL          string        `mapstructure:"base_url"`
	Concurrency      int           `mapstructure:"concurrency"`
	Timeout          time.Duration `mapstructure:"timeout"`
	MaxRetries       int           `mapstructure:"max_retries"`
	RetryDelay       time.Duration `mapstructure:"retry_delay"`
	BreakerThreshold int           `mapstructure:"breaker_threshold"`
	UserAgent        string        `mapstructure:"user_agent"`
	CacheTTL         time.Duration `mapstructure:"cache_ttl"`
}

// DefaultConfig returns the default fetcher configuration.
func DefaultConfig() Config {
	return Config{
		Concurrency:      8,
		Timeout:          10 * time.Second,
		MaxRetries:       2,
		RetryDelay:       500 * time.Millisecond,
		BreakerThreshold: 10,
		UserAgent:        "within-report/1.0",
		CacheTTL:         24 * time.Hour,
	}
}

// HeadingCache stores fetched headings between runs.
type HeadingCache interface {
	Get(ctx context.Context, url string) (string, bool, error)
	Set(ctx context.Context, url, heading string, ttl time.Duration) error
}

// Metrics receives fetch outcomes.
type Metrics interface {
	ObserveFetch(outcome string)
}

// Fetcher fetches page headings with bounded concurrency. After
// BreakerThreshold consecutive failures it stops issuing requests and the
// remaining pages are recorded as NotFound.
type Fetcher struct {
	c       Config
	client  *http.Client
	cache   HeadingCache
	metrics Metrics
}

// Option customizes a Fetcher.
type Option func(*Fetcher)

// WithCache sets the heading cache.
func WithCache(c HeadingCache) Option {
	return func(f *Fetcher) { f.cache = c }
}

// WithMetrics sets the outcome observer.
func WithMetrics(m Metrics) Option {
	return func(f *Fetcher) { f.metrics = m }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// NewFetcher creates a fetcher. Zero fields of c take their defaults.
func NewFetcher(c Config, opts ...Option) *Fetcher {
	d := DefaultConfig()
	if c.Concurrency <= 0 {
		c.Concurrency = d.Concurrency
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.BreakerThreshold <= 0 {
		c.BreakerThreshold = d.BreakerThreshold
	}
	if c.UserAgent == "" {
		c.UserAgent = d.UserAgent
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = d.CacheTTL
	}
	f := &Fetcher{
		c:      c,
		client: &http.Client{},
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

type breaker struct {
	threshold int32
	failures  atomic.Int32
	open      atomic.Bool
}

func (b *breaker) result(err error) {
	if err == nil {
		b.failures.Store(0)
		return
	}
	if b.failures.Add(1) >= b.threshold {
		b.open.Store(true)
	}
}

// Headings fetches the H1 of every path. The result has an entry for each
// path: the heading text or NotFound.
func (f *Fetcher) Headings(ctx context.Context, paths []string) (map[string]string, error) {
	out := make(map[string]string, len(paths))
	unique := make([]string, 0, len(paths))
	for _, p := range paths {
		if _, dup := out[p]; !dup {
			out[p] = NotFound
			unique = append(unique, p)
		}
	}

	var mu sync.Mutex
	set := func(p, h string) {
		mu.Lock()
		out[p] = h
		mu.Unlock()
	}

	br := &breaker{threshold: int32(f.c.BreakerThreshold)}
	sem := semaphore.NewWeighted(int64(f.c.Concurrency))
	g, gctx := errgroup.WithContext(ctx)

	for _, p := range unique {
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		if br.open.Load() {
			sem.Release(1)
			f.observe("skipped")
			continue
		}
		p := p
		g.Go(func() error {
			defer sem.Release(1)
			h, err := f.heading(gctx, f.url(p))
			br.result(err)
			if err != nil {
				slog.Default().WarnContext(gctx, "landing page heading fetch failed",
					slog.String("path", p),
					slog.String("err", err.Error()),
				)
				f.observe("failed")
				return nil
			}
			f.observe("ok")
			set(p, h)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return out, err
	}
	if br.open.Load() {
		slog.Default().WarnContext(ctx, "landing page fetch circuit opened",
			slog.Int("threshold", f.c.BreakerThreshold))
	}
	return out, ctx.Err()
}

func (f *Fetcher) observe(outcome string) {
	if f.metrics != nil {
		f.metrics.ObserveFetch(outcome)
	}
}

func (f *Fetcher) url(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return strings.TrimRight(f.c.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

func (f *Fetcher) heading(ctx context.Context, url string) (string, error) {
	if f.cache != nil {
		h, ok, err := f.cache.Get(ctx, url)
		if err != nil {
			slog.Default().WarnContext(ctx, "heading cache get failed", slog.String("err", err.Error()))
		} else if ok {
			return h, nil
		}
	}

	var lastErr error
	for attempt := 0; attempt <= f.c.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Duration(attempt) * f.c.RetryDelay):
			}
		}
		h, err := f.fetch(ctx, url)
		if err == nil {
			if f.cache != nil {
				if err := f.cache.Set(ctx, url, h, f.c.CacheTTL); err != nil {
					slog.Default().WarnContext(ctx, "heading cache set failed", slog.String("err", err.Error()))
				}
			}
			return h, nil
		}
		lastErr = err
		if errors.Is(err, errNoHeading) {
			break
		}
	}
	return "", lastErr
}

func (f *Fetcher) fetch(ctx context.Context, url string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, f.c.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create GET request to %s: %w", url, err)
	}
	req.Header.Set("User-Agent", f.c.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code %d from %s", resp.StatusCode, url)
	}
	return ExtractH1(resp.Body)
}

// ExtractH1 returns the text of the first h1 element of an HTML document.
func ExtractH1(r io.Reader) (string, error) {
	z := html.NewTokenizer(r)
	depth := 0
	var b strings.Builder
	for {
		switch z.Next() {
		case html.ErrorToken:
			if errors.Is(z.Err(), io.EOF) {
				return "", errNoHeading
			}
			return "", z.Err()
		case html.StartTagToken:
			name, _ := z.TagName()
			if string(name) == "h1" {
				depth++
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if string(name) == "h1" && depth > 0 {
				text := strings.Join(strings.Fields(b.String()), " ")
				if text == "" {
					return "", errNoHeading
				}
				return text, nil
			}
		case html.TextToken:
			if depth > 0 {
				b.Write(z.Text())
				b.WriteByte(' ')
			}
		}
	}
}
