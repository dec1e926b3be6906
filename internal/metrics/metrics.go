// Package metrics exposes service counters in the Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/identity"
)

const namespace = "attribution"

// Collector holds every counter the service reports. It satisfies the
// metrics interfaces of the tracker, the identity merger and the heading
// fetcher.
type Collector struct {
	reg *prometheus.Registry

	tracked      *prometheus.CounterVec
	fetches      *prometheus.CounterVec
	syncRuns     *prometheus.CounterVec
	syncEvents   *prometheus.CounterVec
	syncMark     prometheus.Gauge
	reports      *prometheus.CounterVec
	reportTiming prometheus.Histogram
	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec
}

// New creates a collector registered on its own registry.
func New() *Collector {
	c := &Collector{
		reg: prometheus.NewRegistry(),
		tracked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tracked_events_total",
			Help:      "Tracking requests by event type and outcome.",
		}, []string{"event_type", "outcome"}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "heading_fetches_total",
			Help:      "Landing page heading fetches by outcome.",
		}, []string{"outcome"}),
		syncRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "identity_sync_runs_total",
			Help:      "Identity sync runs by status.",
		}, []string{"status"}),
		syncEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "identity_sync_groups_total",
			Help:      "Visitor groups handled by the identity sync.",
		}, []string{"result"}),
		syncMark: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "identity_sync_high_water_mark",
			Help:      "Last event id folded into customer records.",
		}),
		reports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "report_runs_total",
			Help:      "Report runs by status.",
		}, []string{"status"}),
		reportTiming: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "report_duration_seconds",
			Help:      "Duration of report runs.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"method", "route", "code"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	c.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.tracked, c.fetches, c.syncRuns, c.syncEvents, c.syncMark,
		c.reports, c.reportTiming, c.httpRequests, c.httpLatency,
	)
	return c
}

// Handler serves the registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{Registry: c.reg})
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.reg
}

func (c *Collector) ObserveTrack(eventType, outcome string) {
	c.tracked.WithLabelValues(eventType, outcome).Inc()
}

func (c *Collector) ObserveFetch(outcome string) {
	c.fetches.WithLabelValues(outcome).Inc()
}

func (c *Collector) ObserveIdentitySync(res *identity.SyncResult) {
	c.syncRuns.WithLabelValues(res.Status).Inc()
	c.syncEvents.WithLabelValues("upserted").Add(float64(res.Upserted))
	c.syncEvents.WithLabelValues("skipped").Add(float64(res.Skipped))
	c.syncEvents.WithLabelValues("failed").Add(float64(res.Failed))
	c.syncMark.Set(float64(res.HighWaterMark))
}

// ObserveReport records a finished report run.
func (c *Collector) ObserveReport(status string, d time.Duration) {
	c.reports.WithLabelValues(status).Inc()
	c.reportTiming.Observe(d.Seconds())
}

// ObserveHTTP records a served request.
func (c *Collector) ObserveHTTP(method, route, code string, d time.Duration) {
	c.httpRequests.WithLabelValues(method, route, code).Inc()
	c.httpLatency.WithLabelValues(method, route).Observe(d.Seconds())
}
