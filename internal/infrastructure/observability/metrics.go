package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all Prometheus metrics for the application. Each
// collector owns its registry so tests can create as many as they like.
type Collector struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Graph metrics
	Residues       prometheus.Gauge
	Snaps          *prometheus.CounterVec
	GraphMutations *prometheus.CounterVec

	// Remote workflow metrics
	Searches       *prometheus.CounterVec
	SearchDuration prometheus.Histogram
	PollAttempts   prometheus.Histogram
	Fetches        *prometheus.CounterVec
	FetchCache     *prometheus.CounterVec

	// Outbound side effects
	EventsPublished *prometheus.CounterVec
	Snapshots       *prometheus.CounterVec
}

// NewCollector creates a new metrics collector with the given namespace
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		Residues: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "graph_residues",
				Help:      "Number of residues in the workspace graph",
			},
		),
		Snaps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "snaps_total",
				Help:      "Drag releases by outcome",
			},
			[]string{"outcome"},
		),
		GraphMutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "graph_mutations_total",
				Help:      "Graph mutations by operation",
			},
			[]string{"operation"},
		),
		Searches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "searches_total",
				Help:      "Similarity searches by outcome",
			},
			[]string{"outcome"},
		),
		SearchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "search_duration_seconds",
				Help:      "Wall time from submission to result",
				Buckets:   []float64{1, 2, 5, 10, 20, 30, 60, 120, 300},
			},
		),
		PollAttempts: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "search_poll_attempts",
				Help:      "Status polls needed per search",
				Buckets:   []float64{1, 2, 3, 5, 10, 20, 50, 100, 300},
			},
		),
		Fetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "structure_fetches_total",
				Help:      "Structure fetches by outcome",
			},
			[]string{"outcome"},
		),
		FetchCache: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "structure_cache_total",
				Help:      "Structure cache lookups by result",
			},
			[]string{"result"},
		),
		EventsPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_published_total",
				Help:      "Domain events handed to the event bus",
			},
			[]string{"type", "status"},
		),
		Snapshots: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "snapshot_operations_total",
				Help:      "Snapshot repository operations",
			},
			[]string{"operation", "status"},
		),
	}

	registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.Residues,
		c.Snaps,
		c.GraphMutations,
		c.Searches,
		c.SearchDuration,
		c.PollAttempts,
		c.Fetches,
		c.FetchCache,
		c.EventsPublished,
		c.Snapshots,
	)
	return c
}

// Registry exposes the underlying registry, mostly for tests.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the collector's metrics in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// RecordHTTPRequest records an HTTP request
func (c *Collector) RecordHTTPRequest(method, route, status string, duration time.Duration) {
	c.HTTPRequests.WithLabelValues(method, route, status).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordSnap records a drag release.
func (c *Collector) RecordSnap(bonded bool) {
	outcome := "free"
	if bonded {
		outcome = "bonded"
	}
	c.Snaps.WithLabelValues(outcome).Inc()
}

// RecordSearch records a finished search. outcome is "completed" or an error type.
func (c *Collector) RecordSearch(outcome string, attempts int, duration time.Duration) {
	c.Searches.WithLabelValues(outcome).Inc()
	c.PollAttempts.Observe(float64(attempts))
	c.SearchDuration.Observe(duration.Seconds())
}

// RecordFetch records a structure fetch.
func (c *Collector) RecordFetch(outcome string) {
	c.Fetches.WithLabelValues(outcome).Inc()
}

// RecordCacheLookup records a structure cache hit or miss.
func (c *Collector) RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	c.FetchCache.WithLabelValues(result).Inc()
}
