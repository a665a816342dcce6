// Package metrics exposes Prometheus metrics for the HTTP API, the upstream
// clients and the sync engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "lexisync"

// Collector owns a registry and every metric the server records.
type Collector struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	upstream        *prometheus.CounterVec
	merges          *prometheus.CounterVec
	conflicts       *prometheus.CounterVec
}

// NewCollector registers all metrics on registry. A nil registry means a
// fresh one with the Go and process collectors attached.
func NewCollector(registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	c := &Collector{
		registry: registry,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "API requests by action and response status.",
		}, []string{"action", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "API request latency by action.",
			Buckets:   []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"action"}),
		upstream: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Calls to external APIs by service and outcome.",
		}, []string{"service", "outcome"}),
		merges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_merges_total",
			Help:      "Sync merges by outcome.",
		}, []string{"outcome"}),
		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_conflicts_total",
			Help:      "Entities present on both client and server during a merge.",
		}, []string{"collection"}),
	}

	registry.MustRegister(c.requests, c.requestDuration, c.upstream, c.merges, c.conflicts)
	return c
}

// RecordRequest records one finished API request.
func (c *Collector) RecordRequest(action string, status int, duration time.Duration) {
	c.requests.WithLabelValues(action, strconv.Itoa(status)).Inc()
	c.requestDuration.WithLabelValues(action).Observe(duration.Seconds())
}

// RecordUpstream records one call to an external API.
func (c *Collector) RecordUpstream(service, outcome string) {
	c.upstream.WithLabelValues(service, outcome).Inc()
}

// RecordMerge records the outcome of a sync merge.
func (c *Collector) RecordMerge(outcome string) {
	c.merges.WithLabelValues(outcome).Inc()
}

// RecordConflicts adds n to the conflict count of collection.
func (c *Collector) RecordConflicts(collection string, n int) {
	if n <= 0 {
		return
	}
	c.conflicts.WithLabelValues(collection).Add(float64(n))
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}
