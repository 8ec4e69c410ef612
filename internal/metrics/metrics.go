// Package metrics wraps the Prometheus collectors that observe the
// scheduler and persistence layers, grounded on oriys-nova's
// internal/metrics/prometheus.go registry-and-package-vars pattern.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics wraps every collector exposed by the engine.
type Metrics struct {
	registry *prometheus.Registry

	FrontierSize        prometheus.Gauge
	NodeInvocations      *prometheus.CounterVec
	FlushLatency         prometheus.Histogram
	ConcurrencyLimitHits *prometheus.CounterVec
	FlushFailures        prometheus.Counter
}

var flushBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500}

// New creates and registers every collector under namespace.
func New(namespace string) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: registry,

		FrontierSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "frontier_size",
			Help:      "Number of distinct execution targets currently enqueued on the frontier.",
		}),
		NodeInvocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "node_invocations_total",
			Help:      "Total node logic invocations, by node id and outcome.",
		}, []string{"node_id", "outcome"}),
		FlushLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "flush_latency_milliseconds",
			Help:      "Duration of a columnar store flush.",
			Buckets:   flushBuckets,
		}),
		ConcurrencyLimitHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "concurrency_limit_hits_total",
			Help:      "Per-node exec_calls cap violations.",
		}, []string{"node_id"}),
		FlushFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flush_failures_total",
			Help:      "Flushes that exhausted their retry budget.",
		}),
	}

	registry.MustRegister(
		m.FrontierSize,
		m.NodeInvocations,
		m.FlushLatency,
		m.ConcurrencyLimitHits,
		m.FlushFailures,
	)
	return m
}

// Handler returns the HTTP handler for Prometheus scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
