// Package metrics exposes the service's Prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Photo ingest outcomes.
const (
	OutcomeRemote         = "remote"
	OutcomeInline         = "inline"
	OutcomeInlineFallback = "inline_fallback"
	OutcomeRejected       = "rejected"
	OutcomeNotConfigured  = "not_configured"
)

// Metrics holds the collectors registered on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	photoIngest     *prometheus.CounterVec
	numberFallback  prometheus.Counter
	imageProcessing prometheus.Histogram
}

// New creates and registers all collectors, including Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		photoIngest: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mechi",
			Name:      "photo_ingest_total",
			Help:      "Photos ingested, by storage outcome.",
		}, []string{"outcome"}),
		numberFallback: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mechi",
			Name:      "order_number_fallback_total",
			Help:      "Order numbers generated with the random fallback.",
		}),
		imageProcessing: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "mechi",
			Name:      "image_process_seconds",
			Help:      "Time spent resizing and re-encoding photos.",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}),
	}
	m.registry.MustRegister(
		m.photoIngest,
		m.numberFallback,
		m.imageProcessing,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// PhotoIngested counts one ingest with the given outcome.
func (m *Metrics) PhotoIngested(outcome string) {
	if m == nil {
		return
	}
	m.photoIngest.WithLabelValues(outcome).Inc()
}

// NumberFallback counts one degraded order number.
func (m *Metrics) NumberFallback() {
	if m == nil {
		return
	}
	m.numberFallback.Inc()
}

// ObserveImageProcessing records how long processing took.
func (m *Metrics) ObserveImageProcessing(d time.Duration) {
	if m == nil {
		return
	}
	m.imageProcessing.Observe(d.Seconds())
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
