// Package metrics defines the Prometheus collectors exported by the service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "filesvc"

// Upload outcomes.
const (
	OutcomeCommitted = "committed"
	OutcomeTooLarge  = "too_large"
	OutcomeFailed    = "failed"
)

// Download outcomes.
const (
	OutcomeServed   = "served"
	OutcomeNotFound = "not_found"
)

// Metrics groups the service collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry      *prometheus.Registry
	uploads       *prometheus.CounterVec
	uploadedBytes prometheus.Counter
	uploadSize    prometheus.Histogram
	downloads     *prometheus.CounterVec
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Upload attempts by outcome.",
		}, []string{"outcome"}),
		uploadedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploaded_bytes_total",
			Help:      "Bytes stored by committed uploads.",
		}),
		uploadSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upload_size_bytes",
			Help:      "Size of committed uploads.",
			Buckets:   prometheus.ExponentialBuckets(1024, 4, 10),
		}),
		downloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downloads_total",
			Help:      "Download requests by outcome.",
		}, []string{"outcome"}),
	}

	m.registry.MustRegister(
		m.uploads,
		m.uploadedBytes,
		m.uploadSize,
		m.downloads,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Upload records the outcome of one upload attempt.
func (m *Metrics) Upload(outcome string, size int64) {
	if m == nil {
		return
	}
	m.uploads.WithLabelValues(outcome).Inc()
	if outcome == OutcomeCommitted {
		m.uploadedBytes.Add(float64(size))
		m.uploadSize.Observe(float64(size))
	}
}

// Download records the outcome of one download request.
func (m *Metrics) Download(outcome string) {
	if m == nil {
		return
	}
	m.downloads.WithLabelValues(outcome).Inc()
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the exposition format for the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
