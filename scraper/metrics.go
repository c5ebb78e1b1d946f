package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the place pipeline.
type Metrics struct {
	Registry            *prometheus.Registry
	PlacesTotal         *prometheus.CounterVec
	HandlesTotal        prometheus.Counter
	ImagesResolvedTotal prometheus.Counter
	ExtractionDuration  prometheus.Histogram
	RetriesTotal        prometheus.Counter
	ErrorsTotal         *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	places := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "places_total",
			Help: "Total places processed by terminal status.",
		},
		[]string{"status"},
	)
	handles := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "places_enumerated_total",
			Help: "Total place handles yielded by the result enumerator.",
		},
	)
	resolved := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "places_images_resolved_total",
			Help: "Total image URLs surviving resolution and dedup.",
		},
	)
	extraction := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "places_extraction_duration_seconds",
			Help:    "Per-place extraction latency.",
			Buckets: prometheus.DefBuckets,
		},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "places_extraction_retries_total",
			Help: "Total extraction retries after a wait timeout.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "places_errors_total",
			Help: "Total pipeline errors by type.",
		},
		[]string{"error_type"},
	)

	registry.MustRegister(places, handles, resolved, extraction, retries, errorsTotal)

	return &Metrics{
		Registry:            registry,
		PlacesTotal:         places,
		HandlesTotal:        handles,
		ImagesResolvedTotal: resolved,
		ExtractionDuration:  extraction,
		RetriesTotal:        retries,
		ErrorsTotal:         errorsTotal,
	}
}

// IncPlace increments the places counter for a terminal status.
func (m *Metrics) IncPlace(status string) {
	if m == nil {
		return
	}
	m.PlacesTotal.WithLabelValues(status).Inc()
}

// AddHandles counts handles yielded by the enumerator.
func (m *Metrics) AddHandles(n int) {
	if m == nil {
		return
	}
	m.HandlesTotal.Add(float64(n))
}

// AddResolved counts resolved image URLs.
func (m *Metrics) AddResolved(n int) {
	if m == nil {
		return
	}
	m.ImagesResolvedTotal.Add(float64(n))
}

// ObserveExtraction records one place extraction duration.
func (m *Metrics) ObserveExtraction(d time.Duration) {
	if m == nil {
		return
	}
	m.ExtractionDuration.Observe(d.Seconds())
}

// IncRetries increments the extraction retry counter.
func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}
