package download

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the download manager.
type Metrics struct {
	Registry         *prometheus.Registry
	DownloadsTotal   *prometheus.CounterVec
	DownloadDuration prometheus.Histogram
	BytesTotal       prometheus.Counter
	RetriesTotal     prometheus.Counter
	ErrorsTotal      *prometheus.CounterVec
	CacheHitsTotal   prometheus.Counter
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	downloads := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "images_downloads_total",
			Help: "Total image downloads by terminal status.",
		},
		[]string{"status"},
	)
	duration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "images_download_duration_seconds",
			Help:    "Image fetch latency.",
			Buckets: prometheus.DefBuckets,
		},
	)
	bytes := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "images_downloaded_bytes_total",
			Help: "Total bytes written to disk.",
		},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "images_download_retries_total",
			Help: "Total number of download retry attempts scheduled.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "images_download_errors_total",
			Help: "Total download errors by type.",
		},
		[]string{"error_type"},
	)
	cacheHits := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "images_download_cache_hits_total",
			Help: "Downloads satisfied by the cross-place asset cache.",
		},
	)

	registry.MustRegister(downloads, duration, bytes, retries, errorsTotal, cacheHits)

	return &Metrics{
		Registry:         registry,
		DownloadsTotal:   downloads,
		DownloadDuration: duration,
		BytesTotal:       bytes,
		RetriesTotal:     retries,
		ErrorsTotal:      errorsTotal,
		CacheHitsTotal:   cacheHits,
	}
}

// IncDownload increments the downloads counter for a terminal status.
func (m *Metrics) IncDownload(status string) {
	if m == nil {
		return
	}
	m.DownloadsTotal.WithLabelValues(status).Inc()
}

// ObserveDuration records one fetch duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.DownloadDuration.Observe(d.Seconds())
}

// AddBytes records bytes written to disk.
func (m *Metrics) AddBytes(n int) {
	if m == nil {
		return
	}
	m.BytesTotal.Add(float64(n))
}

// IncRetries increments the retries counter.
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

// IncCacheHit increments the asset cache hit counter.
func (m *Metrics) IncCacheHit() {
	if m == nil {
		return
	}
	m.CacheHitsTotal.Inc()
}
