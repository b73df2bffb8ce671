// Package obsmetrics registers the process's Prometheus metrics and serves
// them over promhttp, the same way the teacher exposes /metrics.
package obsmetrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Manager cache metrics
	CacheSizeBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "txstream_manager_cache_size_bytes",
			Help: "Current size of the Manager tier's in-memory cache in bytes",
		},
	)

	CacheStartVersion = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "txstream_manager_cache_start_version",
			Help: "Lowest version currently held in the Manager cache",
		},
	)

	CacheEndVersion = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "txstream_manager_cache_end_version",
			Help: "One past the highest version currently held in the Manager cache",
		},
	)

	CacheEvictionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "txstream_manager_cache_evictions_total",
			Help: "Total number of watermark-triggered cache eviction passes",
		},
	)

	// File store / blob store metrics
	BlobStoreRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "txstream_blobstore_retries_total",
			Help: "Total number of blob-store read retries, by backing store tag",
		},
		[]string{"store"},
	)

	UploaderFlushDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "txstream_uploader_flush_duration_seconds",
			Help:    "Time taken to write one batch file to the file store",
			Buckets: prometheus.DefBuckets,
		},
	)

	UploaderVersion = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "txstream_uploader_version",
			Help: "Next version the uploader will fetch from the Manager cache",
		},
	)

	// Live Data tier metrics
	LiveCacheSizeBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "txstream_live_cache_size_bytes",
			Help: "Current size of the Live Data tier's ring buffer in bytes",
		},
	)

	ActiveStreamsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "txstream_active_streams_total",
			Help: "Number of currently registered live client streams",
		},
	)

	// Fabric / peer metrics
	KnownLatestVersion = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "txstream_known_latest_version",
			Help: "Process-wide high-water mark folded in from every peer report",
		},
	)

	PeerKnownLatestVersion = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "txstream_peer_known_latest_version",
			Help: "Self-reported known_latest_version from the last Ping/Heartbeat response, by peer address",
		},
		[]string{"peer"},
	)

	RPCRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "txstream_rpc_requests_total",
			Help: "Total number of RpcFront requests by method and status",
		},
		[]string{"method", "status"},
	)

	RPCRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "txstream_rpc_request_duration_seconds",
			Help:    "RpcFront request duration in seconds by method",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

func init() {
	prometheus.MustRegister(
		CacheSizeBytes,
		CacheStartVersion,
		CacheEndVersion,
		CacheEvictionsTotal,
		BlobStoreRetriesTotal,
		UploaderFlushDuration,
		UploaderVersion,
		LiveCacheSizeBytes,
		ActiveStreamsTotal,
		KnownLatestVersion,
		PeerKnownLatestVersion,
		RPCRequestsTotal,
		RPCRequestDuration,
	)
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations against a histogram.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed time to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the elapsed time to a histogram vec.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
