// Package metrics provides Prometheus metrics for the media service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediacore_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mediacore_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Upload metrics
	uploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediacore_uploads_total",
			Help: "Total uploads by media kind, naming mode and result",
		},
		[]string{"kind", "mode", "status"},
	)

	uploadBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediacore_upload_bytes_total",
			Help: "Total bytes accepted by the storage service",
		},
		[]string{"kind"},
	)

	deletesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediacore_deletes_total",
			Help: "Delete requests by result (deleted, absent, error)",
		},
		[]string{"result"},
	)

	// Backend metrics
	backendOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mediacore_backend_operation_duration_seconds",
			Help:    "Storage backend operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "operation"},
	)

	backendOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediacore_backend_operations_total",
			Help: "Total storage backend operations",
		},
		[]string{"backend", "operation", "status"},
	)

	// Thumbnail metrics
	thumbnailAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediacore_thumbnail_attempts_total",
			Help: "Frame extraction attempts by strategy and outcome",
		},
		[]string{"strategy", "outcome"},
	)

	thumbnailPlaceholdersTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mediacore_thumbnail_placeholders_total",
			Help: "Thumbnails that fell back to the synthesized placeholder",
		},
	)

	thumbnailDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mediacore_thumbnail_duration_seconds",
			Help:    "Wall-clock time to derive one thumbnail",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 90},
		},
	)

	// Signed URL and proxy metrics
	signedURLsIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediacore_signed_urls_issued_total",
			Help: "Signed URL grants issued by TTL profile",
		},
		[]string{"profile"},
	)

	proxyFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediacore_proxy_fetches_total",
			Help: "Proxy relay fetches by result",
		},
		[]string{"result"},
	)

	proxyBytesRelayed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mediacore_proxy_bytes_relayed_total",
			Help: "Total bytes relayed by the media proxy",
		},
	)

	// Worker pool metrics
	poolQueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mediacore_workpool_queue_depth",
			Help: "Jobs waiting for a worker",
		},
		[]string{"pool"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// RecordHTTPRequest records an HTTP request metric.
func RecordHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordUpload records an upload through the storage service.
func RecordUpload(kind, mode string, size int64, success bool) {
	uploadsTotal.WithLabelValues(kind, mode, status(success)).Inc()
	if success && size > 0 {
		uploadBytes.WithLabelValues(kind).Add(float64(size))
	}
}

// RecordDelete records a delete outcome: "deleted", "absent" or "error".
func RecordDelete(result string) {
	deletesTotal.WithLabelValues(result).Inc()
}

// RecordBackendOperation records a storage backend call.
func RecordBackendOperation(backend, operation string, duration time.Duration, success bool) {
	backendOperationDuration.WithLabelValues(backend, operation).Observe(duration.Seconds())
	backendOperationsTotal.WithLabelValues(backend, operation, status(success)).Inc()
}

// RecordThumbnailAttempt records one extraction attempt.
func RecordThumbnailAttempt(strategy string, success bool) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	thumbnailAttemptsTotal.WithLabelValues(strategy, outcome).Inc()
}

// RecordThumbnail records a finished derivation.
func RecordThumbnail(duration time.Duration, placeholder bool) {
	thumbnailDuration.Observe(duration.Seconds())
	if placeholder {
		thumbnailPlaceholdersTotal.Inc()
	}
}

// RecordSignedURL records an issued grant.
func RecordSignedURL(profile string) {
	signedURLsIssued.WithLabelValues(profile).Inc()
}

// RecordProxyFetch records a proxy fetch; result is "ok", "invalid", "not_found" or "error".
func RecordProxyFetch(result string, size int) {
	proxyFetchesTotal.WithLabelValues(result).Inc()
	if size > 0 {
		proxyBytesRelayed.Add(float64(size))
	}
}

// SetPoolQueueDepth sets the number of queued jobs for a named pool.
func SetPoolQueueDepth(pool string, depth int) {
	poolQueueDepth.WithLabelValues(pool).Set(float64(depth))
}
