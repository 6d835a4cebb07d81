// Package metrics provides Prometheus metrics for a sync run.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// API client metrics
	apiRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alist_mirror_api_requests_total",
			Help: "Total number of AList API requests",
		},
		[]string{"op", "status"},
	)

	rateLimitTimeoutsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "alist_mirror_rate_limit_timeouts_total",
			Help: "Requests abandoned waiting for a rate limiter token",
		},
	)

	// Download pipeline metrics
	downloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alist_mirror_downloads_total",
			Help: "Download tasks by final status",
		},
		[]string{"status"},
	)

	downloadBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "alist_mirror_download_bytes_total",
			Help: "Total bytes written by the download pipeline",
		},
	)

	checksumMismatchesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "alist_mirror_checksum_mismatches_total",
			Help: "Downloads whose post-write hash disagreed with the remote hash",
		},
	)

	// Crawl metrics
	crawlEntriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "alist_mirror_crawl_entries_total",
			Help: "Remote entries discovered by the crawler",
		},
	)

	crawlFailedDirsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "alist_mirror_crawl_failed_dirs_total",
			Help: "Directories abandoned after exhausting listing retries",
		},
	)

	// Reconciliation metrics
	reconcileDeletesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alist_mirror_reconcile_deletes_total",
			Help: "Local entries removed by reconciliation",
		},
		[]string{"kind"},
	)
)

// ObserveAPIRequest records one API call outcome.
func ObserveAPIRequest(op, status string) {
	apiRequestsTotal.WithLabelValues(op, status).Inc()
}

// ObserveRateLimitTimeout records a rate limiter wait that timed out.
func ObserveRateLimitTimeout() {
	rateLimitTimeoutsTotal.Inc()
}

// ObserveDownload records a finished download task.
func ObserveDownload(status string) {
	downloadsTotal.WithLabelValues(status).Inc()
}

// AddDownloadBytes accumulates bytes written to local files.
func AddDownloadBytes(n int64) {
	downloadBytesTotal.Add(float64(n))
}

// ObserveChecksumMismatch records a failed post-download verification.
func ObserveChecksumMismatch() {
	checksumMismatchesTotal.Inc()
}

// AddCrawlEntries accumulates entries returned by directory listings.
func AddCrawlEntries(n int) {
	crawlEntriesTotal.Add(float64(n))
}

// ObserveCrawlFailedDir records a directory the crawl gave up on.
func ObserveCrawlFailedDir() {
	crawlFailedDirsTotal.Inc()
}

// ObserveReconcileDelete records a reconciliation deletion ("file" or "dir").
func ObserveReconcileDelete(kind string) {
	reconcileDeletesTotal.WithLabelValues(kind).Inc()
}

// Handler returns the Prometheus exposition handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve exposes /metrics on addr. Blocks until the listener fails.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	return http.ListenAndServe(addr, mux)
}
