// Package metrics exposes Prometheus collectors for the harvester pipeline.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	fetchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvester_fetch_requests_total",
			Help: "Total HTTP fetches, labeled by resource class and status class.",
		},
		[]string{"class", "status"},
	)

	fetchRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvester_fetch_retries_total",
			Help: "Total fetch attempts retried after a transient failure, labeled by resource class.",
		},
		[]string{"class"},
	)

	fetchBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvester_fetch_bytes_total",
			Help: "Total bytes downloaded, labeled by site.",
		},
		[]string{"site"},
	)

	throttleDelaySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "harvester_throttle_delay_seconds",
			Help:    "Histogram of pacing waits before dispatch, labeled by resource class.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"class"},
	)

	searchQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvester_search_queries_total",
			Help: "Total search queries, labeled by backend and outcome.",
		},
		[]string{"backend", "outcome"},
	)

	snapshotLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvester_snapshot_lookups_total",
			Help: "Total capture index lookups, labeled by outcome.",
		},
		[]string{"outcome"},
	)

	archiveSaveRequests = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "harvester_archive_save_requests_total",
			Help: "Total save-page-now escalations sent to the archive.",
		},
	)

	extractionResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvester_extraction_results_total",
			Help: "Total extraction attempts, labeled by result.",
		},
		[]string{"result"},
	)

	discoveryCandidatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvester_discovery_candidates_total",
			Help: "Total search candidates considered, labeled by outcome.",
		},
		[]string{"outcome"},
	)

	workersActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "harvester_workers_active",
			Help: "Current number of scrape workers executing a task.",
		},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests served, labeled by method and code.",
		},
		[]string{"method", "code"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency, labeled by method and route.",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"method", "route"},
	)
)

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFetch records one completed fetch attempt.
func ObserveFetch(class string, statusClass string, site string, bytesFetched int) {
	fetchRequestsTotal.WithLabelValues(class, statusClass).Inc()
	if bytesFetched > 0 {
		fetchBytesTotal.WithLabelValues(SanitizeSite(site)).Add(float64(bytesFetched))
	}
}

// ObserveFetchRetry counts a retried attempt for the class.
func ObserveFetchRetry(class string) {
	fetchRetriesTotal.WithLabelValues(class).Inc()
}

// ObserveThrottleDelay records how long a request waited on its class gate.
func ObserveThrottleDelay(class string, duration time.Duration) {
	throttleDelaySeconds.WithLabelValues(class).Observe(duration.Seconds())
}

// ObserveSearch counts a search query outcome ("results", "empty", "error").
func ObserveSearch(backend string, outcome string) {
	searchQueriesTotal.WithLabelValues(backend, outcome).Inc()
}

// ObserveSnapshotLookup counts a capture index outcome ("hit", "miss", "error").
func ObserveSnapshotLookup(outcome string) {
	snapshotLookupsTotal.WithLabelValues(outcome).Inc()
}

// ObserveArchiveSaveRequest counts a save-page-now escalation.
func ObserveArchiveSaveRequest() {
	archiveSaveRequests.Inc()
}

// ObserveExtraction counts an extraction result ("ok", "invalid", "empty", "fetch_error").
func ObserveExtraction(result string) {
	extractionResultsTotal.WithLabelValues(result).Inc()
}

// ObserveDiscoveryCandidate counts one considered search result
// ("accepted", "rejected", "duplicate").
func ObserveDiscoveryCandidate(outcome string) {
	discoveryCandidatesTotal.WithLabelValues(outcome).Inc()
}

// WorkerStarted and WorkerDone bracket one task execution on the pool gauge.
func WorkerStarted() {
	workersActive.Inc()
}

// WorkerDone decrements the active-worker gauge.
func WorkerDone() {
	workersActive.Dec()
}

// ObserveHTTPRequest records one served request on the ops listener.
func ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
