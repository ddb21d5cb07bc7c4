// Package metrics exposes Prometheus collectors for the scraper.
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

// Fallback scopes.
const (
	ScopeBatch = "batch"
	ScopeItem  = "item"
)

var (
	runsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_runs_total",
			Help: "Total number of scrape runs, labeled by mode and status.",
		},
		[]string{"mode", "status"},
	)

	recordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_records_total",
			Help: "Total number of hashtag records produced, labeled by mode and origin.",
		},
		[]string{"mode", "origin"},
	)

	fallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_fallbacks_total",
			Help: "Total number of fallback substitutions, labeled by scope (batch or item).",
		},
		[]string{"scope"},
	)

	stageFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_stage_failures_total",
			Help: "Total number of per-record enrichment failures, labeled by stage.",
		},
		[]string{"stage"},
	)

	fetchDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scraper_fetch_duration_seconds",
			Help:    "Histogram of page fetch latencies, labeled by kind and outcome.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"kind", "outcome"},
	)

	rateLimitDelaysSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scraper_rate_limit_delays_seconds",
			Help:    "Histogram of rate limit wait durations.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"host"},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests, labeled by method and code.",
		},
		[]string{"method", "code"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, labeled by method and route.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 30},
		},
		[]string{"method", "route"},
	)
)

// SanitizeHost extracts a lowercase hostname from a URL.
// It returns "unknown" if the URL is invalid.
func SanitizeHost(rawURL string) string {
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

// ObserveRun increments the run counter.
func ObserveRun(mode, status string) {
	runsTotal.WithLabelValues(mode, status).Inc()
}

// ObserveRecords adds n produced records.
func ObserveRecords(mode, origin string, n int) {
	if n <= 0 {
		return
	}
	recordsTotal.WithLabelValues(mode, origin).Add(float64(n))
}

// ObserveFallback increments the fallback counter for scope.
func ObserveFallback(scope string) {
	fallbacksTotal.WithLabelValues(scope).Inc()
}

// ObserveStageFailure increments the enrichment failure counter for stage.
func ObserveStageFailure(stage string) {
	stageFailuresTotal.WithLabelValues(stage).Inc()
}

// ObserveFetch records a page fetch latency.
func ObserveFetch(kind string, err error, duration time.Duration) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	fetchDurationSeconds.WithLabelValues(kind, outcome).Observe(duration.Seconds())
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(host string, duration time.Duration) {
	rateLimitDelaysSeconds.WithLabelValues(host).Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
