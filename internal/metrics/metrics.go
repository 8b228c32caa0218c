// Package metrics exposes Prometheus collectors for the logo resolver.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	resolutionsTotal           *prometheus.CounterVec
	resolutionDurationSeconds  *prometheus.HistogramVec
	candidateAttemptsTotal     *prometheus.CounterVec
	assetBytesTotal            prometheus.Counter
	headlessPromotionsTotal    prometheus.Counter
	batchesTotal               *prometheus.CounterVec
	activeWorkers              prometheus.Gauge
	rateLimitDelaysSeconds     prometheus.Histogram
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		resolutionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "logo_resolutions_total",
				Help: "Total number of URLs resolved, labeled by terminal status.",
			},
			[]string{"status"},
		)

		resolutionDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "logo_resolution_duration_seconds",
				Help:    "Histogram of end-to-end resolution time per URL.",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"status"},
		)

		candidateAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "logo_candidate_attempts_total",
				Help: "Candidates tried by the resolver, labeled by strategy and outcome.",
			},
			[]string{"strategy", "outcome"},
		)

		assetBytesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "logo_asset_bytes_total",
				Help: "Total bytes of candidate assets fetched.",
			},
		)

		headlessPromotionsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "logo_headless_promotions_total",
				Help: "Documents re-rendered with the headless browser.",
			},
		)

		batchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "logo_batches_total",
				Help: "Total number of batches finished, labeled by final state.",
			},
			[]string{"state"},
		)

		activeWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "logo_active_workers",
				Help: "Number of workers currently resolving a URL.",
			},
		)

		rateLimitDelaysSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "logo_rate_limit_delay_seconds",
				Help:    "Histogram of per-host rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
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
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

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
	Init()
	return promhttp.Handler()
}

// ObserveResolution records one finished URL.
func ObserveResolution(status string, duration time.Duration) {
	Init()
	resolutionsTotal.WithLabelValues(status).Inc()
	resolutionDurationSeconds.WithLabelValues(status).Observe(duration.Seconds())
}

// ObserveCandidate records one resolver attempt.
func ObserveCandidate(strategy, outcome string, bytesFetched int) {
	Init()
	candidateAttemptsTotal.WithLabelValues(strategy, outcome).Inc()
	if bytesFetched > 0 {
		assetBytesTotal.Add(float64(bytesFetched))
	}
}

// ObserveHeadlessPromotion counts a headless re-render.
func ObserveHeadlessPromotion() {
	Init()
	headlessPromotionsTotal.Inc()
}

// ObserveBatch increments the batch counter for the given final state.
func ObserveBatch(state string) {
	Init()
	batchesTotal.WithLabelValues(state).Inc()
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	Init()
	activeWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	Init()
	activeWorkers.Dec()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(duration time.Duration) {
	Init()
	rateLimitDelaysSeconds.Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
