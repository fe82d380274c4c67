// Package metrics exposes Prometheus collectors for the gateway.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	providerCallsTotal         *prometheus.CounterVec
	poolActiveWorkers          prometheus.Gauge
	probeResultsTotal          *prometheus.CounterVec
	enrichmentsTotal           *prometheus.CounterVec
	rateLimitDelaysSeconds     *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meting_http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "meting_http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15},
			},
			[]string{"method", "route"},
		)

		providerCallsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meting_provider_calls_total",
				Help: "Total number of Provider Client calls, labeled by capability and status.",
			},
			[]string{"capability", "status"},
		)

		poolActiveWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "meting_pool_active_workers",
				Help: "Number of resolution operations currently in flight.",
			},
		)

		probeResultsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meting_probe_results_total",
				Help: "Total number of completed probes, labeled by method used and status class.",
			},
			[]string{"via", "class"},
		)

		enrichmentsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meting_enrichments_total",
				Help: "Total number of enrichment decisions, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		rateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "meting_upstream_rate_limit_delays_seconds",
				Help:    "Histogram of upstream rate limit wait durations.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
			},
			[]string{"key"},
		)
	})
}

// StatusClass buckets an HTTP status code as "1xx" through "5xx".
// Anything outside that range is "unknown".
func StatusClass(code int) string {
	if code < 100 || code > 599 {
		return "unknown"
	}
	return strconv.Itoa(code/100) + "xx"
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveProviderCall records the outcome of one Provider Client call.
func ObserveProviderCall(capability string, err error) {
	Init()
	status := "ok"
	if err != nil {
		status = "error"
	}
	providerCallsTotal.WithLabelValues(capability, status).Inc()
}

// AddActiveWorkers moves the in-flight resolution gauge by delta.
func AddActiveWorkers(delta int) {
	Init()
	poolActiveWorkers.Add(float64(delta))
}

// ObserveProbe records a completed probe.
func ObserveProbe(via string, statusCode int) {
	Init()
	probeResultsTotal.WithLabelValues(via, StatusClass(statusCode)).Inc()
}

// ObserveEnrichment records whether a query result was enriched.
func ObserveEnrichment(outcome string) {
	Init()
	enrichmentsTotal.WithLabelValues(outcome).Inc()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(key string, duration time.Duration) {
	Init()
	rateLimitDelaysSeconds.WithLabelValues(key).Observe(duration.Seconds())
}
