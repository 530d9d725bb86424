// Package metrics exposes Prometheus collectors for the harvester.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	cacheRequestsTotal         *prometheus.CounterVec
	cacheBackendDegraded       prometheus.Gauge
	extractionsTotal           *prometheus.CounterVec
	extractionDurationSeconds  *prometheus.HistogramVec
	activeTasks                prometheus.Gauge
	recordsTotal               *prometheus.CounterVec
	rateLimitDelaysSeconds     *prometheus.HistogramVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		cacheRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_cache_requests_total",
				Help: "Cache lookups, labeled by key prefix (source type) and result.",
			},
			[]string{"prefix", "result"},
		)

		cacheBackendDegraded = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "harvester_cache_backend_degraded",
				Help: "1 while the primary cache backend is unavailable and the fallback store serves traffic.",
			},
		)

		extractionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_extractions_total",
				Help: "Extraction task outcomes, labeled by source type, status and error kind.",
			},
			[]string{"source_type", "status", "kind"},
		)

		extractionDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "harvester_extraction_duration_seconds",
				Help:    "Histogram of extraction task durations, labeled by source type.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"source_type"},
		)

		activeTasks = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "harvester_active_tasks",
				Help: "Number of extraction tasks currently executing.",
			},
		)

		recordsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_records_total",
				Help: "Records observed at each processing stage.",
			},
			[]string{"stage"},
		)

		rateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "harvester_rate_limit_delays_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"source_type"},
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

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveCacheLookup counts a cache hit or miss for prefix.
func ObserveCacheLookup(prefix string, hit bool) {
	Init()
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheRequestsTotal.WithLabelValues(prefix, result).Inc()
}

// SetBackendDegraded flips the degraded gauge.
func SetBackendDegraded(degraded bool) {
	Init()
	if degraded {
		cacheBackendDegraded.Set(1)
		return
	}
	cacheBackendDegraded.Set(0)
}

// ObserveExtraction records the outcome and duration of one task.
func ObserveExtraction(sourceType, status, kind string, duration time.Duration) {
	Init()
	extractionsTotal.WithLabelValues(sourceType, status, kind).Inc()
	extractionDurationSeconds.WithLabelValues(sourceType).Observe(duration.Seconds())
}

// IncActiveTasks increments the active task gauge.
func IncActiveTasks() {
	Init()
	activeTasks.Inc()
}

// DecActiveTasks decrements the active task gauge.
func DecActiveTasks() {
	Init()
	activeTasks.Dec()
}

// ObserveRecords adds n to the counter for a processing stage.
func ObserveRecords(stage string, n int) {
	Init()
	if n > 0 {
		recordsTotal.WithLabelValues(stage).Add(float64(n))
	}
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(sourceType string, duration time.Duration) {
	Init()
	rateLimitDelaysSeconds.WithLabelValues(sourceType).Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Middleware is a chi middleware that records HTTP request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(ww, r)

		routePattern := "unknown"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			routePattern = rctx.RoutePattern()
		}
		ObserveHTTPRequest(r.Method, routePattern, ww.statusCode, time.Since(start))
	})
}

// statusRecorder wraps http.ResponseWriter to capture the status code.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.statusCode = code
	rec.ResponseWriter.WriteHeader(code)
}
