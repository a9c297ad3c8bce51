package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	registry         *prometheus.Registry
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	sessionsEnqueued *prometheus.CounterVec
	rateLimited      prometheus.Counter
}

func newMetrics() *metrics {
	registry := prometheus.NewRegistry()

	m := &metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "glow_api_http_requests_total",
			Help: "HTTP requests handled by the API.",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "glow_api_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		sessionsEnqueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "glow_api_sessions_enqueued_total",
			Help: "Enhancement tasks enqueued by queue name.",
		}, []string{"queue"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "glow_api_rate_limited_total",
			Help: "Requests rejected by the rate limiter.",
		}),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requestsTotal,
		m.requestDuration,
		m.sessionsEnqueued,
		m.rateLimited,
	)

	return m
}

func (m *metrics) metricsHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (m *metrics) withHTTPMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		route := routeLabel(r.URL.Path)
		m.requestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// routeLabel collapses session IDs so metric cardinality stays bounded.
func routeLabel(path string) string {
	if path == "/healthz" || path == "/v1/sessions" {
		return path
	}
	if !strings.HasPrefix(path, "/v1/sessions/") {
		return "other"
	}

	rest := strings.TrimPrefix(path, "/v1/sessions/")
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) == 1 {
		return "/v1/sessions/{id}"
	}
	switch parts[1] {
	case "enhance", "settings", "comparison", "result":
		return "/v1/sessions/{id}/" + parts[1]
	default:
		return "other"
	}
}
