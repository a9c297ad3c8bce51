package worker

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	registry             *prometheus.Registry
	sessionsTotal        *prometheus.CounterVec
	sessionDuration      *prometheus.HistogramVec
	activeSessions       prometheus.Gauge
	pixelsProcessedTotal prometheus.Counter
	outputBytesTotal     prometheus.Counter
	computeTimeMSTotal   prometheus.Counter
}

func newMetrics() *metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &metrics{
		registry: registry,
		sessionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "glow_worker_sessions_total",
			Help: "Total enhancement runs by source type and final status.",
		}, []string{"source_type", "status"}),
		sessionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "glow_worker_session_duration_seconds",
			Help:    "Total processing duration for each enhancement run.",
			Buckets: prometheus.DefBuckets,
		}, []string{"source_type", "status"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "glow_worker_active_sessions",
			Help: "Current number of enhancement runs being processed.",
		}),
		pixelsProcessedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "glow_usage_pixels_processed_total",
			Help: "Total pixels processed across all successful runs.",
		}),
		outputBytesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "glow_usage_output_bytes_total",
			Help: "Total enhanced output bytes across all successful runs.",
		}),
		computeTimeMSTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "glow_usage_compute_time_ms_total",
			Help: "Total compute time in milliseconds across successful runs.",
		}),
	}

	registry.MustRegister(
		m.sessionsTotal,
		m.sessionDuration,
		m.activeSessions,
		m.pixelsProcessedTotal,
		m.outputBytesTotal,
		m.computeTimeMSTotal,
	)
	return m
}

func (m *metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
