package server

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// serverMetrics holds all Prometheus metrics owned by the HTTP server.
// A single instance is created in New and stored on Server so that tests can
// inject a fresh prometheus.Registry without polluting the default one.
type serverMetrics struct {
	// httpRequestsTotal counts all HTTP requests handled by the mux,
	// partitioned by method, path, and status code.
	httpRequestsTotal *prometheus.CounterVec

	// httpDurationSeconds records the latency of all HTTP requests.
	httpDurationSeconds *prometheus.HistogramVec

	// ingestTotal counts incident ingestion outcomes over HTTP.
	ingestTotal *prometheus.CounterVec

	// analyzeTotal counts analysis requests, partitioned by operation and
	// outcome.
	analyzeTotal *prometheus.CounterVec

	// analyzeDuration records the wall-clock duration of successful
	// analysis requests, partitioned by operation.
	analyzeDuration *prometheus.HistogramVec
}

// newServerMetrics registers all server metrics against reg and returns the
// populated serverMetrics. promauto.With(reg) is used so that each call
// registers into the provided registry rather than the global default,
// keeping unit tests hermetic.
func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	factory := promauto.With(reg)

	return &serverMetrics{
		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "recall",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled by the server, partitioned by method, path, and status code.",
		}, []string{"method", "path", "code"}),

		httpDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "recall",
			Subsystem: "http",
			Name:      "duration_seconds",
			Help:      "Latency of HTTP requests handled by the server.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),

		ingestTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "recall",
			Subsystem: "http",
			Name:      "ingest_total",
			Help:      "Incident ingestion outcomes over HTTP, partitioned by outcome.",
		}, []string{"outcome"}),

		analyzeTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "recall",
			Subsystem: "http",
			Name:      "analyze_total",
			Help:      "Analysis requests, partitioned by operation and outcome.",
		}, []string{"operation", "outcome"}),

		analyzeDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "recall",
			Subsystem: "http",
			Name:      "analyze_duration_seconds",
			Help:      "Wall-clock duration of successful analysis requests.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
		}, []string{"operation"}),
	}
}

// observeRequest records one completed HTTP request.
func (m *serverMetrics) observeRequest(method, path string, status int, elapsed time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.httpDurationSeconds.WithLabelValues(method, path).Observe(elapsed.Seconds())
}
