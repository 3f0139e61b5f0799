package resource

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics owned by the resource monitor.
type Metrics struct {
	// rssBytes is the most recently sampled resident set size.
	rssBytes prometheus.Gauge

	// cleanups counts cleanup rounds (threshold-triggered and windowed).
	cleanups prometheus.Counter

	// evicted counts cache entries released by cleanups.
	evicted prometheus.Counter
}

// NewMetrics registers the resource monitor metrics against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		rssBytes: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "recall",
			Subsystem: "resource",
			Name:      "rss_bytes",
			Help:      "Resident set size at the last memory sample.",
		}),
		cleanups: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "recall",
			Subsystem: "resource",
			Name:      "cleanups_total",
			Help:      "Cleanup rounds performed by the resource monitor.",
		}),
		evicted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "recall",
			Subsystem: "resource",
			Name:      "evicted_entries_total",
			Help:      "Cache entries released by resource cleanups.",
		}),
	}
}
