package querycache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics owned by one query result cache.
type Metrics struct {
	// hits counts Get calls that found an entry.
	hits prometheus.Counter

	// misses counts Get calls that found nothing.
	misses prometheus.Counter

	// evictions counts FIFO evictions at capacity.
	evictions prometheus.Counter

	// size tracks the current number of cached results.
	size prometheus.Gauge
}

// NewMetrics registers the query cache metrics against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		hits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "recall",
			Subsystem: "query_cache",
			Name:      "hits_total",
			Help:      "Result lookups served from the cache.",
		}),
		misses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "recall",
			Subsystem: "query_cache",
			Name:      "misses_total",
			Help:      "Result lookups that missed the cache.",
		}),
		evictions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "recall",
			Subsystem: "query_cache",
			Name:      "evictions_total",
			Help:      "Entries evicted in FIFO order at capacity.",
		}),
		size: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "recall",
			Subsystem: "query_cache",
			Name:      "entries",
			Help:      "Current number of cached results.",
		}),
	}
}
