package embedcache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics owned by one embedding cache instance.
// Registered via promauto.With so that tests can inject a fresh registry
// without polluting the default one.
type Metrics struct {
	// hits counts embed lookups served from cache.
	hits prometheus.Counter

	// misses counts embed lookups requiring backend computation.
	misses prometheus.Counter

	// size tracks the current number of cached entries.
	size prometheus.Gauge

	// trims counts overflow evictions of the oldest half of the cache.
	trims prometheus.Counter

	// placementSwitches counts compute placement changes on the worker.
	placementSwitches prometheus.Counter
}

// NewMetrics registers the embedding cache metrics against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		hits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "recall",
			Subsystem: "embed_cache",
			Name:      "hits_total",
			Help:      "Embedding lookups served from the cache.",
		}),
		misses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "recall",
			Subsystem: "embed_cache",
			Name:      "misses_total",
			Help:      "Embedding lookups that required backend computation.",
		}),
		size: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "recall",
			Subsystem: "embed_cache",
			Name:      "entries",
			Help:      "Current number of cached text embeddings.",
		}),
		trims: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "recall",
			Subsystem: "embed_cache",
			Name:      "trims_total",
			Help:      "Overflow evictions discarding the oldest half of the cache.",
		}),
		placementSwitches: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "recall",
			Subsystem: "embed_cache",
			Name:      "placement_switches_total",
			Help:      "Compute placement changes performed by the embed worker.",
		}),
	}
}
