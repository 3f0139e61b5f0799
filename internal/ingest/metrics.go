package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics owned by one ingestion pipeline.
// Registered via promauto.With so that tests can inject a fresh registry
// without polluting the default one.
type Metrics struct {
	// ingested counts incidents fully ingested into the vector store.
	ingested prometheus.Counter

	// failed counts incidents rejected or errored during ingestion.
	failed prometheus.Counter

	// chunks counts document chunks written to the vector store.
	chunks prometheus.Counter

	// windows counts completed batch ingestion windows.
	windows prometheus.Counter
}

// NewMetrics registers the ingestion metrics against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ingested: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "recall",
			Subsystem: "ingest",
			Name:      "incidents_total",
			Help:      "Incidents fully ingested into the vector store.",
		}),
		failed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "recall",
			Subsystem: "ingest",
			Name:      "failures_total",
			Help:      "Incidents rejected or errored during ingestion.",
		}),
		chunks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "recall",
			Subsystem: "ingest",
			Name:      "chunks_total",
			Help:      "Document chunks written to the vector store.",
		}),
		windows: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "recall",
			Subsystem: "ingest",
			Name:      "windows_total",
			Help:      "Completed batch ingestion windows.",
		}),
	}
}

// NopMetrics returns metrics bound to a private registry, for callers that
// do not export ingestion metrics.
func NopMetrics() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}
