package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/opsrecall/recall-go/internal/analyzer"
	"github.com/opsrecall/recall-go/internal/incident"
	"github.com/opsrecall/recall-go/internal/ingest"
	"github.com/opsrecall/recall-go/internal/rag"
	"github.com/opsrecall/recall-go/internal/store"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// Registry is the Prometheus registry for server metrics and for the
	// GET /metrics endpoint. If nil, a private registry is created.
	Registry *prometheus.Registry
}

// ingester is the interface the incident handlers call.
// *ingest.Pipeline satisfies it; tests inject a fake.
type ingester interface {
	IngestOne(ctx context.Context, in *incident.Incident) error
	IngestBatch(ctx context.Context, incidents []incident.Incident) *ingest.BatchResult
}

// analysisService is the interface the analysis handlers call.
// *analyzer.Analyzer satisfies it; tests inject a fake.
type analysisService interface {
	AnalyzeRootCause(ctx context.Context, query string, k int) (*analyzer.Analysis, error)
	AnalyzePatterns(ctx context.Context, query string, k int) (*analyzer.Analysis, error)
}

// searcher is the interface the search handler calls.
// *rag.Searcher satisfies it; tests inject a fake.
type searcher interface {
	Search(ctx context.Context, query string, k int) ([]rag.Document, error)
}

// documentCounter reports the vector store size for GET /api/incidents/stats.
type documentCounter interface {
	Count(ctx context.Context) (uint64, error)
}

// cacheStats is the slice of a cache the stats handler reads.
type cacheStats interface {
	Len() int
	Stats() (hits, misses uint64)
	HitRate() float64
}

// historyReader lists persisted analyses for GET /api/analyses.
type historyReader interface {
	Recent(ctx context.Context, n int) ([]store.Record, error)
}

// Deps bundles the service dependencies the server exposes over HTTP.
// Ingester, Analyzer, and Searcher are required; the rest degrade the
// corresponding endpoints gracefully when nil.
type Deps struct {
	// Ingester processes incident submissions.
	Ingester ingester
	// Analyzer answers root-cause and pattern questions.
	Analyzer analysisService
	// Searcher serves similarity search requests.
	Searcher searcher
	// Documents reports the vector store size for the stats endpoint.
	Documents documentCounter
	// QueryCache supplies result cache statistics for the stats endpoint.
	QueryCache cacheStats
	// History lists persisted analyses.
	History historyReader
}

// Server is the HTTP server exposing the incident retrieval service.
type Server struct {
	// deps holds the wired service dependencies.
	deps Deps
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the server's Prometheus instruments.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// analyzeRequest is the JSON body for the POST /api/analyze/* endpoints.
type analyzeRequest struct {
	// Query is the incident description or pattern question.
	Query string `json:"query"`
	// K is the number of similar incidents to retrieve. Optional.
	K int `json:"k,omitempty"`
}

// ingestResponse is the JSON response for POST /api/incidents.
type ingestResponse struct {
	// Status is "ingested" on success.
	Status string `json:"status"`
	// IncidentID echoes the ingested incident's identifier.
	IncidentID string `json:"incident_id"`
}

// batchFailure is one rejected incident in a batch response.
type batchFailure struct {
	// Index is the incident's position in the submitted batch.
	Index int `json:"index"`
	// IncidentID is the incident's identifier, empty if it had none.
	IncidentID string `json:"incident_id,omitempty"`
	// Error is the rejection reason.
	Error string `json:"error"`
}

// batchResponse is the JSON response for POST /api/incidents/batch.
type batchResponse struct {
	// Total is the number of incidents submitted.
	Total int `json:"total"`
	// Succeeded is the number of incidents fully ingested.
	Succeeded int `json:"succeeded"`
	// Failures lists the incidents that were rejected or errored.
	Failures []batchFailure `json:"failures,omitempty"`
}

// searchResult is one document in a search response.
type searchResult struct {
	// Content is the matched chunk text.
	Content string `json:"content"`
	// Metadata holds the originating incident's fields.
	Metadata map[string]string `json:"metadata"`
	// Score is the cosine distance to the query. Lower is more similar.
	Score float32 `json:"score"`
}

// searchResponse is the JSON response for GET /api/search.
type searchResponse struct {
	// Query echoes the search query.
	Query string `json:"query"`
	// Results lists matched documents, most similar first.
	Results []searchResult `json:"results"`
}

// statsCache is one cache's statistics in a stats response.
type statsCache struct {
	// Entries is the current number of cached values.
	Entries int `json:"entries"`
	// Hits and Misses are lifetime lookup counts.
	Hits   uint64 `json:"hits"`
	Misses uint64 `json:"misses"`
	// HitRate is hits / (hits + misses), 0 before the first lookup.
	HitRate float64 `json:"hit_rate"`
}

// statsResponse is the JSON response for GET /api/incidents/stats.
type statsResponse struct {
	// TotalDocuments is the number of chunks in the vector store.
	TotalDocuments uint64 `json:"total_documents"`
	// QueryCache holds result cache statistics, if configured.
	QueryCache *statsCache `json:"query_cache,omitempty"`
}

// analysisRecord is one persisted analysis in the GET /api/analyses response.
type analysisRecord struct {
	// Operation is "root_cause" or "patterns".
	Operation string `json:"operation"`
	// Query is the submitted question.
	Query string `json:"query"`
	// Answer is the model's analysis text.
	Answer string `json:"answer"`
	// Sources is the number of retrieved documents the answer drew on.
	Sources int `json:"sources"`
	// CacheHit marks answers served from the query result cache.
	CacheHit bool `json:"cache_hit"`
	// CreatedAt is when the analysis was persisted (RFC3339).
	CreatedAt string `json:"created_at"`
}
