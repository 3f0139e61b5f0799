package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/opsrecall/recall-go/internal/analyzer"
	"github.com/opsrecall/recall-go/internal/incident"
	"github.com/opsrecall/recall-go/internal/logging"
)

// maxAnalysesListed caps the GET /api/analyses page size.
const maxAnalysesListed = 100

// handleHealth handles GET /api/health for liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleIngest handles POST /api/incidents. The body is a single incident
// record; it is validated, chunked, embedded, and stored synchronously.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var in incident.Incident
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := s.deps.Ingester.IngestOne(r.Context(), &in); err != nil {
		s.metrics.ingestTotal.WithLabelValues("error").Inc()
		status := http.StatusInternalServerError
		if errors.Is(err, incident.ErrMissingID) {
			status = http.StatusBadRequest
		}
		http.Error(w, err.Error(), status)
		return
	}

	s.metrics.ingestTotal.WithLabelValues("ok").Inc()
	writeJSON(w, http.StatusCreated, ingestResponse{Status: "ingested", IncidentID: in.ID})
}

// handleIngestBatch handles POST /api/incidents/batch. The body is a JSON
// array of incident records. Bad records are reported individually; the rest
// of the batch proceeds.
func (s *Server) handleIngestBatch(w http.ResponseWriter, r *http.Request) {
	var incidents []incident.Incident
	if err := json.NewDecoder(r.Body).Decode(&incidents); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(incidents) == 0 {
		http.Error(w, "batch must not be empty", http.StatusBadRequest)
		return
	}

	result := s.deps.Ingester.IngestBatch(r.Context(), incidents)

	resp := batchResponse{Total: result.Total, Succeeded: result.Succeeded}
	for _, f := range result.Failures {
		resp.Failures = append(resp.Failures, batchFailure{
			Index:      f.Index,
			IncidentID: f.IncidentID,
			Error:      f.Err.Error(),
		})
	}
	s.metrics.ingestTotal.WithLabelValues("ok").Add(float64(result.Succeeded))
	s.metrics.ingestTotal.WithLabelValues("error").Add(float64(len(result.Failures)))

	// 207 when the batch partially failed so clients notice without parsing.
	status := http.StatusOK
	if len(resp.Failures) > 0 {
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, resp)
}

// handleAnalyzeRootCause handles POST /api/analyze/root-cause.
func (s *Server) handleAnalyzeRootCause(w http.ResponseWriter, r *http.Request) {
	s.handleAnalyze(w, r, "root_cause", s.deps.Analyzer.AnalyzeRootCause)
}

// handleAnalyzePatterns handles POST /api/analyze/patterns.
func (s *Server) handleAnalyzePatterns(w http.ResponseWriter, r *http.Request) {
	s.handleAnalyze(w, r, "patterns", s.deps.Analyzer.AnalyzePatterns)
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request, op string, run func(ctx context.Context, query string, k int) (*analyzer.Analysis, error)) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Query == "" {
		http.Error(w, "query is required", http.StatusBadRequest)
		return
	}

	start := time.Now()
	result, err := run(r.Context(), req.Query, req.K)
	if err != nil {
		s.metrics.analyzeTotal.WithLabelValues(op, "error").Inc()
		logging.FromContext(r.Context()).Error("analysis failed",
			slog.String("operation", op),
			slog.Any("error", err),
		)
		http.Error(w, "analysis failed", http.StatusBadGateway)
		return
	}
	s.metrics.analyzeTotal.WithLabelValues(op, "ok").Inc()
	s.metrics.analyzeDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())

	writeJSON(w, http.StatusOK, result)
}

// handleSearch handles GET /api/search?query=<text>&k=<n>.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	if query == "" {
		http.Error(w, "query parameter is required", http.StatusBadRequest)
		return
	}
	k := 0
	if raw := r.URL.Query().Get("k"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			http.Error(w, "k must be a non-negative integer", http.StatusBadRequest)
			return
		}
		k = n
	}

	docs, err := s.deps.Searcher.Search(r.Context(), query, k)
	if err != nil {
		logging.FromContext(r.Context()).Error("search failed", slog.Any("error", err))
		http.Error(w, "search failed", http.StatusBadGateway)
		return
	}

	resp := searchResponse{Query: query, Results: []searchResult{}}
	for _, d := range docs {
		resp.Results = append(resp.Results, searchResult{
			Content:  d.Content,
			Metadata: d.Metadata,
			Score:    d.Score,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleStats handles GET /api/incidents/stats. A failing vector store count
// degrades to zero rather than failing the whole endpoint.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	resp := statsResponse{}

	if s.deps.Documents != nil {
		count, err := s.deps.Documents.Count(r.Context())
		if err != nil {
			logging.FromContext(r.Context()).Warn("stats: document count failed", slog.Any("error", err))
		} else {
			resp.TotalDocuments = count
		}
	}

	if s.deps.QueryCache != nil {
		hits, misses := s.deps.QueryCache.Stats()
		resp.QueryCache = &statsCache{
			Entries: s.deps.QueryCache.Len(),
			Hits:    hits,
			Misses:  misses,
			HitRate: s.deps.QueryCache.HitRate(),
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleAnalyses handles GET /api/analyses?n=<limit>.
func (s *Server) handleAnalyses(w http.ResponseWriter, r *http.Request) {
	if s.deps.History == nil {
		http.Error(w, "analysis history is disabled", http.StatusNotFound)
		return
	}

	n := 20
	if raw := r.URL.Query().Get("n"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			http.Error(w, "n must be a positive integer", http.StatusBadRequest)
			return
		}
		n = v
	}
	if n > maxAnalysesListed {
		n = maxAnalysesListed
	}

	recs, err := s.deps.History.Recent(r.Context(), n)
	if err != nil {
		logging.FromContext(r.Context()).Error("analyses listing failed", slog.Any("error", err))
		http.Error(w, "history unavailable", http.StatusInternalServerError)
		return
	}

	out := make([]analysisRecord, 0, len(recs))
	for _, rec := range recs {
		out = append(out, analysisRecord{
			Operation: string(rec.Operation),
			Query:     rec.Query,
			Answer:    rec.Answer,
			Sources:   rec.Sources,
			CacheHit:  rec.CacheHit,
			CreatedAt: rec.CreatedAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// writeJSON writes v as a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
