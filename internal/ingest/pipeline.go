// Package ingest implements the incident ingestion pipeline. It renders each
// incident record into labelled text, chunks the text, embeds each chunk, and
// upserts the results into the vector store. Batches are processed in fixed
// windows with memory pressure checks between them.
// The pipeline is invoked by the `recall ingest` CLI command and the batch
// HTTP endpoint.
package ingest

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/opsrecall/recall-go/internal/chunk"
	"github.com/opsrecall/recall-go/internal/incident"
	"github.com/opsrecall/recall-go/internal/logging"
	"github.com/opsrecall/recall-go/internal/rag"
)

// MemoryGovernor is the slice of the resource monitor the pipeline needs:
// a conditional cleanup before each window and an unconditional one after.
// A nil governor disables backpressure entirely.
type MemoryGovernor interface {
	CheckAndMaybeCleanup(ctx context.Context)
	Cleanup(ctx context.Context)
}

// Config holds the configuration for the ingestion pipeline.
type Config struct {
	// ChunkSize is the maximum number of characters per document chunk.
	// Defaults to 1000 if zero.
	ChunkSize int

	// ChunkOverlap is the number of characters shared between consecutive
	// chunks. Defaults to 200 if zero.
	ChunkOverlap int

	// WindowSize is the number of incidents processed between memory
	// pressure checks during batch ingestion. Defaults to 25 if zero.
	WindowSize int

	// RenderPlaceholders renders "Not specified" style filler for absent
	// optional fields, matching datasets indexed under the legacy
	// formatting. Off by default.
	RenderPlaceholders bool
}

// Failure records one incident that could not be ingested during a batch.
type Failure struct {
	// Index is the incident's position in the submitted batch.
	Index int

	// IncidentID is the incident's identifier, empty if it had none.
	IncidentID string

	// Err is the reason ingestion failed.
	Err error
}

// BatchResult summarizes a batch ingestion run. Failures are isolated per
// incident: one bad record never aborts the rest of the batch.
type BatchResult struct {
	// Total is the number of incidents submitted.
	Total int

	// Succeeded is the number of incidents fully ingested.
	Succeeded int

	// Failures lists the incidents that were rejected or errored.
	Failures []Failure
}

// Pipeline orchestrates the render, chunk, embed, upsert flow for incident
// records.
type Pipeline struct {
	// embedder converts rendered chunks into dense vector embeddings.
	embedder rag.Embedder

	// store persists the embedded chunks.
	store rag.VectorStore

	// splitter chunks the rendered incident text.
	splitter *chunk.Splitter

	// governor applies memory backpressure between batch windows.
	governor MemoryGovernor

	// cfg holds the resolved pipeline configuration.
	cfg *Config

	// metrics counts ingestion outcomes. Never nil.
	metrics *Metrics

	// newID generates document IDs. Swapped in tests for determinism.
	newID func() string
}

// NewPipeline constructs a Pipeline from the provided dependencies and config.
// governor and metrics may be nil.
func NewPipeline(embedder rag.Embedder, store rag.VectorStore, governor MemoryGovernor, cfg *Config, metrics *Metrics) (*Pipeline, error) {
	if embedder == nil {
		return nil, fmt.Errorf("ingest: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("ingest: store must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 1000
	}
	if cfg.ChunkOverlap <= 0 {
		cfg.ChunkOverlap = 200
	}
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = 25
	}
	if metrics == nil {
		metrics = NopMetrics()
	}

	return &Pipeline{
		embedder: embedder,
		store:    store,
		splitter: chunk.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap),
		governor: governor,
		cfg:      cfg,
		metrics:  metrics,
		newID:    uuid.NewString,
	}, nil
}

// IngestOne renders, chunks, embeds, and stores a single incident.
// Ingestion always appends: re-submitting an incident adds new index rows
// rather than replacing the old ones.
func (p *Pipeline) IngestOne(ctx context.Context, in *incident.Incident) error {
	if in == nil {
		return fmt.Errorf("ingest: incident must not be nil")
	}
	if err := in.Validate(); err != nil {
		p.metrics.failed.Inc()
		return err
	}
	if !in.HasContent() {
		p.metrics.failed.Inc()
		return fmt.Errorf("ingest: incident %s has no embeddable content", in.ID)
	}

	chunks := p.splitter.Split(in.Render(p.cfg.RenderPlaceholders))
	if len(chunks) == 0 {
		p.metrics.failed.Inc()
		return fmt.Errorf("ingest: incident %s rendered to empty text", in.ID)
	}

	embeddings, err := p.embedder.EmbedDocuments(ctx, chunks)
	if err != nil {
		p.metrics.failed.Inc()
		return fmt.Errorf("ingest: embedding failed for incident %s: %w", in.ID, err)
	}

	docs := make([]rag.Document, 0, len(chunks))
	for i, c := range chunks {
		docs = append(docs, rag.Document{
			ID:      p.newID(),
			Content: c,
			Metadata: map[string]string{
				rag.MetaIncidentID: in.ID,
				rag.MetaTimestamp:  in.Timestamp,
				rag.MetaCategory:   in.Category,
				rag.MetaSeverity:   in.Severity,
				"chunk_index":      fmt.Sprintf("%d", i),
			},
		})
	}

	if err := p.store.Upsert(ctx, docs, embeddings); err != nil {
		p.metrics.failed.Inc()
		return fmt.Errorf("ingest: upsert failed for incident %s: %w", in.ID, err)
	}

	p.metrics.ingested.Inc()
	p.metrics.chunks.Add(float64(len(chunks)))
	return nil
}

// IngestBatch ingests incidents sequentially in windows of cfg.WindowSize.
// Before each window it gives the memory governor a chance to shed cache
// state if the process is under pressure; after each window it cleans up
// unconditionally so a long batch cannot accumulate working set.
//
// Each incident succeeds or fails on its own. The returned result reports
// per-item outcomes and is never nil.
func (p *Pipeline) IngestBatch(ctx context.Context, incidents []incident.Incident) *BatchResult {
	log := logging.FromContext(ctx)
	result := &BatchResult{Total: len(incidents)}

	for start := 0; start < len(incidents); start += p.cfg.WindowSize {
		end := start + p.cfg.WindowSize
		if end > len(incidents) {
			end = len(incidents)
		}

		if p.governor != nil {
			p.governor.CheckAndMaybeCleanup(ctx)
		}

		for i := start; i < end; i++ {
			if err := ctx.Err(); err != nil {
				for j := i; j < len(incidents); j++ {
					result.Failures = append(result.Failures, Failure{
						Index:      j,
						IncidentID: incidents[j].ID,
						Err:        err,
					})
				}
				p.metrics.windows.Inc()
				return result
			}

			if err := p.IngestOne(ctx, &incidents[i]); err != nil {
				log.Warn("incident ingestion failed",
					"index", i,
					"incident_id", incidents[i].ID,
					"error", err,
				)
				result.Failures = append(result.Failures, Failure{
					Index:      i,
					IncidentID: incidents[i].ID,
					Err:        err,
				})
				continue
			}
			result.Succeeded++
		}

		if p.governor != nil {
			p.governor.Cleanup(ctx)
		}
		p.metrics.windows.Inc()

		log.Debug("ingestion window complete",
			"window_end", end,
			"total", len(incidents),
			"succeeded", result.Succeeded,
		)
	}

	return result
}
