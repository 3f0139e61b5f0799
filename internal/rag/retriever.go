package rag

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/opsrecall/recall-go/internal/logging"
)

// Searcher retrieves the prior incident documents most relevant to a query.
// It embeds the query, asks the VectorStore for k candidates, and keeps only
// those whose distance is below the configured threshold, so callers may
// receive fewer than k documents, including none.
type Searcher struct {
	// embedder converts query text to a dense vector.
	embedder Embedder

	// store performs the vector similarity search.
	store VectorStore

	// scoreThreshold is the cosine distance cutoff; only documents scoring
	// strictly below it are returned.
	scoreThreshold float32

	// defaultK is the candidate count requested when the caller passes 0.
	defaultK int
}

// NewSearcher constructs a Searcher from the given Embedder and VectorStore.
// scoreThreshold defaults to 0.5 when zero or negative; defaultK sets the
// fallback candidate count when Search is called with k=0 (default 5).
func NewSearcher(embedder Embedder, store VectorStore, scoreThreshold float32, defaultK int) (*Searcher, error) {
	if embedder == nil {
		return nil, fmt.Errorf("rag: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("rag: store must not be nil")
	}
	if scoreThreshold <= 0 {
		scoreThreshold = 0.5
	}
	if defaultK <= 0 {
		defaultK = 5
	}
	return &Searcher{
		embedder:       embedder,
		store:          store,
		scoreThreshold: scoreThreshold,
		defaultK:       defaultK,
	}, nil
}

// Search embeds the query and returns the candidates scoring below the
// distance threshold, keeping the store's ascending-distance order.
//
// An embedding failure is returned to the caller; without a query vector
// there is nothing meaningful to degrade to. A VectorStore failure instead
// degrades to an empty result with a warning log: a single bad query must
// not surface an error through the analysis path.
func (s *Searcher) Search(ctx context.Context, query string, k int) ([]Document, error) {
	if k <= 0 {
		k = s.defaultK
	}

	vec, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("rag: embedding query failed: %w", err)
	}
	if vec == nil {
		return nil, nil
	}

	candidates, err := s.store.Search(ctx, vec, k)
	if err != nil {
		logging.FromContext(ctx).Warn("rag: vector search failed, returning empty result",
			slog.String("error", err.Error()),
			slog.Int("k", k),
		)
		return []Document{}, nil
	}

	filtered := make([]Document, 0, len(candidates))
	for _, doc := range candidates {
		if doc.Score < s.scoreThreshold {
			filtered = append(filtered, doc)
		}
	}

	return filtered, nil
}
