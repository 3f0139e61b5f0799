// Package embedder provides embedding model backends for converting text into
// dense vector embeddings. Each backend talks to its API via plain HTTP,
// with no additional SDK dependencies.
//
// Backends expose a compute placement: an accelerated endpoint sized for
// large batches (typically a GPU-backed Ollama host) and a fallback endpoint
// for small batches and single queries. The bounded embedding cache decides
// the placement per batch; backends only execute on the one they are given.
package embedder

import (
	"context"
)

// Placement selects the compute resource for a batch of embedding work.
type Placement string

const (
	// PlacementAccelerated routes the batch to the high-throughput endpoint.
	PlacementAccelerated Placement = "accelerated"

	// PlacementFallback routes the batch to the low-power endpoint.
	PlacementFallback Placement = "fallback"
)

// Model computes embeddings on a chosen placement.
// Implementations must be safe to call from multiple goroutines.
type Model interface {
	// Compute converts a batch of texts into their embeddings on the given
	// placement. The returned slice is parallel to the input slice.
	Compute(ctx context.Context, texts []string, placement Placement) ([][]float32, error)

	// HasAccelerated reports whether an accelerated endpoint is configured.
	// When false, Compute treats every placement as PlacementFallback.
	HasAccelerated() bool
}
