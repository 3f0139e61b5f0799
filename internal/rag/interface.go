// Package rag defines the interfaces of the incident retrieval pipeline:
// vector storage, embedding, and similarity search. Concrete implementations
// (Qdrant, the caching embedder) satisfy these interfaces so the analysis
// layer never depends on a specific backend.
package rag

import (
	"context"
)

// Metadata keys attached to every incident document.
const (
	// MetaIncidentID is the originating incident's identifier.
	MetaIncidentID = "incident_id"
	// MetaTimestamp is the incident's timestamp.
	MetaTimestamp = "timestamp"
	// MetaCategory is the incident's category.
	MetaCategory = "category"
	// MetaSeverity is the incident's severity.
	MetaSeverity = "severity"
)

// Document is one chunk of an incident's serialized text, stored with its
// metadata for retrieval. Documents are created during ingestion and never
// mutated afterwards.
type Document struct {
	// ID is the unique identifier for this document chunk.
	ID string

	// Content is the raw text content of the chunk.
	Content string

	// Metadata holds the incident fields used for filtering and display
	// (incident_id, timestamp, category, severity).
	Metadata map[string]string

	// Score is the cosine distance between this document and the query
	// embedding, assigned during retrieval. Lower means more similar.
	// Zero value means the score was not computed.
	Score float32
}

// VectorStore is the interface for persisting and searching document
// embeddings. Implementations must be safe to call from multiple goroutines.
type VectorStore interface {
	// Upsert stores a batch of documents with their pre-computed embeddings.
	// The embeddings slice must be parallel to docs: embeddings[i] is the
	// vector for docs[i].
	Upsert(ctx context.Context, docs []Document, embeddings [][]float32) error

	// Search returns the topK nearest documents for the query embedding,
	// ordered by ascending distance, each with Score populated.
	Search(ctx context.Context, queryEmbedding []float32, topK int) ([]Document, error)

	// Count returns the total number of documents in the store.
	Count(ctx context.Context) (uint64, error)

	// Delete removes documents by their IDs.
	Delete(ctx context.Context, ids []string) error

	// Close releases any resources held by the store.
	Close() error
}

// Embedder converts text into dense vector embeddings. The production
// implementation is the bounded embedding cache; tests inject fakes.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// EmbedDocuments converts a batch of texts into their embeddings.
	// The returned slice is parallel to the input slice.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery converts a single query text into its embedding.
	// Returns nil (and no error) for empty input.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}
