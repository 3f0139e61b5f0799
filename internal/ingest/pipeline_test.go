package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/opsrecall/recall-go/internal/incident"
	"github.com/opsrecall/recall-go/internal/rag"
)

// fakeEmbedder returns a fixed-size vector per text, or a canned error.
type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(len(texts[i]))}
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{float32(len(text))}, nil
}

// fakeStore records upserted documents.
type fakeStore struct {
	mu   sync.Mutex
	docs []rag.Document
	err  error
}

func (f *fakeStore) Upsert(_ context.Context, docs []rag.Document, embeddings [][]float32) error {
	if f.err != nil {
		return f.err
	}
	if len(docs) != len(embeddings) {
		return fmt.Errorf("docs/embeddings length mismatch: %d vs %d", len(docs), len(embeddings))
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs = append(f.docs, docs...)
	return nil
}

func (f *fakeStore) Search(context.Context, []float32, int) ([]rag.Document, error) {
	return nil, nil
}
func (f *fakeStore) Count(context.Context) (uint64, error) { return uint64(len(f.docs)), nil }
func (f *fakeStore) Delete(context.Context, []string) error { return nil }
func (f *fakeStore) Close() error                           { return nil }

// fakeGovernor records backpressure calls.
type fakeGovernor struct {
	mu       sync.Mutex
	checks   int
	cleanups int
}

func (g *fakeGovernor) CheckAndMaybeCleanup(context.Context) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.checks++
}

func (g *fakeGovernor) Cleanup(context.Context) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cleanups++
}

func newTestPipeline(t *testing.T, store *fakeStore, governor MemoryGovernor, cfg *Config) *Pipeline {
	t.Helper()
	p, err := NewPipeline(&fakeEmbedder{}, store, governor, cfg, nil)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	return p
}

func testIncident(id, description string) incident.Incident {
	return incident.Incident{
		ID:          id,
		Timestamp:   "2025-03-01T10:00:00Z",
		Category:    "network",
		Severity:    "high",
		Description: description,
	}
}

// TestIngestOne verifies the happy path writes chunks with incident metadata.
func TestIngestOne(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	p := newTestPipeline(t, store, nil, nil)

	in := testIncident("INC-1", "packet loss between regions")
	if err := p.IngestOne(context.Background(), &in); err != nil {
		t.Fatalf("IngestOne: %v", err)
	}

	if len(store.docs) == 0 {
		t.Fatal("no documents upserted")
	}
	doc := store.docs[0]
	if doc.Metadata[rag.MetaIncidentID] != "INC-1" {
		t.Errorf("incident_id metadata = %q, want INC-1", doc.Metadata[rag.MetaIncidentID])
	}
	if doc.Metadata[rag.MetaSeverity] != "high" {
		t.Errorf("severity metadata = %q, want high", doc.Metadata[rag.MetaSeverity])
	}
	if !strings.Contains(doc.Content, "packet loss between regions") {
		t.Errorf("chunk content missing description: %q", doc.Content)
	}
}

// TestIngestOne_LongDescriptionChunks verifies a long record produces
// multiple chunks, each within the size bound.
func TestIngestOne_LongDescriptionChunks(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	p := newTestPipeline(t, store, nil, nil)

	in := testIncident("INC-2", strings.Repeat("the failover loop repeated. ", 120))
	if err := p.IngestOne(context.Background(), &in); err != nil {
		t.Fatalf("IngestOne: %v", err)
	}

	if len(store.docs) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(store.docs))
	}
	for i, doc := range store.docs {
		if len(doc.Content) > 1000 {
			t.Errorf("chunk %d exceeds size bound: %d chars", i, len(doc.Content))
		}
		if doc.Metadata["chunk_index"] != fmt.Sprintf("%d", i) {
			t.Errorf("chunk %d has index %q", i, doc.Metadata["chunk_index"])
		}
	}
}

// TestIngestOne_Rejections verifies validation happens before any work.
func TestIngestOne_Rejections(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	p := newTestPipeline(t, store, nil, nil)

	noID := testIncident("", "something broke")
	if err := p.IngestOne(context.Background(), &noID); !errors.Is(err, incident.ErrMissingID) {
		t.Errorf("expected ErrMissingID, got %v", err)
	}

	empty := incident.Incident{ID: "INC-3"}
	if err := p.IngestOne(context.Background(), &empty); err == nil {
		t.Error("expected error for incident without content")
	}

	if len(store.docs) != 0 {
		t.Errorf("rejected incidents must not reach the store, got %d docs", len(store.docs))
	}
}

// TestIngestOne_EmbedFailure verifies nothing is stored when embedding fails.
func TestIngestOne_EmbedFailure(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	p, err := NewPipeline(&fakeEmbedder{err: errors.New("backend down")}, store, nil, nil, nil)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}

	in := testIncident("INC-4", "disk full")
	if err := p.IngestOne(context.Background(), &in); err == nil {
		t.Fatal("expected embed error")
	}
	if len(store.docs) != 0 {
		t.Errorf("failed ingestion wrote %d docs", len(store.docs))
	}
}

// TestIngestBatch_IsolatesFailures runs the canonical batch scenario: ten
// incidents where one lacks an identifier yields nine successes and one
// recorded failure.
func TestIngestBatch_IsolatesFailures(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	p := newTestPipeline(t, store, nil, nil)

	incidents := make([]incident.Incident, 10)
	for i := range incidents {
		incidents[i] = testIncident(fmt.Sprintf("INC-%d", i), fmt.Sprintf("failure mode %d", i))
	}
	incidents[3].ID = ""

	result := p.IngestBatch(context.Background(), incidents)

	if result.Total != 10 {
		t.Errorf("Total = %d, want 10", result.Total)
	}
	if result.Succeeded != 9 {
		t.Errorf("Succeeded = %d, want 9", result.Succeeded)
	}
	if len(result.Failures) != 1 {
		t.Fatalf("Failures = %d, want 1", len(result.Failures))
	}
	f := result.Failures[0]
	if f.Index != 3 {
		t.Errorf("failure index = %d, want 3", f.Index)
	}
	if !errors.Is(f.Err, incident.ErrMissingID) {
		t.Errorf("failure err = %v, want ErrMissingID", f.Err)
	}

	// The rejected incident must leave nothing in the index. Every stored
	// chunk carries the incident_id of one of the nine valid records.
	seen := make(map[string]bool)
	for _, d := range store.docs {
		id := d.Metadata[rag.MetaIncidentID]
		if id == "" || id == "INC-3" {
			t.Errorf("index contains a chunk from the rejected incident: %+v", d.Metadata)
		}
		seen[id] = true
	}
	if len(seen) != 9 {
		t.Errorf("index holds chunks for %d incidents, want 9", len(seen))
	}
}

// TestIngestBatch_Windows verifies the governor is consulted once per window
// and cleanup runs after every window.
func TestIngestBatch_Windows(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	governor := &fakeGovernor{}
	p := newTestPipeline(t, store, governor, &Config{WindowSize: 4})

	incidents := make([]incident.Incident, 10)
	for i := range incidents {
		incidents[i] = testIncident(fmt.Sprintf("INC-%d", i), "brief outage")
	}

	result := p.IngestBatch(context.Background(), incidents)
	if result.Succeeded != 10 {
		t.Fatalf("Succeeded = %d, want 10", result.Succeeded)
	}

	// 10 incidents in windows of 4: three windows.
	if governor.checks != 3 {
		t.Errorf("governor checks = %d, want 3", governor.checks)
	}
	if governor.cleanups != 3 {
		t.Errorf("governor cleanups = %d, want 3", governor.cleanups)
	}
}

// TestIngestBatch_Empty returns an empty result, not nil.
func TestIngestBatch_Empty(t *testing.T) {
	t.Parallel()

	p := newTestPipeline(t, &fakeStore{}, nil, nil)

	result := p.IngestBatch(context.Background(), nil)
	if result == nil {
		t.Fatal("result must not be nil")
	}
	if result.Total != 0 || result.Succeeded != 0 || len(result.Failures) != 0 {
		t.Errorf("unexpected result for empty batch: %+v", result)
	}
}

// TestIngestBatch_Cancellation fails remaining incidents once the context is
// done instead of silently dropping them.
func TestIngestBatch_Cancellation(t *testing.T) {
	t.Parallel()

	p := newTestPipeline(t, &fakeStore{}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	incidents := []incident.Incident{
		testIncident("INC-1", "a"),
		testIncident("INC-2", "b"),
	}
	result := p.IngestBatch(ctx, incidents)

	if result.Succeeded != 0 {
		t.Errorf("Succeeded = %d, want 0", result.Succeeded)
	}
	if len(result.Failures) != 2 {
		t.Fatalf("Failures = %d, want 2", len(result.Failures))
	}
	for _, f := range result.Failures {
		if !errors.Is(f.Err, context.Canceled) {
			t.Errorf("failure err = %v, want context.Canceled", f.Err)
		}
	}
}

// TestIngestBatch_FreshDocumentIDs verifies re-ingestion appends new rows
// rather than overwriting the previous ones.
func TestIngestBatch_FreshDocumentIDs(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	p := newTestPipeline(t, store, nil, nil)

	in := testIncident("INC-1", "repeated submission")
	for i := 0; i < 2; i++ {
		if err := p.IngestOne(context.Background(), &in); err != nil {
			t.Fatalf("IngestOne #%d: %v", i, err)
		}
	}

	if len(store.docs) != 2 {
		t.Fatalf("expected 2 docs after re-ingestion, got %d", len(store.docs))
	}
	if store.docs[0].ID == store.docs[1].ID {
		t.Error("re-ingested chunk reused a document ID")
	}
}
