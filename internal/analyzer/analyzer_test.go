package analyzer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/opsrecall/recall-go/internal/querycache"
	"github.com/opsrecall/recall-go/internal/rag"
	"github.com/opsrecall/recall-go/internal/store"
)

// fakeChatModel returns a fixed answer and records the prompts it saw.
type fakeChatModel struct {
	mu      sync.Mutex
	answer  string
	err     error
	prompts []string
}

func (f *fakeChatModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range input {
		f.prompts = append(f.prompts, m.Content)
	}
	return schema.AssistantMessage(f.answer, nil), nil
}

func (f *fakeChatModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not implemented")
}

func (f *fakeChatModel) WithTools([]*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return f, nil
}

func (f *fakeChatModel) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

// fakeRetriever returns canned documents.
type fakeRetriever struct {
	docs []rag.Document
	err  error
}

func (f *fakeRetriever) Search(context.Context, string, int) ([]rag.Document, error) {
	return f.docs, f.err
}

// memHistory is an in-memory HistoryStore.
type memHistory struct {
	mu   sync.Mutex
	recs []store.Record
}

func (m *memHistory) Append(_ context.Context, rec store.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs = append(m.recs, rec)
	return nil
}

func (m *memHistory) Recent(context.Context, int) ([]store.Record, error) { return m.recs, nil }
func (m *memHistory) CountByOperation(context.Context) (map[store.Operation]int, error) {
	return nil, nil
}
func (m *memHistory) Close() error { return nil }

func newTestAnalyzer(t *testing.T, cm *fakeChatModel, r Retriever, cache *querycache.Cache, hist store.HistoryStore) *Analyzer {
	t.Helper()
	a, err := New(&Config{
		ChatModel: cm,
		Retriever: r,
		Cache:     cache,
		History:   hist,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func TestAnalyzeRootCause(t *testing.T) {
	t.Parallel()

	cm := &fakeChatModel{answer: "the pool leaked connections"}
	r := &fakeRetriever{docs: []rag.Document{
		{Content: "INCIDENT ID: INC-1\nDESCRIPTION: pool exhausted", Score: 0.2},
		{Content: "INCIDENT ID: INC-2\nDESCRIPTION: retries pile up", Score: 0.3},
	}}
	a := newTestAnalyzer(t, cm, r, nil, nil)

	got, err := a.AnalyzeRootCause(context.Background(), "db connections exhausted", 5)
	if err != nil {
		t.Fatalf("AnalyzeRootCause: %v", err)
	}
	if got.Answer != "the pool leaked connections" {
		t.Errorf("Answer = %q", got.Answer)
	}
	if got.Sources != 2 {
		t.Errorf("Sources = %d, want 2", got.Sources)
	}
	if got.CacheHit {
		t.Error("first analysis cannot be a cache hit")
	}

	prompt := cm.prompts[0]
	if !strings.Contains(prompt, "root cause") {
		t.Errorf("prompt missing root cause framing:\n%s", prompt)
	}
	for _, want := range []string{"INC-1", "INC-2", "db connections exhausted"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestAnalyzePatterns_PromptDiffers(t *testing.T) {
	t.Parallel()

	cm := &fakeChatModel{answer: "deploy-window clustering"}
	a := newTestAnalyzer(t, cm, &fakeRetriever{}, nil, nil)

	if _, err := a.AnalyzePatterns(context.Background(), "timeouts", 3); err != nil {
		t.Fatalf("AnalyzePatterns: %v", err)
	}
	prompt := cm.prompts[0]
	if !strings.Contains(prompt, "identify patterns") {
		t.Errorf("prompt missing pattern framing:\n%s", prompt)
	}
	if !strings.Contains(prompt, "no similar incidents found") {
		t.Errorf("empty retrieval not surfaced in prompt:\n%s", prompt)
	}
}

func TestAnalyze_CacheHitSkipsModel(t *testing.T) {
	t.Parallel()

	cm := &fakeChatModel{answer: "cached me"}
	cache := querycache.New(10, nil)
	a := newTestAnalyzer(t, cm, &fakeRetriever{}, cache, nil)

	first, err := a.AnalyzeRootCause(context.Background(), "same question", 5)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	if first.CacheHit {
		t.Error("first call must miss")
	}
	callsAfterFirst := cm.calls()

	second, err := a.AnalyzeRootCause(context.Background(), "same question", 5)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if !second.CacheHit {
		t.Error("second call must hit")
	}
	if second.Answer != first.Answer {
		t.Errorf("cached answer %q != original %q", second.Answer, first.Answer)
	}
	if cm.calls() != callsAfterFirst {
		t.Error("cache hit still reached the model")
	}
}

func TestAnalyze_CacheKeyedByOperationAndK(t *testing.T) {
	t.Parallel()

	cm := &fakeChatModel{answer: "x"}
	cache := querycache.New(10, nil)
	a := newTestAnalyzer(t, cm, &fakeRetriever{}, cache, nil)

	ctx := context.Background()
	if _, err := a.AnalyzeRootCause(ctx, "q", 5); err != nil {
		t.Fatal(err)
	}
	// Same query, different operation: must miss.
	got, err := a.AnalyzePatterns(ctx, "q", 5)
	if err != nil {
		t.Fatal(err)
	}
	if got.CacheHit {
		t.Error("different operation must not share cache entries")
	}
	// Same operation, different k: must miss.
	got, err = a.AnalyzeRootCause(ctx, "q", 3)
	if err != nil {
		t.Fatal(err)
	}
	if got.CacheHit {
		t.Error("different k must not share cache entries")
	}
}

func TestAnalyze_RetrievalFailurePropagates(t *testing.T) {
	t.Parallel()

	cm := &fakeChatModel{answer: "unused"}
	a := newTestAnalyzer(t, cm, &fakeRetriever{err: errors.New("index offline")}, nil, nil)

	if _, err := a.AnalyzeRootCause(context.Background(), "q", 5); err == nil {
		t.Fatal("expected retrieval error")
	}
	if cm.calls() != 0 {
		t.Error("model was called despite retrieval failure")
	}
}

func TestAnalyze_ModelFailurePropagates(t *testing.T) {
	t.Parallel()

	cm := &fakeChatModel{err: errors.New("model offline")}
	cache := querycache.New(10, nil)
	a := newTestAnalyzer(t, cm, &fakeRetriever{}, cache, nil)

	if _, err := a.AnalyzeRootCause(context.Background(), "q", 5); err == nil {
		t.Fatal("expected model error")
	}
	// A failed analysis must not poison the cache.
	if _, ok := cache.Get(querycache.Key("root_cause", "q", 5)); ok {
		t.Error("failed analysis was cached")
	}
}

func TestAnalyze_EmptyQueryRejected(t *testing.T) {
	t.Parallel()

	a := newTestAnalyzer(t, &fakeChatModel{answer: "x"}, &fakeRetriever{}, nil, nil)
	if _, err := a.AnalyzeRootCause(context.Background(), "   ", 5); err == nil {
		t.Fatal("expected error for empty query")
	}
}

func TestAnalyze_PersistsHistory(t *testing.T) {
	t.Parallel()

	hist := &memHistory{}
	cm := &fakeChatModel{answer: "persisted"}
	r := &fakeRetriever{docs: []rag.Document{{Content: "c"}}}
	a := newTestAnalyzer(t, cm, r, nil, hist)

	if _, err := a.AnalyzeRootCause(context.Background(), "q", 5); err != nil {
		t.Fatal(err)
	}
	if len(hist.recs) != 1 {
		t.Fatalf("want 1 history record, got %d", len(hist.recs))
	}
	rec := hist.recs[0]
	if rec.Operation != store.OpRootCause || rec.Answer != "persisted" || rec.Sources != 1 {
		t.Errorf("unexpected record: %+v", rec)
	}
}
