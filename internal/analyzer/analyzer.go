// Package analyzer answers root-cause and pattern questions about incidents.
// It retrieves similar historical incidents, formats them into an analysis
// prompt, and asks the configured chat model. Completed analyses pass through
// the FIFO query result cache so repeated questions skip the model entirely.
package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/opsrecall/recall-go/internal/budget"
	"github.com/opsrecall/recall-go/internal/logging"
	"github.com/opsrecall/recall-go/internal/querycache"
	"github.com/opsrecall/recall-go/internal/rag"
	"github.com/opsrecall/recall-go/internal/store"
)

// rootCausePrompt asks the model for a structured root cause analysis of the
// described issue, grounded in the retrieved incident history.
const rootCausePrompt = `You are an expert incident analyst. Use the following historical incident context to identify the root cause of the current issue.

Historical Context:
%s

Current Issue:
%s

Please provide a structured analysis with:
1. Primary Root Cause
2. Contributing Factors
3. Evidence
4. Recommended Solutions
5. Preventive Measures

Analysis:`

// patternsPrompt asks the model for recurring patterns across the retrieved
// incident history.
const patternsPrompt = `You are an expert incident analyst. Use the following historical incident context to identify patterns.

Historical Context:
%s

Current Issue:
%s

Provide:
1. Common themes
2. Frequency patterns
3. Timeline trends
4. Severity correlations
5. Strategic recommendations

Analysis:`

// Retriever is the slice of the search layer the analyzer needs.
type Retriever interface {
	// Search returns documents similar to the query, most similar first.
	Search(ctx context.Context, query string, k int) ([]rag.Document, error)
}

// Config holds the dependencies required to construct an Analyzer.
type Config struct {
	// ChatModel is the LLM backend constructed by the provider factory.
	ChatModel model.ToolCallingChatModel

	// Retriever finds similar historical incidents for a query.
	Retriever Retriever

	// Cache is the optional FIFO result cache. If nil, every analysis
	// reaches the model.
	Cache *querycache.Cache

	// History is the optional analysis history store. If nil, analyses are
	// not persisted.
	History store.HistoryStore

	// TopK is the number of similar incidents retrieved per analysis.
	// Defaults to 5 if zero.
	TopK int

	// MaxContextTokens is the estimated token budget for the full input
	// context. Retrieved documents are trimmed least-similar-first to fit.
	// Defaults to budget.DefaultMaxContextTokens if zero.
	MaxContextTokens int
}

// Analysis is the outcome of one root-cause or pattern analysis.
type Analysis struct {
	// Answer is the model's analysis text.
	Answer string `json:"answer"`

	// Sources is the number of retrieved documents the answer drew on.
	// Zero for answers served from cache.
	Sources int `json:"sources"`

	// CacheHit marks answers served from the query result cache.
	CacheHit bool `json:"cache_hit"`
}

// Analyzer retrieves similar incidents and asks the chat model to analyze
// them. Safe for concurrent use.
type Analyzer struct {
	chatModel        model.ToolCallingChatModel
	retriever        Retriever
	cache            *querycache.Cache
	history          store.HistoryStore
	topK             int
	maxContextTokens int
}

// New constructs an Analyzer from the provided Config.
func New(cfg *Config) (*Analyzer, error) {
	if cfg.ChatModel == nil {
		return nil, fmt.Errorf("analyzer: ChatModel must not be nil")
	}
	if cfg.Retriever == nil {
		return nil, fmt.Errorf("analyzer: Retriever must not be nil")
	}

	topK := cfg.TopK
	if topK <= 0 {
		topK = 5
	}
	maxCtx := cfg.MaxContextTokens
	if maxCtx <= 0 {
		maxCtx = budget.DefaultMaxContextTokens
	}

	return &Analyzer{
		chatModel:        cfg.ChatModel,
		retriever:        cfg.Retriever,
		cache:            cfg.Cache,
		history:          cfg.History,
		topK:             topK,
		maxContextTokens: maxCtx,
	}, nil
}

// AnalyzeRootCause identifies the likely root cause of the described issue
// using similar historical incidents as evidence.
func (a *Analyzer) AnalyzeRootCause(ctx context.Context, query string, k int) (*Analysis, error) {
	return a.analyze(ctx, store.OpRootCause, rootCausePrompt, query, k)
}

// AnalyzePatterns identifies recurring themes and trends across incidents
// similar to the query.
func (a *Analyzer) AnalyzePatterns(ctx context.Context, query string, k int) (*Analysis, error) {
	return a.analyze(ctx, store.OpPatterns, patternsPrompt, query, k)
}

func (a *Analyzer) analyze(ctx context.Context, op store.Operation, prompt, query string, k int) (*Analysis, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("analyzer: query must not be empty")
	}
	if k <= 0 {
		k = a.topK
	}

	log := logging.FromContext(ctx)
	key := querycache.Key(string(op), query, k)

	if a.cache != nil {
		if answer, ok := a.cache.Get(key); ok {
			log.Debug("analysis served from cache", slog.String("operation", string(op)))
			a.persist(ctx, op, query, answer, 0, true)
			return &Analysis{Answer: answer, CacheHit: true}, nil
		}
	}

	docs, err := a.retriever.Search(ctx, query, k)
	if err != nil {
		return nil, fmt.Errorf("analyzer: retrieval failed: %w", err)
	}

	fixed := []*schema.Message{schema.UserMessage(fmt.Sprintf(prompt, "", query))}
	before := len(docs)
	docs = budget.TrimDocuments(fixed, docs, a.maxContextTokens)
	if dropped := before - len(docs); dropped > 0 {
		log.Warn("budget: dropped retrieved documents to fit context window",
			slog.Int("dropped", dropped),
			slog.Int("retained", len(docs)),
			slog.Int("max_tokens", a.maxContextTokens),
		)
	}

	messages := []*schema.Message{
		schema.UserMessage(fmt.Sprintf(prompt, formatDocs(docs), query)),
	}

	resp, err := a.chatModel.Generate(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("analyzer: model generation failed: %w", err)
	}
	answer := resp.Content

	if a.cache != nil {
		a.cache.Set(key, answer)
	}
	a.persist(ctx, op, query, answer, len(docs), false)

	return &Analysis{Answer: answer, Sources: len(docs)}, nil
}

// persist writes the analysis to the history store. Persistence failures are
// logged and never propagate; the analysis already succeeded.
func (a *Analyzer) persist(ctx context.Context, op store.Operation, query, answer string, sources int, cacheHit bool) {
	if a.history == nil {
		return
	}
	rec := store.Record{
		Operation: op,
		Query:     query,
		Answer:    answer,
		Sources:   sources,
		CacheHit:  cacheHit,
	}
	if err := a.history.Append(ctx, rec); err != nil {
		logging.FromContext(ctx).Warn("history: failed to persist analysis", slog.Any("error", err))
	}
}

// formatDocs joins retrieved document contents into the prompt's historical
// context block. No context at all is itself a signal to the model.
func formatDocs(docs []rag.Document) string {
	if len(docs) == 0 {
		return "(no similar incidents found)"
	}
	parts := make([]string, len(docs))
	for i, d := range docs {
		parts[i] = d.Content
	}
	return strings.Join(parts, "\n\n")
}
