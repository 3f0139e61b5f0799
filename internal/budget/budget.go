// Package budget provides token budget estimation and context trimming for
// the analysis layer. Because the analyzer supports multiple LLM backends
// with different tokenizers, this package uses a conservative character-based
// heuristic: 1 token is roughly 4 characters (English prose and logs). This
// deliberately under-estimates token counts to leave headroom for
// model-specific overhead.
package budget

import (
	"github.com/cloudwego/eino/schema"

	"github.com/opsrecall/recall-go/internal/rag"
)

const (
	// charsPerToken is the conservative character-to-token ratio used for
	// estimation. 4 chars/token is standard for English and code; using 3
	// would be more aggressive but risks overflowing context windows.
	charsPerToken = 4

	// DefaultMaxContextTokens is the default input context budget in tokens.
	// Conservative enough to fit within 8k-context models (Llama 3 8B,
	// GPT-3.5) while leaving room for the output. Override via the
	// analyzer's MaxContextTokens setting.
	DefaultMaxContextTokens = 6000
)

// Estimate returns a rough token count for s using the character heuristic.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// EstimateMessages returns the estimated total token count for a slice of
// schema.Message values, summing role + content for each message.
func EstimateMessages(msgs []*schema.Message) int {
	total := 0
	for _, m := range msgs {
		// Each message has a small per-message overhead (~4 tokens in most APIs).
		total += 4
		total += Estimate(string(m.Role))
		total += Estimate(m.Content)
	}
	return total
}

// EstimateDocuments returns the estimated total token count for retrieved
// documents, counting content plus a small per-document formatting overhead.
func EstimateDocuments(docs []rag.Document) int {
	total := 0
	for _, d := range docs {
		total += 8
		total += Estimate(d.Content)
	}
	return total
}

// TrimDocuments drops retrieved documents until fixed + docs fits within
// maxTokens. fixed contains the prompt messages that must not be trimmed.
// Documents arrive ordered by ascending distance, so trimming removes the
// least similar ones from the tail first.
//
// Returns the trimmed document slice. If even an empty document list exceeds
// the budget, the empty slice is returned; fixed messages are never dropped
// here, and callers should warn separately if fixed alone exceeds the budget.
func TrimDocuments(fixed []*schema.Message, docs []rag.Document, maxTokens int) []rag.Document {
	if len(docs) == 0 {
		return docs
	}

	fixedTokens := EstimateMessages(fixed)

	for len(docs) > 0 {
		if fixedTokens+EstimateDocuments(docs) <= maxTokens {
			break
		}
		docs = docs[:len(docs)-1]
	}
	return docs
}
