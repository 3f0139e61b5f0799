package budget

import (
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"

	"github.com/opsrecall/recall-go/internal/rag"
)

func Test_Estimate(t *testing.T) {
	t.Parallel()
	cases := []struct {
		input string
		want  int
	}{
		{"", 0},
		{"a", 1},
		{"abcd", 1},
		{"abcde", 1},
		{"abcdefgh", 2},
		{strings.Repeat("x", 400), 100},
	}
	for _, tc := range cases {
		got := Estimate(tc.input)
		if got != tc.want {
			t.Errorf("Estimate(%q) = %d, want %d", tc.input, got, tc.want)
		}
	}
}

func Test_EstimateMessages(t *testing.T) {
	t.Parallel()
	msgs := []*schema.Message{
		schema.UserMessage("hello world"),
		schema.UserMessage("hello world"),
	}
	got := EstimateMessages(msgs)
	// Each message: 4 overhead + Estimate("user")=1 + Estimate("hello world")=2 = 7.
	// Two messages: 14.
	if got != 14 {
		t.Errorf("EstimateMessages = %d, want 14", got)
	}
}

func Test_EstimateDocuments(t *testing.T) {
	t.Parallel()
	docs := []rag.Document{
		{Content: strings.Repeat("x", 40)}, // 8 overhead + 10 = 18
		{Content: "abcd"},                  // 8 overhead + 1 = 9
	}
	if got := EstimateDocuments(docs); got != 27 {
		t.Errorf("EstimateDocuments = %d, want 27", got)
	}
}

func Test_TrimDocuments_NoTrimNeeded(t *testing.T) {
	t.Parallel()
	fixed := []*schema.Message{schema.SystemMessage("sys")}
	docs := []rag.Document{
		{Content: "first"},
		{Content: "second"},
	}
	got := TrimDocuments(fixed, docs, DefaultMaxContextTokens)
	if len(got) != 2 {
		t.Errorf("want 2 documents, got %d", len(got))
	}
}

func Test_TrimDocuments_DropsLeastSimilar(t *testing.T) {
	t.Parallel()
	docs := []rag.Document{
		{Content: "most similar", Score: 0.1}, // 8 overhead + 3 = 11 tokens
		{Content: "less similar", Score: 0.4}, // 8 overhead + 3 = 11 tokens
	}
	// Budget 12 fits one document (11) but not two (22). The tail entry,
	// the least similar, must go.
	got := TrimDocuments(nil, docs, 12)
	if len(got) != 1 {
		t.Fatalf("want 1 document after trim, got %d", len(got))
	}
	if got[0].Content != "most similar" {
		t.Errorf("want most similar document retained, got %q", got[0].Content)
	}
}

func Test_TrimDocuments_EmptyDocs(t *testing.T) {
	t.Parallel()
	fixed := []*schema.Message{schema.SystemMessage("sys")}
	got := TrimDocuments(fixed, nil, DefaultMaxContextTokens)
	if len(got) != 0 {
		t.Errorf("want empty, got %d", len(got))
	}
}

func Test_TrimDocuments_AllDroppedWhenFixedExceedsBudget(t *testing.T) {
	t.Parallel()
	fixed := []*schema.Message{
		schema.SystemMessage(strings.Repeat("x", 4*7000)), // ~7000 tokens
	}
	docs := []rag.Document{
		{Content: "a"},
		{Content: "b"},
	}
	got := TrimDocuments(fixed, docs, 6000)
	if len(got) != 0 {
		t.Errorf("want 0 documents, got %d", len(got))
	}
}
