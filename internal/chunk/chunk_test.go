package chunk

import (
	"strings"
	"testing"
)

// TestSplit_ShortTextSingleSegment verifies that text within maxSize is
// returned whole as a single segment.
func TestSplit_ShortTextSingleSegment(t *testing.T) {
	t.Parallel()

	s := NewSplitter(1000, 200)
	got := s.Split("a short incident description")
	if len(got) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(got))
	}
	if got[0] != "a short incident description" {
		t.Errorf("segment mutated: %q", got[0])
	}
}

// TestSplit_EmptyInput verifies that empty and whitespace-only input yields
// no segments.
func TestSplit_EmptyInput(t *testing.T) {
	t.Parallel()

	s := NewSplitter(1000, 200)
	if got := s.Split(""); got != nil {
		t.Errorf("expected nil for empty input, got %v", got)
	}
	if got := s.Split("   \n\n  "); got != nil {
		t.Errorf("expected nil for whitespace input, got %v", got)
	}
}

// TestSplit_SegmentBound verifies that every segment respects maxSize for a
// long paragraph-structured text.
func TestSplit_SegmentBound(t *testing.T) {
	t.Parallel()

	paras := make([]string, 12)
	for i := range paras {
		paras[i] = strings.Repeat("incident detail sentence. ", 20)
	}
	text := strings.Join(paras, "\n\n")

	s := NewSplitter(500, 100)
	segs := s.Split(text)
	if len(segs) < 2 {
		t.Fatalf("expected multiple segments, got %d", len(segs))
	}
	for i, seg := range segs {
		if len(seg) > 500 {
			t.Errorf("segment %d exceeds bound: %d chars", i, len(seg))
		}
	}
}

// TestSplit_Overlap verifies that consecutive segments share at least the
// configured overlap: the tail of each segment is a prefix of the next.
func TestSplit_Overlap(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("the payment gateway returned errors under load. ", 60)

	const overlap = 150
	s := NewSplitter(600, overlap)
	segs := s.Split(text)
	if len(segs) < 2 {
		t.Fatalf("expected multiple segments, got %d", len(segs))
	}

	for i := 1; i < len(segs); i++ {
		prev := segs[i-1]
		want := prev
		if len(prev) > overlap {
			want = prev[len(prev)-overlap:]
		}
		if !strings.HasPrefix(segs[i], want) {
			t.Errorf("segment %d does not start with the tail of segment %d", i, i-1)
		}
	}
}

// TestSplit_Scenario_2500Chars covers the reference sizing: chunk size 1000,
// overlap 200, a 2500-character body must produce at least 3 segments, each
// at most 1000 characters, consecutive segments sharing at least 200.
func TestSplit_Scenario_2500Chars(t *testing.T) {
	t.Parallel()

	var b strings.Builder
	for b.Len() < 2500 {
		b.WriteString("database connection pool exhausted during nightly batch window. ")
	}
	text := b.String()[:2500]

	s := NewSplitter(1000, 200)
	segs := s.Split(text)

	if len(segs) < 3 {
		t.Fatalf("expected at least 3 segments, got %d", len(segs))
	}
	for i, seg := range segs {
		if len(seg) > 1000 {
			t.Errorf("segment %d exceeds 1000 chars: %d", i, len(seg))
		}
	}
	for i := 1; i < len(segs); i++ {
		prev := segs[i-1]
		tail := prev
		if len(prev) > 200 {
			tail = prev[len(prev)-200:]
		}
		if !strings.HasPrefix(segs[i], tail) {
			t.Errorf("segments %d and %d share fewer than 200 chars", i-1, i)
		}
	}
}

// TestSplit_LongWordFallsBackToCharacters verifies that a single unbroken
// token longer than maxSize is cut at the character level rather than
// emitted past the bound.
func TestSplit_LongWordFallsBackToCharacters(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("x", 3000)

	s := NewSplitter(800, 100)
	segs := s.Split(text)
	if len(segs) < 2 {
		t.Fatalf("expected multiple segments, got %d", len(segs))
	}
	for i, seg := range segs {
		if len(seg) > 800 {
			t.Errorf("segment %d exceeds bound: %d", i, len(seg))
		}
	}
}

// TestSplit_Deterministic verifies that repeated calls with identical input
// produce identical output.
func TestSplit_Deterministic(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("api latency spiked.\n\nretries exhausted. ", 100)
	s := NewSplitter(700, 140)

	first := s.Split(text)
	for range 5 {
		again := s.Split(text)
		if len(again) != len(first) {
			t.Fatalf("segment count changed between runs: %d vs %d", len(first), len(again))
		}
		for i := range first {
			if first[i] != again[i] {
				t.Fatalf("segment %d differs between runs", i)
			}
		}
	}
}

// TestNewSplitter_Defaults verifies parameter clamping.
func TestNewSplitter_Defaults(t *testing.T) {
	t.Parallel()

	s := NewSplitter(0, -5)
	if s.maxSize != 1000 || s.overlap != 0 {
		t.Errorf("unexpected defaults: maxSize=%d overlap=%d", s.maxSize, s.overlap)
	}

	// overlap >= maxSize is reduced to a tenth of maxSize.
	s = NewSplitter(100, 100)
	if s.overlap != 10 {
		t.Errorf("expected clamped overlap 10, got %d", s.overlap)
	}
}
