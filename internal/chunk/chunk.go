// Package chunk implements boundary-aware text splitting for incident
// ingestion. Long incident bodies are divided into overlapping segments so
// that each segment fits the embedding model's input budget while retaining
// enough surrounding context to stay meaningful on its own.
package chunk

import (
	"strings"
)

// separators is the ordered list of split boundaries, coarsest first:
// paragraph, line, sentence, word, then raw characters as a last resort.
var separators = []string{"\n\n", "\n", ". ", " ", ""}

// Splitter divides text into overlapping segments bounded by MaxSize.
// Splitting is deterministic: the same input and parameters always yield
// the same segment sequence.
type Splitter struct {
	// maxSize is the maximum number of characters per segment.
	maxSize int

	// overlap is the minimum number of characters consecutive segments share.
	overlap int

	// pieceBound is the maximum size of an atomic piece before merging.
	// Kept at maxSize-overlap so that seeding a segment with the previous
	// segment's overlap tail can never push it past maxSize.
	pieceBound int
}

// NewSplitter constructs a Splitter. maxSize defaults to 1000 if zero or
// negative; a negative overlap is clamped to 0; an overlap that is not
// smaller than maxSize is reduced to maxSize/10.
func NewSplitter(maxSize, overlap int) *Splitter {
	if maxSize <= 0 {
		maxSize = 1000
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= maxSize {
		overlap = maxSize / 10
	}
	return &Splitter{
		maxSize:    maxSize,
		overlap:    overlap,
		pieceBound: maxSize - overlap,
	}
}

// Split divides text into ordered segments of at most maxSize characters.
// Consecutive segments share at least overlap characters of context, except
// at the very start and end of the text. Leading and trailing whitespace is
// trimmed before splitting; empty input yields nil.
func (s *Splitter) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= s.maxSize {
		return []string{text}
	}
	return s.merge(s.divide(text, 0))
}

// divide recursively cuts text into pieces no longer than pieceBound,
// trying the coarsest boundary first and falling through to finer ones
// for any piece that is still too large.
func (s *Splitter) divide(text string, level int) []string {
	if len(text) <= s.pieceBound {
		return []string{text}
	}

	sep := separators[level]
	if sep == "" {
		// No natural boundary left: cut raw character windows.
		var out []string
		for i := 0; i < len(text); i += s.pieceBound {
			end := min(i+s.pieceBound, len(text))
			out = append(out, text[i:end])
		}
		return out
	}

	var out []string
	for _, part := range splitAfter(text, sep) {
		if len(part) > s.pieceBound {
			out = append(out, s.divide(part, level+1)...)
		} else if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// merge greedily packs pieces into segments of at most maxSize characters.
// Each new segment is seeded with the overlap tail of the previous one so
// that content spanning a split boundary appears in both segments.
func (s *Splitter) merge(pieces []string) []string {
	var segments []string
	var cur strings.Builder

	for _, p := range pieces {
		if cur.Len() > 0 && cur.Len()+len(p) > s.maxSize {
			seg := cur.String()
			segments = append(segments, seg)
			cur.Reset()
			cur.WriteString(tail(seg, s.overlap))
		}
		cur.WriteString(p)
	}
	if cur.Len() > 0 {
		segments = append(segments, cur.String())
	}

	return segments
}

// splitAfter splits text on sep, keeping the separator attached to the
// preceding part so that no characters are lost across pieces.
func splitAfter(text, sep string) []string {
	var parts []string
	for {
		i := strings.Index(text, sep)
		if i < 0 {
			if text != "" {
				parts = append(parts, text)
			}
			return parts
		}
		parts = append(parts, text[:i+len(sep)])
		text = text[i+len(sep):]
	}
}

// tail returns the last n characters of s, or all of s if it is shorter.
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
