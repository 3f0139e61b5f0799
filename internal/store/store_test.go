package store

import (
	"context"
	"fmt"
	"testing"
	"time"
)

// openTestStore opens an in-memory SQLiteStore for use in tests.
func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open in-memory store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func Test_Store_AppendAndRecent(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	first := Record{
		Operation: OpRootCause,
		Query:     "database connection pool exhausted",
		Answer:    "likely a leaked connection in the retry path",
		Sources:   3,
		CreatedAt: time.Now().Add(-time.Minute),
	}
	second := Record{
		Operation: OpPatterns,
		Query:     "network timeouts",
		Answer:    "timeouts cluster around deploy windows",
		Sources:   5,
		CacheHit:  true,
		CreatedAt: time.Now(),
	}
	if err := s.Append(ctx, first); err != nil {
		t.Fatalf("append first: %v", err)
	}
	if err := s.Append(ctx, second); err != nil {
		t.Fatalf("append second: %v", err)
	}

	recs, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("want 2 records, got %d", len(recs))
	}
	// Newest first.
	if recs[0].Operation != OpPatterns || recs[0].Query != "network timeouts" {
		t.Errorf("recs[0]: want patterns/network timeouts, got %s/%s", recs[0].Operation, recs[0].Query)
	}
	if !recs[0].CacheHit {
		t.Error("recs[0]: cache hit flag lost")
	}
	if recs[1].Operation != OpRootCause || recs[1].Sources != 3 {
		t.Errorf("recs[1]: want root_cause with 3 sources, got %s/%d", recs[1].Operation, recs[1].Sources)
	}
}

func Test_Store_RecentLimitRespected(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	for i := range 6 {
		rec := Record{
			Operation: OpRootCause,
			Query:     fmt.Sprintf("query %d", i),
			Answer:    "answer",
			CreatedAt: time.Now().Add(time.Duration(i) * time.Second),
		}
		if err := s.Append(ctx, rec); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	recs, err := s.Recent(ctx, 4)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recs) != 4 {
		t.Fatalf("want 4 records, got %d", len(recs))
	}
	if recs[0].Query != "query 5" {
		t.Errorf("want newest record first, got %q", recs[0].Query)
	}
}

func Test_Store_CountByOperation(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	for i := range 3 {
		op := OpRootCause
		if i == 2 {
			op = OpPatterns
		}
		if err := s.Append(ctx, Record{Operation: op, Query: "q", Answer: "a"}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	counts, err := s.CountByOperation(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if counts[OpRootCause] != 2 {
		t.Errorf("root_cause count = %d, want 2", counts[OpRootCause])
	}
	if counts[OpPatterns] != 1 {
		t.Errorf("patterns count = %d, want 1", counts[OpPatterns])
	}
}

func Test_Store_EmptyRecent(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	recs, err := s.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("want no records, got %d", len(recs))
	}
}
