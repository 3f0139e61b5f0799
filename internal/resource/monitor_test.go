package resource

import (
	"context"
	"errors"
	"testing"
)

// fakeTrimmer records trim calls.
type fakeTrimmer struct {
	calls   int
	evicted int
}

func (f *fakeTrimmer) Trim() int {
	f.calls++
	return f.evicted
}

// newTestMonitor builds a Monitor with an injected memory sample.
func newTestMonitor(rss, available uint64, sampleErr error) *Monitor {
	return &Monitor{
		thresholdPct: 80,
		sample: func() (uint64, uint64, error) {
			return rss, available, sampleErr
		},
	}
}

// TestUnderPressure verifies the threshold comparison.
func TestUnderPressure(t *testing.T) {
	t.Parallel()

	// 90 resident vs 100 available at an 80% threshold: under pressure.
	if !newTestMonitor(90, 100, nil).UnderPressure() {
		t.Error("expected pressure at 90% of available")
	}
	// 50 resident vs 100 available: fine.
	if newTestMonitor(50, 100, nil).UnderPressure() {
		t.Error("expected no pressure at 50% of available")
	}
}

// TestUnderPressure_SampleFailure verifies a failed sample never reports
// pressure.
func TestUnderPressure_SampleFailure(t *testing.T) {
	t.Parallel()

	m := newTestMonitor(0, 0, errors.New("procfs unavailable"))
	if m.UnderPressure() {
		t.Error("sampling failure must not report pressure")
	}
}

// TestCheckAndMaybeCleanup_Triggers verifies that a breach trims every
// registered cache.
func TestCheckAndMaybeCleanup_Triggers(t *testing.T) {
	t.Parallel()

	m := newTestMonitor(95, 100, nil)
	a := &fakeTrimmer{evicted: 3}
	b := &fakeTrimmer{evicted: 7}
	m.Register("embed", a)
	m.Register("query", b)

	m.CheckAndMaybeCleanup(context.Background())

	if a.calls != 1 || b.calls != 1 {
		t.Errorf("expected each cache trimmed once, got %d and %d", a.calls, b.calls)
	}
}

// TestCheckAndMaybeCleanup_NoBreach verifies no trimming below the threshold.
func TestCheckAndMaybeCleanup_NoBreach(t *testing.T) {
	t.Parallel()

	m := newTestMonitor(10, 100, nil)
	tr := &fakeTrimmer{}
	m.Register("embed", tr)

	m.CheckAndMaybeCleanup(context.Background())

	if tr.calls != 0 {
		t.Errorf("expected no trim below threshold, got %d", tr.calls)
	}
}

// TestCleanup_Unconditional verifies Cleanup trims regardless of memory
// state, as used after each ingestion window.
func TestCleanup_Unconditional(t *testing.T) {
	t.Parallel()

	m := newTestMonitor(1, 1000, nil)
	tr := &fakeTrimmer{evicted: 2}
	m.Register("embed", tr)

	m.Cleanup(context.Background())

	if tr.calls != 1 {
		t.Errorf("expected unconditional trim, got %d calls", tr.calls)
	}
}

// TestCleanup_SparesPressureOnlyCaches verifies that a routine cleanup hint
// leaves pressure-only caches intact, while an actual threshold breach sheds
// them along with everything else. Batch ingestion issues a cleanup after
// every window; cached analysis results must survive it.
func TestCleanup_SparesPressureOnlyCaches(t *testing.T) {
	t.Parallel()

	m := newTestMonitor(1, 1000, nil)
	embed := &fakeTrimmer{evicted: 3}
	query := &fakeTrimmer{evicted: 5}
	m.Register("embed", embed)
	m.RegisterPressureOnly("query", query)

	m.Cleanup(context.Background())

	if embed.calls != 1 {
		t.Errorf("routine cleanup: expected embed cache trimmed, got %d calls", embed.calls)
	}
	if query.calls != 0 {
		t.Errorf("routine cleanup: expected query cache untouched, got %d calls", query.calls)
	}

	// A real breach trims both.
	m.sample = func() (uint64, uint64, error) { return 950, 1000, nil }
	m.CheckAndMaybeCleanup(context.Background())

	if embed.calls != 2 {
		t.Errorf("pressure cleanup: expected embed cache trimmed again, got %d calls", embed.calls)
	}
	if query.calls != 1 {
		t.Errorf("pressure cleanup: expected query cache trimmed, got %d calls", query.calls)
	}
}
