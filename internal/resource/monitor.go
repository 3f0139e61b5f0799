// Package resource provides process memory monitoring for the retrieval
// service. When resident memory crosses a configured fraction of available
// system memory, the monitor trims the registered caches and hints the
// runtime to return freed memory to the OS. A threshold breach is advisory:
// it is logged and acted on but never fails the operation that triggered
// the check.
package resource

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"sync"

	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"

	"github.com/opsrecall/recall-go/internal/logging"
)

// Trimmer is implemented by caches that can shed entries on demand.
// Trim returns the number of entries released.
type Trimmer interface {
	Trim() int
}

// sampleFunc reports the process resident set size and the system's
// available memory, both in bytes. Injected in tests.
type sampleFunc func() (rss, available uint64, err error)

// Monitor samples process memory against a pressure threshold and triggers
// cache trims when it is exceeded. It is safe for concurrent use.
type Monitor struct {
	// thresholdPct is the fraction (0–100) of available system memory the
	// resident set may reach before cleanup is triggered.
	thresholdPct float64

	// sample reads current memory figures.
	sample sampleFunc

	// mu guards trimmers.
	mu sync.Mutex
	// trimmers is the ordered list of registered caches.
	trimmers []namedTrimmer

	// metrics records monitor activity when configured.
	metrics *Metrics
}

// namedTrimmer pairs a Trimmer with a label for logging.
type namedTrimmer struct {
	name string
	t    Trimmer
	// pressureOnly excludes the trimmer from routine cleanup hints; it is
	// shed only when the memory threshold is actually breached.
	pressureOnly bool
}

// NewMonitor constructs a Monitor sampling the current process via gopsutil.
// thresholdPct defaults to 80 when zero or negative. metrics may be nil.
func NewMonitor(thresholdPct float64, metrics *Metrics) (*Monitor, error) {
	if thresholdPct <= 0 {
		thresholdPct = 80
	}

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("resource: cannot inspect own process: %w", err)
	}

	sample := func() (uint64, uint64, error) {
		info, err := proc.MemoryInfo()
		if err != nil {
			return 0, 0, fmt.Errorf("resource: process memory: %w", err)
		}
		vm, err := mem.VirtualMemory()
		if err != nil {
			return 0, 0, fmt.Errorf("resource: system memory: %w", err)
		}
		return info.RSS, vm.Available, nil
	}

	return &Monitor{
		thresholdPct: thresholdPct,
		sample:       sample,
		metrics:      metrics,
	}, nil
}

// Register adds a cache trimmed on every cleanup, routine or pressure-driven.
func (m *Monitor) Register(name string, t Trimmer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trimmers = append(m.trimmers, namedTrimmer{name: name, t: t})
}

// RegisterPressureOnly adds a cache trimmed only when the memory threshold is
// breached. Routine cleanup hints, such as the one after each ingestion
// window, leave it intact.
func (m *Monitor) RegisterPressureOnly(name string, t Trimmer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trimmers = append(m.trimmers, namedTrimmer{name: name, t: t, pressureOnly: true})
}

// UnderPressure reports whether resident memory currently exceeds the
// threshold fraction of available system memory. Sampling errors are
// treated as no pressure; the monitor must never block work.
func (m *Monitor) UnderPressure() bool {
	rss, available, err := m.sample()
	if err != nil || available == 0 {
		return false
	}
	if m.metrics != nil {
		m.metrics.rssBytes.Set(float64(rss))
	}
	return float64(rss) > m.thresholdPct/100*float64(available)
}

// CheckAndMaybeCleanup samples memory and, if the threshold is exceeded,
// trims all registered caches and asks the runtime to return freed memory to
// the OS. It never returns an error; outcomes are observable via logs and
// metrics only.
func (m *Monitor) CheckAndMaybeCleanup(ctx context.Context) {
	rss, available, err := m.sample()
	if err != nil {
		logging.FromContext(ctx).Debug("resource: memory sample failed",
			slog.String("error", err.Error()),
		)
		return
	}
	if m.metrics != nil {
		m.metrics.rssBytes.Set(float64(rss))
	}

	if available == 0 || float64(rss) <= m.thresholdPct/100*float64(available) {
		return
	}

	logging.FromContext(ctx).Warn("resource: memory threshold exceeded, trimming caches",
		slog.Uint64("rss_bytes", rss),
		slog.Uint64("available_bytes", available),
		slog.Float64("threshold_pct", m.thresholdPct),
	)

	m.cleanup(ctx, true)
}

// Cleanup trims the routinely registered caches and releases freed memory
// back to the OS. Used after each ingestion window to bound peak memory,
// independent of the pressure check. Pressure-only caches are not touched.
func (m *Monitor) Cleanup(ctx context.Context) {
	m.cleanup(ctx, false)
}

func (m *Monitor) cleanup(ctx context.Context, underPressure bool) {
	m.mu.Lock()
	trimmers := make([]namedTrimmer, len(m.trimmers))
	copy(trimmers, m.trimmers)
	m.mu.Unlock()

	total := 0
	for _, nt := range trimmers {
		if nt.pressureOnly && !underPressure {
			continue
		}
		n := nt.t.Trim()
		total += n
		logging.FromContext(ctx).Debug("resource: cache trimmed",
			slog.String("cache", nt.name),
			slog.Int("evicted", n),
		)
	}

	debug.FreeOSMemory()

	if m.metrics != nil {
		m.metrics.cleanups.Inc()
		m.metrics.evicted.Add(float64(total))
	}
}
