// Package embedcache provides a bounded, deduplicating cache in front of an
// embedding model. Texts embedded once are never recomputed; on overflow the
// oldest half of the cache is discarded, keeping the most recent entries.
//
// The cache also owns the compute-placement decision: large batches go to the
// accelerated endpoint when one is configured and memory pressure allows,
// small batches and single queries stay on the fallback endpoint. Placement
// switches are stateful on the backend, so all computation, including the
// switch itself, is funnelled through a single worker goroutine. Cache hits
// are served concurrently under a read lock and never wait on the worker.
package embedcache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/opsrecall/recall-go/internal/embedder"
	"github.com/opsrecall/recall-go/internal/logging"
)

// ErrClosed is returned by Embed calls made after Close.
var ErrClosed = errors.New("embedcache: cache is closed")

// Config holds the embedding cache configuration.
type Config struct {
	// MaxEntries bounds the number of cached text→vector pairs.
	// Defaults to 1000 if zero.
	MaxEntries int

	// AccelBatchMin is the uncached sub-batch size that must be exceeded
	// before the accelerated placement is considered. Defaults to 8 if zero.
	AccelBatchMin int

	// Pressure reports whether the process is under memory pressure.
	// Under pressure the accelerated placement is avoided. If nil, pressure
	// is assumed absent.
	Pressure func() bool

	// Metrics records cache activity. If nil, metrics are not recorded.
	Metrics *Metrics
}

// Cache is a bounded embedding cache satisfying rag.Embedder.
// It is safe for concurrent use.
type Cache struct {
	// model computes embeddings for uncached texts.
	model embedder.Model

	// cfg holds the resolved configuration.
	cfg Config

	// mu guards entries and order.
	mu sync.RWMutex
	// entries maps exact input text to its embedding.
	entries map[string][]float32
	// order lists cached texts oldest-first for trim eviction.
	order []string

	// jobs feeds the single compute worker.
	jobs chan *computeJob
	// done signals the worker and any blocked submitters that the cache is
	// closed.
	done chan struct{}
	// stopOnce guards channel close on shutdown.
	stopOnce sync.Once
	// wg waits for the worker to drain on Close.
	wg sync.WaitGroup
}

// computeJob is one unit of embedding work submitted to the worker.
type computeJob struct {
	// ctx is the submitting caller's context, honored by the backend call.
	ctx context.Context
	// texts is the deduplicated uncached sub-batch to embed.
	texts []string
	// placement is the compute placement decided at submission time.
	placement embedder.Placement
	// result receives exactly one computeResult.
	result chan computeResult
}

// computeResult carries the worker's outcome back to the submitter.
type computeResult struct {
	vectors [][]float32
	err     error
}

// New constructs a Cache over the given model and starts its compute worker.
func New(model embedder.Model, cfg Config) (*Cache, error) {
	if model == nil {
		return nil, fmt.Errorf("embedcache: model must not be nil")
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 1000
	}
	if cfg.AccelBatchMin <= 0 {
		cfg.AccelBatchMin = 8
	}
	if cfg.Pressure == nil {
		cfg.Pressure = func() bool { return false }
	}

	c := &Cache{
		model:   model,
		cfg:     cfg,
		entries: make(map[string][]float32),
		jobs:    make(chan *computeJob),
		done:    make(chan struct{}),
	}

	c.wg.Add(1)
	go c.worker()

	return c, nil
}

// Close stops the compute worker. A job already accepted by the worker
// completes first. Embed calls after Close return ErrClosed.
func (c *Cache) Close() {
	c.stopOnce.Do(func() { close(c.done) })
	c.wg.Wait()
}

// worker serializes all embedding computation. Running placement switches and
// backend calls on one goroutine guarantees a switch can never race an
// in-flight computation on the endpoint being vacated.
func (c *Cache) worker() {
	defer c.wg.Done()

	current := embedder.PlacementFallback
	for {
		var job *computeJob
		select {
		case job = <-c.jobs:
		case <-c.done:
			return
		}

		if job.placement != current {
			logging.FromContext(job.ctx).Info("embedcache: compute placement switch",
				slog.String("from", string(current)),
				slog.String("to", string(job.placement)),
				slog.Int("batch", len(job.texts)),
			)
			current = job.placement
			if c.cfg.Metrics != nil {
				c.cfg.Metrics.placementSwitches.Inc()
			}
		}

		vectors, err := c.model.Compute(job.ctx, job.texts, job.placement)
		job.result <- computeResult{vectors: vectors, err: err}
	}
}

// EmbedDocuments returns one embedding per input text, order-preserving.
// Cached texts are served without computation; the uncached remainder is
// embedded in a single backend call on the placement chosen for the batch.
// On backend failure the error is returned and no cache writes occur.
func (c *Cache) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	// Partition into cached and uncached, deduplicating the uncached set
	// while preserving first-occurrence order.
	known := make(map[string][]float32, len(texts))
	var uncached []string
	seen := make(map[string]bool)

	c.mu.RLock()
	for _, text := range texts {
		if vec, ok := c.entries[text]; ok {
			known[text] = vec
			c.count(func(m *Metrics) { m.hits.Inc() })
		} else {
			c.count(func(m *Metrics) { m.misses.Inc() })
			if !seen[text] {
				seen[text] = true
				uncached = append(uncached, text)
			}
		}
	}
	c.mu.RUnlock()

	if len(uncached) > 0 {
		placement := c.choosePlacement(len(uncached), false)
		vectors, err := c.submit(ctx, uncached, placement)
		if err != nil {
			return nil, fmt.Errorf("embedcache: embedding %d texts failed: %w", len(uncached), err)
		}
		for i, text := range uncached {
			known[text] = vectors[i]
		}
		c.insert(uncached, vectors)
	}

	// Assemble from the local map rather than the cache: the insert above
	// may already have trimmed away some of this batch's own entries.
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = known[text]
	}
	return out, nil
}

// EmbedQuery returns the embedding for a single query text, or nil for empty
// input. The single-item path always uses the fallback placement: per-item
// overhead dominates there and the accelerated endpoint is wasted on it.
func (c *Cache) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, nil
	}

	c.mu.RLock()
	vec, ok := c.entries[text]
	c.mu.RUnlock()
	if ok {
		c.count(func(m *Metrics) { m.hits.Inc() })
		return vec, nil
	}
	c.count(func(m *Metrics) { m.misses.Inc() })

	vectors, err := c.submit(ctx, []string{text}, embedder.PlacementFallback)
	if err != nil {
		return nil, fmt.Errorf("embedcache: embedding query failed: %w", err)
	}

	c.insert([]string{text}, vectors)
	return vectors[0], nil
}

// Len returns the current number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Contains reports whether the exact text is currently cached.
func (c *Cache) Contains(text string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries[text]
	return ok
}

// Trim evicts the oldest half of the cache and returns the number of entries
// removed. Called by the resource monitor under memory pressure.
func (c *Cache) Trim() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	evict := len(c.order) / 2
	c.evictOldest(evict)
	return evict
}

// choosePlacement applies the placement policy: accelerated only when the
// backend has an accelerated endpoint, the uncached sub-batch is large enough
// to amortize the switch, and the process is not under memory pressure.
func (c *Cache) choosePlacement(batchSize int, query bool) embedder.Placement {
	if query || !c.model.HasAccelerated() {
		return embedder.PlacementFallback
	}
	if batchSize <= c.cfg.AccelBatchMin {
		return embedder.PlacementFallback
	}
	if c.cfg.Pressure() {
		return embedder.PlacementFallback
	}
	return embedder.PlacementAccelerated
}

// submit hands a batch to the compute worker and waits for its result.
func (c *Cache) submit(ctx context.Context, texts []string, placement embedder.Placement) ([][]float32, error) {
	job := &computeJob{
		ctx:       ctx,
		texts:     texts,
		placement: placement,
		result:    make(chan computeResult, 1),
	}

	select {
	case c.jobs <- job:
	case <-c.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	res := <-job.result
	if res.err != nil {
		return nil, res.err
	}
	if len(res.vectors) != len(texts) {
		return nil, fmt.Errorf("expected %d vectors, got %d", len(texts), len(res.vectors))
	}
	return res.vectors, nil
}

// insert stores newly computed pairs and enforces the size bound: when the
// cache exceeds MaxEntries, the oldest entries are discarded so that only the
// most recent half of the configured capacity remains.
func (c *Cache) insert(texts []string, vectors [][]float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, text := range texts {
		if _, ok := c.entries[text]; ok {
			continue
		}
		c.entries[text] = vectors[i]
		c.order = append(c.order, text)
	}

	if len(c.entries) > c.cfg.MaxEntries {
		keep := c.cfg.MaxEntries / 2
		c.evictOldest(len(c.order) - keep)
		c.count(func(m *Metrics) { m.trims.Inc() })
	}
	c.count(func(m *Metrics) { m.size.Set(float64(len(c.entries))) })
}

// evictOldest removes the n oldest entries. Caller must hold mu.
func (c *Cache) evictOldest(n int) {
	if n <= 0 {
		return
	}
	if n > len(c.order) {
		n = len(c.order)
	}
	for _, text := range c.order[:n] {
		delete(c.entries, text)
	}
	c.order = append(c.order[:0], c.order[n:]...)
	c.count(func(m *Metrics) { m.size.Set(float64(len(c.entries))) })
}

// count applies fn to the metrics set when one is configured.
func (c *Cache) count(fn func(*Metrics)) {
	if c.cfg.Metrics != nil {
		fn(c.cfg.Metrics)
	}
}
