// Package querycache provides a bounded FIFO cache over finished analysis and
// search results. Eviction is strictly by insertion order, and recency of use
// plays no part, so repeated hot queries never pin an entry forever.
package querycache

import (
	"fmt"
	"sync"
)

// Key builds the deterministic cache key for an operation, query, and k.
// Identical requests always collide on the same slot.
func Key(operation, query string, k int) string {
	return fmt.Sprintf("%s:%s:%d", operation, query, k)
}

// Cache is a capacity-bounded FIFO cache. It is safe for concurrent use.
type Cache struct {
	// mu guards all fields below.
	mu sync.RWMutex

	// maxEntries bounds the cache size.
	maxEntries int

	// entries maps key to stored value.
	entries map[string]string

	// order lists keys oldest-first; the head is the next eviction victim.
	order []string

	// hits and misses count Get outcomes over the cache's lifetime.
	hits   uint64
	misses uint64

	// metrics records activity when configured.
	metrics *Metrics
}

// New constructs a Cache with the given capacity (default 100 if zero or
// negative). metrics may be nil.
func New(maxEntries int, metrics *Metrics) *Cache {
	if maxEntries <= 0 {
		maxEntries = 100
	}
	return &Cache{
		maxEntries: maxEntries,
		entries:    make(map[string]string, maxEntries),
		metrics:    metrics,
	}
}

// Get returns the cached value for key and whether it was present.
// Every call increments exactly one of the hit or miss counters.
func (c *Cache) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	val, ok := c.entries[key]
	if ok {
		c.hits++
		if c.metrics != nil {
			c.metrics.hits.Inc()
		}
	} else {
		c.misses++
		if c.metrics != nil {
			c.metrics.misses.Inc()
		}
	}
	return val, ok
}

// Set stores value under key. When the cache is at capacity and key is new,
// the single oldest-inserted entry is evicted first. Overwriting an existing
// key keeps its original insertion position.
func (c *Cache) Set(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; exists {
		c.entries[key] = value
		return
	}

	if len(c.entries) >= c.maxEntries {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
		if c.metrics != nil {
			c.metrics.evictions.Inc()
		}
	}

	c.entries[key] = value
	c.order = append(c.order, key)
	if c.metrics != nil {
		c.metrics.size.Set(float64(len(c.entries)))
	}
}

// Len returns the current number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// HitRate returns hits / (hits + misses), or 0 before the first Get.
func (c *Cache) HitRate() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	total := c.hits + c.misses
	if total == 0 {
		return 0
	}
	return float64(c.hits) / float64(total)
}

// Stats returns the lifetime hit and miss counts.
func (c *Cache) Stats() (hits, misses uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}

// Trim empties the cache and returns the number of entries removed. Hit and
// miss counters are preserved; they are lifetime totals, not window totals.
// Called by the resource monitor under memory pressure.
func (c *Cache) Trim() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.entries)
	c.entries = make(map[string]string, c.maxEntries)
	c.order = c.order[:0]
	if c.metrics != nil {
		c.metrics.size.Set(0)
	}
	return n
}
