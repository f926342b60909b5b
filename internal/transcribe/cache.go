package transcribe

import (
	"sync"
	"sync/atomic"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/snarg/interview-stt/internal/metrics"
)

// DefaultCacheEntries bounds the response cache when no size is configured.
const DefaultCacheEntries = 500

// CacheEntry is one stored transcript.
type CacheEntry struct {
	Fingerprint string
	Result      Result
	InsertedAt  time.Time
}

// CacheStats reports the current state of the response cache.
type CacheStats struct {
	Entries   int   `json:"entries"`
	Capacity  int   `json:"capacity"`
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
}

// Cache is an in-memory, size-bounded transcript cache. Eviction is FIFO by
// insertion order: re-putting an existing fingerprint replaces the value but
// keeps its original slot. Nothing survives a restart.
type Cache struct {
	mu       sync.RWMutex
	capacity int
	entries  *orderedmap.OrderedMap[string, CacheEntry]

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// NewCache creates a cache holding at most capacity entries.
func NewCache(capacity int) *Cache {
	if capacity < 1 {
		capacity = DefaultCacheEntries
	}
	return &Cache{
		capacity: capacity,
		entries:  orderedmap.New[string, CacheEntry](),
	}
}

// Get looks up a fingerprint. A hit is marked Cached with zero elapsed time,
// signalling that no provider was called.
func (c *Cache) Get(fingerprint string) (CacheEntry, bool) {
	c.mu.RLock()
	entry, ok := c.entries.Get(fingerprint)
	c.mu.RUnlock()

	if !ok {
		c.misses.Add(1)
		metrics.CacheLookupsTotal.WithLabelValues("miss").Inc()
		return CacheEntry{}, false
	}
	c.hits.Add(1)
	metrics.CacheLookupsTotal.WithLabelValues("hit").Inc()

	entry.Result.Cached = true
	entry.Result.ElapsedMs = 0
	return entry, true
}

// Put stores a result, evicting the oldest entry if the cache is full.
func (c *Cache) Put(fingerprint string, r Result) {
	entry := CacheEntry{Fingerprint: fingerprint, Result: r, InsertedAt: time.Now()}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries.Set(fingerprint, entry)
	for c.entries.Len() > c.capacity {
		oldest := c.entries.Oldest()
		if oldest == nil {
			break
		}
		c.entries.Delete(oldest.Key)
		c.evictions.Add(1)
		metrics.CacheEvictionsTotal.Inc()
	}
}

// Len returns the number of stored entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries.Len()
}

// Stats returns a snapshot of cache counters.
func (c *Cache) Stats() CacheStats {
	return CacheStats{
		Entries:   c.Len(),
		Capacity:  c.capacity,
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}
