package cache

import (
	"context"
	"sync"
	"time"
)

// DefaultMaxBytes bounds the in-memory cache when no limit is given.
const DefaultMaxBytes = 64 * 1024 * 1024

// MemoryCache is an in-process LRU cache with TTL and a byte-size limit.
type MemoryCache struct {
	maxBytes int64

	mu       sync.Mutex
	entries  map[string]*memEntry
	keyOrder []string
	size     int64
	stats    Stats
}

type memEntry struct {
	data      []byte
	createdAt time.Time
	ttl       time.Duration
}

// Stats tracks cache effectiveness counters.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Size      int64
}

// NewMemoryCache builds a cache bounded to maxBytes. A non-positive limit
// uses DefaultMaxBytes.
func NewMemoryCache(maxBytes int64) *MemoryCache {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &MemoryCache{
		maxBytes: maxBytes,
		entries:  make(map[string]*memEntry),
	}
}

// Get implements Cache.
func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.entries[key]
	if !exists {
		c.stats.Misses++
		return nil, false, nil
	}
	if expired(entry) {
		c.removeLocked(key)
		c.stats.Misses++
		return nil, false, nil
	}

	c.moveToEndLocked(key)
	c.stats.Hits++
	return entry.data, true, nil
}

// Set implements Cache. Entries larger than the cache limit are rejected
// silently rather than evicting everything else.
func (c *MemoryCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if int64(len(data)) > c.maxBytes {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; exists {
		c.removeLocked(key)
	}

	c.entries[key] = &memEntry{data: data, createdAt: time.Now(), ttl: ttl}
	c.keyOrder = append(c.keyOrder, key)
	c.size += int64(len(data))

	c.evictLocked()
	return nil
}

// Delete implements Cache.
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(key)
	return nil
}

// GetStats returns a snapshot of the counters.
func (c *MemoryCache) GetStats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := c.stats
	stats.Size = c.size
	return stats
}

func expired(e *memEntry) bool {
	if e.ttl <= 0 {
		return false
	}
	return time.Since(e.createdAt) > e.ttl
}

func (c *MemoryCache) removeLocked(key string) {
	entry, exists := c.entries[key]
	if !exists {
		return
	}
	c.size -= int64(len(entry.data))
	delete(c.entries, key)
	for i, k := range c.keyOrder {
		if k == key {
			c.keyOrder = append(c.keyOrder[:i], c.keyOrder[i+1:]...)
			break
		}
	}
}

// moveToEndLocked marks a key most recently used.
func (c *MemoryCache) moveToEndLocked(key string) {
	for i, k := range c.keyOrder {
		if k == key {
			c.keyOrder = append(c.keyOrder[:i], c.keyOrder[i+1:]...)
			break
		}
	}
	c.keyOrder = append(c.keyOrder, key)
}

// evictLocked drops expired entries first, then least recently used ones
// until the cache fits its byte limit.
func (c *MemoryCache) evictLocked() {
	var stale []string
	for key, entry := range c.entries {
		if expired(entry) {
			stale = append(stale, key)
		}
	}
	for _, key := range stale {
		c.removeLocked(key)
	}

	for c.size > c.maxBytes && len(c.keyOrder) > 0 {
		c.removeLocked(c.keyOrder[0])
		c.stats.Evictions++
	}
}
