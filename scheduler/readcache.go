package scheduler

import (
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// ChunkCacheKey identifies a cached decrypted byte range: a read at the
// same offset but a different size is a distinct entry, since the cached
// bytes themselves differ.
type ChunkCacheKey struct {
	Path   string
	Offset int64
	Size   int
}

type chunkCacheEntry struct {
	data      []byte
	expiresAt time.Time
}

// ChunkCache bounds decrypted-chunk memory by total bytes rather than
// entry count (§4.4). hashicorp/golang-lru/v2 only bounds by entry count,
// so this wraps it with a generously-sized entry cap and a manually
// tracked byte budget, evicting the LRU tail whenever an insert pushes the
// cache over budget. Entries also expire lazily on Get, since golang-lru/v2
// has no built-in per-entry TTL.
type ChunkCache struct {
	mu        sync.Mutex
	cache     *lru.Cache[ChunkCacheKey, chunkCacheEntry]
	maxBytes  int64
	ttl       time.Duration
	usedBytes atomic.Int64
}

// NewChunkCache returns a cache bounded by maxBytes total cached data,
// expiring each entry ttl after it was stored; a Get does not extend it.
func NewChunkCache(maxBytes int64, ttl time.Duration) *ChunkCache {
	// A generous entry cap: assume an average cached range is at least
	// 4KiB, so golang-lru's own count-based eviction essentially never
	// triggers before our byte-budget eviction does.
	entryCap := int(maxBytes/(4*1024)) + 1
	c, _ := lru.New[ChunkCacheKey, chunkCacheEntry](entryCap)
	return &ChunkCache{cache: c, maxBytes: maxBytes, ttl: ttl}
}

// Get returns the cached bytes for key, if present and not expired.
func (c *ChunkCache) Get(key ChunkCacheKey) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.cache.Get(key)
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		c.cache.Remove(key)
		c.usedBytes.Add(-int64(len(entry.data)))
		return nil, false
	}
	return entry.data, true
}

// Put inserts data under key, evicting the least-recently-used entries
// until the cache is back under its byte budget.
func (c *ChunkCache) Put(key ChunkCacheKey, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var oldest chunkCacheEntry
	var hadOldest bool
	if old, ok := c.cache.Peek(key); ok {
		c.usedBytes.Add(-int64(len(old.data)))
	} else {
		_, oldest, hadOldest = c.cache.GetOldest()
	}
	// golang-lru's own count-based eviction drops the oldest entry silently.
	if evicted := c.cache.Add(key, chunkCacheEntry{data: data, expiresAt: time.Now().Add(c.ttl)}); evicted && hadOldest {
		c.usedBytes.Add(-int64(len(oldest.data)))
	}
	c.usedBytes.Add(int64(len(data)))

	for c.usedBytes.Load() > c.maxBytes && c.cache.Len() > 0 {
		_, evicted, ok := c.cache.RemoveOldest()
		if !ok {
			break
		}
		c.usedBytes.Add(-int64(len(evicted.data)))
	}
}

// InvalidatePath removes every cached entry for path, used after a write
// (§4.4, testable property #12).
func (c *ChunkCache) InvalidatePath(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, key := range c.cache.Keys() {
		if key.Path != path {
			continue
		}
		if entry, ok := c.cache.Peek(key); ok {
			c.usedBytes.Add(-int64(len(entry.data)))
		}
		c.cache.Remove(key)
	}
}

// UsedBytes returns the currently tracked cached byte total.
func (c *ChunkCache) UsedBytes() int64 {
	return c.usedBytes.Load()
}

// Len returns the number of cached entries.
func (c *ChunkCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.Len()
}
