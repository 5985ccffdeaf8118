package scheduler

import (
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/oxcryptfs/oxcryptfs/vault"
)

// AttrEntry is the cached result of resolving a path's kind, size, and
// modification time.
type AttrEntry struct {
	Kind    vault.EntryKind
	Size    int64
	ModTime time.Time
}

type attrCacheValue struct {
	entry    AttrEntry
	negative bool
}

// AttrCache caches resolved path attributes with separate positive and
// negative TTLs (§4.4): a successful lookup's result is trusted for
// positiveTTL (1s local, 60s cloud-synced per config.Config.AttributeTTL),
// while a "path does not exist" result is trusted for a much shorter
// negativeTTL so a concurrent create elsewhere is picked up quickly.
// Wraps patrickmn/go-cache, which supports a per-Set TTL override.
type AttrCache struct {
	cache       *gocache.Cache
	positiveTTL time.Duration
	negativeTTL time.Duration
}

// NewAttrCache returns an attribute cache with the given TTLs. go-cache's
// janitor sweep runs at twice the positive TTL, matching how it is used
// elsewhere for periodic cleanup of expired entries.
func NewAttrCache(positiveTTL, negativeTTL time.Duration) *AttrCache {
	return &AttrCache{
		cache:       gocache.New(positiveTTL, 2*positiveTTL),
		positiveTTL: positiveTTL,
		negativeTTL: negativeTTL,
	}
}

// SetPositive caches a successful resolution of path.
func (c *AttrCache) SetPositive(path string, entry AttrEntry) {
	c.cache.Set(cacheKey(path), attrCacheValue{entry: entry}, c.positiveTTL)
}

// SetNegative caches that path does not currently exist.
func (c *AttrCache) SetNegative(path string) {
	c.cache.Set(cacheKey(path), attrCacheValue{negative: true}, c.negativeTTL)
}

// Get returns the cached entry for path. found is false on a cache miss;
// negative is true if the cached result is a cached "does not exist".
func (c *AttrCache) Get(path string) (entry AttrEntry, negative bool, found bool) {
	v, ok := c.cache.Get(cacheKey(path))
	if !ok {
		return AttrEntry{}, false, false
	}
	val := v.(attrCacheValue)
	return val.entry, val.negative, true
}

// Invalidate drops path's cached attributes, positive or negative.
func (c *AttrCache) Invalidate(path string) {
	c.cache.Delete(cacheKey(path))
}

// InvalidatePrefix drops every cached entry at or under a directory path,
// for operations (rmdir, rename of a directory) that affect a whole
// subtree at once.
func (c *AttrCache) InvalidatePrefix(prefix string) {
	key := cacheKey(prefix)
	for k := range c.cache.Items() {
		if k == key || strings.HasPrefix(k, key+"/") {
			c.cache.Delete(k)
		}
	}
}

func cacheKey(path string) string {
	return path
}
