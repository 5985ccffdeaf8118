package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkCacheGetMiss(t *testing.T) {
	c := NewChunkCache(1<<20, time.Minute)
	_, ok := c.Get(ChunkCacheKey{Path: "a", Offset: 0, Size: 4})
	assert.False(t, ok)
}

func TestChunkCachePutThenGetHits(t *testing.T) {
	c := NewChunkCache(1<<20, time.Minute)
	key := ChunkCacheKey{Path: "a", Offset: 0, Size: 4}
	c.Put(key, []byte("data"))

	got, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, []byte("data"), got)
}

func TestChunkCacheDistinctSizesAreDistinctEntries(t *testing.T) {
	c := NewChunkCache(1<<20, time.Minute)
	small := ChunkCacheKey{Path: "a", Offset: 0, Size: 5}
	large := ChunkCacheKey{Path: "a", Offset: 0, Size: 16}

	c.Put(small, []byte("small"))
	_, ok := c.Get(large)
	assert.False(t, ok)

	got, ok := c.Get(small)
	require.True(t, ok)
	assert.Equal(t, []byte("small"), got)
}

func TestChunkCacheExpiresAfterTTL(t *testing.T) {
	c := NewChunkCache(1<<20, 10*time.Millisecond)
	key := ChunkCacheKey{Path: "a", Offset: 0, Size: 4}
	c.Put(key, []byte("data"))

	time.Sleep(30 * time.Millisecond)
	_, ok := c.Get(key)
	assert.False(t, ok)
}

func TestChunkCacheEvictsOverByteBudget(t *testing.T) {
	c := NewChunkCache(10, time.Minute)
	c.Put(ChunkCacheKey{Path: "a", Offset: 0, Size: 6}, make([]byte, 6))
	c.Put(ChunkCacheKey{Path: "b", Offset: 0, Size: 6}, make([]byte, 6))

	assert.LessOrEqual(t, c.UsedBytes(), int64(10))
	assert.Equal(t, 1, c.Len())
}

// TestInvalidatePathDropsOnlyThatPath exercises testable property #12:
// after a write to a path, subsequent reads must not observe stale
// cached data, while other paths are unaffected.
func TestInvalidatePathDropsOnlyThatPath(t *testing.T) {
	c := NewChunkCache(1<<20, time.Minute)
	keyA := ChunkCacheKey{Path: "a", Offset: 0, Size: 4}
	keyB := ChunkCacheKey{Path: "b", Offset: 0, Size: 4}
	c.Put(keyA, []byte("aaaa"))
	c.Put(keyB, []byte("bbbb"))

	c.InvalidatePath("a")

	_, ok := c.Get(keyA)
	assert.False(t, ok)
	got, ok := c.Get(keyB)
	require.True(t, ok)
	assert.Equal(t, []byte("bbbb"), got)
}
