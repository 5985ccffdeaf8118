package scheduler

import (
	"testing"
	"time"

	"github.com/oxcryptfs/oxcryptfs/vault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttrCacheSetPositiveThenGet(t *testing.T) {
	c := NewAttrCache(time.Minute, 100*time.Millisecond)
	entry := AttrEntry{Kind: vault.EntryFile, Size: 42}
	c.SetPositive("/a.txt", entry)

	got, negative, found := c.Get("/a.txt")
	require.True(t, found)
	assert.False(t, negative)
	assert.Equal(t, entry, got)
}

func TestAttrCacheNegativeEntryExpiresFaster(t *testing.T) {
	c := NewAttrCache(time.Minute, 10*time.Millisecond)
	c.SetNegative("/missing.txt")

	_, negative, found := c.Get("/missing.txt")
	require.True(t, found)
	assert.True(t, negative)

	time.Sleep(30 * time.Millisecond)
	_, _, found = c.Get("/missing.txt")
	assert.False(t, found, "negative entry should have expired on its shorter TTL")
}

func TestAttrCacheInvalidate(t *testing.T) {
	c := NewAttrCache(time.Minute, time.Minute)
	c.SetPositive("/a.txt", AttrEntry{Kind: vault.EntryFile})
	c.Invalidate("/a.txt")

	_, _, found := c.Get("/a.txt")
	assert.False(t, found)
}

func TestAttrCacheInvalidatePrefixDropsSubtree(t *testing.T) {
	c := NewAttrCache(time.Minute, time.Minute)
	c.SetPositive("/dir", AttrEntry{Kind: vault.EntryDirectory})
	c.SetPositive("/dir/a.txt", AttrEntry{Kind: vault.EntryFile})
	c.SetPositive("/other.txt", AttrEntry{Kind: vault.EntryFile})

	c.InvalidatePrefix("/dir")

	_, _, found := c.Get("/dir")
	assert.False(t, found)
	_, _, found = c.Get("/dir/a.txt")
	assert.False(t, found)
	_, _, found = c.Get("/other.txt")
	assert.True(t, found)
}
