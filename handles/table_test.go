package handles

import (
	"testing"

	"github.com/oxcryptfs/oxcryptfs/vault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableInsertGetRemove(t *testing.T) {
	tbl := NewTable()
	assert.True(t, tbl.IsEmpty())

	id := tbl.Insert(&Handle{Kind: KindWrite, Path: vault.NewPath("/a.txt")})
	assert.Equal(t, uint64(1), id)
	assert.Equal(t, 1, tbl.Len())

	h, ok := tbl.Get(id)
	require.True(t, ok)
	assert.Equal(t, KindWrite, h.Kind)

	removed, ok := tbl.Remove(id)
	require.True(t, ok)
	assert.Equal(t, h, removed)
	assert.True(t, tbl.IsEmpty())

	_, ok = tbl.Get(id)
	assert.False(t, ok)
}

func TestTableIDsAreUniqueAndNeverZero(t *testing.T) {
	tbl := NewTable()
	seen := make(map[uint64]bool)
	for i := 0; i < 10; i++ {
		id := tbl.Insert(&Handle{Kind: KindRead})
		assert.NotZero(t, id)
		assert.False(t, seen[id], "duplicate handle id %d", id)
		seen[id] = true
	}
	assert.Equal(t, 10, tbl.Len())
}

func TestDirHandleEnumeratesSortedSnapshot(t *testing.T) {
	entries := map[string]vault.EntryKind{
		"b.txt": vault.EntryFile,
		"a.txt": vault.EntryFile,
		"sub":   vault.EntryDirectory,
	}
	dh := NewDirHandle(vault.NewPath("/dir"), entries)

	var names []string
	for {
		name, _, ok := dh.Next()
		if !ok {
			break
		}
		names = append(names, name)
	}
	assert.Equal(t, []string{"a.txt", "b.txt", "sub"}, names)

	_, _, ok := dh.Next()
	assert.False(t, ok)
}

func TestDirHandleSeek(t *testing.T) {
	entries := map[string]vault.EntryKind{"a": vault.EntryFile, "b": vault.EntryFile}
	dh := NewDirHandle(vault.NewPath("/dir"), entries)
	dh.Seek(1)
	name, _, ok := dh.Next()
	require.True(t, ok)
	assert.Equal(t, "b", name)
}
