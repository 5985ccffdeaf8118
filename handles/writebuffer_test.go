package handles

import (
	"testing"

	"github.com/oxcryptfs/oxcryptfs/vault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVault(t *testing.T) *vault.Vault {
	t.Helper()
	root := t.TempDir()
	v, err := vault.Create(root, "correct horse battery staple", vault.CreateOptions{})
	require.NoError(t, err)
	return v
}

func TestWriteBufferForCreateStartsEmptyAndDirty(t *testing.T) {
	b := NewForCreate(vault.NewPath("new.txt"))
	assert.True(t, b.Dirty())
	assert.Equal(t, int64(0), b.Len())
}

func TestWriteBufferFromExistingStartsClean(t *testing.T) {
	b := NewFromExisting(vault.NewPath("x.txt"), []byte("hello"))
	assert.False(t, b.Dirty())
	assert.Equal(t, int64(5), b.Len())
}

// TestWriteThenReadSameHandle exercises testable property #7: a write
// followed by a read of the same range through the same open handle
// returns the written bytes.
func TestWriteThenReadSameHandle(t *testing.T) {
	b := NewForCreate(vault.NewPath("new.txt"))

	n, err := b.Write(0, []byte("hello, world"))
	require.NoError(t, err)
	assert.Equal(t, 12, n)

	got, err := b.Read(0, 12)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello, world"), got)

	got, err = b.Read(7, 5)
	require.NoError(t, err)
	assert.Equal(t, []byte("world"), got)
}

func TestWriteBufferWritePastEndZeroExtends(t *testing.T) {
	b := NewForCreate(vault.NewPath("new.txt"))
	_, err := b.Write(4, []byte("x"))
	require.NoError(t, err)

	got, err := b.Read(0, 5)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 0, 'x'}, got)
}

func TestWriteBufferReadPastEndReturnsEmpty(t *testing.T) {
	b := NewFromExisting(vault.NewPath("x.txt"), []byte("abc"))
	got, err := b.Read(10, 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestWriteBufferTruncateShrinksAndGrows(t *testing.T) {
	b := NewFromExisting(vault.NewPath("x.txt"), []byte("abcdef"))
	require.NoError(t, b.Truncate(3))
	assert.Equal(t, int64(3), b.Len())
	got, _ := b.Read(0, 3)
	assert.Equal(t, []byte("abc"), got)

	require.NoError(t, b.Truncate(5))
	assert.Equal(t, int64(5), b.Len())
	got, _ = b.Read(3, 2)
	assert.Equal(t, []byte{0, 0}, got)
	assert.True(t, b.Dirty())
}

func TestWriteBufferFlushWritesThroughVault(t *testing.T) {
	v := newTestVault(t)
	defer v.Close()

	p := vault.NewPath("created.txt")
	b := NewForCreate(p)
	_, err := b.Write(0, []byte("payload"))
	require.NoError(t, err)

	require.NoError(t, b.Flush(v))
	assert.False(t, b.Dirty())

	got, err := v.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), got)
}

func TestWriteBufferFlushCleanIsNoop(t *testing.T) {
	v := newTestVault(t)
	defer v.Close()

	p := vault.NewPath("existing.txt")
	require.NoError(t, v.WriteFile(p, []byte("orig")))

	b := NewFromExisting(p, []byte("orig"))
	require.NoError(t, b.Flush(v))

	got, err := v.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, []byte("orig"), got)
}
