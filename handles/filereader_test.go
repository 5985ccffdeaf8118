package handles

import (
	"bytes"
	"testing"

	"github.com/oxcryptfs/oxcryptfs/vault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVaultFileReaderSmallFile(t *testing.T) {
	v := newTestVault(t)
	defer v.Close()

	p := vault.NewPath("small.txt")
	content := []byte("hello, vault reader")
	require.NoError(t, v.WriteFile(p, content))

	r, err := Open(v, p)
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, int64(len(content)), r.PlaintextSize())

	got, err := r.ReadAt(0, len(content))
	require.NoError(t, err)
	assert.Equal(t, content, got)

	got, err = r.ReadAt(7, 5)
	require.NoError(t, err)
	assert.Equal(t, content[7:12], got)
}

func TestVaultFileReaderMultiChunkRangeRead(t *testing.T) {
	v := newTestVault(t)
	defer v.Close()

	// Three full 32KiB chunks plus a partial fourth, so a range read must
	// span a chunk boundary and exercise the seek-to-chunk-offset path.
	const chunkSize = 32768
	content := bytes.Repeat([]byte{0}, 0)
	for i := 0; i < 3; i++ {
		chunk := bytes.Repeat([]byte{byte('A' + i)}, chunkSize)
		content = append(content, chunk...)
	}
	content = append(content, bytes.Repeat([]byte{'D'}, 100)...)

	p := vault.NewPath("big.bin")
	require.NoError(t, v.WriteFile(p, content))

	r, err := Open(v, p)
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, int64(len(content)), r.PlaintextSize())

	// Range spanning the boundary between chunk 0 and chunk 1.
	got, err := r.ReadAt(chunkSize-10, 20)
	require.NoError(t, err)
	assert.Equal(t, content[chunkSize-10:chunkSize+10], got)

	// Range spanning three chunks entirely.
	got, err = r.ReadAt(100, 3*chunkSize)
	require.NoError(t, err)
	assert.Equal(t, content[100:100+3*chunkSize], got)

	// Tail read into the final partial chunk.
	got, err = r.ReadAt(int64(len(content))-50, 1000)
	require.NoError(t, err)
	assert.Equal(t, content[len(content)-50:], got)
}

func TestVaultFileReaderReadAtOrPastEOFReturnsEmpty(t *testing.T) {
	v := newTestVault(t)
	defer v.Close()

	p := vault.NewPath("tiny.txt")
	require.NoError(t, v.WriteFile(p, []byte("abc")))

	r, err := Open(v, p)
	require.NoError(t, err)
	defer r.Close()

	got, err := r.ReadAt(3, 10)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = r.ReadAt(100, 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestVaultFileReaderCloneIsIndependent(t *testing.T) {
	v := newTestVault(t)
	defer v.Close()

	p := vault.NewPath("clone.txt")
	require.NoError(t, v.WriteFile(p, []byte("clonable content")))

	r, err := Open(v, p)
	require.NoError(t, err)
	defer r.Close()

	clone := r.Clone()
	defer clone.Close()

	got1, err := r.ReadAt(0, 7)
	require.NoError(t, err)
	got2, err := clone.ReadAt(0, 7)
	require.NoError(t, err)
	assert.Equal(t, got1, got2)
}
