// Package handles implements the open-handle layer sitting between the
// bridge API (out of scope) and vault.Vault: read/write/directory handle
// kinds, the read-modify-write WriteBuffer, the range-read VaultFileReader,
// the deferred-deletion tracker for unlink-while-open, and the bounded FS
// pool (SPEC_FULL.md §4.5).
package handles

import (
	"sync"

	"github.com/oxcryptfs/oxcryptfs/oxerr"
	"github.com/oxcryptfs/oxcryptfs/vault"
)

// WriteBuffer is an in-memory read-modify-write buffer backing a write
// handle. Content chunks are authenticated with an AAD that includes the
// chunk index, so an in-place partial-chunk rewrite is not possible; every
// write instead mutates the whole plaintext in memory and Flush re-encrypts
// it in full on close/fsync (§4.3).
type WriteBuffer struct {
	mu    sync.Mutex
	path  vault.Path
	data  []byte
	dirty bool
}

// NewForCreate returns an empty, dirty buffer for a file being created:
// even a zero-length file must be flushed once so the directory entry and
// header exist.
func NewForCreate(path vault.Path) *WriteBuffer {
	return &WriteBuffer{path: path, dirty: true}
}

// NewFromExisting returns a buffer pre-populated with plaintext's existing
// content, not yet dirty. A subsequent write or truncate marks it dirty.
func NewFromExisting(path vault.Path, plaintext []byte) *WriteBuffer {
	return &WriteBuffer{path: path, data: append([]byte(nil), plaintext...)}
}

// Path is the vault path this buffer flushes to.
func (b *WriteBuffer) Path() vault.Path {
	return b.path
}

// Write copies p into the buffer at offset, zero-extending the buffer if
// offset is past its current length.
func (b *WriteBuffer) Write(offset int64, p []byte) (int, error) {
	if offset < 0 {
		return 0, oxerr.New(oxerr.KindIO, "write_buffer.write", b.path.Display(), nil)
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	end := offset + int64(len(p))
	if end > int64(len(b.data)) {
		grown := make([]byte, end)
		copy(grown, b.data)
		b.data = grown
	}
	copy(b.data[offset:], p)
	b.dirty = true
	return len(p), nil
}

// Read returns up to size bytes starting at offset, clamped to the
// buffer's current length; it never errors on a short or empty read.
func (b *WriteBuffer) Read(offset int64, size int) ([]byte, error) {
	if offset < 0 || size <= 0 {
		return nil, nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if offset >= int64(len(b.data)) {
		return nil, nil
	}
	end := offset + int64(size)
	if end > int64(len(b.data)) {
		end = int64(len(b.data))
	}
	out := make([]byte, end-offset)
	copy(out, b.data[offset:end])
	return out, nil
}

// Truncate resizes the buffer to size, zero-extending or discarding the
// tail as needed, and marks it dirty.
func (b *WriteBuffer) Truncate(size int64) error {
	if size < 0 {
		return oxerr.New(oxerr.KindIO, "write_buffer.truncate", b.path.Display(), nil)
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	switch {
	case size < int64(len(b.data)):
		b.data = b.data[:size]
	case size > int64(len(b.data)):
		grown := make([]byte, size)
		copy(grown, b.data)
		b.data = grown
	}
	b.dirty = true
	return nil
}

// Len returns the buffer's current plaintext length.
func (b *WriteBuffer) Len() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return int64(len(b.data))
}

// Dirty reports whether the buffer has unflushed mutations.
func (b *WriteBuffer) Dirty() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dirty
}

// Flush encrypts the whole buffer and atomically writes it into place via
// v.WriteFile if dirty; a clean buffer is a no-op. Callers are responsible
// for invalidating any read/attribute cache entries for b.Path() afterward.
func (b *WriteBuffer) Flush(v *vault.Vault) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.dirty {
		return nil
	}
	if err := v.WriteFile(b.path, b.data); err != nil {
		return err
	}
	b.dirty = false
	return nil
}
