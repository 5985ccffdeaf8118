package handles

import (
	"sort"
	"sync"

	"github.com/oxcryptfs/oxcryptfs/vault"
)

// Kind distinguishes the four kinds of open handle (§4.5).
type Kind int

const (
	// KindRead is a streaming read handle owning a VaultFileReader.
	KindRead Kind = iota
	// KindReaderLoaned marks a read handle whose VaultFileReader has been
	// temporarily moved out to service an in-flight scheduled read; a
	// second read arriving on the same handle while loaned must be
	// rejected as busy rather than racing the loaned reader.
	KindReaderLoaned
	// KindWrite is a write handle owning a WriteBuffer.
	KindWrite
	// KindDir is a directory-enumeration handle owning a DirHandle cursor.
	KindDir
)

// DirHandle is a directory's enumeration cursor: a stable, sorted snapshot
// of its children taken at opendir time, walked one entry per readdir
// call.
type DirHandle struct {
	Path   vault.Path
	names  []string
	kinds  map[string]vault.EntryKind
	offset int
}

// NewDirHandle snapshots entries (as returned by vault.Vault.ListEntries)
// into a deterministically ordered cursor.
func NewDirHandle(path vault.Path, entries map[string]vault.EntryKind) *DirHandle {
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return &DirHandle{Path: path, names: names, kinds: entries}
}

// Next returns the next entry in the cursor, advancing it; ok is false once
// every entry has been returned.
func (d *DirHandle) Next() (name string, kind vault.EntryKind, ok bool) {
	if d.offset >= len(d.names) {
		return "", 0, false
	}
	name = d.names[d.offset]
	kind = d.kinds[name]
	d.offset++
	return name, kind, true
}

// Seek repositions the cursor to entry index n (FUSE readdir supports
// resuming from an arbitrary offset across calls).
func (d *DirHandle) Seek(n int) {
	if n < 0 {
		n = 0
	}
	d.offset = n
}

// Handle is one open file/directory handle.
type Handle struct {
	Kind   Kind
	Path   vault.Path
	Reader *VaultFileReader
	Writer *WriteBuffer
	Dir    *DirHandle
}

// Table is a thread-safe map from handle ID to Handle, with an
// auto-incrementing u64 ID counter (0 is never issued, matching the
// original source's handle table and the bridge's convention that 0 means
// "no handle").
type Table struct {
	mu      sync.Mutex
	next    uint64
	handles map[uint64]*Handle
}

// NewTable returns an empty handle table.
func NewTable() *Table {
	return &Table{handles: make(map[uint64]*Handle)}
}

// Insert allocates a fresh ID for h and stores it.
func (t *Table) Insert(h *Handle) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.next++
	id := t.next
	t.handles[id] = h
	return id
}

// Get returns the handle for id, if any.
func (t *Table) Get(id uint64) (*Handle, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	h, ok := t.handles[id]
	return h, ok
}

// Remove deletes and returns the handle for id, if any.
func (t *Table) Remove(id uint64) (*Handle, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	h, ok := t.handles[id]
	delete(t.handles, id)
	return h, ok
}

// Len returns the number of currently open handles.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.handles)
}

// IsEmpty reports whether the table holds no handles.
func (t *Table) IsEmpty() bool {
	return t.Len() == 0
}
