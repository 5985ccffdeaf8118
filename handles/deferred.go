package handles

import (
	"sync"

	"github.com/oxcryptfs/oxcryptfs/vault"
)

// Ino is the stable per-file identity used by OpenHandleTracker. There is
// no FUSE/kernel bridge in scope to assign real inode numbers, so the
// canonical resolved path string stands in: two opens of the same vault
// path always yield the same Ino.
type Ino string

// InoOf returns the tracking identity for p.
func InoOf(p vault.Path) Ino {
	return Ino(p.Display())
}

// DeferredDeletion is the directory-removal work an unlink-while-open
// leaves pending until the last handle on the file closes.
type DeferredDeletion struct {
	Parent vault.Path
	Name   string
}

// OpenHandleTracker tracks, per inode, how many handles are currently open
// and whether the file has been unlinked while still open. POSIX requires
// unlink() to remove the directory entry immediately while deferring the
// actual content removal until the last open handle closes (§4.5,
// testable property #8).
type OpenHandleTracker struct {
	mu         sync.Mutex
	openCounts map[Ino]int
	deferred   map[Ino]DeferredDeletion
}

// NewOpenHandleTracker returns an empty tracker.
func NewOpenHandleTracker() *OpenHandleTracker {
	return &OpenHandleTracker{
		openCounts: make(map[Ino]int),
		deferred:   make(map[Ino]DeferredDeletion),
	}
}

// AddHandle records a newly opened handle on ino.
func (t *OpenHandleTracker) AddHandle(ino Ino) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.openCounts[ino]++
}

// RemoveHandle records a closed handle on ino. If this was the last open
// handle and the file had been marked for deletion, the pending deletion
// is returned and cleared; the caller is then responsible for actually
// removing the entry from the vault.
func (t *OpenHandleTracker) RemoveHandle(ino Ino) (DeferredDeletion, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	count, ok := t.openCounts[ino]
	if !ok {
		return DeferredDeletion{}, false
	}
	count--
	if count > 0 {
		t.openCounts[ino] = count
		return DeferredDeletion{}, false
	}

	delete(t.openCounts, ino)
	d, marked := t.deferred[ino]
	if marked {
		delete(t.deferred, ino)
	}
	return d, marked
}

// MarkForDeletion records that ino's directory entry has been unlinked
// while handles remain open; the actual content removal happens in
// RemoveHandle once the count reaches zero.
func (t *OpenHandleTracker) MarkForDeletion(ino Ino, parent vault.Path, name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.deferred[ino] = DeferredDeletion{Parent: parent, Name: name}
}

// HasOpenHandles reports whether ino currently has any open handles.
func (t *OpenHandleTracker) HasOpenHandles(ino Ino) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.openCounts[ino] > 0
}

// IsMarkedForDeletion reports whether ino is pending deferred deletion.
func (t *OpenHandleTracker) IsMarkedForDeletion(ino Ino) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.deferred[ino]
	return ok
}

// Count returns the current open handle count for ino.
func (t *OpenHandleTracker) Count(ino Ino) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.openCounts[ino]
}
