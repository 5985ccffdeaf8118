package handles

import (
	"testing"

	"github.com/oxcryptfs/oxcryptfs/vault"
	"github.com/stretchr/testify/assert"
)

func TestOpenHandleTrackerBasicCounting(t *testing.T) {
	tr := NewOpenHandleTracker()
	ino := InoOf(vault.NewPath("/a.txt"))

	assert.False(t, tr.HasOpenHandles(ino))
	tr.AddHandle(ino)
	tr.AddHandle(ino)
	assert.Equal(t, 2, tr.Count(ino))
	assert.True(t, tr.HasOpenHandles(ino))

	_, deleted := tr.RemoveHandle(ino)
	assert.False(t, deleted)
	assert.True(t, tr.HasOpenHandles(ino))

	_, deleted = tr.RemoveHandle(ino)
	assert.False(t, deleted)
	assert.False(t, tr.HasOpenHandles(ino))
}

// TestUnlinkWhileOpenDefersDeletion exercises testable property #8: after
// unlink-while-open, the entry is marked for deletion but nothing actually
// deletes until the last handle closes.
func TestUnlinkWhileOpenDefersDeletion(t *testing.T) {
	tr := NewOpenHandleTracker()
	parent := vault.NewPath("/dir")
	ino := InoOf(parent.Join("a.txt"))

	tr.AddHandle(ino)
	tr.AddHandle(ino)

	tr.MarkForDeletion(ino, parent, "a.txt")
	assert.True(t, tr.IsMarkedForDeletion(ino))

	d, deleted := tr.RemoveHandle(ino)
	assert.False(t, deleted, "deletion must wait for the last handle")
	assert.True(t, tr.IsMarkedForDeletion(ino))

	d, deleted = tr.RemoveHandle(ino)
	assert.True(t, deleted)
	assert.Equal(t, parent, d.Parent)
	assert.Equal(t, "a.txt", d.Name)
	assert.False(t, tr.IsMarkedForDeletion(ino))
	assert.False(t, tr.HasOpenHandles(ino))
}

func TestRemoveHandleUnknownInoIsNoop(t *testing.T) {
	tr := NewOpenHandleTracker()
	_, deleted := tr.RemoveHandle(Ino("nonexistent"))
	assert.False(t, deleted)
}
