package scheduler

import (
	"fmt"

	"golang.org/x/sync/singleflight"
)

// ReadDedup deduplicates concurrent identical reads: N callers reading the
// same (path, offset, size) before the first completes all share one
// underlying fetch and its result (§4.4, testable property #11). Wraps
// golang.org/x/sync/singleflight directly rather than reimplementing the
// leader/broadcast pattern by hand.
type ReadDedup struct {
	group singleflight.Group
}

// NewReadDedup returns an empty dedup group.
func NewReadDedup() *ReadDedup {
	return &ReadDedup{}
}

// ReadKey builds the dedup key for a read of size bytes at offset in path.
func ReadKey(path string, offset int64, size int) string {
	return fmt.Sprintf("%s:%d:%d", path, offset, size)
}

// Do runs fn under key, sharing its result with any concurrent callers
// using the same key. shared reports whether this caller received a
// result computed by another, concurrently-running caller.
func (d *ReadDedup) Do(key string, fn func() ([]byte, error)) (data []byte, shared bool, err error) {
	v, err, shared := d.group.Do(key, func() (any, error) {
		return fn()
	})
	if err != nil {
		return nil, shared, err
	}
	return v.([]byte), shared, nil
}
