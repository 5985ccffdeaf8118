package handles

import (
	"sync/atomic"
	"time"

	"github.com/oxcryptfs/oxcryptfs/oxerr"
)

// BoundedFsPool wraps blocking filesystem-adjacent operations (e.g. a
// network-mounted vault root going stale) in a goroutine race against a
// timeout. A timed-out goroutine may still be blocked in a kernel syscall
// forever; this pool counts those as leaked and refuses new operations
// once the leak count crosses MaxLeaked, rather than spawning goroutines
// without bound (§4.5).
type BoundedFsPool struct {
	maxLeaked int64
	blocked   atomic.Int64
}

// NewBoundedFsPool returns a pool that tolerates at most maxLeaked
// concurrently-blocked goroutines before rejecting further operations.
func NewBoundedFsPool(maxLeaked int) *BoundedFsPool {
	return &BoundedFsPool{maxLeaked: int64(maxLeaked)}
}

type timedResult[T any] struct {
	val T
	err error
}

// RunWithTimeout runs op on its own goroutine and returns its result if it
// completes within timeout. On timeout, the goroutine is left running (its
// result, if any, is discarded) and the blocked counter is not
// decremented, modelling the still-blocked kernel thread the caller must
// account for.
func RunWithTimeout[T any](p *BoundedFsPool, timeout time.Duration, op func() (T, error)) (T, error) {
	var zero T

	if p.blocked.Load() >= p.maxLeaked {
		return zero, oxerr.New(oxerr.KindResourceBusy, "bounded_pool.run_with_timeout", "", nil)
	}

	p.blocked.Add(1)
	done := make(chan timedResult[T], 1)
	go func() {
		v, err := op()
		p.blocked.Add(-1)
		done <- timedResult[T]{val: v, err: err}
	}()

	select {
	case r := <-done:
		return r.val, r.err
	case <-time.After(timeout):
		return zero, oxerr.New(oxerr.KindIO, "bounded_pool.run_with_timeout", "", nil)
	}
}

// BlockedCount returns the current number of blocked (potentially leaked)
// goroutines.
func (p *BoundedFsPool) BlockedCount() int {
	return int(p.blocked.Load())
}

// MaxAllowed returns the configured leak threshold.
func (p *BoundedFsPool) MaxAllowed() int {
	return int(p.maxLeaked)
}

// IsHealthy reports no blocked goroutines.
func (p *BoundedFsPool) IsHealthy() bool {
	return p.BlockedCount() == 0
}

// IsDegraded reports some blocked goroutines but under the threshold.
func (p *BoundedFsPool) IsDegraded() bool {
	c := p.BlockedCount()
	return c > 0 && int64(c) < p.maxLeaked
}

// IsExhausted reports the leak count at or above the threshold.
func (p *BoundedFsPool) IsExhausted() bool {
	return int64(p.BlockedCount()) >= p.maxLeaked
}

// Reset clears the blocked counter. Only safe to call once the operator
// has confirmed no goroutines are actually still blocked (e.g. after
// remounting a stale network share).
func (p *BoundedFsPool) Reset() {
	p.blocked.Store(0)
}
