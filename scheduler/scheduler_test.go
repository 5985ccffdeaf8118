package scheduler

import (
	"sync"
	"testing"
	"time"

	"github.com/oxcryptfs/oxcryptfs/config"
	"github.com/oxcryptfs/oxcryptfs/oxerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() config.Config {
	c := config.Default()
	c.LaneQueueCapacities = config.LaneCapacities{
		Control: 2, Metadata: 2, ReadForeground: 2, WriteStructural: 2, Bulk: 2,
	}
	c.LaneDeadlines = config.LaneDeadlines{
		Control: time.Second, Metadata: time.Second, ReadForeground: time.Second,
		WriteStructural: time.Second, Bulk: time.Second,
	}
	return c
}

func TestSubmitRunsAndReturnsResult(t *testing.T) {
	s := NewScheduler(testConfig(), 2)
	defer s.Stop()

	v, err := Submit(s, LaneMetadata, func() (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestSubmitPropagatesOpError(t *testing.T) {
	s := NewScheduler(testConfig(), 2)
	defer s.Stop()

	wantErr := oxerr.New(oxerr.KindIO, "op", "", nil)
	_, err := Submit(s, LaneMetadata, func() (int, error) { return 0, wantErr })
	assert.Equal(t, oxerr.KindIO, oxerr.KindOf(err))
}

// TestFullLaneQueueRejectsImmediately exercises testable property #9: a
// request whose lane queue is full returns ResourceBusy without entering
// any worker. With workers=1, one worker is reserved for LaneMetadata and
// one is the general (unreserved) worker, which also services
// LaneMetadata in its priority order, so two concurrent blocking jobs
// occupy every worker capable of draining the metadata lane.
func TestFullLaneQueueRejectsImmediately(t *testing.T) {
	const metadataCapableWorkers = 2

	cfg := testConfig()
	cfg.LaneQueueCapacities.Metadata = 1
	s := NewScheduler(cfg, 1)
	defer s.Stop()

	block := make(chan struct{})
	release := make(chan struct{})
	started := make(chan struct{}, metadataCapableWorkers)

	for i := 0; i < metadataCapableWorkers; i++ {
		go func() {
			_, _ = Submit(s, LaneMetadata, func() (int, error) {
				started <- struct{}{}
				<-block
				return 0, nil
			})
		}()
	}
	for i := 0; i < metadataCapableWorkers; i++ {
		<-started
	}

	// This one sits in the queue (capacity 1).
	go func() {
		_, _ = Submit(s, LaneMetadata, func() (int, error) {
			<-release
			return 0, nil
		})
	}()
	time.Sleep(50 * time.Millisecond)

	_, err := Submit(s, LaneMetadata, func() (int, error) { return 0, nil })
	require.Error(t, err)
	assert.Equal(t, oxerr.KindResourceBusy, oxerr.KindOf(err))

	close(block)
	close(release)
}

// TestDeadlineExceededReturnsInterrupted exercises testable property #10:
// every submitted request produces exactly one reply, including the
// deadline-exceeded case.
func TestDeadlineExceededReturnsInterrupted(t *testing.T) {
	cfg := testConfig()
	cfg.LaneDeadlines.Metadata = 20 * time.Millisecond
	s := NewScheduler(cfg, 2)
	defer s.Stop()

	_, err := Submit(s, LaneMetadata, func() (int, error) {
		time.Sleep(200 * time.Millisecond)
		return 1, nil
	})
	require.Error(t, err)
	assert.Equal(t, oxerr.KindInterrupted, oxerr.KindOf(err))
}

// TestBulkLaneIsRateLimited exercises the golang.org/x/time/rate wiring:
// with a 5-per-second limit and burst 1, three back-to-back bulk submissions
// must wait for two token refills (~400ms in all).
func TestBulkLaneIsRateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.BulkReadsPerSecond = 5
	cfg.BulkBurst = 1
	s := NewScheduler(cfg, 2)
	defer s.Stop()

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := Submit(s, LaneBulk, func() (int, error) { return 0, nil })
		require.NoError(t, err)
	}
	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 300*time.Millisecond, "3 bulk submissions at 5/s with burst 1 should take at least ~400ms")
}

func TestEverySubmittedRequestGetsExactlyOneReply(t *testing.T) {
	s := NewScheduler(testConfig(), 4)
	defer s.Stop()

	const n = 50
	var wg sync.WaitGroup
	var successes, failures int
	var mu sync.Mutex

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := Submit(s, LaneReadForeground, func() (int, error) { return i, nil })
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				assert.Equal(t, i, v)
				successes++
			} else {
				failures++
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, n, successes+failures)
}
