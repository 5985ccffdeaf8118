package scheduler

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/oxcryptfs/oxcryptfs/config"
	"github.com/oxcryptfs/oxcryptfs/oxerr"
)

type job struct {
	lane   Lane
	fn     func() (any, error)
	result chan jobResult
	state  *RequestState
}

type jobResult struct {
	val any
	err error
}

// Scheduler dispatches submitted operations across five bounded,
// priority-ordered lanes (§4.4). Admission is non-blocking: a full lane
// queue rejects immediately with oxerr.KindResourceBusy rather than
// blocking the caller (testable property #9). Each submitted request
// races worker completion against its lane's deadline and is guaranteed
// exactly one reply either way (testable property #10).
type Scheduler struct {
	queues    [LaneCount]chan *job
	deadlines [LaneCount]time.Duration

	// bulkLimiter throttles LaneBulk dispatch so prefetch/background
	// traffic cannot monopolize a network-backed vault root (§4.4). nil
	// (unlimited) when cfg.BulkReadsPerSecond is 0.
	bulkLimiter *rate.Limiter

	stopCh chan struct{}
	wg     sync.WaitGroup

	dispatchCounter atomic.Uint64
}

// NewScheduler builds a Scheduler sized from cfg's lane capacities and
// deadlines. workers <= 0 defaults to runtime.NumCPU(). A subset of
// workers are reserved to always service LaneMetadata and
// LaneWriteStructural per cfg's (implicit default) reservations, so a
// flood of bulk reads cannot fully starve them.
func NewScheduler(cfg config.Config, workers int) *Scheduler {
	s := &Scheduler{stopCh: make(chan struct{})}
	if cfg.BulkReadsPerSecond > 0 {
		burst := cfg.BulkBurst
		if burst < 1 {
			burst = 1
		}
		s.bulkLimiter = rate.NewLimiter(rate.Limit(cfg.BulkReadsPerSecond), burst)
	}
	for l := 0; l < LaneCount; l++ {
		lane := Lane(l)
		s.queues[l] = make(chan *job, capacityFor(cfg.LaneQueueCapacities, lane))
		s.deadlines[l] = deadlineFor(cfg.LaneDeadlines, lane)
	}

	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	res := DefaultLaneReservations()
	general := workers - res.MetadataMin - res.WriteStructuralMin
	if general < 1 {
		general = 1
	}

	s.spawnWorkers(res.MetadataMin, []Lane{LaneControl, LaneMetadata})
	s.spawnWorkers(res.WriteStructuralMin, []Lane{LaneControl, LaneWriteStructural})
	s.spawnWorkers(general, []Lane{LaneControl, LaneMetadata, LaneReadForeground, LaneWriteStructural, LaneBulk})

	return s
}

func (s *Scheduler) spawnWorkers(n int, order []Lane) {
	for i := 0; i < n; i++ {
		s.wg.Add(1)
		go s.workerLoop(order)
	}
}

func (s *Scheduler) workerLoop(order []Lane) {
	defer s.wg.Done()
	for {
		j, ok := s.dequeue(order)
		if !ok {
			return
		}
		s.runJob(j)
	}
}

// dequeue scans order's lanes non-blocking, highest priority first; every
// 8th dispatch it rotates the scan to start one lane later, so a
// continuous flood on a higher lane cannot fully starve lower ones in
// this worker's assigned order. If every lane is empty it falls back to a
// blocking select across all of them (and the stop signal).
func (s *Scheduler) dequeue(order []Lane) (*job, bool) {
	n := len(order)
	if n == 0 {
		<-s.stopCh
		return nil, false
	}

	rotation := int(s.dispatchCounter.Add(1)/8) % n
	for i := 0; i < n; i++ {
		l := order[(i+rotation)%n]
		select {
		case j := <-s.queues[l]:
			return j, true
		default:
		}
	}

	// Lanes outside order keep a nil channel, which never becomes ready.
	var qs [LaneCount]chan *job
	for _, l := range order {
		qs[l] = s.queues[l]
	}
	select {
	case j := <-qs[LaneControl]:
		return j, true
	case j := <-qs[LaneMetadata]:
		return j, true
	case j := <-qs[LaneReadForeground]:
		return j, true
	case j := <-qs[LaneWriteStructural]:
		return j, true
	case j := <-qs[LaneBulk]:
		return j, true
	case <-s.stopCh:
		return nil, false
	}
}

func (s *Scheduler) runJob(j *job) {
	if j.state.HasReplied() {
		return
	}
	if j.lane == LaneBulk && s.bulkLimiter != nil {
		_ = s.bulkLimiter.Wait(context.Background())
	}
	v, err := j.fn()
	if !j.state.ClaimReply() {
		return
	}
	j.result <- jobResult{val: v, err: err}
}

// submit enqueues fn on lane's queue (rejecting immediately if full) and
// blocks until either a worker completes it or the lane's deadline
// elapses, whichever claims the reply first.
func (s *Scheduler) submit(lane Lane, fn func() (any, error)) (any, error) {
	j := &job{lane: lane, fn: fn, result: make(chan jobResult, 1), state: NewRequestState()}

	select {
	case s.queues[lane] <- j:
	default:
		return nil, oxerr.New(oxerr.KindResourceBusy, "scheduler.submit", lane.String(), nil)
	}

	timer := time.NewTimer(s.deadlines[lane])
	defer timer.Stop()

	select {
	case r := <-j.result:
		return r.val, r.err
	case <-timer.C:
		if j.state.ClaimReply() {
			j.state.MarkCancelled()
			return nil, oxerr.New(oxerr.KindInterrupted, "scheduler.submit", lane.String(), nil)
		}
		r := <-j.result
		return r.val, r.err
	}
}

// Submit runs fn on lane, type-asserting its result to T. Generic
// functions cannot be methods in Go, so this wraps Scheduler.submit.
func Submit[T any](s *Scheduler, lane Lane, fn func() (T, error)) (T, error) {
	var zero T
	v, err := s.submit(lane, func() (any, error) {
		return fn()
	})
	if err != nil {
		return zero, err
	}
	return v.(T), nil
}

// Stop signals every worker to exit once its current job (if any)
// finishes, and waits for them all to return.
func (s *Scheduler) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}
