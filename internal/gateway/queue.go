package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/user/cloudclaw/internal/types"
)

// Queue manages per-session lanes with a global concurrency semaphore. Each
// session key gets its own FIFO channel so queries within a session are
// answered in order, while the semaphore caps total parallelism across
// sessions.
type Queue struct {
	lanes     map[types.SessionKey]chan *Run
	semaphore *semaphore.Weighted
	processor func(*Run) error
	active    atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewQueue creates a Queue allowing up to maxConcurrent runs in flight
// across all lanes.
func NewQueue(maxConcurrent int64) *Queue {
	return &Queue{
		lanes:     make(map[types.SessionKey]chan *Run),
		semaphore: semaphore.NewWeighted(maxConcurrent),
	}
}

// SetProcessor sets the function invoked for each dequeued Run. Must be set
// before Start.
func (q *Queue) SetProcessor(fn func(*Run) error) {
	q.processor = fn
}

// Start initialises the queue's context. Must be called before Enqueue.
func (q *Queue) Start(ctx context.Context) {
	q.ctx, q.cancel = context.WithCancel(ctx)
}

// Stop cancels the context, closes all lanes, and waits for in-flight
// processors to drain.
func (q *Queue) Stop() {
	if q.cancel != nil {
		q.cancel()
	}
	q.mu.Lock()
	for _, lane := range q.lanes {
		close(lane)
	}
	q.lanes = make(map[types.SessionKey]chan *Run)
	q.mu.Unlock()
	q.wg.Wait()
}

// Enqueue adds a Run to its session's lane, creating the lane and its
// goroutine on first use. Fails when the lane's buffer is full.
func (q *Queue) Enqueue(run *Run) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	key := run.Session.Key
	lane, exists := q.lanes[key]
	if !exists {
		lane = make(chan *Run, 100)
		q.lanes[key] = lane
		q.wg.Add(1)
		go q.processLane(lane)
	}

	select {
	case lane <- run:
		return nil
	default:
		return fmt.Errorf("queue full for session %s", key)
	}
}

// processLane drains one session lane. A semaphore slot is acquired before
// the processor runs synchronously, so ordering within the lane is strict
// FIFO and parallelism only happens across lanes.
func (q *Queue) processLane(lane chan *Run) {
	defer q.wg.Done()
	for {
		select {
		case run, ok := <-lane:
			if !ok {
				return
			}
			if err := q.semaphore.Acquire(q.ctx, 1); err != nil {
				return
			}
			q.process(run)
			q.semaphore.Release(1)
		case <-q.ctx.Done():
			return
		}
	}
}

func (q *Queue) process(run *Run) {
	if q.processor == nil {
		return
	}
	q.active.Add(1)
	defer q.active.Add(-1)

	run.Ctx = q.ctx
	run.Begin()
	err := q.processor(run)
	run.Finish(err)
	if err != nil {
		slog.Error("run failed",
			"run_id", string(run.ID),
			"session_key", string(run.Session.Key),
			"error", err)
		if run.OnComplete != nil {
			run.OnComplete("Sorry, something went wrong processing your request.")
		}
	}
}

// WaitIdle blocks until no runs are being processed or the timeout expires.
// Returns true when idle.
func (q *Queue) WaitIdle(timeout time.Duration) bool {
	deadline := time.After(timeout)
	for {
		if q.active.Load() == 0 {
			return true
		}
		select {
		case <-deadline:
			return false
		case <-time.After(50 * time.Millisecond):
		}
	}
}
