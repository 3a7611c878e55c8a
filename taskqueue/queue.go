// Package taskqueue serializes execution units onto a single dedicated
// worker. At most one unit executes at any instant, enqueue order defines
// execution order, and the in-flight unit can be forcibly interrupted without
// tearing down the worker.
package taskqueue

import (
	"context"
	"sync"

	"github.com/hunglin/spark-kernel/core/execute"
)

// Executor runs one unit against the shared engine. The context is cancelled
// when the unit is interrupted or the queue stops.
type Executor func(ctx context.Context, unit execute.Unit) execute.Result

// Handle resolves to a unit's result exactly once. If natural completion and
// an interrupt race, the first resolution wins and the other is discarded.
type Handle struct {
	done   chan struct{}
	once   sync.Once
	result execute.Result
}

func newHandle() *Handle {
	return &Handle{done: make(chan struct{})}
}

func (h *Handle) resolve(r execute.Result) {
	h.once.Do(func() {
		h.result = r
		close(h.done)
	})
}

// Wait blocks until the unit's result resolves or ctx is cancelled.
// Cancelling ctx abandons the wait only; the unit itself keeps executing.
func (h *Handle) Wait(ctx context.Context) (execute.Result, error) {
	select {
	case <-h.done:
		return h.result, nil
	case <-ctx.Done():
		return execute.Result{}, ctx.Err()
	}
}

type task struct {
	unit   execute.Unit
	handle *Handle
}

// Queue is a FIFO task serialization queue with one worker. Add and
// Interrupt are safe to call from any goroutine.
type Queue struct {
	exec Executor

	mu       sync.Mutex
	cond     *sync.Cond
	backlog  []task
	running  bool
	closing  bool
	inflight *task
	cancel   context.CancelFunc
	done     chan struct{}
}

// New creates a queue that hands units to exec. The queue is idle until
// Start is called.
func New(exec Executor) *Queue {
	q := &Queue{exec: exec}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Start allocates the worker. It fails if the queue is already running.
func (q *Queue) Start() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.running {
		return ErrAlreadyStarted
	}
	q.running = true
	q.closing = false
	q.done = make(chan struct{})
	go q.drain(q.done)
	return nil
}

// Add enqueues a unit and returns its handle. Enqueue order is execution
// order; there is no priority.
func (q *Queue) Add(unit execute.Unit) (*Handle, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.running {
		return nil, ErrNotStarted
	}
	h := newHandle()
	q.backlog = append(q.backlog, task{unit: unit, handle: h})
	q.cond.Signal()
	return h, nil
}

// Interrupt force-terminates the in-flight unit, if any, by severing its
// execution context. The unit's handle resolves as Aborted and the worker
// resumes draining queued units. A no-op when nothing is in flight.
func (q *Queue) Interrupt() {
	q.mu.Lock()
	t := q.inflight
	cancel := q.cancel
	q.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if t != nil {
		t.handle.resolve(execute.Result{Outcome: execute.Aborted})
	}
}

// Stop terminates the worker and drops all queued-but-unstarted units,
// resolving their handles as Aborted so no waiter hangs. Idempotent; safe to
// call on a queue that never started. Blocks until the worker exits.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return
	}
	q.running = false
	q.closing = true
	t := q.inflight
	cancel := q.cancel
	done := q.done
	q.cond.Signal()
	q.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if t != nil {
		t.handle.resolve(execute.Result{Outcome: execute.Aborted})
	}
	<-done
}

func (q *Queue) drain(done chan struct{}) {
	defer close(done)

	for {
		q.mu.Lock()
		for len(q.backlog) == 0 && !q.closing {
			q.cond.Wait()
		}
		if q.closing {
			dropped := q.backlog
			q.backlog = nil
			q.mu.Unlock()
			for _, t := range dropped {
				t.handle.resolve(execute.Result{Outcome: execute.Aborted})
			}
			return
		}

		t := q.backlog[0]
		q.backlog = q.backlog[1:]
		ctx, cancel := context.WithCancel(context.Background())
		q.inflight = &t
		q.cancel = cancel
		q.mu.Unlock()

		res := q.runOne(ctx, t.unit)

		q.mu.Lock()
		q.inflight = nil
		q.cancel = nil
		q.mu.Unlock()
		cancel()

		// No-op if an interrupt already resolved the handle.
		t.handle.resolve(res)
	}
}

// runOne contains engine-level fatal faults: a panic during execution maps to
// Aborted instead of killing the worker.
func (q *Queue) runOne(ctx context.Context, unit execute.Unit) (res execute.Result) {
	defer func() {
		if r := recover(); r != nil {
			res = execute.Result{Outcome: execute.Aborted}
		}
	}()
	return q.exec(ctx, unit)
}
