package taskqueue_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hunglin/spark-kernel/core/execute"
	"github.com/hunglin/spark-kernel/taskqueue"
)

// echoExecutor resolves every unit as Success with the unit's code as output.
func echoExecutor(ctx context.Context, unit execute.Unit) execute.Result {
	return execute.Result{Outcome: execute.Success, Output: unit.Code}
}

func startedQueue(t *testing.T, exec taskqueue.Executor) *taskqueue.Queue {
	t.Helper()
	q := taskqueue.New(exec)
	if err := q.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(q.Stop)
	return q
}

func TestQueue_StartTwice(t *testing.T) {
	q := startedQueue(t, echoExecutor)

	if err := q.Start(); !errors.Is(err, taskqueue.ErrAlreadyStarted) {
		t.Errorf("second Start returned %v, want ErrAlreadyStarted", err)
	}
}

func TestQueue_AddBeforeStart(t *testing.T) {
	q := taskqueue.New(echoExecutor)

	if _, err := q.Add(execute.Unit{Code: "1+1"}); !errors.Is(err, taskqueue.ErrNotStarted) {
		t.Errorf("Add returned %v, want ErrNotStarted", err)
	}
}

func TestQueue_StopWithoutStart(t *testing.T) {
	q := taskqueue.New(echoExecutor)
	q.Stop()
	q.Stop()
}

func TestQueue_ExecutionOrderEqualsEnqueueOrder(t *testing.T) {
	var mu sync.Mutex
	var executed []string
	q := startedQueue(t, func(ctx context.Context, unit execute.Unit) execute.Result {
		mu.Lock()
		executed = append(executed, unit.Code)
		mu.Unlock()
		return execute.Result{Outcome: execute.Success}
	})

	const n = 50
	handles := make([]*taskqueue.Handle, n)
	for i := 0; i < n; i++ {
		h, err := q.Add(execute.Unit{Code: fmt.Sprintf("unit-%d", i)})
		if err != nil {
			t.Fatalf("Add failed: %v", err)
		}
		handles[i] = h
	}

	for _, h := range handles {
		if _, err := h.Wait(context.Background()); err != nil {
			t.Fatalf("Wait failed: %v", err)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if len(executed) != n {
		t.Fatalf("executed %d units, want %d", len(executed), n)
	}
	for i, code := range executed {
		if want := fmt.Sprintf("unit-%d", i); code != want {
			t.Errorf("position %d executed %q, want %q", i, code, want)
		}
	}
}

func TestQueue_AtMostOneInFlight(t *testing.T) {
	var inflight, peak atomic.Int32
	q := startedQueue(t, func(ctx context.Context, unit execute.Unit) execute.Result {
		cur := inflight.Add(1)
		for {
			old := peak.Load()
			if cur <= old || peak.CompareAndSwap(old, cur) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		inflight.Add(-1)
		return execute.Result{Outcome: execute.Success}
	})

	var wg sync.WaitGroup
	var handles sync.Map
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h, err := q.Add(execute.Unit{Code: fmt.Sprintf("unit-%d", i)})
			if err != nil {
				t.Errorf("Add failed: %v", err)
				return
			}
			handles.Store(i, h)
		}(i)
	}
	wg.Wait()

	handles.Range(func(_, v any) bool {
		if _, err := v.(*taskqueue.Handle).Wait(context.Background()); err != nil {
			t.Errorf("Wait failed: %v", err)
		}
		return true
	})

	if got := peak.Load(); got != 1 {
		t.Errorf("peak in-flight units = %d, want 1", got)
	}
}

func TestQueue_InterruptInFlight(t *testing.T) {
	started := make(chan struct{})
	q := startedQueue(t, func(ctx context.Context, unit execute.Unit) execute.Result {
		if unit.Code == "block" {
			close(started)
			<-ctx.Done()
			return execute.Result{Outcome: execute.Success, Output: "finished anyway"}
		}
		return execute.Result{Outcome: execute.Success, Output: unit.Code}
	})

	blocked, err := q.Add(execute.Unit{Code: "block"})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	<-started
	q.Interrupt()

	res, err := blocked.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if res.Outcome != execute.Aborted {
		t.Errorf("interrupted unit resolved %v, want Aborted", res.Outcome)
	}

	// The worker resumes draining subsequent units.
	next, err := q.Add(execute.Unit{Code: "after"})
	if err != nil {
		t.Fatalf("Add after interrupt failed: %v", err)
	}
	res, err = next.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if res.Outcome != execute.Success || res.Output != "after" {
		t.Errorf("got (%v, %q), want (Success, %q)", res.Outcome, res.Output, "after")
	}
}

func TestQueue_InterruptIdleIsNoOp(t *testing.T) {
	q := startedQueue(t, echoExecutor)

	q.Interrupt()

	h, err := q.Add(execute.Unit{Code: "1+1"})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	res, err := h.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if res.Outcome != execute.Success {
		t.Errorf("got %v, want Success", res.Outcome)
	}
}

func TestQueue_StopDropsQueuedUnits(t *testing.T) {
	started := make(chan struct{})
	q := taskqueue.New(func(ctx context.Context, unit execute.Unit) execute.Result {
		close(started)
		<-ctx.Done()
		return execute.Result{Outcome: execute.Success}
	})
	if err := q.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	first, err := q.Add(execute.Unit{Code: "block"})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	<-started

	queued := make([]*taskqueue.Handle, 3)
	for i := range queued {
		h, err := q.Add(execute.Unit{Code: "queued"})
		if err != nil {
			t.Fatalf("Add failed: %v", err)
		}
		queued[i] = h
	}

	q.Stop()

	res, err := first.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if res.Outcome != execute.Aborted {
		t.Errorf("in-flight unit resolved %v, want Aborted", res.Outcome)
	}
	for i, h := range queued {
		res, err := h.Wait(context.Background())
		if err != nil {
			t.Fatalf("Wait on queued handle %d failed: %v", i, err)
		}
		if res.Outcome != execute.Aborted {
			t.Errorf("queued unit %d resolved %v, want Aborted", i, res.Outcome)
		}
	}
}

func TestQueue_RestartAfterStop(t *testing.T) {
	q := taskqueue.New(echoExecutor)
	if err := q.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	q.Stop()

	if err := q.Start(); err != nil {
		t.Fatalf("restart failed: %v", err)
	}
	defer q.Stop()

	h, err := q.Add(execute.Unit{Code: "1+1"})
	if err != nil {
		t.Fatalf("Add after restart failed: %v", err)
	}
	res, err := h.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if res.Outcome != execute.Success {
		t.Errorf("got %v, want Success", res.Outcome)
	}
}

func TestQueue_ExecutorPanicMapsToAborted(t *testing.T) {
	q := startedQueue(t, func(ctx context.Context, unit execute.Unit) execute.Result {
		if unit.Code == "boom" {
			panic("engine fault")
		}
		return execute.Result{Outcome: execute.Success}
	})

	h, err := q.Add(execute.Unit{Code: "boom"})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	res, err := h.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if res.Outcome != execute.Aborted {
		t.Errorf("panicking unit resolved %v, want Aborted", res.Outcome)
	}

	// The worker survives the fault.
	h, err = q.Add(execute.Unit{Code: "after"})
	if err != nil {
		t.Fatalf("Add after panic failed: %v", err)
	}
	if res, _ := h.Wait(context.Background()); res.Outcome != execute.Success {
		t.Errorf("got %v, want Success", res.Outcome)
	}
}

func TestHandle_WaitIsCancellable(t *testing.T) {
	q := startedQueue(t, func(ctx context.Context, unit execute.Unit) execute.Result {
		<-ctx.Done()
		return execute.Result{Outcome: execute.Success}
	})

	h, err := q.Add(execute.Unit{Code: "block"})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := h.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait returned %v, want DeadlineExceeded", err)
	}
}
