package gateway

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/user/cloudclaw/internal/state"
	"github.com/user/cloudclaw/internal/types"
)

func newTestRun(sessions *state.Sessions, key types.SessionKey, text string) *Run {
	return NewRun(sessions.ResolveOrCreate(key), &types.InboundQuery{
		Source:     "test",
		SessionKey: key,
		Text:       text,
	})
}

func TestQueueConcurrency(t *testing.T) {
	queue := NewQueue(2)
	queue.Start(context.Background())
	defer queue.Stop()

	var running int32
	var maxSeen int32

	queue.SetProcessor(func(run *Run) error {
		current := atomic.AddInt32(&running, 1)
		for {
			old := atomic.LoadInt32(&maxSeen)
			if current <= old || atomic.CompareAndSwapInt32(&maxSeen, old, current) {
				break
			}
		}
		time.Sleep(50 * time.Millisecond)
		atomic.AddInt32(&running, -1)
		return nil
	})

	sessions := state.NewSessions()
	for i := 0; i < 5; i++ {
		key := types.SessionKey(fmt.Sprintf("session-%d", i))
		if err := queue.Enqueue(newTestRun(sessions, key, "hi")); err != nil {
			t.Fatal(err)
		}
	}

	time.Sleep(500 * time.Millisecond)

	if m := atomic.LoadInt32(&maxSeen); m > 2 {
		t.Errorf("expected max 2 concurrent, saw %d", m)
	}
}

func TestQueueProcessorCalled(t *testing.T) {
	queue := NewQueue(1)
	queue.Start(context.Background())
	defer queue.Stop()

	var processed int32
	queue.SetProcessor(func(run *Run) error {
		atomic.AddInt32(&processed, 1)
		return nil
	})

	sessions := state.NewSessions()
	run := newTestRun(sessions, "test-session", "hi")
	if err := queue.Enqueue(run); err != nil {
		t.Fatal(err)
	}

	time.Sleep(100 * time.Millisecond)

	if atomic.LoadInt32(&processed) != 1 {
		t.Errorf("expected 1 processed run, got %d", processed)
	}
	if run.Status != RunStatusComplete {
		t.Errorf("expected complete status, got %s", run.Status)
	}
	if run.Attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", run.Attempts)
	}
}

func TestQueueSameSessionOrdering(t *testing.T) {
	queue := NewQueue(4)
	queue.Start(context.Background())
	defer queue.Stop()

	var mu sync.Mutex
	var order []int
	done := make(chan struct{})

	queue.SetProcessor(func(run *Run) error {
		seq, _ := strconv.Atoi(run.Query.Text)
		mu.Lock()
		order = append(order, seq)
		n := len(order)
		mu.Unlock()
		if n == 3 {
			close(done)
		}
		return nil
	})

	sessions := state.NewSessions()
	for i := 0; i < 3; i++ {
		run := newTestRun(sessions, "same-session", strconv.Itoa(i))
		if err := queue.Enqueue(run); err != nil {
			t.Fatal(err)
		}
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for runs to process")
	}

	mu.Lock()
	defer mu.Unlock()
	for i, v := range order {
		if v != i {
			t.Errorf("expected order[%d] = %d, got %d", i, i, v)
		}
	}
}

func TestQueueFailureInvokesOnComplete(t *testing.T) {
	queue := NewQueue(1)
	queue.Start(context.Background())
	defer queue.Stop()

	queue.SetProcessor(func(run *Run) error {
		return fmt.Errorf("provider exploded")
	})

	got := make(chan string, 1)
	sessions := state.NewSessions()
	run := newTestRun(sessions, "failing", "hi")
	run.OnComplete = func(response string) { got <- response }

	if err := queue.Enqueue(run); err != nil {
		t.Fatal(err)
	}

	select {
	case response := <-got:
		if response == "" {
			t.Error("expected an apologetic fallback response")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for OnComplete")
	}
	if run.Status != RunStatusFailed {
		t.Errorf("expected failed status, got %s", run.Status)
	}
}

func TestQueueNoProcessor(t *testing.T) {
	queue := NewQueue(1)
	queue.Start(context.Background())
	defer queue.Stop()

	// No processor set; enqueue must not panic.
	sessions := state.NewSessions()
	if err := queue.Enqueue(newTestRun(sessions, "no-proc", "hi")); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
}

func TestGatewayHandleInbound(t *testing.T) {
	sessions := state.NewSessions()
	gw := New(sessions, 1)
	gw.Start(context.Background())
	defer gw.Stop()

	done := make(chan *Run, 1)
	gw.Queue.SetProcessor(func(run *Run) error {
		done <- run
		return nil
	})

	err := gw.HandleInbound(&types.InboundQuery{
		Source:     "web",
		SessionKey: "web:alice",
		Text:       "list buckets",
	})
	if err != nil {
		t.Fatal(err)
	}

	select {
	case run := <-done:
		if run.Session.Key != "web:alice" {
			t.Errorf("expected session key web:alice, got %s", run.Session.Key)
		}
		if run.Query.Text != "list buckets" {
			t.Errorf("unexpected query text %q", run.Query.Text)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for run")
	}

	if sessions.Len() != 1 {
		t.Errorf("expected 1 session created, got %d", sessions.Len())
	}
}
