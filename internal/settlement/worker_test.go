package settlement

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nanolink/nanolink/internal/logging"
)

func TestWorkerAcksSuccessAndRetriesFailure(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	var failOnce atomic.Bool
	failOnce.Store(true)
	handled := map[string]int{}
	h := HandlerFunc(func(_ context.Context, task Task) error {
		handled[task.ID()]++
		if task.TransactionID == "flaky" && failOnce.Swap(false) {
			return errors.New("database unavailable")
		}
		return nil
	})

	w := NewWorker(q, h, WorkerOptions{Visibility: time.Minute}, logging.Discard())
	w.now = func() time.Time { return now }

	q.Schedule(ctx, Task{Kind: KindProcessOnRamp, TransactionID: "ok"}, now)
	q.Schedule(ctx, Task{Kind: KindProcessOnRamp, TransactionID: "flaky"}, now)

	acked, err := w.ProcessDue(ctx)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if acked != 1 || q.Len() != 1 {
		t.Fatalf("expected one ack and one retry, got acked=%d queued=%d", acked, q.Len())
	}

	now = now.Add(2 * time.Second)
	acked, _ = w.ProcessDue(ctx)
	if acked != 1 || q.Len() != 0 {
		t.Fatalf("expected retried task to succeed, got acked=%d queued=%d", acked, q.Len())
	}
	if handled["process_on_ramp:flaky"] != 2 {
		t.Fatalf("expected flaky task to run twice, ran %d", handled["process_on_ramp:flaky"])
	}
}

func TestWorkerStartStop(t *testing.T) {
	q := NewMemoryQueue()
	done := make(chan struct{})
	h := HandlerFunc(func(context.Context, Task) error {
		close(done)
		return nil
	})
	w := NewWorker(q, h, WorkerOptions{PollInterval: 10 * time.Millisecond}, logging.Discard())
	q.Schedule(context.Background(), Task{Kind: KindProcessOffRamp, TransactionID: "tx"}, time.Now())

	w.Start(context.Background())
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not process task")
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := w.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestBackoffIsCapped(t *testing.T) {
	w := NewWorker(NewMemoryQueue(), HandlerFunc(func(context.Context, Task) error { return nil }), WorkerOptions{MaxBackoff: 8 * time.Second}, logging.Discard())
	if got := w.backoff(1); got != time.Second {
		t.Fatalf("attempt 1: %v", got)
	}
	if got := w.backoff(3); got != 4*time.Second {
		t.Fatalf("attempt 3: %v", got)
	}
	if got := w.backoff(10); got != 8*time.Second {
		t.Fatalf("attempt 10: %v", got)
	}
}

type countingSweeper struct {
	cutoff time.Time
	n      int
}

func (s *countingSweeper) RequeueStale(_ context.Context, before time.Time) (int, error) {
	s.cutoff = before
	return s.n, nil
}

func TestRecoveryRunOnce(t *testing.T) {
	s := &countingSweeper{n: 2}
	r := NewRecovery(s, "@every 1m", 5*time.Minute, logging.Discard())
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	if got := r.RunOnce(context.Background()); got != 2 {
		t.Fatalf("expected 2 requeued, got %d", got)
	}
	if !s.cutoff.Equal(now.Add(-5 * time.Minute)) {
		t.Fatalf("unexpected cutoff %v", s.cutoff)
	}
	if err := r.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	<-r.Stop().Done()
}
