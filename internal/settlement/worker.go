package settlement

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Handler executes one settlement task. Returning an error leaves the task
// queued for another attempt, so handlers must tolerate redelivery.
type Handler interface {
	Handle(ctx context.Context, task Task) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, task Task) error

func (f HandlerFunc) Handle(ctx context.Context, task Task) error { return f(ctx, task) }

// WorkerOptions tune the polling loop.
type WorkerOptions struct {
	PollInterval time.Duration
	Visibility   time.Duration
	BatchSize    int
	MaxBackoff   time.Duration
}

// Worker polls the queue and runs due tasks.
type Worker struct {
	queue   Queue
	handler Handler
	opts    WorkerOptions
	logger  *slog.Logger
	now     func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewWorker builds a worker with defaults for unset options.
func NewWorker(queue Queue, handler Handler, opts WorkerOptions, logger *slog.Logger) *Worker {
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	if opts.Visibility <= 0 {
		opts.Visibility = 30 * time.Second
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 10
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = time.Minute
	}
	return &Worker{queue: queue, handler: handler, opts: opts, logger: logger, now: time.Now}
}

// Start runs the polling loop in the background until Stop.
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	go func() {
		defer close(w.done)
		w.Run(ctx)
	}()
}

// Stop cancels the loop and waits for the in-flight batch, bounded by ctx.
func (w *Worker) Stop(ctx context.Context) error {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel = nil
	w.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run polls until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()
	for {
		if _, err := w.ProcessDue(ctx); err != nil && ctx.Err() == nil {
			w.logger.Error("settlement poll failed", slog.Any("error", err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// ProcessDue claims one batch of due tasks and runs them. It returns how many
// tasks were acknowledged.
func (w *Worker) ProcessDue(ctx context.Context) (int, error) {
	tasks, err := w.queue.Claim(ctx, w.now(), w.opts.BatchSize, w.opts.Visibility)
	if err != nil {
		return 0, err
	}
	acked := 0
	for _, task := range tasks {
		if ctx.Err() != nil {
			break
		}
		if w.runOne(ctx, task) {
			acked++
		}
	}
	return acked, nil
}

func (w *Worker) runOne(ctx context.Context, task Task) bool {
	logger := w.logger.With(slog.String("task", task.Kind), slog.String("transaction_id", task.TransactionID), slog.Int("attempt", task.Attempt))
	if err := w.handler.Handle(ctx, task); err != nil {
		task.Attempt++
		at := w.now().Add(w.backoff(task.Attempt))
		logger.Warn("settlement task failed, retrying", slog.Any("error", err), slog.Time("retry_at", at))
		if rerr := w.queue.Retry(ctx, task, at); rerr != nil {
			logger.Error("reschedule settlement task failed", slog.Any("error", rerr))
		}
		return false
	}
	if err := w.queue.Ack(ctx, task); err != nil {
		logger.Error("ack settlement task failed", slog.Any("error", err))
		return false
	}
	return true
}

func (w *Worker) backoff(attempt int) time.Duration {
	d := time.Second
	for i := 1; i < attempt && d < w.opts.MaxBackoff; i++ {
		d *= 2
	}
	if d > w.opts.MaxBackoff {
		d = w.opts.MaxBackoff
	}
	return d
}
