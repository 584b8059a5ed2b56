package settlement

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Sweeper re-enqueues work for transactions that stopped moving.
type Sweeper interface {
	RequeueStale(ctx context.Context, updatedBefore time.Time) (int, error)
}

// Recovery runs the stale-transaction sweep on a cron schedule.
type Recovery struct {
	cron       *cron.Cron
	sweeper    Sweeper
	schedule   string
	staleAfter time.Duration
	timeout    time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

// NewRecovery builds the sweep job. Transactions not updated for staleAfter
// are handed back to the queue.
func NewRecovery(sweeper Sweeper, schedule string, staleAfter time.Duration, logger *slog.Logger) *Recovery {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)))
	if staleAfter <= 0 {
		staleAfter = 2 * time.Minute
	}
	return &Recovery{
		cron:       c,
		sweeper:    sweeper,
		schedule:   schedule,
		staleAfter: staleAfter,
		timeout:    30 * time.Second,
		logger:     logger,
		now:        time.Now,
	}
}

// Start registers the sweep and starts the scheduler.
func (r *Recovery) Start() error {
	if _, err := r.cron.AddFunc(r.schedule, func() { r.RunOnce(context.Background()) }); err != nil {
		return err
	}
	r.logger.Info("scheduled settlement recovery", slog.String("schedule", r.schedule), slog.Duration("stale_after", r.staleAfter))
	r.cron.Start()
	return nil
}

// Stop stops the scheduler; the returned context is done once running jobs finish.
func (r *Recovery) Stop() context.Context {
	return r.cron.Stop()
}

// RunOnce performs a single sweep.
func (r *Recovery) RunOnce(ctx context.Context) int {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	n, err := r.sweeper.RequeueStale(ctx, r.now().Add(-r.staleAfter))
	if err != nil {
		r.logger.Error("settlement recovery failed", slog.Any("error", err))
		return n
	}
	if n > 0 {
		r.logger.Info("settlement recovery requeued transactions", slog.Int("count", n))
	}
	return n
}
