package settlement

import (
	"context"
	"time"
)

// Task kinds.
const (
	KindProcessOnRamp  = "process_on_ramp"
	KindCompleteOnRamp = "complete_on_ramp"
	KindProcessOffRamp = "process_off_ramp"
)

// Task is one step of a transaction's settlement. A task is identified by its
// kind and transaction id, so scheduling the same step twice keeps one entry.
type Task struct {
	Kind          string    `json:"kind"`
	TransactionID string    `json:"transaction_id"`
	Attempt       int       `json:"attempt"`
	EnqueuedAt    time.Time `json:"enqueued_at"`
}

// ID is the queue key of the task.
func (t Task) ID() string {
	return t.Kind + ":" + t.TransactionID
}

// Queue is a durable delayed task queue with at-least-once delivery. A claimed
// task becomes visible again after the visibility timeout unless acknowledged.
type Queue interface {
	// Schedule makes the task due at the given time. Scheduling a task that is
	// already queued keeps the earlier entry.
	Schedule(ctx context.Context, task Task, at time.Time) error
	// Claim leases up to limit due tasks for the visibility timeout.
	Claim(ctx context.Context, now time.Time, limit int, visibility time.Duration) ([]Task, error)
	// Retry reschedules a claimed task.
	Retry(ctx context.Context, task Task, at time.Time) error
	// Ack removes a finished task.
	Ack(ctx context.Context, task Task) error
}
