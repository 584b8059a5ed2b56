package notification

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Event kinds double as AMQP routing keys.
const (
	KindTransactionCompleted = "transaction.completed"
	KindTransactionFailed    = "transaction.failed"
	KindKYCUpdated           = "user.kyc_updated"
)

// Event describes something a user or a downstream system should hear about.
type Event struct {
	Kind       string         `json:"kind"`
	UserID     string         `json:"user_id"`
	Subject    string         `json:"subject"`
	Data       map[string]any `json:"data,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Notifier delivers events to downstream systems.
type Notifier interface {
	Send(ctx context.Context, event Event) error
}

// LoggerNotifier writes events to the structured logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the event to the logger.
func (n *LoggerNotifier) Send(_ context.Context, event Event) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification",
		slog.String("kind", event.Kind),
		slog.String("user_id", event.UserID),
		slog.String("subject", event.Subject),
	)
	return nil
}

// Fanout sends each event to every notifier and joins their errors.
type Fanout []Notifier

// Send delivers to all notifiers even when some fail.
func (f Fanout) Send(ctx context.Context, event Event) error {
	var errs []error
	for _, n := range f {
		if n == nil {
			continue
		}
		if err := n.Send(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
