// Package notify delivers issue notifications to the parties' channels.
// Every Notifier here is fire-and-forget: Emit never waits on delivery.
package notify

import (
	"context"
	"errors"
	"log/slog"

	"github.com/example/disputedesk/internal/ports/secondary"
)

// LogNotifier writes each event to a structured logger. It is the default
// channel when no webhook is configured.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier. A nil logger uses slog.Default().
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// Emit logs the event.
func (n *LogNotifier) Emit(ctx context.Context, event secondary.NotificationEvent) error {
	n.logger.InfoContext(ctx, "notification",
		"kind", event.Kind,
		"issue_id", event.IssueID,
		"occurred_at", event.OccurredAt,
	)
	return nil
}

// Multi fans an event out to several notifiers.
type Multi []secondary.Notifier

// Emit sends to every notifier and joins their errors.
func (m Multi) Emit(ctx context.Context, event secondary.NotificationEvent) error {
	var errs []error
	for _, n := range m {
		if err := n.Emit(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var (
	_ secondary.Notifier = (*LogNotifier)(nil)
	_ secondary.Notifier = Multi(nil)
)
