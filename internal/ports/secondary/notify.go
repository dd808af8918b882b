package secondary

import (
	"context"
	"time"
)

// Notifier defines the secondary port for informing parties of transitions.
// Delivery is fire-and-forget: Emit must not block on delivery, and the
// returned error only reports that the event could not be queued.
type Notifier interface {
	Emit(ctx context.Context, event NotificationEvent) error
}

// NotificationEvent describes a transition that parties should hear about.
type NotificationEvent struct {
	Kind       string    `json:"event"`
	IssueID    string    `json:"issue_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// TransitionObserver receives the outcome of every workflow operation.
type TransitionObserver interface {
	ObserveTransition(op, outcome string)
}
