package primary

import "context"

// EscalationService defines the primary port for the admin escalation queue.
type EscalationService interface {
	// ListQueue lists escalated issues no admin has claimed yet, oldest first.
	ListQueue(ctx context.Context, actorID string) ([]*Issue, error)

	// Claim assigns an escalated issue to the acting admin. At most one admin wins.
	Claim(ctx context.Context, req IssueActionRequest) (*Issue, error)
}
