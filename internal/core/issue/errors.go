package issue

import (
	"errors"
	"fmt"
)

// Sentinel kinds. Every typed error below unwraps to exactly one of these,
// so adapters can classify failures with errors.Is.
var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidTransition   = errors.New("invalid transition")
	ErrUnauthorized        = errors.New("not authorized")
	ErrValidation          = errors.New("validation failed")
	ErrConcurrencyConflict = errors.New("concurrency conflict")
	ErrClosed              = errors.New("issue is closed")
	ErrAlreadyClaimed      = errors.New("escalation already claimed")
)

// NotFoundError reports a missing issue or message.
type NotFoundError struct {
	Entity string // "issue" or "message"
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// InvalidTransitionError reports a guard violation given the issue's current status.
type InvalidTransitionError struct {
	Op     Op
	Status Status
	Reason string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s: %s (current status: %s)", e.Op, e.Reason, e.Status)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

// AuthorizationError reports an actor whose role or identity is not permitted.
type AuthorizationError struct {
	Op      Op
	ActorID string
	Role    Role
	Reason  string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("%s %s may not %s: %s", e.Role, e.ActorID, e.Op, e.Reason)
}

func (e *AuthorizationError) Unwrap() error { return ErrUnauthorized }

// ValidationError reports malformed input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// ConcurrencyConflictError reports a lost serialization race. Callers may
// reload the issue and reapply the operation.
type ConcurrencyConflictError struct {
	IssueID         string
	ExpectedVersion int64
}

func (e *ConcurrencyConflictError) Error() string {
	return fmt.Sprintf("issue %s was modified concurrently (expected version %d)", e.IssueID, e.ExpectedVersion)
}

func (e *ConcurrencyConflictError) Unwrap() error { return ErrConcurrencyConflict }

// ClosedIssueError reports a mutation attempted on a terminal issue.
type ClosedIssueError struct {
	Op      Op
	IssueID string
	Status  Status
}

func (e *ClosedIssueError) Error() string {
	return fmt.Sprintf("cannot %s: issue %s is %s", e.Op, e.IssueID, e.Status)
}

func (e *ClosedIssueError) Unwrap() error { return ErrClosed }

// AlreadyClaimedError reports the loser of an escalation claim race.
type AlreadyClaimedError struct {
	IssueID   string
	ClaimedBy string
}

func (e *AlreadyClaimedError) Error() string {
	if e.ClaimedBy == "" {
		return fmt.Sprintf("escalation for issue %s is already claimed", e.IssueID)
	}
	return fmt.Sprintf("escalation for issue %s is already claimed by %s", e.IssueID, e.ClaimedBy)
}

func (e *AlreadyClaimedError) Unwrap() error { return ErrAlreadyClaimed }

// IsRetryable reports whether the caller may safely reload and retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict)
}
