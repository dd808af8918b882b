// Package secondary defines the secondary ports (driven adapters) for the application.
// These are the interfaces through which the application drives external systems.
package secondary

import (
	"context"
	"time"

	"github.com/example/disputedesk/internal/core/issue"
)

// IssueRepository defines the secondary port for issue and thread persistence.
// Implementations report missing rows as *issue.NotFoundError and lost races as
// *issue.ConcurrencyConflictError or *issue.AlreadyClaimedError.
type IssueRepository interface {
	// CreateIssue persists a new issue.
	CreateIssue(ctx context.Context, issue *IssueRecord) error

	// GetIssue retrieves an issue by its ID.
	GetIssue(ctx context.Context, id string) (*IssueRecord, error)

	// ListIssues retrieves issues matching the given filters, newest first.
	ListIssues(ctx context.Context, filters IssueFilters) ([]*IssueRecord, error)

	// SaveIssue overwrites an issue if its stored version still equals expectedVersion,
	// appending any messages in the same atomic step. issue.Version carries the new version.
	SaveIssue(ctx context.Context, issue *IssueRecord, expectedVersion int64, messages []*MessageRecord) error

	// ClaimEscalation assigns adminID to an escalated, unclaimed, non-terminal issue
	// as a single compare-and-set, appending message on success.
	ClaimEscalation(ctx context.Context, issueID, adminID string, at time.Time, message *MessageRecord) error

	// ListEscalationQueue retrieves escalated issues with no assigned admin, oldest first.
	ListEscalationQueue(ctx context.Context, limit int) ([]*IssueRecord, error)

	// AppendMessage appends a party message and assigns its per-issue sequence number.
	// The issue's status is re-read in the same transaction; a resolved or closed
	// issue rejects the append with issue.ClosedIssueError.
	AppendMessage(ctx context.Context, message *MessageRecord) error

	// ListMessages retrieves an issue's messages ordered by timestamp, then sequence.
	ListMessages(ctx context.Context, issueID string) ([]*MessageRecord, error)

	// Ping reports whether the store is reachable.
	Ping(ctx context.Context) error
}

// IssueRecord represents an issue as stored in persistence.
type IssueRecord struct {
	ID                   string
	OrderID              string
	CustomerID           string
	SupplierID           string
	IssueType            string
	AffectedItems        []string
	Status               string // open, under_review, awaiting_response, resolved, closed
	Description          string
	Evidence             []string
	DesiredResolution    string
	ResolutionOffered    string // Empty string means null
	ResolutionAmount     *int64 // minor units, nil means null
	ResolutionCurrency   string // Empty string means null
	ResolutionAccepted   *bool
	ResolutionAcceptedAt *time.Time
	EscalatedToAdmin     bool
	AssignedAdminID      string // Empty string means null
	OpenedAt             time.Time
	ResolvedAt           *time.Time
	UpdatedAt            time.Time
	Version              int64
}

// IssueFilters contains filter options for querying issues.
type IssueFilters struct {
	CustomerID string
	SupplierID string
	Status     string
	Escalated  *bool
	Limit      int
}

// MessageRecord represents a thread message as stored in persistence.
type MessageRecord struct {
	ID          string
	IssueID     string
	SenderID    string
	SenderType  string // customer, supplier, admin, system
	Text        string
	Attachments []string
	Timestamp   time.Time
	Seq         int64 // assigned by the repository on append
}

// ClaimRejection explains why a conditional claim matched no row, given the row as it now stands.
func ClaimRejection(current *IssueRecord) error {
	switch {
	case current.Status == string(issue.StatusResolved) || current.Status == string(issue.StatusClosed):
		return &issue.ClosedIssueError{Op: issue.OpClaim, IssueID: current.ID, Status: issue.Status(current.Status)}
	case current.AssignedAdminID != "":
		return &issue.AlreadyClaimedError{IssueID: current.ID, ClaimedBy: current.AssignedAdminID}
	case !current.EscalatedToAdmin:
		return &issue.InvalidTransitionError{Op: issue.OpClaim, Status: issue.Status(current.Status), Reason: "issue has not been escalated"}
	default:
		return &issue.ConcurrencyConflictError{IssueID: current.ID, ExpectedVersion: current.Version}
	}
}

// MessageRejection returns the error for appending a party message to an issue
// whose stored status is status, or nil when the append may proceed.
func MessageRejection(issueID, status string) error {
	if issue.Status(status).Terminal() {
		return &issue.ClosedIssueError{Op: issue.OpAddMessage, IssueID: issueID, Status: issue.Status(status)}
	}
	return nil
}
