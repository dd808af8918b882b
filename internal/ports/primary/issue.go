// Package primary defines the primary ports: the service interfaces driven by
// the CLI and HTTP adapters, plus their request and response types.
package primary

import (
	"context"
	"time"
)

// IssueService defines the primary port for issue lifecycle operations.
// Every operation names the acting party explicitly; services never read ambient identity.
type IssueService interface {
	// OpenIssue creates a new issue on behalf of the ordering customer.
	OpenIssue(ctx context.Context, req OpenIssueRequest) (*Issue, error)

	// GetIssue returns an issue and its full message thread.
	GetIssue(ctx context.Context, issueID, actorID string) (*IssueDetail, error)

	// ListIssues lists issues visible to the actor.
	ListIssues(ctx context.Context, actorID string, filters IssueFilters) ([]*Issue, error)

	// BeginReview moves an issue into supplier review.
	BeginReview(ctx context.Context, req IssueActionRequest) (*Issue, error)

	// OfferResolution proposes a remedy to the customer.
	OfferResolution(ctx context.Context, req OfferResolutionRequest) (*Issue, error)

	// AcceptResolution commits the current offer and resolves the issue.
	AcceptResolution(ctx context.Context, req IssueActionRequest) (*Issue, error)

	// DeclineResolution rejects the current offer and returns the issue to review.
	DeclineResolution(ctx context.Context, req IssueActionRequest) (*Issue, error)

	// Escalate flags the issue for platform admin attention.
	Escalate(ctx context.Context, req IssueActionRequest) (*Issue, error)

	// ForceClose administratively closes the issue.
	ForceClose(ctx context.Context, req IssueActionRequest) (*Issue, error)
}

// Issue represents an issue at the port boundary.
type Issue struct {
	ID                   string     `json:"issue_id"`
	OrderID              string     `json:"order_id"`
	CustomerID           string     `json:"customer_id"`
	SupplierID           string     `json:"supplier_id"`
	IssueType            string     `json:"issue_type"`
	AffectedItems        []string   `json:"affected_items"`
	Status               string     `json:"status"`
	Description          string     `json:"description"`
	Evidence             []string   `json:"evidence"`
	DesiredResolution    string     `json:"desired_resolution"`
	ResolutionOffered    string     `json:"resolution_offered,omitempty"` // empty when no offer
	ResolutionAmount     *Money     `json:"resolution_amount,omitempty"`
	ResolutionAccepted   *bool      `json:"resolution_accepted,omitempty"`
	ResolutionAcceptedAt *time.Time `json:"resolution_accepted_date,omitempty"`
	EscalatedToAdmin     bool       `json:"escalated_to_admin"`
	AssignedAdminID      string     `json:"assigned_admin_id,omitempty"`
	OpenedAt             time.Time  `json:"opened_date"`
	ResolvedAt           *time.Time `json:"resolved_date,omitempty"`
	UpdatedAt            time.Time  `json:"updated_at"`
	Version              int64      `json:"version"`
}

// Money is an amount in minor units.
type Money struct {
	Currency    string `json:"currency"`
	AmountMinor int64  `json:"amount_minor"`
	Display     string `json:"display,omitempty"`
}

// IssueDetail is an issue together with its ordered thread.
type IssueDetail struct {
	Issue    *Issue     `json:"issue"`
	Messages []*Message `json:"messages"`
}

// OpenIssueRequest contains the intake data for a new issue.
type OpenIssueRequest struct {
	ActorID           string   `json:"-"`
	OrderID           string   `json:"order_id"`
	SupplierID        string   `json:"supplier_id"`
	IssueType         string   `json:"issue_type"`
	AffectedItems     []string `json:"affected_items"`
	Description       string   `json:"description"`
	Evidence          []string `json:"evidence"`
	DesiredResolution string   `json:"desired_resolution"`
}

// IssueActionRequest names an issue and the actor operating on it.
type IssueActionRequest struct {
	IssueID string
	ActorID string
}

// OfferResolutionRequest contains the parameters for offering a resolution.
type OfferResolutionRequest struct {
	IssueID        string `json:"-"`
	ActorID        string `json:"-"`
	ResolutionType string `json:"resolution_type"`
	Amount         *Money `json:"amount,omitempty"` // optional
}

// IssueFilters contains filter options for listing issues.
type IssueFilters struct {
	CustomerID string
	SupplierID string
	Status     string
	Escalated  *bool
	Limit      int
}
