package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/example/disputedesk/internal/core/issue"
	"github.com/example/disputedesk/internal/ports/primary"
)

// mockIssueService implements primary.IssueService for testing
type mockIssueService struct {
	getIssueFn   func(ctx context.Context, issueID, actorID string) (*primary.IssueDetail, error)
	listIssuesFn func(ctx context.Context, actorID string, filters primary.IssueFilters) ([]*primary.Issue, error)
}

func (m *mockIssueService) OpenIssue(ctx context.Context, req primary.OpenIssueRequest) (*primary.Issue, error) {
	return &primary.Issue{ID: "ISS-001", OrderID: req.OrderID, IssueType: req.IssueType, SupplierID: req.SupplierID, DesiredResolution: req.DesiredResolution}, nil
}

func (m *mockIssueService) GetIssue(ctx context.Context, issueID, actorID string) (*primary.IssueDetail, error) {
	return m.getIssueFn(ctx, issueID, actorID)
}

func (m *mockIssueService) ListIssues(ctx context.Context, actorID string, filters primary.IssueFilters) ([]*primary.Issue, error) {
	if m.listIssuesFn != nil {
		return m.listIssuesFn(ctx, actorID, filters)
	}
	return []*primary.Issue{}, nil
}

func (m *mockIssueService) BeginReview(ctx context.Context, req primary.IssueActionRequest) (*primary.Issue, error) {
	return nil, errors.New("not implemented in adapter")
}

func (m *mockIssueService) OfferResolution(ctx context.Context, req primary.OfferResolutionRequest) (*primary.Issue, error) {
	return nil, errors.New("not implemented in adapter")
}

func (m *mockIssueService) AcceptResolution(ctx context.Context, req primary.IssueActionRequest) (*primary.Issue, error) {
	return nil, errors.New("not implemented in adapter")
}

func (m *mockIssueService) DeclineResolution(ctx context.Context, req primary.IssueActionRequest) (*primary.Issue, error) {
	return nil, errors.New("not implemented in adapter")
}

func (m *mockIssueService) Escalate(ctx context.Context, req primary.IssueActionRequest) (*primary.Issue, error) {
	return nil, errors.New("not implemented in adapter")
}

func (m *mockIssueService) ForceClose(ctx context.Context, req primary.IssueActionRequest) (*primary.Issue, error) {
	return nil, errors.New("not implemented in adapter")
}

type mockEscalationService struct {
	queue []*primary.Issue
}

func (m *mockEscalationService) ListQueue(ctx context.Context, actorID string) ([]*primary.Issue, error) {
	return m.queue, nil
}

func (m *mockEscalationService) Claim(ctx context.Context, req primary.IssueActionRequest) (*primary.Issue, error) {
	return nil, errors.New("not implemented in adapter")
}

func newTestAdapter(issues primary.IssueService, escalations primary.EscalationService) (*IssueAdapter, *bytes.Buffer) {
	var out bytes.Buffer
	a := NewIssueAdapter(issues, nil, escalations, &out)
	a.newBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	return a, &out
}

func TestIssueAdapter_ListEmpty(t *testing.T) {
	adapter, out := newTestAdapter(&mockIssueService{}, nil)

	issues, err := adapter.List(context.Background(), "CUST-001", primary.IssueFilters{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(issues) != 0 {
		t.Errorf("expected 0 issues, got %d", len(issues))
	}
	if !strings.Contains(out.String(), "No issues found.") {
		t.Errorf("expected empty message, got: %s", out.String())
	}
}

func TestIssueAdapter_ListRendersTable(t *testing.T) {
	var gotActor string
	service := &mockIssueService{
		listIssuesFn: func(ctx context.Context, actorID string, filters primary.IssueFilters) ([]*primary.Issue, error) {
			gotActor = actorID
			return []*primary.Issue{
				{ID: "ISS-001", OrderID: "ORD-1", IssueType: "damaged_item", Status: "open", OpenedAt: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)},
				{ID: "ISS-002", OrderID: "ORD-2", IssueType: "missing_item", Status: "resolved", EscalatedToAdmin: true, AssignedAdminID: "ADM-001"},
			}, nil
		},
	}
	adapter, out := newTestAdapter(service, nil)

	if _, err := adapter.List(context.Background(), "SUPP-001", primary.IssueFilters{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotActor != "SUPP-001" {
		t.Errorf("expected actor SUPP-001, got %q", gotActor)
	}
	for _, want := range []string{"ISS-001", "ORD-2", "ADM-001", "2026-05-01"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("expected output to contain %q, got: %s", want, out.String())
		}
	}
}

func TestIssueAdapter_ShowPrintsThread(t *testing.T) {
	service := &mockIssueService{
		getIssueFn: func(ctx context.Context, issueID, actorID string) (*primary.IssueDetail, error) {
			return &primary.IssueDetail{
				Issue: &primary.Issue{
					ID:                issueID,
					OrderID:           "ORD-1",
					Status:            "awaiting_response",
					ResolutionOffered: "partial_refund",
					ResolutionAmount:  &primary.Money{Currency: "USD", AmountMinor: 1500, Display: "15.00 USD"},
				},
				Messages: []*primary.Message{
					{SenderID: "CUST-001", SenderType: "customer", Text: "It broke", Attachments: []string{"photo.jpg"}},
					{SenderType: "system", Text: "Supplier Acme offered resolution: partial_refund"},
				},
			}, nil
		},
	}
	adapter, out := newTestAdapter(service, nil)

	if _, err := adapter.Show(context.Background(), "ISS-001", "CUST-001"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"Issue: ISS-001", "partial_refund (15.00 USD)", "Thread (2)", "It broke", "photo.jpg"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("expected output to contain %q, got: %s", want, out.String())
		}
	}
}

func TestIssueAdapter_ShowPropagatesError(t *testing.T) {
	service := &mockIssueService{
		getIssueFn: func(ctx context.Context, issueID, actorID string) (*primary.IssueDetail, error) {
			return nil, &issue.NotFoundError{Entity: "issue", ID: issueID}
		},
	}
	adapter, _ := newTestAdapter(service, nil)

	_, err := adapter.Show(context.Background(), "ISS-404", "CUST-001")
	if !errors.Is(err, issue.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestIssueAdapter_QueueEmpty(t *testing.T) {
	adapter, out := newTestAdapter(&mockIssueService{}, &mockEscalationService{})

	if _, err := adapter.Queue(context.Background(), "ADM-001"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out.String(), "Escalation queue is empty.") {
		t.Errorf("unexpected output: %s", out.String())
	}
}

func TestIssueAdapter_TransitionRetriesConflicts(t *testing.T) {
	adapter, out := newTestAdapter(&mockIssueService{}, nil)

	calls := 0
	updated, err := adapter.Transition(context.Background(), "escalated", func(ctx context.Context) (*primary.Issue, error) {
		calls++
		if calls < 3 {
			return nil, &issue.ConcurrencyConflictError{IssueID: "ISS-001", ExpectedVersion: int64(calls)}
		}
		return &primary.Issue{ID: "ISS-001", Status: "open", EscalatedToAdmin: true}, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
	if !updated.EscalatedToAdmin {
		t.Error("expected escalated issue")
	}
	if !strings.Contains(out.String(), "✓ Issue ISS-001 escalated") {
		t.Errorf("unexpected output: %s", out.String())
	}
}

func TestIssueAdapter_TransitionDoesNotRetryRejections(t *testing.T) {
	adapter, out := newTestAdapter(&mockIssueService{}, nil)

	calls := 0
	_, err := adapter.Transition(context.Background(), "accepted", func(ctx context.Context) (*primary.Issue, error) {
		calls++
		return nil, &issue.InvalidTransitionError{Op: issue.OpAcceptResolution, Status: issue.StatusResolved, Reason: "no offer is awaiting a response"}
	})
	if !errors.Is(err, issue.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 attempt, got %d", calls)
	}
	if out.Len() != 0 {
		t.Errorf("expected no output, got: %s", out.String())
	}
}

func TestErrorLine(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&issue.NotFoundError{Entity: "issue", ID: "ISS-1"}, "Not found"},
		{&issue.AuthorizationError{Op: issue.OpClaim, Role: issue.RoleCustomer}, "Not allowed"},
		{&issue.ValidationError{Field: "text", Reason: "must not be blank"}, "Invalid input"},
		{&issue.ClosedIssueError{Op: issue.OpAddMessage, Status: issue.StatusClosed}, "Rejected"},
		{&issue.AlreadyClaimedError{IssueID: "ISS-1", ClaimedBy: "ADM-1"}, "Conflict"},
		{errors.New("disk full"), "Error"},
	}
	for _, tt := range tests {
		if got := ErrorLine(tt.err); !strings.Contains(got, tt.want) {
			t.Errorf("ErrorLine(%v) = %q, want prefix %q", tt.err, got, tt.want)
		}
	}
}
