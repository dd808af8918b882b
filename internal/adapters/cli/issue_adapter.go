package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/fatih/color"

	"github.com/example/disputedesk/internal/core/issue"
	"github.com/example/disputedesk/internal/ports/primary"
)

// IssueAdapter is a thin adapter that translates CLI operations to the issue,
// message and escalation services and renders the results.
type IssueAdapter struct {
	issues      primary.IssueService
	messages    primary.MessageService
	escalations primary.EscalationService
	out         io.Writer
	newBackOff  func() backoff.BackOff
}

// NewIssueAdapter creates a new IssueAdapter with the given services.
func NewIssueAdapter(issues primary.IssueService, messages primary.MessageService, escalations primary.EscalationService, out io.Writer) *IssueAdapter {
	return &IssueAdapter{
		issues:      issues,
		messages:    messages,
		escalations: escalations,
		out:         out,
		newBackOff: func() backoff.BackOff {
			bo := backoff.NewExponentialBackOff()
			bo.InitialInterval = 20 * time.Millisecond
			bo.MaxElapsedTime = 2 * time.Second
			return bo
		},
	}
}

// Open creates an issue and prints its id.
func (a *IssueAdapter) Open(ctx context.Context, req primary.OpenIssueRequest) (*primary.Issue, error) {
	opened, err := a.issues.OpenIssue(ctx, req)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(a.out, "✓ Issue %s opened for order %s\n", opened.ID, opened.OrderID)
	fmt.Fprintf(a.out, "  Type: %s | Supplier: %s | Wants: %s\n", opened.IssueType, opened.SupplierID, opened.DesiredResolution)
	return opened, nil
}

// List lists issues visible to the actor.
func (a *IssueAdapter) List(ctx context.Context, actorID string, filters primary.IssueFilters) ([]*primary.Issue, error) {
	issues, err := a.issues.ListIssues(ctx, actorID, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list issues: %w", err)
	}

	if len(issues) == 0 {
		fmt.Fprintln(a.out, "No issues found.")
		return issues, nil
	}

	a.printTable(issues)
	return issues, nil
}

// Queue lists the unclaimed escalations.
func (a *IssueAdapter) Queue(ctx context.Context, actorID string) ([]*primary.Issue, error) {
	queue, err := a.escalations.ListQueue(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("failed to list escalation queue: %w", err)
	}

	if len(queue) == 0 {
		fmt.Fprintln(a.out, "Escalation queue is empty.")
		return queue, nil
	}

	a.printTable(queue)
	return queue, nil
}

func (a *IssueAdapter) printTable(issues []*primary.Issue) {
	w := tabwriter.NewWriter(a.out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tORDER\tTYPE\tSTATUS\tESCALATED\tOPENED")
	fmt.Fprintln(w, "--\t-----\t----\t------\t---------\t------")

	for _, i := range issues {
		escalated := "-"
		if i.EscalatedToAdmin {
			escalated = "yes"
			if i.AssignedAdminID != "" {
				escalated = i.AssignedAdminID
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			i.ID,
			i.OrderID,
			i.IssueType,
			StatusLabel(i.Status),
			escalated,
			i.OpenedAt.Format("2006-01-02"),
		)
	}

	w.Flush()
}

// Show displays an issue and its thread.
func (a *IssueAdapter) Show(ctx context.Context, issueID, actorID string) (*primary.IssueDetail, error) {
	detail, err := a.issues.GetIssue(ctx, issueID, actorID)
	if err != nil {
		return nil, err
	}
	i := detail.Issue

	fmt.Fprintf(a.out, "\nIssue: %s\n", i.ID)
	fmt.Fprintf(a.out, "Order:    %s\n", i.OrderID)
	fmt.Fprintf(a.out, "Type:     %s\n", i.IssueType)
	fmt.Fprintf(a.out, "Status:   %s\n", StatusLabel(i.Status))
	fmt.Fprintf(a.out, "Customer: %s\n", i.CustomerID)
	fmt.Fprintf(a.out, "Supplier: %s\n", i.SupplierID)
	if len(i.AffectedItems) > 0 {
		fmt.Fprintf(a.out, "Items:    %s\n", strings.Join(i.AffectedItems, ", "))
	}
	fmt.Fprintf(a.out, "Wants:    %s\n", i.DesiredResolution)
	if i.ResolutionOffered != "" {
		offer := i.ResolutionOffered
		if i.ResolutionAmount != nil {
			offer += " (" + i.ResolutionAmount.Display + ")"
		}
		fmt.Fprintf(a.out, "Offer:    %s\n", offer)
	}
	if i.EscalatedToAdmin {
		admin := color.New(color.FgYellow).Sprint("unclaimed")
		if i.AssignedAdminID != "" {
			admin = i.AssignedAdminID
		}
		fmt.Fprintf(a.out, "Escalated: %s\n", admin)
	}
	fmt.Fprintf(a.out, "Opened:   %s\n", i.OpenedAt.Format(time.RFC3339))
	if i.Description != "" {
		fmt.Fprintf(a.out, "\n%s\n", i.Description)
	}

	fmt.Fprintf(a.out, "\nThread (%d):\n", len(detail.Messages))
	for _, m := range detail.Messages {
		a.printMessage(m)
	}
	fmt.Fprintln(a.out)
	return detail, nil
}

func (a *IssueAdapter) printMessage(m *primary.Message) {
	sender := m.SenderID
	if m.SenderType == "system" {
		sender = color.New(color.FgCyan).Sprint("system")
	}
	fmt.Fprintf(a.out, "  [%s] %s: %s\n", m.Timestamp.Format("2006-01-02 15:04"), sender, m.Text)
	for _, att := range m.Attachments {
		fmt.Fprintf(a.out, "      📎 %s\n", att)
	}
}

// Transition runs an issue operation, retrying lost races, and reports the new status.
func (a *IssueAdapter) Transition(ctx context.Context, verb string, op func(context.Context) (*primary.Issue, error)) (*primary.Issue, error) {
	var updated *primary.Issue
	err := a.retry(ctx, func() error {
		var err error
		updated, err = op(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(a.out, "✓ Issue %s %s\n", updated.ID, verb)
	fmt.Fprintf(a.out, "  Status: %s\n", StatusLabel(updated.Status))
	return updated, nil
}

// AddMessage posts a message to an issue thread.
func (a *IssueAdapter) AddMessage(ctx context.Context, req primary.AddMessageRequest) (*primary.Message, error) {
	msg, err := a.messages.AddMessage(ctx, req)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(a.out, "✓ Message %s added to %s\n", msg.ID, msg.IssueID)
	return msg, nil
}

// ListMessages prints an issue thread.
func (a *IssueAdapter) ListMessages(ctx context.Context, issueID, actorID string) ([]*primary.Message, error) {
	msgs, err := a.messages.ListMessages(ctx, issueID, actorID)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		fmt.Fprintln(a.out, "No messages yet.")
		return msgs, nil
	}
	for _, m := range msgs {
		a.printMessage(m)
	}
	return msgs, nil
}

// retry re-runs fn while it reports a concurrency conflict; every other error is final.
func (a *IssueAdapter) retry(ctx context.Context, fn func() error) error {
	op := func() error {
		err := fn()
		if err != nil && !issue.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	return backoff.Retry(op, backoff.WithContext(a.newBackOff(), ctx))
}

// StatusLabel colors a status for terminal output.
func StatusLabel(status string) string {
	switch status {
	case "open":
		return color.New(color.FgBlue).Sprint(status)
	case "under_review":
		return color.New(color.FgYellow).Sprint(status)
	case "awaiting_response":
		return color.New(color.FgMagenta).Sprint(status)
	case "resolved":
		return color.New(color.FgGreen).Sprint(status)
	case "closed":
		return color.New(color.FgHiBlack).Sprint(status)
	default:
		return status
	}
}

// ErrorLine renders err for the terminal, naming the kind of rejection.
func ErrorLine(err error) string {
	prefix := "Error"
	switch {
	case errors.Is(err, issue.ErrNotFound):
		prefix = "Not found"
	case errors.Is(err, issue.ErrUnauthorized):
		prefix = "Not allowed"
	case errors.Is(err, issue.ErrValidation):
		prefix = "Invalid input"
	case errors.Is(err, issue.ErrClosed), errors.Is(err, issue.ErrInvalidTransition):
		prefix = "Rejected"
	case errors.Is(err, issue.ErrAlreadyClaimed), errors.Is(err, issue.ErrConcurrencyConflict):
		prefix = "Conflict"
	}
	return color.New(color.FgRed).Sprintf("✗ %s: %v", prefix, err)
}
