package app

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/example/disputedesk/internal/core/issue"
	"github.com/example/disputedesk/internal/ports/primary"
	"github.com/example/disputedesk/internal/ports/secondary"
)

func TestMessageService_AddMessage(t *testing.T) {
	tests := []struct {
		name    string
		actorID string
		text    string
		wantErr error
		sender  string
	}{
		{name: "customer posts", actorID: testCustomer, text: "  Photos attached  ", sender: "customer"},
		{name: "supplier posts", actorID: testSupplier, text: "We will check", sender: "supplier"},
		{name: "admin posts", actorID: testAdmin, text: "Looking into it", sender: "admin"},
		{name: "outsider rejected", actorID: testOutsider, text: "hello", wantErr: issue.ErrUnauthorized},
		{name: "blank text rejected", actorID: testCustomer, text: "   ", wantErr: issue.ErrValidation},
		{name: "oversized text rejected", actorID: testCustomer, text: strings.Repeat("x", issue.MaxMessageLength+1), wantErr: issue.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHarness(t)
			h.seedIssue(t, "ISS-001", nil)

			got, err := h.messages.AddMessage(context.Background(), primary.AddMessageRequest{
				IssueID:     "ISS-001",
				ActorID:     tt.actorID,
				Text:        tt.text,
				Attachments: []string{"photo.jpg", " "},
			})
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("AddMessage failed: %v", err)
			}
			if got.SenderType != tt.sender {
				t.Errorf("SenderType = %q, want %q", got.SenderType, tt.sender)
			}
			if got.Text != strings.TrimSpace(tt.text) {
				t.Errorf("Text = %q, want trimmed", got.Text)
			}
			if len(got.Attachments) != 1 {
				t.Errorf("Attachments = %v, want blank entries dropped", got.Attachments)
			}
			if got.Seq != 1 {
				t.Errorf("Seq = %d, want 1", got.Seq)
			}
		})
	}
}

func TestMessageService_ClosedIssue(t *testing.T) {
	for _, status := range []string{"resolved", "closed"} {
		t.Run(status, func(t *testing.T) {
			h := newTestHarness(t)
			h.seedIssue(t, "ISS-001", func(r *secondary.IssueRecord) { r.Status = status })

			_, err := h.messages.AddMessage(context.Background(), primary.AddMessageRequest{
				IssueID: "ISS-001", ActorID: testCustomer, Text: "still broken",
			})
			var closedErr *issue.ClosedIssueError
			if !errors.As(err, &closedErr) {
				t.Fatalf("err = %v, want ClosedIssueError", err)
			}
			if h.observer.count("add_message", "rejected") != 1 {
				t.Error("closed-issue rejection should be observed")
			}
		})
	}
}

func TestMessageService_DoesNotBumpIssueVersion(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()
	h.seedIssue(t, "ISS-001", nil)

	if _, err := h.messages.AddMessage(ctx, primary.AddMessageRequest{IssueID: "ISS-001", ActorID: testCustomer, Text: "hi"}); err != nil {
		t.Fatalf("AddMessage failed: %v", err)
	}
	rec, err := h.repo.GetIssue(ctx, "ISS-001")
	if err != nil {
		t.Fatalf("GetIssue failed: %v", err)
	}
	if rec.Version != 1 {
		t.Errorf("Version = %d, want 1", rec.Version)
	}
}

func TestMessageService_ListMessagesOrdered(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()
	h.seedIssue(t, "ISS-001", nil)

	post := func(actorID, text string) {
		t.Helper()
		if _, err := h.messages.AddMessage(ctx, primary.AddMessageRequest{IssueID: "ISS-001", ActorID: actorID, Text: text}); err != nil {
			t.Fatalf("AddMessage(%s) failed: %v", text, err)
		}
	}
	post(testCustomer, "first")
	post(testSupplier, "second")
	if _, err := h.issues.OfferResolution(ctx, primary.OfferResolutionRequest{
		IssueID: "ISS-001", ActorID: testSupplier, ResolutionType: "replacement",
	}); err != nil {
		t.Fatalf("OfferResolution failed: %v", err)
	}
	post(testCustomer, "third")

	got, err := h.messages.ListMessages(ctx, "ISS-001", testCustomer)
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("got %d messages, want 4", len(got))
	}
	want := []string{"customer", "supplier", "system", "customer"}
	for i, m := range got {
		if m.SenderType != want[i] {
			t.Errorf("message %d sender = %q, want %q", i, m.SenderType, want[i])
		}
		if i > 0 && m.Timestamp.Before(got[i-1].Timestamp) {
			t.Errorf("message %d is older than its predecessor", i)
		}
	}
	if got[0].Text != "first" || got[3].Text != "third" {
		t.Errorf("unexpected order: %q ... %q", got[0].Text, got[3].Text)
	}
}

func TestMessageService_ListMessagesTiesBrokenBySequence(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()
	h.seedIssue(t, "ISS-001", nil)

	at := time.Date(2026, 5, 2, 9, 0, 0, 0, time.UTC)
	for _, id := range []string{"MSG-B", "MSG-A", "MSG-C"} {
		if err := h.repo.AppendMessage(ctx, &secondary.MessageRecord{
			ID: id, IssueID: "ISS-001", SenderID: testCustomer, SenderType: "customer", Text: id, Timestamp: at,
		}); err != nil {
			t.Fatalf("AppendMessage failed: %v", err)
		}
	}

	got, err := h.messages.ListMessages(ctx, "ISS-001", testAdmin)
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	for i, id := range []string{"MSG-B", "MSG-A", "MSG-C"} {
		if got[i].ID != id {
			t.Errorf("position %d = %s, want %s", i, got[i].ID, id)
		}
	}
}

func TestMessageService_ListMessagesRequiresParty(t *testing.T) {
	h := newTestHarness(t)
	h.seedIssue(t, "ISS-001", nil)

	if _, err := h.messages.ListMessages(context.Background(), "ISS-001", testOutsider); !errors.Is(err, issue.ErrUnauthorized) {
		t.Errorf("err = %v, want unauthorized", err)
	}
	if _, err := h.messages.ListMessages(context.Background(), "ISS-404", testCustomer); !errors.Is(err, issue.ErrNotFound) {
		t.Errorf("err = %v, want not found", err)
	}
}

// A second workflow stands in for another process sharing the store: it resolves
// the issue after this process loaded it but before the message is appended.
func TestMessageService_AddMessage_ResolvedByAnotherProcess(t *testing.T) {
	h := newTestHarness(t)
	amount := int64(5000)
	h.seedIssue(t, "ISS-001", func(r *secondary.IssueRecord) {
		r.Status = "awaiting_response"
		r.ResolutionOffered = "partial_refund"
		r.ResolutionAmount = &amount
		r.ResolutionCurrency = "USD"
	})
	ctx := context.Background()

	other := NewIssueService(NewWorkflow(h.repo, h.identity, NewEffectExecutor(&mockNotifier{}, nil)))
	h.repo.mu.Lock()
	h.repo.afterGet = func() {
		if _, err := other.AcceptResolution(ctx, primary.IssueActionRequest{IssueID: "ISS-001", ActorID: testCustomer}); err != nil {
			t.Errorf("AcceptResolution failed: %v", err)
		}
	}
	h.repo.mu.Unlock()

	_, err := h.messages.AddMessage(ctx, primary.AddMessageRequest{IssueID: "ISS-001", ActorID: testSupplier, Text: "late post"})
	if !errors.Is(err, issue.ErrClosed) {
		t.Fatalf("err = %v, want closed issue", err)
	}

	msgs, err := h.repo.ListMessages(ctx, "ISS-001")
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	for _, m := range msgs {
		if m.SenderType != "system" {
			t.Errorf("non-system message %q stored on resolved issue", m.Text)
		}
	}
	if h.observer.count(string(issue.OpAddMessage), "ok") != 0 {
		t.Error("rejected append should not be observed as ok")
	}
}
