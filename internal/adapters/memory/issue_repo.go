// Package memory provides an in-process implementation of the issue repository.
// It backs `serve --store memory` and tests that do not need SQL.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/example/disputedesk/internal/core/issue"
	"github.com/example/disputedesk/internal/ports/secondary"
)

// IssueRepository implements secondary.IssueRepository in memory.
// Records are copied on the way in and out, so callers never share state with the store.
type IssueRepository struct {
	mu       sync.RWMutex
	issues   map[string]*secondary.IssueRecord
	messages map[string][]*secondary.MessageRecord
}

// NewIssueRepository creates an empty in-memory repository.
func NewIssueRepository() *IssueRepository {
	return &IssueRepository{
		issues:   make(map[string]*secondary.IssueRecord),
		messages: make(map[string][]*secondary.MessageRecord),
	}
}

// CreateIssue persists a new issue.
func (r *IssueRepository) CreateIssue(ctx context.Context, rec *secondary.IssueRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.issues[rec.ID]; ok {
		return fmt.Errorf("failed to create issue: %s already exists", rec.ID)
	}
	r.issues[rec.ID] = cloneIssue(rec)
	return nil
}

// GetIssue retrieves an issue by its ID.
func (r *IssueRepository) GetIssue(ctx context.Context, id string) (*secondary.IssueRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.issues[id]
	if !ok {
		return nil, &issue.NotFoundError{Entity: "issue", ID: id}
	}
	return cloneIssue(rec), nil
}

// ListIssues retrieves issues matching the given filters, newest first.
func (r *IssueRepository) ListIssues(ctx context.Context, filters secondary.IssueFilters) ([]*secondary.IssueRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*secondary.IssueRecord
	for _, rec := range r.issues {
		if filters.CustomerID != "" && rec.CustomerID != filters.CustomerID {
			continue
		}
		if filters.SupplierID != "" && rec.SupplierID != filters.SupplierID {
			continue
		}
		if filters.Status != "" && rec.Status != filters.Status {
			continue
		}
		if filters.Escalated != nil && rec.EscalatedToAdmin != *filters.Escalated {
			continue
		}
		out = append(out, cloneIssue(rec))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].OpenedAt.Equal(out[j].OpenedAt) {
			return out[i].OpenedAt.After(out[j].OpenedAt)
		}
		return out[i].ID > out[j].ID
	})
	if filters.Limit > 0 && len(out) > filters.Limit {
		out = out[:filters.Limit]
	}
	return out, nil
}

// ListEscalationQueue retrieves escalated issues with no assigned admin, oldest first.
func (r *IssueRepository) ListEscalationQueue(ctx context.Context, limit int) ([]*secondary.IssueRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*secondary.IssueRecord
	for _, rec := range r.issues {
		if rec.EscalatedToAdmin && rec.AssignedAdminID == "" && !terminal(rec.Status) {
			out = append(out, cloneIssue(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].OpenedAt.Equal(out[j].OpenedAt) {
			return out[i].OpenedAt.Before(out[j].OpenedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SaveIssue overwrites the issue if its stored version still equals expectedVersion.
func (r *IssueRepository) SaveIssue(ctx context.Context, rec *secondary.IssueRecord, expectedVersion int64, messages []*secondary.MessageRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.issues[rec.ID]
	if !ok {
		return &issue.NotFoundError{Entity: "issue", ID: rec.ID}
	}
	if stored.Version != expectedVersion {
		return &issue.ConcurrencyConflictError{IssueID: rec.ID, ExpectedVersion: expectedVersion}
	}
	r.issues[rec.ID] = cloneIssue(rec)
	for _, msg := range messages {
		r.appendLocked(msg)
	}
	return nil
}

// ClaimEscalation assigns adminID if the issue is escalated, unclaimed and still open.
func (r *IssueRepository) ClaimEscalation(ctx context.Context, issueID, adminID string, at time.Time, message *secondary.MessageRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.issues[issueID]
	if !ok {
		return &issue.NotFoundError{Entity: "issue", ID: issueID}
	}
	if !rec.EscalatedToAdmin || rec.AssignedAdminID != "" || terminal(rec.Status) {
		return secondary.ClaimRejection(rec)
	}
	rec.AssignedAdminID = adminID
	rec.UpdatedAt = at
	rec.Version++
	if message != nil {
		r.appendLocked(message)
	}
	return nil
}

// AppendMessage appends a message and assigns its per-issue sequence number.
func (r *IssueRepository) AppendMessage(ctx context.Context, msg *secondary.MessageRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.issues[msg.IssueID]
	if !ok {
		return &issue.NotFoundError{Entity: "issue", ID: msg.IssueID}
	}
	if err := secondary.MessageRejection(rec.ID, rec.Status); err != nil {
		return err
	}
	r.appendLocked(msg)
	return nil
}

func (r *IssueRepository) appendLocked(msg *secondary.MessageRecord) {
	msg.Seq = int64(len(r.messages[msg.IssueID]) + 1)
	r.messages[msg.IssueID] = append(r.messages[msg.IssueID], cloneMessage(msg))
}

// ListMessages retrieves an issue's thread ordered by timestamp, then sequence.
func (r *IssueRepository) ListMessages(ctx context.Context, issueID string) ([]*secondary.MessageRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*secondary.MessageRecord, 0, len(r.messages[issueID]))
	for _, msg := range r.messages[issueID] {
		out = append(out, cloneMessage(msg))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].Seq < out[j].Seq
	})
	return out, nil
}

// Ping always succeeds.
func (r *IssueRepository) Ping(ctx context.Context) error { return nil }

func terminal(status string) bool {
	return status == string(issue.StatusResolved) || status == string(issue.StatusClosed)
}

func cloneIssue(rec *secondary.IssueRecord) *secondary.IssueRecord {
	cp := *rec
	cp.AffectedItems = slices.Clone(rec.AffectedItems)
	cp.Evidence = slices.Clone(rec.Evidence)
	if rec.ResolutionAmount != nil {
		amount := *rec.ResolutionAmount
		cp.ResolutionAmount = &amount
	}
	if rec.ResolutionAccepted != nil {
		accepted := *rec.ResolutionAccepted
		cp.ResolutionAccepted = &accepted
	}
	if rec.ResolutionAcceptedAt != nil {
		at := *rec.ResolutionAcceptedAt
		cp.ResolutionAcceptedAt = &at
	}
	if rec.ResolvedAt != nil {
		at := *rec.ResolvedAt
		cp.ResolvedAt = &at
	}
	return &cp
}

func cloneMessage(msg *secondary.MessageRecord) *secondary.MessageRecord {
	cp := *msg
	cp.Attachments = slices.Clone(msg.Attachments)
	return &cp
}

// Ensure IssueRepository implements the interface
var _ secondary.IssueRepository = (*IssueRepository)(nil)
