package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/disputedesk/internal/core/effects"
	"github.com/example/disputedesk/internal/core/issue"
	"github.com/example/disputedesk/internal/core/thread"
	"github.com/example/disputedesk/internal/ids"
	"github.com/example/disputedesk/internal/ports/secondary"
)

// Workflow holds the collaborators shared by the issue, message and escalation
// services. Sharing one Workflow means every service takes the same per-issue lock.
type Workflow struct {
	repo     secondary.IssueRepository
	identity secondary.IdentityResolver
	executor EffectExecutor
	observer secondary.TransitionObserver
	logger   *slog.Logger
	locks    *issueLocks
	now      func() time.Time
	newID    func(prefix string) string
}

// WorkflowOption customizes a Workflow.
type WorkflowOption func(*Workflow)

// WithClock overrides the clock used to stamp transitions and messages.
func WithClock(now func() time.Time) WorkflowOption {
	return func(w *Workflow) { w.now = now }
}

// WithIDGenerator overrides identifier generation.
func WithIDGenerator(newID func(prefix string) string) WorkflowOption {
	return func(w *Workflow) { w.newID = newID }
}

// WithObserver reports every operation outcome to o.
func WithObserver(o secondary.TransitionObserver) WorkflowOption {
	return func(w *Workflow) { w.observer = o }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) WorkflowOption {
	return func(w *Workflow) { w.logger = l }
}

// NewWorkflow creates a Workflow with injected dependencies.
func NewWorkflow(repo secondary.IssueRepository, identity secondary.IdentityResolver, executor EffectExecutor, opts ...WorkflowOption) *Workflow {
	w := &Workflow{
		repo:     repo,
		identity: identity,
		executor: executor,
		logger:   slog.Default(),
		locks:    newIssueLocks(),
		now:      func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
		newID:    ids.WithPrefix,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

type guardFunc func(issue.TransitionContext) issue.GuardResult

type transitionFunc func(issue.Issue, issue.Actor, time.Time) (issue.Issue, []effects.Effect)

// apply runs one guarded transition: resolve actor, lock, load, guard, transition,
// persist with system messages, then run post-commit effects.
func (w *Workflow) apply(ctx context.Context, op issue.Op, issueID, actorID string, guard guardFunc, transition transitionFunc) (issue.Issue, error) {
	next, err := w.applyTransition(ctx, op, issueID, actorID, guard, transition)
	w.observe(op, err)
	return next, err
}

func (w *Workflow) applyTransition(ctx context.Context, op issue.Op, issueID, actorID string, guard guardFunc, transition transitionFunc) (issue.Issue, error) {
	actor, err := w.resolveActor(ctx, op, actorID)
	if err != nil {
		return issue.Issue{}, err
	}

	unlock := w.locks.Lock(issueID)
	defer unlock()

	current, err := w.loadIssue(ctx, issueID)
	if err != nil {
		return issue.Issue{}, err
	}

	if err := guard(issue.TransitionContext{Issue: current, Actor: actor}).Error(); err != nil {
		return issue.Issue{}, err
	}

	now := w.now()
	next, effs := transition(current, actor, now)
	sysMsgs, rest := splitEffects(effs)

	if err := w.repo.SaveIssue(ctx, issueToRecord(next), current.Version, w.systemMessageRecords(sysMsgs, now)); err != nil {
		return issue.Issue{}, w.wrapStoreErr("save issue", err)
	}

	w.logger.DebugContext(ctx, "issue transition applied",
		"op", string(op),
		"issue_id", next.ID,
		"actor_id", actor.ID,
		"from", string(current.Status),
		"to", string(next.Status),
		"version", next.Version,
	)
	w.execute(ctx, rest)
	return next, nil
}

// resolveActor maps an actor id to a role. Unknown actors are unauthorized rather than missing.
func (w *Workflow) resolveActor(ctx context.Context, op issue.Op, actorID string) (issue.Actor, error) {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return issue.Actor{}, &issue.AuthorizationError{Op: op, Reason: "no acting identity supplied"}
	}

	record, err := w.identity.ResolveActor(ctx, actorID)
	if errors.Is(err, issue.ErrNotFound) {
		return issue.Actor{}, &issue.AuthorizationError{Op: op, ActorID: actorID, Reason: "unknown actor"}
	}
	if err != nil {
		return issue.Actor{}, fmt.Errorf("failed to resolve actor %s: %w", actorID, err)
	}

	role, err := issue.ParseRole(record.Role)
	if err != nil {
		return issue.Actor{}, &issue.AuthorizationError{Op: op, ActorID: actorID, Reason: "actor has no usable role"}
	}
	return issue.Actor{ID: record.ID, Role: role, DisplayName: record.DisplayName}, nil
}

func (w *Workflow) loadIssue(ctx context.Context, issueID string) (issue.Issue, error) {
	record, err := w.repo.GetIssue(ctx, issueID)
	if err != nil {
		return issue.Issue{}, w.wrapStoreErr("get issue", err)
	}
	return recordToIssue(record)
}

func (w *Workflow) loadMessages(ctx context.Context, issueID string) ([]thread.Message, error) {
	records, err := w.repo.ListMessages(ctx, issueID)
	if err != nil {
		return nil, w.wrapStoreErr("list messages", err)
	}
	msgs := make([]thread.Message, 0, len(records))
	for _, r := range records {
		m, err := recordToMessage(r)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	if !thread.IsOrdered(msgs) {
		thread.Sort(msgs)
	}
	return msgs, nil
}

func (w *Workflow) systemMessageRecords(msgs []effects.SystemMessageEffect, now time.Time) []*secondary.MessageRecord {
	records := make([]*secondary.MessageRecord, 0, len(msgs))
	for _, m := range msgs {
		records = append(records, messageToRecord(thread.NewSystem(w.newID(ids.MessagePrefix), m.IssueID, m.Text, now)))
	}
	return records
}

// execute runs post-commit effects. The operation already succeeded, so failures are only logged.
func (w *Workflow) execute(ctx context.Context, effs []effects.Effect) {
	if w.executor == nil || len(effs) == 0 {
		return
	}
	if err := w.executor.Execute(ctx, effs); err != nil {
		w.logger.WarnContext(ctx, "post-commit effect failed", "error", err)
	}
}

func (w *Workflow) observe(op issue.Op, err error) {
	if w.observer == nil {
		return
	}
	w.observer.ObserveTransition(string(op), outcomeOf(err))
}

// wrapStoreErr passes typed domain errors through and wraps infrastructure failures.
func (w *Workflow) wrapStoreErr(action string, err error) error {
	if isDomainError(err) {
		return err
	}
	return fmt.Errorf("failed to %s: %w", action, err)
}

func isDomainError(err error) bool {
	for _, kind := range []error{
		issue.ErrNotFound,
		issue.ErrInvalidTransition,
		issue.ErrUnauthorized,
		issue.ErrValidation,
		issue.ErrConcurrencyConflict,
		issue.ErrClosed,
		issue.ErrAlreadyClaimed,
	} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

// outcomeOf classifies an operation result for metrics.
func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, issue.ErrNotFound):
		return "not_found"
	case errors.Is(err, issue.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, issue.ErrValidation):
		return "invalid_input"
	case errors.Is(err, issue.ErrConcurrencyConflict), errors.Is(err, issue.ErrAlreadyClaimed):
		return "conflict"
	case errors.Is(err, issue.ErrInvalidTransition), errors.Is(err, issue.ErrClosed):
		return "rejected"
	default:
		return "error"
	}
}
