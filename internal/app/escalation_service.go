package app

import (
	"context"

	"github.com/example/disputedesk/internal/core/issue"
	"github.com/example/disputedesk/internal/ports/primary"
	"github.com/example/disputedesk/internal/ports/secondary"
)

// escalationQueueLimit caps a single queue listing.
const escalationQueueLimit = 200

// EscalationServiceImpl implements the EscalationService interface.
type EscalationServiceImpl struct {
	wf *Workflow
}

// NewEscalationService creates a new EscalationService on the shared workflow.
func NewEscalationService(wf *Workflow) *EscalationServiceImpl {
	return &EscalationServiceImpl{wf: wf}
}

// ListQueue lists escalated issues no admin has claimed yet, oldest first.
func (s *EscalationServiceImpl) ListQueue(ctx context.Context, actorID string) ([]*primary.Issue, error) {
	actor, err := s.wf.resolveActor(ctx, issue.OpListEscalations, actorID)
	if err != nil {
		return nil, err
	}
	if err := issue.CanListEscalations(actor).Error(); err != nil {
		return nil, err
	}

	records, err := s.wf.repo.ListEscalationQueue(ctx, escalationQueueLimit)
	if err != nil {
		return nil, s.wf.wrapStoreErr("list escalation queue", err)
	}
	out := make([]*primary.Issue, 0, len(records))
	for _, r := range records {
		i, err := recordToIssue(r)
		if err != nil {
			return nil, err
		}
		if !i.Unclaimed() {
			continue
		}
		out = append(out, issueToPrimary(i))
	}
	return out, nil
}

// Claim assigns an escalated issue to the acting admin.
// The store performs the compare-and-set, so of several concurrent claims
// (even from separate processes) exactly one wins and the rest get AlreadyClaimedError.
func (s *EscalationServiceImpl) Claim(ctx context.Context, req primary.IssueActionRequest) (*primary.Issue, error) {
	claimed, err := s.claim(ctx, req)
	s.wf.observe(issue.OpClaim, err)
	if err != nil {
		return nil, err
	}
	return issueToPrimary(claimed), nil
}

func (s *EscalationServiceImpl) claim(ctx context.Context, req primary.IssueActionRequest) (issue.Issue, error) {
	actor, err := s.wf.resolveActor(ctx, issue.OpClaim, req.ActorID)
	if err != nil {
		return issue.Issue{}, err
	}

	unlock := s.wf.locks.Lock(req.IssueID)
	defer unlock()

	current, err := s.wf.loadIssue(ctx, req.IssueID)
	if err != nil {
		return issue.Issue{}, err
	}
	if err := issue.CanClaim(issue.TransitionContext{Issue: current, Actor: actor}).Error(); err != nil {
		return issue.Issue{}, err
	}

	now := s.wf.now()
	_, effs := issue.Claim(current, actor, now)
	sysMsgs, rest := splitEffects(effs)
	var message *secondary.MessageRecord
	if msgs := s.wf.systemMessageRecords(sysMsgs, now); len(msgs) > 0 {
		message = msgs[0]
	}

	if err := s.wf.repo.ClaimEscalation(ctx, current.ID, actor.ID, now, message); err != nil {
		return issue.Issue{}, s.wf.wrapStoreErr("claim escalation", err)
	}

	// The store bumps the version itself, so reload the canonical row.
	claimed, err := s.wf.loadIssue(ctx, current.ID)
	if err != nil {
		return issue.Issue{}, err
	}
	s.wf.execute(ctx, rest)
	return claimed, nil
}

// Ensure EscalationServiceImpl implements the interface
var _ primary.EscalationService = (*EscalationServiceImpl)(nil)
