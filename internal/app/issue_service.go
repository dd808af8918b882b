package app

import (
	"context"
	"time"

	"github.com/example/disputedesk/internal/core/effects"
	"github.com/example/disputedesk/internal/core/issue"
	"github.com/example/disputedesk/internal/ids"
	"github.com/example/disputedesk/internal/ports/primary"
	"github.com/example/disputedesk/internal/ports/secondary"
)

// IssueServiceImpl implements the IssueService interface.
type IssueServiceImpl struct {
	wf *Workflow
}

// NewIssueService creates a new IssueService on the shared workflow.
func NewIssueService(wf *Workflow) *IssueServiceImpl {
	return &IssueServiceImpl{wf: wf}
}

// OpenIssue creates a new issue on behalf of the ordering customer.
func (s *IssueServiceImpl) OpenIssue(ctx context.Context, req primary.OpenIssueRequest) (*primary.Issue, error) {
	opened, err := s.open(ctx, req)
	s.wf.observe(issue.OpOpen, err)
	if err != nil {
		return nil, err
	}
	return issueToPrimary(opened), nil
}

func (s *IssueServiceImpl) open(ctx context.Context, req primary.OpenIssueRequest) (issue.Issue, error) {
	actor, err := s.wf.resolveActor(ctx, issue.OpOpen, req.ActorID)
	if err != nil {
		return issue.Issue{}, err
	}

	intake := issue.OpenRequest{
		OrderID:           req.OrderID,
		CustomerID:        actor.ID,
		SupplierID:        req.SupplierID,
		Type:              req.IssueType,
		AffectedItems:     req.AffectedItems,
		Description:       req.Description,
		Evidence:          req.Evidence,
		DesiredResolution: req.DesiredResolution,
	}
	if err := issue.CanOpen(actor, intake).Error(); err != nil {
		return issue.Issue{}, err
	}

	opened, effs := issue.Open(s.wf.newID(ids.IssuePrefix), intake, s.wf.now())
	if err := s.wf.repo.CreateIssue(ctx, issueToRecord(opened)); err != nil {
		return issue.Issue{}, s.wf.wrapStoreErr("create issue", err)
	}
	s.wf.execute(ctx, effs)
	return opened, nil
}

// GetIssue returns an issue and its full message thread.
func (s *IssueServiceImpl) GetIssue(ctx context.Context, issueID, actorID string) (*primary.IssueDetail, error) {
	actor, err := s.wf.resolveActor(ctx, issue.OpView, actorID)
	if err != nil {
		return nil, err
	}
	current, err := s.wf.loadIssue(ctx, issueID)
	if err != nil {
		return nil, err
	}
	if err := issue.CanView(issue.TransitionContext{Issue: current, Actor: actor}).Error(); err != nil {
		return nil, err
	}

	msgs, err := s.wf.loadMessages(ctx, issueID)
	if err != nil {
		return nil, err
	}
	detail := &primary.IssueDetail{
		Issue:    issueToPrimary(current),
		Messages: make([]*primary.Message, len(msgs)),
	}
	for i, m := range msgs {
		detail.Messages[i] = messageToPrimary(m)
	}
	return detail, nil
}

// ListIssues lists issues visible to the actor. Customers and suppliers only see their own.
func (s *IssueServiceImpl) ListIssues(ctx context.Context, actorID string, filters primary.IssueFilters) ([]*primary.Issue, error) {
	actor, err := s.wf.resolveActor(ctx, issue.OpView, actorID)
	if err != nil {
		return nil, err
	}

	query := secondary.IssueFilters{
		CustomerID: filters.CustomerID,
		SupplierID: filters.SupplierID,
		Status:     filters.Status,
		Escalated:  filters.Escalated,
		Limit:      filters.Limit,
	}
	if query.Status != "" {
		if _, err := issue.ParseStatus(query.Status); err != nil {
			return nil, err
		}
	}
	switch actor.Role {
	case issue.RoleCustomer:
		query.CustomerID = actor.ID
	case issue.RoleSupplier:
		query.SupplierID = actor.ID
	}

	records, err := s.wf.repo.ListIssues(ctx, query)
	if err != nil {
		return nil, s.wf.wrapStoreErr("list issues", err)
	}
	out := make([]*primary.Issue, 0, len(records))
	for _, r := range records {
		i, err := recordToIssue(r)
		if err != nil {
			return nil, err
		}
		out = append(out, issueToPrimary(i))
	}
	return out, nil
}

// BeginReview moves an issue into supplier review.
func (s *IssueServiceImpl) BeginReview(ctx context.Context, req primary.IssueActionRequest) (*primary.Issue, error) {
	return s.run(ctx, issue.OpBeginReview, req, issue.CanBeginReview, issue.BeginReview)
}

// OfferResolution proposes a remedy to the customer, replacing any earlier offer.
// The resolution type is checked by the guard, after the actor and issue are known.
func (s *IssueServiceImpl) OfferResolution(ctx context.Context, req primary.OfferResolutionRequest) (*primary.Issue, error) {
	offer := issue.Offer{Type: issue.ResolutionType(req.ResolutionType), Amount: moneyFromPrimary(req.Amount)}

	guard := func(tc issue.TransitionContext) issue.GuardResult {
		return issue.CanOfferResolution(tc, offer)
	}
	transition := func(i issue.Issue, actor issue.Actor, now time.Time) (issue.Issue, []effects.Effect) {
		return issue.OfferResolution(i, actor, offer, now)
	}
	return s.run(ctx, issue.OpOfferResolution, primary.IssueActionRequest{IssueID: req.IssueID, ActorID: req.ActorID}, guard, transition)
}

// AcceptResolution commits the current offer and resolves the issue.
// Repeating it on a resolved issue fails rather than succeeding silently.
func (s *IssueServiceImpl) AcceptResolution(ctx context.Context, req primary.IssueActionRequest) (*primary.Issue, error) {
	return s.run(ctx, issue.OpAcceptResolution, req, issue.CanAcceptResolution, issue.AcceptResolution)
}

// DeclineResolution rejects the current offer and returns the issue to review.
func (s *IssueServiceImpl) DeclineResolution(ctx context.Context, req primary.IssueActionRequest) (*primary.Issue, error) {
	return s.run(ctx, issue.OpDeclineResolution, req, issue.CanDeclineResolution, issue.DeclineResolution)
}

// Escalate flags the issue for platform admin attention.
func (s *IssueServiceImpl) Escalate(ctx context.Context, req primary.IssueActionRequest) (*primary.Issue, error) {
	return s.run(ctx, issue.OpEscalate, req, issue.CanEscalate, issue.Escalate)
}

// ForceClose administratively closes the issue.
func (s *IssueServiceImpl) ForceClose(ctx context.Context, req primary.IssueActionRequest) (*primary.Issue, error) {
	return s.run(ctx, issue.OpForceClose, req, issue.CanForceClose, issue.ForceClose)
}

func (s *IssueServiceImpl) run(ctx context.Context, op issue.Op, req primary.IssueActionRequest, guard guardFunc, transition transitionFunc) (*primary.Issue, error) {
	next, err := s.wf.apply(ctx, op, req.IssueID, req.ActorID, guard, transition)
	if err != nil {
		return nil, err
	}
	return issueToPrimary(next), nil
}

// Ensure IssueServiceImpl implements the interface
var _ primary.IssueService = (*IssueServiceImpl)(nil)
