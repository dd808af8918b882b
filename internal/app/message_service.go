package app

import (
	"context"

	"github.com/example/disputedesk/internal/core/effects"
	"github.com/example/disputedesk/internal/core/issue"
	"github.com/example/disputedesk/internal/core/thread"
	"github.com/example/disputedesk/internal/ids"
	"github.com/example/disputedesk/internal/ports/primary"
)

// MessageServiceImpl implements the MessageService interface.
type MessageServiceImpl struct {
	wf *Workflow
}

// NewMessageService creates a new MessageService on the shared workflow.
func NewMessageService(wf *Workflow) *MessageServiceImpl {
	return &MessageServiceImpl{wf: wf}
}

// AddMessage appends a party's message to an issue thread.
func (s *MessageServiceImpl) AddMessage(ctx context.Context, req primary.AddMessageRequest) (*primary.Message, error) {
	msg, err := s.addMessage(ctx, req)
	s.wf.observe(issue.OpAddMessage, err)
	if err != nil {
		return nil, err
	}
	return messageToPrimary(msg), nil
}

func (s *MessageServiceImpl) addMessage(ctx context.Context, req primary.AddMessageRequest) (thread.Message, error) {
	actor, err := s.wf.resolveActor(ctx, issue.OpAddMessage, req.ActorID)
	if err != nil {
		return thread.Message{}, err
	}

	unlock := s.wf.locks.Lock(req.IssueID)
	defer unlock()

	current, err := s.wf.loadIssue(ctx, req.IssueID)
	if err != nil {
		return thread.Message{}, err
	}
	if err := issue.CanAddMessage(issue.TransitionContext{Issue: current, Actor: actor}, req.Text).Error(); err != nil {
		return thread.Message{}, err
	}

	msg := thread.New(s.wf.newID(ids.MessagePrefix), current.ID, actor, req.Text, req.Attachments, s.wf.now())
	record := messageToRecord(msg)
	if err := s.wf.repo.AppendMessage(ctx, record); err != nil {
		return thread.Message{}, s.wf.wrapStoreErr("append message", err)
	}
	msg.Seq = record.Seq

	s.wf.execute(ctx, []effects.Effect{effects.NotifyEffect{Kind: issue.EventMessagePosted, IssueID: current.ID}})
	return msg, nil
}

// ListMessages returns an issue's thread, oldest first, ties broken by insertion order.
func (s *MessageServiceImpl) ListMessages(ctx context.Context, issueID, actorID string) ([]*primary.Message, error) {
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
	out := make([]*primary.Message, len(msgs))
	for i, m := range msgs {
		out[i] = messageToPrimary(m)
	}
	return out, nil
}

// Ensure MessageServiceImpl implements the interface
var _ primary.MessageService = (*MessageServiceImpl)(nil)
