package app

import (
	"fmt"
	"strings"

	"github.com/example/disputedesk/internal/core/issue"
	"github.com/example/disputedesk/internal/core/thread"
	"github.com/example/disputedesk/internal/ports/primary"
	"github.com/example/disputedesk/internal/ports/secondary"
)

func issueToRecord(i issue.Issue) *secondary.IssueRecord {
	r := &secondary.IssueRecord{
		ID:                   i.ID,
		OrderID:              i.OrderID,
		CustomerID:           i.CustomerID,
		SupplierID:           i.SupplierID,
		IssueType:            string(i.Type),
		AffectedItems:        i.AffectedItems,
		Status:               string(i.Status),
		Description:          i.Description,
		Evidence:             i.Evidence,
		DesiredResolution:    string(i.DesiredResolution),
		ResolutionAccepted:   i.ResolutionAccepted,
		ResolutionAcceptedAt: i.ResolutionAcceptedAt,
		EscalatedToAdmin:     i.EscalatedToAdmin,
		AssignedAdminID:      i.AssignedAdminID,
		OpenedAt:             i.OpenedAt,
		ResolvedAt:           i.ResolvedAt,
		UpdatedAt:            i.UpdatedAt,
		Version:              i.Version,
	}
	if i.ResolutionOffered != nil {
		r.ResolutionOffered = string(*i.ResolutionOffered)
	}
	if i.ResolutionAmount != nil {
		amount := i.ResolutionAmount.Amount
		r.ResolutionAmount = &amount
		r.ResolutionCurrency = i.ResolutionAmount.Currency
	}
	return r
}

// recordToIssue rebuilds the domain issue, rejecting stored values outside the closed enums.
func recordToIssue(r *secondary.IssueRecord) (issue.Issue, error) {
	status, err := issue.ParseStatus(r.Status)
	if err != nil {
		return issue.Issue{}, fmt.Errorf("issue %s has corrupt status: %w", r.ID, err)
	}
	issueType, err := issue.ParseType(r.IssueType)
	if err != nil {
		return issue.Issue{}, fmt.Errorf("issue %s has corrupt type: %w", r.ID, err)
	}
	desired, err := issue.ParseResolutionType(r.DesiredResolution)
	if err != nil {
		return issue.Issue{}, fmt.Errorf("issue %s has corrupt desired resolution: %w", r.ID, err)
	}

	i := issue.Issue{
		ID:                   r.ID,
		OrderID:              r.OrderID,
		CustomerID:           r.CustomerID,
		SupplierID:           r.SupplierID,
		Type:                 issueType,
		AffectedItems:        r.AffectedItems,
		Status:               status,
		Description:          r.Description,
		Evidence:             r.Evidence,
		DesiredResolution:    desired,
		ResolutionAccepted:   r.ResolutionAccepted,
		ResolutionAcceptedAt: r.ResolutionAcceptedAt,
		EscalatedToAdmin:     r.EscalatedToAdmin,
		AssignedAdminID:      r.AssignedAdminID,
		OpenedAt:             r.OpenedAt,
		ResolvedAt:           r.ResolvedAt,
		UpdatedAt:            r.UpdatedAt,
		Version:              r.Version,
	}
	if r.ResolutionOffered != "" {
		offered, err := issue.ParseResolutionType(r.ResolutionOffered)
		if err != nil {
			return issue.Issue{}, fmt.Errorf("issue %s has corrupt offer: %w", r.ID, err)
		}
		i.ResolutionOffered = &offered
	}
	if r.ResolutionAmount != nil {
		i.ResolutionAmount = &issue.Money{Currency: r.ResolutionCurrency, Amount: *r.ResolutionAmount}
	}
	return i.Clone(), nil
}

func issueToPrimary(i issue.Issue) *primary.Issue {
	c := i.Clone()
	p := &primary.Issue{
		ID:                   c.ID,
		OrderID:              c.OrderID,
		CustomerID:           c.CustomerID,
		SupplierID:           c.SupplierID,
		IssueType:            string(c.Type),
		AffectedItems:        nonNil(c.AffectedItems),
		Status:               string(c.Status),
		Description:          c.Description,
		Evidence:             nonNil(c.Evidence),
		DesiredResolution:    string(c.DesiredResolution),
		ResolutionAccepted:   c.ResolutionAccepted,
		ResolutionAcceptedAt: c.ResolutionAcceptedAt,
		EscalatedToAdmin:     c.EscalatedToAdmin,
		AssignedAdminID:      c.AssignedAdminID,
		OpenedAt:             c.OpenedAt,
		ResolvedAt:           c.ResolvedAt,
		UpdatedAt:            c.UpdatedAt,
		Version:              c.Version,
	}
	if c.ResolutionOffered != nil {
		p.ResolutionOffered = string(*c.ResolutionOffered)
	}
	if c.ResolutionAmount != nil {
		p.ResolutionAmount = moneyToPrimary(*c.ResolutionAmount)
	}
	return p
}

func moneyToPrimary(m issue.Money) *primary.Money {
	return &primary.Money{Currency: m.Currency, AmountMinor: m.Amount, Display: m.String()}
}

func moneyFromPrimary(m *primary.Money) *issue.Money {
	if m == nil {
		return nil
	}
	return &issue.Money{Currency: strings.ToUpper(strings.TrimSpace(m.Currency)), Amount: m.AmountMinor}
}

func messageToRecord(m thread.Message) *secondary.MessageRecord {
	return &secondary.MessageRecord{
		ID:          m.ID,
		IssueID:     m.IssueID,
		SenderID:    m.SenderID,
		SenderType:  string(m.SenderType),
		Text:        m.Text,
		Attachments: m.Attachments,
		Timestamp:   m.Timestamp,
		Seq:         m.Seq,
	}
}

func recordToMessage(r *secondary.MessageRecord) (thread.Message, error) {
	senderType, err := thread.ParseSenderType(r.SenderType)
	if err != nil {
		return thread.Message{}, fmt.Errorf("message %s has corrupt sender type: %w", r.ID, err)
	}
	return thread.Message{
		ID:          r.ID,
		IssueID:     r.IssueID,
		SenderID:    r.SenderID,
		SenderType:  senderType,
		Text:        r.Text,
		Attachments: r.Attachments,
		Timestamp:   r.Timestamp,
		Seq:         r.Seq,
	}, nil
}

func messageToPrimary(m thread.Message) *primary.Message {
	return &primary.Message{
		ID:          m.ID,
		IssueID:     m.IssueID,
		SenderID:    m.SenderID,
		SenderType:  string(m.SenderType),
		Text:        m.Text,
		Attachments: nonNil(m.Attachments),
		Timestamp:   m.Timestamp,
		Seq:         m.Seq,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
