package issue

import (
	"fmt"
	"strings"
	"time"

	"github.com/example/disputedesk/internal/core/effects"
)

// Notification kinds emitted by transitions.
const (
	EventOpened             = "issue_opened"
	EventReviewStarted      = "review_started"
	EventResolutionOffered  = "resolution_offered"
	EventResolutionAccepted = "resolution_accepted"
	EventResolutionDeclined = "resolution_declined"
	EventEscalated          = "escalated"
	EventEscalationClaimed  = "escalation_claimed"
	EventClosed             = "closed"
	EventMessagePosted      = "message_posted"
)

// InitialStatus returns the initial status for a new issue.
func InitialStatus() Status {
	return StatusOpen
}

// Open constructs a new issue from validated intake data.
// The caller must have checked CanOpen.
func Open(id string, req OpenRequest, now time.Time) (Issue, []effects.Effect) {
	issueType, _ := ParseType(req.Type)
	desired, _ := ParseResolutionType(req.DesiredResolution)

	i := Issue{
		ID:                id,
		OrderID:           strings.TrimSpace(req.OrderID),
		CustomerID:        req.CustomerID,
		SupplierID:        strings.TrimSpace(req.SupplierID),
		Type:              issueType,
		AffectedItems:     DedupeItems(req.AffectedItems),
		Status:            InitialStatus(),
		Description:       strings.TrimSpace(req.Description),
		Evidence:          append([]string(nil), req.Evidence...),
		DesiredResolution: desired,
		EscalatedToAdmin:  false,
		OpenedAt:          now,
		UpdatedAt:         now,
		Version:           1,
	}
	return i, []effects.Effect{notify(EventOpened, i.ID)}
}

// BeginReview moves the issue to under_review.
func BeginReview(i Issue, actor Actor, now time.Time) (Issue, []effects.Effect) {
	next := touch(i, now)
	next.Status = StatusUnderReview
	return next, []effects.Effect{notify(EventReviewStarted, i.ID)}
}

// OfferResolution records an offer, replacing any earlier one, and waits on the customer.
// An offer made straight from open implicitly begins review.
func OfferResolution(i Issue, actor Actor, offer Offer, now time.Time) (Issue, []effects.Effect) {
	next := touch(i, now)
	offered := offer.Type
	next.ResolutionOffered = &offered
	next.ResolutionAmount = nil
	if offer.Amount != nil {
		amount := *offer.Amount
		next.ResolutionAmount = &amount
	}
	next.Status = StatusAwaitingResponse

	text := fmt.Sprintf("%s offered resolution: %s", describe(actor), offer.Type)
	if offer.Amount != nil {
		text += fmt.Sprintf(" (%s)", offer.Amount)
	}
	return next, []effects.Effect{
		systemMessage(i.ID, text),
		notify(EventResolutionOffered, i.ID),
	}
}

// AcceptResolution commits the current offer and resolves the issue.
func AcceptResolution(i Issue, actor Actor, now time.Time) (Issue, []effects.Effect) {
	next := touch(i, now)
	accepted := true
	next.ResolutionAccepted = &accepted
	next.ResolutionAcceptedAt = &now
	next.ResolvedAt = &now
	next.Status = StatusResolved

	text := fmt.Sprintf("%s accepted resolution: %s", describe(actor), *i.ResolutionOffered)
	if i.ResolutionAmount != nil {
		text += fmt.Sprintf(" (%s)", i.ResolutionAmount)
	}
	return next, []effects.Effect{
		systemMessage(i.ID, text),
		notify(EventResolutionAccepted, i.ID),
	}
}

// DeclineResolution returns the issue to review. The declined offer stays on
// the record until a new offer overwrites it.
func DeclineResolution(i Issue, actor Actor, now time.Time) (Issue, []effects.Effect) {
	next := touch(i, now)
	next.Status = StatusUnderReview

	text := fmt.Sprintf("%s declined resolution: %s", describe(actor), *i.ResolutionOffered)
	if i.ResolutionAmount != nil {
		text += fmt.Sprintf(" (%s)", i.ResolutionAmount)
	}
	return next, []effects.Effect{
		systemMessage(i.ID, text),
		notify(EventResolutionDeclined, i.ID),
	}
}

// Escalate flags the issue for admin attention. Status is unchanged.
func Escalate(i Issue, actor Actor, now time.Time) (Issue, []effects.Effect) {
	next := touch(i, now)
	next.EscalatedToAdmin = true
	return next, []effects.Effect{
		systemMessage(i.ID, fmt.Sprintf("%s escalated the issue to platform support", describe(actor))),
		notify(EventEscalated, i.ID),
	}
}

// Claim assigns the escalation to an admin. Storage performs the exclusive
// compare-and-set; this only computes the resulting state.
func Claim(i Issue, actor Actor, now time.Time) (Issue, []effects.Effect) {
	next := touch(i, now)
	next.AssignedAdminID = actor.ID
	return next, []effects.Effect{
		systemMessage(i.ID, fmt.Sprintf("%s is now handling this escalation", describe(actor))),
		notify(EventEscalationClaimed, i.ID),
		audit("escalation claimed", i.ID, actor),
	}
}

// ForceClose terminates the issue regardless of its other fields.
func ForceClose(i Issue, actor Actor, now time.Time) (Issue, []effects.Effect) {
	next := touch(i, now)
	next.Status = StatusClosed
	if next.ResolvedAt == nil {
		next.ResolvedAt = &now
	}
	return next, []effects.Effect{
		systemMessage(i.ID, fmt.Sprintf("%s closed the issue", describe(actor))),
		notify(EventClosed, i.ID),
		effects.LogEffect{Level: "warn", Message: "issue force-closed", Fields: map[string]any{
			"issue_id":        i.ID,
			"admin_id":        actor.ID,
			"previous_status": string(i.Status),
		}},
	}
}

// touch clones the issue and stamps the next version.
func touch(i Issue, now time.Time) Issue {
	next := i.Clone()
	next.UpdatedAt = now
	next.Version = i.Version + 1
	return next
}

func describe(a Actor) string {
	name := a.DisplayName
	if name == "" {
		name = a.ID
	}
	if a.Role == "" {
		return name
	}
	role := strings.ToUpper(string(a.Role[:1])) + string(a.Role[1:])
	return fmt.Sprintf("%s %s", role, name)
}

func systemMessage(issueID, text string) effects.Effect {
	return effects.SystemMessageEffect{IssueID: issueID, Text: text}
}

func notify(kind, issueID string) effects.Effect {
	return effects.NotifyEffect{Kind: kind, IssueID: issueID}
}

func audit(message, issueID string, actor Actor) effects.Effect {
	return effects.LogEffect{Level: "info", Message: message, Fields: map[string]any{"issue_id": issueID, "admin_id": actor.ID}}
}
