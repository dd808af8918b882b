package issue

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Op names an operation on an issue.
type Op string

const (
	OpOpen              Op = "open"
	OpBeginReview       Op = "begin_review"
	OpOfferResolution   Op = "offer_resolution"
	OpAcceptResolution  Op = "accept_resolution"
	OpDeclineResolution Op = "decline_resolution"
	OpEscalate          Op = "escalate"
	OpForceClose        Op = "force_close"
	OpAddMessage        Op = "add_message"
	OpClaim             Op = "claim"
	OpView              Op = "view"
	OpListEscalations   Op = "list_escalations"
)

// MaxMessageLength bounds message text, counted in runes after trimming.
const MaxMessageLength = 4000

// GuardResult represents the outcome of a guard evaluation.
type GuardResult struct {
	Allowed bool
	Reason  string
	Err     error // typed rejection, nil when allowed
}

// Error converts the guard result to an error if not allowed.
func (r GuardResult) Error() error {
	if r.Allowed {
		return nil
	}
	if r.Err != nil {
		return r.Err
	}
	return fmt.Errorf("%s", r.Reason)
}

func allow() GuardResult {
	return GuardResult{Allowed: true}
}

func deny(err error) GuardResult {
	return GuardResult{Allowed: false, Reason: err.Error(), Err: err}
}

// TransitionContext provides context for issue operation guards.
type TransitionContext struct {
	Issue Issue
	Actor Actor
}

func (c TransitionContext) unauthorized(op Op, reason string) GuardResult {
	return deny(&AuthorizationError{Op: op, ActorID: c.Actor.ID, Role: c.Actor.Role, Reason: reason})
}

func (c TransitionContext) invalid(op Op, reason string) GuardResult {
	return deny(&InvalidTransitionError{Op: op, Status: c.Issue.Status, Reason: reason})
}

func (c TransitionContext) closed(op Op) GuardResult {
	return deny(&ClosedIssueError{Op: op, IssueID: c.Issue.ID, Status: c.Issue.Status})
}

func (c TransitionContext) isCustomer() bool {
	return c.Actor.Role == RoleCustomer && c.Actor.ID == c.Issue.CustomerID
}

func (c TransitionContext) isSupplier() bool {
	return c.Actor.Role == RoleSupplier && c.Actor.ID == c.Issue.SupplierID
}

func (c TransitionContext) isAdmin() bool {
	return c.Actor.Role == RoleAdmin
}

// OpenRequest carries the customer's intake data for a new issue.
type OpenRequest struct {
	OrderID           string
	CustomerID        string
	SupplierID        string
	Type              string
	AffectedItems     []string
	Description       string
	Evidence          []string
	DesiredResolution string
}

// CanOpen evaluates whether an issue can be opened.
// Rules:
// - Actor must be a customer opening on their own behalf
// - Order and supplier must be named
// - Issue type and desired resolution must be known values
// - At least one affected item and a description are required
func CanOpen(actor Actor, req OpenRequest) GuardResult {
	if actor.Role != RoleCustomer || actor.ID != req.CustomerID {
		return deny(&AuthorizationError{Op: OpOpen, ActorID: actor.ID, Role: actor.Role, Reason: "only the ordering customer can open an issue"})
	}
	if strings.TrimSpace(req.OrderID) == "" {
		return deny(&ValidationError{Field: "order_id", Reason: "order is required"})
	}
	if strings.TrimSpace(req.SupplierID) == "" {
		return deny(&ValidationError{Field: "supplier_id", Reason: "supplier is required"})
	}
	if _, err := ParseType(req.Type); err != nil {
		return deny(err)
	}
	if _, err := ParseResolutionType(req.DesiredResolution); err != nil {
		return deny(err)
	}
	if len(DedupeItems(req.AffectedItems)) == 0 {
		return deny(&ValidationError{Field: "affected_items", Reason: "at least one affected item is required"})
	}
	if strings.TrimSpace(req.Description) == "" {
		return deny(&ValidationError{Field: "description", Reason: "description must not be blank"})
	}
	return allow()
}

// CanView evaluates whether an actor may read an issue and its thread.
// Rules:
// - Actor must be the issue's customer, its supplier, or an admin
func CanView(ctx TransitionContext) GuardResult {
	if !ctx.isCustomer() && !ctx.isSupplier() && !ctx.isAdmin() {
		return ctx.unauthorized(OpView, "only the issue's customer, supplier, or an admin can view it")
	}
	return allow()
}

// CanBeginReview evaluates whether review can begin.
// Rules:
// - Actor must be the issue's supplier or an admin
// - Status must be "open" or "awaiting_response"
func CanBeginReview(ctx TransitionContext) GuardResult {
	if !ctx.isSupplier() && !ctx.isAdmin() {
		return ctx.unauthorized(OpBeginReview, "only the issue's supplier or an admin can begin review")
	}
	if ctx.Issue.Status != StatusOpen && ctx.Issue.Status != StatusAwaitingResponse {
		return ctx.invalid(OpBeginReview, "review can only begin from open or awaiting_response")
	}
	return allow()
}

// Offer is a proposed remedy with an optional amount.
type Offer struct {
	Type   ResolutionType
	Amount *Money
}

// CanOfferResolution evaluates whether a resolution can be offered.
// Rules:
// - Actor must be the issue's supplier or an admin
// - Status must not be terminal
// - Amount, when given, must be positive in a 3-letter upper-case currency
// - partial_refund and credit need an amount; replacement and no_action take none
func CanOfferResolution(ctx TransitionContext, offer Offer) GuardResult {
	if !ctx.isSupplier() && !ctx.isAdmin() {
		return ctx.unauthorized(OpOfferResolution, "only the issue's supplier or an admin can offer a resolution")
	}
	if ctx.Issue.IsTerminal() {
		return ctx.invalid(OpOfferResolution, "issue is already "+string(ctx.Issue.Status))
	}
	if _, err := ParseResolutionType(string(offer.Type)); err != nil {
		return deny(err)
	}
	if offer.Amount != nil && offer.Amount.Amount <= 0 {
		return deny(&ValidationError{Field: "amount", Reason: fmt.Sprintf("resolution amount must be positive (got %s)", offer.Amount)})
	}
	if offer.Amount != nil && !validCurrency(offer.Amount.Currency) {
		return deny(&ValidationError{Field: "currency", Reason: fmt.Sprintf("currency %q must be a 3-letter code", offer.Amount.Currency)})
	}
	switch offer.Type {
	case ResolutionPartialRefund, ResolutionCredit:
		if offer.Amount == nil {
			return deny(&ValidationError{Field: "amount", Reason: fmt.Sprintf("%s requires an amount", offer.Type)})
		}
	case ResolutionReplacement, ResolutionNoAction:
		if offer.Amount != nil {
			return deny(&ValidationError{Field: "amount", Reason: fmt.Sprintf("%s does not take an amount", offer.Type)})
		}
	}
	return allow()
}

// CanAcceptResolution evaluates whether the current offer can be accepted.
// Rules:
// - Actor must be the issue's customer
// - Status must not be terminal
// - An offer must be on the table
func CanAcceptResolution(ctx TransitionContext) GuardResult {
	if !ctx.isCustomer() {
		return ctx.unauthorized(OpAcceptResolution, "only the issue's customer can accept a resolution")
	}
	if ctx.Issue.IsTerminal() {
		return ctx.invalid(OpAcceptResolution, "issue is already "+string(ctx.Issue.Status))
	}
	if ctx.Issue.ResolutionOffered == nil {
		return ctx.invalid(OpAcceptResolution, "no resolution has been offered")
	}
	return allow()
}

// CanDeclineResolution evaluates whether the current offer can be declined.
// Rules:
// - Actor must be the issue's customer
// - Status must be "awaiting_response" with an offer on the table
func CanDeclineResolution(ctx TransitionContext) GuardResult {
	if !ctx.isCustomer() {
		return ctx.unauthorized(OpDeclineResolution, "only the issue's customer can decline a resolution")
	}
	if ctx.Issue.Status != StatusAwaitingResponse {
		return ctx.invalid(OpDeclineResolution, "only an offer awaiting response can be declined")
	}
	if ctx.Issue.ResolutionOffered == nil {
		return ctx.invalid(OpDeclineResolution, "no resolution has been offered")
	}
	return allow()
}

// CanEscalate evaluates whether the issue can be escalated to an admin.
// Rules:
// - Actor must be the issue's customer
// - Issue must not already be escalated
// - Status must be "open"
func CanEscalate(ctx TransitionContext) GuardResult {
	if !ctx.isCustomer() {
		return ctx.unauthorized(OpEscalate, "only the issue's customer can escalate")
	}
	if ctx.Issue.EscalatedToAdmin {
		return ctx.invalid(OpEscalate, "already escalated")
	}
	if ctx.Issue.Status != StatusOpen {
		return ctx.invalid(OpEscalate, "only open issues can be escalated")
	}
	return allow()
}

// CanForceClose evaluates whether the issue can be administratively closed.
// Rules:
// - Actor must be an admin
func CanForceClose(ctx TransitionContext) GuardResult {
	if !ctx.isAdmin() {
		return ctx.unauthorized(OpForceClose, "only an admin can force close an issue")
	}
	return allow()
}

// CanClaim evaluates whether an admin can claim the issue's escalation.
// The exclusive compare-and-set itself happens in storage; this guard only
// rejects claims that could never succeed.
// Rules:
// - Actor must be an admin
// - Issue must not be terminal
// - Issue must be escalated
// - Issue must not already be claimed
func CanClaim(ctx TransitionContext) GuardResult {
	if !ctx.isAdmin() {
		return ctx.unauthorized(OpClaim, "only an admin can claim an escalation")
	}
	if ctx.Issue.IsTerminal() {
		return ctx.closed(OpClaim)
	}
	if !ctx.Issue.EscalatedToAdmin {
		return ctx.invalid(OpClaim, "issue has not been escalated")
	}
	if !ctx.Issue.Unclaimed() {
		return deny(&AlreadyClaimedError{IssueID: ctx.Issue.ID, ClaimedBy: ctx.Issue.AssignedAdminID})
	}
	return allow()
}

// CanAddMessage evaluates whether an actor can post to the issue's thread.
// Rules:
// - Actor must be the issue's customer, its supplier, or an admin
// - Issue must not be terminal
// - Text must be non-blank and at most MaxMessageLength runes
func CanAddMessage(ctx TransitionContext, text string) GuardResult {
	if !ctx.isCustomer() && !ctx.isSupplier() && !ctx.isAdmin() {
		return ctx.unauthorized(OpAddMessage, "only the issue's customer, supplier, or an admin can post messages")
	}
	if ctx.Issue.IsTerminal() {
		return ctx.closed(OpAddMessage)
	}
	return ValidateMessageText(text)
}

// ValidateMessageText checks message text bounds.
func ValidateMessageText(text string) GuardResult {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return deny(&ValidationError{Field: "text", Reason: "message text must not be blank"})
	}
	if n := utf8.RuneCountInString(trimmed); n > MaxMessageLength {
		return deny(&ValidationError{Field: "text", Reason: fmt.Sprintf("message text is %d characters (max %d)", n, MaxMessageLength)})
	}
	return allow()
}

// CanListEscalations evaluates whether an actor may see the admin escalation queue.
// Rules:
// - Actor must be an admin
func CanListEscalations(actor Actor) GuardResult {
	if actor.Role != RoleAdmin {
		return deny(&AuthorizationError{Op: OpListEscalations, ActorID: actor.ID, Role: actor.Role, Reason: "only admins can view the escalation queue"})
	}
	return allow()
}
