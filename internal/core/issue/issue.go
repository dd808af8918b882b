// Package issue contains the pure business logic for dispute issues.
// This is part of the Functional Core - no I/O, only pure functions.
package issue

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Status represents the possible states of an issue.
type Status string

const (
	StatusOpen             Status = "open"
	StatusUnderReview      Status = "under_review"
	StatusAwaitingResponse Status = "awaiting_response"
	StatusResolved         Status = "resolved"
	StatusClosed           Status = "closed"
)

// Terminal reports whether no further mutating operations are accepted.
func (s Status) Terminal() bool {
	return s == StatusResolved || s == StatusClosed
}

// ParseStatus converts a raw value into a Status, rejecting unknown values.
func ParseStatus(raw string) (Status, error) {
	switch s := Status(raw); s {
	case StatusOpen, StatusUnderReview, StatusAwaitingResponse, StatusResolved, StatusClosed:
		return s, nil
	}
	return "", &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", raw)}
}

// Role is the role an actor plays on the platform.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleSupplier Role = "supplier"
	RoleAdmin    Role = "admin"
)

// ParseRole converts a raw value into a Role, rejecting unknown values.
func ParseRole(raw string) (Role, error) {
	switch r := Role(raw); r {
	case RoleCustomer, RoleSupplier, RoleAdmin:
		return r, nil
	}
	return "", &ValidationError{Field: "role", Reason: fmt.Sprintf("unknown role %q", raw)}
}

// Type classifies the reported problem.
type Type string

const (
	TypeDamagedItem  Type = "damaged_item"
	TypeWrongItem    Type = "wrong_item"
	TypeMissingItem  Type = "missing_item"
	TypeLateDelivery Type = "late_delivery"
	TypeQualityIssue Type = "quality_issue"
	TypeOther        Type = "other"
)

// ParseType converts a raw value into an issue Type, rejecting unknown values.
func ParseType(raw string) (Type, error) {
	switch t := Type(raw); t {
	case TypeDamagedItem, TypeWrongItem, TypeMissingItem, TypeLateDelivery, TypeQualityIssue, TypeOther:
		return t, nil
	}
	return "", &ValidationError{Field: "issue_type", Reason: fmt.Sprintf("unknown issue type %q", raw)}
}

// ResolutionType is a remedy that can be desired by the customer or offered by the supplier.
type ResolutionType string

const (
	ResolutionFullRefund    ResolutionType = "full_refund"
	ResolutionPartialRefund ResolutionType = "partial_refund"
	ResolutionReplacement   ResolutionType = "replacement"
	ResolutionCredit        ResolutionType = "credit"
	ResolutionNoAction      ResolutionType = "no_action"
)

// ParseResolutionType converts a raw value into a ResolutionType, rejecting unknown values.
func ParseResolutionType(raw string) (ResolutionType, error) {
	switch r := ResolutionType(raw); r {
	case ResolutionFullRefund, ResolutionPartialRefund, ResolutionReplacement, ResolutionCredit, ResolutionNoAction:
		return r, nil
	}
	return "", &ValidationError{Field: "resolution_type", Reason: fmt.Sprintf("unknown resolution type %q", raw)}
}

// Money is an amount in minor units (cents) of a currency.
type Money struct {
	Currency string
	Amount   int64
}

// String renders the amount as major.minor followed by the currency code.
func (m Money) String() string {
	sign := ""
	amount := m.Amount
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, amount/100, amount%100, m.Currency)
}

// ParseCurrency normalizes a currency code to three upper-case ASCII letters.
func ParseCurrency(raw string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if !validCurrency(code) {
		return "", &ValidationError{Field: "currency", Reason: fmt.Sprintf("currency %q must be a 3-letter code", raw)}
	}
	return code, nil
}

func validCurrency(code string) bool {
	if len(code) != 3 {
		return false
	}
	for _, c := range code {
		if c < 'A' || c > 'Z' {
			return false
		}
	}
	return true
}

// ParseMoney parses a decimal amount such as "50" or "50.00" into minor units.
func ParseMoney(raw, currency string) (Money, error) {
	raw = strings.TrimSpace(raw)
	currency, err := ParseCurrency(currency)
	if err != nil {
		return Money{}, err
	}

	whole, frac, hasFrac := strings.Cut(raw, ".")
	if hasFrac && (len(frac) == 0 || len(frac) > 2) {
		return Money{}, &ValidationError{Field: "amount", Reason: fmt.Sprintf("amount %q must have at most two decimal places", raw)}
	}
	for len(frac) < 2 {
		frac += "0"
	}

	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return Money{}, &ValidationError{Field: "amount", Reason: fmt.Sprintf("amount %q is not a number", raw)}
	}
	cents, err := strconv.ParseInt(frac, 10, 64)
	if err != nil || cents < 0 {
		return Money{}, &ValidationError{Field: "amount", Reason: fmt.Sprintf("amount %q is not a number", raw)}
	}
	if strings.HasPrefix(whole, "-") {
		cents = -cents
	}
	return Money{Currency: currency, Amount: units*100 + cents}, nil
}

// Actor is a resolved identity performing an operation.
type Actor struct {
	ID          string
	Role        Role
	DisplayName string
}

// Issue is a customer-reported problem tied to an order.
// Nil pointer fields are unset.
type Issue struct {
	ID                   string
	OrderID              string
	CustomerID           string
	SupplierID           string
	Type                 Type
	AffectedItems        []string
	Status               Status
	Description          string
	Evidence             []string
	DesiredResolution    ResolutionType
	ResolutionOffered    *ResolutionType
	ResolutionAmount     *Money
	ResolutionAccepted   *bool
	ResolutionAcceptedAt *time.Time
	EscalatedToAdmin     bool
	AssignedAdminID      string // empty means unclaimed
	OpenedAt             time.Time
	ResolvedAt           *time.Time
	UpdatedAt            time.Time
	Version              int64
}

// IsTerminal reports whether the issue is resolved or closed.
func (i Issue) IsTerminal() bool {
	return i.Status.Terminal()
}

// Unclaimed reports whether the issue sits in the admin escalation queue.
func (i Issue) Unclaimed() bool {
	return i.EscalatedToAdmin && i.AssignedAdminID == ""
}

// Clone returns a deep copy so transitions never alias the caller's issue.
func (i Issue) Clone() Issue {
	c := i
	c.AffectedItems = slices.Clone(i.AffectedItems)
	c.Evidence = slices.Clone(i.Evidence)
	if i.ResolutionOffered != nil {
		v := *i.ResolutionOffered
		c.ResolutionOffered = &v
	}
	if i.ResolutionAmount != nil {
		v := *i.ResolutionAmount
		c.ResolutionAmount = &v
	}
	if i.ResolutionAccepted != nil {
		v := *i.ResolutionAccepted
		c.ResolutionAccepted = &v
	}
	if i.ResolutionAcceptedAt != nil {
		v := *i.ResolutionAcceptedAt
		c.ResolutionAcceptedAt = &v
	}
	if i.ResolvedAt != nil {
		v := *i.ResolvedAt
		c.ResolvedAt = &v
	}
	return c
}

// DedupeItems trims and deduplicates line-item references, preserving first occurrence order.
func DedupeItems(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" || seen[item] {
			continue
		}
		seen[item] = true
		out = append(out, item)
	}
	return out
}
