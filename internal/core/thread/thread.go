// Package thread contains the pure logic for an issue's message log.
// Messages are append-only and totally ordered by timestamp, then insertion sequence.
package thread

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/example/disputedesk/internal/core/issue"
)

// SenderType identifies who authored a message.
type SenderType string

const (
	SenderCustomer SenderType = "customer"
	SenderSupplier SenderType = "supplier"
	SenderAdmin    SenderType = "admin"
	SenderSystem   SenderType = "system"
)

// SystemSenderID is the sender id recorded on messages emitted by transitions.
const SystemSenderID = "system"

// ParseSenderType converts a raw value into a SenderType, rejecting unknown values.
func ParseSenderType(raw string) (SenderType, error) {
	switch s := SenderType(raw); s {
	case SenderCustomer, SenderSupplier, SenderAdmin, SenderSystem:
		return s, nil
	}
	return "", &issue.ValidationError{Field: "sender_type", Reason: fmt.Sprintf("unknown sender type %q", raw)}
}

// SenderTypeForRole maps an actor role onto the sender type of its messages.
func SenderTypeForRole(role issue.Role) SenderType {
	switch role {
	case issue.RoleCustomer:
		return SenderCustomer
	case issue.RoleSupplier:
		return SenderSupplier
	case issue.RoleAdmin:
		return SenderAdmin
	}
	return SenderSystem
}

// Message is one entry in an issue's thread.
type Message struct {
	ID          string
	IssueID     string
	SenderID    string
	SenderType  SenderType
	Text        string
	Attachments []string
	Timestamp   time.Time
	Seq         int64 // per-issue insertion order, assigned by storage
}

// New builds a message authored by an actor. The caller must have checked issue.CanAddMessage.
func New(id, issueID string, actor issue.Actor, text string, attachments []string, now time.Time) Message {
	return Message{
		ID:          id,
		IssueID:     issueID,
		SenderID:    actor.ID,
		SenderType:  SenderTypeForRole(actor.Role),
		Text:        strings.TrimSpace(text),
		Attachments: cleanAttachments(attachments),
		Timestamp:   now,
	}
}

// NewSystem builds a message emitted by the state machine.
func NewSystem(id, issueID, text string, now time.Time) Message {
	return Message{
		ID:         id,
		IssueID:    issueID,
		SenderID:   SystemSenderID,
		SenderType: SenderSystem,
		Text:       text,
		Timestamp:  now,
	}
}

// Less reports whether a sorts before b.
func Less(a, b Message) bool {
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.Before(b.Timestamp)
	}
	return a.Seq < b.Seq
}

// Sort orders messages oldest first, ties broken by insertion sequence.
func Sort(msgs []Message) {
	sort.SliceStable(msgs, func(i, j int) bool { return Less(msgs[i], msgs[j]) })
}

// IsOrdered reports whether msgs is non-decreasing in timestamp with increasing
// sequence among equal timestamps.
func IsOrdered(msgs []Message) bool {
	for i := 1; i < len(msgs); i++ {
		if Less(msgs[i], msgs[i-1]) {
			return false
		}
	}
	return true
}

// cleanAttachments drops blank references. Attachments are otherwise opaque.
func cleanAttachments(refs []string) []string {
	var out []string
	for _, ref := range refs {
		if ref = strings.TrimSpace(ref); ref != "" {
			out = append(out, ref)
		}
	}
	return out
}
