package primary

import (
	"context"
	"time"
)

// MessageService defines the primary port for issue thread operations.
type MessageService interface {
	// AddMessage appends a party's message to an issue thread.
	AddMessage(ctx context.Context, req AddMessageRequest) (*Message, error)

	// ListMessages returns an issue's thread, oldest first.
	ListMessages(ctx context.Context, issueID, actorID string) ([]*Message, error)
}

// Message represents a thread message at the port boundary.
type Message struct {
	ID          string    `json:"message_id"`
	IssueID     string    `json:"issue_id"`
	SenderID    string    `json:"sender_id"`
	SenderType  string    `json:"sender_type"` // customer, supplier, admin, system
	Text        string    `json:"text"`
	Attachments []string  `json:"attachments"`
	Timestamp   time.Time `json:"timestamp"`
	Seq         int64     `json:"seq"`
}

// AddMessageRequest contains the parameters for posting a message.
type AddMessageRequest struct {
	IssueID     string   `json:"-"`
	ActorID     string   `json:"-"`
	Text        string   `json:"text"`
	Attachments []string `json:"attachments"`
}
