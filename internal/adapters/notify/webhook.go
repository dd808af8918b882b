package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/example/disputedesk/internal/ports/secondary"
)

// ErrQueueFull is returned by Emit when the delivery queue has no room.
var ErrQueueFull = errors.New("notification queue full")

// ErrClosed is returned by Emit after Close.
var ErrClosed = errors.New("notifier closed")

const (
	defaultQueueSize  = 256
	defaultMaxElapsed = 30 * time.Second
)

// DeliveryObserver is told the outcome of each delivery: "delivered", "failed" or "dropped".
type DeliveryObserver func(kind, outcome string)

// WebhookNotifier POSTs events as JSON to a single endpoint from a background worker.
// Transient failures (network errors, 429, 5xx) are retried with exponential backoff.
type WebhookNotifier struct {
	url      string
	client   *http.Client
	logger   *slog.Logger
	observe  DeliveryObserver
	newBO    func() backoff.BackOff
	queue    chan secondary.NotificationEvent
	done     chan struct{}
	mu       sync.RWMutex
	closed   bool
	stopOnce sync.Once
}

// WebhookOption customizes a WebhookNotifier.
type WebhookOption func(*WebhookNotifier)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) WebhookOption {
	return func(n *WebhookNotifier) { n.client = c }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) WebhookOption {
	return func(n *WebhookNotifier) { n.logger = l }
}

// WithDeliveryObserver reports delivery outcomes, e.g. to metrics.
func WithDeliveryObserver(o DeliveryObserver) WebhookOption {
	return func(n *WebhookNotifier) { n.observe = o }
}

// WithQueueSize sets the buffered queue capacity.
func WithQueueSize(size int) WebhookOption {
	return func(n *WebhookNotifier) { n.queue = make(chan secondary.NotificationEvent, size) }
}

// WithBackoff overrides the retry policy. The factory is called once per delivery.
func WithBackoff(newBO func() backoff.BackOff) WebhookOption {
	return func(n *WebhookNotifier) { n.newBO = newBO }
}

// NewWebhookNotifier creates the notifier and starts its delivery worker.
func NewWebhookNotifier(url string, opts ...WebhookOption) *WebhookNotifier {
	n := &WebhookNotifier{
		url:     url,
		client:  &http.Client{Timeout: 5 * time.Second},
		logger:  slog.Default(),
		observe: func(string, string) {},
		newBO: func() backoff.BackOff {
			bo := backoff.NewExponentialBackOff()
			bo.MaxElapsedTime = defaultMaxElapsed
			return bo
		},
		queue: make(chan secondary.NotificationEvent, defaultQueueSize),
		done:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(n)
	}
	go n.run()
	return n
}

// Emit queues the event for delivery without blocking.
func (n *WebhookNotifier) Emit(ctx context.Context, event secondary.NotificationEvent) error {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		return ErrClosed
	}
	select {
	case n.queue <- event:
		return nil
	default:
		n.observe(event.Kind, "dropped")
		return ErrQueueFull
	}
}

// Close stops accepting events and waits for queued ones to be delivered or ctx to end.
func (n *WebhookNotifier) Close(ctx context.Context) error {
	n.stopOnce.Do(func() {
		n.mu.Lock()
		n.closed = true
		close(n.queue)
		n.mu.Unlock()
	})
	select {
	case <-n.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (n *WebhookNotifier) run() {
	defer close(n.done)
	for event := range n.queue {
		if err := n.deliver(context.Background(), event); err != nil {
			n.observe(event.Kind, "failed")
			n.logger.Warn("webhook delivery failed", "kind", event.Kind, "issue_id", event.IssueID, "error", err)
			continue
		}
		n.observe(event.Kind, "delivered")
	}
}

type webhookPayload struct {
	Kind       string    `json:"kind"`
	IssueID    string    `json:"issue_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (n *WebhookNotifier) deliver(ctx context.Context, event secondary.NotificationEvent) error {
	body, err := json.Marshal(webhookPayload{Kind: event.Kind, IssueID: event.IssueID, OccurredAt: event.OccurredAt})
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	return backoff.Retry(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := n.client.Do(req)
		if err != nil {
			return err
		}
		resp.Body.Close()

		switch {
		case resp.StatusCode < 300:
			return nil
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return fmt.Errorf("webhook returned %d", resp.StatusCode)
		default:
			return backoff.Permanent(fmt.Errorf("webhook rejected notification: %d", resp.StatusCode))
		}
	}, backoff.WithContext(n.newBO(), ctx))
}

// Ensure WebhookNotifier implements the interface
var _ secondary.Notifier = (*WebhookNotifier)(nil)
