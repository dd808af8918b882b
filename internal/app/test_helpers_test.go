package app

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/example/disputedesk/internal/core/issue"
	"github.com/example/disputedesk/internal/ports/secondary"
)

// Ensure mocks implement the interfaces
var (
	_ secondary.IssueRepository    = (*mockIssueRepository)(nil)
	_ secondary.IdentityResolver   = (*mockIdentityResolver)(nil)
	_ secondary.Notifier           = (*mockNotifier)(nil)
	_ secondary.TransitionObserver = (*mockObserver)(nil)
)

// mockIssueRepository implements secondary.IssueRepository for testing.
// It copies records in and out so tests observe only what was saved.
type mockIssueRepository struct {
	mu       sync.Mutex
	issues   map[string]*secondary.IssueRecord
	messages map[string][]*secondary.MessageRecord
	saveErr  error
	// staleOnce makes the next SaveIssue report a concurrent modification.
	staleOnce bool
	// afterGet runs once, after the next GetIssue has read its copy.
	afterGet func()
}

func newMockIssueRepository() *mockIssueRepository {
	return &mockIssueRepository{
		issues:   make(map[string]*secondary.IssueRecord),
		messages: make(map[string][]*secondary.MessageRecord),
	}
}

func (m *mockIssueRepository) CreateIssue(ctx context.Context, r *secondary.IssueRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.issues[r.ID]; ok {
		return fmt.Errorf("issue %s already exists", r.ID)
	}
	cp := *r
	m.issues[r.ID] = &cp
	return nil
}

func (m *mockIssueRepository) GetIssue(ctx context.Context, id string) (*secondary.IssueRecord, error) {
	m.mu.Lock()
	r, ok := m.issues[id]
	var cp secondary.IssueRecord
	if ok {
		cp = *r
	}
	hook := m.afterGet
	m.afterGet = nil
	m.mu.Unlock()

	if hook != nil {
		hook()
	}
	if !ok {
		return nil, &issue.NotFoundError{Entity: "issue", ID: id}
	}
	return &cp, nil
}

func (m *mockIssueRepository) ListIssues(ctx context.Context, f secondary.IssueFilters) ([]*secondary.IssueRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*secondary.IssueRecord
	for _, r := range m.issues {
		if f.CustomerID != "" && r.CustomerID != f.CustomerID {
			continue
		}
		if f.SupplierID != "" && r.SupplierID != f.SupplierID {
			continue
		}
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockIssueRepository) SaveIssue(ctx context.Context, r *secondary.IssueRecord, expectedVersion int64, msgs []*secondary.MessageRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	stored, ok := m.issues[r.ID]
	if !ok {
		return &issue.NotFoundError{Entity: "issue", ID: r.ID}
	}
	if m.staleOnce || stored.Version != expectedVersion {
		m.staleOnce = false
		return &issue.ConcurrencyConflictError{IssueID: r.ID, ExpectedVersion: expectedVersion}
	}
	cp := *r
	m.issues[r.ID] = &cp
	for _, msg := range msgs {
		m.appendLocked(msg)
	}
	return nil
}

func (m *mockIssueRepository) ClaimEscalation(ctx context.Context, issueID, adminID string, at time.Time, msg *secondary.MessageRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.issues[issueID]
	if !ok {
		return &issue.NotFoundError{Entity: "issue", ID: issueID}
	}
	if !r.EscalatedToAdmin || r.AssignedAdminID != "" || r.Status == "resolved" || r.Status == "closed" {
		return secondary.ClaimRejection(r)
	}
	r.AssignedAdminID = adminID
	r.UpdatedAt = at
	r.Version++
	if msg != nil {
		m.appendLocked(msg)
	}
	return nil
}

func (m *mockIssueRepository) ListEscalationQueue(ctx context.Context, limit int) ([]*secondary.IssueRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*secondary.IssueRecord
	for _, r := range m.issues {
		if r.EscalatedToAdmin && r.AssignedAdminID == "" {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OpenedAt.Before(out[j].OpenedAt) })
	return out, nil
}

func (m *mockIssueRepository) AppendMessage(ctx context.Context, msg *secondary.MessageRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.issues[msg.IssueID]
	if !ok {
		return &issue.NotFoundError{Entity: "issue", ID: msg.IssueID}
	}
	if err := secondary.MessageRejection(r.ID, r.Status); err != nil {
		return err
	}
	m.appendLocked(msg)
	return nil
}

func (m *mockIssueRepository) appendLocked(msg *secondary.MessageRecord) {
	msg.Seq = int64(len(m.messages[msg.IssueID]) + 1)
	cp := *msg
	m.messages[msg.IssueID] = append(m.messages[msg.IssueID], &cp)
}

func (m *mockIssueRepository) ListMessages(ctx context.Context, issueID string) ([]*secondary.MessageRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*secondary.MessageRecord, 0, len(m.messages[issueID]))
	for _, msg := range m.messages[issueID] {
		cp := *msg
		out = append(out, &cp)
	}
	return out, nil
}

func (m *mockIssueRepository) Ping(ctx context.Context) error { return nil }

func (m *mockIssueRepository) countSystemMessages(issueID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, msg := range m.messages[issueID] {
		if msg.SenderType == "system" {
			n++
		}
	}
	return n
}

// mockIdentityResolver implements secondary.IdentityResolver for testing.
type mockIdentityResolver struct {
	actors map[string]*secondary.ActorRecord
}

func (m *mockIdentityResolver) ResolveActor(ctx context.Context, actorID string) (*secondary.ActorRecord, error) {
	a, ok := m.actors[actorID]
	if !ok {
		return nil, &issue.NotFoundError{Entity: "actor", ID: actorID}
	}
	return a, nil
}

// mockNotifier implements secondary.Notifier for testing.
type mockNotifier struct {
	mu     sync.Mutex
	events []secondary.NotificationEvent
	err    error
}

func (m *mockNotifier) Emit(ctx context.Context, event secondary.NotificationEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, event)
	return nil
}

func (m *mockNotifier) kinds() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.events))
	for i, e := range m.events {
		out[i] = e.Kind
	}
	return out
}

// mockObserver implements secondary.TransitionObserver for testing.
type mockObserver struct {
	mu       sync.Mutex
	outcomes map[string]int
}

func (m *mockObserver) ObserveTransition(op, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.outcomes == nil {
		m.outcomes = make(map[string]int)
	}
	m.outcomes[op+"/"+outcome]++
}

func (m *mockObserver) count(op, outcome string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.outcomes[op+"/"+outcome]
}

const (
	testCustomer = "CUST-001"
	testSupplier = "SUPP-001"
	testAdmin    = "ADM-001"
	testAdmin2   = "ADM-002"
	testOutsider = "CUST-999"
)

// testHarness wires all three services over shared mocks.
type testHarness struct {
	repo        *mockIssueRepository
	identity    *mockIdentityResolver
	notifier    *mockNotifier
	observer    *mockObserver
	issues      *IssueServiceImpl
	messages    *MessageServiceImpl
	escalations *EscalationServiceImpl
	clock       *fakeClock
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()
	repo := newMockIssueRepository()
	identity := &mockIdentityResolver{actors: map[string]*secondary.ActorRecord{
		testCustomer: {ID: testCustomer, Role: "customer", DisplayName: "Ada"},
		testSupplier: {ID: testSupplier, Role: "supplier", DisplayName: "Acme"},
		testAdmin:    {ID: testAdmin, Role: "admin", DisplayName: "Grace"},
		testAdmin2:   {ID: testAdmin2, Role: "admin", DisplayName: "Linus"},
		testOutsider: {ID: testOutsider, Role: "customer", DisplayName: "Eve"},
	}}
	notifier := &mockNotifier{}
	observer := &mockObserver{}
	clock := &fakeClock{now: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)}

	var seq int
	var seqMu sync.Mutex
	newID := func(prefix string) string {
		seqMu.Lock()
		defer seqMu.Unlock()
		seq++
		return fmt.Sprintf("%s-%03d", prefix, seq)
	}

	wf := NewWorkflow(repo, identity, NewEffectExecutor(notifier, nil),
		WithClock(clock.Now),
		WithIDGenerator(newID),
		WithObserver(observer),
	)
	return &testHarness{
		repo:        repo,
		identity:    identity,
		notifier:    notifier,
		observer:    observer,
		issues:      NewIssueService(wf),
		messages:    NewMessageService(wf),
		escalations: NewEscalationService(wf),
		clock:       clock,
	}
}

// seedIssue stores an issue directly, bypassing intake.
func (h *testHarness) seedIssue(t *testing.T, id string, mutate func(*secondary.IssueRecord)) {
	t.Helper()
	r := &secondary.IssueRecord{
		ID:                id,
		OrderID:           "ORD-001",
		CustomerID:        testCustomer,
		SupplierID:        testSupplier,
		IssueType:         "damaged_item",
		AffectedItems:     []string{"LINE-1"},
		Status:            "open",
		Description:       "Box arrived crushed",
		DesiredResolution: "full_refund",
		OpenedAt:          time.Date(2026, 4, 30, 12, 0, 0, 0, time.UTC),
		UpdatedAt:         time.Date(2026, 4, 30, 12, 0, 0, 0, time.UTC),
		Version:           1,
	}
	if mutate != nil {
		mutate(r)
	}
	if err := h.repo.CreateIssue(context.Background(), r); err != nil {
		t.Fatalf("failed to seed issue: %v", err)
	}
}
