// Package sqlite contains SQLite implementations of repository interfaces.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/example/disputedesk/internal/core/issue"
	"github.com/example/disputedesk/internal/db"
	"github.com/example/disputedesk/internal/ports/secondary"
)

const issueColumns = `id, order_id, customer_id, supplier_id, issue_type, affected_items, status, description, evidence,
	desired_resolution, resolution_offered, resolution_amount, resolution_currency, resolution_accepted, resolution_accepted_at,
	escalated_to_admin, assigned_admin_id, opened_at, resolved_at, updated_at, version`

const messageColumns = `id, issue_id, seq, sender_id, sender_type, text, attachments, timestamp`

// IssueRepository implements secondary.IssueRepository with SQLite.
type IssueRepository struct {
	db *sql.DB
}

// NewIssueRepository creates a new SQLite issue repository.
func NewIssueRepository(db *sql.DB) *IssueRepository {
	return &IssueRepository{db: db}
}

// CreateIssue persists a new issue.
func (r *IssueRepository) CreateIssue(ctx context.Context, rec *secondary.IssueRecord) error {
	args, err := issueArgs(rec)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO issues (`+issueColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("failed to create issue: %w", err)
	}
	return nil
}

// GetIssue retrieves an issue by its ID.
func (r *IssueRepository) GetIssue(ctx context.Context, id string) (*secondary.IssueRecord, error) {
	rec, err := scanIssue(r.db.QueryRowContext(ctx, `SELECT `+issueColumns+` FROM issues WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &issue.NotFoundError{Entity: "issue", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get issue: %w", err)
	}
	return rec, nil
}

// ListIssues retrieves issues matching the given filters, newest first.
func (r *IssueRepository) ListIssues(ctx context.Context, filters secondary.IssueFilters) ([]*secondary.IssueRecord, error) {
	query := `SELECT ` + issueColumns + ` FROM issues WHERE 1=1`
	args := []any{}

	if filters.CustomerID != "" {
		query += " AND customer_id = ?"
		args = append(args, filters.CustomerID)
	}
	if filters.SupplierID != "" {
		query += " AND supplier_id = ?"
		args = append(args, filters.SupplierID)
	}
	if filters.Status != "" {
		query += " AND status = ?"
		args = append(args, filters.Status)
	}
	if filters.Escalated != nil {
		query += " AND escalated_to_admin = ?"
		args = append(args, *filters.Escalated)
	}

	query += " ORDER BY opened_at DESC, id DESC"
	if filters.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filters.Limit)
	}

	return r.queryIssues(ctx, "list issues", query, args...)
}

// ListEscalationQueue retrieves escalated issues with no assigned admin, oldest first.
func (r *IssueRepository) ListEscalationQueue(ctx context.Context, limit int) ([]*secondary.IssueRecord, error) {
	query := `SELECT ` + issueColumns + ` FROM issues
		WHERE escalated_to_admin = 1 AND assigned_admin_id IS NULL AND status NOT IN ('resolved', 'closed')
		ORDER BY opened_at ASC, id ASC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return r.queryIssues(ctx, "list escalation queue", query, args...)
}

func (r *IssueRepository) queryIssues(ctx context.Context, action, query string, args ...any) ([]*secondary.IssueRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to %s: %w", action, err)
	}
	defer rows.Close()

	var issues []*secondary.IssueRecord
	for rows.Next() {
		rec, err := scanIssue(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan issue: %w", err)
		}
		issues = append(issues, rec)
	}
	return issues, rows.Err()
}

// SaveIssue overwrites the issue if its stored version still equals expectedVersion,
// appending messages in the same transaction.
func (r *IssueRepository) SaveIssue(ctx context.Context, rec *secondary.IssueRecord, expectedVersion int64, messages []*secondary.MessageRecord) error {
	args, err := issueArgs(rec)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// args[0] is the id; the WHERE clause takes it again with the expected version.
	result, err := tx.ExecContext(ctx,
		`UPDATE issues SET id = ?, order_id = ?, customer_id = ?, supplier_id = ?, issue_type = ?, affected_items = ?, status = ?,
			description = ?, evidence = ?, desired_resolution = ?, resolution_offered = ?, resolution_amount = ?, resolution_currency = ?,
			resolution_accepted = ?, resolution_accepted_at = ?, escalated_to_admin = ?, assigned_admin_id = ?, opened_at = ?,
			resolved_at = ?, updated_at = ?, version = ?
		WHERE id = ? AND version = ?`,
		append(args, rec.ID, expectedVersion)...,
	)
	if err != nil {
		return fmt.Errorf("failed to update issue: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		if _, err := issueStatus(ctx, tx, rec.ID); err != nil {
			return err
		}
		return &issue.ConcurrencyConflictError{IssueID: rec.ID, ExpectedVersion: expectedVersion}
	}

	for _, msg := range messages {
		if err := insertMessage(ctx, tx, msg); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit issue update: %w", err)
	}
	return nil
}

// ClaimEscalation assigns adminID with a single conditional UPDATE.
// When no row matches, the current row is inspected to report why.
func (r *IssueRepository) ClaimEscalation(ctx context.Context, issueID, adminID string, at time.Time, message *secondary.MessageRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE issues SET assigned_admin_id = ?, updated_at = ?, version = version + 1
		WHERE id = ? AND escalated_to_admin = 1 AND assigned_admin_id IS NULL AND status NOT IN ('resolved', 'closed')`,
		adminID, db.FormatTime(at), issueID,
	)
	if err != nil {
		return fmt.Errorf("failed to claim escalation: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check claim result: %w", err)
	}
	if affected == 0 {
		current, err := scanIssue(tx.QueryRowContext(ctx, `SELECT `+issueColumns+` FROM issues WHERE id = ?`, issueID))
		if errors.Is(err, sql.ErrNoRows) {
			return &issue.NotFoundError{Entity: "issue", ID: issueID}
		}
		if err != nil {
			return fmt.Errorf("failed to inspect claimed issue: %w", err)
		}
		return secondary.ClaimRejection(current)
	}

	if message != nil {
		if err := insertMessage(ctx, tx, message); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit claim: %w", err)
	}
	return nil
}

// AppendMessage appends a message and assigns its per-issue sequence number.
func (r *IssueRepository) AppendMessage(ctx context.Context, msg *secondary.MessageRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	status, err := issueStatus(ctx, tx, msg.IssueID)
	if err != nil {
		return err
	}
	if err := secondary.MessageRejection(msg.IssueID, status); err != nil {
		return err
	}
	if err := insertMessage(ctx, tx, msg); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit message: %w", err)
	}
	return nil
}

// ListMessages retrieves an issue's thread ordered by timestamp, then sequence.
func (r *IssueRepository) ListMessages(ctx context.Context, issueID string) ([]*secondary.MessageRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+messageColumns+` FROM issue_messages WHERE issue_id = ? ORDER BY timestamp ASC, seq ASC`,
		issueID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var messages []*secondary.MessageRecord
	for rows.Next() {
		var (
			rec         secondary.MessageRecord
			attachments string
			timestamp   string
		)
		if err := rows.Scan(&rec.ID, &rec.IssueID, &rec.Seq, &rec.SenderID, &rec.SenderType, &rec.Text, &attachments, &timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		if rec.Attachments, err = decodeList(attachments); err != nil {
			return nil, fmt.Errorf("message %s: %w", rec.ID, err)
		}
		if rec.Timestamp, err = parseTime(timestamp); err != nil {
			return nil, fmt.Errorf("message %s: %w", rec.ID, err)
		}
		messages = append(messages, &rec)
	}
	return messages, rows.Err()
}

// Ping reports whether the database is reachable.
func (r *IssueRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func issueStatus(ctx context.Context, tx *sql.Tx, id string) (string, error) {
	var status string
	err := tx.QueryRowContext(ctx, "SELECT status FROM issues WHERE id = ?", id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", &issue.NotFoundError{Entity: "issue", ID: id}
	}
	if err != nil {
		return "", fmt.Errorf("failed to check issue: %w", err)
	}
	return status, nil
}

// insertMessage assigns the next sequence number inside tx and stores msg.
func insertMessage(ctx context.Context, tx *sql.Tx, msg *secondary.MessageRecord) error {
	var seq int64
	if err := tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(seq), 0) + 1 FROM issue_messages WHERE issue_id = ?", msg.IssueID,
	).Scan(&seq); err != nil {
		return fmt.Errorf("failed to allocate message sequence: %w", err)
	}

	attachments, err := encodeList(msg.Attachments)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO issue_messages (`+messageColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.IssueID, seq, msg.SenderID, msg.SenderType, msg.Text, attachments, db.FormatTime(msg.Timestamp),
	); err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	msg.Seq = seq
	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanIssue(row rowScanner) (*secondary.IssueRecord, error) {
	var (
		rec                secondary.IssueRecord
		affectedItems      string
		evidence           string
		resolutionOffered  sql.NullString
		resolutionAmount   sql.NullInt64
		resolutionCurrency sql.NullString
		resolutionAccepted sql.NullBool
		acceptedAt         sql.NullString
		assignedAdminID    sql.NullString
		openedAt           string
		resolvedAt         sql.NullString
		updatedAt          string
	)
	err := row.Scan(&rec.ID, &rec.OrderID, &rec.CustomerID, &rec.SupplierID, &rec.IssueType, &affectedItems, &rec.Status,
		&rec.Description, &evidence, &rec.DesiredResolution, &resolutionOffered, &resolutionAmount, &resolutionCurrency,
		&resolutionAccepted, &acceptedAt, &rec.EscalatedToAdmin, &assignedAdminID, &openedAt, &resolvedAt, &updatedAt, &rec.Version)
	if err != nil {
		return nil, err
	}

	if rec.AffectedItems, err = decodeList(affectedItems); err != nil {
		return nil, fmt.Errorf("issue %s affected items: %w", rec.ID, err)
	}
	if rec.Evidence, err = decodeList(evidence); err != nil {
		return nil, fmt.Errorf("issue %s evidence: %w", rec.ID, err)
	}
	rec.ResolutionOffered = resolutionOffered.String
	if resolutionAmount.Valid {
		amount := resolutionAmount.Int64
		rec.ResolutionAmount = &amount
	}
	rec.ResolutionCurrency = resolutionCurrency.String
	if resolutionAccepted.Valid {
		accepted := resolutionAccepted.Bool
		rec.ResolutionAccepted = &accepted
	}
	rec.AssignedAdminID = assignedAdminID.String

	if rec.OpenedAt, err = parseTime(openedAt); err != nil {
		return nil, fmt.Errorf("issue %s opened_at: %w", rec.ID, err)
	}
	if rec.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("issue %s updated_at: %w", rec.ID, err)
	}
	if rec.ResolutionAcceptedAt, err = parseNullTime(acceptedAt); err != nil {
		return nil, fmt.Errorf("issue %s resolution_accepted_at: %w", rec.ID, err)
	}
	if rec.ResolvedAt, err = parseNullTime(resolvedAt); err != nil {
		return nil, fmt.Errorf("issue %s resolved_at: %w", rec.ID, err)
	}
	return &rec, nil
}

// issueArgs returns column values in issueColumns order.
func issueArgs(rec *secondary.IssueRecord) ([]any, error) {
	affectedItems, err := encodeList(rec.AffectedItems)
	if err != nil {
		return nil, err
	}
	evidence, err := encodeList(rec.Evidence)
	if err != nil {
		return nil, err
	}

	var (
		resolutionOffered  sql.NullString
		resolutionAmount   sql.NullInt64
		resolutionCurrency sql.NullString
		resolutionAccepted sql.NullBool
		assignedAdminID    sql.NullString
	)
	if rec.ResolutionOffered != "" {
		resolutionOffered = sql.NullString{String: rec.ResolutionOffered, Valid: true}
	}
	if rec.ResolutionAmount != nil {
		resolutionAmount = sql.NullInt64{Int64: *rec.ResolutionAmount, Valid: true}
		resolutionCurrency = sql.NullString{String: rec.ResolutionCurrency, Valid: true}
	}
	if rec.ResolutionAccepted != nil {
		resolutionAccepted = sql.NullBool{Bool: *rec.ResolutionAccepted, Valid: true}
	}
	if rec.AssignedAdminID != "" {
		assignedAdminID = sql.NullString{String: rec.AssignedAdminID, Valid: true}
	}

	return []any{
		rec.ID, rec.OrderID, rec.CustomerID, rec.SupplierID, rec.IssueType, affectedItems, rec.Status,
		rec.Description, evidence, rec.DesiredResolution, resolutionOffered, resolutionAmount, resolutionCurrency,
		resolutionAccepted, formatNullTime(rec.ResolutionAcceptedAt), rec.EscalatedToAdmin, assignedAdminID,
		db.FormatTime(rec.OpenedAt), formatNullTime(rec.ResolvedAt), db.FormatTime(rec.UpdatedAt), rec.Version,
	}, nil
}

func encodeList(items []string) (string, error) {
	if items == nil {
		items = []string{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("failed to encode list: %w", err)
	}
	return string(b), nil
}

func decodeList(raw string) ([]string, error) {
	var items []string
	if raw == "" {
		return items, nil
	}
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("failed to decode list: %w", err)
	}
	return items, nil
}

func parseTime(raw string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func parseNullTime(raw sql.NullString) (*time.Time, error) {
	if !raw.Valid {
		return nil, nil
	}
	t, err := parseTime(raw.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func formatNullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: db.FormatTime(*t), Valid: true}
}

// Ensure IssueRepository implements the interface
var _ secondary.IssueRepository = (*IssueRepository)(nil)
