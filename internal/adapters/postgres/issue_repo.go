// Package postgres implements the issue repository on PostgreSQL through pgx's database/sql driver.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/example/disputedesk/internal/core/issue"
	"github.com/example/disputedesk/internal/ports/secondary"
)

const pgErrUniqueViolation = "23505"

const issueColumns = `id, order_id, customer_id, supplier_id, issue_type, affected_items, status, description, evidence,
	desired_resolution, resolution_offered, resolution_amount, resolution_currency, resolution_accepted, resolution_accepted_at,
	escalated_to_admin, assigned_admin_id, opened_at, resolved_at, updated_at, version`

const messageColumns = `id, issue_id, seq, sender_id, sender_type, text, attachments, ts`

// IssueRepository implements secondary.IssueRepository with PostgreSQL.
type IssueRepository struct {
	db *sql.DB
}

// Open connects to dsn with pooled defaults.
func Open(dsn string) (*IssueRepository, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &IssueRepository{db: db}, nil
}

// NewIssueRepository wraps an existing connection pool.
func NewIssueRepository(db *sql.DB) *IssueRepository {
	return &IssueRepository{db: db}
}

// Close releases the pool.
func (r *IssueRepository) Close() error { return r.db.Close() }

// CreateIssue persists a new issue.
func (r *IssueRepository) CreateIssue(ctx context.Context, rec *secondary.IssueRecord) error {
	args, err := issueArgs(rec)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO issues (`+issueColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`,
		args...,
	)
	if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
		return fmt.Errorf("failed to create issue: %s already exists", rec.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to create issue: %w", err)
	}
	return nil
}

// GetIssue retrieves an issue by its ID.
func (r *IssueRepository) GetIssue(ctx context.Context, id string) (*secondary.IssueRecord, error) {
	rec, err := scanIssue(r.db.QueryRowContext(ctx, `SELECT `+issueColumns+` FROM issues WHERE id = $1`, id))
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
	add := func(clause string, v any) {
		args = append(args, v)
		query += fmt.Sprintf(" AND "+clause, len(args))
	}

	if filters.CustomerID != "" {
		add("customer_id = $%d", filters.CustomerID)
	}
	if filters.SupplierID != "" {
		add("supplier_id = $%d", filters.SupplierID)
	}
	if filters.Status != "" {
		add("status = $%d", filters.Status)
	}
	if filters.Escalated != nil {
		add("escalated_to_admin = $%d", *filters.Escalated)
	}
	query += " ORDER BY opened_at DESC, id DESC"
	if filters.Limit > 0 {
		args = append(args, filters.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	return r.queryIssues(ctx, "list issues", query, args...)
}

// ListEscalationQueue retrieves escalated issues with no assigned admin, oldest first.
func (r *IssueRepository) ListEscalationQueue(ctx context.Context, limit int) ([]*secondary.IssueRecord, error) {
	query := `SELECT ` + issueColumns + ` FROM issues
		WHERE escalated_to_admin AND assigned_admin_id IS NULL AND status NOT IN ('resolved', 'closed')
		ORDER BY opened_at ASC, id ASC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT $1"
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

	var out []*secondary.IssueRecord
	for rows.Next() {
		rec, err := scanIssue(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan issue: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
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
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `
		UPDATE issues SET order_id = $2, customer_id = $3, supplier_id = $4, issue_type = $5, affected_items = $6,
			status = $7, description = $8, evidence = $9, desired_resolution = $10, resolution_offered = $11,
			resolution_amount = $12, resolution_currency = $13, resolution_accepted = $14, resolution_accepted_at = $15,
			escalated_to_admin = $16, assigned_admin_id = $17, opened_at = $18, resolved_at = $19, updated_at = $20,
			version = $21
		WHERE id = $1 AND version = $22`,
		append(args, expectedVersion)...,
	)
	if err != nil {
		return fmt.Errorf("failed to update issue: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		if _, err := lockIssue(ctx, tx, rec.ID); err != nil {
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
func (r *IssueRepository) ClaimEscalation(ctx context.Context, issueID, adminID string, at time.Time, message *secondary.MessageRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var version int64
	err = tx.QueryRowContext(ctx, `
		UPDATE issues SET assigned_admin_id = $2, updated_at = $3, version = version + 1
		WHERE id = $1 AND escalated_to_admin AND assigned_admin_id IS NULL AND status NOT IN ('resolved', 'closed')
		RETURNING version`,
		issueID, adminID, at.UTC(),
	).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		current, err := scanIssue(tx.QueryRowContext(ctx, `SELECT `+issueColumns+` FROM issues WHERE id = $1`, issueID))
		if errors.Is(err, sql.ErrNoRows) {
			return &issue.NotFoundError{Entity: "issue", ID: issueID}
		}
		if err != nil {
			return fmt.Errorf("failed to inspect claimed issue: %w", err)
		}
		return secondary.ClaimRejection(current)
	}
	if err != nil {
		return fmt.Errorf("failed to claim escalation: %w", err)
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
// The issue row is locked first so concurrent appends take sequence numbers in turn
// and a concurrent resolve or close is seen before the insert.
func (r *IssueRepository) AppendMessage(ctx context.Context, msg *secondary.MessageRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	status, err := lockIssue(ctx, tx, msg.IssueID)
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
		`SELECT `+messageColumns+` FROM issue_messages WHERE issue_id = $1 ORDER BY ts ASC, seq ASC`,
		issueID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var out []*secondary.MessageRecord
	for rows.Next() {
		var (
			rec         secondary.MessageRecord
			attachments []byte
		)
		if err := rows.Scan(&rec.ID, &rec.IssueID, &rec.Seq, &rec.SenderID, &rec.SenderType, &rec.Text, &attachments, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		if rec.Attachments, err = decodeList(attachments); err != nil {
			return nil, fmt.Errorf("message %s: %w", rec.ID, err)
		}
		rec.Timestamp = rec.Timestamp.UTC()
		out = append(out, &rec)
	}
	return out, rows.Err()
}

// Ping reports whether the database is reachable.
func (r *IssueRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// lockIssue takes the issue row lock and returns the status it holds.
func lockIssue(ctx context.Context, tx *sql.Tx, id string) (string, error) {
	var status string
	err := tx.QueryRowContext(ctx, `SELECT status FROM issues WHERE id = $1 FOR UPDATE`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", &issue.NotFoundError{Entity: "issue", ID: id}
	}
	if err != nil {
		return "", fmt.Errorf("failed to lock issue: %w", err)
	}
	return status, nil
}

func insertMessage(ctx context.Context, tx *sql.Tx, msg *secondary.MessageRecord) error {
	attachments, err := encodeList(msg.Attachments)
	if err != nil {
		return err
	}
	var seq int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO issue_messages (`+messageColumns+`)
		SELECT $1, $2, COALESCE(MAX(seq), 0) + 1, $3, $4, $5, $6, $7 FROM issue_messages WHERE issue_id = $2
		RETURNING seq`,
		msg.ID, msg.IssueID, msg.SenderID, msg.SenderType, msg.Text, attachments, msg.Timestamp.UTC(),
	).Scan(&seq)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	msg.Seq = seq
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIssue(row rowScanner) (*secondary.IssueRecord, error) {
	var (
		rec                secondary.IssueRecord
		affectedItems      []byte
		evidence           []byte
		resolutionOffered  sql.NullString
		resolutionAmount   sql.NullInt64
		resolutionCurrency sql.NullString
		resolutionAccepted sql.NullBool
		acceptedAt         sql.NullTime
		assignedAdminID    sql.NullString
		resolvedAt         sql.NullTime
	)
	err := row.Scan(&rec.ID, &rec.OrderID, &rec.CustomerID, &rec.SupplierID, &rec.IssueType, &affectedItems, &rec.Status,
		&rec.Description, &evidence, &rec.DesiredResolution, &resolutionOffered, &resolutionAmount, &resolutionCurrency,
		&resolutionAccepted, &acceptedAt, &rec.EscalatedToAdmin, &assignedAdminID, &rec.OpenedAt, &resolvedAt, &rec.UpdatedAt, &rec.Version)
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
	rec.ResolutionAcceptedAt = nullTime(acceptedAt)
	rec.AssignedAdminID = assignedAdminID.String
	rec.OpenedAt = rec.OpenedAt.UTC()
	rec.ResolvedAt = nullTime(resolvedAt)
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	return &rec, nil
}

// issueArgs returns column values in issueColumns order, $1 through $21.
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
		resolutionAmount   sql.NullInt64
		resolutionCurrency sql.NullString
		resolutionAccepted sql.NullBool
	)
	if rec.ResolutionAmount != nil {
		resolutionAmount = sql.NullInt64{Int64: *rec.ResolutionAmount, Valid: true}
		resolutionCurrency = sql.NullString{String: rec.ResolutionCurrency, Valid: true}
	}
	if rec.ResolutionAccepted != nil {
		resolutionAccepted = sql.NullBool{Bool: *rec.ResolutionAccepted, Valid: true}
	}

	return []any{
		rec.ID, rec.OrderID, rec.CustomerID, rec.SupplierID, rec.IssueType, affectedItems, rec.Status,
		rec.Description, evidence, rec.DesiredResolution, nullIfEmpty(rec.ResolutionOffered), resolutionAmount, resolutionCurrency,
		resolutionAccepted, toNullTime(rec.ResolutionAcceptedAt), rec.EscalatedToAdmin, nullIfEmpty(rec.AssignedAdminID),
		rec.OpenedAt.UTC(), toNullTime(rec.ResolvedAt), rec.UpdatedAt.UTC(), rec.Version,
	}, nil
}

func maybePgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}

func nullIfEmpty(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func toNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
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

func decodeList(raw []byte) ([]string, error) {
	var items []string
	if len(raw) == 0 {
		return items, nil
	}
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("failed to decode list: %w", err)
	}
	return items, nil
}

// Ensure IssueRepository implements the interface
var _ secondary.IssueRepository = (*IssueRepository)(nil)
