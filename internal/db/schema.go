package db

import (
	"database/sql"
	"fmt"
	"time"
)

// TimeLayout is the fixed-width UTC layout used for every stored timestamp.
// Equal width keeps text ordering equal to time ordering.
const TimeLayout = "2006-01-02T15:04:05.000000Z07:00"

// FormatTime renders t in TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// SchemaSQL is the complete schema for fresh installs.
// It reflects the current state after all migrations.
//
// # Schema Drift Protection
//
// This is the SINGLE SOURCE OF TRUTH for the database schema. Repository tests
// load it through GetSchemaSQL(), so a repository that references a column
// missing here fails immediately with "no such column".
//
// When adding new columns or tables:
//  1. Add a migration in migrations.go
//  2. Update SchemaSQL here
//  3. Run `make test` to verify alignment
//
// Timestamps are stored as fixed-width UTC text so that lexical order is time order.
const SchemaSQL = `
-- Issues (one dispute per order problem)
CREATE TABLE IF NOT EXISTS issues (
	id TEXT PRIMARY KEY,
	order_id TEXT NOT NULL,
	customer_id TEXT NOT NULL,
	supplier_id TEXT NOT NULL,
	issue_type TEXT NOT NULL CHECK(issue_type IN ('damaged_item', 'wrong_item', 'missing_item', 'late_delivery', 'quality_issue', 'other')),
	affected_items TEXT NOT NULL DEFAULT '[]',
	status TEXT NOT NULL CHECK(status IN ('open', 'under_review', 'awaiting_response', 'resolved', 'closed')) DEFAULT 'open',
	description TEXT NOT NULL,
	evidence TEXT NOT NULL DEFAULT '[]',
	desired_resolution TEXT NOT NULL CHECK(desired_resolution IN ('full_refund', 'partial_refund', 'replacement', 'credit', 'no_action')),
	resolution_offered TEXT CHECK(resolution_offered IS NULL OR resolution_offered IN ('full_refund', 'partial_refund', 'replacement', 'credit', 'no_action')),
	resolution_amount INTEGER,
	resolution_currency TEXT,
	resolution_accepted INTEGER,
	resolution_accepted_at TEXT,
	escalated_to_admin INTEGER NOT NULL DEFAULT 0,
	assigned_admin_id TEXT,
	opened_at TEXT NOT NULL,
	resolved_at TEXT,
	updated_at TEXT NOT NULL,
	version INTEGER NOT NULL DEFAULT 1
);

CREATE INDEX IF NOT EXISTS idx_issues_customer ON issues(customer_id);
CREATE INDEX IF NOT EXISTS idx_issues_supplier ON issues(supplier_id);
CREATE INDEX IF NOT EXISTS idx_issues_status ON issues(status);
CREATE INDEX IF NOT EXISTS idx_issues_escalation_queue ON issues(escalated_to_admin, assigned_admin_id, opened_at);

-- Issue messages (append-only thread)
CREATE TABLE IF NOT EXISTS issue_messages (
	id TEXT PRIMARY KEY,
	issue_id TEXT NOT NULL,
	seq INTEGER NOT NULL,
	sender_id TEXT NOT NULL,
	sender_type TEXT NOT NULL CHECK(sender_type IN ('customer', 'supplier', 'admin', 'system')),
	text TEXT NOT NULL,
	attachments TEXT NOT NULL DEFAULT '[]',
	timestamp TEXT NOT NULL,
	FOREIGN KEY (issue_id) REFERENCES issues(id) ON DELETE CASCADE,
	UNIQUE(issue_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_issue_messages_thread ON issue_messages(issue_id, timestamp, seq);
`

// InitSchema brings a database up to the current schema.
// A fresh database gets SchemaSQL directly with every migration marked applied;
// an existing one runs whatever migrations are pending.
func InitSchema(db *sql.DB) error {
	var tableCount int
	err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'").Scan(&tableCount)
	if err != nil {
		return err
	}
	if tableCount > 0 {
		return RunMigrations(db)
	}

	if _, err := db.Exec(SchemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	if err := createVersionTable(db); err != nil {
		return err
	}
	for _, m := range migrations {
		if _, err := db.Exec("INSERT INTO schema_version (version) VALUES (?)", m.Version); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
		}
	}
	return nil
}

// GetSchemaSQL returns the authoritative schema SQL for use by tests.
// Tests should use this instead of hardcoding their own schema to prevent drift.
func GetSchemaSQL() string {
	return SchemaSQL
}
