package db

import (
	"database/sql"
	"fmt"
	"log/slog"
)

// Migration represents a database migration
type Migration struct {
	Version int
	Name    string
	Up      func(*sql.Tx) error
}

// migrations is the list of all migrations in order
var migrations = []Migration{
	{
		Version: 1,
		Name:    "create_issues_and_messages",
		Up:      migrationV1,
	},
	{
		Version: 2,
		Name:    "add_escalation_queue_index",
		Up:      migrationV2,
	},
}

func createVersionTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}
	return nil
}

// RunMigrations executes all pending migrations, each in its own transaction.
func RunMigrations(db *sql.DB) error {
	if err := createVersionTable(db); err != nil {
		return err
	}

	var currentVersion int
	if err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&currentVersion); err != nil {
		return fmt.Errorf("failed to get current schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		slog.Info("running migration", "version", migration.Version, "name", migration.Name)

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", migration.Version, err)
		}

		if err := migration.Up(tx); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", migration.Version); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

// migrationV1 creates the issue and thread tables as first released.
func migrationV1(tx *sql.Tx) error {
	_, err := tx.Exec(`
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
	`)
	return err
}

// migrationV2 indexes the admin escalation queue lookup.
func migrationV2(tx *sql.Tx) error {
	_, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_issues_escalation_queue ON issues(escalated_to_admin, assigned_admin_id, opened_at)`)
	return err
}
