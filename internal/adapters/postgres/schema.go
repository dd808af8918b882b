package postgres

import (
	"context"
	"fmt"
)

// schemaSQL creates the issue tables if they do not exist yet.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS issues (
	id text PRIMARY KEY,
	order_id text NOT NULL,
	customer_id text NOT NULL,
	supplier_id text NOT NULL,
	issue_type text NOT NULL CHECK (issue_type IN ('damaged_item', 'wrong_item', 'missing_item', 'late_delivery', 'quality_issue', 'other')),
	affected_items jsonb NOT NULL DEFAULT '[]',
	status text NOT NULL DEFAULT 'open' CHECK (status IN ('open', 'under_review', 'awaiting_response', 'resolved', 'closed')),
	description text NOT NULL,
	evidence jsonb NOT NULL DEFAULT '[]',
	desired_resolution text NOT NULL,
	resolution_offered text,
	resolution_amount bigint,
	resolution_currency text,
	resolution_accepted boolean,
	resolution_accepted_at timestamptz,
	escalated_to_admin boolean NOT NULL DEFAULT false,
	assigned_admin_id text,
	opened_at timestamptz NOT NULL,
	resolved_at timestamptz,
	updated_at timestamptz NOT NULL,
	version bigint NOT NULL DEFAULT 1
);

CREATE INDEX IF NOT EXISTS idx_issues_customer ON issues (customer_id);
CREATE INDEX IF NOT EXISTS idx_issues_supplier ON issues (supplier_id);
CREATE INDEX IF NOT EXISTS idx_issues_escalation_queue ON issues (opened_at)
	WHERE escalated_to_admin AND assigned_admin_id IS NULL;

CREATE TABLE IF NOT EXISTS issue_messages (
	id text PRIMARY KEY,
	issue_id text NOT NULL REFERENCES issues (id) ON DELETE CASCADE,
	seq bigint NOT NULL,
	sender_id text NOT NULL,
	sender_type text NOT NULL CHECK (sender_type IN ('customer', 'supplier', 'admin', 'system')),
	text text NOT NULL,
	attachments jsonb NOT NULL DEFAULT '[]',
	ts timestamptz NOT NULL,
	UNIQUE (issue_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_issue_messages_thread ON issue_messages (issue_id, ts, seq);
`

// Migrate creates the schema. It is safe to run on every start.
func (r *IssueRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to migrate postgres schema: %w", err)
	}
	return nil
}
