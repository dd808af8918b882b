package db

import (
	"database/sql"
	"fmt"
	"time"
)

// SeedFixtures populates the database with development fixtures covering
// each point of the issue lifecycle.
func SeedFixtures(database *sql.DB) error {
	base := time.Now().UTC().Add(-48 * time.Hour).Truncate(time.Second)
	at := func(h int) string { return FormatTime(base.Add(time.Duration(h) * time.Hour)) }

	issues := []struct {
		id, order, customer, supplier, issueType, items, status, desc, desired string
		offered                                                                sql.NullString
		amount                                                                 sql.NullInt64
		currency                                                               sql.NullString
		escalated                                                              bool
		version                                                                int
	}{
		{
			id: "ISS-DEMO-001", order: "ORD-1001", customer: "CUST-001", supplier: "SUPP-001",
			issueType: "damaged_item", items: `["LINE-1"]`, status: "open",
			desc: "Box arrived crushed and the mug inside is cracked", desired: "full_refund", version: 1,
		},
		{
			id: "ISS-DEMO-002", order: "ORD-1002", customer: "CUST-001", supplier: "SUPP-001",
			issueType: "quality_issue", items: `["LINE-3","LINE-4"]`, status: "awaiting_response",
			desc: "Fabric is thinner than described", desired: "partial_refund",
			offered:  sql.NullString{String: "partial_refund", Valid: true},
			amount:   sql.NullInt64{Int64: 1500, Valid: true},
			currency: sql.NullString{String: "USD", Valid: true},
			version:  2,
		},
		{
			id: "ISS-DEMO-003", order: "ORD-1003", customer: "CUST-002", supplier: "SUPP-001",
			issueType: "missing_item", items: `["LINE-9"]`, status: "open",
			desc: "Package marked delivered but never arrived", desired: "replacement",
			escalated: true, version: 2,
		},
	}
	for i, is := range issues {
		if _, err := database.Exec(
			`INSERT INTO issues (id, order_id, customer_id, supplier_id, issue_type, affected_items, status, description, evidence,
				desired_resolution, resolution_offered, resolution_amount, resolution_currency, escalated_to_admin, opened_at, updated_at, version)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, '[]', ?, ?, ?, ?, ?, ?, ?, ?)`,
			is.id, is.order, is.customer, is.supplier, is.issueType, is.items, is.status, is.desc,
			is.desired, is.offered, is.amount, is.currency, is.escalated, at(i), at(i+1), is.version,
		); err != nil {
			return fmt.Errorf("seed issues: %w", err)
		}
	}

	messages := []struct{ id, issueID, sender, senderType, text string }{
		{"MSG-DEMO-001", "ISS-DEMO-001", "CUST-001", "customer", "Photos of the packaging are attached"},
		{"MSG-DEMO-002", "ISS-DEMO-002", "SUPP-001", "supplier", "Sorry about that, we can refund part of the order"},
		{"MSG-DEMO-003", "ISS-DEMO-002", "system", "system", "Supplier Acme offered resolution: partial_refund (15.00 USD)"},
		{"MSG-DEMO-004", "ISS-DEMO-003", "system", "system", "Customer Ben escalated the issue to platform support"},
	}
	seq := map[string]int{}
	for i, m := range messages {
		seq[m.issueID]++
		if _, err := database.Exec(
			"INSERT INTO issue_messages (id, issue_id, seq, sender_id, sender_type, text, attachments, timestamp) VALUES (?, ?, ?, ?, ?, ?, '[]', ?)",
			m.id, m.issueID, seq[m.issueID], m.sender, m.senderType, m.text, at(10+i),
		); err != nil {
			return fmt.Errorf("seed issue messages: %w", err)
		}
	}

	return nil
}
