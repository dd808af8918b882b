// Package sqlite_test contains integration tests for SQLite repositories.
//
// # Schema Protection
//
// This file is the SINGLE POINT where the database schema is loaded for tests.
// All test setup functions use db.GetSchemaSQL() to ensure tests run against
// the authoritative schema, preventing drift between test and production.
//
// DO NOT hardcode CREATE TABLE statements in test files. Use setupTestDB()
// and the seed* helpers instead.
package sqlite_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/example/disputedesk/internal/db"
	"github.com/example/disputedesk/internal/ports/secondary"
)

// setupTestDB creates an in-memory database with the authoritative schema.
// A single connection keeps every statement on the same in-memory database.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	testDB, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	testDB.SetMaxOpenConns(1)

	_, err = testDB.Exec(db.GetSchemaSQL())
	if err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	t.Cleanup(func() {
		testDB.Close()
	})

	return testDB
}

var testOpened = time.Date(2026, 4, 30, 12, 0, 0, 0, time.UTC)

// newIssueRecord returns a fresh open issue record.
func newIssueRecord(id string) *secondary.IssueRecord {
	return &secondary.IssueRecord{
		ID:                id,
		OrderID:           "ORD-001",
		CustomerID:        "CUST-001",
		SupplierID:        "SUPP-001",
		IssueType:         "damaged_item",
		AffectedItems:     []string{"LINE-1", "LINE-2"},
		Status:            "open",
		Description:       "Box arrived crushed",
		Evidence:          []string{"https://img.example/1.jpg"},
		DesiredResolution: "full_refund",
		OpenedAt:          testOpened,
		UpdatedAt:         testOpened,
		Version:           1,
	}
}

// seedIssue inserts a test issue, letting mutate adjust it first.
func seedIssue(t *testing.T, repo secondary.IssueRepository, id string, mutate func(*secondary.IssueRecord)) *secondary.IssueRecord {
	t.Helper()
	rec := newIssueRecord(id)
	if mutate != nil {
		mutate(rec)
	}
	if err := repo.CreateIssue(context.Background(), rec); err != nil {
		t.Fatalf("failed to seed issue: %v", err)
	}
	return rec
}
