// Package db owns the SQLite connection, schema and migrations.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

var db *sql.DB

// GetDB returns the default database connection, initializing it if needed.
func GetDB() (*sql.DB, error) {
	if db != nil {
		return db, nil
	}
	path, err := GetDBPath()
	if err != nil {
		return nil, err
	}
	db, err = Open(path)
	if err != nil {
		return nil, err
	}
	return db, nil
}

// Open opens (creating if needed) the SQLite database at path and brings its schema up to date.
func Open(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", DSN(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA foreign_keys = ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := InitSchema(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return conn, nil
}

// DSN builds the connection string for the database file at path.
// Transactions begin IMMEDIATE so two processes never both read a sequence
// number and then race to upgrade to a write lock.
func DSN(path string) string {
	return path + "?_busy_timeout=5000&_journal_mode=WAL&_txlock=immediate"
}

// Close closes the default database connection
func Close() error {
	if db != nil {
		err := db.Close()
		db = nil
		return err
	}
	return nil
}

// GetDBPath returns the path to the default database file
func GetDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".disputedesk", "disputedesk.db"), nil
}
