// Package database provides durable storage for SOS alerts. The Postgres
// implementation is the source of truth in production; an in-memory
// implementation of the same operations backs development mode and tests.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"
)

// Sentinel errors for store operations.
var (
	// ErrNotFound indicates no alert exists with the given id.
	ErrNotFound = errors.New("alert not found")
	// ErrConflict indicates the stored status moved between read and write:
	// the optimistic compare-and-set lost a concurrent race. Callers should
	// re-fetch and decide whether the winner's state already covers them.
	ErrConflict = errors.New("alert status conflict")
)

// listLimit caps List responses to the most recent alerts.
const listLimit = 100

// DB wraps a Postgres connection and provides alert store operations.
type DB struct {
	conn *sql.DB
}

// NewDB creates a new database connection using the provided DSN.
func NewDB(dsn string) (*DB, error) {
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	// Configure connection pool
	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	// Test the connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	slog.Info("Successfully connected to PostgreSQL database")

	return &DB{conn: conn}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	if db.conn != nil {
		slog.Info("Closing database connection")
		return db.conn.Close()
	}
	return nil
}

// EnsureSchema creates the alerts table and indexes if they do not exist.
func (db *DB) EnsureSchema(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS alerts (
			id                   TEXT PRIMARY KEY,
			hazard_kind          TEXT NOT NULL,
			triggered_by_id      TEXT NOT NULL,
			triggered_by_name    TEXT NOT NULL,
			triggered_by_role    TEXT NOT NULL,
			location_lat         DOUBLE PRECISION NOT NULL DEFAULT 0,
			location_lon         DOUBLE PRECISION NOT NULL DEFAULT 0,
			location_description TEXT NOT NULL DEFAULT '',
			status               TEXT NOT NULL,
			created_at           TIMESTAMPTZ NOT NULL,
			acknowledged_by_id   TEXT,
			acknowledged_by_name TEXT,
			acknowledged_at      TIMESTAMPTZ,
			resolved_by_id       TEXT,
			resolved_by_name     TEXT,
			resolved_at          TIMESTAMPTZ
		);
		CREATE INDEX IF NOT EXISTS idx_alerts_status_created_at
			ON alerts (status, created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_alerts_triggered_by_created_at
			ON alerts (triggered_by_id, created_at DESC);
	`
	if _, err := db.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure alerts schema: %w", err)
	}
	return nil
}
