package database

import (
	"database/sql"
	"fmt"
)

// migrations are applied in order on startup. Statements are idempotent so
// re-running them against an existing database is safe.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		avatar_url TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS trips (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		destination TEXT NOT NULL,
		description TEXT,
		start_date DATE,
		end_date DATE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS trip_members (
		id TEXT PRIMARY KEY,
		trip_id TEXT NOT NULL REFERENCES trips(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL REFERENCES users(id),
		status TEXT NOT NULL DEFAULT 'INVITED',
		role TEXT NOT NULL DEFAULT 'MEMBER',
		joined_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (trip_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS expenses (
		id TEXT PRIMARY KEY,
		trip_id TEXT NOT NULL REFERENCES trips(id) ON DELETE CASCADE,
		payer_id TEXT REFERENCES users(id),
		description TEXT NOT NULL,
		amount NUMERIC(12,2) NOT NULL CHECK (amount >= 0),
		currency TEXT NOT NULL DEFAULT 'USD',
		category TEXT,
		split_type TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS splits (
		id TEXT PRIMARY KEY,
		expense_id TEXT NOT NULL REFERENCES expenses(id) ON DELETE CASCADE,
		user_id TEXT REFERENCES users(id),
		share NUMERIC(12,2) NOT NULL CHECK (share >= 0),
		status TEXT NOT NULL DEFAULT 'PENDING',
		dispute_reason TEXT,
		settlement_id TEXT,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS settlements (
		id TEXT PRIMARY KEY,
		trip_id TEXT NOT NULL REFERENCES trips(id) ON DELETE CASCADE,
		payer_id TEXT NOT NULL REFERENCES users(id),
		receiver_id TEXT NOT NULL REFERENCES users(id),
		amount NUMERIC(12,2) NOT NULL CHECK (amount >= 0),
		currency TEXT NOT NULL DEFAULT 'USD',
		status TEXT NOT NULL DEFAULT 'PENDING',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS notifications (
		id TEXT PRIMARY KEY,
		recipient_id TEXT NOT NULL REFERENCES users(id),
		message TEXT NOT NULL,
		is_read BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_expenses_trip ON expenses(trip_id)`,
	`CREATE INDEX IF NOT EXISTS idx_splits_expense ON splits(expense_id)`,
	`CREATE INDEX IF NOT EXISTS idx_settlements_trip ON settlements(trip_id)`,
	`CREATE INDEX IF NOT EXISTS idx_notifications_recipient ON notifications(recipient_id)`,
}

// Migrate applies the schema migrations
func Migrate(db *sql.DB) error {
	for i, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", i, err)
		}
	}
	return nil
}
