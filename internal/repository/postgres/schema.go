package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            UUID PRIMARY KEY,
		full_name     TEXT NOT NULL,
		email         TEXT NOT NULL UNIQUE,
		mobile        TEXT NOT NULL UNIQUE,
		payment_id    TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS accounts (
		id             UUID PRIMARY KEY,
		user_id        UUID NOT NULL REFERENCES users(id) ON DELETE RESTRICT,
		institution    TEXT NOT NULL,
		account_number TEXT NOT NULL,
		routing_code   TEXT NOT NULL,
		balance        NUMERIC(14,2) NOT NULL DEFAULT 0 CHECK (balance >= 0),
		created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS accounts_user_id_created_at_idx ON accounts (user_id, created_at, id)`,
	`CREATE TABLE IF NOT EXISTS transactions (
		id                     UUID PRIMARY KEY,
		source_account_id      UUID NOT NULL REFERENCES accounts(id) ON DELETE RESTRICT,
		destination_account_id UUID NOT NULL REFERENCES accounts(id) ON DELETE RESTRICT,
		amount                 NUMERIC(14,2) NOT NULL CHECK (amount > 0),
		status                 TEXT NOT NULL CHECK (status IN ('PENDING', 'SUCCESS', 'FAILED', 'REJECTED')),
		kind                   TEXT NOT NULL CHECK (kind IN ('TRANSFER', 'REQUEST')),
		note                   TEXT,
		created_at             TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at             TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS transactions_source_created_at_idx ON transactions (source_account_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS transactions_destination_created_at_idx ON transactions (destination_account_id, created_at DESC)`,
}

// Migrate creates the tables the service needs if they do not exist yet.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	slog.Info("schema applied", "statements", len(schema))
	return nil
}
