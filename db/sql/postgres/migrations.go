package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// FlagTableSchema creates the table FlagRepository reads and writes.
const FlagTableSchema = `CREATE TABLE IF NOT EXISTS feature_flags (
	name        TEXT PRIMARY KEY,
	enabled     BOOLEAN NOT NULL DEFAULT FALSE,
	description TEXT NOT NULL DEFAULT '',
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// ApplyMigrations executes the provided SQL statements in order within the given context.
func ApplyMigrations(ctx context.Context, db *sql.DB, statements ...string) error {
	if db == nil {
		return fmt.Errorf("postgres: db is nil")
	}
	for _, stmt := range statements {
		if stmt == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: migrate: %w", err)
		}
	}
	return nil
}
