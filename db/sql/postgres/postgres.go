// Package postgres stores feature flags in PostgreSQL through lib/pq.
package postgres

import (
	"context"
	"database/sql"
)

// Connect opens a PostgreSQL connection and, unless WithoutMigrations is
// given, makes sure the flag table exists.
func Connect(ctx context.Context, opts ...Option) (*sql.DB, error) {
	cfg := buildOptions(opts)
	db, err := open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.SkipMigrations {
		return db, nil
	}
	if err := ApplyMigrations(ctx, db, FlagTableSchema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
