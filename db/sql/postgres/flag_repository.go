package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/adeilh/go-flagcheck/flags"
	"github.com/lib/pq"
)

// Flag is one row of feature_flags.
type Flag struct {
	Name        string
	Enabled     bool
	Description string
	UpdatedAt   time.Time
}

// FlagRepository persists flag states in PostgreSQL.
type FlagRepository struct {
	db  *sql.DB
	now func() time.Time
}

var (
	_ flags.Evaluator = (*FlagRepository)(nil)
	_ flags.Toggler   = (*FlagRepository)(nil)
)

// NewFlagRepository wraps an existing *sql.DB connection.
func NewFlagRepository(db *sql.DB) *FlagRepository {
	return &FlagRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// IsEnabled reports the stored state. Unknown flags are disabled.
func (r *FlagRepository) IsEnabled(ctx context.Context, name string) (bool, error) {
	const query = `SELECT enabled FROM feature_flags WHERE name = $1`
	var enabled bool
	err := r.db.QueryRowContext(ctx, query, name).Scan(&enabled)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, translateFlagError(err)
	}
	return enabled, nil
}

// SetEnabled inserts the flag or updates its state.
func (r *FlagRepository) SetEnabled(ctx context.Context, name string, enabled bool) error {
	if name == "" {
		return flags.ErrEmptyName
	}
	const query = `INSERT INTO feature_flags (name, enabled, updated_at) VALUES ($1, $2, $3)
                   ON CONFLICT (name) DO UPDATE SET enabled = EXCLUDED.enabled, updated_at = EXCLUDED.updated_at`
	_, err := r.db.ExecContext(ctx, query, name, enabled, r.now())
	return translateFlagError(err)
}

// Describe sets the free-form description of an existing flag.
func (r *FlagRepository) Describe(ctx context.Context, name, description string) error {
	const query = `UPDATE feature_flags SET description = $2, updated_at = $3 WHERE name = $1`
	res, err := r.db.ExecContext(ctx, query, name, description, r.now())
	if err != nil {
		return translateFlagError(err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return flags.ErrFlagMissing
	}
	return nil
}

func (r *FlagRepository) Delete(ctx context.Context, name string) error {
	const query = `DELETE FROM feature_flags WHERE name = $1`
	res, err := r.db.ExecContext(ctx, query, name)
	if err != nil {
		return translateFlagError(err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return flags.ErrFlagMissing
	}
	return nil
}

// ListFlags returns every flag ordered by name.
func (r *FlagRepository) ListFlags(ctx context.Context) ([]Flag, error) {
	const query = `SELECT name, enabled, description, updated_at FROM feature_flags ORDER BY name`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, translateFlagError(err)
	}
	defer rows.Close()

	var out []Flag
	for rows.Next() {
		var f Flag
		if err := rows.Scan(&f.Name, &f.Enabled, &f.Description, &f.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func translateFlagError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "42P01":
			return fmt.Errorf("postgres: feature_flags table missing, run migrations: %w", err)
		case "22001":
			return fmt.Errorf("postgres: value too long: %w", err)
		}
	}
	return err
}
