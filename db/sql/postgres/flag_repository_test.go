package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/adeilh/go-flagcheck/flags"
	testpg "github.com/adeilh/go-flagcheck/internal/testutil/postgrescontainer"
)

const testTimeout = 5 * time.Second

var pgErr error

func TestMain(m *testing.M) {
	if os.Getenv("FLAGCHECK_INTEGRATION") != "" {
		pgErr = testpg.Setup()
	} else {
		pgErr = errors.New("FLAGCHECK_INTEGRATION not set")
	}
	code := m.Run()
	if pgErr == nil {
		if err := testpg.Teardown(); err != nil {
			fmt.Fprintln(os.Stderr, "warning: failed to stop postgres test container:", err)
		}
	}
	os.Exit(code)
}

func TestOpenRequiresDSN(t *testing.T) {
	if _, err := Open(context.Background()); !errors.Is(err, ErrMissingDSN) {
		t.Fatalf("Open() error = %v, want ErrMissingDSN", err)
	}
}

func TestOptionsDefaults(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
		want Options
	}{
		{name: "empty", want: Options{MaxOpenConns: 4, MaxIdleConns: 4, ConnMaxLifetime: 30 * time.Minute}},
		{
			name: "pool",
			opts: []Option{WithDSN("postgres://x"), WithPool(10, 2, time.Minute), WithoutMigrations()},
			want: Options{DSN: "postgres://x", MaxOpenConns: 10, MaxIdleConns: 2, ConnMaxLifetime: time.Minute, SkipMigrations: true},
		},
		{
			name: "idle capped by open",
			opts: []Option{WithPool(2, 8, 0)},
			want: Options{MaxOpenConns: 2, MaxIdleConns: 2, ConnMaxLifetime: 30 * time.Minute},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := buildOptions(tt.opts); got != tt.want {
				t.Fatalf("buildOptions() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestFlagRepositoryLifecycle(t *testing.T) {
	db := openTestDB(t)
	repo := NewFlagRepository(db)

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	if on, err := repo.IsEnabled(ctx, flags.DefaultFlag); err != nil || on {
		t.Fatalf("IsEnabled() unknown = %v, %v; want false, nil", on, err)
	}

	if err := repo.SetEnabled(ctx, flags.DefaultFlag, true); err != nil {
		t.Fatalf("SetEnabled() error = %v", err)
	}
	if on, err := repo.IsEnabled(ctx, flags.DefaultFlag); err != nil || !on {
		t.Fatalf("IsEnabled() = %v, %v; want true", on, err)
	}

	if err := repo.SetEnabled(ctx, flags.DefaultFlag, false); err != nil {
		t.Fatalf("SetEnabled() upsert error = %v", err)
	}
	if err := repo.Describe(ctx, flags.DefaultFlag, "hello world banner"); err != nil {
		t.Fatalf("Describe() error = %v", err)
	}
	if err := repo.SetEnabled(ctx, "another", true); err != nil {
		t.Fatalf("SetEnabled() error = %v", err)
	}

	list, err := repo.ListFlags(ctx)
	if err != nil {
		t.Fatalf("ListFlags() error = %v", err)
	}
	if len(list) != 2 || list[0].Name != "another" || list[1].Name != flags.DefaultFlag {
		t.Fatalf("ListFlags() = %+v", list)
	}
	if list[1].Enabled || list[1].Description != "hello world banner" {
		t.Fatalf("unexpected row %+v", list[1])
	}

	if err := repo.Delete(ctx, "another"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := repo.Delete(ctx, "another"); !errors.Is(err, flags.ErrFlagMissing) {
		t.Fatalf("Delete() missing = %v, want ErrFlagMissing", err)
	}
	if err := repo.Describe(ctx, "another", "x"); !errors.Is(err, flags.ErrFlagMissing) {
		t.Fatalf("Describe() missing = %v, want ErrFlagMissing", err)
	}
}

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	if pgErr != nil {
		t.Skipf("postgres integration tests skipped: %v", pgErr)
	}
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	db, err := Connect(ctx, WithDSN(testpg.DSN()))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if _, err := db.ExecContext(ctx, "TRUNCATE feature_flags"); err != nil {
		t.Fatalf("truncate failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}
