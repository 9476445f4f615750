// Package postgrescontainer starts PostgreSQL in docker for integration tests
// of the flag repository.
package postgrescontainer

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/adeilh/go-flagcheck/internal/testutil/docker"
	_ "github.com/lib/pq"
)

const (
	user     = "flagcheck"
	password = "secret"
	dbName   = "flagcheck_test"
)

var (
	container = docker.Container{
		Name:          "flagcheck-postgres-test",
		Dockerfile:    "Dockerfile.postgres.test",
		HostPort:      "55432",
		ContainerPort: "5432",
	}

	mu      sync.Mutex
	started bool
)

// Addr returns host:port for connecting to the test Postgres instance.
func Addr() string { return container.Addr() }

// DSN returns a lib/pq formatted connection string.
func DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable", user, password, Addr(), dbName)
}

// Setup builds and launches the container if it isn't already running.
func Setup() error {
	mu.Lock()
	defer mu.Unlock()
	if started {
		return nil
	}
	if err := container.Start(10*time.Second, ping); err != nil {
		return err
	}
	started = true
	return nil
}

// Teardown stops the container launched by Setup.
func Teardown() error {
	mu.Lock()
	defer mu.Unlock()
	if !started {
		return nil
	}
	started = false
	return container.Stop()
}

func ping() error {
	db, err := sql.Open("postgres", DSN())
	if err != nil {
		return err
	}
	defer db.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	return db.PingContext(ctx)
}
