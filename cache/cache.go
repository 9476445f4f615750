// Package cache holds the in-process expiring cache that fronts flag lookups
// and the Store abstraction flag providers persist to.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Store.Get and Store.Delete for absent keys.
var ErrNotFound = errors.New("cache: key not found")

// Store is a byte-oriented KV store with optional per-key expiry. Flag
// providers use it to read and write flag states kept in Redis or any other
// KV backend. A ttl of zero means no expiry.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
