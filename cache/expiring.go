package cache

import (
	"sync"
	"time"

	"github.com/samber/mo"
)

// DefaultTTL applies when NewExpiring is called without WithTTL.
const DefaultTTL = time.Minute

type expiringConfig struct {
	ttl time.Duration
	now func() time.Time
}

// ExpiringOption configures an Expiring cache.
type ExpiringOption func(*expiringConfig)

// WithTTL sets the lifetime shared by every entry. Zero and negative values
// are accepted; such a cache effectively never serves a value.
func WithTTL(d time.Duration) ExpiringOption {
	return func(c *expiringConfig) { c.ttl = d }
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ExpiringOption {
	return func(c *expiringConfig) {
		if fn != nil {
			c.now = fn
		}
	}
}

type entry[V any] struct {
	value    V
	storedAt time.Time
}

// Expiring memoizes values per key for a fixed TTL. Entries are checked on
// read; an expired entry is removed by the read that finds it. There is no
// background sweep and no size limit.
type Expiring[V any] struct {
	mu      sync.Mutex
	entries map[string]entry[V]
	ttl     time.Duration
	now     func() time.Time
}

// NewExpiring builds an empty cache.
func NewExpiring[V any](opts ...ExpiringOption) *Expiring[V] {
	cfg := expiringConfig{ttl: DefaultTTL, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return &Expiring[V]{
		entries: make(map[string]entry[V]),
		ttl:     cfg.ttl,
		now:     cfg.now,
	}
}

// TTL reports the lifetime configured at construction.
func (c *Expiring[V]) TTL() time.Duration { return c.ttl }

// Set stores value under key and restarts its TTL window.
func (c *Expiring[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry[V]{value: value, storedAt: c.now()}
}

// Get returns the value stored under key while it is within the TTL
// (inclusive). An expired entry is deleted and reported as absent.
func (c *Expiring[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	ent, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	if c.now().Sub(ent.storedAt) > c.ttl {
		delete(c.entries, key)
		return zero, false
	}
	return ent.value, true
}

// Lookup is Get with the result wrapped in an Option.
func (c *Expiring[V]) Lookup(key string) mo.Option[V] {
	if v, ok := c.Get(key); ok {
		return mo.Some(v)
	}
	return mo.None[V]()
}

// Len counts stored entries, including expired ones no read has removed yet.
func (c *Expiring[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
