package flags

import (
	"context"
	"fmt"

	"github.com/adeilh/go-flagcheck/cache"
)

// BackendPrefix separates backend-sourced values from frontend ones in the
// shared cache.
const BackendPrefix = "backend-"

// BackendKey is the cache key used for the backend value of name.
func BackendKey(name string) string { return BackendPrefix + name }

// BackendClient fetches a flag state from the backend service.
type BackendClient interface {
	FeatureCheck(ctx context.Context, name string) (bool, error)
}

// Checker memoizes flag checks from two sources in one Expiring cache.
// Concurrent misses on the same key each reach the source; there is no
// request coalescing.
type Checker struct {
	cache     *cache.Expiring[bool]
	evaluator Evaluator
	backend   BackendClient
	log       Logger
}

// CheckerOption configures a Checker.
type CheckerOption func(*Checker)

// WithEvaluator sets the provider used by CheckFrontend.
func WithEvaluator(e Evaluator) CheckerOption {
	return func(c *Checker) { c.evaluator = e }
}

// WithBackend sets the client used by CheckBackend.
func WithBackend(b BackendClient) CheckerOption {
	return func(c *Checker) { c.backend = b }
}

// WithLogger sets the logger; the default discards output.
func WithLogger(l Logger) CheckerOption {
	return func(c *Checker) {
		if l != nil {
			c.log = l
		}
	}
}

// NewChecker builds a Checker around store. A nil store gets a fresh cache
// with the default TTL.
func NewChecker(store *cache.Expiring[bool], opts ...CheckerOption) *Checker {
	if store == nil {
		store = cache.NewExpiring[bool]()
	}
	c := &Checker{cache: store, log: nopLogger{}}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// CheckFrontend evaluates name through the local provider, caching the
// answer under name.
func (c *Checker) CheckFrontend(ctx context.Context, name string) (Result, error) {
	if name == "" {
		return Result{}, ErrEmptyName
	}
	res := Result{Name: name, Source: SourceFrontend}
	if v, ok := c.cache.Get(name); ok {
		c.log.Debugf("using cached value for feature %q: %t", name, v)
		res.Enabled, res.Cached = v, true
		return res, nil
	}
	if c.evaluator == nil {
		return res, fmt.Errorf("flags: no evaluator configured")
	}

	enabled, err := c.evaluator.IsEnabled(ctx, name)
	if err != nil {
		c.log.Errorf("evaluate feature %q: %v", name, err)
		return res, err
	}
	c.log.Debugf("feature %q enabled (from provider): %t", name, enabled)
	c.cache.Set(name, enabled)

	res.Enabled = enabled
	return res, nil
}

// CheckBackend asks the backend service about name, caching the answer
// under BackendKey(name). Failures are returned and never cached.
func (c *Checker) CheckBackend(ctx context.Context, name string) (Result, error) {
	if name == "" {
		return Result{}, ErrEmptyName
	}
	res := Result{Name: name, Source: SourceBackend}
	key := BackendKey(name)
	if v, ok := c.cache.Get(key); ok {
		c.log.Debugf("using cached value for backend feature %q: %t", name, v)
		res.Enabled, res.Cached = v, true
		return res, nil
	}
	if c.backend == nil {
		return res, fmt.Errorf("flags: no backend configured")
	}

	enabled, err := c.backend.FeatureCheck(ctx, name)
	if err != nil {
		c.log.Errorf("backend API error: %v", err)
		return res, err
	}
	c.log.Debugf("backend feature %q enabled: %t", name, enabled)
	c.cache.Set(key, enabled)

	res.Enabled = enabled
	return res, nil
}
