// Package unleash is a polling client for an Unleash server. It keeps the
// latest toggle states in memory and answers flag lookups from them.
package unleash

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/adeilh/go-flagcheck/flags"
	"github.com/adeilh/go-flagcheck/httpx"
)

type frontendToggle struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

type frontendResponse struct {
	Toggles []frontendToggle `json:"toggles"`
}

type strategy struct {
	Name string `json:"name"`
}

type feature struct {
	Name       string     `json:"name"`
	Enabled    bool       `json:"enabled"`
	Strategies []strategy `json:"strategies"`
}

type clientResponse struct {
	Version  int       `json:"version"`
	Features []feature `json:"features"`
}

// Client implements flags.Evaluator against Unleash.
type Client struct {
	opts Options
	http *httpx.Client

	mu      sync.RWMutex
	toggles map[string]bool

	ready     chan struct{}
	readyOnce sync.Once
	fetches   atomic.Int64
}

var _ flags.Evaluator = (*Client)(nil)

// New builds a Client. Call Start to begin polling.
func New(opts Options) *Client {
	cfg := opts.withDefaults()
	if cfg.Logger == nil {
		cfg.Logger = nopLogger{}
	}
	if cfg.OnError == nil {
		logger := cfg.Logger
		cfg.OnError = func(err error) { logger.Errorf("unleash SDK error: %v", err) }
	}

	headers := map[string]string{
		"UNLEASH-APPNAME":    cfg.AppName,
		"UNLEASH-INSTANCEID": cfg.InstanceID,
	}
	if cfg.Token != "" {
		headers["Authorization"] = cfg.Token
	}
	hc := httpx.NewClient(
		httpx.WithClientTimeout(cfg.RequestTimeout),
		httpx.WithHeaders(headers),
	)
	return &Client{opts: cfg, http: hc, ready: make(chan struct{})}
}

// Start fetches toggles and keeps refreshing them until ctx is done. With
// SynchronousFetch the first fetch happens before Start returns and its
// error is returned; otherwise Start returns immediately.
func (c *Client) Start(ctx context.Context) error {
	if c.opts.SynchronousFetch {
		if err := c.Refresh(ctx); err != nil {
			c.opts.OnError(err)
			return err
		}
	}
	go c.loop(ctx)
	return nil
}

func (c *Client) loop(ctx context.Context) {
	if !c.opts.SynchronousFetch {
		if err := c.Refresh(ctx); err != nil && ctx.Err() == nil {
			c.opts.OnError(err)
		}
	}
	ticker := time.NewTicker(c.opts.RefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Refresh(ctx); err != nil && ctx.Err() == nil {
				c.opts.OnError(err)
			}
		}
	}
}

// Ready is closed after the first successful fetch.
func (c *Client) Ready() <-chan struct{} { return c.ready }

// Fetches counts successful refreshes.
func (c *Client) Fetches() int64 { return c.fetches.Load() }

// Refresh fetches toggles once and replaces the in-memory snapshot. A failed
// fetch keeps the previous snapshot.
func (c *Client) Refresh(ctx context.Context) error {
	var (
		next map[string]bool
		err  error
	)
	switch c.opts.Mode {
	case ModeFrontend:
		next, err = c.fetchFrontend(ctx)
	case ModeClient:
		next, err = c.fetchClient(ctx)
	default:
		err = fmt.Errorf("unleash: unknown mode %q", c.opts.Mode)
	}
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.toggles = next
	c.mu.Unlock()
	c.fetches.Add(1)

	c.readyOnce.Do(func() {
		c.opts.Logger.Infof("unleash SDK ready (%d toggles)", len(next))
		close(c.ready)
	})
	return nil
}

func (c *Client) fetchFrontend(ctx context.Context) (map[string]bool, error) {
	var out frontendResponse
	query := map[string]string{"appName": c.opts.AppName}
	if _, err := c.http.Get(ctx, c.opts.URL, &out, httpx.WithQuery(query)); err != nil {
		return nil, fmt.Errorf("unleash: fetch frontend toggles: %w", err)
	}
	toggles := make(map[string]bool, len(out.Toggles))
	for _, t := range out.Toggles {
		toggles[t.Name] = t.Enabled
	}
	return toggles, nil
}

func (c *Client) fetchClient(ctx context.Context) (map[string]bool, error) {
	var out clientResponse
	if _, err := c.http.Get(ctx, c.opts.URL+"/client/features", &out); err != nil {
		return nil, fmt.Errorf("unleash: fetch client features: %w", err)
	}
	toggles := make(map[string]bool, len(out.Features))
	for _, f := range out.Features {
		toggles[f.Name] = evaluate(f)
	}
	return toggles, nil
}

// evaluate supports the default strategy only; any other strategy leaves
// the feature off.
func evaluate(f feature) bool {
	if !f.Enabled {
		return false
	}
	if len(f.Strategies) == 0 {
		return true
	}
	for _, s := range f.Strategies {
		if s.Name == "default" {
			return true
		}
	}
	return false
}

// IsEnabled answers from the latest snapshot. Unknown flags are disabled.
func (c *Client) IsEnabled(ctx context.Context, name string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.toggles == nil {
		return false, flags.ErrNotReady
	}
	return c.toggles[name], nil
}

// WaitReady blocks until the first fetch succeeds or ctx is done.
func (c *Client) WaitReady(ctx context.Context) error {
	select {
	case <-c.ready:
		return nil
	case <-ctx.Done():
		return errors.Join(flags.ErrNotReady, ctx.Err())
	}
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Infof(string, ...any)  {}
func (nopLogger) Errorf(string, ...any) {}
