// Package kv keeps flag states in a cache.Store such as Redis, one
// "true"/"false" value per flag.
package kv

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/adeilh/go-flagcheck/cache"
	"github.com/adeilh/go-flagcheck/flags"
)

// BatchGetter is implemented by stores that can fetch many keys at once.
type BatchGetter interface {
	MGet(ctx context.Context, keys ...string) (map[string][]byte, error)
}

// Provider reads and writes flags in a Store.
type Provider struct {
	store cache.Store
}

var (
	_ flags.Evaluator = (*Provider)(nil)
	_ flags.Toggler   = (*Provider)(nil)
)

// New wraps store. Key namespacing is the store's concern.
func New(store cache.Store) *Provider {
	return &Provider{store: store}
}

// IsEnabled reports the stored state. A missing key means disabled.
func (p *Provider) IsEnabled(ctx context.Context, name string) (bool, error) {
	raw, err := p.store.Get(ctx, name)
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return parse(name, raw)
}

func (p *Provider) SetEnabled(ctx context.Context, name string, enabled bool) error {
	if name == "" {
		return flags.ErrEmptyName
	}
	return p.store.Set(ctx, name, []byte(strconv.FormatBool(enabled)), 0)
}

func (p *Provider) Delete(ctx context.Context, name string) error {
	err := p.store.Delete(ctx, name)
	if errors.Is(err, cache.ErrNotFound) {
		return flags.ErrFlagMissing
	}
	return err
}

// Snapshot reads several flags, in one round-trip when the store supports
// it. Missing flags are reported as disabled.
func (p *Provider) Snapshot(ctx context.Context, names ...string) (map[string]bool, error) {
	out := make(map[string]bool, len(names))
	if bg, ok := p.store.(BatchGetter); ok {
		raw, err := bg.MGet(ctx, names...)
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			v, found := raw[name]
			if !found {
				out[name] = false
				continue
			}
			enabled, err := parse(name, v)
			if err != nil {
				return nil, err
			}
			out[name] = enabled
		}
		return out, nil
	}

	for _, name := range names {
		enabled, err := p.IsEnabled(ctx, name)
		if err != nil {
			return nil, err
		}
		out[name] = enabled
	}
	return out, nil
}

func parse(name string, raw []byte) (bool, error) {
	v, err := strconv.ParseBool(string(raw))
	if err != nil {
		return false, fmt.Errorf("kv: flag %q holds %q: %w", name, raw, err)
	}
	return v, nil
}
