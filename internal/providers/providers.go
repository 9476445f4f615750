// Package providers builds the flag provider selected in configuration.
package providers

import (
	"context"
	"fmt"

	"github.com/adeilh/go-flagcheck/cache/redis"
	"github.com/adeilh/go-flagcheck/db/sql/postgres"
	"github.com/adeilh/go-flagcheck/flags"
	"github.com/adeilh/go-flagcheck/flags/kv"
	"github.com/adeilh/go-flagcheck/flags/unleash"
	"github.com/adeilh/go-flagcheck/internal/config"
)

// Closer releases whatever a provider holds open.
type Closer func() error

func noClose() error { return nil }

// Open returns the provider named by cfg.Provider. Unleash polling runs
// until ctx is done.
func Open(ctx context.Context, cfg config.Config, log flags.Logger) (flags.Evaluator, Closer, error) {
	switch cfg.Provider {
	case config.ProviderStatic:
		p, err := flags.ParseStatic(cfg.StaticFlags)
		if err != nil {
			return nil, nil, err
		}
		log.Infof("static provider with %d flags", len(p.Names()))
		return p, noClose, nil

	case config.ProviderUnleash:
		opts := cfg.Unleash
		opts.Logger = log
		client := unleash.New(opts)
		if err := client.Start(ctx); err != nil {
			return nil, nil, fmt.Errorf("unleash: initial fetch: %w", err)
		}
		log.Infof("unleash %s provider polling %s every %s", opts.Mode, opts.URL, opts.RefreshInterval)
		return client, noClose, nil

	case config.ProviderRedis:
		store := redis.NewStore(cfg.Redis)
		if err := store.Ping(ctx); err != nil {
			_ = store.Close()
			return nil, nil, fmt.Errorf("redis: %w", err)
		}
		log.Infof("redis provider at %s", cfg.Redis.Addr)
		return kv.New(store), store.Close, nil

	case config.ProviderPostgres:
		db, err := postgres.Connect(ctx, postgres.WithDSN(cfg.PostgresDSN))
		if err != nil {
			return nil, nil, err
		}
		log.Infof("postgres provider ready")
		return postgres.NewFlagRepository(db), db.Close, nil

	default:
		return nil, nil, fmt.Errorf("%w: %q", config.ErrUnknownProvider, cfg.Provider)
	}
}
