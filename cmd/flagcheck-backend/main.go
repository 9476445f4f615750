// Command flagcheck-backend serves feature-flag answers over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/adeilh/go-flagcheck/api"
	"github.com/adeilh/go-flagcheck/auth"
	"github.com/adeilh/go-flagcheck/cache"
	"github.com/adeilh/go-flagcheck/httpx"
	"github.com/adeilh/go-flagcheck/internal/config"
	"github.com/adeilh/go-flagcheck/internal/providers"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, "flagcheck-backend:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) > 0 && args[0] == "-hash-token" {
		return hashToken(args[1:])
	}

	cfg, _, err := config.Load("flagcheck-backend", args, os.LookupEnv)
	if err != nil {
		return err
	}
	logger := cfg.NewLogger("flagcheck-backend")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider, closeProvider, err := providers.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeProvider(); err != nil {
			logger.Errorf("closing provider: %v", err)
		}
	}()

	opts := []api.Option{api.WithDefaultFlag(cfg.DefaultFlag), api.WithCachedFlags(cfg.CachedFlags...), api.WithLogger(logger)}
	if len(cfg.AdminKeys) > 0 {
		mw, err := adminMiddleware(cfg)
		if err != nil {
			return err
		}
		opts = append(opts, api.WithAdminAuth(httpx.AuthMiddleware(mw)))
	}
	controller := api.NewFeatureController(provider, cache.NewExpiring[bool](cache.WithTTL(cfg.TTL)), opts...)

	server := httpx.NewServer(
		httpx.WithAddress(cfg.Addr),
		httpx.WithLogger(logger),
		httpx.WithAllowedOrigins(cfg.AllowedOrigins...),
	)
	server.RegisterRoutes(controller.Register)

	logger.Infof("listening on %s (provider=%s, ttl=%s)", server.Address(), cfg.Provider, cfg.TTL)
	if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Infof("shut down")
	return nil
}

func adminMiddleware(cfg config.Config) (*auth.Middleware, error) {
	keys := make([]auth.Key, 0, len(cfg.AdminKeys))
	for _, pair := range cfg.AdminKeys {
		k, err := auth.ParseKey(pair)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	hasher := auth.NewBcryptHasher(auth.WithBcryptPepper([]byte(cfg.BcryptPepper)))
	return auth.NewMiddleware(auth.NewKeyring(hasher, keys))
}

// hashToken prints a fresh admin token (or hashes the one given) together
// with the name:hash pair to put in FLAGCHECK_ADMIN_KEYS.
func hashToken(args []string) error {
	fs := flag.NewFlagSet("flagcheck-backend -hash-token", flag.ContinueOnError)
	name := fs.String("name", "admin", "key name")
	token := fs.String("token", "", "token to hash; empty generates one")
	pepper := fs.String("pepper", os.Getenv(config.EnvPrefix+"PEPPER"), "server-side secret")
	if err := fs.Parse(args); err != nil {
		return err
	}

	raw := *token
	if raw == "" {
		var err error
		if raw, err = auth.GenerateSecureToken(32); err != nil {
			return err
		}
	}
	hash, err := auth.NewBcryptHasher(auth.WithBcryptPepper([]byte(*pepper))).Hash(context.Background(), []byte(raw))
	if err != nil {
		return err
	}
	fmt.Printf("token: %s\nkey:   %s:%s\n", raw, *name, hash)
	return nil
}
