// Package config reads binary settings from command-line flags, falling back
// to FLAGCHECK_* environment variables and then to built-in defaults.
package config

import (
	"errors"
	"flag"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/adeilh/go-flagcheck/cache"
	"github.com/adeilh/go-flagcheck/cache/redis"
	"github.com/adeilh/go-flagcheck/flags"
	"github.com/adeilh/go-flagcheck/flags/unleash"
	"github.com/labstack/gommon/log"
)

// EnvPrefix prefixes every environment variable the binaries read.
const EnvPrefix = "FLAGCHECK_"

// Provider names accepted by -provider.
const (
	ProviderStatic   = "static"
	ProviderUnleash  = "unleash"
	ProviderRedis    = "redis"
	ProviderPostgres = "postgres"
)

var ErrUnknownProvider = errors.New("config: unknown provider")

// Config holds everything the binaries need to wire a provider, cache,
// HTTP surface, and logger.
type Config struct {
	Addr           string
	Provider       string
	TTL            time.Duration
	DefaultFlag    string
	StaticFlags    []string
	CachedFlags    []string
	Unleash        unleash.Options
	Redis          redis.Options
	PostgresDSN    string
	AdminKeys      []string
	BcryptPepper   string
	AllowedOrigins []string
	BackendURL     string
	LogLevel       string
}

// LookupFunc reads an environment variable; os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// Load parses args for the named binary. Flags win over the environment.
func Load(name string, args []string, lookup LookupFunc) (Config, *flag.FlagSet, error) {
	if lookup == nil {
		lookup = func(string) (string, bool) { return "", false }
	}
	env := envReader{lookup: lookup}

	var cfg Config
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.StringVar(&cfg.Addr, "addr", env.str("ADDR", ":8080"), "listen address")
	fs.StringVar(&cfg.Provider, "provider", env.str("PROVIDER", ProviderStatic), "flag provider: static, unleash, redis or postgres")
	fs.DurationVar(&cfg.TTL, "ttl", env.duration("TTL", cache.DefaultTTL), "how long checked flags stay cached")
	fs.StringVar(&cfg.DefaultFlag, "default-flag", env.str("DEFAULT_FLAG", flags.DefaultFlag), "flag checked when no name is given")
	fs.Func("flag", "static flag as name=bool (repeatable)", appendTo(&cfg.StaticFlags))
	fs.Func("cache-flag", "flag name the server caches besides the default (repeatable)", appendTo(&cfg.CachedFlags))

	fs.StringVar(&cfg.Unleash.URL, "unleash-url", env.str("UNLEASH_URL", "http://localhost:4242/api/frontend"), "Unleash API URL")
	fs.StringVar(&cfg.Unleash.Token, "unleash-token", env.str("UNLEASH_TOKEN", ""), "Unleash API token or client key")
	fs.StringVar(&cfg.Unleash.AppName, "unleash-app", env.str("UNLEASH_APP", "default"), "Unleash application name")
	mode := fs.String("unleash-mode", env.str("UNLEASH_MODE", string(unleash.ModeFrontend)), "Unleash API: frontend or client")
	fs.DurationVar(&cfg.Unleash.RefreshInterval, "unleash-refresh", env.duration("UNLEASH_REFRESH", 5*time.Second), "Unleash polling interval")
	fs.BoolVar(&cfg.Unleash.SynchronousFetch, "unleash-sync", env.boolean("UNLEASH_SYNC", true), "fetch toggles before serving")

	fs.StringVar(&cfg.Redis.Addr, "redis-addr", env.str("REDIS_ADDR", "127.0.0.1:6379"), "Redis address")
	fs.StringVar(&cfg.Redis.Password, "redis-password", env.str("REDIS_PASSWORD", ""), "Redis password")
	fs.IntVar(&cfg.Redis.DB, "redis-db", env.integer("REDIS_DB", 0), "Redis database index")
	fs.StringVar(&cfg.Redis.KeyPrefix, "redis-prefix", env.str("REDIS_PREFIX", "flagcheck:"), "Redis key prefix for flag states")

	fs.StringVar(&cfg.PostgresDSN, "postgres-dsn", env.str("POSTGRES_DSN", ""), "lib/pq connection string")

	fs.Func("admin-key", "admin token as name:bcrypt-hash (repeatable, replaces FLAGCHECK_ADMIN_KEYS)", appendTo(&cfg.AdminKeys))
	fs.StringVar(&cfg.BcryptPepper, "pepper", env.str("PEPPER", ""), "server-side secret mixed into admin tokens")
	origins := fs.String("origins", env.str("ORIGINS", "http://localhost:5173"), "comma-separated CORS origins")
	fs.StringVar(&cfg.BackendURL, "backend-url", env.str("BACKEND_URL", "http://localhost:8080"), "backend base URL for backend checks")
	fs.StringVar(&cfg.LogLevel, "log-level", env.str("LOG_LEVEL", "info"), "debug, info, warn, error or off")

	if err := fs.Parse(args); err != nil {
		return Config{}, fs, err
	}
	if err := env.err(); err != nil {
		return Config{}, fs, err
	}
	if len(cfg.StaticFlags) == 0 {
		cfg.StaticFlags = env.list("FLAGS")
	}
	if len(cfg.AdminKeys) == 0 {
		cfg.AdminKeys = env.list("ADMIN_KEYS")
	}
	if len(cfg.CachedFlags) == 0 {
		cfg.CachedFlags = env.list("CACHED_FLAGS")
	}
	cfg.Unleash.Mode = unleash.Mode(*mode)
	cfg.AllowedOrigins = splitList(*origins)

	return cfg, fs, cfg.Validate()
}

// Validate reports settings that cannot be wired.
func (c Config) Validate() error {
	switch c.Provider {
	case ProviderStatic, ProviderUnleash, ProviderRedis:
	case ProviderPostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("config: postgres provider needs -postgres-dsn")
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownProvider, c.Provider)
	}
	switch c.Unleash.Mode {
	case unleash.ModeFrontend, unleash.ModeClient:
	default:
		return fmt.Errorf("config: unknown unleash mode %q", c.Unleash.Mode)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// ParseLevel maps a level name to a gommon log level.
func ParseLevel(s string) (log.Lvl, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return log.DEBUG, nil
	case "", "info":
		return log.INFO, nil
	case "warn", "warning":
		return log.WARN, nil
	case "error":
		return log.ERROR, nil
	case "off":
		return log.OFF, nil
	default:
		return 0, fmt.Errorf("config: unknown log level %q", s)
	}
}

// NewLogger builds the gommon logger the binaries share.
func (c Config) NewLogger(prefix string) *log.Logger {
	l := log.New(prefix)
	lvl, err := ParseLevel(c.LogLevel)
	if err != nil {
		lvl = log.INFO
	}
	l.SetLevel(lvl)
	l.SetHeader("${time_rfc3339} ${level} ${prefix}")
	return l
}

type envReader struct {
	lookup LookupFunc
	errs   []error
}

func (e *envReader) str(key, def string) string {
	if v, ok := e.lookup(EnvPrefix + key); ok && v != "" {
		return v
	}
	return def
}

func (e *envReader) duration(key string, def time.Duration) time.Duration {
	v, ok := e.lookup(EnvPrefix + key)
	if !ok || v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("config: %s%s: %w", EnvPrefix, key, err))
		return def
	}
	return d
}

func (e *envReader) integer(key string, def int) int {
	v, ok := e.lookup(EnvPrefix + key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("config: %s%s: %w", EnvPrefix, key, err))
		return def
	}
	return n
}

func (e *envReader) boolean(key string, def bool) bool {
	v, ok := e.lookup(EnvPrefix + key)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("config: %s%s: %w", EnvPrefix, key, err))
		return def
	}
	return b
}

func (e *envReader) list(key string) []string {
	v, _ := e.lookup(EnvPrefix + key)
	return splitList(v)
}

func (e *envReader) err() error { return errors.Join(e.errs...) }

func appendTo(dst *[]string) func(string) error {
	return func(v string) error {
		*dst = append(*dst, v)
		return nil
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
