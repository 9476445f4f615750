package postgres

import "time"

// Options configures the connection pool behind a FlagRepository. Flag reads
// are short single-row queries, so a small pool is enough.
type Options struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	// SkipMigrations leaves schema management to the operator.
	SkipMigrations bool
}

type Option func(*Options)

func (o Options) withDefaults() Options {
	if o.MaxOpenConns <= 0 {
		o.MaxOpenConns = 4
	}
	if o.MaxIdleConns <= 0 || o.MaxIdleConns > o.MaxOpenConns {
		o.MaxIdleConns = o.MaxOpenConns
	}
	if o.ConnMaxLifetime <= 0 {
		o.ConnMaxLifetime = 30 * time.Minute
	}
	return o
}

// WithDSN sets the lib/pq connection string.
func WithDSN(dsn string) Option {
	return func(o *Options) { o.DSN = dsn }
}

// WithPool sizes the pool. Zero values keep the defaults.
func WithPool(maxOpen, maxIdle int, lifetime time.Duration) Option {
	return func(o *Options) {
		o.MaxOpenConns, o.MaxIdleConns, o.ConnMaxLifetime = maxOpen, maxIdle, lifetime
	}
}

// WithoutMigrations stops Connect from creating the flag table.
func WithoutMigrations() Option {
	return func(o *Options) { o.SkipMigrations = true }
}

func buildOptions(opts []Option) Options {
	var o Options
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o.withDefaults()
}
