package redis

import "time"

// DefaultAddr is used when Options.Addr is empty.
const DefaultAddr = "127.0.0.1:6379"

// Options controls how the Redis store connects and namespaces its keys.
type Options struct {
	Addr     string
	Password string
	DB       int
	// KeyPrefix is prepended to every key, e.g. "flagcheck:" so flag states
	// live next to other data without collisions.
	KeyPrefix string

	DialTimeout time.Duration
	// IOTimeout bounds each command's write and read.
	IOTimeout time.Duration
	// PoolSize caps idle connections kept for reuse. Busy callers beyond it
	// dial fresh connections that are closed after use.
	PoolSize int
}

func (o Options) withDefaults() Options {
	if o.Addr == "" {
		o.Addr = DefaultAddr
	}
	if o.DB < 0 {
		o.DB = 0
	}
	if o.DialTimeout <= 0 {
		o.DialTimeout = 5 * time.Second
	}
	if o.IOTimeout <= 0 {
		o.IOTimeout = 2 * time.Second
	}
	if o.PoolSize <= 0 {
		o.PoolSize = 8
	}
	return o
}
