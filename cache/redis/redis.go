package redis

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/adeilh/go-flagcheck/cache"
)

// Store implements cache.Store on top of a small pooled RESP client. Every
// key is namespaced with Options.KeyPrefix.
type Store struct {
	opts   Options
	dialFn DialFunc
	pool   chan *conn
}

// DialFunc opens a raw connection to the server.
type DialFunc func(context.Context, Options) (net.Conn, error)

var _ cache.Store = (*Store)(nil)

// NewStore builds a Redis-backed store. No connection is made until the
// first command.
func NewStore(opts Options) *Store {
	cfg := opts.withDefaults()
	return &Store{opts: cfg, dialFn: defaultDial, pool: make(chan *conn, cfg.PoolSize)}
}

// WithDial overrides the dialer (useful for tests).
func (s *Store) WithDial(fn DialFunc) *Store {
	if fn != nil {
		s.dialFn = fn
	}
	return s
}

func (s *Store) key(k string) string { return s.opts.KeyPrefix + k }

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	reply, err := s.do(ctx, "GET", s.key(key))
	if err != nil {
		return nil, err
	}
	switch v := reply.(type) {
	case nil:
		return nil, cache.ErrNotFound
	case []byte:
		return v, nil
	default:
		return nil, fmt.Errorf("redis: unexpected GET reply %T", reply)
	}
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	args := []string{"SET", s.key(key), string(value)}
	if ttl > 0 {
		args = append(args, "PX", strconv.FormatInt(max(ttl.Milliseconds(), 1), 10))
	}
	reply, err := s.do(ctx, args...)
	if err != nil {
		return err
	}
	if !isOK(reply) {
		return fmt.Errorf("redis: SET failed: %v", reply)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	reply, err := s.do(ctx, "DEL", s.key(key))
	if err != nil {
		return err
	}
	n, ok := reply.(int64)
	if !ok {
		return fmt.Errorf("redis: DEL failed: %v", reply)
	}
	if n == 0 {
		return cache.ErrNotFound
	}
	return nil
}

// MGet fetches several keys in one round-trip. Missing keys are absent from
// the returned map.
func (s *Store) MGet(ctx context.Context, keys ...string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	args := make([]string, 0, len(keys)+1)
	args = append(args, "MGET")
	for _, k := range keys {
		args = append(args, s.key(k))
	}
	reply, err := s.do(ctx, args...)
	if err != nil {
		return nil, err
	}
	values, ok := reply.([]any)
	if !ok || len(values) != len(keys) {
		return nil, fmt.Errorf("redis: unexpected MGET reply %v", reply)
	}
	for i, v := range values {
		if b, ok := v.([]byte); ok {
			out[keys[i]] = b
		}
	}
	return out, nil
}

// Ping checks that the server answers.
func (s *Store) Ping(ctx context.Context) error {
	reply, err := s.do(ctx, "PING")
	if err != nil {
		return err
	}
	if msg, ok := reply.(string); !ok || msg != "PONG" {
		return fmt.Errorf("redis: unexpected PING reply %v", reply)
	}
	return nil
}

// Close drops every pooled connection.
func (s *Store) Close() error {
	for {
		select {
		case c := <-s.pool:
			_ = c.Close()
		default:
			return nil
		}
	}
}

func (s *Store) do(ctx context.Context, parts ...string) (any, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	var reply any
	err := s.withConn(ctx, func(c *conn) error {
		if err := s.write(c, parts...); err != nil {
			return err
		}
		var err error
		reply, err = s.read(c)
		return err
	})
	return reply, err
}

type conn struct {
	net.Conn
	reader *bufio.Reader
}

func (s *Store) withConn(ctx context.Context, fn func(*conn) error) error {
	c, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	err = fn(c)
	s.release(c, isBroken(err))
	return err
}

func (s *Store) acquire(ctx context.Context) (*conn, error) {
	select {
	case c := <-s.pool:
		return c, nil
	default:
	}

	nc, err := s.dialFn(ctx, s.opts)
	if err != nil {
		return nil, err
	}
	c := &conn{Conn: nc, reader: bufio.NewReader(nc)}
	if err := s.handshake(c); err != nil {
		_ = nc.Close()
		return nil, err
	}
	return c, nil
}

func (s *Store) release(c *conn, broken bool) {
	if broken {
		_ = c.Close()
		return
	}
	select {
	case s.pool <- c:
	default:
		_ = c.Close()
	}
}

func (s *Store) handshake(c *conn) error {
	if s.opts.Password != "" {
		if err := s.expectOK(c, "AUTH", s.opts.Password); err != nil {
			return err
		}
	}
	if s.opts.DB > 0 {
		if err := s.expectOK(c, "SELECT", strconv.Itoa(s.opts.DB)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) expectOK(c *conn, parts ...string) error {
	if err := s.write(c, parts...); err != nil {
		return err
	}
	reply, err := s.read(c)
	if err != nil {
		return err
	}
	if !isOK(reply) {
		return fmt.Errorf("redis: %s: expected OK, got %v", parts[0], reply)
	}
	return nil
}

func (s *Store) write(c *conn, parts ...string) error {
	if err := setDeadline(c.SetWriteDeadline, s.opts.IOTimeout); err != nil {
		return err
	}
	_, err := c.Write(encodeCommand(parts...))
	return err
}

func (s *Store) read(c *conn) (any, error) {
	if err := setDeadline(c.SetReadDeadline, s.opts.IOTimeout); err != nil {
		return nil, err
	}
	return decodeReply(c.reader)
}

func defaultDial(ctx context.Context, opts Options) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: opts.DialTimeout}
	return dialer.DialContext(ctx, "tcp", opts.Addr)
}

// isBroken reports whether a connection must not go back to the pool. Server
// error replies leave the stream in a usable state; transport failures and
// malformed replies do not.
func isBroken(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, ErrMalformedReply) ||
		errors.As(err, &netErr)
}

func setDeadline(setter func(time.Time) error, timeout time.Duration) error {
	if timeout <= 0 {
		return nil
	}
	return setter(time.Now().Add(timeout))
}

func ctxErr(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	return ctx.Err()
}
