package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/adeilh/go-flagcheck/cache"
)

// Key is a named API token hash.
type Key struct {
	Name string
	Hash []byte
}

// ParseKey reads a "name:bcrypt-hash" pair as found in configuration.
func ParseKey(pair string) (Key, error) {
	name, hash, ok := strings.Cut(strings.TrimSpace(pair), ":")
	if !ok || name == "" || hash == "" {
		return Key{}, fmt.Errorf("auth: key %q must be name:hash", pair)
	}
	return Key{Name: name, Hash: []byte(hash)}, nil
}

// Keyring verifies bearer tokens against a fixed set of hashed keys.
// Successful verifications are remembered for a short time so repeated
// requests do not pay the bcrypt cost each time.
type Keyring struct {
	hasher   TokenHasher
	keys     []Key
	verified *cache.Expiring[Principal]
}

// KeyringOption configures a Keyring.
type KeyringOption func(*keyringConfig)

type keyringConfig struct {
	rememberFor time.Duration
	now         func() time.Time
}

// WithRememberFor sets how long a verified token skips bcrypt.
func WithRememberFor(d time.Duration) KeyringOption {
	return func(c *keyringConfig) { c.rememberFor = d }
}

// WithKeyringClock overrides the clock of the verification memo.
func WithKeyringClock(fn func() time.Time) KeyringOption {
	return func(c *keyringConfig) {
		if fn != nil {
			c.now = fn
		}
	}
}

// NewKeyring builds a Keyring. A nil hasher uses NewBcryptHasher().
func NewKeyring(hasher TokenHasher, keys []Key, opts ...KeyringOption) *Keyring {
	if hasher == nil {
		hasher = NewBcryptHasher()
	}
	cfg := keyringConfig{rememberFor: time.Minute, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return &Keyring{
		hasher:   hasher,
		keys:     append([]Key(nil), keys...),
		verified: cache.NewExpiring[Principal](cache.WithTTL(cfg.rememberFor), cache.WithClock(cfg.now)),
	}
}

// Len reports the number of configured keys.
func (k *Keyring) Len() int { return len(k.keys) }

func (k *Keyring) ParseToken(ctx context.Context, raw string) (Principal, error) {
	if len(k.keys) == 0 {
		return Principal{}, ErrNoKeys
	}
	sum := sha256.Sum256([]byte(raw))
	memoKey := hex.EncodeToString(sum[:])
	if p, ok := k.verified.Get(memoKey); ok {
		return p, nil
	}

	for _, key := range k.keys {
		err := k.hasher.Compare(ctx, []byte(raw), key.Hash)
		switch {
		case err == nil:
			p := Principal{Name: key.Name}
			k.verified.Set(memoKey, p)
			return p, nil
		case errors.Is(err, ErrTokenMismatch):
			continue
		default:
			return Principal{}, err
		}
	}
	return Principal{}, ErrTokenMismatch
}
