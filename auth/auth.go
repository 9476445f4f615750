// Package auth guards the admin endpoints with bearer API tokens. Tokens are
// stored only as bcrypt hashes.
package auth

import (
	"context"
	"errors"
)

var (
	ErrTokenMismatch    = errors.New("auth: token does not match")
	ErrTokenInvalidHash = errors.New("auth: invalid token hash")
	ErrNoKeys           = errors.New("auth: keyring is empty")
)

// Principal identifies the holder of a verified token.
type Principal struct {
	Name string
}

// TokenParser turns a raw bearer token into the principal that owns it.
type TokenParser interface {
	ParseToken(ctx context.Context, raw string) (Principal, error)
}

// TokenHasher hashes and verifies raw API tokens.
type TokenHasher interface {
	Hash(ctx context.Context, plain []byte) ([]byte, error)
	Compare(ctx context.Context, plain, hash []byte) error
}

func contextError(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	return ctx.Err()
}
