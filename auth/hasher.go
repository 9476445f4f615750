package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/bcrypt"
)

const DefaultBcryptCost = 12

// BcryptHasher implements TokenHasher using bcrypt.
type BcryptHasher struct {
	cost   int
	pepper []byte
}

// BcryptHasherOption configures BcryptHasher.
type BcryptHasherOption func(*BcryptHasher)

// WithBcryptCost sets the bcrypt cost factor.
func WithBcryptCost(cost int) BcryptHasherOption {
	return func(h *BcryptHasher) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			h.cost = cost
		}
	}
}

// WithBcryptPepper sets a server-side secret that is combined with tokens.
func WithBcryptPepper(pepper []byte) BcryptHasherOption {
	return func(h *BcryptHasher) {
		h.pepper = append([]byte(nil), pepper...)
	}
}

// NewBcryptHasher creates a new bcrypt-based token hasher.
func NewBcryptHasher(opts ...BcryptHasherOption) *BcryptHasher {
	h := &BcryptHasher{cost: DefaultBcryptCost}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Hash returns the bcrypt encoding of plain (plus pepper).
func (h *BcryptHasher) Hash(ctx context.Context, plain []byte) ([]byte, error) {
	if err := contextError(ctx); err != nil {
		return nil, err
	}
	combined := h.withPepper(plain)
	defer clearBytes(combined)

	hashed, err := bcrypt.GenerateFromPassword(combined, h.cost)
	if err != nil {
		return nil, fmt.Errorf("auth: bcrypt hash failed: %w", err)
	}
	return hashed, nil
}

// Compare checks plain against a bcrypt hash produced by Hash.
func (h *BcryptHasher) Compare(ctx context.Context, plain, hash []byte) error {
	if err := contextError(ctx); err != nil {
		return err
	}
	if len(hash) == 0 {
		return ErrTokenInvalidHash
	}
	combined := h.withPepper(plain)
	defer clearBytes(combined)

	if err := bcrypt.CompareHashAndPassword(hash, combined); err != nil {
		switch {
		case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
			return ErrTokenMismatch
		case errors.Is(err, bcrypt.ErrHashTooShort):
			return ErrTokenInvalidHash
		}
		return fmt.Errorf("auth: bcrypt compare failed: %w", err)
	}
	return nil
}

func (h *BcryptHasher) withPepper(plain []byte) []byte {
	combined := make([]byte, 0, len(plain)+len(h.pepper))
	combined = append(combined, plain...)
	return append(combined, h.pepper...)
}

func clearBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// GenerateSecureToken returns length random bytes, base64url encoded.
func GenerateSecureToken(length int) (string, error) {
	if length <= 0 {
		length = 32
	}
	b := make([]byte, length)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return "", fmt.Errorf("auth: failed to generate secure token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
