package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrTokenNotFound  = errors.New("auth: admin token missing")
	ErrTokenMalformed = errors.New("auth: malformed authorization header")
)

// DefaultRealm names the protected area in WWW-Authenticate challenges.
const DefaultRealm = "flagcheck-admin"

// TokenExtractor pulls the raw admin token out of a request.
type TokenExtractor func(*http.Request) (string, error)

// MiddlewareSkipper lets a request through without a token.
type MiddlewareSkipper func(*http.Request) bool

// MiddlewareErrorHandler writes the response for a rejected request.
type MiddlewareErrorHandler func(http.ResponseWriter, *http.Request, error)

type MiddlewareOption func(*middlewareConfig)

type middlewareConfig struct {
	extractor    TokenExtractor
	skipper      MiddlewareSkipper
	errorHandler MiddlewareErrorHandler
	realm        string
}

func (c middlewareConfig) withDefaults() middlewareConfig {
	if c.realm == "" {
		c.realm = DefaultRealm
	}
	if c.extractor == nil {
		c.extractor = BearerTokenExtractor()
	}
	if c.skipper == nil {
		c.skipper = func(*http.Request) bool { return false }
	}
	if c.errorHandler == nil {
		c.errorHandler = challengeErrorHandler(c.realm)
	}
	return c
}

// WithTokenExtractor replaces the default bearer-header lookup.
func WithTokenExtractor(extractor TokenExtractor) MiddlewareOption {
	return func(cfg *middlewareConfig) { cfg.extractor = extractor }
}

// WithSkipper lets matching requests bypass authentication.
func WithSkipper(skipper MiddlewareSkipper) MiddlewareOption {
	return func(cfg *middlewareConfig) { cfg.skipper = skipper }
}

// WithErrorHandler replaces the JSON 401 response.
func WithErrorHandler(handler MiddlewareErrorHandler) MiddlewareOption {
	return func(cfg *middlewareConfig) { cfg.errorHandler = handler }
}

// WithRealm sets the realm advertised in the 401 challenge.
func WithRealm(realm string) MiddlewareOption {
	return func(cfg *middlewareConfig) { cfg.realm = strings.TrimSpace(realm) }
}

// BearerTokenExtractor reads "Authorization: Bearer <token>".
func BearerTokenExtractor() TokenExtractor {
	return func(r *http.Request) (string, error) {
		header := r.Header.Get("Authorization")
		if header == "" {
			return "", ErrTokenNotFound
		}
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") {
			return "", ErrTokenMalformed
		}
		if token = strings.TrimSpace(token); token == "" {
			return "", ErrTokenMalformed
		}
		return token, nil
	}
}

// HeaderTokenExtractor reads the token from a dedicated header such as
// X-Flagcheck-Token, for clients that cannot set Authorization.
func HeaderTokenExtractor(name string) TokenExtractor {
	name = http.CanonicalHeaderKey(strings.TrimSpace(name))
	return func(r *http.Request) (string, error) {
		if name == "" {
			return "", ErrTokenMalformed
		}
		token := strings.TrimSpace(r.Header.Get(name))
		if token == "" {
			return "", ErrTokenNotFound
		}
		return token, nil
	}
}

// FirstToken tries each extractor in turn. A missing token moves on to the
// next one; a malformed one stops the search.
func FirstToken(extractors ...TokenExtractor) TokenExtractor {
	copied := append([]TokenExtractor(nil), extractors...)
	return func(r *http.Request) (string, error) {
		for _, extractor := range copied {
			if extractor == nil {
				continue
			}
			token, err := extractor(r)
			if err == nil {
				return token, nil
			}
			if !errors.Is(err, ErrTokenNotFound) {
				return "", err
			}
		}
		return "", ErrTokenNotFound
	}
}

// SkipReads lets GET, HEAD and OPTIONS through so only writes need a token.
func SkipReads(r *http.Request) bool {
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

func challengeErrorHandler(realm string) MiddlewareErrorHandler {
	return func(w http.ResponseWriter, _ *http.Request, err error) {
		status, msg := http.StatusUnauthorized, "invalid admin token"
		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			status, msg = http.StatusGatewayTimeout, "token verification timed out"
		case errors.Is(err, ErrNoKeys):
			status, msg = http.StatusServiceUnavailable, "no admin keys configured"
		case errors.Is(err, ErrTokenNotFound), errors.Is(err, ErrTokenMalformed):
			msg = err.Error()
		}
		if status == http.StatusUnauthorized {
			w.Header().Set("WWW-Authenticate", fmt.Sprintf("Bearer realm=%q", realm))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
	}
}
