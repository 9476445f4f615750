package auth

import (
	"context"
	"errors"
	"net/http"
)

// Middleware rejects requests without a valid admin token and stores the
// token owner in the request context.
type Middleware struct {
	parser TokenParser
	cfg    middlewareConfig
}

type principalContextKey struct{}

func NewMiddleware(parser TokenParser, opts ...MiddlewareOption) (*Middleware, error) {
	if parser == nil {
		return nil, errors.New("auth: middleware requires a token parser")
	}
	var cfg middlewareConfig
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return &Middleware{parser: parser, cfg: cfg.withDefaults()}, nil
}

func (m *Middleware) Handler(next http.Handler) http.Handler {
	if m == nil {
		panic("auth: middleware is nil")
	}
	if next == nil {
		next = http.NotFoundHandler()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.cfg.skipper(r) {
			next.ServeHTTP(w, r)
			return
		}
		p, err := m.authenticate(r)
		if err != nil {
			m.cfg.errorHandler(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}

func (m *Middleware) authenticate(r *http.Request) (Principal, error) {
	raw, err := m.cfg.extractor(r)
	if err != nil {
		return Principal{}, err
	}
	return m.parser.ParseToken(r.Context(), raw)
}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext returns the principal stored by Middleware.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	p, ok := ctx.Value(principalContextKey{}).(Principal)
	return p, ok
}
