package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewMiddlewareRequiresParser(t *testing.T) {
	if _, err := NewMiddleware(nil); err == nil {
		t.Fatalf("expected error when parser is nil")
	}
}

func TestMiddlewareInjectsPrincipalIntoContext(t *testing.T) {
	parser := &fakeParser{principal: Principal{Name: "ops"}}
	middleware, err := NewMiddleware(parser)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer source-token")
	res := httptest.NewRecorder()

	var invoked bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		invoked = true
		p, ok := PrincipalFromContext(r.Context())
		if !ok {
			t.Fatalf("principal missing from context")
		}
		if p.Name != "ops" {
			t.Fatalf("unexpected principal injected: %s", p.Name)
		}
	})

	middleware.Handler(next).ServeHTTP(res, req)

	if !invoked {
		t.Fatalf("expected next handler to be invoked")
	}
	if parser.raw != "source-token" {
		t.Fatalf("parser received %q", parser.raw)
	}
}

func TestMiddlewareSkipperShortCircuits(t *testing.T) {
	parser := &fakeParser{principal: Principal{Name: "ops"}}
	middleware, err := NewMiddleware(parser, WithSkipper(func(r *http.Request) bool {
		return r.URL.Path == "/healthz"
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()

	var invoked bool
	middleware.Handler(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		invoked = true
	})).ServeHTTP(res, req)

	if !invoked {
		t.Fatalf("expected handler invocation")
	}
	if parser.raw != "" {
		t.Fatalf("parser should not be called when skipped")
	}
}

func TestMiddlewareRejects(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		parserErr  error
		wantStatus int
	}{
		{name: "missing header", wantStatus: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic abc", wantStatus: http.StatusUnauthorized},
		{name: "empty bearer", header: "Bearer   ", wantStatus: http.StatusUnauthorized},
		{name: "mismatch", header: "Bearer nope", parserErr: ErrTokenMismatch, wantStatus: http.StatusUnauthorized},
		{name: "deadline", header: "Bearer slow", parserErr: context.DeadlineExceeded, wantStatus: http.StatusGatewayTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parser := &fakeParser{err: tt.parserErr}
			middleware, _ := NewMiddleware(parser)

			req := httptest.NewRequest(http.MethodPut, "/api/features/x", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			res := httptest.NewRecorder()

			var handlerCalled bool
			middleware.Handler(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
				handlerCalled = true
			})).ServeHTTP(res, req)

			if handlerCalled {
				t.Fatalf("handler should not be called")
			}
			if res.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", res.Code, tt.wantStatus)
			}
			var body map[string]string
			if err := json.Unmarshal(res.Body.Bytes(), &body); err != nil || body["error"] == "" {
				t.Fatalf("expected JSON error body, got %q", res.Body.String())
			}
		})
	}
}

func TestMiddlewareCustomErrorHandler(t *testing.T) {
	parser := &fakeParser{err: errors.New("boom")}
	var received error
	middleware, err := NewMiddleware(parser, WithErrorHandler(func(w http.ResponseWriter, _ *http.Request, err error) {
		received = err
		w.WriteHeader(http.StatusTeapot)
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer x")
	res := httptest.NewRecorder()
	middleware.Handler(nil).ServeHTTP(res, req)

	if res.Code != http.StatusTeapot {
		t.Fatalf("status = %d, want 418", res.Code)
	}
	if received == nil || received.Error() != "boom" {
		t.Fatalf("error handler received %v", received)
	}
}

func TestMiddlewareHandlerPanicsOnNilMiddleware(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic for nil middleware")
		}
	}()

	var m *Middleware
	m.Handler(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
}

func TestHeaderAndFirstTokenExtractors(t *testing.T) {
	extractor := FirstToken(BearerTokenExtractor(), HeaderTokenExtractor("x-flagcheck-token"))

	req := httptest.NewRequest(http.MethodPut, "/", nil)
	req.Header.Set("X-Flagcheck-Token", "from-header")
	got, err := extractor(req)
	if err != nil || got != "from-header" {
		t.Fatalf("extractor() = %q, %v", got, err)
	}

	req = httptest.NewRequest(http.MethodPut, "/", nil)
	req.Header.Set("Authorization", "Basic abc")
	req.Header.Set("X-Flagcheck-Token", "from-header")
	if _, err := extractor(req); !errors.Is(err, ErrTokenMalformed) {
		t.Fatalf("malformed bearer should stop the search, got %v", err)
	}

	req = httptest.NewRequest(http.MethodPut, "/", nil)
	if _, err := extractor(req); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("expected ErrTokenNotFound, got %v", err)
	}
}

func TestChallengeHeader(t *testing.T) {
	middleware, _ := NewMiddleware(&fakeParser{err: ErrTokenMismatch}, WithRealm("flags"))

	req := httptest.NewRequest(http.MethodDelete, "/api/features/x", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	res := httptest.NewRecorder()
	middleware.Handler(nil).ServeHTTP(res, req)

	if got := res.Header().Get("WWW-Authenticate"); got != `Bearer realm="flags"` {
		t.Fatalf("WWW-Authenticate = %q", got)
	}
	var body map[string]string
	_ = json.Unmarshal(res.Body.Bytes(), &body)
	if body["error"] != "invalid admin token" {
		t.Fatalf("mismatch details should not leak, got %q", body["error"])
	}
}

func TestNoKeysIsUnavailable(t *testing.T) {
	middleware, _ := NewMiddleware(NewKeyring(nil, nil))

	req := httptest.NewRequest(http.MethodPut, "/api/features/x", nil)
	req.Header.Set("Authorization", "Bearer anything")
	res := httptest.NewRecorder()
	middleware.Handler(nil).ServeHTTP(res, req)

	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", res.Code)
	}
	if res.Header().Get("WWW-Authenticate") != "" {
		t.Fatalf("no challenge expected when no keys exist")
	}
}

func TestSkipReads(t *testing.T) {
	tests := map[string]bool{
		http.MethodGet:     true,
		http.MethodHead:    true,
		http.MethodOptions: true,
		http.MethodPut:     false,
		http.MethodDelete:  false,
	}
	for method, want := range tests {
		if got := SkipReads(httptest.NewRequest(method, "/", nil)); got != want {
			t.Fatalf("SkipReads(%s) = %v, want %v", method, got, want)
		}
	}
}

func TestPrincipalFromContextMissing(t *testing.T) {
	if _, ok := PrincipalFromContext(context.Background()); ok {
		t.Error("expected false for context without principal")
	}
	if _, ok := PrincipalFromContext(nil); ok {
		t.Error("expected false for nil context")
	}
}

type fakeParser struct {
	principal Principal
	err       error
	raw       string
}

func (p *fakeParser) ParseToken(_ context.Context, raw string) (Principal, error) {
	p.raw = raw
	if p.err != nil {
		return Principal{}, p.err
	}
	return p.principal, nil
}
