package httpx

import (
	"net/http"
	"net/http/httptest"
)

// TestServer serves a handler on a loopback port for tests.
type TestServer struct{ *httptest.Server }

// NewTestServer starts h on a random local port.
func NewTestServer(h http.Handler) *TestServer {
	return &TestServer{httptest.NewServer(h)}
}

// BaseURL returns the server's root URL.
func (ts *TestServer) BaseURL() string { return ts.URL }
