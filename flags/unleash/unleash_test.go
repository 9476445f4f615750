package unleash

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/adeilh/go-flagcheck/flags"
	"github.com/adeilh/go-flagcheck/httpx"
)

type fakeUnleash struct {
	mu       sync.Mutex
	enabled  bool
	fail     bool
	requests atomic.Int32
	headers  map[string]string
}

func (f *fakeUnleash) set(enabled, fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enabled, f.fail = enabled, fail
}

func (f *fakeUnleash) server(t *testing.T) *httpx.TestServer {
	t.Helper()
	server := httpx.NewServer(httpx.WithMiddlewares(httpx.RecoverMiddleware()))
	server.RegisterRoutes(func(a *httpx.App) {
		a.GET("/api/frontend", func(c httpx.Context) error {
			f.requests.Add(1)
			f.mu.Lock()
			defer f.mu.Unlock()
			f.headers = map[string]string{
				"Authorization":      c.Request().Header.Get("Authorization"),
				"UNLEASH-APPNAME":    c.Request().Header.Get("UNLEASH-APPNAME"),
				"UNLEASH-INSTANCEID": c.Request().Header.Get("UNLEASH-INSTANCEID"),
				"appName":            c.QueryParam("appName"),
			}
			if f.fail {
				return httpx.HTTPError(httpx.StatusServiceUnavailable, "down")
			}
			toggles := []map[string]any{}
			if f.enabled {
				toggles = append(toggles, map[string]any{"name": flags.DefaultFlag, "enabled": true})
			}
			return c.JSON(httpx.StatusOK, map[string]any{"toggles": toggles})
		})
		a.GET("/api/client/features", func(c httpx.Context) error {
			f.requests.Add(1)
			return c.JSON(httpx.StatusOK, map[string]any{
				"version": 2,
				"features": []map[string]any{
					{"name": "plain", "enabled": true, "strategies": []map[string]any{}},
					{"name": "default-strategy", "enabled": true, "strategies": []map[string]any{{"name": "default"}}},
					{"name": "rollout", "enabled": true, "strategies": []map[string]any{{"name": "flexibleRollout"}}},
					{"name": "off", "enabled": false, "strategies": []map[string]any{{"name": "default"}}},
				},
			})
		})
	})
	ts := httpx.NewTestServer(server.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestClientNotReadyBeforeFetch(t *testing.T) {
	c := New(Options{URL: "http://127.0.0.1:1/api/frontend"})
	if _, err := c.IsEnabled(context.Background(), flags.DefaultFlag); !errors.Is(err, flags.ErrNotReady) {
		t.Fatalf("IsEnabled() error = %v, want ErrNotReady", err)
	}
}

func TestClientFrontendSynchronousStart(t *testing.T) {
	fake := &fakeUnleash{enabled: true}
	ts := fake.server(t)

	c := New(Options{
		URL:              ts.BaseURL() + "/api/frontend",
		Token:            "default:development.unleash-insecure-frontend-api-token",
		SynchronousFetch: true,
		RefreshInterval:  time.Hour,
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	select {
	case <-c.Ready():
	default:
		t.Fatalf("Ready() should be closed after a synchronous start")
	}

	on, err := c.IsEnabled(ctx, flags.DefaultFlag)
	if err != nil || !on {
		t.Fatalf("IsEnabled() = %v, %v; want true", on, err)
	}
	if on, _ := c.IsEnabled(ctx, "unknown"); on {
		t.Fatalf("unknown flag should be disabled")
	}

	fake.mu.Lock()
	headers := fake.headers
	fake.mu.Unlock()
	if headers["Authorization"] != "default:development.unleash-insecure-frontend-api-token" {
		t.Fatalf("Authorization header = %q", headers["Authorization"])
	}
	if headers["UNLEASH-APPNAME"] != "default" || headers["appName"] != "default" {
		t.Fatalf("app name not sent: %v", headers)
	}
	if headers["UNLEASH-INSTANCEID"] != "flagcheck" {
		t.Fatalf("instance id = %q", headers["UNLEASH-INSTANCEID"])
	}
}

func TestClientRefreshKeepsSnapshotOnError(t *testing.T) {
	fake := &fakeUnleash{enabled: true}
	ts := fake.server(t)

	c := New(Options{URL: ts.BaseURL() + "/api/frontend"})
	ctx := context.Background()

	if err := c.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	fake.set(false, true)
	if err := c.Refresh(ctx); err == nil {
		t.Fatalf("expected refresh error")
	}
	if on, _ := c.IsEnabled(ctx, flags.DefaultFlag); !on {
		t.Fatalf("failed refresh should keep the last snapshot")
	}

	fake.set(false, false)
	if err := c.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if on, _ := c.IsEnabled(ctx, flags.DefaultFlag); on {
		t.Fatalf("flag should be off after refresh")
	}
	if c.Fetches() != 2 {
		t.Fatalf("Fetches() = %d, want 2", c.Fetches())
	}
}

func TestClientBackgroundPolling(t *testing.T) {
	fake := &fakeUnleash{enabled: true}
	ts := fake.server(t)

	c := New(Options{URL: ts.BaseURL() + "/api/frontend", RefreshInterval: 20 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitCtx, waitCancel := context.WithTimeout(ctx, 2*time.Second)
	defer waitCancel()
	if err := c.WaitReady(waitCtx); err != nil {
		t.Fatalf("WaitReady() error = %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for fake.requests.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if got := fake.requests.Load(); got < 3 {
		t.Fatalf("requests = %d, want at least 3", got)
	}
}

func TestClientSynchronousStartFailure(t *testing.T) {
	fake := &fakeUnleash{fail: true}
	ts := fake.server(t)

	var reported atomic.Int32
	c := New(Options{
		URL:              ts.BaseURL() + "/api/frontend",
		SynchronousFetch: true,
		OnError:          func(error) { reported.Add(1) },
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := c.Start(ctx); err == nil {
		t.Fatalf("expected Start() to fail")
	}
	if reported.Load() != 1 {
		t.Fatalf("OnError calls = %d, want 1", reported.Load())
	}
}

func TestClientModeEvaluation(t *testing.T) {
	fake := &fakeUnleash{}
	ts := fake.server(t)

	c := New(Options{URL: ts.BaseURL() + "/api", Mode: ModeClient})
	ctx := context.Background()
	if err := c.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	want := map[string]bool{
		"plain":            true,
		"default-strategy": true,
		"rollout":          false,
		"off":              false,
		"missing":          false,
	}
	for name, exp := range want {
		got, err := c.IsEnabled(ctx, name)
		if err != nil {
			t.Fatalf("IsEnabled(%q) error = %v", name, err)
		}
		if got != exp {
			t.Errorf("IsEnabled(%q) = %v, want %v", name, got, exp)
		}
	}
}

func TestWaitReadyTimeout(t *testing.T) {
	c := New(Options{})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := c.WaitReady(ctx); !errors.Is(err, flags.ErrNotReady) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("WaitReady() = %v", err)
	}
}
