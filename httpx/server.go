package httpx

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Server owns an App and the http.Server that serves it.
type Server struct {
	app      *App
	address  string
	timeouts [2]time.Duration
	shutdown time.Duration
}

// RouteRegistrar mounts routes on an App.
type RouteRegistrar func(*App)

func NewServer(opts ...ServerOption) *Server {
	var cfg ServerOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	cfg = cfg.withDefaults()

	app := New()
	e := app.e
	e.HideBanner = true
	e.HidePort = true
	if cfg.Logger != nil {
		e.Logger = cfg.Logger
	}
	e.HTTPErrorHandler = jsonErrorHandler(e.Logger)

	stack := cfg.Middlewares
	if stack == nil {
		stack = []MiddlewareFunc{RecoverMiddleware(), RequestLogger(e.Logger)}
	}
	e.Use(stack...)
	if len(cfg.AllowedOrigins) > 0 {
		e.Use(CORS(cfg.AllowedOrigins...))
	}

	return &Server{
		app:      app,
		address:  cfg.Address,
		timeouts: [2]time.Duration{cfg.ReadTimeout, cfg.WriteTimeout},
		shutdown: cfg.ShutdownTimeout,
	}
}

func (s *Server) RegisterRoutes(reg RouteRegistrar) {
	if reg != nil {
		reg(s.app)
	}
}

func (s *Server) Handler() http.Handler { return s.app.e }

// Address is the listen address the server was configured with.
func (s *Server) Address() string { return s.address }

// Start serves until ctx is done, then shuts down gracefully and returns
// ctx.Err(). A listen failure is returned immediately.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.address,
		Handler:      s.app.e,
		ReadTimeout:  s.timeouts[0],
		WriteTimeout: s.timeouts[1],
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdown)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.app.e.Logger.Errorf("shutdown: %v", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// jsonErrorHandler renders every error as {"error": msg}. Errors that are
// not HTTP errors become 500s and are logged.
func jsonErrorHandler(l Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		code := StatusInternalError
		msg := http.StatusText(code)
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			switch m := he.Message.(type) {
			case string:
				msg = m
			case error:
				msg = m.Error()
			}
		} else {
			l.Errorf("%s %s: %v", c.Request().Method, c.Request().URL.Path, err)
		}
		if c.Response().Committed {
			return
		}
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, map[string]string{"error": msg})
	}
}
