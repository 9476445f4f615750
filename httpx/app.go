// Package httpx wraps echo for the flag service's HTTP surface and resty for
// its outbound calls, so the rest of the module imports neither directly.
package httpx

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Context represents the context of the current HTTP request.
type Context = echo.Context

// HandlerFunc defines a function to handle HTTP requests.
type HandlerFunc = echo.HandlerFunc

// MiddlewareFunc defines a function to process middleware.
type MiddlewareFunc = echo.MiddlewareFunc

// Logger is the leveled logger echo writes to; gommon's *log.Logger
// satisfies it.
type Logger = echo.Logger

// App is the route table handed to RouteRegistrar callbacks.
type App struct{ e *echo.Echo }

// New creates a bare App with no middleware.
func New() *App { return &App{echo.New()} }

// Use attaches middleware to every route.
func (a *App) Use(mw ...MiddlewareFunc) { a.e.Use(mw...) }

// Logger returns the logger the App writes to.
func (a *App) Logger() Logger { return a.e.Logger }

// Group creates a route group under prefix.
func (a *App) Group(prefix string, mw ...MiddlewareFunc) *Router {
	return &Router{g: a.e.Group(prefix, mw...)}
}

func (a *App) GET(path string, h HandlerFunc, mw ...MiddlewareFunc) {
	a.e.GET(path, h, mw...)
}

func (a *App) PUT(path string, h HandlerFunc, mw ...MiddlewareFunc) {
	a.e.PUT(path, h, mw...)
}

func (a *App) DELETE(path string, h HandlerFunc, mw ...MiddlewareFunc) {
	a.e.DELETE(path, h, mw...)
}

// HTTPError builds an error the server's error handler renders with code.
func HTTPError(code int, message any) error { return echo.NewHTTPError(code, message) }

// RecoverMiddleware turns handler panics into 500 responses.
func RecoverMiddleware() MiddlewareFunc { return middleware.Recover() }

// RequestLogger writes one line per request to l: method, URI, status and
// latency. Server errors are logged at error level.
func RequestLogger(l Logger) MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			if v.Status >= StatusInternalError {
				l.Errorf("%s %s %d %s", v.Method, v.URI, v.Status, v.Latency.Round(time.Microsecond))
				return nil
			}
			l.Infof("%s %s %d %s", v.Method, v.URI, v.Status, v.Latency.Round(time.Microsecond))
			return nil
		},
	})
}

// CORS allows cross-origin calls from origins only, for the verbs the flag
// API serves.
func CORS(origins ...string) MiddlewareFunc {
	return middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: origins,
		AllowMethods: []string{echo.GET, echo.HEAD, echo.PUT, echo.DELETE, echo.OPTIONS},
		AllowHeaders: []string{echo.HeaderAuthorization, echo.HeaderContentType, echo.HeaderAccept},
	})
}
