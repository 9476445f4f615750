package httpx

import (
	"github.com/adeilh/go-flagcheck/auth"
	"github.com/labstack/echo/v4"
)

// AuthMiddleware guards routes with an auth.Middleware. A nil mw rejects
// every request, so a missing keyring never opens the admin routes.
func AuthMiddleware(mw *auth.Middleware) MiddlewareFunc {
	if mw == nil {
		return func(HandlerFunc) HandlerFunc {
			return func(Context) error {
				return HTTPError(StatusUnauthorized, "admin authentication not configured")
			}
		}
	}
	return echo.WrapMiddleware(mw.Handler)
}
