package httpx

import "github.com/labstack/echo/v4"

// Router is a prefixed route group with chainable verb helpers.
type Router struct {
	g *echo.Group
}

// Use attaches middleware to every route of the group.
func (r *Router) Use(mw ...MiddlewareFunc) *Router {
	r.g.Use(mw...)
	return r
}

func (r *Router) GET(path string, h HandlerFunc, mw ...MiddlewareFunc) *Router {
	return r.add(echo.GET, path, h, mw)
}

func (r *Router) PUT(path string, h HandlerFunc, mw ...MiddlewareFunc) *Router {
	return r.add(echo.PUT, path, h, mw)
}

func (r *Router) DELETE(path string, h HandlerFunc, mw ...MiddlewareFunc) *Router {
	return r.add(echo.DELETE, path, h, mw)
}

func (r *Router) add(method, path string, h HandlerFunc, mw []MiddlewareFunc) *Router {
	if h != nil {
		r.g.Add(method, path, h, mw...)
	}
	return r
}
