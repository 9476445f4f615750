// Package api serves flag answers over HTTP. It is the backend half of the
// demo: the frontend's backend check calls GET /api/feature-check.
package api

import (
	"context"
	"errors"

	"github.com/adeilh/go-flagcheck/cache"
	"github.com/adeilh/go-flagcheck/flags"
	"github.com/adeilh/go-flagcheck/httpx"
)

// ReadyReporter is implemented by providers that need a warm-up, such as the
// Unleash client.
type ReadyReporter interface {
	Ready() <-chan struct{}
}

// FeatureController answers flag checks from its own expiring cache in front
// of a provider. Only the default flag and names given to WithCachedFlags are
// cached; any other name is evaluated on every request, so callers cannot grow
// the cache by inventing names.
type FeatureController struct {
	provider    flags.Evaluator
	checker     *flags.Checker
	defaultFlag string
	cached      map[string]struct{}
	log         flags.Logger
	admin       []httpx.MiddlewareFunc
	adminOn     bool
}

// Option configures a FeatureController.
type Option func(*FeatureController)

// WithDefaultFlag changes the flag checked when no ?name= is given.
func WithDefaultFlag(name string) Option {
	return func(fc *FeatureController) {
		if name != "" {
			fc.defaultFlag = name
		}
	}
}

// WithCachedFlags adds names the controller may cache besides the default
// flag.
func WithCachedFlags(names ...string) Option {
	return func(fc *FeatureController) {
		for _, name := range names {
			if name != "" {
				fc.cached[name] = struct{}{}
			}
		}
	}
}

// WithLogger sets the logger shared with the internal checker.
func WithLogger(l flags.Logger) Option {
	return func(fc *FeatureController) {
		if l != nil {
			fc.log = l
		}
	}
}

// WithAdminAuth enables the write routes behind mw. Without it PUT and
// DELETE answer 403.
func WithAdminAuth(mw ...httpx.MiddlewareFunc) Option {
	return func(fc *FeatureController) {
		fc.admin = append(fc.admin, mw...)
		fc.adminOn = true
	}
}

// NewFeatureController builds a controller over provider. A nil store gets a
// cache with the default TTL.
func NewFeatureController(provider flags.Evaluator, store *cache.Expiring[bool], opts ...Option) *FeatureController {
	if store == nil {
		store = cache.NewExpiring[bool]()
	}
	fc := &FeatureController{
		provider:    provider,
		defaultFlag: flags.DefaultFlag,
		cached:      make(map[string]struct{}),
		log:         nopLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(fc)
		}
	}
	fc.cached[fc.defaultFlag] = struct{}{}
	fc.checker = flags.NewChecker(store, flags.WithEvaluator(provider), flags.WithLogger(fc.log))
	return fc
}

// Register mounts the controller's routes on a.
func (fc *FeatureController) Register(a *httpx.App) {
	a.GET("/healthz", fc.health)
	a.GET(flags.DefaultFeatureCheckPath, fc.featureCheck)

	features := a.Group("/api/features")
	features.GET("/:name", fc.getFeature)
	features.PUT("/:name", fc.setFeature, fc.admin...)
	features.DELETE("/:name", fc.deleteFeature, fc.admin...)
}

// featureCheck answers a bare JSON boolean. Provider failures are logged and
// reported as false so callers fall back to the legacy path.
func (fc *FeatureController) featureCheck(c httpx.Context) error {
	name := c.QueryParam("name")
	if name == "" {
		name = fc.defaultFlag
	}
	res, err := fc.check(c.Request().Context(), name)
	if err != nil {
		fc.log.Errorf("error checking feature flag %q: %v", name, err)
		return c.JSON(httpx.StatusOK, false)
	}
	return c.JSON(httpx.StatusOK, res.Enabled)
}

// check goes through the cache for known names and straight to the provider
// for the rest.
func (fc *FeatureController) check(ctx context.Context, name string) (flags.Result, error) {
	if _, ok := fc.cached[name]; ok {
		return fc.checker.CheckFrontend(ctx, name)
	}
	if name == "" {
		return flags.Result{}, flags.ErrEmptyName
	}
	enabled, err := fc.provider.IsEnabled(ctx, name)
	if err != nil {
		fc.log.Errorf("evaluate feature %q: %v", name, err)
		return flags.Result{Name: name, Source: flags.SourceFrontend}, err
	}
	return flags.Result{Name: name, Source: flags.SourceFrontend, Enabled: enabled}, nil
}

type featureResponse struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
	Cached  bool   `json:"cached"`
}

func (fc *FeatureController) getFeature(c httpx.Context) error {
	res, err := fc.check(c.Request().Context(), c.Param("name"))
	if err != nil {
		return providerError(err)
	}
	return c.JSON(httpx.StatusOK, featureResponse{Name: res.Name, Enabled: res.Enabled, Cached: res.Cached})
}

type setRequest struct {
	Enabled *bool `json:"enabled"`
}

func (fc *FeatureController) setFeature(c httpx.Context) error {
	toggler, err := fc.toggler()
	if err != nil {
		return err
	}
	var req setRequest
	if err := c.Bind(&req); err != nil || req.Enabled == nil {
		return httpx.HTTPError(httpx.StatusBadRequest, `body must be {"enabled": true|false}`)
	}
	name := c.Param("name")
	if err := toggler.SetEnabled(c.Request().Context(), name, *req.Enabled); err != nil {
		return providerError(err)
	}
	fc.log.Infof("feature %q set to %t", name, *req.Enabled)
	return c.JSON(httpx.StatusOK, featureResponse{Name: name, Enabled: *req.Enabled})
}

func (fc *FeatureController) deleteFeature(c httpx.Context) error {
	toggler, err := fc.toggler()
	if err != nil {
		return err
	}
	name := c.Param("name")
	if err := toggler.Delete(c.Request().Context(), name); err != nil {
		return providerError(err)
	}
	fc.log.Infof("feature %q deleted", name)
	return c.NoContent(httpx.StatusNoContent)
}

func (fc *FeatureController) toggler() (flags.Toggler, error) {
	if !fc.adminOn {
		return nil, httpx.HTTPError(httpx.StatusForbidden, "admin API disabled")
	}
	t, ok := fc.provider.(flags.Toggler)
	if !ok {
		return nil, httpx.HTTPError(httpx.StatusNotImplemented, flags.ErrReadOnly.Error())
	}
	return t, nil
}

func (fc *FeatureController) health(c httpx.Context) error {
	if r, ok := fc.provider.(ReadyReporter); ok {
		select {
		case <-r.Ready():
		default:
			return c.JSON(httpx.StatusServiceUnavailable, map[string]string{"status": "starting"})
		}
	}
	return c.JSON(httpx.StatusOK, map[string]string{"status": "ok"})
}

func providerError(err error) error {
	switch {
	case errors.Is(err, flags.ErrEmptyName):
		return httpx.HTTPError(httpx.StatusBadRequest, err.Error())
	case errors.Is(err, flags.ErrFlagMissing):
		return httpx.HTTPError(httpx.StatusNotFound, err.Error())
	case errors.Is(err, flags.ErrNotReady):
		return httpx.HTTPError(httpx.StatusServiceUnavailable, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return httpx.HTTPError(httpx.StatusGatewayTimeout, err.Error())
	default:
		return httpx.HTTPError(httpx.StatusInternalError, err.Error())
	}
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Infof(string, ...any)  {}
func (nopLogger) Errorf(string, ...any) {}
