package httpx

import "time"

// ServerOptions configures NewServer.
type ServerOptions struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	// Middlewares replaces the default recover + request-log stack.
	Middlewares    []MiddlewareFunc
	AllowedOrigins []string
	Logger         Logger
}

type ServerOption func(*ServerOptions)

func (o ServerOptions) withDefaults() ServerOptions {
	if o.Address == "" {
		o.Address = ":8080"
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = 15 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 15 * time.Second
	}
	if o.ShutdownTimeout <= 0 {
		o.ShutdownTimeout = 5 * time.Second
	}
	return o
}

func WithAddress(addr string) ServerOption {
	return func(o *ServerOptions) { o.Address = addr }
}

// WithShutdownTimeout bounds how long Start waits for in-flight requests.
func WithShutdownTimeout(d time.Duration) ServerOption {
	return func(o *ServerOptions) { o.ShutdownTimeout = d }
}

// WithMiddlewares replaces the default middleware stack.
func WithMiddlewares(mw ...MiddlewareFunc) ServerOption {
	return func(o *ServerOptions) { o.Middlewares = append([]MiddlewareFunc{}, mw...) }
}

// WithAllowedOrigins enables CORS for the given origins only.
func WithAllowedOrigins(origins ...string) ServerOption {
	return func(o *ServerOptions) { o.AllowedOrigins = append([]string(nil), origins...) }
}

// WithLogger routes echo's own logging and the request log through l.
func WithLogger(l Logger) ServerOption {
	return func(o *ServerOptions) { o.Logger = l }
}

// ClientOptions configures NewClient.
type ClientOptions struct {
	BaseURL   string
	Timeout   time.Duration
	Headers   map[string]string
	UserAgent string
}

type ClientOption func(*ClientOptions)

func (o ClientOptions) withDefaults() ClientOptions {
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Second
	}
	if o.UserAgent == "" {
		o.UserAgent = "flagcheck"
	}
	return o
}

func WithBaseURL(url string) ClientOption {
	return func(o *ClientOptions) { o.BaseURL = url }
}

func WithClientTimeout(d time.Duration) ClientOption {
	return func(o *ClientOptions) { o.Timeout = d }
}

// WithHeaders adds headers sent on every request. Later calls win on
// conflicting keys.
func WithHeaders(headers map[string]string) ClientOption {
	return func(o *ClientOptions) {
		if o.Headers == nil {
			o.Headers = make(map[string]string, len(headers))
		}
		for k, v := range headers {
			o.Headers[k] = v
		}
	}
}

func WithUserAgent(ua string) ClientOption {
	return func(o *ClientOptions) { o.UserAgent = ua }
}
