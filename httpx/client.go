package httpx

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
)

// Response aliases the resty response returned by Client calls.
type Response = resty.Response

// StatusError is returned when the server answers with a 4xx or 5xx status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.Code, e.Body)
}

// Client is a JSON HTTP client on top of resty.
type Client struct {
	resty *resty.Client
}

func NewClient(opts ...ClientOption) *Client {
	var cfg ClientOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	cfg = cfg.withDefaults()

	rc := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", cfg.UserAgent).
		SetHeaders(cfg.Headers)
	if cfg.BaseURL != "" {
		rc.SetBaseURL(strings.TrimRight(cfg.BaseURL, "/"))
	}
	return &Client{resty: rc}
}

// BaseURL reports the URL relative paths are resolved against.
func (c *Client) BaseURL() string { return c.resty.BaseURL }

type RequestOption func(*resty.Request)

// WithQuery sets query parameters on a single request. Empty values are
// dropped.
func WithQuery(params map[string]string) RequestOption {
	return func(r *resty.Request) {
		for k, v := range params {
			if v != "" {
				r.SetQueryParam(k, v)
			}
		}
	}
}

// WithBearer sends token as a bearer Authorization header.
func WithBearer(token string) RequestOption {
	return func(r *resty.Request) {
		if token = strings.TrimSpace(token); token != "" {
			r.SetAuthToken(token)
		}
	}
}

func (c *Client) Get(ctx context.Context, path string, result any, opts ...RequestOption) (*Response, error) {
	return c.do(ctx, resty.MethodGet, path, nil, result, opts)
}

func (c *Client) Put(ctx context.Context, path string, body, result any, opts ...RequestOption) (*Response, error) {
	return c.do(ctx, resty.MethodPut, path, body, result, opts)
}

func (c *Client) Delete(ctx context.Context, path string, result any, opts ...RequestOption) (*Response, error) {
	return c.do(ctx, resty.MethodDelete, path, nil, result, opts)
}

// do executes the request and turns 4xx/5xx answers into *StatusError. The
// response is returned either way.
func (c *Client) do(ctx context.Context, method, path string, body, result any, opts []RequestOption) (*Response, error) {
	req := c.resty.R().SetContext(ctx)
	for _, opt := range opts {
		if opt != nil {
			opt(req)
		}
	}
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	if result != nil {
		req.SetResult(result)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return resp, err
	}
	if resp.IsError() {
		return resp, &StatusError{Code: resp.StatusCode(), Body: strings.TrimSpace(resp.String())}
	}
	return resp, nil
}
