package flags

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/adeilh/go-flagcheck/httpx"
)

// DefaultFeatureCheckPath is where the backend serves its flag answer.
const DefaultFeatureCheckPath = "/api/feature-check"

// HTTPBackend calls the backend's feature-check endpoint.
type HTTPBackend struct {
	client *httpx.Client
	path   string
}

// NewHTTPBackend wraps client. An empty path uses DefaultFeatureCheckPath.
func NewHTTPBackend(client *httpx.Client, path string) *HTTPBackend {
	if path == "" {
		path = DefaultFeatureCheckPath
	}
	return &HTTPBackend{client: client, path: path}
}

// FeatureCheck requests the endpoint and requires a bare JSON boolean in
// the body. A non-empty name is always sent as ?name=, since the backend's
// own default flag is configurable; an empty name asks for that default.
func (b *HTTPBackend) FeatureCheck(ctx context.Context, name string) (bool, error) {
	resp, err := b.client.Get(ctx, b.path, nil, httpx.WithQuery(map[string]string{"name": name}))
	if err != nil {
		return false, fmt.Errorf("flags: feature check: %w", err)
	}
	return decodeBool(resp.Body())
}

func decodeBool(body []byte) (bool, error) {
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return false, fmt.Errorf("%w: %v", ErrNonBoolean, err)
	}
	enabled, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%w: got %s", ErrNonBoolean, body)
	}
	return enabled, nil
}
