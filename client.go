package katoni

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Client is the main entrypoint. Its configuration is read-only, so a Client
// may be shared between goroutines.
type Client struct {
	Config Config
	auth   Auth
	http   *httpClient

	OAuth *Provider
}

// NewClient constructs a Client that authenticates with a developer key
// unless a token is passed to a call.
func NewClient(applicationName, developerKey string) (*Client, error) {
	cfg, err := LoadConfig(applicationName, developerKey)
	if err != nil {
		return nil, err
	}
	return NewClientWithConfig(cfg)
}

// NewClientWithParams constructs a Client from structured configuration parameters.
func NewClientWithParams(params ConfigParams) (*Client, error) {
	cfg, err := LoadConfigWithParams(params)
	if err != nil {
		return nil, err
	}
	return NewClientWithConfig(cfg)
}

// NewClientWithConfig builds a Client from a fully parsed Config.
func NewClientWithConfig(cfg Config) (*Client, error) {
	if cfg.BasePath == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidBasePath)
	}
	if cfg.RequestIDHeader == "" && cfg.AutoRequestID {
		cfg.RequestIDHeader = defaultRequestIDHeader
	}
	auth := newAuth(cfg)
	httpClient := newHTTPClient(cfg, auth)

	return &Client{
		Config: cfg,
		auth:   auth,
		http:   httpClient,
		OAuth:  newProvider(cfg, httpClient),
	}, nil
}

// Close releases HTTP resources.
func (c *Client) Close() {
	if c == nil || c.http == nil {
		return
	}
	c.http.close()
}

// Version returns the library version.
func (c *Client) Version() string {
	return Version
}

// Get fetches path from the given API version ("" means v1). The token, when
// non-nil, is sent as a bearer credential; otherwise the developer key is used.
func (c *Client) Get(path string, token *Token, version string) (*Response, error) {
	return c.GetWithContext(context.Background(), path, token, version)
}

// GetWithContext is Get with a caller-supplied context.
func (c *Client) GetWithContext(ctx context.Context, path string, token *Token, version string) (*Response, error) {
	return c.http.get(ctx, path, version, token)
}

// Post sends params as a form-encoded body to path.
func (c *Client) Post(path string, params map[string]any, token *Token, version string) (*Response, error) {
	return c.PostWithContext(context.Background(), path, params, token, version)
}

// PostWithContext is Post with a caller-supplied context.
func (c *Client) PostWithContext(ctx context.Context, path string, params map[string]any, token *Token, version string) (*Response, error) {
	return c.http.postForm(ctx, path, version, params, token)
}

// RequestWithContext issues method against path. Params are sent as a form
// body for methods that carry one and as query parameters otherwise.
func (c *Client) RequestWithContext(ctx context.Context, method, path string, params map[string]any, token *Token, version string) (*Response, error) {
	method = strings.ToUpper(method)
	switch method {
	case http.MethodGet:
		if len(params) == 0 {
			return c.http.get(ctx, path, version, token)
		}
		query, err := encodeForm(params)
		if err != nil {
			return nil, err
		}
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		return c.http.get(ctx, path+sep+query, version, token)
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		form, err := encodeForm(params)
		if err != nil {
			return nil, err
		}
		return c.http.send(ctx, method, c.http.endpointURL(path, version), token, &RequestOptions{
			Body:        strings.NewReader(form),
			ContentType: "application/x-www-form-urlencoded",
		})
	default:
		return c.http.send(ctx, method, c.http.endpointURL(path, version), token, nil)
	}
}

// NewRequest builds the authenticated request for path without sending it.
func (c *Client) NewRequest(ctx context.Context, method, path string, token *Token, version string, opts *RequestOptions) (*http.Request, error) {
	return c.auth.Authorize(ctx, method, c.http.endpointURL(path, version), token, opts)
}

// DecodeJSON unmarshals the response body into out.
func (r *Response) DecodeJSON(out any) error {
	if r == nil || len(r.Body) == 0 {
		return fmt.Errorf("decode response: empty body")
	}
	if err := json.Unmarshal(r.Body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
