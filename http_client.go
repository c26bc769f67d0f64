package katoni

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oapi-codegen/runtime"
)

// Response is an API response with the body already read.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

type httpClient struct {
	doer      Doer
	owned     *http.Client
	cfg       Config
	auth      Auth
	logger    Logger
	redactMap map[string]struct{}
}

func newHTTPClient(cfg Config, auth Auth) *httpClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = defaultMaxIdleConns
	}
	if cfg.MaxIdleConnsPerHost == 0 {
		cfg.MaxIdleConnsPerHost = defaultMaxIdlePerHost
	}
	if cfg.IdleConnTimeout == 0 {
		cfg.IdleConnTimeout = defaultIdleConnTimeout
	}

	logger := cfg.Logger
	if cfg.Debug && logger == nil {
		logger = log.New(os.Stdout, "katoni-sdk ", log.LstdFlags)
	}

	redactions := map[string]struct{}{}
	for _, h := range cfg.RedactHeaders {
		redactions[strings.ToLower(h)] = struct{}{}
	}

	c := &httpClient{
		doer:      cfg.HTTPClient,
		cfg:       cfg,
		auth:      auth,
		logger:    logger,
		redactMap: redactions,
	}
	if c.doer == nil {
		c.owned = newDefaultHTTPClient(cfg)
		c.doer = c.owned
	}
	return c
}

// newDefaultHTTPClient is used when the caller does not inject a transport.
func newDefaultHTTPClient(cfg Config) *http.Client {
	dialer := &net.Dialer{
		Timeout:   cfg.ConnectTimeout,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         dialer.DialContext,
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:     cfg.IdleConnTimeout,
		TLSHandshakeTimeout: cfg.ConnectTimeout,
	}
	if cfg.ProxyURL != nil {
		transport.Proxy = http.ProxyURL(cfg.ProxyURL)
	}
	if cfg.SkipTLSVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for test environments
	}
	return &http.Client{
		Timeout:   cfg.Timeout,
		Transport: transport,
	}
}

// close releases idle connections of the built-in transport. Injected
// transports belong to the caller and are left alone.
func (c *httpClient) close() {
	if c.owned == nil {
		return
	}
	c.owned.CloseIdleConnections()
}

// endpointURL joins base path, version and path with single slashes.
func (c *httpClient) endpointURL(path, version string) string {
	if version == "" {
		version = DefaultVersion
	}
	base := strings.TrimSuffix(c.cfg.BasePath, "/")
	version = strings.Trim(version, "/")
	path = strings.TrimPrefix(path, "/")
	return base + "/" + version + "/" + path
}

// send attaches credentials, dispatches a single request and maps the outcome.
// There are no retries: a failed call is reported to the caller as is.
func (c *httpClient) send(ctx context.Context, method, rawURL string, token *Token, opts *RequestOptions) (*Response, error) {
	req, err := c.auth.Authorize(ctx, method, rawURL, token, opts)
	if err != nil {
		return nil, err
	}

	c.attachRequestID(req)
	c.runRequestHooks(req)
	c.logRequest(req)

	start := time.Now()
	resp, err := c.doer.Do(req)
	duration := time.Since(start)
	if err != nil {
		return nil, &TransportError{Method: req.Method, URL: redactURL(req.URL.String()), Err: err}
	}

	body, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()
	if readErr != nil {
		return nil, &TransportError{Method: req.Method, URL: redactURL(req.URL.String()), Err: fmt.Errorf("read response: %w", readErr)}
	}

	c.logResponse(req, resp, body, duration)
	c.runResponseHooks(resp, body)

	if err := checkResponse(resp.StatusCode, body, resp.Header, c.cfg.RequestIDHeader); err != nil {
		return nil, err
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

func (c *httpClient) get(ctx context.Context, path, version string, token *Token) (*Response, error) {
	return c.send(ctx, http.MethodGet, c.endpointURL(path, version), token, nil)
}

func (c *httpClient) postForm(ctx context.Context, path, version string, params map[string]any, token *Token) (*Response, error) {
	form, err := encodeForm(params)
	if err != nil {
		return nil, err
	}
	return c.send(ctx, http.MethodPost, c.endpointURL(path, version), token, &RequestOptions{
		Body:        strings.NewReader(form),
		ContentType: "application/x-www-form-urlencoded",
	})
}

// encodeForm serialises params as an x-www-form-urlencoded body with keys in
// sorted order. Slices expand to repeated keys and nested maps use bracketed
// names, so {"obj": {"x": 1}} becomes obj[x]=1. Field names are escaped like
// values.
func encodeForm(params map[string]any) (string, error) {
	var parts []string
	if err := appendFormFields(&parts, "", params); err != nil {
		return "", err
	}
	return strings.Join(parts, "&"), nil
}

// formPlaceholder is the parameter name values are styled under before the
// escaped field name is put in its place.
const formPlaceholder = "_"

func appendFormFields(parts *[]string, prefix string, params map[string]any) error {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		name := k
		if prefix != "" {
			name = prefix + "[" + k + "]"
		}
		if err := appendFormField(parts, name, params[k]); err != nil {
			return err
		}
	}
	return nil
}

func appendFormField(parts *[]string, name string, v any) error {
	switch nested := v.(type) {
	case nil:
		return nil
	case map[string]any:
		return appendFormFields(parts, name, nested)
	case map[string]string:
		m := make(map[string]any, len(nested))
		for k, s := range nested {
			m[k] = s
		}
		return appendFormFields(parts, name, m)
	}

	styled, err := runtime.StyleParamWithLocation("form", true, formPlaceholder, runtime.ParamLocationQuery, v)
	if err != nil {
		return fmt.Errorf("encode form field %s: %w", name, err)
	}
	if styled == "" {
		return nil
	}
	escapedName := url.QueryEscape(name)
	for _, pair := range strings.Split(styled, "&") {
		value, ok := strings.CutPrefix(pair, formPlaceholder+"=")
		if !ok {
			return fmt.Errorf("encode form field %s: unsupported value of type %T", name, v)
		}
		*parts = append(*parts, escapedName+"="+value)
	}
	return nil
}

func (c *httpClient) logRequest(req *http.Request) {
	if c.logger == nil || !c.cfg.Debug {
		return
	}
	c.logger.Printf("[request] %s %s headers=%v", req.Method, redactURL(req.URL.String()), c.redactedHeaders(req.Header))
}

func (c *httpClient) logResponse(req *http.Request, resp *http.Response, body []byte, duration time.Duration) {
	if c.logger == nil || !c.cfg.Debug {
		return
	}
	requestID := resp.Header.Get(c.cfg.RequestIDHeader)
	bodyPreview := string(body)
	if len(bodyPreview) > 512 {
		bodyPreview = bodyPreview[:512] + "…"
	}
	c.logger.Printf("[response] %s %s status=%d duration=%s request_id=%s body=%s", req.Method, redactURL(req.URL.String()), resp.StatusCode, duration, requestID, bodyPreview)
}

func (c *httpClient) logf(format string, args ...any) {
	if c.logger == nil || !c.cfg.Debug {
		return
	}
	c.logger.Printf(format, args...)
}

func (c *httpClient) redactedHeaders(h http.Header) http.Header {
	if len(c.redactMap) == 0 {
		return h
	}
	cloned := cloneHeaders(h)
	for k := range cloned {
		if _, ok := c.redactMap[strings.ToLower(k)]; ok {
			cloned.Set(k, "[redacted]")
		}
	}
	return cloned
}

func (c *httpClient) attachRequestID(req *http.Request) {
	if c.cfg.RequestIDHeader == "" {
		return
	}
	if req.Header.Get(c.cfg.RequestIDHeader) != "" {
		return
	}
	switch {
	case c.cfg.DefaultRequestID != "":
		req.Header.Set(c.cfg.RequestIDHeader, c.cfg.DefaultRequestID)
	case c.cfg.AutoRequestID:
		req.Header.Set(c.cfg.RequestIDHeader, "katoni-"+uuid.NewString())
	}
}

func (c *httpClient) runRequestHooks(req *http.Request) {
	for i, hook := range c.cfg.BeforeRequest {
		func() {
			defer func() {
				if r := recover(); r != nil {
					c.logf("request hook[%d] panic: %v", i, r)
				}
			}()
			hook(req)
		}()
	}
}

func (c *httpClient) runResponseHooks(resp *http.Response, body []byte) {
	for i, hook := range c.cfg.AfterResponse {
		func() {
			defer func() {
				if r := recover(); r != nil {
					c.logf("response hook[%d] panic: %v", i, r)
				}
			}()
			hook(resp, body)
		}()
	}
}
