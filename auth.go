package katoni

import (
	"context"
	"io"
	"net/http"
)

// credentialParams are query parameters that carry credentials. They are
// stripped from every URL before a credential is attached.
var credentialParams = []string{"access_token", "key"}

// RequestOptions are caller additions to an outgoing request.
type RequestOptions struct {
	// Headers override the defaults key by key.
	Headers     http.Header
	Body        io.Reader
	ContentType string
}

// Auth attaches exactly one credential to outgoing requests: the bearer token
// given to the call, or else the configured developer key.
type Auth struct {
	developerKey string
	userAgent    string
	extraHeaders http.Header
}

func newAuth(cfg Config) Auth {
	return Auth{
		developerKey: cfg.DeveloperKey,
		userAgent:    cfg.userAgent(),
		extraHeaders: cloneHeaders(cfg.ExtraHeaders),
	}
}

// Headers returns the default headers for a request carrying token.
func (a Auth) Headers(token *Token) http.Header {
	h := http.Header{}
	h.Set("User-Agent", a.userAgent)
	if token != nil {
		h.Set("Authorization", "Bearer "+token.AccessToken)
	}
	return h
}

// AuthorizeURL strips stale credentials from rawURL and, when no token is
// given, adds the developer key. Parameters already in the URL are kept.
func (a Auth) AuthorizeURL(rawURL string, token *Token) (string, error) {
	u, err := RemoveParams(rawURL, credentialParams...)
	if err != nil {
		return "", err
	}
	if token == nil && a.developerKey != "" {
		return AppendParams(u, map[string]string{"key": a.developerKey})
	}
	return u, nil
}

// Authorize builds a request for method and rawURL with credentials attached.
// It does not send the request.
func (a Auth) Authorize(ctx context.Context, method, rawURL string, token *Token, opts *RequestOptions) (*http.Request, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts == nil {
		opts = &RequestOptions{}
	}

	target, err := a.AuthorizeURL(rawURL, token)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, target, opts.Body)
	if err != nil {
		return nil, err
	}

	headers := a.Headers(token)
	if opts.ContentType != "" {
		headers.Set("Content-Type", opts.ContentType)
	}
	mergeHeaders(headers, a.extraHeaders)
	mergeHeaders(headers, opts.Headers)
	req.Header = headers
	return req, nil
}

// mergeHeaders copies src into dst; keys present in src replace those in dst.
func mergeHeaders(dst, src http.Header) {
	for k, vals := range src {
		if len(vals) == 0 {
			continue
		}
		dst[http.CanonicalHeaderKey(k)] = append([]string(nil), vals...)
	}
}
