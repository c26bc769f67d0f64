package katoni

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
)

// Provider runs the OAuth2 authorization-code flow against the Katoni
// endpoints. The protocol mechanics come from golang.org/x/oauth2; all of its
// HTTP traffic goes through the client's transport.
type Provider struct {
	cfg    Config
	http   *httpClient
	oauth2 *oauth2.Config
}

// ResourceOwner is the account an access token belongs to.
type ResourceOwner struct {
	ID    string
	Name  string
	Email string
	Raw   map[string]any
}

func newProvider(cfg Config, hc *httpClient) *Provider {
	base := strings.TrimSuffix(cfg.BasePath, "/")
	return &Provider{
		cfg:  cfg,
		http: hc,
		oauth2: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   base + "/oauth2/authorize",
				TokenURL:  base + "/oauth2/access_token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
	}
}

// AuthorizationEndpoint is where users are sent to grant access.
func (p *Provider) AuthorizationEndpoint() string { return p.oauth2.Endpoint.AuthURL }

// TokenEndpoint exchanges codes and refresh tokens for access tokens.
func (p *Provider) TokenEndpoint() string { return p.oauth2.Endpoint.TokenURL }

// ResourceOwnerEndpoint returns details of the authenticated account.
func (p *Provider) ResourceOwnerEndpoint() string {
	return strings.TrimSuffix(p.cfg.BasePath, "/") + "/" + DefaultVersion + "/account"
}

// AuthCodeURL returns the URL that starts the authorization-code flow. An
// empty state falls back to the configured one.
func (p *Provider) AuthCodeURL(state string, opts ...oauth2.AuthCodeOption) string {
	if state == "" {
		state = p.cfg.State
	}
	return p.oauth2.AuthCodeURL(state, opts...)
}

// Exchange trades an authorization code for a token.
func (p *Provider) Exchange(ctx context.Context, code string, opts ...oauth2.AuthCodeOption) (*Token, error) {
	if code == "" {
		return nil, fmt.Errorf("authorization code is required")
	}
	tok, err := p.oauth2.Exchange(p.oauthContext(ctx), code, opts...)
	if err != nil {
		return nil, p.mapTokenError(err)
	}
	return TokenFromOAuth2(tok), nil
}

// RefreshIfExpired returns token unchanged while it is valid. Once it has
// expired it is exchanged for a new one using its refresh token. Nothing is
// refreshed in the background; callers decide when to call this.
func (p *Provider) RefreshIfExpired(ctx context.Context, token *Token) (*Token, error) {
	if token == nil {
		return nil, fmt.Errorf("%w: token is empty", ErrInvalidTokenFormat)
	}
	if !token.IsExpired() {
		return token, nil
	}
	refresh := token.GetRefreshToken()
	if refresh == "" {
		return nil, ErrNoRefreshToken
	}

	src := p.oauth2.TokenSource(p.oauthContext(ctx), &oauth2.Token{RefreshToken: refresh})
	fresh, err := src.Token()
	if err != nil {
		return nil, p.mapTokenError(err)
	}
	out := TokenFromOAuth2(fresh)
	if out.RefreshToken == "" {
		out.RefreshToken = refresh
	}
	return out, nil
}

// ResourceOwner fetches the account behind token.
func (p *Provider) ResourceOwner(ctx context.Context, token *Token) (*ResourceOwner, error) {
	if token == nil {
		return nil, fmt.Errorf("%w: token is empty", ErrInvalidTokenFormat)
	}
	resp, err := p.http.send(ctx, http.MethodGet, p.ResourceOwnerEndpoint(), token, nil)
	if err != nil {
		return nil, err
	}
	var raw map[string]any
	if err := resp.DecodeJSON(&raw); err != nil {
		return nil, err
	}
	return &ResourceOwner{
		ID:    stringField(raw, "id"),
		Name:  stringField(raw, "name"),
		Email: stringField(raw, "email"),
		Raw:   raw,
	}, nil
}

// oauthContext hands the client's transport to golang.org/x/oauth2.
func (p *Provider) oauthContext(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	var hc *http.Client
	if c, ok := p.http.doer.(*http.Client); ok {
		hc = c
	} else {
		hc = &http.Client{Transport: doerTransport{doer: p.http.doer}}
	}
	return context.WithValue(ctx, oauth2.HTTPClient, hc)
}

// mapTokenError turns token endpoint failures into ProviderErrors, using the
// same rules as regular API responses.
func (p *Provider) mapTokenError(err error) error {
	var re *oauth2.RetrieveError
	if !errors.As(err, &re) || re.Response == nil {
		return err
	}
	if mapped := checkResponse(re.Response.StatusCode, re.Body, re.Response.Header, p.cfg.RequestIDHeader); mapped != nil {
		return mapped
	}
	return providerErrorFromResponse(re.Response.StatusCode, re.Body, re.Response.Header, p.cfg.RequestIDHeader)
}

// doerTransport adapts a Doer to http.RoundTripper.
type doerTransport struct {
	doer Doer
}

func (t doerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.doer.Do(req)
}

func stringField(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
