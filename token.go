package katoni

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// expiryLeeway treats a token as expired this long before it actually is.
const expiryLeeway = 30 * time.Second

// Token is an OAuth2 access token bundle as issued by the Katoni token endpoint.
type Token struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	Scope        string `json:"scope,omitempty"`

	// ExpiresIn is the lifetime in seconds, counted from Created.
	ExpiresIn *int64 `json:"expires_in,omitempty"`
	// Created is the Unix time the token was issued.
	Created *int64 `json:"created,omitempty"`
}

// ParseAccessToken builds a Token from caller input. Accepted inputs are a raw
// access token string, a JSON object (as string or []byte), a map[string]any, or
// a Token. Strings that are not a JSON object are taken as the raw token.
func ParseAccessToken(input any) (*Token, error) {
	var tok Token
	switch v := input.(type) {
	case nil:
		return nil, fmt.Errorf("%w: token is empty", ErrInvalidTokenFormat)
	case *Token:
		if v == nil {
			return nil, fmt.Errorf("%w: token is empty", ErrInvalidTokenFormat)
		}
		tok = *v
	case Token:
		tok = v
	case string:
		return parseTokenBytes([]byte(v))
	case []byte:
		return parseTokenBytes(v)
	case map[string]any:
		if len(v) == 0 {
			return nil, fmt.Errorf("%w: token is empty", ErrInvalidTokenFormat)
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidTokenFormat, err)
		}
		if err := json.Unmarshal(raw, &tok); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidTokenFormat, err)
		}
	default:
		return nil, fmt.Errorf("%w: unsupported token type %T", ErrInvalidTokenFormat, input)
	}

	if tok.AccessToken == "" {
		return nil, fmt.Errorf("%w: access_token is missing", ErrInvalidTokenFormat)
	}
	return &tok, nil
}

func parseTokenBytes(data []byte) (*Token, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: token is empty", ErrInvalidTokenFormat)
	}

	var obj map[string]any
	if err := json.Unmarshal(trimmed, &obj); err != nil || obj == nil {
		// Not a JSON object: the input is the access token itself.
		return &Token{AccessToken: string(data)}, nil
	}

	var tok Token
	if err := json.Unmarshal(trimmed, &tok); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTokenFormat, err)
	}
	if tok.AccessToken == "" {
		return nil, fmt.Errorf("%w: access_token is missing", ErrInvalidTokenFormat)
	}
	return &tok, nil
}

// GetRefreshToken returns the refresh token, or "" when there is none.
func (t *Token) GetRefreshToken() string {
	if t == nil {
		return ""
	}
	return t.RefreshToken
}

// IsExpired reports whether the token is expired or expires within 30 seconds.
// A nil token, or one without expires_in, counts as expired.
func (t *Token) IsExpired() bool {
	return t.ExpiredAt(time.Now())
}

// ExpiredAt is IsExpired evaluated at now.
func (t *Token) ExpiredAt(now time.Time) bool {
	if t == nil || t.ExpiresIn == nil {
		return true
	}
	deadline := t.issuedAt() + *t.ExpiresIn - int64(expiryLeeway/time.Second)
	return deadline < now.Unix()
}

// issuedAt returns Created, falling back to the iat claim of the ID token and
// then to zero.
func (t *Token) issuedAt() int64 {
	if t.Created != nil {
		return *t.Created
	}
	if iat, ok := idTokenIssuedAt(t.IDToken); ok {
		return iat
	}
	return 0
}

// idTokenIssuedAt reads iat from the payload segment of an ID token. Neither
// the header nor the signature is looked at: the value only saves a refresh
// round trip, it is never trusted for access.
func idTokenIssuedAt(idToken string) (int64, bool) {
	parts := strings.Split(idToken, ".")
	if len(parts) != 3 {
		return 0, false
	}
	payload, err := jwt.NewParser().DecodeSegment(parts[1])
	if err != nil {
		return 0, false
	}
	claims := jwt.MapClaims{}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return 0, false
	}
	iat, err := claims.GetIssuedAt()
	if err != nil || iat == nil {
		return 0, false
	}
	return iat.Unix(), true
}

// OAuth2 converts the token for use with golang.org/x/oauth2.
func (t *Token) OAuth2() *oauth2.Token {
	if t == nil {
		return nil
	}
	tok := &oauth2.Token{
		AccessToken:  t.AccessToken,
		TokenType:    t.TokenType,
		RefreshToken: t.RefreshToken,
	}
	if t.ExpiresIn != nil {
		tok.Expiry = time.Unix(t.issuedAt()+*t.ExpiresIn, 0)
		tok.ExpiresIn = *t.ExpiresIn
	}
	extra := map[string]any{}
	if t.IDToken != "" {
		extra["id_token"] = t.IDToken
	}
	if t.Scope != "" {
		extra["scope"] = t.Scope
	}
	if len(extra) > 0 {
		tok = tok.WithExtra(extra)
	}
	return tok
}

// TokenFromOAuth2 converts a token returned by golang.org/x/oauth2. Created is
// set to now, since the token endpoint does not report an issue time.
func TokenFromOAuth2(tok *oauth2.Token) *Token {
	return tokenFromOAuth2At(tok, time.Now())
}

func tokenFromOAuth2At(tok *oauth2.Token, now time.Time) *Token {
	if tok == nil {
		return nil
	}
	created := now.Unix()
	out := &Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		Created:      &created,
	}
	if s, ok := tok.Extra("id_token").(string); ok {
		out.IDToken = s
	}
	if s, ok := tok.Extra("scope").(string); ok {
		out.Scope = s
	}
	switch {
	case tok.ExpiresIn > 0:
		secs := tok.ExpiresIn
		out.ExpiresIn = &secs
	case !tok.Expiry.IsZero():
		secs := int64(tok.Expiry.Sub(now).Round(time.Second) / time.Second)
		out.ExpiresIn = &secs
	}
	return out
}
