package katoni

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrInvalidTokenFormat is returned when token input is empty or has no access_token.
	ErrInvalidTokenFormat = errors.New("invalid token format")
	// ErrNoRefreshToken is returned when an expired token cannot be refreshed.
	ErrNoRefreshToken = errors.New("token is expired and has no refresh token")
	// ErrInvalidBasePath is returned when the configured base path is not an absolute http(s) URL.
	ErrInvalidBasePath = errors.New("base path must be an absolute http(s) URL")
)

// ProviderError is an error reported by the Katoni API, either through an HTTP
// status of 400 or above or through an "error" field in the response body.
type ProviderError struct {
	StatusCode int
	Message    string
	Body       []byte
	RequestID  string
	// Payload is the decoded JSON error body, empty when the body was not JSON.
	Payload map[string]any
}

func (e *ProviderError) Error() string {
	if e == nil {
		return ""
	}
	if e.RequestID != "" {
		return fmt.Sprintf("katoni api error (%d): %s (request_id=%s)", e.StatusCode, e.Message, e.RequestID)
	}
	return fmt.Sprintf("katoni api error (%d): %s", e.StatusCode, e.Message)
}

// ErrorCode returns the "error" field of the payload, if any.
func (e *ProviderError) ErrorCode() string {
	if e == nil {
		return ""
	}
	s, _ := e.Payload["error"].(string)
	return s
}

// BadRequestError is returned for HTTP 400, including rejected OAuth2 grants.
type BadRequestError struct{ *ProviderError }

// AuthenticationError is returned for HTTP 401.
type AuthenticationError struct{ *ProviderError }

// ForbiddenError is returned for HTTP 403.
type ForbiddenError struct{ *ProviderError }

// NotFoundError is returned for HTTP 404.
type NotFoundError struct{ *ProviderError }

// RateLimitError is returned for HTTP 429. RetryAfter is set when the server
// sent a Retry-After header in seconds.
type RateLimitError struct {
	*ProviderError
	RetryAfter *time.Duration
}

// ServerError is returned for HTTP 5xx.
type ServerError struct{ *ProviderError }

func (e *BadRequestError) Unwrap() error     { return e.ProviderError }
func (e *AuthenticationError) Unwrap() error { return e.ProviderError }
func (e *ForbiddenError) Unwrap() error      { return e.ProviderError }
func (e *NotFoundError) Unwrap() error       { return e.ProviderError }
func (e *RateLimitError) Unwrap() error      { return e.ProviderError }
func (e *ServerError) Unwrap() error         { return e.ProviderError }

// AsProviderError returns the *ProviderError inside err, or nil.
func AsProviderError(err error) *ProviderError {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe
	}
	return nil
}

// TransportError wraps a failure of the HTTP transport itself (connection
// refused, timeout, cancelled context). Unwrap returns the transport's error.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("katoni transport error: %s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// checkResponse returns an error when the status is 400 or above, or when the
// body is a JSON object carrying an "error" field.
func checkResponse(status int, body []byte, headers http.Header, requestIDHeader string) error {
	if status >= 400 {
		return providerErrorFromResponse(status, body, headers, requestIDHeader)
	}
	if bodyHasErrorField(body) {
		return providerErrorFromResponse(status, body, headers, requestIDHeader)
	}
	return nil
}

func bodyHasErrorField(body []byte) bool {
	trimmed := strings.TrimSpace(string(body))
	if !strings.HasPrefix(trimmed, "{") {
		return false
	}
	var parsed map[string]any
	if err := json.Unmarshal([]byte(trimmed), &parsed); err != nil {
		return false
	}
	v, ok := parsed["error"]
	return ok && v != nil
}

// providerErrorFromResponse maps an HTTP status code and optional JSON body to a typed error.
func providerErrorFromResponse(status int, body []byte, headers http.Header, requestIDHeader string) error {
	message, payload := extractErrorDetail(status, body)
	requestID := ""
	if headers != nil && requestIDHeader != "" {
		requestID = headers.Get(requestIDHeader)
	}

	base := &ProviderError{
		StatusCode: status,
		Message:    message,
		Body:       body,
		RequestID:  requestID,
		Payload:    payload,
	}

	switch status {
	case http.StatusBadRequest:
		return &BadRequestError{ProviderError: base}
	case http.StatusUnauthorized:
		return &AuthenticationError{ProviderError: base}
	case http.StatusForbidden:
		return &ForbiddenError{ProviderError: base}
	case http.StatusNotFound:
		return &NotFoundError{ProviderError: base}
	case http.StatusTooManyRequests:
		return &RateLimitError{ProviderError: base, RetryAfter: parseRetryAfter(headers)}
	default:
		if status >= 500 {
			return &ServerError{ProviderError: base}
		}
		return base
	}
}

func extractErrorDetail(status int, body []byte) (string, map[string]any) {
	payload := map[string]any{}
	if len(body) == 0 {
		return fmt.Sprintf("HTTP %d", status), payload
	}
	raw := strings.TrimSpace(string(body))

	var parsed map[string]any
	if err := json.Unmarshal(body, &parsed); err == nil && parsed != nil {
		payload = parsed
		if msg := findDetailString(parsed); msg != "" {
			return msg, payload
		}
	}
	if raw != "" {
		return raw, payload
	}
	return fmt.Sprintf("HTTP %d", status), payload
}

// findDetailString prefers the OAuth2 error_description over the bare code.
func findDetailString(parsed map[string]any) string {
	for _, key := range []string{"error_description", "message", "detail", "error"} {
		if v, ok := parsed[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

func parseRetryAfter(headers http.Header) *time.Duration {
	if headers == nil {
		return nil
	}
	val := headers.Get("Retry-After")
	if val == "" {
		return nil
	}
	if seconds, err := strconv.Atoi(val); err == nil {
		d := time.Duration(seconds) * time.Second
		return &d
	}
	if t, err := http.ParseTime(val); err == nil {
		d := time.Until(t)
		return &d
	}
	return nil
}
