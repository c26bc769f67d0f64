package katoni

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviderErrorTypes(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		body       []byte
		wantType   string
	}{
		{
			name:       "BadRequest",
			statusCode: http.StatusBadRequest,
			body:       []byte(`{"error": "invalid_request"}`),
			wantType:   "*katoni.BadRequestError",
		},
		{
			name:       "Unauthorized",
			statusCode: http.StatusUnauthorized,
			body:       []byte(`{"message": "Invalid developer key"}`),
			wantType:   "*katoni.AuthenticationError",
		},
		{
			name:       "Forbidden",
			statusCode: http.StatusForbidden,
			body:       []byte(`{"error": "insufficient_scope"}`),
			wantType:   "*katoni.ForbiddenError",
		},
		{
			name:       "NotFound",
			statusCode: http.StatusNotFound,
			body:       []byte(`{"error": "not_found"}`),
			wantType:   "*katoni.NotFoundError",
		},
		{
			name:       "TooManyRequests",
			statusCode: http.StatusTooManyRequests,
			body:       []byte(`{"detail": "Rate limit exceeded"}`),
			wantType:   "*katoni.RateLimitError",
		},
		{
			name:       "InternalServerError",
			statusCode: http.StatusInternalServerError,
			body:       []byte(`{"error": "Internal error"}`),
			wantType:   "*katoni.ServerError",
		},
		{
			name:       "BadGateway",
			statusCode: http.StatusBadGateway,
			body:       []byte(`Bad gateway`),
			wantType:   "*katoni.ServerError",
		},
		{
			name:       "GenericClientError",
			statusCode: http.StatusTeapot,
			body:       []byte(`{"detail": "I'm a teapot"}`),
			wantType:   "*katoni.ProviderError",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := http.Header{}
			headers.Set("X-Request-ID", "test-request-id")

			err := providerErrorFromResponse(tt.statusCode, tt.body, headers, "X-Request-ID")
			require.Error(t, err)
			assert.Equal(t, tt.wantType, fmt.Sprintf("%T", err))

			pe := AsProviderError(err)
			require.NotNil(t, pe, "error should contain *ProviderError")
			assert.Equal(t, tt.statusCode, pe.StatusCode)
			assert.Equal(t, "test-request-id", pe.RequestID)
		})
	}
}

func TestCheckResponse(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr bool
	}{
		{"OK", 200, `{"id":1}`, false},
		{"OKArray", 200, `[{"error":"inside array"}]`, false},
		{"OKPlainText", 200, `error`, false},
		{"OKNullError", 200, `{"error":null}`, false},
		{"ErrorFieldOn200", 200, `{"error":"invalid_key"}`, true},
		{"ErrorObjectOn201", 201, `{"error":{"code":7}}`, true},
		{"NotFound", 404, `{"error":"not_found"}`, true},
		{"EmptyServerError", 500, ``, true},
		{"Redirect", 302, ``, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkResponse(tt.status, []byte(tt.body), nil, "")
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNotFoundPayload(t *testing.T) {
	err := checkResponse(404, []byte(`{"error":"not_found"}`), nil, "")
	pe := AsProviderError(err)
	require.NotNil(t, pe, "got %v", err)
	assert.Equal(t, 404, pe.StatusCode)
	assert.Equal(t, "not_found", pe.Payload["error"])
	assert.Equal(t, "not_found", pe.ErrorCode())
}

func TestRateLimitErrorRetryAfter(t *testing.T) {
	tests := []struct {
		name           string
		retryAfterVal  string
		wantNil        bool
		wantApproxSecs int
	}{
		{
			name:           "NumericSeconds",
			retryAfterVal:  "30",
			wantApproxSecs: 30,
		},
		{
			name:          "Empty",
			retryAfterVal: "",
			wantNil:       true,
		},
		{
			name:          "InvalidValue",
			retryAfterVal: "not-a-number",
			wantNil:       true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := http.Header{}
			if tt.retryAfterVal != "" {
				headers.Set("Retry-After", tt.retryAfterVal)
			}

			err := providerErrorFromResponse(http.StatusTooManyRequests, []byte(`{}`), headers, "")
			rateLimitErr, ok := err.(*RateLimitError)
			require.True(t, ok, "got %T", err)

			if tt.wantNil {
				assert.Nil(t, rateLimitErr.RetryAfter)
				return
			}
			require.NotNil(t, rateLimitErr.RetryAfter)
			assert.Equal(t, tt.wantApproxSecs, int(rateLimitErr.RetryAfter.Seconds()))
		})
	}
}

func TestExtractErrorDetail(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        []byte
		wantMessage string
	}{
		{"DescriptionBeatsCode", 400, []byte(`{"error":"invalid_grant","error_description":"Code expired"}`), "Code expired"},
		{"DetailField", 400, []byte(`{"detail": "Invalid input"}`), "Invalid input"},
		{"MessageField", 401, []byte(`{"message": "Unauthorized"}`), "Unauthorized"},
		{"ErrorField", 500, []byte(`{"error": "Server error"}`), "Server error"},
		{"PlainTextBody", 502, []byte(`Bad Gateway`), "Bad Gateway"},
		{"EmptyBody", 503, []byte{}, "HTTP 503"},
		{"InvalidJSON", 400, []byte(`{invalid json`), "{invalid json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, _ := extractErrorDetail(tt.status, tt.body)
			assert.Equal(t, tt.wantMessage, msg)
		})
	}
}

func TestProviderErrorErrorMethod(t *testing.T) {
	var nilErr *ProviderError
	assert.Empty(t, nilErr.Error())

	withID := &ProviderError{StatusCode: 400, Message: "Bad request", RequestID: "req-123"}
	assert.Contains(t, withID.Error(), "request_id=req-123")

	plain := &ProviderError{StatusCode: 500, Message: "Server error"}
	assert.Contains(t, plain.Error(), "katoni api error (500)")
}

func TestTransportErrorUnwraps(t *testing.T) {
	err := error(&TransportError{Method: "GET", URL: "https://h/v1/x", Err: context.DeadlineExceeded})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Nil(t, AsProviderError(err), "transport errors are not provider errors")
}
