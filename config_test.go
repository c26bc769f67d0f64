package katoni

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("shop-sync", "dev-key")
	require.NoError(t, err)

	assert.Equal(t, DefaultBasePath, cfg.BasePath)
	assert.Equal(t, "dev-key", cfg.DeveloperKey)
	assert.Equal(t, "shop-sync", cfg.ApplicationName)
	assert.Equal(t, 60*time.Second, cfg.Timeout)
	assert.Equal(t, 10*time.Second, cfg.ConnectTimeout)
	assert.False(t, cfg.SkipTLSVerify, "TLS verification on by default")
	assert.True(t, cfg.AutoRequestID)
	assert.Equal(t, "X-Request-ID", cfg.RequestIDHeader)
	assert.NotEmpty(t, cfg.RedactHeaders)
}

func TestLoadConfigOverrides(t *testing.T) {
	debug := true
	auto := false
	cfg, err := LoadConfigWithParams(ConfigParams{
		BasePath:        "https://staging.katoni.dk/",
		Timeout:         5 * time.Second,
		ConnectTimeout:  time.Second,
		ProxyURL:        "http://localhost:8080",
		Debug:           &debug,
		AutoRequestID:   &auto,
		RequestIDHeader: "X-Trace",
		ExtraHeaders:    map[string]string{"x-tenant": "acme"},
	})
	require.NoError(t, err)

	assert.Equal(t, "https://staging.katoni.dk", cfg.BasePath, "trailing slash trimmed")
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, time.Second, cfg.ConnectTimeout)
	require.NotNil(t, cfg.ProxyURL)
	assert.Equal(t, "http://localhost:8080", cfg.ProxyURL.String())
	assert.True(t, cfg.Debug)
	assert.False(t, cfg.AutoRequestID)
	assert.Equal(t, "X-Trace", cfg.RequestIDHeader)
	assert.Equal(t, "acme", cfg.ExtraHeaders.Get("X-Tenant"))
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name   string
		params ConfigParams
		is     error
	}{
		{"RelativeBasePath", ConfigParams{BasePath: "api.katoni.dk"}, ErrInvalidBasePath},
		{"FTPBasePath", ConfigParams{BasePath: "ftp://api.katoni.dk"}, ErrInvalidBasePath},
		{"NegativeTimeout", ConfigParams{Timeout: -time.Second}, nil},
		{"NegativeIdleConns", ConfigParams{MaxIdleConns: -1}, nil},
		{"BadProxy", ConfigParams{ProxyURL: "http://[::1"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfigWithParams(tt.params)
			require.Error(t, err)
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}
		})
	}
}

func TestParseConfigYAML(t *testing.T) {
	doc := []byte(`
application_name: shop-sync
base_path: https://staging.katoni.dk
client_id: client-1
client_secret: secret-1
redirect_uri: https://shop.example/callback
state: xyz
developer_key: dev-key
timeout: 30s
connect_timeout: 2s
debug: true
extra_headers:
  X-Tenant: acme
`)
	params, err := ParseConfigYAML(doc)
	require.NoError(t, err)
	cfg, err := LoadConfigWithParams(params)
	require.NoError(t, err)

	assert.Equal(t, "shop-sync", cfg.ApplicationName)
	assert.Equal(t, "client-1", cfg.ClientID)
	assert.Equal(t, "secret-1", cfg.ClientSecret)
	assert.Equal(t, "https://shop.example/callback", cfg.RedirectURI)
	assert.Equal(t, "xyz", cfg.State)
	assert.Equal(t, "dev-key", cfg.DeveloperKey)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, 2*time.Second, cfg.ConnectTimeout)
	assert.True(t, cfg.Debug)
	assert.Equal(t, "acme", cfg.ExtraHeaders.Get("X-Tenant"))
}

func TestParseConfigYAMLInvalid(t *testing.T) {
	_, err := ParseConfigYAML([]byte("timeout: [not a duration"))
	assert.Error(t, err)
}

func TestNewClientWithConfigRequiresBasePath(t *testing.T) {
	_, err := NewClientWithConfig(Config{})
	assert.ErrorIs(t, err, ErrInvalidBasePath)
}
