package katoni

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Logger is the minimal logging interface supported by the SDK.
type Logger interface {
	Printf(format string, v ...any)
}

// Doer sends HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// RequestHook allows callers to inspect or mutate requests before they are sent.
type RequestHook func(*http.Request)

// ResponseHook allows callers to inspect responses (raw bytes included).
type ResponseHook func(*http.Response, []byte)

// Config holds SDK configuration. It is not modified after the client is built.
type Config struct {
	ApplicationName string
	BasePath        string

	ClientID     string
	ClientSecret string
	RedirectURI  string
	State        string
	Scopes       []string

	DeveloperKey string

	// HTTPClient, when set, carries every request and the defaults below that
	// configure the built-in transport are ignored.
	HTTPClient Doer

	Timeout        time.Duration
	ConnectTimeout time.Duration
	SkipTLSVerify  bool
	ProxyURL       *url.URL

	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration

	Debug         bool
	Logger        Logger
	RedactHeaders []string

	ExtraHeaders     http.Header
	RequestIDHeader  string
	DefaultRequestID string
	AutoRequestID    bool

	BeforeRequest []RequestHook
	AfterResponse []ResponseHook
}

// ConfigParams provides optional overrides for building a Config. The yaml
// tags match the option names used by the Katoni API console.
type ConfigParams struct {
	ApplicationName string   `yaml:"application_name"`
	BasePath        string   `yaml:"base_path"`
	ClientID        string   `yaml:"client_id"`
	ClientSecret    string   `yaml:"client_secret"`
	RedirectURI     string   `yaml:"redirect_uri"`
	State           string   `yaml:"state"`
	Scopes          []string `yaml:"scopes"`
	DeveloperKey    string   `yaml:"developer_key"`

	HTTPClient Doer `yaml:"-"`

	Timeout        time.Duration `yaml:"timeout"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	SkipTLSVerify  bool          `yaml:"skip_tls_verify"`
	ProxyURL       string        `yaml:"proxy"`

	MaxIdleConns        int           `yaml:"max_idle_conns"`
	MaxIdleConnsPerHost int           `yaml:"max_idle_conns_per_host"`
	IdleConnTimeout     time.Duration `yaml:"idle_conn_timeout"`

	Debug         *bool    `yaml:"debug"`
	Logger        Logger   `yaml:"-"`
	RedactHeaders []string `yaml:"redact_headers"`

	ExtraHeaders    map[string]string `yaml:"extra_headers"`
	RequestID       string            `yaml:"request_id"`
	AutoRequestID   *bool             `yaml:"auto_request_id"`
	RequestIDHeader string            `yaml:"request_id_header"`

	BeforeRequest []RequestHook  `yaml:"-"`
	AfterResponse []ResponseHook `yaml:"-"`
}

const (
	// DefaultBasePath is the production API root.
	DefaultBasePath = "https://api.katoni.dk"
	// DefaultVersion is used when a call does not name an API version.
	DefaultVersion = "v1"

	defaultTimeout         = 60 * time.Second
	defaultConnectTimeout  = 10 * time.Second
	defaultMaxIdleConns    = 100
	defaultMaxIdlePerHost  = 10
	defaultIdleConnTimeout = 90 * time.Second
	defaultRequestIDHeader = "X-Request-ID"
)

// LoadConfig builds a Config for developer-key access.
func LoadConfig(applicationName, developerKey string) (Config, error) {
	return LoadConfigWithParams(ConfigParams{
		ApplicationName: applicationName,
		DeveloperKey:    developerKey,
	})
}

// LoadConfigWithParams applies defaults to params and validates the result.
func LoadConfigWithParams(params ConfigParams) (Config, error) {
	cfg := Config{
		ApplicationName:     strings.TrimSpace(params.ApplicationName),
		BasePath:            strings.TrimSuffix(firstNonEmpty(params.BasePath, DefaultBasePath), "/"),
		ClientID:            params.ClientID,
		ClientSecret:        params.ClientSecret,
		RedirectURI:         params.RedirectURI,
		State:               params.State,
		Scopes:              append([]string(nil), params.Scopes...),
		DeveloperKey:        params.DeveloperKey,
		HTTPClient:          params.HTTPClient,
		Timeout:             firstNonZeroDuration(params.Timeout, defaultTimeout),
		ConnectTimeout:      firstNonZeroDuration(params.ConnectTimeout, defaultConnectTimeout),
		SkipTLSVerify:       params.SkipTLSVerify,
		MaxIdleConns:        firstNonZeroInt(params.MaxIdleConns, defaultMaxIdleConns),
		MaxIdleConnsPerHost: firstNonZeroInt(params.MaxIdleConnsPerHost, defaultMaxIdlePerHost),
		IdleConnTimeout:     firstNonZeroDuration(params.IdleConnTimeout, defaultIdleConnTimeout),
		Logger:              params.Logger,
		RedactHeaders:       params.RedactHeaders,
		ExtraHeaders:        http.Header{},
		RequestIDHeader:     firstNonEmpty(params.RequestIDHeader, defaultRequestIDHeader),
		DefaultRequestID:    params.RequestID,
		AutoRequestID:       true,
		BeforeRequest:       params.BeforeRequest,
		AfterResponse:       params.AfterResponse,
	}

	for k, v := range params.ExtraHeaders {
		cfg.ExtraHeaders.Set(k, v)
	}
	if cfg.RedactHeaders == nil {
		cfg.RedactHeaders = []string{"Authorization", "X-Request-ID"}
	}
	if params.Debug != nil {
		cfg.Debug = *params.Debug
	}
	if params.AutoRequestID != nil {
		cfg.AutoRequestID = *params.AutoRequestID
	}

	if params.ProxyURL != "" {
		parsed, err := url.Parse(params.ProxyURL)
		if err != nil {
			return Config{}, fmt.Errorf("parse proxy url: %w", err)
		}
		cfg.ProxyURL = parsed
	}

	base, err := url.Parse(cfg.BasePath)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidBasePath, err)
	}
	if (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return Config{}, fmt.Errorf("%w: %q", ErrInvalidBasePath, cfg.BasePath)
	}
	if cfg.Timeout < 0 || cfg.ConnectTimeout < 0 {
		return Config{}, fmt.Errorf("timeouts must be non-negative")
	}
	if cfg.MaxIdleConns < 0 {
		return Config{}, fmt.Errorf("max idle conns must be >= 0")
	}
	if cfg.MaxIdleConnsPerHost < 0 {
		return Config{}, fmt.Errorf("max idle conns per host must be >= 0")
	}
	if cfg.IdleConnTimeout < 0 {
		return Config{}, fmt.Errorf("idle connection timeout must be non-negative")
	}

	return cfg, nil
}

// ParseConfigYAML decodes ConfigParams from a YAML document, e.g.
//
//	application_name: shop-sync
//	developer_key: abc123
//	timeout: 30s
func ParseConfigYAML(data []byte) (ConfigParams, error) {
	var params ConfigParams
	if err := yaml.Unmarshal(data, &params); err != nil {
		return ConfigParams{}, fmt.Errorf("decode config yaml: %w", err)
	}
	return params, nil
}

// userAgent is "<application name> katoni-api-go-client/<version>".
func (c Config) userAgent() string {
	return strings.TrimSpace(c.ApplicationName + " " + userAgentSuffix + Version)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstNonZeroInt(values ...int) int {
	for _, v := range values {
		if v != 0 {
			return v
		}
	}
	return 0
}

func firstNonZeroDuration(values ...time.Duration) time.Duration {
	for _, v := range values {
		if v != 0 {
			return v
		}
	}
	return 0
}

func cloneHeaders(h http.Header) http.Header {
	if h == nil {
		return http.Header{}
	}
	clone := http.Header{}
	for k, vals := range h {
		clone[k] = append([]string(nil), vals...)
	}
	return clone
}
