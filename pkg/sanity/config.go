package sanity

import (
	"fmt"
	"time"

	"github.com/spf13/afero"

	"github.com/nc9/sanity-go/internal/constants"
)

// Logger interface for logging.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// CDNPolicy selects which queries are routed to the CDN host when UseCDN is on.
type CDNPolicy string

const (
	// CDNAllQueries sends GET and POST queries to the CDN host.
	CDNAllQueries CDNPolicy = "all"
	// CDNGetOnly sends only GET queries to the CDN host.
	CDNGetOnly CDNPolicy = "get"
)

// TimeoutConfig holds one timeout per phase of a request.
// Zero fields take the defaults (5s/30s/30s/5s).
type TimeoutConfig struct {
	Connect time.Duration `mapstructure:"connect" yaml:"connect"`
	Read    time.Duration `mapstructure:"read"    yaml:"read"`
	Write   time.Duration `mapstructure:"write"   yaml:"write"`
	Pool    time.Duration `mapstructure:"pool"    yaml:"pool"`
}

// Total is the end-to-end bound for a single attempt.
func (t TimeoutConfig) Total() time.Duration {
	return t.Connect + t.Write + t.Read + t.Pool
}

// RetryConfig controls retries of failed attempts.
type RetryConfig struct {
	// MaxRetries is the number of retries after the first attempt.
	// On a Config passed to a constructor, 0 means unset and keeps the
	// default (3); use -1 to disable retries. In a config file,
	// max_retries: 0 disables retries.
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries"`
	// BackoffFactor is the delay before the first retry; later delays double.
	BackoffFactor time.Duration `mapstructure:"backoff_factor" yaml:"backoff_factor"`
	// MaxBackoff caps a single delay.
	MaxBackoff time.Duration `mapstructure:"max_backoff" yaml:"max_backoff"`
	// RetryOnStatus lists retryable HTTP statuses. Nil uses 429, 500, 502, 503, 504.
	RetryOnStatus []int `mapstructure:"retry_on_status" yaml:"retry_on_status"`
	// DisableTimeoutRetry stops retries of attempts that timed out.
	DisableTimeoutRetry bool `mapstructure:"disable_timeout_retry" yaml:"disable_timeout_retry"`
	// DisableConnectionRetry stops retries of connection failures.
	DisableConnectionRetry bool `mapstructure:"disable_connection_retry" yaml:"disable_connection_retry"`
}

// Attempts returns the maximum number of attempts, first one included.
func (r RetryConfig) Attempts() int {
	if r.MaxRetries < 0 {
		return 1
	}

	return r.MaxRetries + 1
}

// ShouldRetryStatus reports whether status is in RetryOnStatus.
func (r RetryConfig) ShouldRetryStatus(status int) bool {
	for _, s := range r.RetryOnStatus {
		if s == status {
			return true
		}
	}

	return false
}

// Config represents client configuration for building a sanityclient.Client.
//
// Zero values are filled from the environment, an optional YAML file, and
// finally the documented defaults, in that order. The resolved Config is a
// fresh copy owned by the client and is not modified afterwards.
type Config struct {
	// Required fields
	// ProjectID: the Sanity project identifier (SANITY_PROJECT_ID).
	ProjectID string `mapstructure:"project_id" yaml:"project_id"`

	// Dataset: dataset name, "production" by default (SANITY_DATASET).
	Dataset string `mapstructure:"dataset" yaml:"dataset"`
	// Token: API token (SANITY_API_TOKEN). Required for mutations and uploads.
	Token string `mapstructure:"token" yaml:"token"`
	// APIVersion: date-stamped API version (SANITY_API_VERSION).
	APIVersion string `mapstructure:"api_version" yaml:"api_version"`
	// UseCDN: route queries through the CDN host. Nil means true, unless
	// SANITY_USE_CDN says otherwise.
	UseCDN *bool `mapstructure:"use_cdn" yaml:"use_cdn"`
	// CDNPolicy: which queries use the CDN host. Defaults to CDNAllQueries.
	CDNPolicy CDNPolicy `mapstructure:"cdn_policy" yaml:"cdn_policy"`
	// APIHost: overrides https://<project>.api.sanity.io (SANITY_API_HOST).
	APIHost string `mapstructure:"api_host" yaml:"api_host"`
	// CDNHost: overrides https://<project>.apicdn.sanity.io. When APIHost is
	// set and CDNHost is not, CDN reads go to APIHost.
	CDNHost string `mapstructure:"cdn_host" yaml:"cdn_host"`

	Timeout TimeoutConfig `mapstructure:"timeout" yaml:"timeout"`
	Retry   RetryConfig   `mapstructure:"retry"   yaml:"retry"`

	// MaxConnections: per-host connection pool size.
	MaxConnections int `mapstructure:"max_connections" yaml:"max_connections"`
	// HTTP2: attempt HTTP/2 on the pooled transport.
	HTTP2 bool `mapstructure:"http2" yaml:"http2"`
	// UserAgent: overrides the default User-Agent header.
	UserAgent string `mapstructure:"user_agent" yaml:"user_agent"`
	// LogLevel: DEBUG, INFO, WARN, or ERROR (SANITY_LOG_LEVEL).
	LogLevel string `mapstructure:"log_level" yaml:"log_level"`
	// RateLimit: client-side requests per second, 0 disables limiting.
	RateLimit float64 `mapstructure:"rate_limit" yaml:"rate_limit"`
	// CacheTTL: freshness of cached query responses when Cache is set.
	CacheTTL time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
	// ConfigFile: optional YAML file consulted below the environment
	// (SANITY_CONFIG_FILE).
	ConfigFile string `mapstructure:"config_file" yaml:"-"`

	// Logger: optional structured logger. Defaults to an hclog logger at LogLevel.
	Logger Logger `mapstructure:"-" yaml:"-"`
	// Interceptors: optional request/response hooks run around every attempt.
	Interceptors *InterceptorChain `mapstructure:"-" yaml:"-"`
	// Cache: optional query response cache.
	Cache Cache `mapstructure:"-" yaml:"-"`
	// FS: filesystem for local asset sources and the config file. Defaults to the OS.
	FS afero.Fs `mapstructure:"-" yaml:"-"`
}

// Bool returns a pointer to b, for tri-state fields such as UseCDN.
func Bool(b bool) *bool {
	return &b
}

// CDNEnabled reports whether queries may use the CDN host.
func (c *Config) CDNEnabled() bool {
	return c.UseCDN == nil || *c.UseCDN
}

// APIBaseURL is the live API host.
func (c *Config) APIBaseURL() string {
	if c.APIHost != "" {
		return c.APIHost
	}

	return fmt.Sprintf(constants.APIHostTemplate, c.ProjectID)
}

// CDNBaseURL is the cached read host.
func (c *Config) CDNBaseURL() string {
	switch {
	case c.CDNHost != "":
		return c.CDNHost
	case c.APIHost != "":
		return c.APIHost
	default:
		return fmt.Sprintf(constants.CDNHostTemplate, c.ProjectID)
	}
}

// QueryBaseURL returns the host a query sent with method should use.
func (c *Config) QueryBaseURL(method string) string {
	if !c.CDNEnabled() {
		return c.APIBaseURL()
	}

	if c.CDNPolicy == CDNGetOnly && method != "GET" {
		return c.APIBaseURL()
	}

	return c.CDNBaseURL()
}

// Clone returns a copy whose slices and pointers are not shared with c.
func (c *Config) Clone() *Config {
	if c == nil {
		return &Config{}
	}

	out := *c
	if c.UseCDN != nil {
		out.UseCDN = Bool(*c.UseCDN)
	}

	if c.Retry.RetryOnStatus != nil {
		out.Retry.RetryOnStatus = append([]int(nil), c.Retry.RetryOnStatus...)
	}

	return &out
}
