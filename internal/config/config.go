// Package config resolves a sanity.Config from explicit values, an
// environment snapshot, an optional YAML file, and defaults.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/nc9/sanity-go/internal/constants"
	"github.com/nc9/sanity-go/pkg/sanity"
)

// Static errors for err113 compliance.
var (
	ErrSecretInFile    = errors.New("tokens are not read from config files")
	ErrInvalidDuration = errors.New("invalid duration")
)

var (
	projectIDPattern  = regexp.MustCompile(`^[a-zA-Z0-9-]+$`)
	datasetPattern    = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)
	apiVersionPattern = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2}|1|X)$`)
)

// envKeys maps environment variables to settings keys.
//
//nolint:gochecknoglobals // read-only table
var envKeys = map[string]string{
	constants.EnvProjectID:  "project_id",
	constants.EnvDataset:    "dataset",
	constants.EnvAPIToken:   "token",
	constants.EnvLogLevel:   "log_level",
	constants.EnvAPIVersion: "api_version",
	constants.EnvUseCDN:     "use_cdn",
	constants.EnvAPIHost:    "api_host",
}

// fieldKeys maps Config field names to the settings keys used in errors.
//
//nolint:gochecknoglobals // read-only table
var fieldKeys = map[string]string{
	"ProjectID":      "project_id",
	"Dataset":        "dataset",
	"APIVersion":     "api_version",
	"CDNPolicy":      "cdn_policy",
	"APIHost":        "api_host",
	"CDNHost":        "cdn_host",
	"MaxConnections": "max_connections",
	"LogLevel":       "log_level",
	"RateLimit":      "rate_limit",
	"CacheTTL":       "cache_ttl",
	"Connect":        "timeout.connect",
	"Read":           "timeout.read",
	"Write":          "timeout.write",
	"Pool":           "timeout.pool",
	"BackoffFactor":  "retry.backoff_factor",
	"MaxBackoff":     "retry.max_backoff",
	"RetryOnStatus":  "retry.retry_on_status",
}

// hints are appended to "required" reasons.
//
//nolint:gochecknoglobals // read-only table
var hints = map[string]string{
	"project_id": "set " + constants.EnvProjectID + " or Config.ProjectID",
}

type options struct {
	fs afero.Fs
}

// Option configures Resolve.
type Option func(*options)

// WithFS sets the filesystem used to read the config file when the explicit
// config does not carry one.
func WithFS(fs afero.Fs) Option {
	return func(o *options) {
		o.fs = fs
	}
}

// EnvSnapshot captures the SANITY_* variables of the process environment.
func EnvSnapshot() map[string]string {
	env := make(map[string]string)

	for _, kv := range os.Environ() {
		key, value, ok := strings.Cut(kv, "=")
		if ok && strings.HasPrefix(key, "SANITY_") {
			env[key] = value
		}
	}

	return env
}

// Resolve merges explicit values over env over the config file over defaults
// and validates the result. It does not modify its inputs.
func Resolve(explicit *sanity.Config, env map[string]string, opts ...Option) (*sanity.Config, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	if explicit == nil {
		explicit = &sanity.Config{}
	}

	fs := explicit.FS
	if fs == nil {
		fs = o.fs
	}

	if fs == nil {
		fs = afero.NewOsFs()
	}

	v := viper.New()
	setDefaults(v)

	path := explicit.ConfigFile
	if path == "" {
		path = env[constants.EnvConfigFile]
	}

	if path != "" {
		err := mergeFile(v, fs, path)
		if err != nil {
			return nil, err
		}
	}

	err := v.MergeConfigMap(envSettings(env))
	if err != nil {
		return nil, fmt.Errorf("merging environment: %w", err)
	}

	setExplicit(v, explicit)

	out, err := decode(v.AllSettings())
	if err != nil {
		return nil, err
	}

	out.ConfigFile = path
	out.Logger = explicit.Logger
	out.Interceptors = explicit.Interceptors
	out.Cache = explicit.Cache
	out.FS = fs

	normalize(out)

	err = Validate(out)
	if err != nil {
		return nil, err
	}

	return out, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("dataset", constants.DefaultDataset)
	v.SetDefault("api_version", constants.DefaultAPIVersion)
	v.SetDefault("cdn_policy", string(sanity.CDNAllQueries))
	v.SetDefault("log_level", constants.DefaultLogLevel)
	v.SetDefault("user_agent", constants.DefaultUserAgent)
	v.SetDefault("max_connections", constants.DefaultMaxConnections)
	v.SetDefault("cache_ttl", constants.DefaultCacheTTL)
	v.SetDefault("timeout.connect", constants.DefaultConnectTimeout)
	v.SetDefault("timeout.read", constants.DefaultReadTimeout)
	v.SetDefault("timeout.write", constants.DefaultWriteTimeout)
	v.SetDefault("timeout.pool", constants.DefaultPoolTimeout)
	v.SetDefault("retry.max_retries", constants.DefaultRetryMax)
	v.SetDefault("retry.backoff_factor", constants.DefaultBackoffFactor)
	v.SetDefault("retry.max_backoff", constants.DefaultRetryWaitMax)
	v.SetDefault("retry.retry_on_status", append([]int(nil), constants.DefaultRetryStatusCodes...))
}

// mergeFile layers a YAML file over the defaults. Tokens must come from the
// environment or explicit config.
func mergeFile(v *viper.Viper, fs afero.Fs, path string) error {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return &sanity.ConfigurationError{Field: "config_file", Reason: fmt.Sprintf("reading %s", path), Err: err}
	}

	settings := make(map[string]interface{})

	err = yaml.Unmarshal(data, &settings)
	if err != nil {
		return &sanity.ConfigurationError{Field: "config_file", Reason: fmt.Sprintf("parsing %s", path), Err: err}
	}

	if _, ok := settings["token"]; ok {
		return &sanity.ConfigurationError{Field: "token", Reason: "use " + constants.EnvAPIToken, Err: ErrSecretInFile}
	}

	err = v.MergeConfigMap(settings)
	if err != nil {
		return fmt.Errorf("merging %s: %w", path, err)
	}

	return nil
}

func envSettings(env map[string]string) map[string]interface{} {
	settings := make(map[string]interface{})

	for name, key := range envKeys {
		if value := strings.TrimSpace(env[name]); value != "" {
			settings[key] = value
		}
	}

	return settings
}

// setExplicit overrides every non-zero explicit field.
func setExplicit(v *viper.Viper, c *sanity.Config) {
	setString := func(key, value string) {
		if value != "" {
			v.Set(key, value)
		}
	}

	setDuration := func(key string, value time.Duration) {
		if value != 0 {
			v.Set(key, value)
		}
	}

	setString("project_id", c.ProjectID)
	setString("dataset", c.Dataset)
	setString("token", c.Token)
	setString("api_version", c.APIVersion)
	setString("cdn_policy", string(c.CDNPolicy))
	setString("api_host", c.APIHost)
	setString("cdn_host", c.CDNHost)
	setString("user_agent", c.UserAgent)
	setString("log_level", c.LogLevel)

	if c.UseCDN != nil {
		v.Set("use_cdn", *c.UseCDN)
	}

	if c.MaxConnections != 0 {
		v.Set("max_connections", c.MaxConnections)
	}

	if c.HTTP2 {
		v.Set("http2", true)
	}

	if c.RateLimit != 0 {
		v.Set("rate_limit", c.RateLimit)
	}

	setDuration("cache_ttl", c.CacheTTL)
	setDuration("timeout.connect", c.Timeout.Connect)
	setDuration("timeout.read", c.Timeout.Read)
	setDuration("timeout.write", c.Timeout.Write)
	setDuration("timeout.pool", c.Timeout.Pool)
	setDuration("retry.backoff_factor", c.Retry.BackoffFactor)
	setDuration("retry.max_backoff", c.Retry.MaxBackoff)

	if c.Retry.MaxRetries != 0 {
		v.Set("retry.max_retries", c.Retry.MaxRetries)
	}

	if c.Retry.RetryOnStatus != nil {
		v.Set("retry.retry_on_status", append([]int(nil), c.Retry.RetryOnStatus...))
	}

	if c.Retry.DisableTimeoutRetry {
		v.Set("retry.disable_timeout_retry", true)
	}

	if c.Retry.DisableConnectionRetry {
		v.Set("retry.disable_connection_retry", true)
	}
}

var durationType = reflect.TypeOf(time.Duration(0))

// secondsToDurationHook reads durations the way SANITY_* variables and config
// files write them: bare numbers are seconds ("5", 0.5), anything else goes
// through time.ParseDuration ("250ms", "1m").
func secondsToDurationHook(from, to reflect.Type, data interface{}) (interface{}, error) {
	if to != durationType || from == durationType {
		return data, nil
	}

	value := reflect.ValueOf(data)

	switch from.Kind() { //nolint:exhaustive // other kinds are left to mapstructure
	case reflect.String:
		text := strings.TrimSpace(value.String())
		if text == "" {
			return time.Duration(0), nil
		}

		if secs, err := strconv.ParseFloat(text, 64); err == nil {
			return secondsToDuration(secs)
		}

		d, err := time.ParseDuration(text)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidDuration, text)
		}

		return d, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return secondsToDuration(float64(value.Int()))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return secondsToDuration(float64(value.Uint()))
	case reflect.Float32, reflect.Float64:
		return secondsToDuration(value.Float())
	default:
		return data, nil
	}
}

func secondsToDuration(secs float64) (time.Duration, error) {
	if math.IsNaN(secs) || math.IsInf(secs, 0) || math.Abs(secs) > math.MaxInt64/float64(time.Second) {
		return 0, fmt.Errorf("%w: %v seconds", ErrInvalidDuration, secs)
	}

	return time.Duration(secs * float64(time.Second)), nil
}

func decode(settings map[string]interface{}) (*sanity.Config, error) {
	out := &sanity.Config{}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			secondsToDurationHook,
			mapstructure.StringToSliceHookFunc(","),
		),
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return nil, fmt.Errorf("creating config decoder: %w", err)
	}

	err = decoder.Decode(settings)
	if err != nil {
		return nil, &sanity.ConfigurationError{Reason: "decoding settings", Err: err}
	}

	return out, nil
}

func normalize(c *sanity.Config) {
	c.APIVersion = strings.TrimPrefix(c.APIVersion, "v")
	c.LogLevel = strings.ToUpper(c.LogLevel)
	c.APIHost = normalizeHost(c.APIHost)
	c.CDNHost = normalizeHost(c.CDNHost)

	// Explicit zeros are never set, so a zero here came from a config file
	// asking for no retries.
	if c.Retry.MaxRetries <= 0 {
		c.Retry.MaxRetries = -1
	}
}

// normalizeHost trims a trailing slash and adds https:// if no scheme is present.
func normalizeHost(host string) string {
	host = strings.TrimRight(strings.TrimSpace(host), "/")
	if host == "" {
		return ""
	}

	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "https://" + host
	}

	return host
}

// Validate checks a resolved config and names the first offending field.
func Validate(c *sanity.Config) error {
	errs := validation.Errors{}

	merge := func(err error) {
		var ve validation.Errors
		if errors.As(err, &ve) {
			for k, v := range ve {
				errs[k] = v
			}
		}
	}

	merge(validation.ValidateStruct(c,
		validation.Field(&c.ProjectID, validation.Required, validation.Match(projectIDPattern)),
		validation.Field(&c.Dataset, validation.Required, validation.Match(datasetPattern)),
		validation.Field(&c.APIVersion, validation.Required, validation.Match(apiVersionPattern)),
		validation.Field(&c.CDNPolicy, validation.In(sanity.CDNAllQueries, sanity.CDNGetOnly)),
		validation.Field(&c.MaxConnections, validation.Min(1)),
		validation.Field(&c.LogLevel, validation.In("DEBUG", "INFO", "WARN", "WARNING", "ERROR", "CRITICAL")),
		validation.Field(&c.RateLimit, validation.Min(0.0)),
		validation.Field(&c.CacheTTL, validation.Min(time.Duration(0))),
	))

	positive := validation.Min(time.Nanosecond)
	merge(validation.ValidateStruct(&c.Timeout,
		validation.Field(&c.Timeout.Connect, validation.Required, positive),
		validation.Field(&c.Timeout.Read, validation.Required, positive),
		validation.Field(&c.Timeout.Write, validation.Required, positive),
		validation.Field(&c.Timeout.Pool, validation.Required, positive),
	))

	merge(validation.ValidateStruct(&c.Retry,
		validation.Field(&c.Retry.BackoffFactor, validation.Min(time.Duration(0))),
		validation.Field(&c.Retry.MaxBackoff, validation.Min(time.Duration(0))),
		validation.Field(&c.Retry.RetryOnStatus, validation.Each(validation.Min(400), validation.Max(599))),
	))

	if len(errs) == 0 {
		return nil
	}

	names := make([]string, 0, len(errs))
	for name := range errs {
		names = append(names, name)
	}

	sort.Strings(names)

	first := names[0]
	field := fieldKeys[first]

	if field == "" {
		field = first
	}

	reason := errs[first].Error()
	if hint, ok := hints[field]; ok {
		reason += " (" + hint + ")"
	}

	return &sanity.ConfigurationError{Field: field, Reason: reason, Err: errs}
}
