package constants

import "time"

// Project defaults.
const (
	// DefaultDataset is the dataset used when none is configured.
	DefaultDataset = "production"

	// DefaultAPIVersion is the date-stamped API version used when none is configured.
	DefaultAPIVersion = "2025-02-19"

	// DefaultLogLevel is the log level used when SANITY_LOG_LEVEL is unset.
	DefaultLogLevel = "INFO"

	// DefaultUserAgent is sent with every request unless overridden.
	DefaultUserAgent = "sanity-go/0.2.0"
)

// Hosts.
const (
	// APIHostTemplate is the live API host for a project.
	APIHostTemplate = "https://%s.api.sanity.io"

	// CDNHostTemplate is the cached, read-only API host for a project.
	CDNHostTemplate = "https://%s.apicdn.sanity.io"
)

// Environment variables.
const (
	EnvProjectID  = "SANITY_PROJECT_ID"
	EnvDataset    = "SANITY_DATASET"
	EnvAPIToken   = "SANITY_API_TOKEN"
	EnvLogLevel   = "SANITY_LOG_LEVEL"
	EnvAPIVersion = "SANITY_API_VERSION"
	EnvUseCDN     = "SANITY_USE_CDN"
	EnvAPIHost    = "SANITY_API_HOST"
	EnvConfigFile = "SANITY_CONFIG_FILE"
)

// HTTP timeouts, one per phase.
const (
	// DefaultConnectTimeout bounds dialing and the TLS handshake.
	DefaultConnectTimeout = 5 * time.Second

	// DefaultReadTimeout bounds waiting for the response after the request is written.
	DefaultReadTimeout = 30 * time.Second

	// DefaultWriteTimeout bounds writing the request.
	DefaultWriteTimeout = 30 * time.Second

	// DefaultPoolTimeout bounds waiting for a pooled connection.
	DefaultPoolTimeout = 5 * time.Second

	// DefaultMaxConnections is the per-host connection limit.
	DefaultMaxConnections = 100

	// DownloadTimeout bounds fetching a remote asset source.
	DownloadTimeout = 60 * time.Second
)

// Retry and backoff.
const (
	// DefaultRetryMax is the default number of retries after the first attempt.
	DefaultRetryMax = 3

	// DefaultBackoffFactor is the delay before the first retry.
	DefaultBackoffFactor = 500 * time.Millisecond

	// DefaultRetryWaitMax caps a single backoff delay.
	DefaultRetryWaitMax = 30 * time.Second

	// ExponentialBackoffBase is the base for exponential backoff.
	ExponentialBackoffBase = 2

	// DownloadRetryMax is the number of retries for remote asset sources.
	DownloadRetryMax = 2
)

// DefaultRetryStatusCodes are the statuses retried by default.
//
//nolint:gochecknoglobals // read-only table
var DefaultRetryStatusCodes = []int{429, 500, 502, 503, 504}

// Request shaping.
const (
	// MaxGETURLLength is the longest query URL sent as GET before switching to POST.
	MaxGETURLLength = 11264

	// ContentTypeJSON is the media type for JSON bodies.
	ContentTypeJSON = "application/json"

	// ContentTypeOctetStream is the fallback media type for asset uploads.
	ContentTypeOctetStream = "application/octet-stream"

	// SniffLength is the number of bytes inspected when guessing a MIME type.
	SniffLength = 512
)

// Cache defaults.
const (
	// DefaultCacheSize is the number of entries held by the memory cache.
	DefaultCacheSize = 1000

	// DefaultCacheTTL is how long a cached query response stays fresh.
	DefaultCacheTTL = time.Minute

	// DefaultNATSBucket is the key-value bucket used by the NATS cache.
	DefaultNATSBucket = "sanity-query-cache"
)

// Mutation visibility values.
const (
	VisibilitySync     = "sync"
	VisibilityAsync    = "async"
	VisibilityDeferred = "deferred"
)

// Boolean string constants.
const (
	BooleanTrue  = "true"
	BooleanFalse = "false"
)

// Webhook signing.
const (
	// WebhookSignatureHeader carries the webhook signature.
	WebhookSignatureHeader = "sanity-webhook-signature"

	// WebhookMinimumTimestamp is 2021-01-01T00:00:00Z in milliseconds; older signatures are rejected.
	WebhookMinimumTimestamp = 1609459200000
)
