// Package client maps Sanity operations onto HTTP requests. Both the
// blocking and the async facade delegate to a single Client.
package client

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/nc9/sanity-go/internal/auth"
	"github.com/nc9/sanity-go/internal/http"
	"github.com/nc9/sanity-go/internal/logging"
	"github.com/nc9/sanity-go/pkg/sanity"
)

// Client implements the Sanity operations on top of a shared http.Client.
type Client struct {
	config       *sanity.Config
	httpClient   *http.Client
	tokenManager *auth.StaticTokenManager
	logger       sanity.Logger
	cache        *sanity.CacheManager
	fs           afero.Fs

	queries *QueriesClient
	mutator *MutationsClient
	assets  *AssetsClient
	history *HistoryClient
}

// createHTTPClientOptions builds HTTP client options from config.
func createHTTPClientOptions(config *sanity.Config, logger sanity.Logger) []http.Option {
	httpOpts := []http.Option{
		http.WithLogger(logger),
		http.WithDebug(strings.EqualFold(config.LogLevel, "DEBUG")),
		http.WithUserAgent(config.UserAgent),
		http.WithHTTP2(config.HTTP2),
		http.WithRateLimit(config.RateLimit),
	}

	retry := config.Retry
	if retry.MaxRetries != 0 || retry.BackoffFactor != 0 || retry.MaxBackoff != 0 || retry.RetryOnStatus != nil {
		httpOpts = append(httpOpts, http.WithRetry(retry))
	}

	if config.Timeout.Total() > 0 {
		httpOpts = append(httpOpts, http.WithTimeouts(config.Timeout))
	}

	if config.MaxConnections > 0 {
		httpOpts = append(httpOpts, http.WithMaxConnections(config.MaxConnections))
	}

	if config.Interceptors != nil {
		httpOpts = append(httpOpts, http.WithInterceptors(config.Interceptors))
	}

	return httpOpts
}

// New creates a client from a resolved configuration. config is not
// modified and must not be modified by the caller afterwards.
func New(config *sanity.Config) (*Client, error) {
	if config == nil || config.ProjectID == "" {
		return nil, &sanity.ConfigurationError{Field: "project_id", Reason: "is required", Err: sanity.ErrConfiguration}
	}

	logger := config.Logger
	if logger == nil {
		logger = logging.New(config.LogLevel, nil)
	}

	tokenManager := auth.NewStaticTokenManager(config.Token)
	httpClient := http.NewClient(config.APIBaseURL(), tokenManager, createHTTPClientOptions(config, logger)...)

	fs := config.FS
	if fs == nil {
		fs = afero.NewOsFs()
	}

	c := &Client{
		config:       config,
		httpClient:   httpClient,
		tokenManager: tokenManager,
		logger:       logger,
		fs:           fs,
	}

	if config.Cache != nil {
		c.cache = sanity.NewCacheManager(config.Cache, logger).WithTTL(config.CacheTTL)
	}

	c.initializeResourceClients()

	return c, nil
}

func (c *Client) initializeResourceClients() {
	c.queries = &QueriesClient{client: c}
	c.mutator = &MutationsClient{client: c}
	c.assets = &AssetsClient{client: c, downloader: newDownloader()}
	c.history = &HistoryClient{client: c}
}

// Queries returns the query client.
func (c *Client) Queries() *QueriesClient {
	return c.queries
}

// Mutations returns the mutation client.
func (c *Client) Mutations() *MutationsClient {
	return c.mutator
}

// Assets returns the asset upload client.
func (c *Client) Assets() *AssetsClient {
	return c.assets
}

// History returns the document history client.
func (c *Client) History() *HistoryClient {
	return c.history
}

// Config returns the resolved configuration.
func (c *Client) Config() *sanity.Config {
	return c.config
}

// Metrics returns the per-endpoint attempt metrics.
func (c *Client) Metrics() *sanity.MetricsCollector {
	return c.httpClient.Metrics()
}

// CacheStats returns query cache statistics, or zero values when no cache is configured.
func (c *Client) CacheStats() sanity.CacheStats {
	if c.cache == nil {
		return sanity.CacheStats{}
	}

	return c.cache.GetStats()
}

// SetToken rotates the API token used by later requests. An empty token
// makes them anonymous. Cached query results stay scoped to the token
// they were fetched with.
func (c *Client) SetToken(token string, expiresAt time.Time) {
	c.tokenManager.SetToken(token, expiresAt)
	c.logger.Info("API token rotated", map[string]interface{}{
		"authenticated": c.tokenManager.HasToken(),
		"fingerprint":   c.tokenManager.Fingerprint(),
	})
}

// Close releases pooled connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
	c.assets.downloader.close()
}

func (c *Client) requireToken(operation string) error {
	if c.tokenManager.HasToken() {
		return nil
	}

	return &sanity.ConfigurationError{
		Field:  "token",
		Reason: fmt.Sprintf("is required for %s; set SANITY_API_TOKEN or Config.Token", operation),
		Err:    sanity.ErrTokenRequired,
	}
}

// versionPath returns /v{version}/{rest}.
func (c *Client) versionPath(rest string) string {
	return "/v" + c.config.APIVersion + "/" + rest
}

// operation starts a logical operation and returns its id.
func (c *Client) operation(name string, fields map[string]interface{}) string {
	id := uuid.NewString()

	if fields == nil {
		fields = map[string]interface{}{}
	}

	fields["operation"] = name
	fields["operation_id"] = id
	fields["dataset"] = c.config.Dataset
	c.logger.Debug("starting operation", fields)

	return id
}

func (c *Client) do(ctx context.Context, req *http.Request) (*http.Response, error) {
	return c.httpClient.Do(ctx, req)
}
