// Package sanityclient provides the main entry point for creating Sanity API clients.
//
// A Client blocks the calling goroutine for each operation. Its Async view
// returns a sanity.Future per call instead. Both share one connection pool,
// one retry policy, and one metrics collector.
package sanityclient

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/nc9/sanity-go/internal/client"
	"github.com/nc9/sanity-go/internal/config"
	"github.com/nc9/sanity-go/pkg/sanity"
)

// Client is the blocking Sanity client. It is safe for concurrent use.
type Client struct {
	core   *client.Client
	closed atomic.Bool
	async  *AsyncClient
}

// New resolves cfg against the SANITY_* environment and an optional config
// file, validates it, and creates a client. cfg may be nil and is not modified.
func New(ctx context.Context, cfg *sanity.Config) (*Client, error) {
	err := ctx.Err()
	if err != nil {
		return nil, err
	}

	resolved, err := config.Resolve(cfg, config.EnvSnapshot())
	if err != nil {
		return nil, err
	}

	core, err := client.New(resolved)
	if err != nil {
		return nil, fmt.Errorf("failed to create new client: %w", err)
	}

	c := &Client{core: core}
	c.async = &AsyncClient{client: c}

	return c, nil
}

// NewFromEnv creates a client configured only from the environment.
func NewFromEnv(ctx context.Context) (*Client, error) {
	return New(ctx, nil)
}

// With creates a client, passes it to fn, and closes it when fn returns or panics.
func With(ctx context.Context, cfg *sanity.Config, fn func(*Client) error) error {
	c, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	return fn(c)
}

// Query runs a GROQ query.
func (c *Client) Query(ctx context.Context, q *sanity.QueryRequest) (*sanity.QueryResponse, error) {
	if c.closed.Load() {
		return nil, sanity.ErrClientClosed
	}

	return c.core.Queries().Run(ctx, q)
}

// Mutate applies mutations as one transaction. opts may be nil.
func (c *Client) Mutate(ctx context.Context, mutations []sanity.Mutation, opts *sanity.MutationOptions) (*sanity.MutationResponse, error) {
	if c.closed.Load() {
		return nil, sanity.ErrClientClosed
	}

	return c.core.Mutations().Apply(ctx, mutations, opts)
}

// UploadAsset uploads a local file or a remote URL as an image or file asset.
func (c *Client) UploadAsset(ctx context.Context, req *sanity.AssetUploadRequest) (*sanity.AssetResponse, error) {
	if c.closed.Load() {
		return nil, sanity.ErrClientClosed
	}

	return c.core.Assets().Upload(ctx, req)
}

// DocumentRevision returns a document at a past revision or time. opts may be nil.
func (c *Client) DocumentRevision(ctx context.Context, documentID string, opts *sanity.RevisionOptions) (*sanity.DocumentRevisionResponse, error) {
	if c.closed.Load() {
		return nil, sanity.ErrClientClosed
	}

	return c.core.History().Revision(ctx, documentID, opts)
}

// DocumentTransactions returns the transactions that touched documentIDs.
func (c *Client) DocumentTransactions(ctx context.Context, documentIDs []string, opts *sanity.TransactionsOptions) ([]sanity.TransactionHistoryItem, error) {
	if c.closed.Load() {
		return nil, sanity.ErrClientClosed
	}

	return c.core.History().Transactions(ctx, documentIDs, opts)
}

// Config returns a copy of the resolved configuration.
func (c *Client) Config() *sanity.Config {
	return c.core.Config().Clone()
}

// Metrics returns per-endpoint attempt metrics.
func (c *Client) Metrics() *sanity.MetricsCollector {
	return c.core.Metrics()
}

// CacheStats returns query cache statistics.
func (c *Client) CacheStats() sanity.CacheStats {
	return c.core.CacheStats()
}

// SetToken rotates the API token for this client and its Async view.
// A zero expiresAt never expires; an empty token makes requests anonymous.
// Requests already in flight keep the token they were sent with.
func (c *Client) SetToken(token string, expiresAt time.Time) {
	c.core.SetToken(token, expiresAt)
}

// Async returns the non-blocking view of c. Closing either closes both.
func (c *Client) Async() *AsyncClient {
	return c.async
}

// Close releases pooled connections. Later calls fail with
// sanity.ErrClientClosed. Close is idempotent.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}

	c.core.Close()

	return nil
}
