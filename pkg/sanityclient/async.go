package sanityclient

import (
	"context"

	"github.com/nc9/sanity-go/pkg/sanity"
)

// AsyncClient starts each operation on its own goroutine and returns a
// future. Cancelling a future aborts its request.
type AsyncClient struct {
	client *Client
}

// NewAsync creates a client and returns its async view.
func NewAsync(ctx context.Context, cfg *sanity.Config) (*AsyncClient, error) {
	c, err := New(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return c.Async(), nil
}

// Query runs a GROQ query.
func (a *AsyncClient) Query(ctx context.Context, q *sanity.QueryRequest) *sanity.Future[*sanity.QueryResponse] {
	return sanity.Go(ctx, func(ctx context.Context) (*sanity.QueryResponse, error) {
		return a.client.Query(ctx, q)
	})
}

// Mutate applies mutations as one transaction.
func (a *AsyncClient) Mutate(ctx context.Context, mutations []sanity.Mutation, opts *sanity.MutationOptions) *sanity.Future[*sanity.MutationResponse] {
	return sanity.Go(ctx, func(ctx context.Context) (*sanity.MutationResponse, error) {
		return a.client.Mutate(ctx, mutations, opts)
	})
}

// UploadAsset uploads a local file or a remote URL.
func (a *AsyncClient) UploadAsset(ctx context.Context, req *sanity.AssetUploadRequest) *sanity.Future[*sanity.AssetResponse] {
	return sanity.Go(ctx, func(ctx context.Context) (*sanity.AssetResponse, error) {
		return a.client.UploadAsset(ctx, req)
	})
}

// DocumentRevision returns a document at a past revision or time.
func (a *AsyncClient) DocumentRevision(ctx context.Context, documentID string, opts *sanity.RevisionOptions) *sanity.Future[*sanity.DocumentRevisionResponse] {
	return sanity.Go(ctx, func(ctx context.Context) (*sanity.DocumentRevisionResponse, error) {
		return a.client.DocumentRevision(ctx, documentID, opts)
	})
}

// DocumentTransactions returns the transactions that touched documentIDs.
func (a *AsyncClient) DocumentTransactions(ctx context.Context, documentIDs []string, opts *sanity.TransactionsOptions) *sanity.Future[[]sanity.TransactionHistoryItem] {
	return sanity.Go(ctx, func(ctx context.Context) ([]sanity.TransactionHistoryItem, error) {
		return a.client.DocumentTransactions(ctx, documentIDs, opts)
	})
}

// Blocking returns the blocking view of the same client.
func (a *AsyncClient) Blocking() *Client {
	return a.client
}

// Config returns a copy of the resolved configuration.
func (a *AsyncClient) Config() *sanity.Config {
	return a.client.Config()
}

// Metrics returns per-endpoint attempt metrics.
func (a *AsyncClient) Metrics() *sanity.MetricsCollector {
	return a.client.Metrics()
}

// Close closes the underlying client.
func (a *AsyncClient) Close() error {
	return a.client.Close()
}
