package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/nc9/sanity-go/internal/http"
	"github.com/nc9/sanity-go/pkg/sanity"
)

// Static errors for err113 compliance.
var (
	ErrDocumentIDRequired = errors.New("at least one document id is required")
)

// HistoryClient reads document revisions and transaction logs.
type HistoryClient struct {
	client *Client
}

// Revision returns documentID as of opts.Revision or opts.Time, or its
// current revision when opts is nil.
func (c *HistoryClient) Revision(ctx context.Context, documentID string, opts *sanity.RevisionOptions) (*sanity.DocumentRevisionResponse, error) {
	if strings.TrimSpace(documentID) == "" {
		return nil, &sanity.ValidationError{Err: ErrDocumentIDRequired}
	}

	req := &http.Request{
		Method:  "GET",
		BaseURL: c.client.config.APIBaseURL(),
		Path:    c.client.versionPath("data/history/" + c.client.config.Dataset + "/documents/" + url.PathEscape(documentID)),
		Query:   opts.Values(),
	}
	req.OperationID = c.client.operation("document_revision", map[string]interface{}{
		"document_id": documentID,
	})

	resp, err := c.client.do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("getting document revision: %w", err)
	}

	var out sanity.DocumentRevisionResponse

	err = json.Unmarshal(resp.Body, &out)
	if err != nil {
		return nil, &sanity.ParseError{StatusCode: resp.StatusCode, Body: resp.Body, Err: err}
	}

	return &out, nil
}

// Transactions returns the transactions touching documentIDs, decoded from
// the NDJSON stream.
func (c *HistoryClient) Transactions(ctx context.Context, documentIDs []string, opts *sanity.TransactionsOptions) ([]sanity.TransactionHistoryItem, error) {
	ids := make([]string, 0, len(documentIDs))

	for _, id := range documentIDs {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, url.PathEscape(id))
		}
	}

	if len(ids) == 0 {
		return nil, &sanity.ValidationError{Err: ErrDocumentIDRequired}
	}

	req := &http.Request{
		Method:  "GET",
		BaseURL: c.client.config.APIBaseURL(),
		Path:    c.client.versionPath("data/history/" + c.client.config.Dataset + "/transactions/" + strings.Join(ids, ",")),
		Query:   opts.Values(),
		Headers: map[string]string{"Accept": "application/x-ndjson"},
	}
	req.OperationID = c.client.operation("document_transactions", map[string]interface{}{
		"documents": len(ids),
	})

	resp, err := c.client.do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("getting document transactions: %w", err)
	}

	return sanity.ParseTransactionHistory(resp.StatusCode, resp.Body)
}
