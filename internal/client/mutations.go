package client

import (
	"context"
	"fmt"

	"github.com/nc9/sanity-go/internal/http"
	"github.com/nc9/sanity-go/pkg/sanity"
)

// MutationsClient applies transactions.
type MutationsClient struct {
	client *Client
}

type mutateBody struct {
	Mutations []sanity.Mutation `json:"mutations"`
}

// Apply sends mutations as one transaction to the live API host. Mutations
// are validated locally first, so an invalid transaction never reaches the
// network.
func (c *MutationsClient) Apply(ctx context.Context, mutations []sanity.Mutation, opts *sanity.MutationOptions) (*sanity.MutationResponse, error) {
	err := sanity.ValidateMutations(mutations)
	if err != nil {
		return nil, err
	}

	if opts != nil {
		err = opts.Validate()
		if err != nil {
			return nil, err
		}
	}

	err = c.client.requireToken("mutations")
	if err != nil {
		return nil, err
	}

	req := &http.Request{
		Method:  "POST",
		BaseURL: c.client.config.APIBaseURL(),
		Path:    c.client.versionPath("data/mutate/" + c.client.config.Dataset),
		Query:   opts.Values(),
		Body:    mutateBody{Mutations: mutations},
	}
	req.OperationID = c.client.operation("mutate", map[string]interface{}{
		"mutations": len(mutations),
	})

	resp, err := c.client.do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("applying mutations: %w", err)
	}

	res, err := sanity.ParseMutationResponse(resp.StatusCode, resp.Body)
	if err != nil {
		return nil, err
	}

	if c.client.cache != nil && (opts == nil || !opts.DryRun) {
		cacheErr := c.client.cache.Invalidate(ctx)
		if cacheErr != nil {
			c.client.logger.Warn("invalidating query cache failed", map[string]interface{}{
				"operation_id": req.OperationID,
				"error":        cacheErr.Error(),
			})
		}
	}

	return res, nil
}
