package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"

	"github.com/nc9/sanity-go/internal/constants"
	"github.com/nc9/sanity-go/internal/http"
	"github.com/nc9/sanity-go/pkg/sanity"
)

// Static errors for err113 compliance.
var (
	ErrNilQuery = errors.New("query is nil")
)

// QueriesClient runs GROQ queries.
type QueriesClient struct {
	client *Client
}

type queryBody struct {
	Query  string         `json:"query"`
	Params map[string]any `json:"params,omitempty"`
}

// Run executes q. GET is used unless q asks for POST or the GET URL would
// exceed the server's limit.
func (c *QueriesClient) Run(ctx context.Context, q *sanity.QueryRequest) (*sanity.QueryResponse, error) {
	if q == nil {
		return nil, &sanity.ValidationError{Err: ErrNilQuery}
	}

	err := q.Validate()
	if err != nil {
		return nil, err
	}

	path := c.client.versionPath("data/query/" + c.client.config.Dataset)

	req, err := c.build(q, path)
	if err != nil {
		return nil, err
	}

	req.OperationID = c.client.operation("query", map[string]interface{}{
		"method": req.Method,
		"tag":    q.Tag,
	})

	cacheKey := ""
	if c.client.cache != nil {
		cacheKey = sanity.QueryCacheKey(req.Method, req.BaseURL+path+"?"+req.Query.Encode(), c.client.tokenManager.Fingerprint(), bodyBytes(req.Body))

		data, cacheErr := c.client.cache.Get(ctx, cacheKey)
		if cacheErr == nil {
			res, parseErr := sanity.ParseQueryResponse(200, data)
			if parseErr == nil {
				return res, nil
			}
		}
	}

	resp, err := c.client.do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("running query: %w", err)
	}

	res, err := sanity.ParseQueryResponse(resp.StatusCode, resp.Body)
	if err != nil {
		return nil, err
	}

	if cacheKey != "" {
		c.client.cache.Store(ctx, cacheKey, resp.Body)
	}

	return res, nil
}

// build encodes q for GET, falling back to POST for long URLs.
func (c *QueriesClient) build(q *sanity.QueryRequest, path string) (*http.Request, error) {
	options := queryOptions(q)

	if q.Method != sanity.QueryMethodPOST {
		values, err := getValues(q, options)
		if err != nil {
			return nil, err
		}

		base := c.client.config.QueryBaseURL(string(sanity.QueryMethodGET))
		length := len(base) + len(path) + 1 + len(values.Encode())

		if q.Method == sanity.QueryMethodGET || length <= constants.MaxGETURLLength {
			return &http.Request{
				Method:  string(sanity.QueryMethodGET),
				BaseURL: base,
				Path:    path,
				Query:   values,
			}, nil
		}
	}

	body, err := json.Marshal(queryBody{Query: q.Query, Params: q.Params})
	if err != nil {
		return nil, &sanity.ValidationError{Err: fmt.Errorf("encoding params: %w", err)}
	}

	return &http.Request{
		Method:      string(sanity.QueryMethodPOST),
		BaseURL:     c.client.config.QueryBaseURL(string(sanity.QueryMethodPOST)),
		Path:        path,
		Query:       options,
		Body:        body,
		ContentType: constants.ContentTypeJSON,
	}, nil
}

// queryOptions returns the query-string options shared by GET and POST.
func queryOptions(q *sanity.QueryRequest) url.Values {
	values := url.Values{}

	if q.Perspective != "" {
		values.Set("perspective", q.Perspective)
	}

	if q.ResultSourceMap {
		values.Set("resultSourceMap", constants.BooleanTrue)
	}

	if q.Tag != "" {
		values.Set("tag", q.Tag)
	}

	if q.Explain {
		values.Set("explain", constants.BooleanTrue)
	}

	if q.ReturnQuery != nil {
		values.Set("returnQuery", strconv.FormatBool(*q.ReturnQuery))
	}

	return values
}

// getValues adds the query and its $-prefixed, JSON-encoded parameters to options.
func getValues(q *sanity.QueryRequest, options url.Values) (url.Values, error) {
	values := url.Values{}
	values.Set("query", q.Query)

	names := make([]string, 0, len(q.Params))
	for name := range q.Params {
		names = append(names, name)
	}

	sort.Strings(names)

	for _, name := range names {
		encoded, err := json.Marshal(q.Params[name])
		if err != nil {
			return nil, &sanity.ValidationError{Err: fmt.Errorf("encoding param %q: %w", name, err)}
		}

		values.Set("$"+name, string(encoded))
	}

	for k, v := range options {
		values[k] = v
	}

	return values, nil
}

func bodyBytes(body interface{}) []byte {
	if b, ok := body.([]byte); ok {
		return b
	}

	return nil
}
