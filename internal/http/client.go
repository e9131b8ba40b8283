// Package http executes requests against the Sanity API with pooled
// connections, retries, interceptors, and typed errors.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/nc9/sanity-go/internal/auth"
	"github.com/nc9/sanity-go/internal/constants"
	"github.com/nc9/sanity-go/internal/logging"
	"github.com/nc9/sanity-go/pkg/sanity"
)

// Request is one logical request. Retries reuse it.
type Request struct {
	Method string
	// BaseURL overrides the client's base URL, e.g. to target the CDN host.
	BaseURL string
	Path    string
	Query   url.Values
	// Body is sent as-is when it is []byte, otherwise encoded as JSON.
	Body        interface{}
	ContentType string
	Headers     map[string]string
	// OperationID tags every log line of this request.
	OperationID string
}

// Response is a fully read response.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	Attempts   int
}

// Client executes requests.
type Client struct {
	baseURL      string
	tokenManager auth.TokenManager
	httpClient   *retryablehttp.Client
	transport    *http.Transport
	logger       sanity.Logger
	debug        bool
	userAgent    string
	retry        sanity.RetryConfig
	timeouts     sanity.TimeoutConfig
	maxConns     int
	http2        bool
	rateLimit    float64
	interceptors *sanity.InterceptorChain
	metrics      *sanity.MetricsCollector
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(logger sanity.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithDebug logs every request and response at debug level.
func WithDebug(debug bool) Option {
	return func(c *Client) {
		c.debug = debug
	}
}

// WithRetryConfig sets the number of retries and the backoff bounds.
func WithRetryConfig(maxRetries int, waitMin, waitMax time.Duration) Option {
	return func(c *Client) {
		c.retry.MaxRetries = maxRetries
		c.retry.BackoffFactor = waitMin
		c.retry.MaxBackoff = waitMax
	}
}

// WithRetry sets the full retry policy.
func WithRetry(retry sanity.RetryConfig) Option {
	return func(c *Client) {
		c.retry = retry
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		if userAgent != "" {
			c.userAgent = userAgent
		}
	}
}

// WithTimeouts sets the per-phase timeouts.
func WithTimeouts(timeouts sanity.TimeoutConfig) Option {
	return func(c *Client) {
		c.timeouts = timeouts
	}
}

// WithMaxConnections sets the per-host pool size.
func WithMaxConnections(n int) Option {
	return func(c *Client) {
		c.maxConns = n
	}
}

// WithHTTP2 enables HTTP/2 negotiation.
func WithHTTP2(enabled bool) Option {
	return func(c *Client) {
		c.http2 = enabled
	}
}

// WithRateLimit limits attempts to rps per second. 0 disables limiting.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		c.rateLimit = rps
	}
}

// WithInterceptors runs chain around every attempt.
func WithInterceptors(chain *sanity.InterceptorChain) Option {
	return func(c *Client) {
		c.interceptors = chain
	}
}

// WithMetrics records attempts in collector.
func WithMetrics(collector *sanity.MetricsCollector) Option {
	return func(c *Client) {
		if collector != nil {
			c.metrics = collector
		}
	}
}

// NewClient creates a client for baseURL. tokenManager may be nil.
func NewClient(baseURL string, tokenManager auth.TokenManager, opts ...Option) *Client {
	c := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		tokenManager: tokenManager,
		logger:       logging.NewNull(),
		userAgent:    constants.DefaultUserAgent,
		retry: sanity.RetryConfig{
			MaxRetries:    constants.DefaultRetryMax,
			BackoffFactor: constants.DefaultBackoffFactor,
			MaxBackoff:    constants.DefaultRetryWaitMax,
		},
		timeouts: sanity.TimeoutConfig{
			Connect: constants.DefaultConnectTimeout,
			Read:    constants.DefaultReadTimeout,
			Write:   constants.DefaultWriteTimeout,
			Pool:    constants.DefaultPoolTimeout,
		},
		maxConns: constants.DefaultMaxConnections,
		metrics:  sanity.NewMetricsCollector(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.retry.RetryOnStatus == nil {
		c.retry.RetryOnStatus = append([]int(nil), constants.DefaultRetryStatusCodes...)
	}

	c.transport = newTransport(c.timeouts, c.maxConns, c.http2)

	chains := make([]*sanity.InterceptorChain, 0, 2)
	if c.rateLimit > 0 {
		limiter := sanity.NewInterceptorChain()
		limiter.AddRequestInterceptor(sanity.RateLimitInterceptor(c.rateLimit, 1))
		chains = append(chains, limiter)
	}

	if c.interceptors != nil {
		chains = append(chains, c.interceptors)
	}

	rc := retryablehttp.NewClient()
	rc.HTTPClient = &http.Client{
		Transport: &interceptTransport{
			base:    c.transport,
			chains:  chains,
			metrics: c.metrics,
			logger:  c.logger,
		},
		Timeout: c.timeouts.Total(),
	}
	rc.Logger = nil
	rc.RetryMax = c.retry.Attempts() - 1
	rc.RetryWaitMin = c.retry.BackoffFactor
	rc.RetryWaitMax = c.retry.MaxBackoff
	rc.CheckRetry = c.checkRetry
	rc.Backoff = c.backoff
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.RequestLogHook = c.requestLogHook
	c.httpClient = rc

	return c
}

// Metrics returns the collector recording this client's attempts.
func (c *Client) Metrics() *sanity.MetricsCollector {
	return c.metrics
}

// CloseIdleConnections releases pooled connections.
func (c *Client) CloseIdleConnections() {
	c.transport.CloseIdleConnections()
}

type attemptsKey struct{}

type callState struct {
	attempts    atomic.Int32
	operationID string
}

func (c *Client) requestLogHook(_ retryablehttp.Logger, r *http.Request, retry int) {
	state, _ := r.Context().Value(attemptsKey{}).(*callState)
	if state == nil {
		return
	}

	state.attempts.Store(int32(retry + 1)) //nolint:gosec // bounded by RetryMax

	if retry > 0 {
		c.logger.Warn("retrying request", map[string]interface{}{
			"method":       r.Method,
			"url":          r.URL.String(),
			"attempt":      retry + 1,
			"operation_id": state.operationID,
		})
	}
}

// Do sends req, retrying per the policy, and classifies the final response.
// On an HTTP error both the response and a typed error are returned.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	base := c.baseURL
	if req.BaseURL != "" {
		base = strings.TrimRight(req.BaseURL, "/")
	}

	fullURL := base + req.Path
	if len(req.Query) > 0 {
		fullURL += "?" + req.Query.Encode()
	}

	body, contentType, err := encodeBody(req)
	if err != nil {
		return nil, err
	}

	state := &callState{operationID: req.OperationID}
	ctx = context.WithValue(ctx, attemptsKey{}, state)

	var rawBody interface{}
	if body != nil {
		rawBody = body
	}

	httpReq, err := retryablehttp.NewRequestWithContext(ctx, req.Method, fullURL, rawBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	httpReq.Header.Set("Accept", constants.ContentTypeJSON)
	httpReq.Header.Set("User-Agent", c.userAgent)

	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}

	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	if c.tokenManager != nil {
		token, tokenErr := c.tokenManager.GetToken(ctx)
		switch {
		case tokenErr == nil && token != "":
			httpReq.Header.Set("Authorization", "Bearer "+token)
		case tokenErr != nil && !errors.Is(tokenErr, auth.ErrNoToken):
			return nil, fmt.Errorf("getting API token: %w", tokenErr)
		}
	}

	if c.debug {
		c.logger.Debug("HTTP Request", map[string]interface{}{
			"method":       req.Method,
			"url":          fullURL,
			"operation_id": req.OperationID,
		})
	}

	httpResp, err := c.httpClient.Do(httpReq)

	attempts := int(state.attempts.Load())
	if attempts == 0 {
		attempts = 1
	}

	if err != nil {
		if httpResp != nil && httpResp.Body != nil {
			_ = httpResp.Body.Close()
		}

		return nil, c.transportError(ctx, req.Method, fullURL, attempts, err)
	}

	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, c.transportError(ctx, req.Method, fullURL, attempts, err)
	}

	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Headers:    httpResp.Header,
		Body:       respBody,
		Attempts:   attempts,
	}

	if c.debug {
		c.logger.Debug("HTTP Response", map[string]interface{}{
			"method":       req.Method,
			"url":          fullURL,
			"status_code":  resp.StatusCode,
			"attempts":     attempts,
			"operation_id": req.OperationID,
		})
	}

	classified := Classify(req.Method, fullURL, resp)
	if classified != nil {
		c.logger.Warn("request failed", map[string]interface{}{
			"method":       req.Method,
			"url":          fullURL,
			"status_code":  resp.StatusCode,
			"attempts":     attempts,
			"operation_id": req.OperationID,
		})

		return resp, classified
	}

	return resp, nil
}

// transportError returns the caller's context error unchanged so that
// cancellation is reported as context.Canceled. Interceptor errors are
// returned as the interceptor produced them.
func (c *Client) transportError(ctx context.Context, method, fullURL string, attempts int, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	var vetoed *interceptorError
	if errors.As(err, &vetoed) {
		c.logger.Warn("request rejected by interceptor", map[string]interface{}{
			"method": method,
			"url":    fullURL,
			"error":  vetoed.err.Error(),
		})

		return fmt.Errorf("%s %s: %w", method, fullURL, vetoed.err)
	}

	c.logger.Error("request failed", map[string]interface{}{
		"method":   method,
		"url":      fullURL,
		"attempts": attempts,
		"cause":    transportCause(err),
		"error":    err.Error(),
	})

	return &sanity.TransportError{
		Method:   method,
		URL:      fullURL,
		Timeout:  IsTimeout(err),
		Attempts: attempts,
		Err:      err,
	}
}

func encodeBody(req *Request) ([]byte, string, error) {
	switch body := req.Body.(type) {
	case nil:
		return nil, req.ContentType, nil
	case []byte:
		ct := req.ContentType
		if ct == "" {
			ct = constants.ContentTypeOctetStream
		}

		return body, ct, nil
	case io.Reader:
		data, err := io.ReadAll(body)
		if err != nil {
			return nil, "", fmt.Errorf("reading request body: %w", err)
		}

		ct := req.ContentType
		if ct == "" {
			ct = constants.ContentTypeOctetStream
		}

		return data, ct, nil
	default:
		var buf bytes.Buffer

		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)

		err := enc.Encode(body)
		if err != nil {
			return nil, "", fmt.Errorf("encoding request body: %w", err)
		}

		return bytes.TrimRight(buf.Bytes(), "\n"), constants.ContentTypeJSON, nil
	}
}

// Get sends a GET request.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodGet, Path: path, Query: query})
}

// Post sends a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body interface{}) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodPost, Path: path, Body: body})
}
