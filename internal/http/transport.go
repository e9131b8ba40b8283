package http

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/go-cleanhttp"

	"github.com/nc9/sanity-go/pkg/sanity"
)

// newTransport builds the pooled transport with one timeout per phase.
// Go has no separate write or pool-wait deadline on a transport, so those two
// are covered by the overall client timeout (see TimeoutConfig.Total).
func newTransport(timeouts sanity.TimeoutConfig, maxConns int, http2 bool) *http.Transport {
	t := cleanhttp.DefaultPooledTransport()
	t.DialContext = (&net.Dialer{
		Timeout:   timeouts.Connect,
		KeepAlive: 30 * time.Second,
	}).DialContext
	t.TLSHandshakeTimeout = timeouts.Connect
	t.ResponseHeaderTimeout = timeouts.Read

	if maxConns > 0 {
		t.MaxConnsPerHost = maxConns
		t.MaxIdleConnsPerHost = maxConns
		t.MaxIdleConns = maxConns
	}

	t.ForceAttemptHTTP2 = http2
	if !http2 {
		t.TLSNextProto = map[string]func(string, *tls.Conn) http.RoundTripper{}
	}

	return t
}

// interceptTransport runs the interceptor chains and records metrics around
// every attempt. An attempt stays in flight until its body is closed.
type interceptTransport struct {
	base    http.RoundTripper
	chains  []*sanity.InterceptorChain
	metrics *sanity.MetricsCollector
	logger  sanity.Logger
}

func (t *interceptTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	ctx := r.Context()

	ireq := &sanity.Request{
		Method:   r.Method,
		URL:      r.URL.String(),
		Path:     r.URL.Path,
		Headers:  r.Header.Clone(),
		Metadata: make(map[string]interface{}),
	}

	for _, chain := range t.chains {
		err := chain.ExecuteRequestInterceptors(ctx, ireq)
		if err != nil {
			return nil, &interceptorError{err: err}
		}
	}

	out := r.Clone(ctx)
	out.Header = ireq.Headers

	endpoint := r.Method + " " + r.URL.Path
	start := t.metrics.Start()

	resp, err := t.base.RoundTrip(out)
	if err != nil {
		t.finish(ctx, ireq, endpoint, start, &sanity.Response{Error: err})

		return nil, err
	}

	iresp := &sanity.Response{StatusCode: resp.StatusCode, Headers: resp.Header}
	resp.Body = &trackedBody{ReadCloser: resp.Body, onClose: func() {
		t.finish(ctx, ireq, endpoint, start, iresp)
	}}

	return resp, nil
}

func (t *interceptTransport) finish(ctx context.Context, req *sanity.Request, endpoint string, start time.Time, resp *sanity.Response) {
	resp.Duration = time.Since(start)
	t.metrics.Finish(endpoint, start, resp.StatusCode, resp.Error)

	for _, chain := range t.chains {
		err := chain.ExecuteResponseInterceptors(ctx, req, resp)
		if err != nil {
			t.logger.Warn("response interceptor failed", map[string]interface{}{
				"url":   req.URL,
				"error": err.Error(),
			})
		}
	}
}

// interceptorError marks an attempt vetoed by a request interceptor, such as
// an open circuit breaker. Nothing reached the network, so it is not retried.
type interceptorError struct {
	err error
}

func (e *interceptorError) Error() string { return e.err.Error() }

func (e *interceptorError) Unwrap() error { return e.err }

type trackedBody struct {
	io.ReadCloser

	once    sync.Once
	onClose func()
}

func (b *trackedBody) Close() error {
	err := b.ReadCloser.Close()
	b.once.Do(b.onClose)

	return err
}
