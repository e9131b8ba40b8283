package sanity_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nc9/sanity-go/pkg/sanity"
)

func responseCore(status int) sanity.ResponseError {
	return sanity.ResponseError{
		StatusCode: status,
		Message:    "something happened",
		Method:     "GET",
		URL:        "https://abc123.api.sanity.io/v2025-02-19/data/query/production",
		Attempts:   1,
	}
}

//nolint:funlen // Test functions can be longer for comprehensive testing
func TestErrorTaxonomy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		err       error
		sentinel  error
		retryable bool
	}{
		{name: "configuration", err: &sanity.ConfigurationError{Field: "project_id", Reason: "is required"}, sentinel: sanity.ErrConfiguration},
		{name: "transport", err: &sanity.TransportError{Method: "GET", URL: "u", Err: errors.New("reset")}, sentinel: sanity.ErrTransport, retryable: true},
		{name: "auth", err: &sanity.AuthError{ResponseError: responseCore(401)}, sentinel: sanity.ErrAuth},
		{name: "rate limit", err: &sanity.RateLimitError{ResponseError: responseCore(429)}, sentinel: sanity.ErrRateLimited, retryable: true},
		{name: "validation", err: &sanity.ValidationError{ResponseError: responseCore(422)}, sentinel: sanity.ErrValidation},
		{name: "not found", err: &sanity.NotFoundError{ResponseError: responseCore(404)}, sentinel: sanity.ErrNotFound},
		{name: "client", err: &sanity.ClientError{ResponseError: responseCore(418)}, sentinel: sanity.ErrClient},
		{name: "server", err: &sanity.ServerError{ResponseError: responseCore(502)}, sentinel: sanity.ErrServer, retryable: true},
		{name: "parse", err: &sanity.ParseError{StatusCode: 200, Err: errors.New("eof")}, sentinel: sanity.ErrParse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			wrapped := fmt.Errorf("running query: %w", tt.err)

			require.ErrorIs(t, wrapped, tt.sentinel)
			assert.Equal(t, tt.retryable, sanity.IsRetryable(wrapped))
			assert.NotEmpty(t, tt.err.Error())
		})
	}
}

func TestNotFoundIsAlsoClientError(t *testing.T) {
	t.Parallel()

	err := &sanity.NotFoundError{ResponseError: responseCore(404)}
	assert.True(t, sanity.IsNotFound(err))
	assert.ErrorIs(t, err, sanity.ErrClient)
	assert.NotErrorIs(t, err, sanity.ErrServer)
}

func TestAsResponseError(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("wrapped: %w", &sanity.ServerError{ResponseError: responseCore(503)})

	core, ok := sanity.AsResponseError(err)
	require.True(t, ok)
	assert.Equal(t, 503, core.StatusCode)
	assert.Equal(t, "GET", core.Method)

	_, ok = sanity.AsResponseError(errors.New("plain"))
	assert.False(t, ok)
}

func TestRetryAfter(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("query: %w", &sanity.RateLimitError{ResponseError: responseCore(429), RetryAfter: 7 * time.Second})

	wait, ok := sanity.RetryAfter(err)
	require.True(t, ok)
	assert.Equal(t, 7*time.Second, wait)
	assert.True(t, sanity.IsRateLimited(err))
	assert.Contains(t, err.Error(), "retry after 7s")

	_, ok = sanity.RetryAfter(&sanity.RateLimitError{ResponseError: responseCore(429)})
	assert.False(t, ok)
}

func TestErrorMessages(t *testing.T) {
	t.Parallel()

	cfgErr := &sanity.ConfigurationError{Field: "token", Reason: "is required", Err: sanity.ErrTokenRequired}
	assert.Equal(t, "invalid configuration: token: is required", cfgErr.Error())
	assert.ErrorIs(t, cfgErr, sanity.ErrTokenRequired)

	transportErr := &sanity.TransportError{Method: "POST", URL: "u", Timeout: true, Attempts: 4, Err: errors.New("i/o timeout")}
	assert.Equal(t, "POST u timed out after 4 attempt(s): i/o timeout", transportErr.Error())

	local := &sanity.ValidationError{Err: sanity.ErrNoMutations}
	assert.Equal(t, "validation failed: at least one mutation is required", local.Error())

	remote := &sanity.ValidationError{ResponseError: sanity.ResponseError{StatusCode: 400, Message: "bad"}}
	assert.Equal(t, "HTTP 400: bad", remote.Error())

	auth := &sanity.AuthError{ResponseError: responseCore(401)}
	assert.Contains(t, auth.Error(), "HTTP 401: something happened")
	assert.True(t, sanity.IsAuth(auth))
}
