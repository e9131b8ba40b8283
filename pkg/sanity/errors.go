package sanity

import (
	"errors"
	"fmt"
	"time"
)

// Static errors for err113 compliance.
var (
	ErrConfiguration    = errors.New("invalid configuration")
	ErrTransport        = errors.New("transport failure")
	ErrAuth             = errors.New("authentication failed")
	ErrRateLimited      = errors.New("rate limit exceeded")
	ErrValidation       = errors.New("validation failed")
	ErrNotFound         = errors.New("resource not found")
	ErrClient           = errors.New("client error")
	ErrServer           = errors.New("server error")
	ErrParse            = errors.New("malformed response body")
	ErrNoMutations      = errors.New("at least one mutation is required")
	ErrTokenRequired    = errors.New("API token is required")
	ErrClientClosed     = errors.New("client is closed")
	ErrMissingResult    = errors.New("response has no result")
	ErrInvalidParamName = errors.New("invalid parameter name")
)

// ConfigurationError reports a missing or invalid configuration field.
type ConfigurationError struct {
	Field  string
	Reason string
	Err    error
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid configuration: %s", e.Reason)
	}

	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// Unwrap returns the underlying cause.
func (e *ConfigurationError) Unwrap() error { return e.Err }

// Is matches ErrConfiguration.
func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

// TransportError is a failure that produced no HTTP response: DNS, refused
// connections, resets, TLS failures, and phase timeouts.
type TransportError struct {
	Method   string
	URL      string
	Timeout  bool
	Attempts int
	Err      error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	kind := "failed"
	if e.Timeout {
		kind = "timed out"
	}

	return fmt.Sprintf("%s %s %s after %d attempt(s): %v", e.Method, e.URL, kind, e.Attempts, e.Err)
}

// Unwrap returns the underlying cause.
func (e *TransportError) Unwrap() error { return e.Err }

// Is matches ErrTransport.
func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// ResponseError is the core shared by every error derived from a non-2xx response.
type ResponseError struct {
	StatusCode int
	// Message is the description extracted from the Sanity error body.
	Message string
	// Type is the Sanity error type, such as "validationError", when present.
	Type     string
	Body     []byte
	Method   string
	URL      string
	Attempts int
}

// Error implements the error interface.
func (e *ResponseError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "no error description"
	}

	if e.Method == "" {
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, msg)
	}

	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.URL, e.StatusCode, msg)
}

func (e *ResponseError) response() *ResponseError { return e }

type responder interface {
	response() *ResponseError
}

// AsResponseError returns the response core of any typed response error in err's chain.
func AsResponseError(err error) (*ResponseError, bool) {
	var r responder
	if errors.As(err, &r) {
		return r.response(), true
	}

	return nil, false
}

// AuthError is returned for 401 and 403 responses.
type AuthError struct {
	ResponseError
}

// Is matches ErrAuth.
func (e *AuthError) Is(target error) bool { return target == ErrAuth }

// RateLimitError is returned for 429 responses once retries are exhausted.
type RateLimitError struct {
	ResponseError
	// RetryAfter is the server-advised wait, zero when absent.
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s (retry after %s)", e.ResponseError.Error(), e.RetryAfter)
	}

	return e.ResponseError.Error()
}

// Is matches ErrRateLimited.
func (e *RateLimitError) Is(target error) bool { return target == ErrRateLimited }

// ValidationError is returned for 400, 409 and 422 responses, and for
// requests rejected locally before any network call (StatusCode 0, Err set).
type ValidationError struct {
	ResponseError
	Err error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.StatusCode == 0 && e.Err != nil {
		return fmt.Sprintf("validation failed: %v", e.Err)
	}

	return e.ResponseError.Error()
}

// Unwrap returns the local cause, if any.
func (e *ValidationError) Unwrap() error { return e.Err }

// Is matches ErrValidation.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NotFoundError is returned for 404 responses. It also matches ErrClient.
type NotFoundError struct {
	ResponseError
}

// Is matches ErrNotFound and ErrClient.
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound || target == ErrClient }

// ClientError is returned for any other 4xx response.
type ClientError struct {
	ResponseError
}

// Is matches ErrClient.
func (e *ClientError) Is(target error) bool { return target == ErrClient }

// ServerError is returned for 5xx responses once retries are exhausted.
type ServerError struct {
	ResponseError
}

// Is matches ErrServer.
func (e *ServerError) Is(target error) bool { return target == ErrServer }

// ParseError is returned when a 2xx body cannot be decoded.
type ParseError struct {
	StatusCode int
	Body       []byte
	Err        error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("decoding HTTP %d response: %v", e.StatusCode, e.Err)
}

// Unwrap returns the decoder error.
func (e *ParseError) Unwrap() error { return e.Err }

// Is matches ErrParse.
func (e *ParseError) Is(target error) bool { return target == ErrParse }

// IsAuth checks if the error is an authentication or authorization failure.
func IsAuth(err error) bool { return errors.Is(err, ErrAuth) }

// IsRateLimited checks if the error is a rate limit rejection.
func IsRateLimited(err error) bool { return errors.Is(err, ErrRateLimited) }

// IsNotFound checks if the error is a not found error.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsValidation checks if the error is a rejected request.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsRetryable reports whether repeating the call later may succeed.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransport) || errors.Is(err, ErrRateLimited) || errors.Is(err, ErrServer)
}

// RetryAfter returns the server-advised wait carried by a RateLimitError.
func RetryAfter(err error) (time.Duration, bool) {
	var rl *RateLimitError
	if errors.As(err, &rl) && rl.RetryAfter > 0 {
		return rl.RetryAfter, true
	}

	return 0, false
}
