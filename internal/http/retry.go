package http

import (
	"context"
	"errors"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// Backoff returns the delay before retry number retry (0-based):
// factor * 2^retry, capped at maxWait.
func Backoff(factor, maxWait time.Duration, retry int) time.Duration {
	if factor <= 0 {
		return 0
	}

	mult := math.Pow(2, float64(retry))
	wait := float64(factor) * mult

	if maxWait > 0 && (wait > float64(maxWait) || math.IsInf(wait, 0)) {
		return maxWait
	}

	if wait > float64(math.MaxInt64) {
		return time.Duration(math.MaxInt64)
	}

	return time.Duration(wait)
}

// ParseRetryAfter parses a Retry-After value given as delay-seconds or an HTTP date.
func ParseRetryAfter(value string, now time.Time) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}

	if secs, err := strconv.ParseFloat(value, 64); err == nil {
		if secs < 0 {
			return 0, false
		}

		return time.Duration(secs * float64(time.Second)), true
	}

	at, err := http.ParseTime(value)
	if err != nil {
		return 0, false
	}

	d := at.Sub(now)
	if d < 0 {
		d = 0
	}

	return d, true
}

// checkRetry decides whether an attempt is repeated. Cancellation is never retried.
func (c *Client) checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	if err != nil {
		var vetoed *interceptorError
		if errors.As(err, &vetoed) {
			return false, nil
		}

		if IsTimeout(err) {
			return !c.retry.DisableTimeoutRetry, nil
		}

		// TLS, scheme, and redirect failures are permanent.
		retryable, _ := retryablehttp.DefaultRetryPolicy(ctx, nil, err)
		if !retryable {
			return false, nil
		}

		return !c.retry.DisableConnectionRetry, nil
	}

	return c.retry.ShouldRetryStatus(resp.StatusCode), nil
}

// backoff honours Retry-After on 429 and 503, otherwise grows exponentially.
func (c *Client) backoff(_, _ time.Duration, retry int, resp *http.Response) time.Duration {
	if resp != nil && (resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable) {
		if d, ok := ParseRetryAfter(resp.Header.Get("Retry-After"), time.Now()); ok {
			return d
		}
	}

	return Backoff(c.retry.BackoffFactor, c.retry.MaxBackoff, retry)
}

// IsTimeout reports whether err is a phase or client timeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	msg := strings.ToLower(err.Error())

	return strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded")
}

// IsDNSError reports whether err is a name resolution failure.
func IsDNSError(err error) bool {
	var dnsErr *net.DNSError

	return errors.As(err, &dnsErr)
}

// IsConnectionRefused reports whether the server refused the connection.
func IsConnectionRefused(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}

	return err != nil && strings.Contains(strings.ToLower(err.Error()), "connection refused")
}

// transportCause names the failure class for logs.
func transportCause(err error) string {
	switch {
	case IsTimeout(err):
		return "timeout"
	case IsDNSError(err):
		return "dns"
	case IsConnectionRefused(err):
		return "connection_refused"
	default:
		return "network"
	}
}
