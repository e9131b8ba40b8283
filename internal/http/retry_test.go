package http_test

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"

	sanityhttp "github.com/nc9/sanity-go/internal/http"
)

func TestBackoff(t *testing.T) {
	t.Parallel()

	factor := 500 * time.Millisecond
	maxWait := 30 * time.Second

	assert.Equal(t, 500*time.Millisecond, sanityhttp.Backoff(factor, maxWait, 0))
	assert.Equal(t, time.Second, sanityhttp.Backoff(factor, maxWait, 1))
	assert.Equal(t, 2*time.Second, sanityhttp.Backoff(factor, maxWait, 2))
	assert.Equal(t, maxWait, sanityhttp.Backoff(factor, maxWait, 10))
	assert.Equal(t, maxWait, sanityhttp.Backoff(factor, maxWait, 5000))
	assert.Equal(t, time.Duration(0), sanityhttp.Backoff(0, maxWait, 3))
}

// Property-based test: delays double until the cap and never exceed it
func TestBackoff_PropertyCappedDoubling(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("backoff is factor*2^n capped at max", prop.ForAll(
		func(factorMs int, maxMs int, retry int) bool {
			factor := time.Duration(factorMs) * time.Millisecond
			maxWait := time.Duration(maxMs) * time.Millisecond

			got := sanityhttp.Backoff(factor, maxWait, retry)
			if got > maxWait {
				return false
			}

			next := sanityhttp.Backoff(factor, maxWait, retry+1)
			if got < maxWait && next != maxWait && next != 2*got {
				return false
			}

			return next >= got
		},
		gen.IntRange(1, 2000),
		gen.IntRange(1, 60000),
		gen.IntRange(0, 64),
	))

	properties.TestingRun(t)
}

func TestParseRetryAfter(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 2, 19, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		value string
		want  time.Duration
		ok    bool
	}{
		{"empty", "", 0, false},
		{"seconds", "3", 3 * time.Second, true},
		{"fractional seconds", "1.5", 1500 * time.Millisecond, true},
		{"negative", "-1", 0, false},
		{"http date", now.Add(10 * time.Second).Format(http.TimeFormat), 10 * time.Second, true},
		{"past date", now.Add(-time.Minute).Format(http.TimeFormat), 0, true},
		{"garbage", "soon", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, ok := sanityhttp.ParseRetryAfter(tt.value, now)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestErrorDetection(t *testing.T) {
	t.Parallel()

	assert.True(t, sanityhttp.IsTimeout(timeoutErr{}))
	assert.True(t, sanityhttp.IsTimeout(fmt.Errorf("wrapped: %w", timeoutErr{})))
	assert.False(t, sanityhttp.IsTimeout(errors.New("boom")))
	assert.False(t, sanityhttp.IsTimeout(nil))

	assert.True(t, sanityhttp.IsDNSError(&net.DNSError{Err: "no such host", Name: "x.invalid"}))
	assert.False(t, sanityhttp.IsDNSError(errors.New("boom")))

	assert.True(t, sanityhttp.IsConnectionRefused(errors.New("dial tcp 127.0.0.1:1: connect: connection refused")))
	assert.False(t, sanityhttp.IsConnectionRefused(nil))
}
