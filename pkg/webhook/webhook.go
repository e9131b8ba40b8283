// Package webhook verifies and decodes Sanity webhook deliveries.
//
// A delivery carries a sanity-webhook-signature header of the form
//
//	t=<unix milliseconds>,v1=<signature>
//
// where the signature is the unpadded base64url HMAC-SHA256 of
// "<t>.<raw body>" keyed with the webhook secret.
package webhook

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nc9/sanity-go/internal/constants"
)

// Static errors for err113 compliance.
var (
	ErrMissingSignature   = errors.New("missing webhook signature")
	ErrMalformedSignature = errors.New("malformed webhook signature header")
	ErrTimestampTooOld    = errors.New("webhook timestamp predates signing")
	ErrTimestampSkew      = errors.New("webhook timestamp outside tolerance")
	ErrSignatureMismatch  = errors.New("webhook signature mismatch")
	ErrEmptySecret        = errors.New("webhook secret is empty")
	ErrEmptyPayload       = errors.New("webhook payload is empty")
)

// SignatureHeader is the header carrying the signature.
const SignatureHeader = constants.WebhookSignatureHeader

// Signature is a parsed signature header.
type Signature struct {
	// Timestamp is the raw t value in Unix milliseconds.
	Timestamp int64
	// Signatures holds every v1 value; any one of them may match.
	Signatures []string
}

// Time returns the signing time.
func (s *Signature) Time() time.Time {
	return time.UnixMilli(s.Timestamp)
}

// ParseSignatureHeader parses "t=<ms>,v1=<sig>[,v1=<sig>...]".
func ParseSignatureHeader(header string) (*Signature, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil, ErrMissingSignature
	}

	sig := &Signature{}
	seenTimestamp := false

	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrMalformedSignature, part)
		}

		switch key {
		case "t":
			ts, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: timestamp: %w", ErrMalformedSignature, err)
			}

			sig.Timestamp = ts
			seenTimestamp = true
		case "v1":
			if value != "" {
				sig.Signatures = append(sig.Signatures, value)
			}
		}
	}

	if !seenTimestamp || len(sig.Signatures) == 0 {
		return nil, ErrMalformedSignature
	}

	return sig, nil
}

// Sign returns the signature of payload at timestamp (Unix milliseconds).
func Sign(payload []byte, secret string, timestamp int64) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)

	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// EncodeSignatureHeader returns the header value for payload signed at timestamp.
func EncodeSignatureHeader(payload []byte, secret string, timestamp int64) string {
	return "t=" + strconv.FormatInt(timestamp, 10) + ",v1=" + Sign(payload, secret, timestamp)
}

type options struct {
	tolerance time.Duration
	now       func() time.Time
}

// Option configures verification.
type Option func(*options)

// WithTolerance rejects signatures older or newer than d. Zero disables the check.
func WithTolerance(d time.Duration) Option {
	return func(o *options) {
		o.tolerance = d
	}
}

// WithClock sets the clock used for the tolerance check.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// Verify checks header against payload and returns why it does not match.
func Verify(payload []byte, header, secret string, opts ...Option) error {
	o := &options{now: time.Now}
	for _, opt := range opts {
		opt(o)
	}

	if secret == "" {
		return ErrEmptySecret
	}

	sig, err := ParseSignatureHeader(header)
	if err != nil {
		return err
	}

	if sig.Timestamp < constants.WebhookMinimumTimestamp {
		return ErrTimestampTooOld
	}

	if o.tolerance > 0 {
		skew := o.now().Sub(sig.Time())
		if skew < 0 {
			skew = -skew
		}

		if skew > o.tolerance {
			return fmt.Errorf("%w: %s", ErrTimestampSkew, skew)
		}
	}

	expected := []byte(Sign(payload, secret, sig.Timestamp))

	for _, candidate := range sig.Signatures {
		if hmac.Equal(expected, []byte(candidate)) {
			return nil
		}
	}

	return ErrSignatureMismatch
}

// IsValidSignature reports whether header is a valid signature of payload.
func IsValidSignature(payload []byte, header, secret string, opts ...Option) bool {
	return Verify(payload, header, secret, opts...) == nil
}

// VerifyRequest verifies r's signature and returns its body. The body is
// restored on r so later handlers can read it again.
func VerifyRequest(r *http.Request, secret string, opts ...Option) ([]byte, error) {
	if r.Body == nil {
		return nil, ErrEmptyPayload
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("reading webhook body: %w", err)
	}

	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(body))

	err = Verify(body, r.Header.Get(SignatureHeader), secret, opts...)
	if err != nil {
		return nil, err
	}

	return body, nil
}

// ParsePayload decodes a webhook body into v.
func ParsePayload(body []byte, v any) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return ErrEmptyPayload
	}

	err := json.Unmarshal(body, v)
	if err != nil {
		return fmt.Errorf("decoding webhook payload: %w", err)
	}

	return nil
}
