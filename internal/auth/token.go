// Package auth supplies bearer tokens to the HTTP layer.
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync/atomic"
	"time"
)

// Static errors for err113 compliance.
var (
	ErrNoToken = errors.New("no API token configured")
)

// expiryBuffer treats tokens about to expire as already expired.
const expiryBuffer = 30 * time.Second

// AnonymousFingerprint identifies requests sent without a token.
const AnonymousFingerprint = "anon"

// Token is an API token. Sanity robot and personal tokens usually carry no expiry.
type Token struct {
	AccessToken string
	ExpiresAt   time.Time
}

// Valid reports whether the token can be sent at now.
func (t *Token) Valid(now time.Time) bool {
	if t == nil || t.AccessToken == "" {
		return false
	}

	return t.ExpiresAt.IsZero() || now.Add(expiryBuffer).Before(t.ExpiresAt)
}

// TokenManager supplies the bearer token for a request.
type TokenManager interface {
	// GetToken returns the token, or ErrNoToken when requests go unauthenticated.
	GetToken(ctx context.Context) (string, error)
}

// StaticTokenManager serves the configured token. SetToken swaps it
// atomically, so requests already in flight keep the token they started with.
type StaticTokenManager struct {
	current atomic.Pointer[Token]
	now     func() time.Time
}

// NewStaticTokenManager creates a manager for token. An empty token yields ErrNoToken.
func NewStaticTokenManager(token string) *StaticTokenManager {
	m := &StaticTokenManager{now: time.Now}
	m.SetToken(token, time.Time{})

	return m
}

// GetToken returns the current token.
func (m *StaticTokenManager) GetToken(_ context.Context) (string, error) {
	t := m.current.Load()
	if !t.Valid(m.now()) {
		return "", ErrNoToken
	}

	return t.AccessToken, nil
}

// SetToken replaces the token. A zero expiresAt never expires; an empty
// token switches the manager to unauthenticated requests.
func (m *StaticTokenManager) SetToken(token string, expiresAt time.Time) {
	if token == "" {
		m.current.Store(nil)

		return
	}

	m.current.Store(&Token{AccessToken: token, ExpiresAt: expiresAt})
}

// HasToken reports whether a usable token is configured.
func (m *StaticTokenManager) HasToken() bool {
	return m.current.Load().Valid(m.now())
}

// Fingerprint names the credential requests are currently sent with, without
// revealing it: AnonymousFingerprint, or a short sha256 prefix of the token.
func (m *StaticTokenManager) Fingerprint() string {
	t := m.current.Load()
	if !t.Valid(m.now()) {
		return AnonymousFingerprint
	}

	sum := sha256.Sum256([]byte(t.AccessToken))

	return hex.EncodeToString(sum[:8])
}
