package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

// ErrCSRF marks a missing or mismatched anti-forgery token.
var ErrCSRF = errors.New("invalid or missing csrf token")

// TokenStore holds the per-session CSRF token.
type TokenStore interface {
	CSRFToken() string
	SetCSRFToken(token string)
}

// CSRFGuard issues and checks per-session anti-forgery tokens.
type CSRFGuard struct {
	entropy int
	rand    io.Reader
}

// NewCSRFGuard returns a guard issuing tokens with 32 bytes of entropy.
func NewCSRFGuard() *CSRFGuard {
	return &CSRFGuard{entropy: 32, rand: rand.Reader}
}

// Issue returns the session token, creating one when absent.
func (g *CSRFGuard) Issue(store TokenStore) (string, error) {
	if token := store.CSRFToken(); token != "" {
		return token, nil
	}

	buf := make([]byte, g.entropy)
	if _, err := io.ReadFull(g.rand, buf); err != nil {
		return "", fmt.Errorf("generate csrf token: %w", err)
	}
	token := base64.RawURLEncoding.EncodeToString(buf)
	store.SetCSRFToken(token)
	return token, nil
}

// Validate fails closed when either token is empty and otherwise compares in constant time.
func (g *CSRFGuard) Validate(store TokenStore, submitted string) bool {
	expected := store.CSRFToken()
	if expected == "" || submitted == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(submitted)) == 1
}

// Check is Validate returning ErrCSRF on failure.
func (g *CSRFGuard) Check(store TokenStore, submitted string) error {
	if !g.Validate(store, submitted) {
		return ErrCSRF
	}
	return nil
}
