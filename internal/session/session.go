// Package session keeps per-browser state in a signed cookie: the CSRF token, flash
// messages, the sealed catalog credential and the catalog call budget.
package session

import (
	"crypto/sha256"
	"encoding/gob"
	"net/http"
	"time"

	"github.com/gorilla/sessions"
)

// CookieName is the session cookie.
const CookieName = "benford_session"

// CredentialTTL bounds how long a stored catalog credential stays usable.
const CredentialTTL = time.Hour

const (
	keyCSRF       = "csrf_token"
	keyCredential = "catalog_credential"
	keyCalls      = "catalog_calls"
)

// Flash categories.
const (
	FlashInfo    = "info"
	FlashSuccess = "success"
	FlashWarning = "warning"
	FlashError   = "error"
)

// Flash is a one-shot message shown on the next page load.
type Flash struct {
	Category string `json:"category"`
	Message  string `json:"message"`
}

// StoredCredential is a sealed catalog credential with its expiry.
type StoredCredential struct {
	Token     string
	ExpiresAt time.Time
}

// Expired reports whether the credential is past its expiry.
func (c StoredCredential) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

func init() {
	gob.Register(Flash{})
	gob.Register(StoredCredential{})
}

// NewCookieStore returns a signed cookie store. Secure cookies are requested in production.
func NewCookieStore(secret string, secure bool) *sessions.CookieStore {
	hashKey := sha256.Sum256([]byte(secret))
	store := sessions.NewCookieStore(hashKey[:])
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}

// Session wraps one request's gorilla session.
type Session struct {
	raw *sessions.Session
}

// Load returns the request's session. An undecodable cookie yields a fresh session.
func Load(store sessions.Store, r *http.Request) *Session {
	raw, err := store.Get(r, CookieName)
	if err != nil || raw == nil {
		raw, _ = store.New(r, CookieName)
	}
	if raw == nil {
		raw = sessions.NewSession(store, CookieName)
	}
	return &Session{raw: raw}
}

// Save writes the session cookie.
func (s *Session) Save(r *http.Request, w http.ResponseWriter) error {
	return s.raw.Save(r, w)
}

// CSRFToken returns the stored token or "".
func (s *Session) CSRFToken() string {
	v, _ := s.raw.Values[keyCSRF].(string)
	return v
}

// SetCSRFToken stores token.
func (s *Session) SetCSRFToken(token string) {
	s.raw.Values[keyCSRF] = token
}

// AddFlash queues a message for the next page load.
func (s *Session) AddFlash(category, message string) {
	s.raw.AddFlash(Flash{Category: category, Message: message})
}

// Flashes drains queued messages.
func (s *Session) Flashes() []Flash {
	raw := s.raw.Flashes()
	out := make([]Flash, 0, len(raw))
	for _, v := range raw {
		if f, ok := v.(Flash); ok {
			out = append(out, f)
		}
	}
	return out
}

// Credential returns the stored credential if one is present and unexpired. An expired
// credential is removed.
func (s *Session) Credential(now time.Time) (StoredCredential, bool) {
	c, ok := s.raw.Values[keyCredential].(StoredCredential)
	if !ok {
		return StoredCredential{}, false
	}
	if c.Expired(now) {
		delete(s.raw.Values, keyCredential)
		return StoredCredential{}, false
	}
	return c, true
}

// SetCredential stores a sealed credential valid for CredentialTTL from now.
func (s *Session) SetCredential(token string, now time.Time) {
	s.raw.Values[keyCredential] = StoredCredential{Token: token, ExpiresAt: now.Add(CredentialTTL)}
}

// ClearCredential removes the credential and the call record.
func (s *Session) ClearCredential() {
	delete(s.raw.Values, keyCredential)
	delete(s.raw.Values, keyCalls)
}

// Budget restores the catalog call budget.
func (s *Session) Budget(limit int, window time.Duration) *CallBudget {
	stamps, _ := s.raw.Values[keyCalls].([]int64)
	return NewCallBudget(limit, window, stamps)
}

// SetBudget persists b.
func (s *Session) SetBudget(b *CallBudget) {
	s.raw.Values[keyCalls] = b.stamps()
}
