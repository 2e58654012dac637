package library

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// Storage keys for the two halves of a session.
const (
	tokenKey   = "jwt-token"
	profileKey = "user-info"
)

// SessionStore persists the token and the cached profile as one unit.
// A half-written or unreadable pair is reported as "no session".
type SessionStore struct {
	mu     sync.Mutex
	kv     KeyValueStore
	sealer *Sealer
	log    *Logger
}

// NewSessionStore wraps kv. sealer may be nil, in which case the token is stored as-is.
func NewSessionStore(kv KeyValueStore, sealer *Sealer, log *Logger) *SessionStore {
	if log == nil {
		log = NopLogger()
	}
	return &SessionStore{kv: kv, sealer: sealer, log: log}
}

// Save writes the token and profile together.
func (s *SessionStore) Save(sess Session) error {
	if sess.Token == "" {
		return validationf("cannot save a session without a token")
	}
	profile, err := json.Marshal(sess.User)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	token := sess.Token
	if s.sealer != nil {
		if token, err = s.sealer.Seal(token); err != nil {
			return fmt.Errorf("seal token: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kv.SetAll(map[string]string{tokenKey: token, profileKey: string(profile)})
}

// Load returns the saved session, or nil when there is none or it cannot be read.
func (s *SessionStore) Load() (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, ok, err := s.kv.Get(tokenKey)
	if err != nil {
		return nil, fmt.Errorf("read token: %w", err)
	}
	if !ok || token == "" {
		return nil, nil
	}
	raw, ok, err := s.kv.Get(profileKey)
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}
	if !ok {
		return nil, nil
	}

	var profile Profile
	if err := json.Unmarshal([]byte(raw), &profile); err != nil {
		s.log.Warnf("discarding unreadable profile: %v", err)
		return nil, nil
	}
	if s.sealer != nil {
		if token, err = s.sealer.Open(token); err != nil {
			s.log.Warnf("discarding unreadable token: %v", err)
			return nil, nil
		}
	}
	return &Session{Token: token, User: profile}, nil
}

// Current is Load for callers that need a session: absence is ErrUnauthenticated.
func (s *SessionStore) Current() (*Session, error) {
	sess, err := s.Load()
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrUnauthenticated
	}
	return sess, nil
}

// Token returns the bearer token, or "" when logged out.
func (s *SessionStore) Token() string {
	sess, err := s.Load()
	if err != nil || sess == nil {
		return ""
	}
	return sess.Token
}

// IsLoggedIn reports whether a complete session is stored.
func (s *SessionStore) IsLoggedIn() bool {
	sess, err := s.Load()
	return err == nil && sess != nil
}

// Clear removes both entries. It is safe to call repeatedly.
func (s *SessionStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kv.RemoveAll(tokenKey, profileKey)
}

// TokenInfo is what the client can read from a bearer token without the
// server's signing key.
type TokenInfo struct {
	Subject   string
	Role      string
	ExpiresAt time.Time
}

// Expired reports whether the token carries an expiry that has passed.
func (ti TokenInfo) Expired(now time.Time) bool {
	return !ti.ExpiresAt.IsZero() && ti.ExpiresAt.Before(now)
}

// InspectToken decodes the claims of a JWT without verifying its signature.
// The result is informational only; the backend remains the authority.
func InspectToken(token string) (TokenInfo, error) {
	type claims struct {
		Role string `json:"role"`
		jwt.RegisteredClaims
	}
	var c claims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &c); err != nil {
		return TokenInfo{}, fmt.Errorf("decode token: %w", err)
	}
	info := TokenInfo{Subject: c.Subject, Role: c.Role}
	if c.ExpiresAt != nil {
		info.ExpiresAt = c.ExpiresAt.Time
	}
	return info, nil
}
