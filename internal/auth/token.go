// Package auth manages the cached login credentials and the login redirect.
package auth

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/P4X666/small-ledger/internal/log"
)

// Storage keys for the persisted credentials.
const (
	keyToken    = "token"
	keyUserInfo = "userInfo"
)

// KV is the persistent key/value store backing the token cache.
type KV interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}

// UserInfo is the cached profile of the logged-in account.
type UserInfo struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// TokenStore caches the bearer token in memory with read-through to a
// persistent KV store, so the token survives restarts without a storage
// round-trip on every request.
type TokenStore struct {
	mu     sync.RWMutex
	cached string
	loaded bool
	kv     KV
	logger *log.Logger
}

// NewTokenStore creates a token store over the given KV backend.
func NewTokenStore(kv KV, logger *log.Logger) *TokenStore {
	return &TokenStore{kv: kv, logger: logger.WithComponent(log.ComponentAuth)}
}

// Token returns the cached bearer token, loading it from the KV store on
// first access. Returns "" when no token is stored.
func (s *TokenStore) Token() string {
	s.mu.RLock()
	if s.loaded {
		token := s.cached
		s.mu.RUnlock()
		return token
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return s.cached
	}
	token, err := s.kv.Get(keyToken)
	if err != nil {
		s.logger.Warn("failed to load token from storage", log.FieldError, err)
		token = ""
	}
	s.cached = token
	s.loaded = true
	return token
}

// Set stores a new token. A token identical to the cached one is skipped so
// repeated logins do not touch storage.
func (s *TokenStore) Set(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded && s.cached == token {
		return nil
	}
	if err := s.kv.Set(keyToken, token); err != nil {
		return err
	}
	s.cached = token
	s.loaded = true
	return nil
}

// Clear purges the token and the cached user profile from memory and storage.
func (s *TokenStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cached = ""
	s.loaded = true
	if err := s.kv.Delete(keyToken); err != nil {
		s.logger.Warn("failed to purge token", log.FieldError, err)
	}
	if err := s.kv.Delete(keyUserInfo); err != nil {
		s.logger.Warn("failed to purge user info", log.FieldError, err)
	}
}

// SetUser persists the logged-in account profile.
func (s *TokenStore) SetUser(user UserInfo) error {
	payload, err := json.Marshal(user)
	if err != nil {
		return err
	}
	return s.kv.Set(keyUserInfo, string(payload))
}

// User returns the persisted account profile, or nil when none is stored.
func (s *TokenStore) User() *UserInfo {
	raw, err := s.kv.Get(keyUserInfo)
	if err != nil || raw == "" {
		return nil
	}
	var user UserInfo
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		s.logger.Warn("corrupt user info in storage", log.FieldError, err)
		return nil
	}
	return &user
}

// LoggedIn reports whether a non-empty, unexpired token is cached.
func (s *TokenStore) LoggedIn() bool {
	token := s.Token()
	return token != "" && !IsTokenExpired(token)
}

var errNoExpiry = errors.New("token has no expiry claim")

// DecodeExpiry extracts the expiry time from a JWT without verifying the
// signature. Signature verification belongs to the server; the client only
// needs the expiry to decide whether a request is worth sending.
func DecodeExpiry(token string) (time.Time, error) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, err
	}
	expiry, err := parsed.Claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, err
	}
	if expiry == nil {
		return time.Time{}, errNoExpiry
	}
	return expiry.Time, nil
}

// IsTokenExpired reports whether the token should be treated as expired.
// Malformed tokens and tokens without an expiry claim count as expired, so a
// bad token forces a fresh login instead of a guaranteed 401.
func IsTokenExpired(token string) bool {
	if token == "" {
		return true
	}
	expiry, err := DecodeExpiry(token)
	if err != nil {
		return true
	}
	return !time.Now().Before(expiry)
}
