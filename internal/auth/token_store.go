package auth

import (
	"errors"
	"sync"
	"time"

	"toolgate/pkg/logging"
)

// ErrRefreshTokenUsed is returned by Rotate when the refresh token was
// already rotated or revoked.
var ErrRefreshTokenUsed = errors.New("refresh token already used")

// TokenStore provides thread-safe in-memory storage for issued tokens.
// Tokens are indexed by access token and by refresh token. Many readers
// validate concurrently; issuance, rotation and revocation take the write
// lock.
type TokenStore struct {
	mu      sync.RWMutex
	access  map[string]*Token
	refresh map[string]*Token

	now             func() time.Time
	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	stopOnce        sync.Once
}

// NewTokenStore creates a new in-memory token store.
// It starts a background goroutine for periodic cleanup of expired tokens.
func NewTokenStore(cleanupInterval time.Duration, now func() time.Time) *TokenStore {
	if now == nil {
		now = time.Now
	}
	if cleanupInterval <= 0 {
		cleanupInterval = 5 * time.Minute
	}
	ts := &TokenStore{
		access:          make(map[string]*Token),
		refresh:         make(map[string]*Token),
		now:             now,
		cleanupInterval: cleanupInterval,
		stopCleanup:     make(chan struct{}),
	}

	go ts.cleanupLoop()

	return ts
}

// Store saves a newly issued token.
func (ts *TokenStore) Store(token *Token) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	ts.access[token.AccessToken] = token
	if token.RefreshToken != "" {
		ts.refresh[token.RefreshToken] = token
	}
	logging.Debug("Auth", "Stored token for subject=%s client=%s (expires: %v)",
		token.Subject, token.ClientID, token.ExpiresAt)
}

// Lookup returns the token for an access token, expired or not, so callers
// can tell an expired token from an unknown one.
func (ts *TokenStore) Lookup(accessToken string) (*Token, bool) {
	ts.mu.RLock()
	defer ts.mu.RUnlock()

	token, ok := ts.access[accessToken]
	return token, ok
}

// LookupRefresh returns the token that owns refreshToken.
func (ts *TokenStore) LookupRefresh(refreshToken string) (*Token, bool) {
	ts.mu.RLock()
	defer ts.mu.RUnlock()

	token, ok := ts.refresh[refreshToken]
	return token, ok
}

// Rotate atomically retires the token owning oldRefresh and stores next.
func (ts *TokenStore) Rotate(oldRefresh string, next *Token) error {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	old, ok := ts.refresh[oldRefresh]
	if !ok {
		return ErrRefreshTokenUsed
	}
	delete(ts.refresh, oldRefresh)
	delete(ts.access, old.AccessToken)

	ts.access[next.AccessToken] = next
	if next.RefreshToken != "" {
		ts.refresh[next.RefreshToken] = next
	}
	logging.Debug("Auth", "Rotated token for subject=%s client=%s", next.Subject, next.ClientID)
	return nil
}

// Revoke removes the token pair that value (access or refresh token)
// belongs to, if clientID owns it. It reports whether anything was removed.
func (ts *TokenStore) Revoke(value, clientID string) bool {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	token, ok := ts.access[value]
	if !ok {
		token, ok = ts.refresh[value]
	}
	if !ok || token.ClientID != clientID {
		return false
	}

	delete(ts.access, token.AccessToken)
	if token.RefreshToken != "" {
		delete(ts.refresh, token.RefreshToken)
	}
	logging.Debug("Auth", "Revoked token for subject=%s client=%s", token.Subject, token.ClientID)
	return true
}

// Count returns the number of live token pairs.
func (ts *TokenStore) Count() int {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return len(ts.access)
}

// Stop stops the background cleanup goroutine.
func (ts *TokenStore) Stop() {
	ts.stopOnce.Do(func() { close(ts.stopCleanup) })
}

func (ts *TokenStore) cleanupLoop() {
	ticker := time.NewTicker(ts.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ts.cleanup()
		case <-ts.stopCleanup:
			return
		}
	}
}

// cleanup removes token pairs whose access and refresh tokens have both
// expired. Expired access tokens with a live refresh token are kept so
// Validate can keep reporting them as expired rather than unknown.
func (ts *TokenStore) cleanup() {
	now := ts.now()

	ts.mu.Lock()
	defer ts.mu.Unlock()

	count := 0
	for key, token := range ts.access {
		if token.Expired(now) && token.RefreshExpired(now) {
			delete(ts.access, key)
			if token.RefreshToken != "" {
				delete(ts.refresh, token.RefreshToken)
			}
			count++
		}
	}

	if count > 0 {
		logging.Debug("Auth", "Cleaned up %d expired tokens", count)
	}
}
