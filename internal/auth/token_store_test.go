package auth

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStoredToken(clock *fakeClock, access, refresh, clientID string) *Token {
	now := clock.Now()
	return &Token{
		AccessToken:      access,
		RefreshToken:     refresh,
		Subject:          "sub",
		ClientID:         clientID,
		IssuedAt:         now,
		ExpiresAt:        now.Add(time.Hour),
		RefreshExpiresAt: now.Add(24 * time.Hour),
	}
}

func TestTokenStore_StoreAndLookup(t *testing.T) {
	clock := newFakeClock()
	ts := NewTokenStore(time.Minute, clock.Now)
	defer ts.Stop()

	tok := newStoredToken(clock, "a1", "r1", "c")
	ts.Store(tok)

	got, ok := ts.Lookup("a1")
	require.True(t, ok)
	assert.Same(t, tok, got)

	got, ok = ts.LookupRefresh("r1")
	require.True(t, ok)
	assert.Same(t, tok, got)

	_, ok = ts.Lookup("r1")
	assert.False(t, ok, "refresh tokens are not bearer credentials")
}

func TestTokenStore_Rotate(t *testing.T) {
	clock := newFakeClock()
	ts := NewTokenStore(time.Minute, clock.Now)
	defer ts.Stop()

	ts.Store(newStoredToken(clock, "a1", "r1", "c"))
	require.NoError(t, ts.Rotate("r1", newStoredToken(clock, "a2", "r2", "c")))

	_, ok := ts.Lookup("a1")
	assert.False(t, ok)
	_, ok = ts.Lookup("a2")
	assert.True(t, ok)

	assert.ErrorIs(t, ts.Rotate("r1", newStoredToken(clock, "a3", "r3", "c")), ErrRefreshTokenUsed)
	assert.Equal(t, 1, ts.Count())
}

func TestTokenStore_Revoke(t *testing.T) {
	clock := newFakeClock()
	ts := NewTokenStore(time.Minute, clock.Now)
	defer ts.Stop()

	ts.Store(newStoredToken(clock, "a1", "r1", "owner"))

	assert.False(t, ts.Revoke("a1", "intruder"))
	assert.False(t, ts.Revoke("unknown", "owner"))
	assert.True(t, ts.Revoke("r1", "owner"))

	_, ok := ts.Lookup("a1")
	assert.False(t, ok)
	_, ok = ts.LookupRefresh("r1")
	assert.False(t, ok)
}

func TestTokenStore_Cleanup(t *testing.T) {
	clock := newFakeClock()
	ts := NewTokenStore(time.Minute, clock.Now)
	defer ts.Stop()

	ts.Store(newStoredToken(clock, "a1", "r1", "c"))
	ts.Store(newStoredToken(clock, "a2", "", "c"))

	clock.Advance(2 * time.Hour)
	ts.cleanup()

	_, ok := ts.Lookup("a1")
	assert.True(t, ok, "kept while its refresh token is live")
	_, ok = ts.Lookup("a2")
	assert.False(t, ok, "no refresh token, access expired")

	clock.Advance(24 * time.Hour)
	ts.cleanup()
	assert.Equal(t, 0, ts.Count())
}

func TestTokenStore_ConcurrentAccess(t *testing.T) {
	clock := newFakeClock()
	ts := NewTokenStore(time.Minute, clock.Now)
	defer ts.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			ts.Store(newStoredToken(clock, fmt.Sprintf("a%d", i), fmt.Sprintf("r%d", i), "c"))
		}(i)
		go func(i int) {
			defer wg.Done()
			ts.Lookup(fmt.Sprintf("a%d", i))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, ts.Count())
}
