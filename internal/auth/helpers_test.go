package auth

import (
	"context"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"toolgate/internal/config"
)

const (
	testClientID     = "client-1"
	testClientSecret = "secret-1"
	testRedirectURI  = "http://localhost:3000/callback"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeUpstream stands in for Google in Provider tests.
type fakeUpstream struct {
	mu           sync.Mutex
	exchangeErr  error
	userInfoErr  error
	userInfo     UserInfo
	exchanges    int
	lastCode     string
	lastVerifier string
}

func newFakeUpstream() *fakeUpstream {
	return &fakeUpstream{userInfo: UserInfo{Subject: "1234567890", Email: "user@example.com", Name: "Test User"}}
}

func (f *fakeUpstream) AuthCodeURL(state, verifier string) string {
	return "https://accounts.example.com/o/oauth2/auth?" + url.Values{
		"state":          {state},
		"code_challenge": {oauth2.S256ChallengeFromVerifier(verifier)},
	}.Encode()
}

func (f *fakeUpstream) Exchange(ctx context.Context, code, verifier string) (*oauth2.Token, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exchanges++
	f.lastCode = code
	f.lastVerifier = verifier
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}
	return &oauth2.Token{AccessToken: "upstream-" + code, TokenType: "Bearer"}, nil
}

func (f *fakeUpstream) UserInfo(ctx context.Context, token *oauth2.Token) (*UserInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.userInfoErr != nil {
		return nil, f.userInfoErr
	}
	info := f.userInfo
	return &info, nil
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.ClientID = "google-client"
	cfg.ClientSecret = "google-secret"
	cfg.BaseURL = "https://tools.example.com"
	return cfg
}

func testClients() []*Client {
	return []*Client{
		{ID: testClientID, Secret: testClientSecret, RedirectURIs: []string{testRedirectURI}},
		{ID: "public-client", RedirectURIs: []string{testRedirectURI}},
	}
}

func newTestProvider(t *testing.T, cfg config.Config, up Upstream) (*Provider, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	p := NewProvider(cfg, Options{
		Upstream: up,
		Clients:  testClients(),
		Now:      clock.Now,
	})
	t.Cleanup(p.Close)
	return p, clock
}

// login drives a flow up to CodeIssued and returns the toolgate code and the
// client's PKCE verifier.
func login(t *testing.T, p *Provider, clientID string) (code, verifier string) {
	t.Helper()
	ctx := context.Background()

	verifier = oauth2.GenerateVerifier()
	target, err := p.BeginAuthorization(ctx, AuthorizationRequest{
		ResponseType:        "code",
		ClientID:            clientID,
		RedirectURI:         testRedirectURI,
		State:               "client-state",
		CodeChallenge:       oauth2.S256ChallengeFromVerifier(verifier),
		CodeChallengeMethod: PKCEMethodS256,
	})
	require.NoError(t, err)

	upstreamURL, err := url.Parse(target)
	require.NoError(t, err)
	state := upstreamURL.Query().Get("state")
	require.NotEmpty(t, state)

	back, err := p.CompleteUpstream(ctx, state, "google-code", "")
	require.NoError(t, err)

	backURL, err := url.Parse(back)
	require.NoError(t, err)
	require.Equal(t, "client-state", backURL.Query().Get("state"))
	code = backURL.Query().Get("code")
	require.NotEmpty(t, code)

	return code, verifier
}
