package server

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"toolgate/internal/auth"
	"toolgate/internal/config"
	"toolgate/internal/dispatcher"
	"toolgate/internal/registry"
	"toolgate/internal/tools"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

const (
	clientID     = "test-client"
	clientSecret = "test-secret"
	redirectURI  = "http://localhost:3000/callback"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// stubUpstream logs every user in as the same Google account.
type stubUpstream struct{}

func (stubUpstream) AuthCodeURL(state, verifier string) string {
	return "https://accounts.example.com/auth?" + url.Values{"state": {state}}.Encode()
}

func (stubUpstream) Exchange(context.Context, string, string) (*oauth2.Token, error) {
	return &oauth2.Token{AccessToken: "upstream", TokenType: "Bearer"}, nil
}

func (stubUpstream) UserInfo(context.Context, *oauth2.Token) (*auth.UserInfo, error) {
	return &auth.UserInfo{Subject: "42", Email: "dev@example.com", Name: "Dev"}, nil
}

type fixture struct {
	cfg      config.Config
	provider *auth.Provider
	server   *Server
	clock    *clock
	prom     *prometheus.Registry
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.ClientID = "google-client"
	cfg.ClientSecret = "google-secret"
	cfg.BaseURL = "http://localhost:8080"
	cfg.Host = "127.0.0.1"
	cfg.Port = 0
	return cfg
}

func newFixture(t *testing.T, cfg config.Config) *fixture {
	t.Helper()

	clk := &clock{now: time.Now()}
	prom := prometheus.NewRegistry()

	provider := auth.NewProvider(cfg, auth.Options{
		Upstream:   stubUpstream{},
		Clients:    []*auth.Client{{ID: clientID, Secret: clientSecret, RedirectURIs: []string{redirectURI}}},
		Registerer: prom,
		Now:        clk.Now,
	})
	t.Cleanup(provider.Close)

	reg := registry.New()
	require.NoError(t, tools.RegisterBuiltins(reg))
	reg.Seal()

	d := dispatcher.New(reg, provider, dispatcher.Options{Registerer: prom})

	srv, err := New(cfg, auth.NewHandler(provider), d, reg, Options{Gatherer: prom})
	require.NoError(t, err)

	return &fixture{cfg: cfg, provider: provider, server: srv, clock: clk, prom: prom}
}

// accessToken runs the login flow against the provider and returns a bearer.
func (f *fixture) accessToken(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	verifier := oauth2.GenerateVerifier()
	target, err := f.provider.BeginAuthorization(ctx, auth.AuthorizationRequest{
		ResponseType:        "code",
		ClientID:            clientID,
		RedirectURI:         redirectURI,
		State:               "s",
		CodeChallenge:       oauth2.S256ChallengeFromVerifier(verifier),
		CodeChallengeMethod: auth.PKCEMethodS256,
	})
	require.NoError(t, err)
	upstream, err := url.Parse(target)
	require.NoError(t, err)

	back, err := f.provider.CompleteUpstream(ctx, upstream.Query().Get("state"), "google-code", "")
	require.NoError(t, err)
	backURL, err := url.Parse(back)
	require.NoError(t, err)

	tok, err := f.provider.Authorize(ctx, auth.AuthorizeRequest{
		Code:         backURL.Query().Get("code"),
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURI:  redirectURI,
		CodeVerifier: verifier,
	})
	require.NoError(t, err)
	return tok.AccessToken
}

func (f *fixture) start(t *testing.T) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(f.server.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func newMCPClient(t *testing.T, endpoint, token string) *client.Client {
	t.Helper()
	ctx := context.Background()

	c, err := client.NewStreamableHttpClient(endpoint,
		transport.WithHTTPHeaders(map[string]string{"Authorization": "Bearer " + token}),
	)
	require.NoError(t, err)
	require.NoError(t, c.Start(ctx))
	t.Cleanup(func() { _ = c.Close() })

	var init mcp.InitializeRequest
	init.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	init.Params.ClientInfo = mcp.Implementation{Name: "toolgate-test", Version: "1.0.0"}
	_, err = c.Initialize(ctx, init)
	require.NoError(t, err)
	return c
}

func callTool(t *testing.T, c *client.Client, name string, args map[string]any) (*mcp.CallToolResult, error) {
	t.Helper()
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return c.CallTool(context.Background(), req)
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	text, ok := mcp.AsTextContent(res.Content[0])
	require.True(t, ok)
	return text.Text
}

func TestServer_ToolCalls(t *testing.T) {
	f := newFixture(t, testConfig())
	ts := f.start(t)
	c := newMCPClient(t, ts.URL+f.cfg.MCPPath, f.accessToken(t))

	listed, err := c.ListTools(context.Background(), mcp.ListToolsRequest{})
	require.NoError(t, err)
	require.Len(t, listed.Tools, 1)
	assert.Equal(t, "add", listed.Tools[0].Name)
	assert.Equal(t, []string{"a", "b"}, listed.Tools[0].InputSchema.Required)

	res, err := callTool(t, c, "add", map[string]any{"a": 2, "b": 3})
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, "5", resultText(t, res))

	res, err = callTool(t, c, "add", map[string]any{"a": "x", "b": 3})
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), `"a"`)

	_, err = callTool(t, c, "sub", map[string]any{"a": 2, "b": 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestServer_RejectsWithoutValidToken(t *testing.T) {
	f := newFixture(t, testConfig())
	ts := f.start(t)
	token := f.accessToken(t)
	body := `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"add","arguments":{"a":2,"b":3}}}`

	post := func(authorization string) *http.Response {
		req, err := http.NewRequest(http.MethodPost, ts.URL+f.cfg.MCPPath, strings.NewReader(body))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json, text/event-stream")
		if authorization != "" {
			req.Header.Set("Authorization", authorization)
		}
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		return resp
	}

	resp := post("")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("WWW-Authenticate"), "resource_metadata=")

	resp = post("Bearer not-a-token")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("WWW-Authenticate"), `error="invalid_token"`)

	f.clock.Advance(f.cfg.AccessTokenTTL)
	resp = post("Bearer " + token)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "token is invalid once now reaches expiry")
}

func TestServer_PublicEndpoints(t *testing.T) {
	f := newFixture(t, testConfig())
	ts := f.start(t)

	resp, err := http.Get(ts.URL + HealthPath)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))

	resp, err = http.Get(ts.URL + auth.PathAuthorizationServerMetadata)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	c := newMCPClient(t, ts.URL+f.cfg.MCPPath, f.accessToken(t))
	_, err = callTool(t, c, "add", map[string]any{"a": 1, "b": 1})
	require.NoError(t, err)

	resp, err = http.Get(ts.URL + MetricsPath)
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `toolgate_tool_invocations_total{outcome="success",tool="add"} 1`)
	assert.Contains(t, string(body), "toolgate_auth_tokens_issued_total")
}

func TestServer_ListenServeShutdown(t *testing.T) {
	f := newFixture(t, testConfig())
	require.NoError(t, f.server.Listen())
	assert.ErrorIs(t, f.server.Listen(), ErrAlreadyListening)

	addr := f.server.Addr()
	require.NotNil(t, addr)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.server.Serve(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr.String() + HealthPath)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}
}

func TestServer_BindError(t *testing.T) {
	taken, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer taken.Close()

	cfg := testConfig()
	cfg.Port = taken.Addr().(*net.TCPAddr).Port
	f := newFixture(t, cfg)

	err = f.server.Listen()
	require.Error(t, err)

	var bindErr *BindError
	require.True(t, errors.As(err, &bindErr))
	assert.Equal(t, cfg.Addr(), bindErr.Addr)
	assert.Nil(t, f.server.Addr())
}

func TestServer_ServeWithoutListen(t *testing.T) {
	f := newFixture(t, testConfig())
	assert.Error(t, f.server.Serve(context.Background()))
}

func TestNew_RequiresComponents(t *testing.T) {
	_, err := New(testConfig(), nil, nil, nil, Options{})
	assert.Error(t, err)
}

func TestNew_RejectsUnmountableMCPPath(t *testing.T) {
	for _, path := range []string{"/health", "/metrics", "/oauth/token", "/.well-known/oauth-protected-resource", "/a b"} {
		t.Run(path, func(t *testing.T) {
			cfg := testConfig()
			cfg.MCPPath = path

			provider := auth.NewProvider(cfg, auth.Options{Upstream: stubUpstream{}})
			t.Cleanup(provider.Close)
			reg := registry.New()
			d := dispatcher.New(reg, provider, dispatcher.Options{})

			var (
				srv *Server
				err error
			)
			require.NotPanics(t, func() {
				srv, err = New(cfg, auth.NewHandler(provider), d, reg, Options{})
			})
			assert.Error(t, err)
			assert.Nil(t, srv)
		})
	}
}
