package auth

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"toolgate/internal/config"
	"toolgate/pkg/logging"
)

// Options customises a Provider. The zero value uses Google and wall-clock
// time.
type Options struct {
	// Upstream replaces the Google upstream built from the configuration.
	Upstream Upstream
	// Clients are pre-registered OAuth clients.
	Clients []*Client
	// Registerer receives the auth metrics. Nil leaves them unregistered.
	Registerer prometheus.Registerer
	// Now overrides the clock.
	Now func() time.Time
	// CleanupInterval controls how often expired tokens are swept.
	CleanupInterval time.Duration
}

// Provider is toolgate's OAuth 2.1 authorization server. It proxies user
// login to an Upstream and issues its own opaque bearer tokens.
type Provider struct {
	cfg      config.Config
	upstream Upstream

	flows   *FlowStore
	tokens  *TokenStore
	clients *ClientStore
	metrics *Metrics

	refreshGroup singleflight.Group
	now          func() time.Time
}

// NewProvider creates a Provider from a validated configuration.
func NewProvider(cfg config.Config, opts Options) *Provider {
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	upstream := opts.Upstream
	if upstream == nil {
		upstream = NewGoogleUpstream(GoogleConfig{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.CallbackURL(),
			Scopes:       cfg.Scopes,
		})
	}

	p := &Provider{
		cfg:      cfg,
		upstream: upstream,
		flows:    NewFlowStore(cfg.AuthorizationCodeTTL, now),
		tokens:   NewTokenStore(opts.CleanupInterval, now),
		clients:  NewClientStore(now),
		metrics:  NewMetrics(opts.Registerer),
		now:      now,
	}
	for _, c := range opts.Clients {
		p.clients.Add(c)
	}

	logging.Info("Auth", "OAuth provider ready (issuer: %s, callback: %s)", cfg.Issuer(), cfg.CallbackURL())
	return p
}

// Close stops the background sweeps.
func (p *Provider) Close() {
	p.flows.Stop()
	p.tokens.Stop()
}

// Metadata returns the RFC 8414 authorization server metadata.
func (p *Provider) Metadata() AuthorizationServerMetadata {
	issuer := p.cfg.Issuer()
	return AuthorizationServerMetadata{
		Issuer:                 issuer,
		AuthorizationEndpoint:  issuer + PathAuthorize,
		TokenEndpoint:          issuer + PathToken,
		RegistrationEndpoint:   issuer + PathRegister,
		RevocationEndpoint:     issuer + PathRevoke,
		ScopesSupported:        p.cfg.Scopes,
		ResponseTypesSupported: []string{"code"},
		GrantTypesSupported:    []string{GrantAuthorizationCode, GrantRefreshToken},
		TokenEndpointAuthMethodsSupported: []string{
			AuthMethodClientSecretBasic,
			AuthMethodClientSecretPost,
			AuthMethodNone,
		},
		CodeChallengeMethodsSupported: []string{PKCEMethodS256},
	}
}

// ProtectedResourceMetadata returns the RFC 9728 metadata of the MCP
// endpoint.
func (p *Provider) ProtectedResourceMetadata() ProtectedResourceMetadata {
	return ProtectedResourceMetadata{
		Resource:               p.cfg.ResourceURL(),
		AuthorizationServers:   []string{p.cfg.Issuer()},
		ScopesSupported:        p.cfg.Scopes,
		BearerMethodsSupported: []string{"header"},
		ResourceName:           p.cfg.ServerName,
	}
}

// ResourceMetadataURL is advertised in WWW-Authenticate challenges. The
// issuer is a bare origin, so the well-known segment follows the host
// directly (RFC 9728 section 3.1).
func (p *Provider) ResourceMetadataURL() string {
	return p.cfg.Issuer() + PathProtectedResourceMetadata + p.cfg.MCPPath
}

// RegisterClient performs RFC 7591 dynamic client registration.
func (p *Provider) RegisterClient(md ClientMetadata) (*Client, error) {
	client, err := p.clients.Register(md)
	if err != nil {
		p.metrics.observeFailure("register", err)
		return nil, err
	}
	return client, nil
}

// CheckClientRedirect verifies that clientID exists and owns redirectURI.
// Failures must not be redirected to the unverified URI.
func (p *Provider) CheckClientRedirect(clientID, redirectURI string) error {
	client, ok := p.clients.Get(clientID)
	if !ok {
		return &AuthError{Kind: KindInvalidCredentials, Code: CodeInvalidRequest, Description: "unknown client_id"}
	}
	if !client.AllowsRedirect(redirectURI) {
		return &AuthError{Kind: KindInvalidRequest, Code: CodeInvalidRequest, Description: "redirect_uri is not registered for this client"}
	}
	return nil
}

// BeginAuthorization validates an authorization request and starts a
// Pending flow. It returns the upstream URL to send the user agent to.
func (p *Provider) BeginAuthorization(ctx context.Context, req AuthorizationRequest) (string, error) {
	if err := p.CheckClientRedirect(req.ClientID, req.RedirectURI); err != nil {
		return "", err
	}
	if req.ResponseType != "code" {
		return "", &AuthError{Kind: KindInvalidRequest, Code: "unsupported_response_type", Description: "response_type must be code"}
	}
	if err := ValidateCodeChallenge(req.CodeChallenge, req.CodeChallengeMethod); err != nil {
		return "", err
	}

	scopes, err := p.grantScopes(req.Scope)
	if err != nil {
		return "", err
	}

	verifier := oauth2.GenerateVerifier()
	state, err := p.flows.Begin(&Flow{
		ClientID:         req.ClientID,
		RedirectURI:      req.RedirectURI,
		ClientState:      req.State,
		CodeChallenge:    req.CodeChallenge,
		Scopes:           scopes,
		UpstreamVerifier: verifier,
	})
	if err != nil {
		return "", wrapAuthError(KindNetworkFailure, "starting authorization flow", err)
	}

	return p.upstream.AuthCodeURL(state, verifier), nil
}

// grantScopes resolves the requested scope string against the configured
// scopes. An empty request grants every configured scope.
func (p *Provider) grantScopes(requested string) ([]string, error) {
	if strings.TrimSpace(requested) == "" {
		return append([]string(nil), p.cfg.Scopes...), nil
	}
	allowed := make(map[string]bool, len(p.cfg.Scopes))
	for _, s := range p.cfg.Scopes {
		allowed[s] = true
	}
	var scopes []string
	for _, s := range strings.Fields(requested) {
		if !allowed[s] {
			return nil, &AuthError{Kind: KindInvalidRequest, Code: "invalid_scope", Description: "scope " + s + " is not supported"}
		}
		scopes = append(scopes, s)
	}
	return scopes, nil
}

// CompleteUpstream handles the upstream callback. It moves the flow from
// Pending to CodeIssued and returns the client redirect carrying the new
// code. When upstreamError is set (the user declined), the flow is aborted
// and the redirect carries the error instead.
func (p *Provider) CompleteUpstream(ctx context.Context, state, code, upstreamError string) (string, error) {
	if upstreamError != "" {
		flow, err := p.flows.Abort(state)
		if err != nil {
			return "", flowError(err)
		}
		logging.Warn("Auth", "Upstream login failed for client=%s: %s", flow.ClientID, upstreamError)
		return clientRedirect(flow.RedirectURI, url.Values{
			"error":             {CodeAccessDenied},
			"error_description": {"upstream login failed: " + upstreamError},
			"state":             {flow.ClientState},
		}), nil
	}

	if code == "" {
		return "", newAuthError(KindInvalidRequest, "callback is missing the code parameter")
	}

	flow, err := p.flows.Advance(state, code)
	if err != nil {
		return "", flowError(err)
	}

	return clientRedirect(flow.RedirectURI, url.Values{
		"code":  {flow.Code},
		"state": {flow.ClientState},
		"iss":   {p.cfg.Issuer()},
	}), nil
}

// Authorize redeems a toolgate authorization code. The code is consumed
// first, so a failed attempt cannot be retried with the same code.
func (p *Provider) Authorize(ctx context.Context, req AuthorizeRequest) (*Token, error) {
	token, err := p.authorize(ctx, req)
	if err != nil {
		p.metrics.observeFailure("authorize", err)
		logging.Warn("Auth", "Authorization code exchange failed for client=%s: %v", req.ClientID, err)
		return nil, err
	}
	p.metrics.observeIssued(GrantAuthorizationCode)
	logging.Info("Auth", "Issued token for subject=%s client=%s", token.Subject, token.ClientID)
	return token, nil
}

func (p *Provider) authorize(ctx context.Context, req AuthorizeRequest) (*Token, error) {
	if req.Code == "" {
		return nil, newAuthError(KindInvalidRequest, "code is required")
	}

	flow, err := p.flows.Redeem(req.Code)
	if err != nil {
		return nil, flowError(err)
	}

	if _, err := p.clients.Authenticate(req.ClientID, req.ClientSecret); err != nil {
		return nil, err
	}
	if flow.ClientID != req.ClientID {
		return nil, &AuthError{Kind: KindInvalidCredentials, Code: CodeInvalidGrant, Description: "code was issued to another client"}
	}
	if flow.RedirectURI != req.RedirectURI {
		return nil, &AuthError{Kind: KindInvalidCredentials, Code: CodeInvalidGrant, Description: "redirect_uri does not match the authorization request"}
	}
	if !VerifyPKCE(req.CodeVerifier, flow.CodeChallenge) {
		return nil, &AuthError{Kind: KindInvalidCredentials, Code: CodeInvalidGrant, Description: "code_verifier does not match code_challenge"}
	}

	upstreamToken, err := p.upstream.Exchange(ctx, flow.UpstreamCode, flow.UpstreamVerifier)
	if err != nil {
		return nil, AsAuthError(err)
	}
	info, err := p.upstream.UserInfo(ctx, upstreamToken)
	if err != nil {
		return nil, AsAuthError(err)
	}

	token, err := p.issue(info.Subject, info.Email, info.Name, flow.ClientID, flow.Scopes)
	if err != nil {
		return nil, err
	}
	p.tokens.Store(token)
	return token, nil
}

// Refresh rotates a refresh token. Concurrent refreshes of the same token by
// the same client collapse into one rotation and share its result.
func (p *Provider) Refresh(ctx context.Context, req RefreshRequest) (*Token, error) {
	if req.RefreshToken == "" {
		return nil, newAuthError(KindInvalidRequest, "refresh_token is required")
	}
	if _, err := p.clients.Authenticate(req.ClientID, req.ClientSecret); err != nil {
		p.metrics.observeFailure("refresh", err)
		return nil, err
	}

	v, err, _ := p.refreshGroup.Do(req.ClientID+"\x00"+req.RefreshToken, func() (interface{}, error) {
		return p.rotate(req.RefreshToken, req.ClientID)
	})
	if err != nil {
		p.metrics.observeFailure("refresh", err)
		return nil, err
	}
	return v.(*Token), nil
}

func (p *Provider) rotate(refreshToken, clientID string) (*Token, error) {
	old, ok := p.tokens.LookupRefresh(refreshToken)
	if !ok || old.RefreshExpired(p.now()) {
		return nil, newAuthError(KindExpiredCode, "refresh token is not valid")
	}
	if old.ClientID != clientID {
		return nil, &AuthError{Kind: KindInvalidCredentials, Code: CodeInvalidGrant, Description: "refresh token was issued to another client"}
	}

	next, err := p.issue(old.Subject, old.Email, old.Name, old.ClientID, old.Scopes)
	if err != nil {
		return nil, err
	}
	if err := p.tokens.Rotate(refreshToken, next); err != nil {
		return nil, wrapAuthError(KindExpiredCode, "refresh token is not valid", err)
	}
	p.metrics.observeIssued(GrantRefreshToken)
	logging.Info("Auth", "Refreshed token for subject=%s client=%s", next.Subject, next.ClientID)
	return next, nil
}

// Revoke implements RFC 7009. Unknown tokens are not an error.
func (p *Provider) Revoke(ctx context.Context, req RevokeRequest) error {
	if _, err := p.clients.Authenticate(req.ClientID, req.ClientSecret); err != nil {
		p.metrics.observeFailure("revoke", err)
		return err
	}
	if req.Token == "" {
		return newAuthError(KindInvalidRequest, "token is required")
	}
	p.tokens.Revoke(req.Token, req.ClientID)
	return nil
}

// Validate resolves a bearer credential to the caller's identity.
// It fails with KindInvalidToken for unknown tokens and KindExpiredToken
// once now >= expiry.
func (p *Provider) Validate(ctx context.Context, bearer string) (*Identity, error) {
	if bearer == "" {
		return nil, newAuthError(KindInvalidToken, "missing bearer token")
	}
	token, ok := p.tokens.Lookup(bearer)
	if !ok {
		return nil, newAuthError(KindInvalidToken, "unknown bearer token")
	}
	if token.Expired(p.now()) {
		return nil, newAuthError(KindExpiredToken, "bearer token expired")
	}
	return token.Identity(), nil
}

func (p *Provider) issue(subject, email, name, clientID string, scopes []string) (*Token, error) {
	access, err := randomSecret()
	if err != nil {
		return nil, wrapAuthError(KindNetworkFailure, "generating access token", err)
	}
	refresh, err := randomSecret()
	if err != nil {
		return nil, wrapAuthError(KindNetworkFailure, "generating refresh token", err)
	}

	now := p.now()
	return &Token{
		AccessToken:      access,
		RefreshToken:     refresh,
		Subject:          subject,
		Email:            email,
		Name:             name,
		Scopes:           append([]string(nil), scopes...),
		ClientID:         clientID,
		IssuedAt:         now,
		ExpiresAt:        now.Add(p.cfg.AccessTokenTTL),
		RefreshExpiresAt: now.Add(p.cfg.RefreshTokenTTL),
	}, nil
}

// Now returns the provider's clock reading.
func (p *Provider) Now() time.Time {
	return p.now()
}

// flowError maps FlowStore failures to the ExpiredCode kind.
func flowError(err error) error {
	switch {
	case errors.Is(err, ErrFlowExpired):
		return wrapAuthError(KindExpiredCode, "authorization code or state expired", err)
	default:
		return wrapAuthError(KindExpiredCode, "authorization code or state is unknown or already used", err)
	}
}

func clientRedirect(redirectURI string, params url.Values) string {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return redirectURI
	}
	q := u.Query()
	for k, vs := range params {
		for _, v := range vs {
			if v != "" {
				q.Add(k, v)
			}
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}
