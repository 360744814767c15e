package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// GoogleUserInfoURL is Google's OpenID Connect userinfo endpoint.
const GoogleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

const upstreamTimeout = 30 * time.Second

// UserInfo is the identity returned by the upstream provider.
type UserInfo struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
}

// Upstream is the identity provider toolgate delegates user login to.
type Upstream interface {
	// AuthCodeURL returns the URL the user agent is sent to. verifier is the
	// PKCE verifier toolgate holds for this flow.
	AuthCodeURL(state, verifier string) string
	// Exchange trades an upstream authorization code for upstream tokens.
	Exchange(ctx context.Context, code, verifier string) (*oauth2.Token, error)
	// UserInfo fetches the identity behind an upstream token.
	UserInfo(ctx context.Context, token *oauth2.Token) (*UserInfo, error)
}

// GoogleConfig configures GoogleUpstream.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string

	// Endpoint defaults to google.Endpoint.
	Endpoint oauth2.Endpoint
	// UserInfoURL defaults to GoogleUserInfoURL.
	UserInfoURL string
	// HTTPClient defaults to a client with a 30s timeout.
	HTTPClient *http.Client
}

// GoogleUpstream performs the authorization-code exchange against Google.
type GoogleUpstream struct {
	oauth       *oauth2.Config
	userInfoURL string
	httpClient  *http.Client
}

// NewGoogleUpstream creates an Upstream for Google accounts.
func NewGoogleUpstream(cfg GoogleConfig) *GoogleUpstream {
	endpoint := cfg.Endpoint
	if endpoint.AuthURL == "" && endpoint.TokenURL == "" {
		endpoint = google.Endpoint
	}
	userInfoURL := cfg.UserInfoURL
	if userInfoURL == "" {
		userInfoURL = GoogleUserInfoURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: upstreamTimeout}
	}

	return &GoogleUpstream{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint:     endpoint,
		},
		userInfoURL: userInfoURL,
		httpClient:  httpClient,
	}
}

// AuthCodeURL implements Upstream.
func (g *GoogleUpstream) AuthCodeURL(state, verifier string) string {
	return g.oauth.AuthCodeURL(state,
		oauth2.S256ChallengeOption(verifier),
		oauth2.SetAuthURLParam("prompt", "select_account"),
	)
}

// Exchange implements Upstream.
func (g *GoogleUpstream) Exchange(ctx context.Context, code, verifier string) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, g.httpClient)
	token, err := g.oauth.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, classifyUpstreamError("code exchange", err)
	}
	return token, nil
}

// UserInfo implements Upstream.
func (g *GoogleUpstream) UserInfo(ctx context.Context, token *oauth2.Token) (*UserInfo, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, g.httpClient)
	client := g.oauth.Client(ctx, token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.userInfoURL, nil)
	if err != nil {
		return nil, wrapAuthError(KindNetworkFailure, "building userinfo request", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, classifyUpstreamError("userinfo", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, newAuthError(KindExpiredCode, fmt.Sprintf("userinfo rejected upstream token (HTTP %d)", resp.StatusCode))
	default:
		return nil, newAuthError(KindNetworkFailure, fmt.Sprintf("userinfo returned HTTP %d", resp.StatusCode))
	}

	var info UserInfo
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&info); err != nil {
		return nil, wrapAuthError(KindNetworkFailure, "decoding userinfo", err)
	}
	if info.Subject == "" {
		return nil, newAuthError(KindNetworkFailure, "userinfo response has no subject")
	}
	return &info, nil
}

// classifyUpstreamError maps an x/oauth2 error to an AuthError kind.
// invalid_grant means the upstream code expired or was already used. A
// rejection of toolgate's own Google credentials is a server-side fault and
// is never reported to the MCP client as invalid_client.
func classifyUpstreamError(op string, err error) *AuthError {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return wrapAuthError(KindNetworkFailure, op+" interrupted", err)
	}

	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		switch re.ErrorCode {
		case CodeInvalidGrant:
			return wrapAuthError(KindExpiredCode, op+": upstream code is expired or already used", err)
		case CodeInvalidClient, "unauthorized_client":
			return wrapAuthError(KindNetworkFailure, op+": upstream rejected toolgate's client credentials", err)
		}
		if re.Response != nil && re.Response.StatusCode >= http.StatusInternalServerError {
			return wrapAuthError(KindNetworkFailure, op+": upstream server error", err)
		}
		return wrapAuthError(KindExpiredCode, op+": upstream refused the request", err)
	}

	return wrapAuthError(KindNetworkFailure, op+" failed", err)
}
