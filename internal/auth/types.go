package auth

import (
	"strings"
	"time"
)

// Endpoint paths served by Handler, relative to the issuer.
const (
	PathAuthorizationServerMetadata = "/.well-known/oauth-authorization-server"
	PathProtectedResourceMetadata   = "/.well-known/oauth-protected-resource"
	PathRegister                    = "/oauth/register"
	PathAuthorize                   = "/oauth/authorize"
	PathCallback                    = "/oauth/callback"
	PathToken                       = "/oauth/token"
	PathRevoke                      = "/oauth/revoke"
)

// Grant types accepted at the token endpoint.
const (
	GrantAuthorizationCode = "authorization_code"
	GrantRefreshToken      = "refresh_token"
)

// Token authentication methods a client may register with.
const (
	AuthMethodClientSecretBasic = "client_secret_basic"
	AuthMethodClientSecretPost  = "client_secret_post"
	AuthMethodNone              = "none"
)

// Token is an access grant issued by toolgate. It is immutable once stored;
// a refresh produces a new Token and retires the old one.
type Token struct {
	// AccessToken is the opaque bearer credential.
	AccessToken string

	// RefreshToken obtains a replacement Token (rotated on use).
	RefreshToken string

	// Subject is the stable Google account identifier.
	Subject string

	Email string
	Name  string

	// Scopes granted to the client.
	Scopes []string

	// ClientID of the OAuth client the token was issued to.
	ClientID string

	IssuedAt         time.Time
	ExpiresAt        time.Time
	RefreshExpiresAt time.Time
}

// Expired reports whether the access token is no longer accepted at now.
// A token is valid only while now < ExpiresAt.
func (t *Token) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// RefreshExpired reports whether the refresh token can no longer be used.
func (t *Token) RefreshExpired(now time.Time) bool {
	return t.RefreshToken == "" || !now.Before(t.RefreshExpiresAt)
}

// Identity returns the caller identity carried by t.
func (t *Token) Identity() *Identity {
	scopes := make([]string, len(t.Scopes))
	copy(scopes, t.Scopes)
	return &Identity{
		Subject:   t.Subject,
		Email:     t.Email,
		Name:      t.Name,
		Scopes:    scopes,
		ClientID:  t.ClientID,
		ExpiresAt: t.ExpiresAt,
	}
}

// Response renders t as an RFC 6749 token response.
func (t *Token) Response(now time.Time) TokenResponse {
	expiresIn := int64(t.ExpiresAt.Sub(now).Seconds())
	if expiresIn < 0 {
		expiresIn = 0
	}
	return TokenResponse{
		AccessToken:  t.AccessToken,
		TokenType:    "Bearer",
		ExpiresIn:    expiresIn,
		RefreshToken: t.RefreshToken,
		Scope:        strings.Join(t.Scopes, " "),
	}
}

// Identity is the authenticated caller behind a bearer token.
type Identity struct {
	Subject   string
	Email     string
	Name      string
	Scopes    []string
	ClientID  string
	ExpiresAt time.Time
}

// HasScope reports whether scope was granted.
func (i *Identity) HasScope(scope string) bool {
	for _, s := range i.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// AuthorizeRequest is an authorization_code grant presented at the token
// endpoint.
type AuthorizeRequest struct {
	Code         string
	ClientID     string
	ClientSecret string
	RedirectURI  string
	CodeVerifier string
}

// RefreshRequest is a refresh_token grant presented at the token endpoint.
type RefreshRequest struct {
	RefreshToken string
	ClientID     string
	ClientSecret string
}

// RevokeRequest is an RFC 7009 revocation request.
type RevokeRequest struct {
	Token        string
	ClientID     string
	ClientSecret string
}

// AuthorizationRequest is the query of a client hitting the authorization
// endpoint.
type AuthorizationRequest struct {
	ResponseType        string
	ClientID            string
	RedirectURI         string
	State               string
	Scope               string
	CodeChallenge       string
	CodeChallengeMethod string
}

// TokenResponse is the JSON body returned by the token endpoint.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// ErrorResponse is the JSON body of an OAuth error.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// AuthorizationServerMetadata is the RFC 8414 discovery document.
type AuthorizationServerMetadata struct {
	Issuer                            string   `json:"issuer"`
	AuthorizationEndpoint             string   `json:"authorization_endpoint"`
	TokenEndpoint                     string   `json:"token_endpoint"`
	RegistrationEndpoint              string   `json:"registration_endpoint,omitempty"`
	RevocationEndpoint                string   `json:"revocation_endpoint,omitempty"`
	ScopesSupported                   []string `json:"scopes_supported,omitempty"`
	ResponseTypesSupported            []string `json:"response_types_supported"`
	GrantTypesSupported               []string `json:"grant_types_supported,omitempty"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported,omitempty"`
	CodeChallengeMethodsSupported     []string `json:"code_challenge_methods_supported,omitempty"`
}

// ProtectedResourceMetadata is the RFC 9728 document for the MCP endpoint.
type ProtectedResourceMetadata struct {
	Resource               string   `json:"resource"`
	AuthorizationServers   []string `json:"authorization_servers"`
	ScopesSupported        []string `json:"scopes_supported,omitempty"`
	BearerMethodsSupported []string `json:"bearer_methods_supported,omitempty"`
	ResourceName           string   `json:"resource_name,omitempty"`
}

// ClientMetadata is the RFC 7591 registration request and response body.
type ClientMetadata struct {
	ClientID                string   `json:"client_id,omitempty"`
	ClientSecret            string   `json:"client_secret,omitempty"`
	ClientIDIssuedAt        int64    `json:"client_id_issued_at,omitempty"`
	ClientSecretExpiresAt   *int64   `json:"client_secret_expires_at,omitempty"`
	ClientName              string   `json:"client_name,omitempty"`
	RedirectURIs            []string `json:"redirect_uris"`
	GrantTypes              []string `json:"grant_types,omitempty"`
	ResponseTypes           []string `json:"response_types,omitempty"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method,omitempty"`
	Scope                   string   `json:"scope,omitempty"`
}
