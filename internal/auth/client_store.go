package auth

import (
	"crypto/subtle"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"

	"toolgate/pkg/logging"
)

// Client is a registered OAuth client.
type Client struct {
	ID   string
	Name string
	// Secret is empty for public clients (token_endpoint_auth_method none).
	Secret       string
	RedirectURIs []string
	AuthMethod   string
	CreatedAt    time.Time
}

// Public reports whether the client authenticates with PKCE alone.
func (c *Client) Public() bool {
	return c.AuthMethod == AuthMethodNone
}

// AllowsRedirect reports whether uri exactly matches a registered redirect URI.
func (c *Client) AllowsRedirect(uri string) bool {
	for _, r := range c.RedirectURIs {
		if r == uri {
			return true
		}
	}
	return false
}

// Metadata renders the client as an RFC 7591 registration response.
func (c *Client) Metadata() ClientMetadata {
	md := ClientMetadata{
		ClientID:                c.ID,
		ClientSecret:            c.Secret,
		ClientIDIssuedAt:        c.CreatedAt.Unix(),
		ClientName:              c.Name,
		RedirectURIs:            c.RedirectURIs,
		GrantTypes:              []string{GrantAuthorizationCode, GrantRefreshToken},
		ResponseTypes:           []string{"code"},
		TokenEndpointAuthMethod: c.AuthMethod,
	}
	if c.Secret != "" {
		never := int64(0)
		md.ClientSecretExpiresAt = &never
	}
	return md
}

// ClientStore holds registered OAuth clients.
type ClientStore struct {
	mu      sync.RWMutex
	clients map[string]*Client
	now     func() time.Time
}

// NewClientStore creates an empty client store.
func NewClientStore(now func() time.Time) *ClientStore {
	if now == nil {
		now = time.Now
	}
	return &ClientStore{
		clients: make(map[string]*Client),
		now:     now,
	}
}

// Add stores a pre-registered client as is.
func (cs *ClientStore) Add(client *Client) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if client.AuthMethod == "" {
		client.AuthMethod = AuthMethodClientSecretPost
		if client.Secret == "" {
			client.AuthMethod = AuthMethodNone
		}
	}
	cs.clients[client.ID] = client
}

// Register validates RFC 7591 metadata and creates a new client.
func (cs *ClientStore) Register(md ClientMetadata) (*Client, error) {
	if len(md.RedirectURIs) == 0 {
		return nil, &AuthError{Kind: KindInvalidRequest, Code: CodeInvalidRedirectURI, Description: "at least one redirect_uri is required"}
	}
	for _, uri := range md.RedirectURIs {
		if err := validateRedirectURI(uri); err != nil {
			return nil, err
		}
	}

	method := md.TokenEndpointAuthMethod
	switch method {
	case "":
		method = AuthMethodClientSecretBasic
	case AuthMethodClientSecretBasic, AuthMethodClientSecretPost, AuthMethodNone:
	default:
		return nil, &AuthError{Kind: KindInvalidRequest, Code: CodeInvalidClientMetadata, Description: "unsupported token_endpoint_auth_method"}
	}
	for _, gt := range md.GrantTypes {
		if gt != GrantAuthorizationCode && gt != GrantRefreshToken {
			return nil, &AuthError{Kind: KindInvalidRequest, Code: CodeInvalidClientMetadata, Description: "unsupported grant_type " + gt}
		}
	}

	client := &Client{
		ID:           uuid.NewString(),
		Name:         md.ClientName,
		RedirectURIs: append([]string(nil), md.RedirectURIs...),
		AuthMethod:   method,
		CreatedAt:    cs.now(),
	}
	if method != AuthMethodNone {
		secret, err := randomSecret()
		if err != nil {
			return nil, err
		}
		client.Secret = secret
	}

	cs.mu.Lock()
	cs.clients[client.ID] = client
	cs.mu.Unlock()

	logging.Info("Auth", "Registered client id=%s name=%q method=%s", client.ID, client.Name, client.AuthMethod)
	return client, nil
}

// Get returns the client with id.
func (cs *ClientStore) Get(id string) (*Client, bool) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	c, ok := cs.clients[id]
	return c, ok
}

// Authenticate checks a client's credentials at the token endpoint.
// Public clients must not present a secret.
func (cs *ClientStore) Authenticate(id, secret string) (*Client, error) {
	client, ok := cs.Get(id)
	if !ok {
		return nil, newAuthError(KindInvalidCredentials, "unknown client")
	}
	if client.Public() {
		if secret != "" {
			return nil, newAuthError(KindInvalidCredentials, "public client must not send a secret")
		}
		return client, nil
	}
	if subtle.ConstantTimeCompare([]byte(client.Secret), []byte(secret)) != 1 {
		return nil, newAuthError(KindInvalidCredentials, "client authentication failed")
	}
	return client, nil
}

// Count returns the number of registered clients.
func (cs *ClientStore) Count() int {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return len(cs.clients)
}

// validateRedirectURI accepts absolute URIs without fragments. Plain http is
// only allowed for loopback hosts; custom schemes are allowed for native apps.
func validateRedirectURI(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() {
		return &AuthError{Kind: KindInvalidRequest, Code: CodeInvalidRedirectURI, Description: "redirect_uri must be an absolute URI"}
	}
	if u.Fragment != "" {
		return &AuthError{Kind: KindInvalidRequest, Code: CodeInvalidRedirectURI, Description: "redirect_uri must not contain a fragment"}
	}
	if u.Scheme == "http" {
		host := u.Hostname()
		if host != "localhost" && host != "127.0.0.1" && host != "::1" {
			return &AuthError{Kind: KindInvalidRequest, Code: CodeInvalidRedirectURI, Description: "http redirect_uri is only allowed for loopback hosts"}
		}
	}
	return nil
}
