package config

import (
	"net"
	"strconv"
	"strings"
	"time"
)

// Environment variables read by Load.
const (
	EnvClientID     = "GOOGLE_CLIENT_ID"
	EnvClientSecret = "GOOGLE_CLIENT_SECRET"
	EnvBaseURL      = "BASE_URL"
	EnvPort         = "PORT"
	EnvHost         = "HOST"
)

// Config is the complete, immutable startup configuration for toolgate.
// It is built once by Load and passed by value afterwards.
type Config struct {
	// ClientID and ClientSecret are the Google OAuth client credentials used
	// for the upstream authorization-code exchange.
	ClientID     string `yaml:"clientId"`
	ClientSecret string `yaml:"clientSecret"`

	// BaseURL is the public, absolute URL clients reach toolgate at. It is the
	// OAuth issuer and the prefix of every advertised endpoint.
	BaseURL string `yaml:"baseUrl"`

	Host    string `yaml:"host,omitempty"`    // Host to bind to (default: 0.0.0.0)
	Port    int    `yaml:"port,omitempty"`    // Port to bind to (default: 8080)
	MCPPath string `yaml:"mcpPath,omitempty"` // Tool invocation endpoint (default: /mcp)

	// Scopes requested from Google during login.
	Scopes []string `yaml:"scopes,omitempty"`

	AccessTokenTTL       time.Duration `yaml:"accessTokenTTL,omitempty"`
	RefreshTokenTTL      time.Duration `yaml:"refreshTokenTTL,omitempty"`
	AuthorizationCodeTTL time.Duration `yaml:"authorizationCodeTTL,omitempty"`

	RateLimit RateLimitConfig `yaml:"rateLimit,omitempty"`

	// PreRegisteredClient is an OAuth client known at startup, for MCP
	// clients that cannot use dynamic registration.
	PreRegisteredClient *ClientConfig `yaml:"preRegisteredClient,omitempty"`

	// ServerName and ServerVersion are reported to MCP clients on initialize.
	ServerName    string `yaml:"serverName,omitempty"`
	ServerVersion string `yaml:"serverVersion,omitempty"`
}

// RateLimitConfig bounds requests to the OAuth endpoints per client IP.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requestsPerSecond,omitempty"`
	Burst             int     `yaml:"burst,omitempty"`
}

// ClientConfig describes a pre-registered OAuth client. A client without a
// secret is public and must use PKCE alone.
type ClientConfig struct {
	ID           string   `yaml:"id"`
	Name         string   `yaml:"name,omitempty"`
	Secret       string   `yaml:"secret,omitempty"`
	RedirectURIs []string `yaml:"redirectUris"`
}

// Addr returns the host:port pair the listener binds to.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Issuer returns the base URL without a trailing slash.
func (c Config) Issuer() string {
	return strings.TrimSuffix(c.BaseURL, "/")
}

// CallbackURL is the redirect URI registered with Google.
func (c Config) CallbackURL() string {
	return c.Issuer() + DefaultCallbackPath
}

// ResourceURL is the canonical URL of the protected MCP endpoint.
func (c Config) ResourceURL() string {
	return c.Issuer() + c.MCPPath
}
