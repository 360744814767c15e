package config

import "time"

const (
	// DefaultCallbackPath is where Google redirects after the user signs in.
	DefaultCallbackPath = "/oauth/callback"

	DefaultHost    = "0.0.0.0"
	DefaultPort    = 8080
	DefaultMCPPath = "/mcp"

	DefaultAccessTokenTTL       = time.Hour
	DefaultRefreshTokenTTL      = 30 * 24 * time.Hour
	DefaultAuthorizationCodeTTL = 10 * time.Minute

	// DefaultIPRateLimit is the default rate limit for requests per IP (requests/second).
	DefaultIPRateLimit = 10
	// DefaultIPBurst is the default burst size for IP rate limiting.
	DefaultIPBurst = 20

	DefaultServerName = "toolgate"
)

// DefaultScopes are the OpenID Connect scopes requested from Google.
var DefaultScopes = []string{"openid", "profile", "email"}

// Default returns a configuration with every optional field populated.
// Credentials and the base URL have no defaults.
func Default() Config {
	scopes := make([]string, len(DefaultScopes))
	copy(scopes, DefaultScopes)

	return Config{
		Host:                 DefaultHost,
		Port:                 DefaultPort,
		MCPPath:              DefaultMCPPath,
		Scopes:               scopes,
		AccessTokenTTL:       DefaultAccessTokenTTL,
		RefreshTokenTTL:      DefaultRefreshTokenTTL,
		AuthorizationCodeTTL: DefaultAuthorizationCodeTTL,
		RateLimit: RateLimitConfig{
			RequestsPerSecond: DefaultIPRateLimit,
			Burst:             DefaultIPBurst,
		},
		ServerName:    DefaultServerName,
		ServerVersion: "dev",
	}
}
