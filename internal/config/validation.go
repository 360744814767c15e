package config

import (
	"fmt"
	"net"
	"net/url"
	stdpath "path"
	"strings"
	"unicode"
)

// ValidationError represents a validation error with context
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	if ve.Field == "" {
		return ve.Message
	}
	return fmt.Sprintf("field '%s': %s", ve.Field, ve.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for multiple validation errors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	if len(ve) == 1 {
		return ve[0].Error()
	}

	var messages []string
	for _, err := range ve {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

// HasErrors returns true if there are any validation errors
func (ve ValidationErrors) HasErrors() bool {
	return len(ve) > 0
}

// Add adds a new validation error
func (ve *ValidationErrors) Add(field, message string, value ...interface{}) {
	var val interface{}
	if len(value) > 0 {
		val = value[0]
	}
	*ve = append(*ve, ValidationError{
		Field:   field,
		Value:   val,
		Message: message,
	})
}

// Fields returns the names of the offending fields in order.
func (ve ValidationErrors) Fields() []string {
	fields := make([]string, 0, len(ve))
	for _, err := range ve {
		fields = append(fields, err.Field)
	}
	return fields
}

// ValidateRequired checks if a required string field is not empty
func ValidateRequired(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return ValidationError{
			Field:   field,
			Value:   value,
			Message: "is required",
		}
	}
	return nil
}

// ValidateBaseURL checks that raw is an absolute http(s) origin. Plain HTTP
// is accepted only for loopback hosts, as OAuth 2.1 requires TLS otherwise.
func ValidateBaseURL(field, raw string) error {
	if strings.TrimSpace(raw) == "" {
		return ValidationError{Field: field, Value: raw, Message: "is required"}
	}

	u, err := url.Parse(raw)
	if err != nil {
		return ValidationError{Field: field, Value: raw, Message: fmt.Sprintf("must be a valid URL: %v", err)}
	}
	if !u.IsAbs() || u.Host == "" {
		return ValidationError{Field: field, Value: raw, Message: "must be an absolute URL with a host"}
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return ValidationError{Field: field, Value: raw, Message: "must not contain a query or fragment"}
	}
	// Well-known metadata lives at the host root, so the issuer has no path.
	if u.Path != "" && u.Path != "/" {
		return ValidationError{Field: field, Value: raw, Message: "must not contain a path; toolgate is served from the host root"}
	}

	switch u.Scheme {
	case "https":
		return nil
	case "http":
		if isLoopback(u.Hostname()) {
			return nil
		}
		return ValidationError{
			Field:   field,
			Value:   raw,
			Message: "must use https unless the host is localhost, 127.0.0.1 or ::1",
		}
	default:
		return ValidationError{Field: field, Value: raw, Message: fmt.Sprintf("has unsupported scheme %q", u.Scheme)}
	}
}

// ValidatePort checks that port is a usable TCP port number.
func ValidatePort(field string, port int) error {
	if port < 1 || port > 65535 {
		return ValidationError{Field: field, Value: port, Message: "must be between 1 and 65535"}
	}
	return nil
}

// reservedPaths are served by toolgate itself and cannot host the tool
// endpoint.
var reservedPaths = []string{
	"/health",
	"/metrics",
	DefaultCallbackPath,
	"/oauth/authorize",
	"/oauth/token",
	"/oauth/register",
	"/oauth/revoke",
}

// ValidateMCPPath checks that path is a clean absolute URL path that does
// not collide with a built-in route. It must be usable as an http.ServeMux
// pattern, so whitespace and wildcards are rejected.
func ValidateMCPPath(field, path string) error {
	if !strings.HasPrefix(path, "/") {
		return ValidationError{Field: field, Value: path, Message: "must start with '/'"}
	}
	if path == "/" {
		return ValidationError{Field: field, Value: path, Message: "must not be the server root"}
	}
	if strings.ContainsAny(path, "{}") || strings.IndexFunc(path, unicode.IsSpace) >= 0 {
		return ValidationError{Field: field, Value: path, Message: "must not contain whitespace or '{', '}'"}
	}

	u, err := url.Parse(path)
	if err != nil || u.Path != path || u.RawQuery != "" || u.Fragment != "" || u.Host != "" {
		return ValidationError{Field: field, Value: path, Message: "must be a plain URL path without query, fragment or escapes"}
	}
	if stdpath.Clean(path) != path {
		return ValidationError{Field: field, Value: path, Message: "must be a clean path without '.', '..', '//' or a trailing '/'"}
	}

	if path == "/.well-known" || strings.HasPrefix(path, "/.well-known/") {
		return ValidationError{Field: field, Value: path, Message: "must not be under /.well-known/"}
	}
	for _, reserved := range reservedPaths {
		if path == reserved {
			return ValidationError{Field: field, Value: path, Message: fmt.Sprintf("conflicts with the built-in %s endpoint", reserved)}
		}
	}
	return nil
}

func (cc ClientConfig) validate(field string) ValidationErrors {
	var errs ValidationErrors
	if strings.TrimSpace(cc.ID) == "" {
		errs.Add(field+".id", "is required")
	}
	if len(cc.RedirectURIs) == 0 {
		errs.Add(field+".redirectUris", "must list at least one redirect URI")
	}
	for i, raw := range cc.RedirectURIs {
		if msg := checkRedirectURI(raw); msg != "" {
			errs.Add(fmt.Sprintf("%s.redirectUris[%d]", field, i), msg, raw)
		}
	}
	return errs
}

// checkRedirectURI applies the rules dynamic registration enforces: an
// absolute URI without a fragment, with plain http only on loopback hosts.
func checkRedirectURI(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() {
		return "must be an absolute URI"
	}
	if u.Fragment != "" {
		return "must not contain a fragment"
	}
	if u.Scheme == "http" && !isLoopback(u.Hostname()) {
		return "must use https unless the host is localhost, 127.0.0.1 or ::1"
	}
	return ""
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// Validate checks every field and returns all problems at once.
func (c Config) Validate() ValidationErrors {
	var errs ValidationErrors

	if err := ValidateRequired(EnvClientID, c.ClientID); err != nil {
		errs = append(errs, err.(ValidationError))
	}
	if err := ValidateRequired(EnvClientSecret, c.ClientSecret); err != nil {
		errs = append(errs, err.(ValidationError))
	}
	if err := ValidateBaseURL(EnvBaseURL, c.BaseURL); err != nil {
		errs = append(errs, err.(ValidationError))
	}
	if err := ValidatePort(EnvPort, c.Port); err != nil {
		errs = append(errs, err.(ValidationError))
	}

	if err := ValidateMCPPath("mcpPath", c.MCPPath); err != nil {
		errs = append(errs, err.(ValidationError))
	}
	if c.AccessTokenTTL <= 0 {
		errs.Add("accessTokenTTL", "must be positive", c.AccessTokenTTL)
	}
	if c.RefreshTokenTTL <= 0 {
		errs.Add("refreshTokenTTL", "must be positive", c.RefreshTokenTTL)
	}
	if c.AuthorizationCodeTTL <= 0 {
		errs.Add("authorizationCodeTTL", "must be positive", c.AuthorizationCodeTTL)
	}
	if c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0 {
		errs.Add("rateLimit", "requestsPerSecond and burst must be positive", c.RateLimit)
	}
	if len(c.Scopes) == 0 {
		errs.Add("scopes", "must request at least one scope")
	}
	if c.PreRegisteredClient != nil {
		errs = append(errs, c.PreRegisteredClient.validate("preRegisteredClient")...)
	}

	return errs
}
