package auth

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies authentication failures.
type Kind string

const (
	KindInvalidRequest     Kind = "invalid_request"
	KindInvalidCredentials Kind = "invalid_credentials"
	KindExpiredCode        Kind = "expired_code"
	KindNetworkFailure     Kind = "network_failure"
	KindInvalidToken       Kind = "invalid_token"
	KindExpiredToken       Kind = "expired_token"
	KindRateLimited        Kind = "rate_limited"
)

// RFC 6749 / RFC 6750 error codes written on the wire.
const (
	CodeInvalidRequest         = "invalid_request"
	CodeInvalidClient          = "invalid_client"
	CodeInvalidGrant           = "invalid_grant"
	CodeUnsupportedGrantType   = "unsupported_grant_type"
	CodeInvalidToken           = "invalid_token"
	CodeAccessDenied           = "access_denied"
	CodeTemporarilyUnavailable = "temporarily_unavailable"
	CodeSlowDown               = "slow_down"
	CodeInvalidRedirectURI     = "invalid_redirect_uri"
	CodeInvalidClientMetadata  = "invalid_client_metadata"
)

// Sentinel values for errors.Is. Only the Kind is compared.
var (
	ErrInvalidRequest     = &AuthError{Kind: KindInvalidRequest}
	ErrInvalidCredentials = &AuthError{Kind: KindInvalidCredentials}
	ErrExpiredCode        = &AuthError{Kind: KindExpiredCode}
	ErrNetworkFailure     = &AuthError{Kind: KindNetworkFailure}
	ErrInvalidToken       = &AuthError{Kind: KindInvalidToken}
	ErrExpiredToken       = &AuthError{Kind: KindExpiredToken}
	ErrRateLimited        = &AuthError{Kind: KindRateLimited}
)

// AuthError is returned by every Provider operation that fails.
type AuthError struct {
	Kind        Kind
	Description string
	// Code overrides the wire error code derived from Kind.
	Code string
	Err  error
}

func newAuthError(kind Kind, description string) *AuthError {
	return &AuthError{Kind: kind, Description: description}
}

func wrapAuthError(kind Kind, description string, err error) *AuthError {
	return &AuthError{Kind: kind, Description: description, Err: err}
}

func (e *AuthError) Error() string {
	msg := string(e.Kind)
	if e.Description != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Description)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// Is matches any *AuthError with the same Kind.
func (e *AuthError) Is(target error) bool {
	var t *AuthError
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// OAuthCode returns the error code sent to OAuth clients.
func (e *AuthError) OAuthCode() string {
	if e.Code != "" {
		return e.Code
	}
	switch e.Kind {
	case KindInvalidCredentials:
		return CodeInvalidClient
	case KindExpiredCode:
		return CodeInvalidGrant
	case KindNetworkFailure:
		return CodeTemporarilyUnavailable
	case KindInvalidToken, KindExpiredToken:
		return CodeInvalidToken
	case KindRateLimited:
		return CodeSlowDown
	default:
		return CodeInvalidRequest
	}
}

// HTTPStatus returns the status code used when the error is written to an
// HTTP response.
func (e *AuthError) HTTPStatus() int {
	switch e.OAuthCode() {
	case CodeInvalidClient, CodeInvalidToken:
		return http.StatusUnauthorized
	case CodeTemporarilyUnavailable:
		return http.StatusServiceUnavailable
	case CodeSlowDown:
		return http.StatusTooManyRequests
	default:
		return http.StatusBadRequest
	}
}

// AsAuthError converts any error into an *AuthError, treating unknown
// errors as upstream failures.
func AsAuthError(err error) *AuthError {
	if err == nil {
		return nil
	}
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae
	}
	return wrapAuthError(KindNetworkFailure, "unexpected error", err)
}
