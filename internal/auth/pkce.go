package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"

	"golang.org/x/oauth2"
)

const (
	// PKCEMethodS256 is the only code challenge method accepted.
	PKCEMethodS256 = "S256"

	// secretBytes is the entropy of every opaque value toolgate mints
	// (state, authorization codes, access and refresh tokens, client secrets).
	// 32 bytes encodes to 43 base64url characters.
	secretBytes = 32

	minVerifierLength = 43
	maxVerifierLength = 128
)

// randomSecret returns a base64url-encoded random string.
func randomSecret() (string, error) {
	b := make([]byte, secretBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// ValidateCodeChallenge checks an authorization request's PKCE parameters.
// Only S256 is accepted; plain is rejected as OAuth 2.1 requires.
func ValidateCodeChallenge(challenge, method string) error {
	if challenge == "" {
		return newAuthError(KindInvalidRequest, "code_challenge is required")
	}
	if method != PKCEMethodS256 {
		return newAuthError(KindInvalidRequest, "code_challenge_method must be S256")
	}
	// A S256 challenge is a base64url SHA-256 digest: 43 characters.
	if len(challenge) != 43 || !isUnreserved(challenge) {
		return newAuthError(KindInvalidRequest, "code_challenge is malformed")
	}
	return nil
}

// VerifyPKCE reports whether verifier hashes to challenge under S256.
func VerifyPKCE(verifier, challenge string) bool {
	if len(verifier) < minVerifierLength || len(verifier) > maxVerifierLength || !isUnreserved(verifier) {
		return false
	}
	computed := oauth2.S256ChallengeFromVerifier(verifier)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(challenge)) == 1
}

// isUnreserved reports whether s only contains RFC 3986 unreserved characters.
func isUnreserved(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		case c == '-', c == '.', c == '_', c == '~':
		default:
			return false
		}
	}
	return true
}
