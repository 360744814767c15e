package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"toolgate/pkg/logging"
)

type contextKey int

const (
	identityContextKey contextKey = iota
	bearerContextKey
)

// WithIdentity returns a context carrying the authenticated identity.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, id)
}

// IdentityFromContext returns the identity set by Middleware.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityContextKey).(*Identity)
	return id, ok && id != nil
}

// WithBearer returns a context carrying the raw bearer credential.
func WithBearer(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, bearerContextKey, token)
}

// BearerFromContext returns the bearer credential set by Middleware.
func BearerFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(bearerContextKey).(string)
	return token, ok && token != ""
}

// BearerToken extracts the credential from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// BearerChallenge formats a WWW-Authenticate value per RFC 6750 and RFC 9728.
// errCode is omitted when the request carried no credential.
func BearerChallenge(resourceMetadataURL, errCode, description string) string {
	var b strings.Builder
	fmt.Fprintf(&b, `Bearer resource_metadata="%s"`, resourceMetadataURL)
	if errCode != "" {
		fmt.Fprintf(&b, `, error="%s"`, errCode)
	}
	if description != "" {
		fmt.Fprintf(&b, `, error_description="%s"`, strings.ReplaceAll(description, `"`, `'`))
	}
	return b.String()
}

// Middleware rejects requests without a valid bearer token with 401 and a
// challenge pointing at the protected resource metadata. Accepted requests
// carry the Identity and the bearer in their context.
func (h *Handler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := BearerToken(r)
		if !ok {
			h.unauthorized(w, newAuthError(KindInvalidToken, "missing bearer token"), false)
			return
		}

		identity, err := h.provider.Validate(r.Context(), token)
		if err != nil {
			h.provider.metrics.observeFailure("validate", err)
			logging.Debug("Auth", "Rejected bearer token %s: %v", logging.Redact(token), err)
			h.unauthorized(w, AsAuthError(err), true)
			return
		}

		ctx := WithBearer(WithIdentity(r.Context(), identity), token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) unauthorized(w http.ResponseWriter, ae *AuthError, presented bool) {
	errCode, description := "", ""
	if presented {
		errCode, description = ae.OAuthCode(), ae.Description
	}
	w.Header().Set("WWW-Authenticate", BearerChallenge(h.provider.ResourceMetadataURL(), errCode, description))
	writeJSON(w, http.StatusUnauthorized, ErrorResponse{
		Error:            CodeInvalidToken,
		ErrorDescription: ae.Description,
	})
}
