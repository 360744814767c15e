package auth

import (
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strings"

	"toolgate/pkg/logging"
)

// maxRequestBody bounds JSON and form bodies accepted by the OAuth endpoints.
const maxRequestBody = 64 << 10

// Handler serves the OAuth 2.1 endpoints of a Provider.
type Handler struct {
	provider *Provider
	limiter  *IPRateLimiter
}

// NewHandler creates the HTTP surface for p.
func NewHandler(p *Provider) *Handler {
	return &Handler{
		provider: p,
		limiter:  NewIPRateLimiter(p.cfg.RateLimit, p.now),
	}
}

// Register mounts every OAuth endpoint on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	// Protected Resource Metadata endpoint (RFC 9728), with and without the
	// resource path suffix.
	mux.HandleFunc(PathProtectedResourceMetadata, h.ServeProtectedResourceMetadata)
	mux.HandleFunc(PathProtectedResourceMetadata+h.provider.cfg.MCPPath, h.ServeProtectedResourceMetadata)

	// Authorization Server Metadata endpoint (RFC 8414)
	mux.HandleFunc(PathAuthorizationServerMetadata, h.ServeAuthorizationServerMetadata)

	// Dynamic Client Registration endpoint (RFC 7591)
	mux.HandleFunc(PathRegister, h.ServeClientRegistration)

	mux.HandleFunc(PathAuthorize, h.ServeAuthorization)
	mux.HandleFunc(PathCallback, h.ServeCallback)
	mux.HandleFunc(PathToken, h.ServeToken)

	// Token Revocation endpoint (RFC 7009)
	mux.HandleFunc(PathRevoke, h.ServeRevocation)

	logging.Info("Auth", "Registered OAuth 2.1 endpoints")
}

// ServeAuthorizationServerMetadata writes the RFC 8414 document.
func (h *Handler) ServeAuthorizationServerMetadata(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	writeJSON(w, http.StatusOK, h.provider.Metadata())
}

// ServeProtectedResourceMetadata writes the RFC 9728 document.
func (h *Handler) ServeProtectedResourceMetadata(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	writeJSON(w, http.StatusOK, h.provider.ProtectedResourceMetadata())
}

// ServeClientRegistration handles RFC 7591 dynamic client registration.
func (h *Handler) ServeClientRegistration(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodPost) || !h.allow(w, r) {
		return
	}

	var md ClientMetadata
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(&md); err != nil {
		writeOAuthError(w, &AuthError{Kind: KindInvalidRequest, Code: CodeInvalidClientMetadata, Description: "body must be a JSON client metadata document"})
		return
	}

	client, err := h.provider.RegisterClient(md)
	if err != nil {
		writeOAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, client.Metadata())
}

// ServeAuthorization validates the client's request and redirects the user
// agent to the upstream login page.
func (h *Handler) ServeAuthorization(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) || !h.allowPage(w, r) {
		return
	}

	q := r.URL.Query()
	req := AuthorizationRequest{
		ResponseType:        q.Get("response_type"),
		ClientID:            q.Get("client_id"),
		RedirectURI:         q.Get("redirect_uri"),
		State:               q.Get("state"),
		Scope:               q.Get("scope"),
		CodeChallenge:       q.Get("code_challenge"),
		CodeChallengeMethod: q.Get("code_challenge_method"),
	}

	// Without a verified client and redirect URI the error is shown here,
	// never redirected.
	if err := h.provider.CheckClientRedirect(req.ClientID, req.RedirectURI); err != nil {
		logging.Warn("Auth", "Rejected authorization request for client=%s: %v", req.ClientID, err)
		renderErrorPage(w, http.StatusBadRequest, AsAuthError(err).Description)
		return
	}

	target, err := h.provider.BeginAuthorization(r.Context(), req)
	if err != nil {
		ae := AsAuthError(err)
		logging.Warn("Auth", "Authorization request failed for client=%s: %v", req.ClientID, ae)
		http.Redirect(w, r, clientRedirect(req.RedirectURI, url.Values{
			"error":             {ae.OAuthCode()},
			"error_description": {ae.Description},
			"state":             {req.State},
		}), http.StatusFound)
		return
	}

	http.Redirect(w, r, target, http.StatusFound)
}

// ServeCallback receives the upstream redirect and forwards the user agent
// back to the client with a toolgate authorization code.
func (h *Handler) ServeCallback(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) || !h.allowPage(w, r) {
		return
	}

	q := r.URL.Query()
	upstreamErr := q.Get("error")
	if upstreamErr != "" && q.Get("error_description") != "" {
		upstreamErr = upstreamErr + ": " + q.Get("error_description")
	}

	target, err := h.provider.CompleteUpstream(r.Context(), q.Get("state"), q.Get("code"), upstreamErr)
	if err != nil {
		logging.Warn("Auth", "OAuth callback rejected: %v", err)
		renderErrorPage(w, http.StatusBadRequest, "Authentication session expired or invalid. Please try again.")
		return
	}

	http.Redirect(w, r, target, http.StatusFound)
}

// ServeToken handles the authorization_code and refresh_token grants.
func (h *Handler) ServeToken(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodPost) || !h.allow(w, r) {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := r.ParseForm(); err != nil {
		writeOAuthError(w, newAuthError(KindInvalidRequest, "malformed form body"))
		return
	}
	clientID, clientSecret := clientCredentials(r)

	var (
		token *Token
		err   error
	)
	switch grant := r.PostForm.Get("grant_type"); grant {
	case GrantAuthorizationCode:
		token, err = h.provider.Authorize(r.Context(), AuthorizeRequest{
			Code:         r.PostForm.Get("code"),
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURI:  r.PostForm.Get("redirect_uri"),
			CodeVerifier: r.PostForm.Get("code_verifier"),
		})
	case GrantRefreshToken:
		token, err = h.provider.Refresh(r.Context(), RefreshRequest{
			RefreshToken: r.PostForm.Get("refresh_token"),
			ClientID:     clientID,
			ClientSecret: clientSecret,
		})
	case "":
		err = newAuthError(KindInvalidRequest, "grant_type is required")
	default:
		err = &AuthError{Kind: KindInvalidRequest, Code: CodeUnsupportedGrantType, Description: fmt.Sprintf("grant_type %q is not supported", grant)}
	}
	if err != nil {
		writeOAuthError(w, err)
		return
	}

	w.Header().Set("Pragma", "no-cache")
	writeJSON(w, http.StatusOK, token.Response(h.provider.Now()))
}

// ServeRevocation handles RFC 7009 token revocation.
func (h *Handler) ServeRevocation(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodPost) || !h.allow(w, r) {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := r.ParseForm(); err != nil {
		writeOAuthError(w, newAuthError(KindInvalidRequest, "malformed form body"))
		return
	}
	clientID, clientSecret := clientCredentials(r)

	if err := h.provider.Revoke(r.Context(), RevokeRequest{
		Token:        r.PostForm.Get("token"),
		ClientID:     clientID,
		ClientSecret: clientSecret,
	}); err != nil {
		writeOAuthError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// allow applies the per-IP limiter and writes a 429 when it trips.
func (h *Handler) allow(w http.ResponseWriter, r *http.Request) bool {
	if h.admit(w, r) {
		return true
	}
	writeOAuthError(w, newAuthError(KindRateLimited, "too many requests"))
	return false
}

// allowPage is allow for the browser-facing endpoints, which answer with an
// HTML page instead of a JSON error.
func (h *Handler) allowPage(w http.ResponseWriter, r *http.Request) bool {
	if h.admit(w, r) {
		return true
	}
	renderErrorPage(w, http.StatusTooManyRequests, "Too many sign-in attempts. Please wait a moment and try again.")
	return false
}

func (h *Handler) admit(w http.ResponseWriter, r *http.Request) bool {
	if h.limiter.Allow(clientIP(r)) {
		return true
	}
	h.provider.metrics.observeRateLimited()
	w.Header().Set("Retry-After", "1")
	return false
}

// clientCredentials reads client_secret_basic, falling back to
// client_secret_post and public clients.
func clientCredentials(r *http.Request) (string, string) {
	if id, secret, ok := r.BasicAuth(); ok {
		// RFC 6749 2.3.1: credentials are form-urlencoded before Basic encoding.
		if uid, err := url.QueryUnescape(id); err == nil {
			id = uid
		}
		if usecret, err := url.QueryUnescape(secret); err == nil {
			secret = usecret
		}
		return id, secret
	}
	return r.PostForm.Get("client_id"), r.PostForm.Get("client_secret")
}

func allowMethods(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	w.Header().Set("Allow", strings.Join(methods, ", "))
	http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("Auth", err, "Failed to write JSON response")
	}
}

// writeOAuthError writes err as an RFC 6749 error response.
func writeOAuthError(w http.ResponseWriter, err error) {
	ae := AsAuthError(err)
	if ae.Kind == KindNetworkFailure {
		logging.Error("Auth", ae, "Upstream failure")
	}
	writeJSON(w, ae.HTTPStatus(), ErrorResponse{
		Error:            ae.OAuthCode(),
		ErrorDescription: ae.Description,
	})
}

// setSecurityHeaders sets recommended security headers for HTML responses.
// These headers help prevent XSS, clickjacking, and MIME sniffing attacks.
func setSecurityHeaders(w http.ResponseWriter) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Content-Security-Policy", "default-src 'none'; style-src 'unsafe-inline'")
	w.Header().Set("Referrer-Policy", "no-referrer")
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
}

// renderErrorPage renders a minimal HTML error page for the browser-facing
// endpoints.
func renderErrorPage(w http.ResponseWriter, status int, message string) {
	setSecurityHeaders(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)

	_, _ = fmt.Fprintf(w, `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>Authentication Failed - toolgate</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; margin: 4rem auto; max-width: 36rem; color: #222; }
        h1 { font-size: 1.5rem; color: #b00020; }
    </style>
</head>
<body>
    <h1>Authentication Failed</h1>
    <p>%s</p>
    <p>You can close this window and try again from your MCP client.</p>
</body>
</html>`, html.EscapeString(message))
}
