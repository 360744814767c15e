package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

// fakeGoogle serves the token and userinfo endpoints used by GoogleUpstream.
func fakeGoogle(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())

		w.Header().Set("Content-Type", "application/json")
		switch r.PostForm.Get("code") {
		case "good":
			if r.PostForm.Get("code_verifier") == "" || r.PostForm.Get("client_secret") != "google-secret" {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"invalid_request"}`))
				return
			}
			_, _ = w.Write([]byte(`{"access_token":"google-access","token_type":"Bearer","expires_in":3600}`))
		case "used":
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Bad Request"}`))
		case "badclient":
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"invalid_client"}`))
		case "unauthorized":
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"unauthorized_client"}`))
		case "refused":
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"access_denied"}`))
		default:
			w.Header().Set("Content-Type", "text/plain")
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte("backend error"))
		}
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer google-access" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(UserInfo{Subject: "1234567890", Email: "user@example.com", EmailVerified: true, Name: "Test User"})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestGoogleUpstream(srv *httptest.Server) *GoogleUpstream {
	return NewGoogleUpstream(GoogleConfig{
		ClientID:     "google-client",
		ClientSecret: "google-secret",
		RedirectURL:  "https://tools.example.com/oauth/callback",
		Scopes:       []string{"openid", "email"},
		Endpoint: oauth2.Endpoint{
			AuthURL:   srv.URL + "/auth",
			TokenURL:  srv.URL + "/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
		UserInfoURL: srv.URL + "/userinfo",
		HTTPClient:  srv.Client(),
	})
}

func TestGoogleUpstream_AuthCodeURL(t *testing.T) {
	up := NewGoogleUpstream(GoogleConfig{
		ClientID:    "google-client",
		RedirectURL: "https://tools.example.com/oauth/callback",
		Scopes:      []string{"openid", "email"},
	})
	verifier := oauth2.GenerateVerifier()

	u, err := url.Parse(up.AuthCodeURL("state-1", verifier))
	require.NoError(t, err)

	assert.Equal(t, "accounts.google.com", u.Host)
	q := u.Query()
	assert.Equal(t, "state-1", q.Get("state"))
	assert.Equal(t, "google-client", q.Get("client_id"))
	assert.Equal(t, "https://tools.example.com/oauth/callback", q.Get("redirect_uri"))
	assert.Equal(t, "openid email", q.Get("scope"))
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
	assert.Equal(t, oauth2.S256ChallengeFromVerifier(verifier), q.Get("code_challenge"))
}

func TestGoogleUpstream_ExchangeAndUserInfo(t *testing.T) {
	up := newTestGoogleUpstream(fakeGoogle(t))

	tok, err := up.Exchange(context.Background(), "good", oauth2.GenerateVerifier())
	require.NoError(t, err)
	assert.Equal(t, "google-access", tok.AccessToken)

	info, err := up.UserInfo(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, "1234567890", info.Subject)
	assert.Equal(t, "user@example.com", info.Email)
	assert.True(t, info.EmailVerified)
}

func TestGoogleUpstream_ExchangeErrors(t *testing.T) {
	tests := []struct {
		code       string
		wantKind   error
		wantOAuth  string
		wantStatus int
	}{
		{"used", ErrExpiredCode, CodeInvalidGrant, http.StatusBadRequest},
		{"badclient", ErrNetworkFailure, CodeTemporarilyUnavailable, http.StatusServiceUnavailable},
		{"unauthorized", ErrNetworkFailure, CodeTemporarilyUnavailable, http.StatusServiceUnavailable},
		{"refused", ErrExpiredCode, CodeInvalidGrant, http.StatusBadRequest},
		{"explode", ErrNetworkFailure, CodeTemporarilyUnavailable, http.StatusServiceUnavailable},
	}

	up := newTestGoogleUpstream(fakeGoogle(t))
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			_, err := up.Exchange(context.Background(), tt.code, oauth2.GenerateVerifier())
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantKind)
			assert.NotErrorIs(t, err, ErrInvalidCredentials, "upstream failures never blame the MCP client")

			ae := AsAuthError(err)
			assert.Equal(t, tt.wantOAuth, ae.OAuthCode())
			assert.Equal(t, tt.wantStatus, ae.HTTPStatus())
		})
	}
}

func TestGoogleUpstream_Unreachable(t *testing.T) {
	srv := fakeGoogle(t)
	up := newTestGoogleUpstream(srv)
	srv.Close()

	_, err := up.Exchange(context.Background(), "good", oauth2.GenerateVerifier())
	assert.ErrorIs(t, err, ErrNetworkFailure)
}

func TestGoogleUpstream_UserInfoRejected(t *testing.T) {
	up := newTestGoogleUpstream(fakeGoogle(t))

	_, err := up.UserInfo(context.Background(), &oauth2.Token{AccessToken: "stale", TokenType: "Bearer"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExpiredCode)
	assert.Equal(t, CodeInvalidGrant, AsAuthError(err).OAuthCode())
	assert.Equal(t, http.StatusBadRequest, AsAuthError(err).HTTPStatus())
}

func TestGoogleUpstream_CancelledContext(t *testing.T) {
	up := newTestGoogleUpstream(fakeGoogle(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := up.Exchange(ctx, "good", oauth2.GenerateVerifier())
	assert.ErrorIs(t, err, ErrNetworkFailure)
	assert.ErrorIs(t, err, context.Canceled)
}
