// Package auth implements toolgate's OAuth 2.1 authorization server.
//
// toolgate does not authenticate users itself. It proxies login to Google and
// issues its own opaque bearer tokens to MCP clients, so Google tokens never
// leave the process.
//
// # Login flow
//
//  1. The client registers (RFC 7591) or uses a pre-registered client ID
//  2. The client sends the user agent to /oauth/authorize with a PKCE S256 challenge
//  3. toolgate stores a Pending flow and redirects to Google with its own PKCE verifier
//  4. Google redirects to /oauth/callback; the flow moves to CodeIssued and the
//     user agent is sent back to the client with a toolgate authorization code
//  5. The client redeems the code at /oauth/token (Provider.Authorize). The code is
//     consumed, the client and verifier are checked, the Google code is exchanged,
//     and a Token is issued
//
// Flows, codes and tokens are single-use or expiring and live only in memory.
// A restart invalidates every token.
//
// # Components
//
//   - Provider: Authorize, Validate, Refresh, Revoke and the metadata documents
//   - FlowStore: the Pending → CodeIssued → Exchanged state machine
//   - TokenStore: issued tokens indexed by access and refresh token
//   - ClientStore: registered OAuth clients
//   - Upstream / GoogleUpstream: the golang.org/x/oauth2 exchange with Google
//   - Handler: the HTTP endpoints and the bearer Middleware
//
// # Errors
//
// Every failure is an *AuthError. Its Kind is what callers branch on; its
// OAuthCode and HTTPStatus are what the token endpoint writes.
package auth
