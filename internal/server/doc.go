// Package server is the HTTP transport of toolgate.
//
// A single mux serves:
//
//   - the MCP streamable HTTP endpoint (default /mcp), behind the bearer
//     token middleware of package auth
//   - the OAuth 2.1 authorization server endpoints and metadata documents
//   - /health and /metrics, unauthenticated
//
// Tool calls arriving on the MCP endpoint are bridged to the dispatcher,
// which authenticates, validates and executes them:
//
//	client ──▶ [ auth middleware ] ──▶ [ mcp-go server ] ──▶ [ dispatcher ] ──▶ tool
//
// Listen binds exactly once and reports a *BindError on failure. Serve runs
// until its context is cancelled and then drains in-flight requests.
package server
