// Package logging provides the subsystem logger used across toolgate.
//
// It is a thin layer over the standard slog package. Every entry carries a
// subsystem attribute so output can be filtered by component, and messages use
// printf-style formatting.
//
// # Usage
//
//	logging.Init(logging.LevelInfo, logging.FormatText, os.Stdout)
//
//	logging.Info("Bootstrap", "Listening on %s", addr)
//	logging.Debug("Auth", "Issued token %s", logging.Redact(token))
//	logging.Error("Dispatcher", err, "Tool %s failed", name)
//
// # Subsystems
//
//   - Bootstrap: startup and shutdown
//   - Config: configuration loading
//   - Auth: OAuth flows and token validation
//   - Registry: tool registration
//   - Dispatcher: tool invocations
//   - Server: HTTP listener and MCP transport
//
// Credentials must only be logged through Redact.
//
// Init also installs the logger as slog's default, so libraries that log via
// slog share the same handler and level.
package logging
