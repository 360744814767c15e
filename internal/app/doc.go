// Package app provides application bootstrap and lifecycle management for
// toolgate.
//
// # Startup
//
// NewApplication performs every step that can fail because of configuration
// before a socket is opened:
//
//  1. Logging is initialised from the debug flag and log format
//  2. Configuration is loaded (optional YAML file, then environment) and
//     validated; problems surface as *config.ConfigError
//  3. Built-in tools are registered and the registry is sealed
//  4. The auth provider, dispatcher and HTTP server are created
//
// # Running
//
// Run binds the listener exactly once (a failure is a *server.BindError) and
// serves until SIGINT, SIGTERM or context cancellation, then drains in-flight
// requests and stops the background token sweeps.
package app
