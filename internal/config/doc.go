// Package config loads and validates toolgate's startup configuration.
//
// Configuration comes from three layers, later layers winning:
//
//  1. Built-in defaults (Default)
//  2. An optional YAML file passed with --config
//  3. Environment variables: GOOGLE_CLIENT_ID, GOOGLE_CLIENT_SECRET,
//     BASE_URL, PORT and HOST
//
// Example config.yaml:
//
//	baseUrl: https://tools.example.com
//	port: 8443
//	accessTokenTTL: 30m
//	rateLimit:
//	  requestsPerSecond: 5
//	  burst: 10
//
// Load validates the merged result and returns a *ConfigError describing
// every problem at once. A ConfigError is fatal; callers must exit before
// opening any listener.
//
// The returned Config is a value and is never mutated after startup.
package config
