package app

import (
	"io"

	"toolgate/internal/config"
	"toolgate/pkg/logging"
)

// Config holds the application configuration
type Config struct {
	// Debug enables debug logging.
	Debug bool

	// LogFormat selects text or JSON log output.
	LogFormat logging.Format

	// LogOutput receives log output. Defaults to stdout.
	LogOutput io.Writer

	// ConfigPath is an optional YAML file loaded before the environment.
	ConfigPath string

	// Env reads environment variables. Defaults to os.LookupEnv.
	Env config.EnvLookup

	// Version is reported to MCP clients when not empty.
	Version string

	// ServerConfig is the loaded server configuration. When set, loading is
	// skipped.
	ServerConfig *config.Config
}

// NewConfig creates a new application configuration
func NewConfig(debug bool, logFormat logging.Format, configPath string) *Config {
	return &Config{
		Debug:      debug,
		LogFormat:  logFormat,
		ConfigPath: configPath,
	}
}
