package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"toolgate/pkg/logging"

	"gopkg.in/yaml.v3"
)

// EnvLookup reads one environment variable. os.LookupEnv satisfies it.
type EnvLookup func(key string) (string, bool)

// Load builds the startup configuration. Defaults are applied first, then the
// YAML file at path (if path is not empty), then environment variables.
// Any problem is reported as a *ConfigError listing every offending field.
func Load(path string, lookup EnvLookup) (Config, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	cfg := Default()

	if path != "" {
		// #nosec G304 -- path is an operator-supplied flag, not user input
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, &ConfigError{FilePath: path, Err: err}
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, &ConfigError{FilePath: path, Err: fmt.Errorf("malformed YAML: %w", err)}
		}
		logging.Info("Config", "Loaded configuration from %s", path)
	}

	var problems ValidationErrors
	applyEnv(&cfg, lookup, &problems)

	problems = append(problems, cfg.Validate()...)
	if problems.HasErrors() {
		return Config{}, &ConfigError{FilePath: path, Problems: problems}
	}

	return cfg, nil
}

// applyEnv overlays environment variables onto cfg. Unparsable values are
// recorded in problems instead of silently falling back to defaults.
func applyEnv(cfg *Config, lookup EnvLookup, problems *ValidationErrors) {
	if v, ok := lookup(EnvClientID); ok {
		cfg.ClientID = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvClientSecret); ok {
		cfg.ClientSecret = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvBaseURL); ok {
		cfg.BaseURL = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvHost); ok && strings.TrimSpace(v) != "" {
		cfg.Host = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvPort); ok && strings.TrimSpace(v) != "" {
		port, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			problems.Add(EnvPort, "must be an integer", v)
			return
		}
		cfg.Port = port
	}
}
