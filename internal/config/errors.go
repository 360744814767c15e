package config

import (
	"fmt"
	"strings"
)

// ConfigError is returned by Load when the configuration cannot be used.
// It is fatal: the process must not open a listener after receiving one.
type ConfigError struct {
	// FilePath is the configuration file involved, if any.
	FilePath string
	// Problems lists every validation failure found.
	Problems ValidationErrors
	// Err is an underlying read or parse error.
	Err error
}

// Error implements the error interface
func (ce *ConfigError) Error() string {
	var b strings.Builder
	b.WriteString("invalid configuration")
	if ce.FilePath != "" {
		fmt.Fprintf(&b, " in %s", ce.FilePath)
	}
	if ce.Err != nil {
		fmt.Fprintf(&b, ": %v", ce.Err)
	}
	if ce.Problems.HasErrors() {
		fmt.Fprintf(&b, ": %v", ce.Problems)
	}
	return b.String()
}

func (ce *ConfigError) Unwrap() error {
	if ce.Err != nil {
		return ce.Err
	}
	if ce.Problems.HasErrors() {
		return ce.Problems
	}
	return nil
}

// DetailedError returns a multi-line report suitable for printing on exit.
func (ce *ConfigError) DetailedError() string {
	parts := []string{"Configuration error"}
	if ce.FilePath != "" {
		parts = append(parts, fmt.Sprintf("  File: %s", ce.FilePath))
	}
	if ce.Err != nil {
		parts = append(parts, fmt.Sprintf("  Error: %v", ce.Err))
	}
	for _, p := range ce.Problems {
		parts = append(parts, fmt.Sprintf("  - %s", p.Error()))
	}
	return strings.Join(parts, "\n")
}
