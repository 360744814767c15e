package cmd

import (
	"errors"
	"fmt"
	"os"

	"toolgate/internal/config"
	"toolgate/internal/server"

	"github.com/spf13/cobra"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates a clean run or graceful shutdown.
	ExitCodeSuccess = 0
	// ExitCodeError indicates any other failure.
	ExitCodeError = 1
	// ExitCodeConfigError indicates the configuration could not be loaded or validated.
	ExitCodeConfigError = 2
	// ExitCodeBindError indicates the listen address could not be bound.
	ExitCodeBindError = 3
)

// rootCmd represents the base command for the toolgate application.
var rootCmd = &cobra.Command{
	Use:   "toolgate",
	Short: "MCP tool server behind Google-backed OAuth 2.1",
	Long: `toolgate serves MCP tools over streamable HTTP. Every tool call must carry
a bearer token issued by toolgate's own OAuth 2.1 authorization server, which
signs users in through Google.`,
	// SilenceUsage prevents Cobra from printing the usage message on errors that are handled by the application.
	SilenceUsage: true,
}

// SetVersion sets the version for the root command.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute runs the root command and exits with a code derived from the error.
// This function is called by main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "toolgate version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		var cfgErr *config.ConfigError
		if errors.As(err, &cfgErr) {
			fmt.Fprintln(os.Stderr, cfgErr.DetailedError())
		}
		os.Exit(getExitCode(err))
	}
}

// getExitCode maps an error to the exit code scripts can rely on.
func getExitCode(err error) int {
	if err == nil {
		return ExitCodeSuccess
	}

	var cfgErr *config.ConfigError
	if errors.As(err, &cfgErr) {
		return ExitCodeConfigError
	}

	var bindErr *server.BindError
	if errors.As(err, &bindErr) {
		return ExitCodeBindError
	}

	return ExitCodeError
}

func init() {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newToolsCmd())
}
