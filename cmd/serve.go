package cmd

import (
	"context"
	"fmt"

	"toolgate/internal/app"
	"toolgate/pkg/logging"

	"github.com/spf13/cobra"
)

// serveDebug enables verbose logging across the application.
var serveDebug bool

// serveLogFormat selects "text" or "json" log output.
var serveLogFormat string

// serveConfigPath points to an optional YAML configuration file. Environment
// variables override values from the file.
var serveConfigPath string

// serveCmd starts the tool server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the toolgate MCP server",
	Long: `Starts the MCP tool server and its OAuth 2.1 authorization endpoints.

Configuration is read from the environment:
  GOOGLE_CLIENT_ID      Google OAuth client ID (required)
  GOOGLE_CLIENT_SECRET  Google OAuth client secret (required)
  BASE_URL              Public URL of this server, e.g. https://tools.example.com (required)
  PORT                  Listen port (default 8080)
  HOST                  Listen address (default 0.0.0.0)

Use --config to load a YAML file first; environment variables take precedence.

Exit codes: 0 on graceful shutdown, 2 on configuration errors, 3 when the
listen address cannot be bound, 1 otherwise.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

// runServe is the main entry point for the serve command
func runServe(cmd *cobra.Command, args []string) error {
	format, err := logging.ParseFormat(serveLogFormat)
	if err != nil {
		return err
	}

	cfg := app.NewConfig(serveDebug, format, serveConfigPath)
	cfg.Version = GetVersion()

	application, err := app.NewApplication(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return application.Run(ctx)
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "Enable debug logging")
	serveCmd.Flags().StringVar(&serveLogFormat, "log-format", "text", "Log output format (text or json)")
	serveCmd.Flags().StringVar(&serveConfigPath, "config", "", "Path to a YAML configuration file")
}
