package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"toolgate/internal/config"
	"toolgate/pkg/logging"
)

// Application bootstraps and runs toolgate.
//
// Initialization is two-phase:
//  1. NewApplication: configure logging, load and validate configuration,
//     build the registry, auth provider, dispatcher and server
//  2. Run: bind the listener and serve until shutdown
//
// Example usage:
//
//	cfg := app.NewConfig(false, logging.FormatText, "")
//	application, err := app.NewApplication(cfg)
//	if err != nil {
//	    return err
//	}
//	return application.Run(ctx)
type Application struct {
	config   *Config
	services *Services
}

// NewApplication creates a new application instance. A configuration error is
// returned as a *config.ConfigError before any listener exists.
func NewApplication(cfg *Config) (*Application, error) {
	level := logging.LevelInfo
	if cfg.Debug {
		level = logging.LevelDebug
	}
	var logOutput io.Writer = os.Stdout
	if cfg.LogOutput != nil {
		logOutput = cfg.LogOutput
	}
	logging.Init(level, cfg.LogFormat, logOutput)

	if cfg.ServerConfig == nil {
		serverCfg, err := config.Load(cfg.ConfigPath, cfg.Env)
		if err != nil {
			logging.Error("Bootstrap", err, "Failed to load configuration")
			return nil, err
		}
		cfg.ServerConfig = &serverCfg
	} else if problems := cfg.ServerConfig.Validate(); problems.HasErrors() {
		return nil, &config.ConfigError{Problems: problems}
	}

	if cfg.Version != "" {
		cfg.ServerConfig.ServerVersion = cfg.Version
	}

	services, err := InitializeServices(*cfg.ServerConfig)
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to initialize services")
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	return &Application{
		config:   cfg,
		services: services,
	}, nil
}

// Services exposes the wired components.
func (a *Application) Services() *Services {
	return a.services
}

// Run serves until the process is signalled or ctx is cancelled.
func (a *Application) Run(ctx context.Context) error {
	return runServer(ctx, a.services)
}
