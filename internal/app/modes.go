package app

import (
	"context"
	"os/signal"
	"syscall"

	"toolgate/pkg/logging"
)

// runServer binds the listener once and serves until SIGINT, SIGTERM or
// cancellation of ctx, then shuts down gracefully.
func runServer(ctx context.Context, services *Services) error {
	defer services.Close()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := services.Server.Listen(); err != nil {
		logging.Error("Server", err, "Failed to bind listener")
		return err
	}

	logging.Info("Server", "Serving %s. Press Ctrl+C to stop.", services.Config.ResourceURL())

	if err := services.Server.Serve(ctx); err != nil {
		logging.Error("Server", err, "Server stopped with error")
		return err
	}

	logging.Info("Server", "Shutdown complete")
	return nil
}
