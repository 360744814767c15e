package app

import (
	"fmt"

	"toolgate/internal/auth"
	"toolgate/internal/config"
	"toolgate/internal/dispatcher"
	"toolgate/internal/registry"
	"toolgate/internal/server"
	"toolgate/internal/tools"
	"toolgate/pkg/logging"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Services holds the components wired together at startup.
//
// Dependencies are built leaves first: the tool registry and the auth
// provider, then the dispatcher that uses both, then the transport.
type Services struct {
	Config     config.Config
	Metrics    *prometheus.Registry
	Registry   *registry.Registry
	Provider   *auth.Provider
	Dispatcher *dispatcher.Dispatcher
	Server     *server.Server
}

// InitializeServices builds every component from a validated configuration.
// No listener is opened here.
func InitializeServices(cfg config.Config) (*Services, error) {
	metrics := prometheus.NewRegistry()
	metrics.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	reg := registry.New()
	if err := tools.RegisterBuiltins(reg); err != nil {
		return nil, fmt.Errorf("failed to register built-in tools: %w", err)
	}
	reg.Seal()

	provider := auth.NewProvider(cfg, auth.Options{
		Clients:    preRegisteredClients(cfg),
		Registerer: metrics,
	})
	d := dispatcher.New(reg, provider, dispatcher.Options{Registerer: metrics})

	srv, err := server.New(cfg, auth.NewHandler(provider), d, reg, server.Options{Gatherer: metrics})
	if err != nil {
		provider.Close()
		return nil, fmt.Errorf("failed to create server: %w", err)
	}

	logging.Info("Bootstrap", "Initialized %d tools", reg.Len())

	return &Services{
		Config:     cfg,
		Metrics:    metrics,
		Registry:   reg,
		Provider:   provider,
		Dispatcher: d,
		Server:     srv,
	}, nil
}

func preRegisteredClients(cfg config.Config) []*auth.Client {
	cc := cfg.PreRegisteredClient
	if cc == nil {
		return nil
	}
	logging.Info("Bootstrap", "Pre-registering OAuth client %s", cc.ID)
	return []*auth.Client{{
		ID:           cc.ID,
		Name:         cc.Name,
		Secret:       cc.Secret,
		RedirectURIs: append([]string(nil), cc.RedirectURIs...),
	}}
}

// Close releases background resources.
func (s *Services) Close() {
	s.Provider.Close()
}
