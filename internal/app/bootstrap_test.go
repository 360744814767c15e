package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"toolgate/internal/config"
	"toolgate/internal/server"
	"toolgate/pkg/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envLookup(vars map[string]string) config.EnvLookup {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func testAppConfig(env map[string]string) *Config {
	cfg := NewConfig(false, logging.FormatText, "")
	cfg.LogOutput = io.Discard
	cfg.Env = envLookup(env)
	return cfg
}

func TestNewApplication_InvalidConfiguration(t *testing.T) {
	cfg := testAppConfig(map[string]string{
		config.EnvClientID: "id",
		config.EnvBaseURL:  "not a url",
		config.EnvPort:     "eighty",
	})

	application, err := NewApplication(cfg)
	require.Error(t, err)
	assert.Nil(t, application)

	var cfgErr *config.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.ElementsMatch(t,
		[]string{config.EnvClientSecret, config.EnvBaseURL, config.EnvPort},
		cfgErr.Problems.Fields())
}

func TestNewApplication_PreloadedConfigIsValidated(t *testing.T) {
	serverCfg := config.Default()
	cfg := testAppConfig(nil)
	cfg.ServerConfig = &serverCfg

	_, err := NewApplication(cfg)
	var cfgErr *config.ConfigError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestApplication_RunAndShutdown(t *testing.T) {
	port := freePort(t)
	cfg := testAppConfig(map[string]string{
		config.EnvClientID:     "id.apps.googleusercontent.com",
		config.EnvClientSecret: "secret",
		config.EnvBaseURL:      fmt.Sprintf("http://localhost:%d", port),
		config.EnvHost:         "127.0.0.1",
		config.EnvPort:         fmt.Sprint(port),
	})

	application, err := NewApplication(cfg)
	require.NoError(t, err)

	services := application.Services()
	require.NotNil(t, services)
	assert.True(t, services.Registry.Sealed())
	_, err = services.Registry.Resolve("add")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- application.Run(ctx) }()

	base := fmt.Sprintf("http://127.0.0.1:%d", port)
	require.Eventually(t, func() bool {
		resp, err := http.Get(base + server.HealthPath)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	resp, err := http.Get(base + server.MetricsPath)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), "go_goroutines")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestApplication_RunBindFailure(t *testing.T) {
	taken, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer taken.Close()
	port := taken.Addr().(*net.TCPAddr).Port

	cfg := testAppConfig(map[string]string{
		config.EnvClientID:     "id",
		config.EnvClientSecret: "secret",
		config.EnvBaseURL:      "https://tools.example.com",
		config.EnvHost:         "127.0.0.1",
		config.EnvPort:         fmt.Sprint(port),
	})

	application, err := NewApplication(cfg)
	require.NoError(t, err)

	err = application.Run(context.Background())
	var bindErr *server.BindError
	assert.True(t, errors.As(err, &bindErr), "got %v", err)
}

func TestInitializeServices_PreRegisteredClient(t *testing.T) {
	const redirect = "http://127.0.0.1:33418/callback"

	tests := []struct {
		name    string
		client  *config.ClientConfig
		wantErr bool
	}{
		{"not configured", nil, true},
		{"public client", &config.ClientConfig{ID: "desktop-app", RedirectURIs: []string{redirect}}, false},
		{"confidential client", &config.ClientConfig{ID: "desktop-app", Secret: "s3cret", RedirectURIs: []string{redirect}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			serverCfg := config.Default()
			serverCfg.ClientID = "id"
			serverCfg.ClientSecret = "secret"
			serverCfg.BaseURL = "https://tools.example.com"
			serverCfg.PreRegisteredClient = tt.client

			services, err := InitializeServices(serverCfg)
			require.NoError(t, err)
			t.Cleanup(services.Close)

			err = services.Provider.CheckClientRedirect("desktop-app", redirect)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewApplication_InvalidPreRegisteredClient(t *testing.T) {
	serverCfg := config.Default()
	serverCfg.ClientID = "id"
	serverCfg.ClientSecret = "secret"
	serverCfg.BaseURL = "https://tools.example.com"
	serverCfg.PreRegisteredClient = &config.ClientConfig{ID: "desktop-app", RedirectURIs: []string{"http://app.example.com/cb"}}

	cfg := testAppConfig(nil)
	cfg.ServerConfig = &serverCfg

	_, err := NewApplication(cfg)
	var cfgErr *config.ConfigError
	require.True(t, errors.As(err, &cfgErr), "got %v", err)
	assert.Equal(t, []string{"preRegisteredClient.redirectUris[0]"}, cfgErr.Problems.Fields())
}
