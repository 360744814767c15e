package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"toolgate/internal/auth"
	"toolgate/internal/config"
	"toolgate/internal/dispatcher"
	"toolgate/internal/registry"
	"toolgate/pkg/logging"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	// DefaultReadHeaderTimeout is the default timeout for reading request headers.
	DefaultReadHeaderTimeout = 10 * time.Second
	// DefaultWriteTimeout is the default timeout for writing responses.
	DefaultWriteTimeout = 120 * time.Second
	// DefaultIdleTimeout is the default idle timeout for keepalive connections.
	DefaultIdleTimeout = 120 * time.Second
	// DefaultShutdownTimeout bounds graceful shutdown in Serve.
	DefaultShutdownTimeout = 10 * time.Second

	// HealthPath and MetricsPath are served without authentication.
	HealthPath  = "/health"
	MetricsPath = "/metrics"
)

// ErrAlreadyListening is returned by Listen when called a second time.
var ErrAlreadyListening = errors.New("server is already listening")

// BindError reports that the listen address could not be bound. It is fatal.
type BindError struct {
	Addr string
	Err  error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("failed to bind %s: %v", e.Addr, e.Err)
}

func (e *BindError) Unwrap() error { return e.Err }

// Options configures optional parts of a Server.
type Options struct {
	// Gatherer backs /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
	// ShutdownTimeout bounds the graceful shutdown done by Serve.
	ShutdownTimeout time.Duration
}

// Server is the HTTP transport. It owns the MCP protocol server, the OAuth
// endpoints and the listener; nothing is kept in package-level state.
type Server struct {
	cfg        config.Config
	dispatcher *dispatcher.Dispatcher
	mcp        *mcpserver.MCPServer
	streamable *mcpserver.StreamableHTTPServer
	httpServer *http.Server
	opts       Options

	mu       sync.Mutex
	listener net.Listener
}

// New assembles the transport for the tools in reg. Every tool call received
// on the MCP path is handed to d.
func New(cfg config.Config, authHandler *auth.Handler, d *dispatcher.Dispatcher, reg *registry.Registry, opts Options) (*Server, error) {
	if authHandler == nil || d == nil || reg == nil {
		return nil, errors.New("server requires an auth handler, a dispatcher and a registry")
	}
	if err := config.ValidateMCPPath("mcpPath", cfg.MCPPath); err != nil {
		return nil, fmt.Errorf("cannot mount tool endpoint: %w", err)
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = DefaultShutdownTimeout
	}

	s := &Server{
		cfg:        cfg,
		dispatcher: d,
		opts:       opts,
	}

	s.mcp = mcpserver.NewMCPServer(
		cfg.ServerName,
		cfg.ServerVersion,
		mcpserver.WithToolCapabilities(false),
		mcpserver.WithRecovery(),
	)
	for _, def := range reg.List() {
		s.mcp.AddTool(def.MCPTool(), s.callTool)
	}

	s.streamable = mcpserver.NewStreamableHTTPServer(
		s.mcp,
		mcpserver.WithEndpointPath(cfg.MCPPath),
		mcpserver.WithStateLess(true),
		mcpserver.WithHTTPContextFunc(bearerContext),
	)

	s.httpServer = &http.Server{
		Handler:           s.routes(authHandler),
		ReadHeaderTimeout: DefaultReadHeaderTimeout,
		WriteTimeout:      DefaultWriteTimeout,
		IdleTimeout:       DefaultIdleTimeout,
		ErrorLog:          logging.StdLogger("HTTP"),
	}

	logging.Debug("Server", "Prepared %d tools on %s", reg.Len(), cfg.MCPPath)
	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) routes(authHandler *auth.Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc(HealthPath, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if s.opts.Gatherer != nil {
		mux.Handle(MetricsPath, promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{}))
	}

	authHandler.Register(mux)
	mux.Handle(s.cfg.MCPPath, authHandler.Middleware(s.streamable))

	return mux
}

// bearerContext carries the credential checked by the auth middleware into
// the tool call context.
func bearerContext(ctx context.Context, r *http.Request) context.Context {
	if _, ok := auth.BearerFromContext(ctx); ok {
		return ctx
	}
	if bearer, ok := auth.BearerToken(r); ok {
		return auth.WithBearer(ctx, bearer)
	}
	return ctx
}

// callTool bridges an MCP tools/call to the dispatcher. Dispatch failures
// become tool error results so the client sees them in-band; an unknown tool
// is a protocol error.
func (s *Server) callTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	bearer, _ := auth.BearerFromContext(ctx)

	out, err := s.dispatcher.Dispatch(ctx, dispatcher.Invocation{
		Tool:      req.Params.Name,
		Arguments: req.GetArguments(),
		Bearer:    bearer,
	})
	if err != nil {
		if dispatcher.KindOf(err) == dispatcher.KindNotFound {
			return nil, fmt.Errorf("%w: %s", mcpserver.ErrToolNotFound, req.Params.Name)
		}
		return dispatcher.EncodeError(err), nil
	}
	return out.Encode(), nil
}

// Listen binds the configured address. It must be called once, before Serve.
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return ErrAlreadyListening
	}

	addr := s.cfg.Addr()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return &BindError{Addr: addr, Err: err}
	}
	s.listener = ln
	logging.Info("Server", "Listening on %s (MCP endpoint %s%s)", ln.Addr(), s.cfg.Issuer(), s.cfg.MCPPath)
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve accepts connections until ctx is done, then shuts down gracefully.
// It returns nil after a clean shutdown.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln == nil {
		return errors.New("server is not listening; call Listen first")
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server stopped: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server stopped: %w", err)
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Server", "Shutting down")

	if err := s.streamable.Shutdown(ctx); err != nil {
		logging.Warn("Server", "Error shutting down MCP transport: %v", err)
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
