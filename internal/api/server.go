// Package api provides the HTTP REST API and WebSocket server for Fleet Core.
//
// It exposes device registry reads, telemetry queries (latest snapshot,
// history, alarms, presence), downlink command publication, and a live
// WebSocket stream of accepted telemetry to operator dashboards.
//
// The server follows the same lifecycle pattern as other infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// HTTP callers authenticate with JWT bearer tokens signed with the
// configured secret. This is operator authentication and entirely
// separate from the per-device secrets checked on the MQTT ingest path.
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/draycott-io/fleet-core/internal/device"
	"github.com/draycott-io/fleet-core/internal/infrastructure/config"
	"github.com/draycott-io/fleet-core/internal/infrastructure/logging"
	"github.com/draycott-io/fleet-core/internal/infrastructure/mqtt"
	"github.com/draycott-io/fleet-core/internal/ingest"
	"github.com/draycott-io/fleet-core/internal/telemetry"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config    config.APIConfig
	WS        config.WebSocketConfig
	Security  config.SecurityConfig
	Logger    *logging.Logger
	Registry  *device.Registry
	Telemetry *telemetry.Service
	MQTT      *mqtt.Client     // Optional; commands return 503 without it
	Pipeline  *ingest.Pipeline // Optional; stats omit pipeline counters without it
	Version   string
}

// Server is the HTTP API server for Fleet Core.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	secCfg    config.SecurityConfig
	logger    *logging.Logger
	registry  *device.Registry
	telemetry *telemetry.Service
	mqtt      *mqtt.Client
	pipeline  *ingest.Pipeline
	version   string
	server    *http.Server
	hub       *Hub
	cancel    context.CancelFunc
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (config, logger, registry, telemetry)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("device registry is required")
	}
	if deps.Telemetry == nil {
		return nil, fmt.Errorf("telemetry service is required")
	}
	if deps.Security.JWT.Secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}

	return &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		secCfg:    deps.Security,
		logger:    deps.Logger,
		registry:  deps.Registry,
		telemetry: deps.Telemetry,
		mqtt:      deps.MQTT,
		pipeline:  deps.Pipeline,
		version:   deps.Version,
	}, nil
}

// Hub returns the WebSocket hub, creating it on first call.
//
// Exposed so the telemetry service can be wired to broadcast accepted
// reports before the server starts.
func (s *Server) Hub() *Hub {
	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, s.logger)
	}
	return s.hub
}

// Start begins listening for HTTP connections.
//
// It builds the router, starts the WebSocket hub, and launches the HTTP
// listener in a background goroutine. The server is stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.Hub().Run(srvCtx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		err := s.server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	s.logger.Info("API server started", "address", s.server.Addr)
	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
