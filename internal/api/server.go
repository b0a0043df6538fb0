// Package api provides the HTTP REST API and WebSocket server for campusd.
//
// It exposes the aggregated nearby-sites view, per-site timetables (JSON
// and iCalendar), building resolution, and a WebSocket feed of refresh
// events to user interfaces.
//
// The server follows the same lifecycle pattern as other components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"campusd/internal/aggregate"
	"campusd/internal/infrastructure/config"
	"campusd/internal/infrastructure/logging"
	"campusd/internal/refresh"
	"campusd/internal/resolver"
	"campusd/internal/snapshot"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Aggregator runs the live aggregation pipeline. Satisfied by
// aggregate.Orchestrator.
type Aggregator interface {
	LoadNearbySites(ctx context.Context) aggregate.Result
	LoadWeek(ctx context.Context, slug string, weekOffset int) aggregate.WeekView
}

// Trigger runs and inspects refresh cycles. Satisfied by refresh.Refresher.
type Trigger interface {
	RunOnce(ctx context.Context, trigger string) refresh.Event
	Last() *refresh.Event
}

// SnapshotStore reads the persisted aggregate result. Satisfied by
// snapshot.Repository.
type SnapshotStore interface {
	Latest(ctx context.Context) (*snapshot.Snapshot, error)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config     config.APIConfig
	WS         config.WebSocketConfig
	Campus     config.CampusConfig
	Logger     *logging.Logger
	Aggregator Aggregator
	Refresher  Trigger       // optional: manual refresh disabled when nil
	Snapshots  SnapshotStore // optional: cold-start reads fall back to live aggregation
	Resolver   *resolver.Resolver
	Version    string
}

// Server is the HTTP API server for campusd.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg        config.APIConfig
	wsCfg      config.WebSocketConfig
	campus     config.CampusConfig
	logger     *logging.Logger
	aggregator Aggregator
	refresher  Trigger
	snapshots  SnapshotStore
	resolver   *resolver.Resolver
	version    string
	server     *http.Server
	hub        *Hub
	cancel     context.CancelFunc
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (config, logger, aggregator, resolver)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Aggregator == nil {
		return nil, fmt.Errorf("aggregator is required")
	}
	if deps.Resolver == nil {
		return nil, fmt.Errorf("resolver is required")
	}

	return &Server{
		cfg:        deps.Config,
		wsCfg:      deps.WS,
		campus:     deps.Campus,
		logger:     deps.Logger,
		aggregator: deps.Aggregator,
		refresher:  deps.Refresher,
		snapshots:  deps.Snapshots,
		resolver:   deps.Resolver,
		version:    deps.Version,
	}, nil
}

// SetRefresher wires the refresh trigger after construction.
//
// The refresher itself is built with the server's hub as a sink, so the
// two cannot be created in one pass. Call before Start.
func (s *Server) SetRefresher(t Trigger) {
	s.refresher = t
}

// Hub returns the server's WebSocket hub, creating it if needed.
//
// Call this before Start when the hub must be wired as a refresh sink;
// Start reuses the same hub.
func (s *Server) Hub() *Hub {
	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, s.logger)
	}
	return s.hub
}

// Start begins listening for HTTP connections.
//
// It sets up the router, starts the WebSocket hub, and launches the
// HTTP listener in a background goroutine. The server can be stopped
// with Close().
//
// Parameters:
//   - ctx: Context for cancellation (not used for listener lifetime)
//
// Returns:
//   - error: If the server fails to start (port in use, etc.)
func (s *Server) Start(ctx context.Context) error {
	// Internal context so Close() can stop background goroutines
	// independently of the parent context.
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, s.logger)
	}
	go s.hub.Run(srvCtx)

	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		err := s.server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

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

// HealthCheck verifies the API server is running and responsive.
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
