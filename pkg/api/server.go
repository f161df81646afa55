// Package api is Sentinel's thin HTTP boundary: submit a signal
// (compile + store), fetch one back, preview-compile a definition, and
// run a simulation. Full signal CRUD, auth, and request validation
// beyond the DSL itself live outside this service.
package api

import (
	"context"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/monarch-xyz/sentinel/pkg/compile"
	"github.com/monarch-xyz/sentinel/pkg/metrics"
	"github.com/monarch-xyz/sentinel/pkg/obs"
	"github.com/monarch-xyz/sentinel/pkg/signal"
	"github.com/monarch-xyz/sentinel/pkg/simulate"
)

// SignalStore is the subset of pkg/store.Store this boundary needs.
type SignalStore interface {
	CreateSignal(ctx context.Context, sig *signal.Signal) error
	GetSignal(ctx context.Context, id string) (*signal.Signal, error)
}

// WorkerHealthFunc reports worker pool health for GET /health. Sized to
// pkg/worker.Pool.Health()'s PoolHealth fields rather than importing
// pkg/worker itself, since the API process only ever reads this pool
// remotely for display and never owns it.
type WorkerHealthFunc func(ctx context.Context) (active, total int, depth int64, err error)

// Server is the Sentinel HTTP API server.
type Server struct {
	echo      *echo.Echo
	registry  *metrics.Registry
	store     SignalStore
	simulator *simulate.Simulator
	health    WorkerHealthFunc
}

// Config wires a Server's collaborators.
type Config struct {
	Registry  *metrics.Registry
	Store     SignalStore
	Simulator *simulate.Simulator
	// Health, if set, is polled by GET /health to report worker pool
	// status alongside the API's own liveness.
	Health WorkerHealthFunc
}

// NewServer constructs a Server and registers every route.
func NewServer(cfg Config) *Server {
	e := echo.New()
	s := &Server{echo: e, registry: cfg.Registry, store: cfg.Store, simulator: cfg.Simulator, health: cfg.Health}
	s.setupRoutes()
	return s
}

// Echo exposes the underlying Echo instance for cmd/sentinel-api to
// start listening and for tests to drive requests directly.
func (s *Server) Echo() *echo.Echo { return s.echo }

func (s *Server) setupRoutes() {
	s.echo.Use(middleware.BodyLimit(1024 * 1024))

	s.echo.GET("/health", s.healthHandler)
	s.echo.GET("/metrics", s.metricsHandler)

	v1 := s.echo.Group("/api/v1")
	v1.POST("/signals", s.submitSignalHandler)
	v1.GET("/signals/:id", s.getSignalHandler)
	v1.POST("/signals/:id/simulate", s.simulateHandler)
	v1.POST("/compile", s.compilePreviewHandler)
}

// healthHandler handles GET /health — liveness plus, if wired, worker
// pool health.
func (s *Server) healthHandler(c *echo.Context) error {
	resp := HealthResponse{Status: "healthy"}
	if s.health != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()
		active, total, depth, err := s.health(ctx)
		if err != nil {
			resp.Status = "degraded"
			resp.WorkerPool = &WorkerPoolStatus{Error: err.Error()}
		} else {
			resp.WorkerPool = &WorkerPoolStatus{ActiveWorkers: active, TotalWorkers: total, QueueDepth: depth}
		}
	}
	status := http.StatusOK
	if resp.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	return c.JSON(status, resp)
}

// metricsHandler handles GET /metrics, delegating straight to the
// registered Prometheus handler.
func (s *Server) metricsHandler(c *echo.Context) error {
	obs.Handler().ServeHTTP(c.Response(), c.Request())
	return nil
}

// compileDefinition runs the compiler against the server's registry;
// handlers map the resulting ValidationError to a 400 carrying the
// offending field path via mapServiceError.
func (s *Server) compileDefinition(def signal.Definition) (signal.AST, error) {
	return compile.Compile(s.registry, def)
}
