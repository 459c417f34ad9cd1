package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/partcompat/internal/audit"
	"github.com/nerrad567/partcompat/internal/compat"
	"github.com/nerrad567/partcompat/internal/infrastructure/config"
	"github.com/nerrad567/partcompat/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// auditQueueSize bounds the async audit queue.
const auditQueueSize = 256

// HealthChecker is implemented by dependencies reported on /health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config    config.APIConfig
	Admin     config.AdminConfig
	Logger    *logging.Logger
	Engine    *compat.Engine
	DB        HealthChecker    // required
	MQTT      HealthChecker    // optional
	AuditRepo audit.Repository // optional: link/delete are not audited without it
	Version   string
}

// Server is the HTTP API server.
//
// The server is created with New() and started with Start().
type Server struct {
	cfg       config.APIConfig
	admin     config.AdminConfig
	logger    *logging.Logger
	engine    *compat.Engine
	db        HealthChecker
	mqtt      HealthChecker
	auditRepo audit.Repository
	audit     *audit.Recorder
	version   string
	server    *http.Server
}

// New creates a new API server with the given dependencies.
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Engine == nil {
		return nil, fmt.Errorf("compat engine is required")
	}
	if deps.DB == nil {
		return nil, fmt.Errorf("database is required")
	}

	s := &Server{
		cfg:       deps.Config,
		admin:     deps.Admin,
		logger:    deps.Logger,
		engine:    deps.Engine,
		db:        deps.DB,
		mqtt:      deps.MQTT,
		auditRepo: deps.AuditRepo,
		version:   deps.Version,
	}
	if deps.AuditRepo != nil {
		s.audit = audit.NewRecorder(deps.AuditRepo, auditQueueSize)
		s.audit.SetLogger(deps.Logger)
	}
	return s, nil
}

// Handler returns the router. Used by Start and by tests.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start begins listening for HTTP connections in a background goroutine.
// The server can be stopped with Close().
func (s *Server) Start(_ context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server and flushes queued audit
// entries. It waits up to 10 seconds for in-flight requests to complete.
func (s *Server) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	var shutdownErr error
	if s.server != nil {
		s.logger.Info("API server shutting down")
		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("shutting down API server: %w", err)
		}
	}
	if s.audit != nil {
		if err := s.audit.Close(ctx); err != nil {
			s.logger.Warn("audit queue not drained", "error", err)
		}
	}
	return shutdownErr
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
