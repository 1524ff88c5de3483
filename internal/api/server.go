package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/camera-remote/ccb/internal/auth"
)

// Version is reported by the health endpoint.
var Version = "dev"

// Deps are the collaborators of the API server. Auth and Devices may be nil.
type Deps struct {
	Camera    CameraPort
	Dispatch  DispatchPort
	Telemetry TelemetryPort
	Devices   InventoryPort
	Auth      *auth.Middleware
	Logger    zerolog.Logger
	// Page replaces the embedded remote page when set.
	Page []byte
}

// Server is the HTTP API server.
type Server struct {
	deps       Deps
	engine     *gin.Engine
	httpServer *http.Server
	page       []byte
	startTime  time.Time

	readTimeout  time.Duration
	writeTimeout time.Duration
}

// NewServer builds the router. Start serves it.
func NewServer(deps Deps, readTimeout, writeTimeout time.Duration) *Server {
	s := &Server{
		deps:         deps,
		page:         deps.Page,
		startTime:    time.Now(),
		readTimeout:  readTimeout,
		writeTimeout: writeTimeout,
	}
	if len(s.page) == 0 {
		s.page = remotePage
	}
	s.engine = s.newEngine()
	return s
}

func (s *Server) newEngine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())
	if s.deps.Auth != nil {
		r.Use(s.deps.Auth.RequireAuth(), auditUser())
	}
	s.RegisterRoutes(r)
	return r
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves on addr until Stop is called.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.engine,
		ReadTimeout:  s.readTimeout,
		WriteTimeout: s.writeTimeout,
	}

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop gracefully stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}
	return nil
}
