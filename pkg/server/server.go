// Package server exposes ingest and query operations over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/wouteroostervld/atlas/pkg/answer"
	"github.com/wouteroostervld/atlas/pkg/ingest"
	"github.com/wouteroostervld/atlas/pkg/search"
)

// Engine answers read requests
type Engine interface {
	Ask(ctx context.Context, repoID, question string) (*answer.Answer, error)
	Graph(ctx context.Context, repoID string) (*search.GraphView, error)
	Source(ctx context.Context, repoID, file string, start, end int) (*search.SourceView, error)
	Onboarding(ctx context.Context, repoID string) (*search.OnboardingView, error)
}

// Ingester starts ingest runs
type Ingester interface {
	Run(ctx context.Context, req ingest.Request) <-chan ingest.Event
}

// HealthChecker reports storage health
type HealthChecker interface {
	HealthCheck() error
}

// Config holds server settings
type Config struct {
	Addr            string
	AllowedOrigins  []string // Origins granted CORS access; empty grants none
	AllowLocalPaths bool     // Accept ingest sources that are directories on this host
}

// Server is the HTTP front end
type Server struct {
	cfg      Config
	engine   Engine
	ingester Ingester
	health   HealthChecker
	router   *http.ServeMux
	handler  http.Handler
	server   *http.Server
}

// New creates a server listening on cfg.Addr. health may be nil.
func New(cfg Config, engine Engine, ingester Ingester, health HealthChecker) *Server {
	s := &Server{
		cfg:      cfg,
		engine:   engine,
		ingester: ingester,
		health:   health,
		router:   http.NewServeMux(),
	}
	s.registerRoutes()
	s.handler = s.applyMiddleware(s.router)

	// No write timeout: ingest streams and model calls run for minutes.
	s.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) registerRoutes() {
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("POST /ingest", s.handleIngest)
	s.router.HandleFunc("POST /query", s.handleQuery)
	s.router.HandleFunc("GET /graph/{repo_id}", s.handleGraph)
	s.router.HandleFunc("GET /source/{repo_id}", s.handleSource)
	s.router.HandleFunc("GET /onboarding/{repo_id}", s.handleOnboarding)
}

// applyMiddleware wraps outermost first
func (s *Server) applyMiddleware(h http.Handler) http.Handler {
	chain := []Middleware{Recovery(), Logging(), RequestIDs(), CORS(s.cfg.AllowedOrigins)}
	for i := len(chain) - 1; i >= 0; i-- {
		h = chain[i](h)
	}
	return h
}

// Start blocks until the server stops
func (s *Server) Start() error {
	slog.Info("Starting HTTP server", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// ServeHTTP serves through the full middleware chain
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}
