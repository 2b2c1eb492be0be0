// Package server exposes sessions over HTTP: a small JSON API for session
// control and snapshots, rendered artifacts with caching, and a websocket
// for live ingestion.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/probelens/probelens/pkg/cache"
	"github.com/probelens/probelens/pkg/engine"
)

// Config holds the server settings.
type Config struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string

	// SafetyTimeout terminates sessions that run longer than this.
	// Zero disables the timeout.
	SafetyTimeout time.Duration

	// ArtifactLRUSize bounds the in-memory rendered-artifact cache.
	ArtifactLRUSize int

	// ShutdownGrace bounds graceful shutdown.
	ShutdownGrace time.Duration
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Addr:            ":8080",
		SafetyTimeout:   5 * time.Minute,
		ArtifactLRUSize: 256,
		ShutdownGrace:   10 * time.Second,
	}
}

// Server wires the registry, artifact caches, and HTTP routes together.
type Server struct {
	cfg      Config
	log      *log.Logger
	registry *Registry

	// artifacts is a process-local LRU in front of the (possibly shared)
	// backend cache, keyed by snapshot content hash + render options.
	artifacts *lru.Cache[string, []byte]
	backend   cache.Cache
	keyer     cache.Keyer

	router chi.Router
}

// Option configures a Server.
type Option func(*Server)

// WithBackendCache sets the shared artifact cache behind the local LRU.
// Defaults to a null cache.
func WithBackendCache(c cache.Cache) Option {
	return func(s *Server) { s.backend = c }
}

// WithEngineOptions forwards options to every engine the registry creates.
func WithEngineOptions(opts ...engine.Option) Option {
	return func(s *Server) {
		s.registry.engineOpts = append(s.registry.engineOpts, opts...)
	}
}

// New creates a server. The logger is required; pass log.Default() when in
// doubt.
func New(cfg Config, logger *log.Logger, opts ...Option) (*Server, error) {
	if cfg.ArtifactLRUSize <= 0 {
		cfg.ArtifactLRUSize = DefaultConfig().ArtifactLRUSize
	}
	artifacts, err := lru.New[string, []byte](cfg.ArtifactLRUSize)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:       cfg,
		log:       logger,
		registry:  NewRegistry(logger, cfg.SafetyTimeout),
		artifacts: artifacts,
		backend:   cache.NewNullCache(),
		keyer:     cache.NewDefaultKeyer(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Post("/session", s.handleCreateSession)
		r.Route("/session/{id}", func(r chi.Router) {
			r.Get("/snapshot", s.handleSnapshot)
			r.Get("/render", s.handleRender)
			r.Post("/events", s.handleEvents)
			r.Post("/reset", s.handleReset)
			r.Post("/terminate", s.handleTerminate)
			r.Delete("/", s.handleDelete)
		})
	})
	r.Get("/ws/session/{id}", s.handleWebSocket)
	r.Get("/healthz", s.handleHealth)

	return r
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// Registry exposes the session registry.
func (s *Server) Registry() *Registry { return s.registry }

// ListenAndServe runs the server until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.Addr,
		Handler: s.router,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	grace := s.cfg.ShutdownGrace
	if grace <= 0 {
		grace = DefaultConfig().ShutdownGrace
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()

	s.log.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}
