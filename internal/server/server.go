// Package server provides the HTTP question-answering API.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/ronbun/internal/answer"
	"github.com/hyperjump/ronbun/internal/config"
	"github.com/hyperjump/ronbun/internal/manifest"
	"github.com/hyperjump/ronbun/internal/store"
)

// Server is the HTTP server for the question-answering API.
type Server struct {
	answers  *answer.Service
	store    store.VectorStore
	manifest *manifest.Store // optional
	config   *config.Config
	logger   *zap.Logger
	server   *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithManifest exposes ingestion manifest counts on the status endpoint.
func WithManifest(m *manifest.Store) Option {
	return func(s *Server) { s.manifest = m }
}

// NewServer creates a server with the given dependencies.
func NewServer(answers *answer.Service, vs store.VectorStore, cfg *config.Config, logger *zap.Logger, opts ...Option) *Server {
	s := &Server{
		answers: answers,
		store:   vs,
		config:  cfg,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the HTTP handler. Split out from Start so tests can exercise
// the full middleware and routing stack without a listener.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Post("/api/v1/ask", s.handleAsk)
	r.Post("/api/v1/context", s.handleContext)
	r.Post("/api/v1/query", s.handleQuery)
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
