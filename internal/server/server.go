// Package server provides the HTTP API for ReguBot.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/regubot/internal/assistant"
	"github.com/hyperjump/regubot/internal/config"
	"github.com/hyperjump/regubot/internal/indexer"
)

// WatchService manages the watched inbox directories.
type WatchService interface {
	Directories() []string
	AddDirectory(path string, syncExisting bool) error
	RemoveDirectory(path string) error
}

// Server is the HTTP server for the ReguBot API.
type Server struct {
	assistant *assistant.Service
	indexer   *indexer.Indexer
	config    *config.Config
	// configPath is where watch directory changes are persisted; empty disables it.
	configPath string
	watch      WatchService
	logger     *zap.Logger
	server     *http.Server

	configMu sync.Mutex
}

// NewServer creates a server with the given dependencies. watch may be nil.
func NewServer(
	svc *assistant.Service,
	idx *indexer.Indexer,
	cfg *config.Config,
	logger *zap.Logger,
	watch WatchService,
	configPath string,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		assistant:  svc,
		indexer:    idx,
		config:     cfg,
		configPath: configPath,
		watch:      watch,
		logger:     logger,
	}
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(time.Duration(s.config.Generation.TimeoutSeconds+30) * time.Second))
	r.Use(middleware.Compress(5))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/ask", s.handleAsk)
		r.Get("/documents", s.handleListDocuments)
		r.Post("/documents", s.handleUploadDocuments)
		r.Get("/sessions/{id}/messages", s.handleGetMessages)
		r.Delete("/sessions/{id}/messages", s.handleClearMessages)
		r.Get("/status", s.handleStatus)
		r.Get("/catalog", s.handleCatalog)
		r.Get("/watch/directories", s.handleWatchDirectoriesList)
		r.Post("/watch/directories", s.handleWatchDirectoriesAdd)
		r.Delete("/watch/directories", s.handleWatchDirectoriesRemove)
	})
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
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
