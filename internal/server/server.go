// Package server exposes the rassegna search and article API over HTTP.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/balkanpress/rassegna/internal/config"
	"github.com/balkanpress/rassegna/internal/search"
	"github.com/balkanpress/rassegna/internal/store"
	"github.com/balkanpress/rassegna/internal/telemetry"
)

// Server is the HTTP front end over the search engine and article store.
type Server struct {
	engine   *search.Engine
	articles store.ArticleStore
	metrics  *telemetry.SearchMetrics
	config   config.ServerConfig
	defaults config.SearchConfig

	server *http.Server
}

// NewServer creates a server with the given dependencies. metrics may be
// nil, disabling the telemetry section of /api/stats.
func NewServer(
	engine *search.Engine,
	articles store.ArticleStore,
	metrics *telemetry.SearchMetrics,
	cfg config.ServerConfig,
	searchDefaults config.SearchConfig,
) *Server {
	return &Server{
		engine:   engine,
		articles: articles,
		metrics:  metrics,
		config:   cfg,
		defaults: searchDefaults,
	}
}

// Routes builds the API router.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Post("/api/search", s.handleSearch)
	r.Post("/api/articles", s.handleIndexArticles)
	r.Get("/api/articles", s.handleListArticles)
	r.Get("/api/articles/{id}", s.handleGetArticle)
	r.Delete("/api/articles/{id}", s.handleDeleteArticle)
	r.Patch("/api/articles/{id}/status", s.handleSetStatus)
	r.Get("/api/stats", s.handleStats)
	r.Get("/health", s.handleHealth)

	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("server_starting", slog.String("addr", addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
