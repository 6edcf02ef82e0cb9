// Package server provides the HTTP API for IAsistente.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/hyperjump/iasistente/internal/config"
	"github.com/hyperjump/iasistente/internal/metrics"
	"github.com/hyperjump/iasistente/internal/models"
	"github.com/hyperjump/iasistente/internal/storage"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Answerer answers a question against the knowledge index of a domain.
type Answerer interface {
	Answer(ctx context.Context, domain, question string) (string, error)
}

// DomainLister lists the knowledge domains with an index on disk.
type DomainLister interface {
	List() ([]models.DomainInfo, error)
}

// Server is the HTTP server for the IAsistente API.
type Server struct {
	answerer Answerer
	domains  DomainLister
	ledger   storage.IngestionLog
	config   *config.ServerConfig
	logger   *zap.Logger
	validate *validator.Validate
	server   *http.Server
}

// NewServer creates a server with the given dependencies. ledger may be nil, in which case
// the ingestion history endpoint reports 501.
func NewServer(
	answerer Answerer,
	domains DomainLister,
	ledger storage.IngestionLog,
	cfg *config.ServerConfig,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		answerer: answerer,
		domains:  domains,
		ledger:   ledger,
		config:   cfg,
		logger:   logger,
		validate: newValidator(),
	}
}

// Handler returns the router with every route and middleware installed.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)
	if s.config != nil && s.config.RequestTimeout > 0 {
		r.Use(middleware.Timeout(s.config.RequestTimeout))
	}

	r.Post("/chat", s.handleChat)
	r.Get("/domains", s.handleDomains)
	r.Get("/ingestions", s.handleIngestions)
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
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
