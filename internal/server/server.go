// Package server exposes dashboard generation and run history over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/KaramelBytes/insighto-cli/internal/dataset"
	"github.com/KaramelBytes/insighto-cli/internal/insight"
	"github.com/KaramelBytes/insighto-cli/internal/logger"
	"github.com/KaramelBytes/insighto-cli/internal/pipeline"
	"github.com/KaramelBytes/insighto-cli/internal/runs"
	"github.com/KaramelBytes/insighto-cli/internal/template"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// DefaultMaxUpload bounds multipart dataset uploads.
const DefaultMaxUpload = 32 << 20

// Config wires the server to its collaborators.
type Config struct {
	Templates *template.Registry
	Runs      *runs.Store
	Runner    *pipeline.Runner
	// Insight holds the base thresholds; requests may only pick columns.
	Insight insight.Options
	// Polisher serves requests with "polish": nil disables polishing.
	Polisher insight.Polisher
	// APIToken, when set, is required as a bearer token on /api routes.
	APIToken       string
	AllowedOrigins []string
	MaxUpload      int64
	// Load reads a dataset; defaults to dataset.Load.
	Load func(ctx context.Context, src string, opt dataset.Options) (*dataset.Dataset, error)
}

// Server is the HTTP front end.
type Server struct {
	cfg Config
}

// New fills defaults and returns a server.
func New(cfg Config) *Server {
	if cfg.Runner == nil {
		cfg.Runner = &pipeline.Runner{}
	}
	if cfg.MaxUpload <= 0 {
		cfg.MaxUpload = DefaultMaxUpload
	}
	if cfg.Load == nil {
		cfg.Load = dataset.Load
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}
	return &Server{cfg: cfg}
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Use(bearerAuth(s.cfg.APIToken))
		r.Get("/templates", s.handleTemplates)
		r.Post("/dashboards", s.handleCreateDashboard)
		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{id}", s.handleGetRun)
		r.Delete("/runs/{id}", s.handleDeleteRun)
		r.Get("/runs/{id}/report", s.handleRunReport)
	})
	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info("server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}
