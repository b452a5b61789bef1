package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/opensource-access/kestrel/internal/domain"
	"github.com/opensource-access/kestrel/internal/pipeline"
	"github.com/opensource-access/kestrel/internal/rules"
)

// Server is the HTTP surface: batch analysis, reports, occupancy status,
// forecast and rule management.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer builds the router and wires the handler dependencies.
func NewServer(cfg domain.Config, repo domain.Repository, cache domain.Cache, bus domain.EventBus, engine *rules.Engine, pipe *pipeline.Pipeline, source domain.EventSource, state domain.StateSource, version string) *Server {
	handler := NewHandler(repo, cache, bus, engine, pipe, source, state, version)

	router := chi.NewRouter()
	router.Use(CORSMiddleware)
	router.Use(RecoverMiddleware)
	router.Use(TracingMiddleware)
	router.Use(LoggingMiddleware)
	router.Use(middleware.RealIP)
	router.Use(middleware.Compress(5))

	// Probes stay open; everything else sits behind the principal check.
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)

	router.Route("/", func(r chi.Router) {
		r.Use(PrincipalMiddleware(cfg.Auth))

		r.Post("/analyze", handler.Analyze)
		r.Get("/reports/{id}", handler.GetReport)
		r.Get("/status", handler.Status)
		r.Get("/forecast", handler.Forecast)

		r.Get("/rules", handler.ListRules)
		r.Get("/rules/{id}", handler.GetRule)
		r.Post("/rules", handler.CreateRule)
		r.Post("/rules/reload", handler.ReloadRules)
	})

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg.Server,
	}
}

// Start listens and serves until Shutdown or a listener error.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s.server.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router exposes the mux for tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler exposes the handler for tests.
func (s *Server) Handler() *Handler {
	return s.handler
}
