// Package api implements the HTTP layer for the SafeSteps guidance backend.
// Handlers are methods on *Server. Each handler file is responsible for one
// resource group and only imports the dependencies it actually uses.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/safesteps-app/safesteps-backend/internal/pipeline"
)

// Config holds values read from environment variables at startup.
type Config struct {
	// Env is "production", "staging", or "development".
	Env string
}

// Server holds all shared dependencies. Each handler file attaches methods to
// this type and uses only the fields it needs.
type Server struct {
	// pipeline runs the whole hazard-resolution and guidance flow. Injected
	// as an interface so handler tests use a stub.
	pipeline pipeline.Responder

	// situations is the pre-loaded static seed served on /api/situations.
	// May be empty; the handler then serves an empty list.
	situations []byte

	cfg    Config
	logger *slog.Logger
}

// NewServer constructs the Server and wires the chi router. The returned
// http.Handler is ready to pass to http.ListenAndServe.
func NewServer(
	p pipeline.Responder,
	situations []byte,
	cfg Config,
	logger *slog.Logger,
) http.Handler {
	s := &Server{
		pipeline:   p,
		situations: situations,
		cfg:        cfg,
		logger:     logger,
	}

	return s.routes()
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	// ── Global middleware ─────────────────────────────────────────────────────
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggerMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(s.corsMiddleware)
	r.Use(middleware.Timeout(90 * time.Second))

	// ── Health ────────────────────────────────────────────────────────────────
	// Deliberately free of any pipeline or external-service dependency.
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// ── API ───────────────────────────────────────────────────────────────────
	r.Route("/api", func(r chi.Router) {
		r.Get("/situations", s.handleSituations)
		r.Post("/help", s.handleHelp)
		r.Post("/help/deep", s.handleHelpDeep)
		r.Post("/deep-guidance", s.handleDeepGuidance)
	})

	return r
}
