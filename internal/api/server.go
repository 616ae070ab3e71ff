package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/politpatrick/icf-api/internal/config"
	"github.com/politpatrick/icf-api/internal/remote"
	"github.com/politpatrick/icf-api/internal/store"
	"github.com/politpatrick/icf-api/internal/views"
)

// Server is the read-only HTTP API over an exported record set.
type Server struct {
	router  chi.Router
	src     store.Source
	builder *views.Builder
	fetch   *remote.FetchStats
	log     *slog.Logger
	cfg     config.Config
}

// NewServer creates and configures the HTTP server. fetch may be nil
// when the source is disk-backed.
func NewServer(src store.Source, fetch *remote.FetchStats, log *slog.Logger, cfg config.Config) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		src:     src,
		builder: views.NewBuilder(src, log),
		fetch:   fetch,
		log:     log,
		cfg:     cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// Record endpoints; bearer auth only when a key is configured.
	r.Group(func(r chi.Router) {
		if s.cfg.APIKey != "" {
			r.Use(AuthMiddleware(s.cfg.APIKey))
		}

		r.Get("/api/index", s.handleIndex)
		r.Get("/api/codes/{code}", s.handleCode)
		r.Get("/api/codes/{code}/children", s.handleChildren)
		r.Get("/api/search", s.handleSearch)
		r.Get("/api/stats", s.handleStats)
		r.Get("/api/stats/fetch", s.handleFetchStats)

		r.Get("/browse/{code}", s.handleBrowse)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
