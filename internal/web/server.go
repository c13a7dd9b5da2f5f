package web

import (
	"context"
	"net/http"

	"github.com/conorfennell/recall/internal/metrics"
	"github.com/conorfennell/recall/internal/storage"
	"github.com/conorfennell/recall/internal/study"
	"github.com/conorfennell/recall/internal/sync"
	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"
)

// Decks manages deck sources. It is satisfied by *sync.Syncer.
type Decks interface {
	Sources(ctx context.Context) ([]storage.Source, error)
	AddSource(ctx context.Context, path, userID string) (*storage.Source, error)
	RemoveSource(ctx context.Context, sourceID int64) error
	RunSync(ctx context.Context) (sync.Result, error)
}

// Server holds the dependencies for the HTTP server.
type Server struct {
	router  *chi.Mux
	study   *study.Service
	decks   Decks
	metrics *metrics.Collector
	origins []string
}

// Option configures a Server.
type Option func(*Server)

// WithDecks mounts the source management and sync routes.
func WithDecks(d Decks) Option {
	return func(s *Server) { s.decks = d }
}

// WithMetrics records request metrics and serves them on /metrics.
func WithMetrics(c *metrics.Collector) Option {
	return func(s *Server) { s.metrics = c }
}

// WithAllowedOrigins sets the CORS origins. Nil means any origin.
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) { s.origins = origins }
}

// NewServer creates and configures a new server.
func NewServer(svc *study.Service, opts ...Option) *Server {
	s := &Server{
		router: chi.NewRouter(),
		study:  svc,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// routes sets up the routing for the server.
func (s *Server) routes() {
	r := s.router

	r.Use(loggingMiddleware)
	r.Use(metricsMiddleware(s.metrics))
	r.Use(panicRecoveryMiddleware)
	r.Use(cors.New(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Accept", "Origin"},
		MaxAge:         86400,
	}).Handler)

	r.Get("/healthz", s.handleHealth())
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/users/{userID}", func(r chi.Router) {
			r.Get("/due", s.handleGetDue())
			r.Get("/analytics", s.handleGetAnalytics())
			r.Post("/rebuild", s.handlePostRebuild())
			r.Route("/cards/{cardID}", func(r chi.Router) {
				r.Get("/", s.handleGetCard())
				r.Post("/reviews", s.handlePostReview())
				r.Get("/preview", s.handleGetPreview())
			})
		})

		if s.decks != nil {
			r.Get("/sources", s.handleGetSources())
			r.Post("/sources", s.handlePostSource())
			r.Delete("/sources/{sourceID}", s.handleDeleteSource())
			r.Post("/sync", s.handlePostSync())
		}
	})
}
