// Package server provides the HTTP API, middleware and handlers for Lethe.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dativo-io/lethe/internal/archive"
	"github.com/dativo-io/lethe/internal/engine"
	"github.com/dativo-io/lethe/internal/otel"
)

const (
	defaultTimeout      = 120 * time.Second
	defaultMaxBodyBytes = 16 << 20
)

// Server holds the dependencies of the HTTP API.
type Server struct {
	router       *chi.Mux
	engine       *engine.Engine
	archive      *archive.Store
	apiKeys      []string
	limiter      *RateLimiter
	callerRPM    int
	globalRPM    int
	corsOrigins  []string
	maxBodyBytes int64
	startTime    time.Time
	version      string
}

// Option configures the Server.
type Option func(*Server)

// WithArchive enables archiving and the /v1/mappings routes.
func WithArchive(store *archive.Store) Option {
	return func(s *Server) { s.archive = store }
}

// WithAPIKeys requires one of keys as a bearer token on /v1 routes.
func WithAPIKeys(keys []string) Option {
	return func(s *Server) { s.apiKeys = keys }
}

// WithRateLimit limits each caller to rpm requests per minute. Zero disables
// the per-caller limit.
func WithRateLimit(rpm int) Option {
	return func(s *Server) { s.callerRPM = rpm }
}

// WithGlobalRateLimit caps requests per minute across all callers. Zero
// disables the global limit.
func WithGlobalRateLimit(rpm int) Option {
	return func(s *Server) { s.globalRPM = rpm }
}

// WithCORSOrigins sets allowed CORS origins (e.g. ["*"]).
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) { s.corsOrigins = origins }
}

// WithMaxBodyBytes caps request bodies.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) { s.maxBodyBytes = n }
}

// WithVersion sets the version reported by /health.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// NewServer builds a Server around eng.
func NewServer(eng *engine.Engine, opts ...Option) *Server {
	s := &Server{
		router:       chi.NewRouter(),
		engine:       eng,
		maxBodyBytes: defaultMaxBodyBytes,
		startTime:    time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.callerRPM > 0 || s.globalRPM > 0 {
		s.limiter = NewRateLimiter(s.globalRPM, s.callerRPM)
	}
	return s
}

// Routes returns the configured http.Handler (chi router with all middleware and routes).
func (s *Server) Routes() http.Handler {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(otel.Middleware())
	if len(s.corsOrigins) > 0 {
		r.Use(CORSMiddleware(s.corsOrigins))
	}

	// Unauthenticated
	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.apiKeys))
		r.Use(RateLimitMiddleware(s.limiter))
		r.Use(middleware.Timeout(defaultTimeout))

		r.Post("/v1/anonymize", s.handleAnonymize)
		r.Post("/v1/reverse", s.handleReverse)

		r.Get("/v1/mappings", s.handleMappingsList)
		r.Get("/v1/mappings/{id}", s.handleMappingGet)
		r.Delete("/v1/mappings/{id}", s.handleMappingDelete)
	})

	return r
}
