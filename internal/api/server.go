// Package api provides the HTTP server: the public JSON endpoint served with
// chi, and the typed management API served with huma.
package api

import (
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/fishdan-plugins/jsonmaker/internal/ratelimit"
	"github.com/fishdan-plugins/jsonmaker/internal/sse"
)

// Options configures the HTTP surface.
type Options struct {
	CORSOrigins     []string // Allowed origins for the public endpoint; empty allows any
	PublicRateLimit float64  // Requests per second per client IP; 0 disables limiting
	PublicBurst     int
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	services      *Services
	router        *chi.Mux
	api           huma.API
	publicLimiter *ratelimit.KeyedRateLimiter
	opts          Options
	logger        *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(services *Services, opts Options, logger *slog.Logger) *Server {
	router := chi.NewRouter()

	s := &Server{
		services: services,
		router:   router,
		opts:     opts,
		logger:   logger,
	}
	if opts.PublicRateLimit > 0 {
		s.publicLimiter = ratelimit.New(opts.PublicRateLimit, max(opts.PublicBurst, 1))
	}

	s.setupMiddleware()
	s.setupPublicRoutes()

	humaConfig := huma.DefaultConfig("jsonmaker API", "1.0.0")
	humaConfig.Info.Description = "Per-account bookmark trees: edit, import, export, search."
	// Bodies are the stored and public documents as-is, without $schema links.
	humaConfig.CreateHooks = nil
	s.api = humachi.New(router, humaConfig)
	RegisterErrorHandler()

	s.registerHealthRoutes()
	s.registerTreeRoutes()
	s.registerNodeRoutes()
	s.registerImportRoutes()
	s.registerSearchRoutes()
	s.registerEventRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// API exposes the huma API, mainly for OpenAPI generation.
func (s *Server) API() huma.API {
	return s.api
}

// Close releases background resources held by the server.
func (s *Server) Close() {
	if s.publicLimiter != nil {
		s.publicLimiter.Stop()
	}
}

// setupMiddleware configures middleware stack.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
}

// setupPublicRoutes mounts the read-only endpoint browsers and extensions
// fetch directly.
func (s *Server) setupPublicRoutes() {
	origins := s.opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	s.router.Group(func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{http.MethodGet, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
		if s.publicLimiter != nil {
			r.Use(RateLimitMiddleware(s.publicLimiter, s.logger))
		}
		r.Get("/json/{account}/{file}", s.handlePublicNode)
	})
}

func (s *Server) registerEventRoutes() {
	if s.services.SSE == nil {
		return
	}
	handler := sse.NewHandler(s.services.SSE, s.logger, func(r *http.Request) string {
		return chi.URLParam(r, "account")
	})
	s.router.Get("/api/v1/accounts/{account}/events", handler.ServeHTTP)
}
