// Package api provides the HTTP/SSE surface agent-server exposes to
// callers driving one application's generation: POST /message streams
// FSM progress as server-sent events, GET /health reports liveness, GET
// /health/workspace (also served as GET /health/dagger) reports whether the
// workspace container runtime is reachable, GET /version reports build
// identity.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/appdotbuild/agent/internal/config"
	"github.com/appdotbuild/agent/pkg/smokecheck"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// WorkspacePinger checks that the container runtime backing workspace
// provisioning is reachable, for the /health/workspace probe.
type WorkspacePinger interface {
	Ping(ctx context.Context) error
}

// Server is the HTTP surface over a SessionManager.
type Server struct {
	cfg      *config.Config
	router   chi.Router
	sessions *SessionManager
	pinger   WorkspacePinger
	smoke    *smokecheck.Checker
}

// NewServer creates a new API server. pinger may be nil, in which case
// /health/workspace reports unknown rather than failing.
func NewServer(cfg *config.Config, sessions *SessionManager, pinger WorkspacePinger) *Server {
	s := &Server{cfg: cfg, sessions: sessions, pinger: pinger, smoke: smokecheck.NewChecker()}
	s.setupRouter()
	return s
}

// setupRouter configures all routes.
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.API.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if s.cfg.API.APIKey != "" {
		r.Use(s.bearerAuth)
	}

	r.Get("/health", s.handleHealth)
	r.Get("/health/workspace", s.handleWorkspaceHealth)
	r.Get("/health/dagger", s.handleWorkspaceHealth)
	r.Get("/version", s.handleVersion)
	r.Post("/message", s.handleMessage)
	r.Post("/smoke-check", s.handleSmokeCheck)

	s.router = r
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// bearerAuth validates the Authorization: Bearer <token> header against
// the configured API key. health and version stay open so orchestrators
// can probe liveness without a credential.
func (s *Server) bearerAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health", "/health/workspace", "/health/dagger", "/version":
			next.ServeHTTP(w, r)
			return
		}

		token := bearerToken(r)
		if token == "" || token != s.cfg.API.APIKey {
			writeError(w, http.StatusUnauthorized, "missing or invalid bearer token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	h := r.Header.Get("Authorization")
	if len(h) > len(prefix) && h[:len(prefix)] == prefix {
		return h[len(prefix):]
	}
	return ""
}
