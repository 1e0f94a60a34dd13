package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jmallory/pagefeed/internal/config"
	"github.com/jmallory/pagefeed/internal/dispatcher"
	"github.com/jmallory/pagefeed/internal/feed"
	"github.com/jmallory/pagefeed/internal/metrics"
	"github.com/jmallory/pagefeed/internal/pipeline"
	"github.com/jmallory/pagefeed/internal/policy/blocklist"
)

// Server wires HTTP handlers to the pipeline, dispatcher, and stores.
type Server struct {
	router     chi.Router
	pipeline   *pipeline.Pipeline
	dispatcher *dispatcher.Dispatcher
	jobStore   feed.JobStore
	posts      feed.PostStore
	cache      feed.PostCache
	sessions   feed.SessionService
	admission  feed.AdmissionPolicy
	blocked    *blocklist.Blocklist
	idGen      feed.IDGenerator
	clock      feed.Clock
	validate   *validator.Validate
	cfg        config.Config
	logger     *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	p *pipeline.Pipeline,
	d *dispatcher.Dispatcher,
	jobStore feed.JobStore,
	posts feed.PostStore,
	cache feed.PostCache,
	sessions feed.SessionService,
	admission feed.AdmissionPolicy,
	blocked *blocklist.Blocklist,
	idGen feed.IDGenerator,
	clock feed.Clock,
	cfg config.Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		pipeline:   p,
		dispatcher: d,
		jobStore:   jobStore,
		posts:      posts,
		cache:      cache,
		sessions:   sessions,
		admission:  admission,
		blocked:    blocked,
		idGen:      idGen,
		clock:      clock,
		validate:   validator.New(),
		cfg:        cfg,
		logger:     logger,
	}

	timeout := time.Duration(cfg.Server.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(timeout))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/auth/login", s.login)

		r.Group(func(r chi.Router) {
			if cfg.Auth.Enabled {
				r.Use(s.bearerAuthMiddleware)
			}
			r.Post("/auth/logout", s.logout)
			r.Post("/crawl", s.crawlSync)
			r.Post("/crawl/async", s.crawlAsync)
			r.Get("/tasks/{job_id}", s.getTask)
			r.Get("/crawler/status", s.crawlerStatus)
			r.Get("/posts", s.listCachedPosts)
			r.Get("/posts/db", s.listStoredPosts)
			r.Get("/posts/categories", s.countCategories)
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.cache != nil {
		if _, err := s.cache.Count(r.Context()); err != nil {
			s.writeError(w, http.StatusServiceUnavailable, "cache unavailable")
			return
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type requestIDKey struct{}

type principalKey struct{}

// PrincipalFromContext returns the authenticated principal, if any.
func PrincipalFromContext(ctx context.Context) string {
	if p, ok := ctx.Value(principalKey{}).(string); ok {
		return p
	}
	return ""
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec))
				s.writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

// bearerAuthMiddleware validates the Authorization header against the session
// service and stashes the principal in the request context.
func (s *Server) bearerAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			s.writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		principal, err := s.sessions.Validate(r.Context(), token)
		if err != nil {
			s.writeError(w, http.StatusUnauthorized, "invalid or superseded token")
			return
		}
		ctx := context.WithValue(r.Context(), principalKey{}, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
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

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
