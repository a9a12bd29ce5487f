// Package server exposes the insight pipeline over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/roofing-insights/internal/insight"
	"github.com/sells-group/roofing-insights/internal/model"
)

const defaultTimeout = 60 * time.Second

// Runner executes one insight request.
type Runner interface {
	Run(ctx context.Context, req insight.Request) (*model.InsightResponse, error)
}

// Pinger checks a backing dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server holds the HTTP dependencies.
type Server struct {
	runner      Runner
	identities  IdentityProvider
	pinger      Pinger
	circuit     func() string
	corsOrigins []string
	timeout     time.Duration
	startTime   time.Time
}

// Option configures the Server.
type Option func(*Server)

// WithPinger adds a store check to /health.
func WithPinger(p Pinger) Option {
	return func(s *Server) { s.pinger = p }
}

// WithCircuitState reports the AI circuit breaker state on /health.
func WithCircuitState(fn func() string) Option {
	return func(s *Server) { s.circuit = fn }
}

// WithCORSOrigins sets allowed CORS origins.
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) { s.corsOrigins = origins }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// New builds a Server.
func New(runner Runner, identities IdentityProvider, opts ...Option) *Server {
	s := &Server{
		runner:      runner,
		identities:  identities,
		corsOrigins: []string{"*"},
		timeout:     defaultTimeout,
		startTime:   time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes returns the router with all middleware and routes.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders: []string{"Retry-After", "Content-Disposition"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.identities))
		r.Use(middleware.Timeout(s.timeout))

		r.Post("/v1/insights", s.handleInsights)
		r.Get("/v1/insights/report.xlsx", s.handleReport)
	})

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			zap.L().Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		}()
		next.ServeHTTP(ww, r)
	})
}
