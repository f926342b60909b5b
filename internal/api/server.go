package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/snarg/interview-stt/internal/config"
	"github.com/snarg/interview-stt/internal/metrics"
)

type Server struct {
	http *http.Server
	log  zerolog.Logger
}

// ServerOptions carries the dependencies that are optional at runtime.
type ServerOptions struct {
	DB        HealthChecker // nil when DATABASE_URL is unset
	Converter bool          // ffmpeg resolved
	Version   string
	StartTime time.Time
}

func NewServer(cfg *config.Config, svc Transcriber, opts ServerOptions, log zerolog.Logger) *Server {
	return &Server{
		http: &http.Server{
			Addr:         cfg.HTTPAddr,
			Handler:      NewRouter(cfg, svc, opts, log),
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		log: log,
	}
}

// NewRouter builds the full route tree. Split out from NewServer so tests can
// drive it with httptest.
func NewRouter(cfg *config.Config, svc Transcriber, opts ServerOptions, log zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(RequestID)
	r.Use(Recoverer)
	r.Use(Logger(log))
	r.Use(CORSWithOrigins(cfg.CORSOrigins))
	r.Use(metrics.InstrumentHandler)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// Health endpoint: no auth
		health := NewHealthHandler(opts.DB, svc, opts.Converter, opts.Version, opts.StartTime)
		r.Get("/health", health.ServeHTTP)

		// Authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(BearerAuth(cfg.AuthToken))
			if cfg.RateLimitRPS > 0 {
				r.Use(RateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst))
			}
			NewTranscribeHandler(svc, cfg.MaxUploadBytes, log).Routes(r)
		})
	})

	return r
}

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("http server starting")
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("http server shutting down")
	return s.http.Shutdown(ctx)
}
