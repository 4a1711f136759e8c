package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Imziyasser00/calis-blog-sub001/internal/analytics"
	"github.com/Imziyasser00/calis-blog-sub001/internal/config"
	"github.com/Imziyasser00/calis-blog-sub001/internal/subscribe"
	"github.com/Imziyasser00/calis-blog-sub001/internal/telemetry"
	"github.com/Imziyasser00/calis-blog-sub001/internal/track"
)

// Subscriber runs the subscription workflow.
type Subscriber interface {
	Subscribe(ctx context.Context, in subscribe.Input) (subscribe.Result, error)
}

// Tracker runs the tracking workflow.
type Tracker interface {
	Track(ctx context.Context, in track.Input) (track.Result, error)
}

// Pinger reports whether a downstream dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps groups the collaborators the HTTP layer calls into.
type Deps struct {
	Subscriber Subscriber
	Tracker    Tracker
	Images     analytics.BlobStore
	// Readiness lists dependencies checked by /readyz, keyed by name.
	Readiness map[string]Pinger
	// TracerProvider defaults to the global provider.
	TracerProvider trace.TracerProvider
}

// Server wires HTTP handlers to the workflows and stores.
type Server struct {
	router chi.Router
	deps   Deps
	cfg    config.Config
	logger *zap.Logger
	tracer trace.Tracer
}

const tracerName = "github.com/Imziyasser00/calis-blog-sub001/internal/api"

const (
	maxBodyBytes   = 64 << 10
	readyzTimeout  = 2 * time.Second
	ogCacheControl = "public, max-age=86400"
)

// NewServer constructs a Server with middleware and routes.
func NewServer(deps Deps, cfg config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	tp := deps.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	s := &Server{
		deps:   deps,
		cfg:    cfg,
		logger: logger.Named("api"),
		tracer: tp.Tracer(tracerName),
	}
	timeout := cfg.RequestTimeout()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(tracingMiddleware(s.tracer))
	r.Use(loggingMiddleware(s.logger))
	r.Use(recoverMiddleware(s.logger))
	r.Use(telemetry.Middleware)
	if cfg.Production() {
		r.Use(CanonicalHost(HostConfig{
			Canonical:       cfg.Server.CanonicalHost,
			PreviewSuffixes: cfg.Server.PreviewSuffixes,
			BypassPrefixes:  cfg.Server.BypassPrefixes,
		}))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", telemetry.Handler())

	r.Group(func(r chi.Router) {
		r.Use(timeoutMiddleware(timeout))
		r.Get("/og/{name}", s.ogImage)

		r.Route("/api", func(r chi.Router) {
			r.Use(cors.Handler(cors.Options{
				AllowedOrigins: cfg.CORS.AllowedOrigins,
				AllowedMethods: []string{http.MethodPost, http.MethodOptions},
				AllowedHeaders: []string{"Content-Type"},
				MaxAge:         300,
			}))
			if cfg.RateLimit.RequestsPerMinute > 0 {
				r.Use(httprate.Limit(
					cfg.RateLimit.RequestsPerMinute,
					time.Minute,
					httprate.WithKeyFuncs(s.rateLimitKey, httprate.KeyByEndpoint),
					httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
						writeError(w, http.StatusTooManyRequests, "Too many requests")
					}),
				))
			}
			r.Post("/subscribe", s.subscribe)
			r.Post("/track", s.track)
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}
