package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"flyerproxy/internal/http/handlers"
	"flyerproxy/internal/metrics"
	"flyerproxy/internal/middleware"
)

type Options struct {
	CORSAllowedOrigins []string
	ExposeStackTraces  bool
	// TrustProxyHeaders lets X-Forwarded-For / X-Real-IP replace the peer
	// address. Enable only behind a proxy that overwrites them.
	TrustProxyHeaders  bool
	RateLimitPerMin    int
	Logger             zerolog.Logger
	Metrics            *metrics.Metrics
}

// NewRouter builds the proxy surface. Every POST that matches no route is
// served by the batch handler for older clients.
func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if opts.TrustProxyHeaders {
		r.Use(chimw.RealIP)
	}
	r.Use(
		middleware.Logger(opts.Logger, opts.Metrics),
		middleware.Recover(opts.Logger, opts.ExposeStackTraces),
		middleware.CORS(opts.CORSAllowedOrigins),
		middleware.PostOnly,
		middleware.RateLimit(opts.RateLimitPerMin, time.Minute),
	)

	r.Post("/api/upscale", app.Upscale)
	r.Post("/api/edit-image", app.EditImage)
	r.Post("/api/batch-generate", app.BatchGenerate)
	r.NotFound(app.BatchGenerate)

	return r
}

// NewOpsRouter serves metrics and liveness on the side listener.
func NewOpsRouter(app *handlers.App, m *metrics.Metrics) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Get("/metrics", m.Handler().ServeHTTP)
	r.Get("/healthz", app.Health)
	return r
}
