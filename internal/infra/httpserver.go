package infra

import (
	"context"
	"net/http"
	"time"
)

// HTTPServer wraps http.Server to provide graceful startup and shutdown helpers.
type HTTPServer struct {
	server *http.Server
}

// NewHTTPServer creates a configured HTTP server instance for the proxy API.
func NewHTTPServer(cfg *Config, handler http.Handler) *HTTPServer {
	return newServer(":"+cfg.Port, handler, cfg)
}

// NewOpsServer creates the side listener for metrics and health probes. It
// returns nil when METRICS_PORT is unset.
func NewOpsServer(cfg *Config, handler http.Handler) *HTTPServer {
	if cfg.MetricsPort == "" {
		return nil
	}
	return newServer(":"+cfg.MetricsPort, handler, cfg)
}

func newServer(addr string, handler http.Handler, cfg *Config) *HTTPServer {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
	}
	return &HTTPServer{server: srv}
}

// Addr returns the listen address.
func (s *HTTPServer) Addr() string {
	if s == nil || s.server == nil {
		return ""
	}
	return s.server.Addr
}

// Start runs the HTTP server in the current goroutine.
func (s *HTTPServer) Start() error {
	if s == nil || s.server == nil {
		return nil
	}
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
