// Package metrics holds the Prometheus collectors exported by the proxy.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the service collectors behind a private registry. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry     *prometheus.Registry
	fetchRetries *prometheus.CounterVec
	rungs        *prometheus.CounterVec
	polls        *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		fetchRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flyer_fetch_retries_total",
			Help: "Retries performed by the resilient fetcher, by reason.",
		}, []string{"reason"}),
		rungs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flyer_ladder_rung_total",
			Help: "Fallback ladder rung outcomes.",
		}, []string{"orchestrator", "rung", "outcome"}),
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flyer_poll_attempts_total",
			Help: "Job status polls, by job kind and observed state.",
		}, []string{"job", "state"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "flyer_http_request_duration_seconds",
			Help:    "Proxy request latency.",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		}, []string{"path", "status"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.fetchRetries, m.rungs, m.polls, m.httpDuration,
	)
	return m
}

// Registry exposes the underlying registry for tests and custom exporters.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) FetchRetry(reason string) {
	if m == nil {
		return
	}
	m.fetchRetries.WithLabelValues(reason).Inc()
}

func (m *Metrics) Rung(orchestrator, rung, outcome string) {
	if m == nil {
		return
	}
	m.rungs.WithLabelValues(orchestrator, rung, outcome).Inc()
}

func (m *Metrics) Poll(job, state string) {
	if m == nil {
		return
	}
	m.polls.WithLabelValues(job, state).Inc()
}

func (m *Metrics) ObserveHTTP(path string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpDuration.WithLabelValues(path, strconv.Itoa(status)).Observe(elapsed.Seconds())
}
