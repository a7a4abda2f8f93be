// Package metrics provides Prometheus metrics collection for the research
// agent: HTTP request counters plus agent-level counters (turns, model calls,
// tool executions, memory compressions).
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const subsystem = "research_agent"

// Metrics holds the Prometheus registry and the collectors the service emits.
type Metrics struct {
	reg *prometheus.Registry

	TotalHTTPRequestsCounter prometheus.Counter
	HTTPDurationHistogram    prometheus.Histogram

	TurnsCounter            prometheus.Counter
	ModelCallsCounter       prometheus.Counter
	ToolExecutionsCounter   *prometheus.CounterVec
	CompressionsCounter     prometheus.Counter
	FallbacksCounter        prometheus.Counter
	ExpiredSessionsCounter  prometheus.Counter
	IterationCapHitsCounter prometheus.Counter
}

// New creates a Metrics instance with all collectors registered.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
	}

	m.TotalHTTPRequestsCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Subsystem: subsystem,
		Name:      "total_http_requests",
		Help:      "Total HTTP requests",
	})
	m.HTTPDurationHistogram = prometheus.NewHistogram(prometheus.HistogramOpts{
		Subsystem: subsystem,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds",
		Buckets:   []float64{0.1, 0.3, 0.5, 0.7, 1.0, 3.0, 5.0, 7.0, 10.0, 30.0},
	})

	m.TurnsCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Subsystem: subsystem,
		Name:      "agent_turns_total",
		Help:      "Total agent turns executed",
	})
	m.ModelCallsCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Subsystem: subsystem,
		Name:      "model_calls_total",
		Help:      "Total LLM completion calls",
	})
	m.ToolExecutionsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Subsystem: subsystem,
		Name:      "tool_executions_total",
		Help:      "Total tool executions by tool name",
	}, []string{"tool"})
	m.CompressionsCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Subsystem: subsystem,
		Name:      "memory_compressions_total",
		Help:      "Total conversation history compressions",
	})
	m.FallbacksCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Subsystem: subsystem,
		Name:      "model_fallbacks_total",
		Help:      "Total fallbacks to non-tool completion mode",
	})
	m.ExpiredSessionsCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Subsystem: subsystem,
		Name:      "expired_sessions_total",
		Help:      "Total sessions evicted by TTL expiry",
	})
	m.IterationCapHitsCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Subsystem: subsystem,
		Name:      "iteration_cap_hits_total",
		Help:      "Total turns terminated by the iteration ceiling",
	})

	m.reg.MustRegister(
		m.TotalHTTPRequestsCounter,
		m.HTTPDurationHistogram,
		m.TurnsCounter,
		m.ModelCallsCounter,
		m.ToolExecutionsCounter,
		m.CompressionsCounter,
		m.FallbacksCounter,
		m.ExpiredSessionsCounter,
		m.IterationCapHitsCounter,
	)

	return m
}

// Handler returns an HTTP handler exposing the registry in Prometheus format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// HTTPMiddleware counts requests and observes their duration.
func (m *Metrics) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.TotalHTTPRequestsCounter.Inc()
		next.ServeHTTP(w, r)
		m.HTTPDurationHistogram.Observe(time.Since(start).Seconds())
	})
}
