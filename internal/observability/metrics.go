package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCollector holds all Prometheus metrics for coderun.
// Uses a custom registry, no global state.
type MetricsCollector struct {
	Registry *prometheus.Registry

	// MCP tool call metrics.
	ToolCallsTotal   *prometheus.CounterVec
	ToolCallDuration *prometheus.HistogramVec

	// Container run metrics.
	SandboxExecutionsTotal   *prometheus.CounterVec
	SandboxExecutionDuration prometheus.Histogram

	// HTTP transport metrics.
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	ActiveCalls prometheus.Gauge
}

// NewMetricsCollector creates a MetricsCollector with all metrics registered
// on a custom prometheus.Registry.
func NewMetricsCollector() *MetricsCollector {
	reg := prometheus.NewRegistry()

	m := &MetricsCollector{
		Registry: reg,

		ToolCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "coderun",
			Subsystem: "tool",
			Name:      "calls_total",
			Help:      "Total MCP tool calls by outcome.",
		}, []string{"tool", "status"}),

		ToolCallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "coderun",
			Subsystem: "tool",
			Name:      "call_duration_seconds",
			Help:      "MCP tool call duration in seconds.",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
		}, []string{"tool"}),

		SandboxExecutionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "coderun",
			Subsystem: "sandbox",
			Name:      "executions_total",
			Help:      "Total container runs.",
		}, []string{"status"}),

		SandboxExecutionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "coderun",
			Subsystem: "sandbox",
			Name:      "execution_duration_seconds",
			Help:      "Container run duration in seconds.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
		}),

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "coderun",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		}, []string{"method", "path", "status_code"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "coderun",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),

		ActiveCalls: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "coderun",
			Name:      "active_calls",
			Help:      "Number of tool calls currently in flight.",
		}),
	}

	reg.MustRegister(
		m.ToolCallsTotal,
		m.ToolCallDuration,
		m.SandboxExecutionsTotal,
		m.SandboxExecutionDuration,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.ActiveCalls,
	)

	return m
}
