package agent

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus metrics for the agent.
type Metrics struct {
	registry *prometheus.Registry

	SessionsActive prometheus.Gauge
	SessionsTotal  *prometheus.CounterVec

	ToolCallsTotal *prometheus.CounterVec

	AudioBytesTotal *prometheus.CounterVec
}

// NewMetrics creates a Metrics instance with everything registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "conductor"
	}

	registry := prometheus.NewRegistry()

	sessionsActive := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sessions_active",
		Help:      "Number of active live sessions",
	})
	sessionsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_total",
		Help:      "Total number of live sessions",
	}, []string{"status"})
	toolCallsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tool_calls_total",
		Help:      "Total tool invocations dispatched",
	}, []string{"tool", "outcome"})
	audioBytesTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audio_bytes_total",
		Help:      "Total PCM bytes moved through the session",
	}, []string{"direction"})

	registry.MustRegister(sessionsActive, sessionsTotal, toolCallsTotal, audioBytesTotal)

	return &Metrics{
		registry:        registry,
		SessionsActive:  sessionsActive,
		SessionsTotal:   sessionsTotal,
		ToolCallsTotal:  toolCallsTotal,
		AudioBytesTotal: audioBytesTotal,
	}
}

// Handler returns the scrape endpoint handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
