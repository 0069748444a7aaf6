package http

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for agentgate.
// Pass to components that need to record metrics.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	AuthzFailures   *prometheus.CounterVec
	AgentRunsTotal  *prometheus.CounterVec
	ActiveRuns      prometheus.Gauge
}

// NewMetrics creates and registers all metrics with the given registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		RequestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "agentgate",
				Name:      "requests_total",
				Help:      "Total number of API requests processed",
			},
			[]string{"method", "status"}, // status=ok/error
		),
		RequestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "agentgate",
				Name:      "request_duration_seconds",
				Help:      "Request duration in seconds",
				Buckets:   prometheus.DefBuckets, // 5ms to 10s
			},
			[]string{"method"},
		),
		AuthzFailures: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "agentgate",
				Name:      "authz_failures_total",
				Help:      "Requests rejected at the authorization boundary",
			},
			[]string{"reason"}, // reason=unauthenticated/forbidden
		),
		AgentRunsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "agentgate",
				Name:      "agent_runs_total",
				Help:      "Total agent executions by final session status",
			},
			[]string{"status"}, // status=completed/failed
		),
		ActiveRuns: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: "agentgate",
				Name:      "active_runs",
				Help:      "Number of agent executions currently in flight",
			},
		),
	}
}
