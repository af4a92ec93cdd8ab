package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the prometheus collectors for orchestration runs.
type Metrics struct {
	RunsTotal        *prometheus.CounterVec
	ModelInvocations *prometheus.CounterVec
	RunDuration      *prometheus.HistogramVec
	ActiveRuns       prometheus.Gauge
	SearchRequests   *prometheus.CounterVec
}

// New creates and registers the collectors on the given registerer.
// Tests pass prometheus.NewRegistry() to avoid global state.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quorum_runs_total",
			Help: "Orchestration runs by kind (query, task_query).",
		}, []string{"kind"}),
		ModelInvocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quorum_model_invocations_total",
			Help: "Model invocations by model identifier and terminal status.",
		}, []string{"model", "status"}),
		RunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "quorum_run_duration_seconds",
			Help:    "Wall-clock duration of a full orchestration run.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}, []string{"kind"}),
		ActiveRuns: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "quorum_active_runs",
			Help: "Orchestration runs currently in flight.",
		}),
		SearchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quorum_search_requests_total",
			Help: "Web augmentation requests by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(m.RunsTotal, m.ModelInvocations, m.RunDuration, m.ActiveRuns, m.SearchRequests)
	return m
}
