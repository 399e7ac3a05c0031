package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the Prometheus collectors for backtests, optimizations and
// weighting runs. Each Registry owns its own prometheus.Registry so several
// instances can coexist in tests.
type Registry struct {
	registry *prometheus.Registry

	Simulations          *prometheus.CounterVec
	Evaluations          *prometheus.CounterVec
	RunDuration          *prometheus.HistogramVec
	RunsInProgress       *prometheus.GaugeVec
	BatchFallbacks       *prometheus.CounterVec
	ArtifactCacheLookups *prometheus.CounterVec
	PersistenceFailures  *prometheus.CounterVec
}

// NewRegistry creates and registers all collectors.
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),

		Simulations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quant_simulations_total",
				Help: "Total number of simulations by outcome",
			},
			[]string{"outcome"},
		),

		Evaluations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quant_optimizer_evaluations_total",
				Help: "Parameter combinations evaluated by strategy and outcome",
			},
			[]string{"strategy", "outcome"},
		),

		RunDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "quant_run_duration_seconds",
				Help:    "Duration of optimization and weighting runs",
				Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
			},
			[]string{"kind", "status"},
		),

		RunsInProgress: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "quant_runs_in_progress",
				Help: "Runs currently in progress by kind",
			},
			[]string{"kind"},
		),

		BatchFallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quant_weighting_batch_fallbacks_total",
				Help: "Weighting batches retried sequentially by reason",
			},
			[]string{"reason"},
		),

		ArtifactCacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quant_artifact_cache_lookups_total",
				Help: "Backtest artifact cache lookups by result",
			},
			[]string{"result"},
		),

		PersistenceFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quant_persistence_failures_total",
				Help: "Result store writes that failed by kind",
			},
			[]string{"kind"},
		),
	}

	r.registry.MustRegister(
		r.Simulations,
		r.Evaluations,
		r.RunDuration,
		r.RunsInProgress,
		r.BatchFallbacks,
		r.ArtifactCacheLookups,
		r.PersistenceFailures,
	)

	return r
}

// Handler exposes the registry in the Prometheus text format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// ObserveRun records a finished run.
func (r *Registry) ObserveRun(kind, status string, elapsed time.Duration) {
	r.RunDuration.WithLabelValues(kind, status).Observe(elapsed.Seconds())
}

// Gatherer is exposed for tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}
