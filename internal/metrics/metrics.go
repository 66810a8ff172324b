package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Integration metrics
	StepsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "simulation_steps_total",
			Help: "Total number of integration steps attempted",
		},
		[]string{"status"}, // status: success, failed
	)

	StepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "simulation_step_duration_seconds",
			Help:    "Duration of a single Yoshida integration step in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		},
	)

	ForceEvaluations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "force_evaluations_total",
			Help: "Total number of full force field evaluations",
		},
		[]string{"status"},
	)

	ForceEvaluationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "force_evaluation_duration_seconds",
			Help:    "Duration of a full O(N^2) force evaluation in seconds",
			Buckets: prometheus.ExponentialBuckets(0.00005, 4, 10),
		},
	)

	ParticlesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "simulation_particles",
			Help: "Number of particles in the running system",
		},
	)

	// Run progress gauges
	RunProgressRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "simulation_run_progress_ratio",
			Help: "Fraction of requested steps completed in the current run (0 to 1)",
		},
	)

	RunRemainingSeconds = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "simulation_run_remaining_seconds",
			Help: "Estimated seconds remaining in the current run",
		},
	)

	RunFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "simulation_run_failures_total",
			Help: "Total number of failed runs by error code",
		},
		[]string{"code"},
	)

	// Diagnostics
	KineticEnergy = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "simulation_kinetic_energy",
			Help: "Total kinetic energy at the last checkpoint",
		},
	)

	MomentumMagnitude = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "simulation_momentum_magnitude",
			Help: "Magnitude of total momentum at the last checkpoint",
		},
	)

	// Checkpoint cache metrics
	CheckpointsSaved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "checkpoints_saved_total",
			Help: "Total number of checkpoints written to the cache",
		},
	)

	CheckpointCacheSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "checkpoint_cache_size_bytes",
			Help: "Approximate size of the checkpoint cache in bytes",
		},
	)

	CheckpointCacheItems = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "checkpoint_cache_items",
			Help: "Number of items in the checkpoint cache",
		},
	)

	CheckpointCacheEvictions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "checkpoint_cache_evictions",
			Help: "Cumulative checkpoint cache evictions",
		},
	)

	CheckpointCacheHitRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "checkpoint_cache_hit_ratio",
			Help: "Fraction of checkpoint lookups served from the cache",
		},
	)

	MetricsCollectionErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metrics_collection_errors_total",
			Help: "Total number of errors during metrics collection",
		},
		[]string{"collector"},
	)

	// Status server
	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections_active",
			Help: "Number of active progress WebSocket connections",
		},
	)
)
