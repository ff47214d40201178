// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)
)

// Registration wizard metrics.
var (
	RegistrationStepTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registration_step_transitions_total",
			Help: "Wizard next-step attempts by step and outcome",
		},
		[]string{"step", "outcome"},
	)

	RegistrationDraftSaves = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registration_draft_saves_total",
			Help: "Draft writes by outcome",
		},
		[]string{"outcome"},
	)

	RegistrationUploads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registration_uploads_total",
			Help: "File uploads by field and outcome",
		},
		[]string{"field", "outcome"},
	)

	RegistrationUploadBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "registration_upload_bytes",
			Help:    "Size of accepted uploads",
			Buckets: prometheus.ExponentialBuckets(64*1024, 2, 10),
		},
	)

	RegistrationSubmissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registration_submissions_total",
			Help: "Final submissions by outcome",
		},
		[]string{"outcome"},
	)

	RegistrationSubmitDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "registration_submit_duration_seconds",
			Help: "Duration of the final submission",
		},
	)

	ReferenceCodeCollisions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "registration_reference_code_collisions_total",
			Help: "Inserts retried because the reference code already existed",
		},
	)
)

// BreakerState is the circuit breaker state per operation
// (0 closed, 1 half-open, 2 open).
var BreakerState = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "circuit_breaker_state",
		Help: "Circuit breaker state per guarded operation",
	},
	[]string{"operation"},
)
