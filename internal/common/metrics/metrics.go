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

	ScoresComputed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dealflow_scores_computed_total",
			Help: "Total buyer-deal scores computed, by tier",
		},
		[]string{"tier"},
	)

	ScoresDisqualified = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dealflow_scores_disqualified_total",
			Help: "Total disqualified scores, by reason",
		},
		[]string{"reason"},
	)

	AlertsMatched = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dealflow_alerts_matched_total",
			Help: "Total deal alerts matched against new listings",
		},
	)

	AlertsDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dealflow_alerts_delivered_total",
			Help: "Total alert deliveries attempted, by channel and status",
		},
		[]string{"channel", "status"},
	)

	WebhookBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dealflow_webhook_breaker_open",
			Help: "1 when the webhook circuit breaker is open, 0 otherwise",
		},
	)

	CriteriaExtractions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dealflow_criteria_extractions_total",
			Help: "Total buyer criteria extraction attempts, by result",
		},
		[]string{"result"},
	)
)
