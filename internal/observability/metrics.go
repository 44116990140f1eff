package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	apiRequestsTotal      *prometheus.CounterVec
	apiLatencySeconds     *prometheus.HistogramVec
	apiErrorsTotal        *prometheus.CounterVec
	taskTransitionsTotal  *prometheus.CounterVec
	retentionRunsTotal    *prometheus.CounterVec
	retentionPurgedTotal  prometheus.Counter
	retentionDurationSecs prometheus.Histogram
)

// RegisterMetrics initialises the Prometheus collectors used by the study plan API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "studyplan_api_requests_total",
			Help: "Total number of study plan API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "studyplan_api_latency_seconds",
			Help:    "Latency distribution for study plan API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "studyplan_api_errors_total",
			Help: "Total number of error responses returned by study plan endpoints.",
		}, []string{"method", "route", "status"})

		taskTransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "studyplan_task_transitions_total",
			Help: "Task lifecycle transition attempts by transition and outcome.",
		}, []string{"transition", "outcome"})

		retentionRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "studyplan_retention_runs_total",
			Help: "Retention sweeps executed per school outcome.",
		}, []string{"outcome"})

		retentionPurgedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "studyplan_retention_plans_purged_total",
			Help: "Plan instances deleted by retention sweeps.",
		})

		retentionDurationSecs = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "studyplan_retention_duration_seconds",
			Help:    "Duration of a single school's retention sweep.",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 15, 60},
		})

		prometheus.MustRegister(
			apiRequestsTotal,
			apiLatencySeconds,
			apiErrorsTotal,
			taskTransitionsTotal,
			retentionRunsTotal,
			retentionPurgedTotal,
			retentionDurationSecs,
		)
	})
}

// APIRequests exposes the counter for API requests.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the latency histogram for API requests.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors exposes the counter for API error responses.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// TaskTransitions counts complete/verify attempts labelled by outcome.
func TaskTransitions() *prometheus.CounterVec {
	RegisterMetrics()
	return taskTransitionsTotal
}

// RetentionRuns counts retention sweeps labelled by outcome.
func RetentionRuns() *prometheus.CounterVec {
	RegisterMetrics()
	return retentionRunsTotal
}

// RetentionPlansPurged counts plans deleted by retention.
func RetentionPlansPurged() prometheus.Counter {
	RegisterMetrics()
	return retentionPurgedTotal
}

// RetentionDuration observes per-school sweep duration.
func RetentionDuration() prometheus.Histogram {
	RegisterMetrics()
	return retentionDurationSecs
}
