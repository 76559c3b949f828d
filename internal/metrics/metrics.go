package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "imyme"

var (
	SubmissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Total number of analysis submissions, labeled by admission outcome.",
		},
		[]string{"outcome"},
	)

	TasksFinishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_finished_total",
			Help:      "Total number of analysis tasks reaching a terminal status.",
		},
		[]string{"status", "code"},
	)

	OrchestrationLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "orchestration_latency_seconds",
			Help:      "Time from PROCESSING to a terminal status (seconds).",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
		},
		[]string{"status"},
	)

	RemoteJobPollsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_job_polls_total",
			Help:      "Total number of remote job status polls, labeled by observed status.",
		},
		[]string{"status"},
	)

	RemoteJobOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_job_outcomes_total",
			Help:      "Total number of remote job invocations, labeled by mode and outcome.",
		},
		[]string{"mode", "outcome"},
	)

	LLMCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_calls_total",
			Help:      "Total number of model calls, labeled by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)

	RateLimitHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_hits_total",
			Help:      "Total number of requests rejected by the token bucket.",
		},
		[]string{"scope"},
	)
)

func init() {
	prometheus.MustRegister(
		SubmissionsTotal,
		TasksFinishedTotal,
		OrchestrationLatencySeconds,
		RemoteJobPollsTotal,
		RemoteJobOutcomesTotal,
		LLMCallsTotal,
		RateLimitHitsTotal,
	)
}
