// Package metrics exposes Prometheus collectors for the outreach engine.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pagesFetchedTotal *prometheus.CounterVec
	targetsTotal      *prometheus.CounterVec
	runsTotal         *prometheus.CounterVec
	submissionsTotal  *prometheus.CounterVec
	taskAttemptsTotal *prometheus.CounterVec

	once sync.Once
)

// Init initializes the Prometheus collectors. It is safe to call
// multiple times; helpers call it lazily.
func Init() {
	once.Do(func() {
		pagesFetchedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "outreach_pages_fetched_total",
				Help: "Pages fetched during site crawls, labeled by outcome.",
			},
			[]string{"outcome"},
		)
		targetsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "outreach_targets_processed_total",
				Help: "Targets processed by the pipeline, labeled by result.",
			},
			[]string{"result"},
		)
		runsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "outreach_runs_total",
				Help: "Pipeline runs, labeled by mode.",
			},
			[]string{"mode"},
		)
		submissionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "outreach_submissions_total",
				Help: "Submission attempts, labeled by resulting status.",
			},
			[]string{"status"},
		)
		taskAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "outreach_task_attempts_total",
				Help: "Task executor attempts, labeled by task name and outcome.",
			},
			[]string{"task", "outcome"},
		)
	})
}

// PageFetched records one crawl fetch outcome ("ok" or "unavailable").
func PageFetched(outcome string) {
	Init()
	pagesFetchedTotal.WithLabelValues(outcome).Inc()
}

// TargetProcessed records one processed target ("success", "gated",
// "errored").
func TargetProcessed(result string) {
	Init()
	targetsTotal.WithLabelValues(result).Inc()
}

// RunStarted records one started run by mode.
func RunStarted(mode string) {
	Init()
	runsTotal.WithLabelValues(mode).Inc()
}

// SubmissionRecorded records one submission attempt result.
func SubmissionRecorded(status string) {
	Init()
	submissionsTotal.WithLabelValues(status).Inc()
}

// TaskAttempt records one executor attempt ("success" or "failure").
func TaskAttempt(task, outcome string) {
	Init()
	taskAttemptsTotal.WithLabelValues(task, outcome).Inc()
}
