package services

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// tracerName is the OTel tracer name for the orchestration services.
const tracerName = "mce.services"

// Package-level Prometheus metrics for the orchestration loop.
// Auto-registered via promauto; exposed by `mce run --metrics-addr`.
var (
	// gapsDetectedTotal counts gaps created or reopened by evaluation.
	//
	// Labels:
	//   - kind: gap kind
	//   - event: "created" or "reopened"
	gapsDetectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mce",
			Subsystem: "gaps",
			Name:      "detected_total",
			Help:      "Total gaps created or reopened by completeness evaluation.",
		},
		[]string{"kind", "event"},
	)

	// gapTransitionsTotal counts gap status transitions into a status.
	gapTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mce",
			Subsystem: "gaps",
			Name:      "transitions_total",
			Help:      "Total gap status transitions by target status.",
		},
		[]string{"status"},
	)

	// ruleErrorsTotal counts rule evaluations that failed or panicked.
	ruleErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mce",
			Subsystem: "rules",
			Name:      "errors_total",
			Help:      "Total rule evaluations that failed.",
		},
		[]string{"rule"},
	)

	// attemptsTotal counts resolution attempts.
	//
	// Labels:
	//   - strategy: semantic_lookup, targeted_code_scan, targeted_doc_scan
	//   - outcome: success, no_result, failed
	attemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mce",
			Subsystem: "orchestrator",
			Name:      "attempts_total",
			Help:      "Total gap resolution attempts by strategy and outcome.",
		},
		[]string{"strategy", "outcome"},
	)

	// passDuration measures the duration of a resolution pass.
	passDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "mce",
			Subsystem: "orchestrator",
			Name:      "pass_duration_seconds",
			Help:      "Duration of gap resolution passes in seconds.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 300},
		},
	)

	// runsTotal counts finished runs by termination reason.
	runsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mce",
			Subsystem: "orchestrator",
			Name:      "runs_total",
			Help:      "Total orchestrator runs by termination reason.",
		},
		[]string{"reason"},
	)
)

func recordGapDetected(kind, event string) {
	gapsDetectedTotal.WithLabelValues(kind, event).Inc()
}

func recordTransition(status string) {
	gapTransitionsTotal.WithLabelValues(status).Inc()
}

func recordRuleError(ruleID string) {
	ruleErrorsTotal.WithLabelValues(ruleID).Inc()
}

func recordAttempt(strategy, outcome string) {
	attemptsTotal.WithLabelValues(strategy, outcome).Inc()
}

func recordPass(d time.Duration) {
	passDuration.Observe(d.Seconds())
}

func recordRun(reason string) {
	runsTotal.WithLabelValues(reason).Inc()
}
