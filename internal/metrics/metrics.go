// Package metrics registers the Prometheus collectors exposed on /metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// GatewayRequests counts spreadsheet endpoint calls by method and outcome.
	GatewayRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tahfidz",
		Subsystem: "gateway",
		Name:      "requests_total",
		Help:      "Requests sent to the spreadsheet endpoint.",
	}, []string{"method", "outcome"})

	// GatewayRetries counts backoff retries.
	GatewayRetries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tahfidz",
		Subsystem: "gateway",
		Name:      "retries_total",
		Help:      "Retries after a transient failure.",
	}, []string{"method"})

	// GatewayExhausted counts calls that gave up after the last retry.
	GatewayExhausted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tahfidz",
		Subsystem: "gateway",
		Name:      "exhausted_total",
		Help:      "Calls that failed after all retries.",
	}, []string{"method"})

	// SyncOutcomes counts journal entries by final status.
	SyncOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tahfidz",
		Subsystem: "sync",
		Name:      "outcomes_total",
		Help:      "Sync journal entries by outcome.",
	}, []string{"action", "status"})

	// ExamsFinished counts live exams that produced a result.
	ExamsFinished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tahfidz",
		Name:      "exams_finished_total",
		Help:      "Finished live exams by status.",
	}, []string{"status"})

	// ApprovalDecisions counts admin decisions on pending attendance.
	ApprovalDecisions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tahfidz",
		Name:      "approval_decisions_total",
		Help:      "Attendance approval decisions.",
	}, []string{"decision", "via"})
)

func init() {
	prometheus.MustRegister(
		GatewayRequests,
		GatewayRetries,
		GatewayExhausted,
		SyncOutcomes,
		ExamsFinished,
		ApprovalDecisions,
	)
}
