// Package monitoring holds the domain-level Prometheus collectors.
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LoanRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lending_loan_requests_total",
		Help: "Total number of loan requests by outcome.",
	}, []string{"outcome"})

	LoanTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lending_loan_transitions_total",
		Help: "Total number of loan status transitions by target status.",
	}, []string{"status"})

	ScorePollAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lending_score_poll_attempts_total",
		Help: "Total number of score poll attempts by result.",
	}, []string{"result"})

	GatewayRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lending_gateway_request_duration_seconds",
		Help:    "Duration of scoring gateway calls in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "status"})

	LoansByStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "lending_loans_by_status",
		Help: "Number of loans in the ledger per status, refreshed by the ledger report job.",
	}, []string{"status"})

	DBQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lending_db_query_duration_seconds",
		Help:    "Histogram of database query latencies.",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"query_name", "status"})

	WorkflowsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lending_workflows_in_flight",
		Help: "Number of loan workflows currently running.",
	})
)

const (
	OutcomeAccepted      = "accepted"
	OutcomeNotSubscribed = "not_subscribed"
	OutcomeActiveLoan    = "active_loan"
	OutcomeInvalid       = "invalid"
	OutcomeFailed        = "failed"
	PollResultReady      = "ready"
	PollResultPending    = "pending"
	PollResultError      = "error"
)

func RecordLoanRequest(outcome string) {
	LoanRequestsTotal.WithLabelValues(outcome).Inc()
}

func RecordTransition(status string) {
	LoanTransitionsTotal.WithLabelValues(status).Inc()
}

func RecordPollAttempt(result string) {
	ScorePollAttemptsTotal.WithLabelValues(result).Inc()
}

func ObserveGatewayCall(operation, status string, d time.Duration) {
	GatewayRequestDuration.WithLabelValues(operation, status).Observe(d.Seconds())
}

func RecordDBQuery(queryName, status string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(queryName, status).Observe(duration.Seconds())
}

// SetLoansByStatus replaces the gauge values with counts. Statuses missing
// from counts are reported as zero.
func SetLoansByStatus(statuses []string, counts map[string]int) {
	for _, s := range statuses {
		LoansByStatus.WithLabelValues(s).Set(float64(counts[s]))
	}
}
