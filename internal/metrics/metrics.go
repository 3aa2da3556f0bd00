// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RPCRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "splitledger_rpc_requests_total",
		Help: "Total RPC requests by procedure and Connect code",
	}, []string{"procedure", "code"})

	RPCDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "splitledger_rpc_duration_seconds",
		Help:    "RPC latency",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}, []string{"procedure"})

	ExpensesCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "splitledger_expenses_created_total",
		Help: "Expenses created by split type",
	}, []string{"split_type"})

	VerificationVotes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "splitledger_verification_votes_total",
		Help: "Verification status changes by status",
	}, []string{"status"})

	SettlementTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "splitledger_settlement_transitions_total",
		Help: "Settlements reaching a status",
	}, []string{"status"})

	PaymentsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "splitledger_payments_applied_total",
		Help: "Payments applied to splits by mode",
	}, []string{"mode"})

	PaymentApplications = promauto.NewCounter(prometheus.CounterOpts{
		Name: "splitledger_payment_applications_total",
		Help: "Split rows touched by payments",
	})
)
