// Package metrics provides Prometheus metrics for the reconciliation service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ReconciliationsTotal tracks reconciled invoices by disposition
	ReconciliationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "invoice_automation",
			Subsystem: "engine",
			Name:      "reconciliations_total",
			Help:      "Total number of reconciled invoices by disposition",
		},
		[]string{"disposition"},
	)

	// ReconcileDuration tracks reconcile duration in seconds
	ReconcileDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "invoice_automation",
			Subsystem: "engine",
			Name:      "reconcile_duration_seconds",
			Help:      "Duration of single-invoice reconciliation in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
	)

	// MatchStrategyTotal tracks which cascade step produced each match
	MatchStrategyTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "invoice_automation",
			Subsystem: "matching",
			Name:      "strategy_total",
			Help:      "Total number of match results by strategy",
		},
		[]string{"strategy"},
	)

	// SettlementsTotal tracks ledger settlement writes by status
	SettlementsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "invoice_automation",
			Subsystem: "ledger",
			Name:      "settlements_total",
			Help:      "Total number of ledger settlement writes by status",
		},
		[]string{"status"},
	)

	// RunsTotal tracks batch runs by status
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "invoice_automation",
			Subsystem: "processor",
			Name:      "runs_total",
			Help:      "Total number of batch runs by status",
		},
		[]string{"status"},
	)

	// KafkaMessagesPublished tracks event publishes by topic and status
	KafkaMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "invoice_automation",
			Subsystem: "kafka",
			Name:      "messages_published_total",
			Help:      "Total number of messages published to Kafka",
		},
		[]string{"topic", "status"},
	)
)

// RecordReconciliation records one reconciled invoice
func RecordReconciliation(disposition, strategy string, durationSeconds float64) {
	ReconciliationsTotal.WithLabelValues(disposition).Inc()
	MatchStrategyTotal.WithLabelValues(strategy).Inc()
	ReconcileDuration.Observe(durationSeconds)
}

// RecordSettlement records one settlement write attempt
func RecordSettlement(status string) {
	SettlementsTotal.WithLabelValues(status).Inc()
}

// RecordKafkaPublish records one Kafka publish attempt
func RecordKafkaPublish(topic, status string) {
	KafkaMessagesPublished.WithLabelValues(topic, status).Inc()
}
