// Package metrics defines the Prometheus instrumentation for the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, route and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stockledger_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPRequestDuration observes request latency by method and route.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stockledger_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// MovementsRecorded counts committed ledger movements by kind.
	MovementsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stockledger_movements_recorded_total",
			Help: "Total number of stock movements committed to the ledger.",
		},
		[]string{"kind"},
	)

	// MovementsRejected counts rejected movement requests by reason.
	MovementsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stockledger_movements_rejected_total",
			Help: "Total number of rejected stock movement requests.",
		},
		[]string{"reason"},
	)

	// IdempotencyReplays counts requests answered from the idempotency cache.
	IdempotencyReplays = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stockledger_idempotency_replays_total",
			Help: "Total number of responses replayed from the idempotency cache.",
		},
		[]string{"route"},
	)

	// StorageConflicts counts serialization failures and deadlocks seen by
	// the transaction manager.
	StorageConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stockledger_storage_conflicts_total",
			Help: "Total number of transactions aborted by a serialization failure or deadlock.",
		},
	)
)
