package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records authentication attempts by result (success|failure|locked).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatekeep_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"result"},
	)

	// PermissionChecks counts permission evaluations and their outcome (allow|deny|error).
	PermissionChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatekeep_permission_checks_total",
			Help: "Total number of permission checks",
		},
		[]string{"permission", "result"},
	)

	// AttachmentOperations counts drive uploads and deletions by outcome.
	AttachmentOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatekeep_attachment_operations_total",
			Help: "Total number of attachment operations against the object store",
		},
		[]string{"operation", "result"},
	)

	// TokensIssued counts persisted and unpersisted tokens by type.
	TokensIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatekeep_tokens_issued_total",
			Help: "Total number of tokens issued",
		},
		[]string{"type"},
	)

	// TokensPurged counts tokens removed by the maintenance job.
	TokensPurged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gatekeep_tokens_purged_total",
			Help: "Total number of expired or blacklisted tokens purged",
		},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gatekeep_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// APIInFlight tracks requests currently being served.
	APIInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gatekeep_api_requests_in_flight",
			Help: "Number of API requests currently being served",
		},
	)
)
