// Package metrics declares the Prometheus collectors exported by the bot.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsHandled counts chat events per cog and outcome.
	EventsHandled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snowball_events_handled_total",
			Help: "Chat events handled by each cog",
		},
		[]string{"cog", "status"}, // status: ok, error, timeout, panic
	)

	// GuildsLeft counts guild departures by reason.
	GuildsLeft = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snowball_whitelist_guilds_left_total",
			Help: "Guilds left by the whitelist gatekeeper",
		},
		[]string{"reason"},
	)

	// TrialsGranted counts guilds that received a trial.
	TrialsGranted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "snowball_whitelist_trials_granted_total",
			Help: "Trials granted to newly joined guilds",
		},
	)

	// SweepDuration tracks how long a whitelist sweep takes.
	SweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "snowball_whitelist_sweep_duration_seconds",
			Help:    "Duration of whitelist sweeps",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)

	// MessagesArchived counts archived messages.
	MessagesArchived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snowball_archive_messages_total",
			Help: "Messages processed by the archive recorder",
		},
		[]string{"status"}, // status: stored, skipped, error
	)

	// CountVerdicts counts counting game verdicts.
	CountVerdicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snowball_count_verdicts_total",
			Help: "Counting game verdicts",
		},
		[]string{"verdict"},
	)

	// APIRequests counts third-party profile API requests.
	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snowball_profile_api_requests_total",
			Help: "Third-party profile API requests",
		},
		[]string{"plugin", "status"}, // status: ok, error
	)

	// QueryDuration tracks database query latency by operation.
	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "snowball_db_query_duration_seconds",
			Help:    "Database query latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// QueryErrors counts failed database queries by operation.
	QueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snowball_db_query_errors_total",
			Help: "Failed database queries",
		},
		[]string{"operation"},
	)
)
