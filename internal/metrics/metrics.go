// Package metrics holds the Prometheus collectors exported at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finagent_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "finagent_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 5, 15},
		},
		[]string{"method", "path"},
	)

	// Journey metrics
	JourneysStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finagent_journeys_started_total",
			Help: "Journeys entered, by journey id",
		},
		[]string{"journey"},
	)

	JourneysCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finagent_journeys_completed_total",
			Help: "Journeys that reached their terminal message, by journey id",
		},
		[]string{"journey"},
	)

	ActionsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finagent_actions_dispatched_total",
			Help: "Actions dispatched to a session, by action and outcome",
		},
		[]string{"action", "outcome"},
	)

	IntentMatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finagent_intent_matches_total",
			Help: "Free-text messages, by resolved journey or \"none\"",
		},
		[]string{"journey"},
	)

	LiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "finagent_live_sessions",
			Help: "Conversations held in memory",
		},
	)

	SessionsExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "finagent_sessions_expired_total",
			Help: "In-memory conversations closed by the idle reaper",
		},
	)

	// Transport metrics
	StreamConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "finagent_stream_connections",
			Help: "Open event stream connections, by transport",
		},
		[]string{"transport"}, // "sse" or "websocket"
	)

	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finagent_rate_limit_hits_total",
			Help: "Total rate limit hits",
		},
		[]string{"endpoint"},
	)

	// Infrastructure metrics
	SQLiteLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "finagent_sqlite_latency_seconds",
			Help:    "SQLite snapshot operation latency",
			Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .5},
		},
		[]string{"op"},
	)

	ConversationLogDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "finagent_conversation_log_dropped_total",
			Help: "Transcript events dropped because the writer queue was full",
		},
	)

	BusEventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "finagent_bus_events_dropped_total",
			Help: "Session events a transport subscriber missed because its buffer was full",
		},
	)
)

// Outcome labels for ActionsDispatched.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)
