package metrics

import "github.com/prometheus/client_golang/prometheus"

// Prometheus collectors for the realtime gateway and the notification ledger.
var (
	ConnectionsOpen = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "realtime_connections_open",
			Help: "Number of open realtime connections",
		},
	)

	IdentitiesOnline = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "realtime_identities_online",
			Help: "Number of distinct authenticated identities with at least one open connection",
		},
	)

	ConnectionsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_connections_rejected_total",
			Help: "Connection attempts rejected before registration",
		},
		[]string{"reason"},
	)

	EventsPushed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_events_pushed_total",
			Help: "Events queued for delivery to live connections",
		},
		[]string{"event"},
	)

	EventsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_events_dropped_total",
			Help: "Events dropped because a connection queue was full or closed",
		},
		[]string{"reason"},
	)

	CommandsHandled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_commands_total",
			Help: "Inbound client commands by type and outcome",
		},
		[]string{"command", "outcome"},
	)

	LedgerWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_writes_total",
			Help: "Notification ledger writes by outcome",
		},
		[]string{"outcome"},
	)

	LedgerWriteDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ledger_write_duration_seconds",
			Help:    "Duration of notification writes including retries",
			Buckets: prometheus.DefBuckets,
		},
	)

	DeadLettered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_dead_letters_total",
			Help: "Notifications handed to dead-letter sinks by sink outcome",
		},
		[]string{"outcome"},
	)

	DispatchedEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_domain_events_total",
			Help: "Domain mutation events processed by the dispatcher",
		},
		[]string{"event"},
	)

	RateLimited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_rate_limited_total",
			Help: "Requests rejected by a per-IP rate limiter",
		},
		[]string{"limiter"},
	)
)

// Register registers all collectors with reg.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		ConnectionsOpen,
		IdentitiesOnline,
		ConnectionsRejected,
		EventsPushed,
		EventsDropped,
		CommandsHandled,
		LedgerWrites,
		LedgerWriteDuration,
		DeadLettered,
		DispatchedEvents,
		RateLimited,
	)
}
