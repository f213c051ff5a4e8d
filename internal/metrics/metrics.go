package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relay_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Relay metrics
	ConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_connections_open",
			Help: "Currently registered connections",
		},
	)

	RoomsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_rooms_open",
			Help: "Rooms with at least one member",
		},
	)

	EventsRelayed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_events_relayed_total",
			Help: "Events fanned out, by type",
		},
		[]string{"type"},
	)

	EventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_events_dropped_total",
			Help: "Per-recipient deliveries that failed, by reason",
		},
		[]string{"reason"}, // "timeout" or "closed"
	)

	DeliveryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "relay_fanout_duration_seconds",
			Help:    "Time to complete a full room fan-out",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 5},
		},
	)

	JoinsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_joins_rejected_total",
			Help: "Join attempts rejected, by reason",
		},
		[]string{"reason"}, // "invalid_room", "bad_key"
	)

	// Business metrics
	SessionsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_sessions_created_total",
			Help: "Total sessions created",
		},
	)

	SummariesGenerated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_summaries_generated_total",
			Help: "Total summaries generated",
		},
	)

	// Rate limit metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_rate_limit_hits_total",
			Help: "Total rate limit hits",
		},
		[]string{"endpoint"},
	)

	// Infrastructure metrics
	BridgeEventsIn = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_bridge_events_in_total",
			Help: "Events received from other instances over the bridge",
		},
	)

	BridgeEventsOut = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_bridge_events_out_total",
			Help: "Events published to the bridge",
		},
	)

	StoreLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "relay_store_latency_seconds",
			Help:    "Persistence operation latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1},
		},
	)
)
