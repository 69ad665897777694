package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Ingestion Metrics
var (
	// EventsReceived tracks raw records pulled from the upstream feed
	EventsReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "topicrooms_feed_records_total",
			Help: "Total raw records received from the upstream feed",
		},
	)

	// EventsSkipped tracks records that were not routed, by reason (parse, other)
	EventsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "topicrooms_feed_records_skipped_total",
			Help: "Upstream records skipped by reason",
		},
		[]string{"reason"},
	)

	// EventsPublished tracks room tagged events published on the bus
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "topicrooms_events_published_total",
			Help: "Room tagged events published on the broadcast bus",
		},
		[]string{"room"},
	)

	// FeedReconnects tracks upstream stream reconnect attempts
	FeedReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "topicrooms_feed_reconnects_total",
			Help: "Upstream stream reconnect attempts",
		},
	)
)

// Session Metrics
var (
	// SessionsActive tracks currently connected websocket sessions
	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "topicrooms_sessions_active",
			Help: "Number of connected client sessions",
		},
	)

	// EventsForwarded tracks events written to clients by room
	EventsForwarded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "topicrooms_events_forwarded_total",
			Help: "Events forwarded to clients by room",
		},
		[]string{"room"},
	)

	// RoomSwitches tracks control messages by outcome (switched, unknown)
	RoomSwitches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "topicrooms_room_switches_total",
			Help: "Client room switch requests by outcome",
		},
		[]string{"outcome"},
	)

	// SessionErrors tracks sessions terminated by an error
	SessionErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "topicrooms_session_errors_total",
			Help: "Sessions closed because of a session error",
		},
	)

	// BusDropped tracks items evicted from slow subscriber queues
	BusDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "topicrooms_bus_dropped_total",
			Help: "Items dropped from subscriber queues on overflow",
		},
	)
)
