// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// WSConnectionsActive tracks open WebSocket connections.
	WSConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ws_connections_active",
			Help: "Number of active WebSocket connections",
		},
	)

	// OnlineUsers tracks principals with a registered live connection.
	OnlineUsers = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "chat_online_users",
			Help: "Number of online principals",
		},
		[]string{"role"},
	)

	// WSEventsTotal tracks inbound WebSocket events.
	WSEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ws_events_total",
			Help: "Total inbound WebSocket events",
		},
		[]string{"event", "outcome"},
	)

	// WSEventDuration tracks inbound event handling time.
	WSEventDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ws_event_duration_seconds",
			Help:    "WebSocket event handling duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"event"},
	)

	// WSDroppedConnections tracks connections closed because their send queue filled up.
	WSDroppedConnections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ws_dropped_connections_total",
			Help: "Connections dropped on a full send queue",
		},
	)

	// MessagesTotal tracks total messages sent.
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_messages_total",
			Help: "Total chat messages sent",
		},
		[]string{"sender_type", "transport"},
	)

	// ConversationsTotal tracks total conversations created.
	ConversationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_conversations_total",
			Help: "Total conversations created",
		},
	)

	// MessagesReadTotal tracks messages transitioned to read.
	MessagesReadTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_messages_read_total",
			Help: "Total messages marked as read",
		},
		[]string{"reader_type"},
	)

	// TypingExpiredTotal tracks typing indicators cleared by the sweeper.
	TypingExpiredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_typing_expired_total",
			Help: "Typing indicators expired by timeout",
		},
	)

	// JournalPublishFailures tracks chat events that could not be journaled.
	JournalPublishFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nats_journal_publish_failures_total",
			Help: "Chat events that failed to publish to NATS",
		},
		[]string{"type"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordEvent records the outcome of one inbound WebSocket event.
func RecordEvent(event, outcome string, duration float64) {
	WSEventsTotal.WithLabelValues(event, outcome).Inc()
	WSEventDuration.WithLabelValues(event).Observe(duration)
}

// IncrementWSConnections increments the active WebSocket connection count.
func IncrementWSConnections() {
	WSConnectionsActive.Inc()
}

// DecrementWSConnections decrements the active WebSocket connection count.
func DecrementWSConnections() {
	WSConnectionsActive.Dec()
}
