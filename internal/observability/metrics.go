// Package observability provides Prometheus metrics and OpenTelemetry
// tracing for the application.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrors counts Redis errors by operation type.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "majlis_redis_errors_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// WebSocketConnectionsTotal is the gauge of active WebSocket connections.
	WebSocketConnectionsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "majlis_websocket_connections_total",
		Help: "Total number of active WebSocket connections",
	})

	// WebSocketRoomMembers is the gauge of connections per room.
	WebSocketRoomMembers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "majlis_websocket_room_members",
		Help: "Number of WebSocket connections per room",
	}, []string{"room"})

	// WebSocketEventsTotal counts inbound WebSocket events by type.
	WebSocketEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "majlis_websocket_events_total",
		Help: "Total WebSocket events by type",
	}, []string{"event_type"})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "majlis_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})

	// RadioConflictsTotal counts radio updates rejected by the version check.
	RadioConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "majlis_radio_conflicts_total",
		Help: "Total number of radio updates rejected due to a stale version",
	})
)
