package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveWebSockets is the gauge of currently open realtime connections.
	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ripple_websocket_connections_total",
		Help: "Total number of active WebSocket connections",
	})

	// WebSocketEventsTotal counts inbound WebSocket events by type.
	WebSocketEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ripple_websocket_events_total",
		Help: "Total inbound WebSocket events by type",
	}, []string{"event_type"})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by hub and reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ripple_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})

	// FanoutDeliveries counts delivery legs dispatched per event type and leg kind.
	FanoutDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ripple_fanout_deliveries_total",
		Help: "Total fan-out delivery legs dispatched",
	}, []string{"event_type", "leg"})

	// CollaboratorFailures counts degraded calls to external collaborators.
	CollaboratorFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ripple_collaborator_failures_total",
		Help: "Total failed calls to external collaborators (degraded to defaults)",
	}, []string{"collaborator"})
)
