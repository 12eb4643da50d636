// Package metrics exposes the gadget's optional Prometheus instrumentation,
// adapted from the teacher's pkg/metrics/metrics.go: same promauto
// counter/gauge construction and helper-function shape, re-labeled for the
// gadget's packets/reconnects instead of the teacher's multi-gateway
// bridge.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Counters
	PacketCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agt_gadget_packets_total",
		Help: "The total number of link-layer packets processed by the gadget",
	}, []string{"transport", "direction", "status"})

	ChecksumFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agt_gadget_checksum_failures_total",
		Help: "The total number of inbound packets dropped for a checksum or framing error",
	}, []string{"transport"})

	ReconnectAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agt_gadget_reconnect_attempts_total",
		Help: "The total number of reconnect advertisement attempts made by the backoff worker",
	}, []string{"transport"})

	// Gauges
	ConnectionState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "agt_gadget_connection_state",
		Help: "Current gadget lifecycle state (0=idle, 1=advertising_pair, 2=advertising_reconnect, 3=connected, 4=disconnected_manual)",
	})
)

// Direction constants for PacketCount.
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// Status constants for PacketCount.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// IncPacket increments the packet counter for transport/direction/status.
func IncPacket(transport, direction, status string) {
	PacketCount.WithLabelValues(transport, direction, status).Inc()
}

// IncChecksumFailure increments the checksum-failure counter for transport.
func IncChecksumFailure(transport string) {
	ChecksumFailures.WithLabelValues(transport).Inc()
}

// IncReconnectAttempt increments the reconnect-attempt counter for
// transport.
func IncReconnectAttempt(transport string) {
	ReconnectAttempts.WithLabelValues(transport).Inc()
}

// SetConnectionState publishes the gadget's current lifecycle state as an
// integer gauge value.
func SetConnectionState(state int) {
	ConnectionState.Set(float64(state))
}
