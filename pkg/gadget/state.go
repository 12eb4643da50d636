package gadget

// State is the gadget's connection-lifecycle state (SPEC_FULL.md §4.7's
// state table), mirrored on the teacher's GatewayState enum shape
// (pkg/core/gateway.go) — plain int enum with a String method, not a
// generalized state-machine library.
type State int

const (
	StateIdle State = iota
	StateAdvertisingPair
	StateAdvertisingReconnect
	StateConnected
	StateDisconnectedManual
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAdvertisingPair:
		return "advertising_pair"
	case StateAdvertisingReconnect:
		return "advertising_reconnect"
	case StateConnected:
		return "connected"
	case StateDisconnectedManual:
		return "disconnected_manual"
	default:
		return "unknown"
	}
}
