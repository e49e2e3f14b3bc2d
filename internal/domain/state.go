package domain

// ConnectionState is the lifecycle state of a session.
type ConnectionState int

const (
	StateIdle ConnectionState = iota
	StateDiscovering
	StateNegotiating
	StateAwaitingTransport
	StateConnected
	StateDisconnecting
	StateClosed
	StateFailed
)

func (s ConnectionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDiscovering:
		return "discovering"
	case StateNegotiating:
		return "negotiating"
	case StateAwaitingTransport:
		return "awaiting-transport"
	case StateConnected:
		return "connected"
	case StateDisconnecting:
		return "disconnecting"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions can happen.
func (s ConnectionState) Terminal() bool {
	return s == StateClosed || s == StateFailed
}

// TransportState is the media engine's view of the ICE transport.
type TransportState int

const (
	TransportNew TransportState = iota
	TransportChecking
	TransportConnected
	TransportDisconnected
	TransportFailed
	TransportClosed
)

func (s TransportState) String() string {
	switch s {
	case TransportNew:
		return "new"
	case TransportChecking:
		return "checking"
	case TransportConnected:
		return "connected"
	case TransportDisconnected:
		return "disconnected"
	case TransportFailed:
		return "failed"
	case TransportClosed:
		return "closed"
	default:
		return "unknown"
	}
}
