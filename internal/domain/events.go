package domain

import "encoding/json"

// EventKind identifies what an Event reports.
type EventKind int

const (
	EventReady EventKind = iota
	EventError
	EventClosed
	EventMessage
	EventStats
	EventIMEStateChanged
	EventControlChannelOpen
	EventDiscovered
)

func (k EventKind) String() string {
	switch k {
	case EventReady:
		return "ready"
	case EventError:
		return "error"
	case EventClosed:
		return "closed"
	case EventMessage:
		return "message"
	case EventStats:
		return "stats"
	case EventIMEStateChanged:
		return "ime-state"
	case EventControlChannelOpen:
		return "control-open"
	case EventDiscovered:
		return "discovered"
	default:
		return "unknown"
	}
}

// Event is delivered on the session's event channel. Only the fields
// relevant to Kind are set.
type Event struct {
	Kind EventKind

	// EventError
	Err error

	// EventMessage
	Type string
	Data json.RawMessage

	// EventStats
	Stats Stats

	// EventIMEStateChanged
	IMEVisible bool

	// EventDiscovered
	Discovery DiscoverResponse

	// EventReady; nil when the kind is not streamed.
	Video RemoteTrack
	Audio RemoteTrack
}

// Final reports whether no events follow this one.
func (e Event) Final() bool {
	return e.Kind == EventError || e.Kind == EventClosed
}
