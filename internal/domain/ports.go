package domain

import (
	"context"
	"encoding/json"
)

// Signaler manages the signaling connection.
type Signaler interface {
	Connect(ctx context.Context) error
	Send(msg SignalMessage) error
	Close() error
}

// SignalHandler receives signaling events. Messages arrive in order on a
// single goroutine.
type SignalHandler interface {
	OnSignalMessage(msg SignalMessage)
	OnSignalError(err error)
	OnSignalClose()
}

// MediaKind is the kind of a track or transceiver.
type MediaKind string

const (
	KindAudio MediaKind = "audio"
	KindVideo MediaKind = "video"
)

// Direction of a transceiver. DirectionUnset lets the engine reuse a
// transceiver created by the remote offer.
type Direction string

const (
	DirectionUnset    Direction = ""
	DirectionSendRecv Direction = "sendrecv"
	DirectionSendOnly Direction = "sendonly"
	DirectionRecvOnly Direction = "recvonly"
	DirectionInactive Direction = "inactive"
)

// SDPType of a session description.
type SDPType string

const (
	SDPOffer  SDPType = "offer"
	SDPAnswer SDPType = "answer"
)

// MediaSource produces media for a sender. Placeholders and real devices
// both implement it.
type MediaSource interface {
	Kind() MediaKind
	Stop() error
}

// Sender is a transport sender bound at negotiation time. Replace swaps the
// producer without renegotiation.
type Sender interface {
	Replace(src MediaSource) error
}

// RemoteTrack is an inbound media track.
type RemoteTrack interface {
	ID() string
	StreamID() string
}

// Channel is an ordered, reliable data channel.
type Channel interface {
	Label() string
	IsOpen() bool
	Send(data []byte) error
	SendText(text string) error
	OnOpen(fn func())
	OnMessage(fn func(data []byte))
	OnClose(fn func())
	OnError(fn func(err error))
	Close() error
}

// Peer manages the media engine for one session.
type Peer interface {
	AddTransceiver(kind MediaKind, dir Direction) error
	NewPlaceholder(kind MediaKind) (MediaSource, error)
	AttachSource(src MediaSource, dir Direction) (Sender, error)
	CreateDataChannel(label string) (Channel, error)

	CreateOffer() (string, error)
	CreateAnswer() (string, error)
	SetRemoteDescription(typ SDPType, sdp string) error
	AddICECandidate(c Candidate) error

	OnICECandidate(fn func(c *Candidate))
	OnTransportStateChange(fn func(state TransportState))
	OnTrack(fn func(kind MediaKind, track RemoteTrack))

	GetStats() (StatsReport, error)
	Close() error
}

// DeviceProvider acquires real capture devices on request.
type DeviceProvider interface {
	OpenCamera(ctx context.Context, spec CameraSpec) (MediaSource, error)
	OpenMicrophone(ctx context.Context, spec MicrophoneSpec) (MediaSource, error)
}

// VhalReceiver consumes VHAL traffic arriving on the control channel.
type VhalReceiver interface {
	OnPropConfigs(data json.RawMessage)
	OnGetAnswer(data json.RawMessage)
	OnSetAnswer(data json.RawMessage)
}

// DataChannelDescriptor configures one auxiliary channel. Callbacks are
// optional and never run concurrently with each other.
type DataChannelDescriptor struct {
	Name      string
	OnOpen    func()
	OnMessage func(data []byte)
	OnClose   func()
	OnError   func(err error)
}
