package domain

// Session is handed to the engine by the allocator before Start and is
// never modified afterwards.
type Session struct {
	SignalingURL string        `json:"signalingUrl" toml:"signaling_url"`
	RelayServers []RelayServer `json:"relayServers" toml:"relay"`
}

// RelayServer holds STUN/TURN server configuration.
type RelayServer struct {
	URLs       []string `json:"urls" toml:"urls"`
	Username   string   `json:"username,omitempty" toml:"username"`
	Credential string   `json:"credential,omitempty" toml:"credential"`
}

// StreamSettings declares what the client wants from the remote endpoint.
type StreamSettings struct {
	APIVersion           int
	Video                bool
	Audio                bool
	Speaker              bool
	Microphone           bool
	Camera               bool
	DeviceType           string
	ForegroundActivity   string
	PreferredVideoCodecs []string
}

const (
	// MaxAPIVersion is the highest signaling protocol version this client speaks.
	MaxAPIVersion = 2
	// ServerOfferAPIVersion is the first version where the remote issues the offer.
	ServerOfferAPIVersion = 2
	// MaxDataChannels bounds the auxiliary channels of a session.
	MaxDataChannels = 5
	// ControlChannelLabel is reserved for the control channel.
	ControlChannelLabel = "control"
)

// SupportedVideoCodecs lists the decoder preferences the remote understands.
var SupportedVideoCodecs = []string{"AV1", "H264", "VP8", "VP9"}

// IsSupportedVideoCodec reports whether name is in SupportedVideoCodecs.
func IsSupportedVideoCodec(name string) bool {
	for _, c := range SupportedVideoCodecs {
		if c == name {
			return true
		}
	}
	return false
}
