package domain

// SignalMessage is one tagged message on the signaling transport. The set
// of implementations is closed; UnknownSignal carries anything else.
type SignalMessage interface {
	SignalType() string
}

const (
	SignalDiscover         = "discover"
	SignalDiscoverResponse = "resp:discover"
	SignalSettings         = "settings"
	SignalOffer            = "offer"
	SignalAnswer           = "answer"
	SignalCandidate        = "candidate"
	SignalError            = "error"
)

type Discover struct{}

// DiscoverResponse announces what the remote supports.
type DiscoverResponse struct {
	MaxAPIVersion int      `json:"max_api_version"`
	FPS           int      `json:"fps,omitempty"`
	Capabilities  []string `json:"capabilities,omitempty"`
}

// HasCapability reports whether the remote advertised name.
func (d DiscoverResponse) HasCapability(name string) bool {
	for _, c := range d.Capabilities {
		if c == name {
			return true
		}
	}
	return false
}

// VideoSettings is the video section of Settings.
type VideoSettings struct {
	PreferredDecoderCodecs []string `json:"preferred_decoder_codecs"`
}

// Settings declares device access, channel names and codec preferences.
type Settings struct {
	APIVersion         int            `json:"api_version"`
	DataChannels       []string       `json:"data_channels,omitempty"`
	EnableSpeaker      bool           `json:"enable_speaker"`
	EnableMicrophone   bool           `json:"enable_microphone"`
	EnableVideo        bool           `json:"enable_video"`
	EnableCamera       bool           `json:"enable_camera"`
	DeviceType         string         `json:"device_type,omitempty"`
	ForegroundActivity string         `json:"foreground_activity,omitempty"`
	Video              *VideoSettings `json:"video,omitempty"`
}

// Offer carries a session description. DataChannels is only sent by
// clients that create the offer themselves.
type Offer struct {
	SDP          string
	DataChannels []string
}

type Answer struct {
	SDP string
}

// Candidate is a trickled ICE candidate.
type Candidate struct {
	Candidate     string
	SDPMid        *string
	SDPMLineIndex *uint16
}

// SignalingError is reported by the remote.
type SignalingError struct {
	Message string
}

// UnknownSignal carries a message with an unrecognized tag.
type UnknownSignal struct {
	Type string
	Raw  []byte
}

func (Discover) SignalType() string { return SignalDiscover }
func (DiscoverResponse) SignalType() string { return SignalDiscoverResponse }
func (Settings) SignalType() string { return SignalSettings }
func (Offer) SignalType() string { return SignalOffer }
func (Answer) SignalType() string { return SignalAnswer }
func (Candidate) SignalType() string { return SignalCandidate }
func (SignalingError) SignalType() string { return SignalError }
func (u UnknownSignal) SignalType() string { return u.Type }

// MalformedSignalError reports an offer, answer or candidate frame whose
// payload could not be decoded. It reaches SignalHandler.OnSignalError.
type MalformedSignalError struct {
	Type string
	Err  error
}

func (e *MalformedSignalError) Error() string {
	return "malformed " + e.Type + " message: " + e.Err.Error()
}

func (e *MalformedSignalError) Unwrap() error { return e.Err }
