package domain

import "encoding/json"

// ControlMessage is the envelope used on the control channel.
type ControlMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Inbound tags consumed by the engine itself.
const (
	ControlOpenCamera        = "open-camera"
	ControlCloseCamera       = "close-camera"
	ControlEnableMicrophone  = "enable-microphone"
	ControlDisableMicrophone = "disable-microphone"
	ControlShowIME           = "show-ime"
	ControlHideIME           = "hide-ime"
	ControlVhalPropConfigs   = "vhal-prop-configs"
	ControlVhalGetAnswer     = "vhal-get-answer"
	ControlVhalSetAnswer     = "vhal-set-answer"
)

// Outbound tags.
const (
	ControlInputPrefix       = "input::"
	ControlIMEEvent          = "input::ime-event"
	ControlStreamDisconnect  = "stream::disconnect"
	ControlLocationUpdate    = "location::update-position"
	ControlVhalGet           = "vhal::get"
	ControlVhalSet           = "vhal::set"
	ControlVhalGetAllConfigs = "vhal::get-all-prop-configs"
)

// CapabilityVhal is advertised in the discover response when the remote
// exposes vehicle properties.
const CapabilityVhal = "vhal"

// Resolution of a requested camera stream.
type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// CameraSpec is the payload of an open-camera request.
type CameraSpec struct {
	Resolution Resolution `json:"resolution"`
	FacingMode string     `json:"facing-mode"`
	FrameRate  float64    `json:"frame-rate"`
}

// MicrophoneSpec is the payload of an enable-microphone request.
type MicrophoneSpec struct {
	Freq     int `json:"freq"`
	Channels int `json:"channels"`
	Samples  int `json:"samples"`
}

// IMEEventType tags the payload of an input::ime-event message.
type IMEEventType int

const (
	IMEText IMEEventType = iota + 1
	IMEKeycode
	IMEAction
	IMEComposingText
	IMEComposingRegion
)

// AndroidKeycodeDel is the Android key code used to delete text.
const AndroidKeycodeDel = 67

// IMEEvent is the body of an input::ime-event message.
type IMEEvent struct {
	Type IMEEventType `json:"type"`
	Data any          `json:"data"`
}

// LocationUpdate is sent as location::update-position.
type LocationUpdate struct {
	Format    string  `json:"format,omitempty"`
	Time      int64   `json:"time"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Altitude  float64 `json:"altitude"`
	Speed     float64 `json:"speed"`
	Bearing   float64 `json:"bearing"`
}

// Validate checks the update before it is sent.
func (u LocationUpdate) Validate() error {
	if u.Time == 0 {
		return NewError(CodeInvalidArgument, "incomplete location update")
	}
	switch u.Format {
	case "", "wgs84", "nmea":
		return nil
	default:
		return NewError(CodeInvalidArgument, "invalid gps data format")
	}
}
