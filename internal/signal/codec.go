package signal

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"remoteplay/native/internal/domain"
)

// envelope is the part shared by every signaling message.
type envelope struct {
	Type string `json:"type"`
}

type descriptionMessage struct {
	Type         string   `json:"type"`
	SDP          string   `json:"sdp"`
	DataChannels []string `json:"dataChannels,omitempty"`
}

type candidateMessage struct {
	Type          string  `json:"type"`
	Candidate     string  `json:"candidate"`
	SDPMid        *string `json:"sdpMid,omitempty"`
	SDPMLineIndex *uint16 `json:"sdpMLineIndex,omitempty"`
}

type errorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type discoverResponseMessage struct {
	Type string `json:"type"`
	domain.DiscoverResponse
}

type settingsMessage struct {
	Type string `json:"type"`
	domain.Settings
}

// Encode serializes msg into one text frame. SDP and candidate strings
// travel base64 encoded.
func Encode(msg domain.SignalMessage) ([]byte, error) {
	var out any
	switch m := msg.(type) {
	case domain.Discover:
		out = envelope{Type: domain.SignalDiscover}
	case domain.DiscoverResponse:
		out = discoverResponseMessage{Type: domain.SignalDiscoverResponse, DiscoverResponse: m}
	case domain.Settings:
		out = settingsMessage{Type: domain.SignalSettings, Settings: m}
	case domain.Offer:
		out = descriptionMessage{
			Type:         domain.SignalOffer,
			SDP:          base64.StdEncoding.EncodeToString([]byte(m.SDP)),
			DataChannels: m.DataChannels,
		}
	case domain.Answer:
		out = descriptionMessage{
			Type: domain.SignalAnswer,
			SDP:  base64.StdEncoding.EncodeToString([]byte(m.SDP)),
		}
	case domain.Candidate:
		out = candidateMessage{
			Type:          domain.SignalCandidate,
			Candidate:     base64.StdEncoding.EncodeToString([]byte(m.Candidate)),
			SDPMid:        m.SDPMid,
			SDPMLineIndex: m.SDPMLineIndex,
		}
	case domain.SignalingError:
		out = errorMessage{Type: domain.SignalError, Message: m.Message}
	case domain.UnknownSignal:
		if len(m.Raw) > 0 {
			return m.Raw, nil
		}
		out = envelope{Type: m.Type}
	default:
		return nil, fmt.Errorf("encode: unsupported message %T", msg)
	}
	return json.Marshal(out)
}

// Decode parses one text frame. Unrecognized tags yield UnknownSignal.
// A bad offer, answer or candidate payload yields a
// *domain.MalformedSignalError.
func Decode(data []byte) (domain.SignalMessage, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	switch env.Type {
	case domain.SignalDiscover:
		return domain.Discover{}, nil

	case domain.SignalDiscoverResponse:
		var m discoverResponseMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		return m.DiscoverResponse, nil

	case domain.SignalSettings:
		var m settingsMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		return m.Settings, nil

	case domain.SignalOffer, domain.SignalAnswer:
		var m descriptionMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, &domain.MalformedSignalError{Type: env.Type, Err: err}
		}
		sdp, err := base64.StdEncoding.DecodeString(m.SDP)
		if err != nil {
			return nil, &domain.MalformedSignalError{Type: env.Type, Err: fmt.Errorf("sdp: %w", err)}
		}
		if env.Type == domain.SignalOffer {
			return domain.Offer{SDP: string(sdp), DataChannels: m.DataChannels}, nil
		}
		return domain.Answer{SDP: string(sdp)}, nil

	case domain.SignalCandidate:
		var m candidateMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, &domain.MalformedSignalError{Type: env.Type, Err: err}
		}
		candidate, err := base64.StdEncoding.DecodeString(m.Candidate)
		if err != nil {
			return nil, &domain.MalformedSignalError{Type: env.Type, Err: fmt.Errorf("candidate: %w", err)}
		}
		return domain.Candidate{
			Candidate:     string(candidate),
			SDPMid:        m.SDPMid,
			SDPMLineIndex: m.SDPMLineIndex,
		}, nil

	case domain.SignalError:
		var m errorMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		return domain.SignalingError{Message: m.Message}, nil

	default:
		raw := make([]byte, len(data))
		copy(raw, data)
		return domain.UnknownSignal{Type: env.Type, Raw: raw}, nil
	}
}
