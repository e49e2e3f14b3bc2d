package webrtc

import (
	"errors"
	"fmt"

	"remoteplay/native/internal/domain"
	"remoteplay/native/internal/logging"

	"github.com/pion/interceptor"
	pion "github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
)

// Peer wraps a Pion PeerConnection for one session.
type Peer struct {
	pc  *pion.PeerConnection
	log zerolog.Logger
}

// NewPeer creates a PeerConnection using relays as ICE servers.
func NewPeer(relays []domain.RelayServer) (*Peer, error) {
	m := &pion.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}

	// NACK generator/responder, RTCP reports, TWCC and the stats
	// interceptor that backs inbound-rtp counters in GetStats.
	i := &interceptor.Registry{}
	if err := pion.RegisterDefaultInterceptors(m, i); err != nil {
		return nil, fmt.Errorf("register interceptors: %w", err)
	}

	api := pion.NewAPI(
		pion.WithMediaEngine(m),
		pion.WithInterceptorRegistry(i),
	)

	var servers []pion.ICEServer
	for _, s := range relays {
		servers = append(servers, pion.ICEServer{
			URLs:       s.URLs,
			Username:   s.Username,
			Credential: s.Credential,
		})
	}

	pc, err := api.NewPeerConnection(pion.Configuration{
		ICEServers:   servers,
		BundlePolicy: pion.BundlePolicyMaxBundle,
	})
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}

	p := &Peer{pc: pc, log: logging.New("webrtc")}
	pc.OnConnectionStateChange(func(state pion.PeerConnectionState) {
		p.log.Debug().Str("state", state.String()).Msg("peer connection state")
	})
	return p, nil
}

// AddTransceiver adds a transceiver without a local producer.
func (p *Peer) AddTransceiver(kind domain.MediaKind, dir domain.Direction) error {
	_, err := p.pc.AddTransceiverFromKind(codecType(kind), pion.RTPTransceiverInit{
		Direction: direction(dir),
	})
	if err != nil {
		return fmt.Errorf("add %s transceiver: %w", kind, err)
	}
	return nil
}

// NewPlaceholder returns an inert producer of kind.
func (p *Peer) NewPlaceholder(kind domain.MediaKind) (domain.MediaSource, error) {
	return NewPlaceholder(kind)
}

// AttachSource binds src to a sender. With DirectionUnset the source is
// added as a track so that a transceiver created by a remote offer is
// reused; otherwise a new transceiver with dir is created.
func (p *Peer) AttachSource(src domain.MediaSource, dir domain.Direction) (domain.Sender, error) {
	track, err := localTrack(src)
	if err != nil {
		return nil, err
	}

	var rtpSender *pion.RTPSender
	if dir == domain.DirectionUnset {
		rtpSender, err = p.pc.AddTrack(track)
		if err != nil {
			return nil, fmt.Errorf("add %s track: %w", src.Kind(), err)
		}
	} else {
		t, err := p.pc.AddTransceiverFromTrack(track, pion.RTPTransceiverInit{Direction: direction(dir)})
		if err != nil {
			return nil, fmt.Errorf("add %s transceiver: %w", src.Kind(), err)
		}
		rtpSender = t.Sender()
	}

	// RTCP has to be read for interceptors like NACK to work.
	go func() {
		buf := make([]byte, 1500)
		for {
			if _, _, err := rtpSender.Read(buf); err != nil {
				return
			}
		}
	}()

	return &sender{raw: rtpSender, kind: src.Kind()}, nil
}

// CreateDataChannel creates an ordered, reliable channel.
func (p *Peer) CreateDataChannel(label string) (domain.Channel, error) {
	ordered := true
	dc, err := p.pc.CreateDataChannel(label, &pion.DataChannelInit{Ordered: &ordered})
	if err != nil {
		return nil, fmt.Errorf("create data channel %q: %w", label, err)
	}
	return newDataChannel(dc), nil
}

// CreateOffer creates an SDP offer and sets it as the local description.
func (p *Peer) CreateOffer() (string, error) {
	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return "", fmt.Errorf("create offer: %w", err)
	}
	if err := p.pc.SetLocalDescription(offer); err != nil {
		return "", fmt.Errorf("set local description: %w", err)
	}
	p.log.Debug().Msg("local SDP offer set")
	return offer.SDP, nil
}

// CreateAnswer creates an SDP answer and sets it as the local description.
func (p *Peer) CreateAnswer() (string, error) {
	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return "", fmt.Errorf("create answer: %w", err)
	}
	if err := p.pc.SetLocalDescription(answer); err != nil {
		return "", fmt.Errorf("set local description: %w", err)
	}
	p.log.Debug().Msg("local SDP answer set")
	return answer.SDP, nil
}

// SetRemoteDescription validates and applies a remote description.
func (p *Peer) SetRemoteDescription(typ domain.SDPType, sdp string) error {
	if err := ValidateDescription(sdp); err != nil {
		return err
	}

	desc := pion.SessionDescription{SDP: sdp}
	switch typ {
	case domain.SDPOffer:
		desc.Type = pion.SDPTypeOffer
	case domain.SDPAnswer:
		desc.Type = pion.SDPTypeAnswer
	default:
		return fmt.Errorf("unsupported description type %q", typ)
	}

	if err := p.pc.SetRemoteDescription(desc); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}
	p.log.Debug().Str("type", string(typ)).Msg("remote SDP set")
	return nil
}

// AddICECandidate adds a remote candidate. The caller is responsible for
// ordering it after the remote description.
func (p *Peer) AddICECandidate(c domain.Candidate) error {
	init := pion.ICECandidateInit{
		Candidate:     c.Candidate,
		SDPMid:        c.SDPMid,
		SDPMLineIndex: c.SDPMLineIndex,
	}
	if err := p.pc.AddICECandidate(init); err != nil {
		return fmt.Errorf("add ice candidate: %w", err)
	}
	return nil
}

// OnICECandidate registers the callback for locally gathered candidates.
// fn receives nil once gathering completes.
func (p *Peer) OnICECandidate(fn func(c *domain.Candidate)) {
	p.pc.OnICECandidate(func(c *pion.ICECandidate) {
		if c == nil {
			p.log.Debug().Msg("ICE gathering complete")
			fn(nil)
			return
		}
		init := c.ToJSON()
		fn(&domain.Candidate{
			Candidate:     init.Candidate,
			SDPMid:        init.SDPMid,
			SDPMLineIndex: init.SDPMLineIndex,
		})
	})
}

// OnTransportStateChange reports ICE connection state changes.
func (p *Peer) OnTransportStateChange(fn func(state domain.TransportState)) {
	p.pc.OnICEConnectionStateChange(func(state pion.ICEConnectionState) {
		p.log.Debug().Str("state", state.String()).Msg("ICE connection state")
		fn(transportState(state))
	})
}

// OnTrack reports inbound tracks. The track is the *webrtc.TrackRemote.
func (p *Peer) OnTrack(fn func(kind domain.MediaKind, track domain.RemoteTrack)) {
	p.pc.OnTrack(func(track *pion.TrackRemote, _ *pion.RTPReceiver) {
		codec := track.Codec()
		p.log.Info().
			Str("kind", track.Kind().String()).
			Str("codec", codec.MimeType).
			Msg("got track")
		fn(mediaKind(track.Kind()), track)
	})
}

// GetStats returns an engine-neutral snapshot.
func (p *Peer) GetStats() (domain.StatsReport, error) {
	if p.pc.ConnectionState() == pion.PeerConnectionStateClosed {
		return domain.StatsReport{}, errors.New("peer connection closed")
	}
	return convertStats(p.pc.GetStats(), p.pc.GetConfiguration()), nil
}

// Close shuts down the PeerConnection.
func (p *Peer) Close() error {
	return p.pc.Close()
}

func codecType(kind domain.MediaKind) pion.RTPCodecType {
	if kind == domain.KindAudio {
		return pion.RTPCodecTypeAudio
	}
	return pion.RTPCodecTypeVideo
}

func mediaKind(t pion.RTPCodecType) domain.MediaKind {
	if t == pion.RTPCodecTypeAudio {
		return domain.KindAudio
	}
	return domain.KindVideo
}

func direction(dir domain.Direction) pion.RTPTransceiverDirection {
	switch dir {
	case domain.DirectionSendRecv:
		return pion.RTPTransceiverDirectionSendrecv
	case domain.DirectionSendOnly:
		return pion.RTPTransceiverDirectionSendonly
	case domain.DirectionRecvOnly:
		return pion.RTPTransceiverDirectionRecvonly
	default:
		return pion.RTPTransceiverDirectionInactive
	}
}

func transportState(state pion.ICEConnectionState) domain.TransportState {
	switch state {
	case pion.ICEConnectionStateChecking:
		return domain.TransportChecking
	case pion.ICEConnectionStateConnected, pion.ICEConnectionStateCompleted:
		return domain.TransportConnected
	case pion.ICEConnectionStateDisconnected:
		return domain.TransportDisconnected
	case pion.ICEConnectionStateFailed:
		return domain.TransportFailed
	case pion.ICEConnectionStateClosed:
		return domain.TransportClosed
	default:
		return domain.TransportNew
	}
}
