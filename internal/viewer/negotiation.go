package viewer

import (
	"remoteplay/native/internal/domain"
)

func (v *Viewer) onSignalConnected(sig domain.Signaler, err error) {
	if v.finished || sig != v.signal {
		if err == nil {
			sig.Close()
		}
		return
	}
	if err != nil {
		v.fail(domain.WrapError(domain.CodeSignalingFailed, "failed to communicate with the signaler", err))
		return
	}
	v.log.Info().Str("url", v.session.SignalingURL).Msg("signaling connected")

	peer, err := v.newPeer(v.session.RelayServers)
	if err != nil {
		v.fail(domain.WrapError(domain.CodeInternal, "failed to create peer connection", err))
		return
	}
	v.peer = peer
	v.swap = newHotSwap(peer)

	peer.OnICECandidate(func(c *domain.Candidate) {
		v.loop.post(func() { v.onLocalCandidate(c) })
	})
	peer.OnTransportStateChange(func(state domain.TransportState) {
		v.loop.post(func() { v.onTransportState(state) })
	})
	peer.OnTrack(func(kind domain.MediaKind, track domain.RemoteTrack) {
		v.loop.post(func() { v.onTrack(kind, track) })
	})

	if err := v.openChannels(); err != nil {
		v.fail(domain.WrapError(domain.CodeInternal, "failed to create data channels", err))
		return
	}

	if err := v.signal.Send(domain.Discover{}); err != nil {
		v.fail(domain.WrapError(domain.CodeSignalingFailed, "failed to communicate with the signaler", err))
	}
}

func (v *Viewer) handleSignal(msg domain.SignalMessage) {
	if v.finished || v.peer == nil {
		return
	}

	switch m := msg.(type) {
	case domain.DiscoverResponse:
		v.onDiscoverResponse(m)
	case domain.Offer:
		v.onRemoteOffer(m)
	case domain.Answer:
		v.onRemoteAnswer(m)
	case domain.Candidate:
		v.log.Debug().Bool("queued", !v.candidates.drained()).Msg("remote candidate")
		v.candidates.add(m, v.applyCandidate)
	case domain.SignalingError:
		v.fail(domain.NewError(domain.CodeSignalingFailed, m.Message))
	default:
		v.log.Warn().Str("type", msg.SignalType()).Msg("ignoring signaling message")
	}
}

func (v *Viewer) onDiscoverResponse(m domain.DiscoverResponse) {
	if v.discovery != nil {
		v.log.Warn().Msg("duplicate discover response")
		return
	}
	v.mu.Lock()
	v.discovery = &m
	v.mu.Unlock()
	v.events.emit(domain.Event{Kind: domain.EventDiscovered, Discovery: m})

	s := v.opts.Settings
	v.log.Info().
		Int("max_api_version", m.MaxAPIVersion).
		Int("requested", s.APIVersion).
		Strs("capabilities", m.Capabilities).
		Msg("discovered")

	if s.APIVersion > m.MaxAPIVersion {
		v.fail(domain.NewError(domain.CodeInvalidArgument, "API version not supported by server"))
		return
	}
	v.setState(domain.StateNegotiating)

	settings := domain.Settings{
		APIVersion:         s.APIVersion,
		EnableSpeaker:      s.Audio && s.Speaker,
		EnableMicrophone:   wantsMicrophone(s),
		EnableVideo:        s.Video,
		EnableCamera:       wantsCamera(s),
		DeviceType:         s.DeviceType,
		ForegroundActivity: s.ForegroundActivity,
	}
	if len(s.PreferredVideoCodecs) > 0 {
		settings.Video = &domain.VideoSettings{PreferredDecoderCodecs: s.PreferredVideoCodecs}
	}
	if s.APIVersion >= domain.ServerOfferAPIVersion {
		settings.DataChannels = v.channels.names()
	}
	if err := v.signal.Send(settings); err != nil {
		v.fail(domain.WrapError(domain.CodeSignalingFailed, "failed to communicate with the signaler", err))
		return
	}

	if s.APIVersion >= domain.ServerOfferAPIVersion {
		return
	}

	if err := v.setupTransceivers(); err != nil {
		v.failNegotiation(err)
		return
	}
	sdp, err := v.peer.CreateOffer()
	if err != nil {
		v.failNegotiation(err)
		return
	}
	v.localDescriptionSet = true
	if err := v.signal.Send(domain.Offer{SDP: sdp, DataChannels: v.channels.names()}); err != nil {
		v.fail(domain.WrapError(domain.CodeSignalingFailed, "failed to communicate with the signaler", err))
		return
	}
	v.setState(domain.StateAwaitingTransport)
}

// setupTransceivers lays out the media sections of a locally created
// offer: audio first, then an optional camera sender, then inbound video.
func (v *Viewer) setupTransceivers() error {
	s := v.opts.Settings

	audioDir := domain.DirectionInactive
	if s.Audio && s.Speaker {
		audioDir = domain.DirectionRecvOnly
		if s.Microphone {
			audioDir = domain.DirectionSendRecv
		}
	}
	if wantsMicrophone(s) {
		if err := v.swap.attach(domain.KindAudio, withSend(audioDir)); err != nil {
			return err
		}
	} else if err := v.peer.AddTransceiver(domain.KindAudio, audioDir); err != nil {
		return err
	}

	if wantsCamera(s) {
		if err := v.swap.attach(domain.KindVideo, domain.DirectionSendOnly); err != nil {
			return err
		}
	}
	videoDir := domain.DirectionInactive
	if s.Video {
		videoDir = domain.DirectionRecvOnly
	}
	return v.peer.AddTransceiver(domain.KindVideo, videoDir)
}

// Local capture only makes sense alongside the matching stream.
func wantsCamera(s domain.StreamSettings) bool     { return s.Video && s.Camera }
func wantsMicrophone(s domain.StreamSettings) bool { return s.Audio && s.Microphone }

func withSend(dir domain.Direction) domain.Direction {
	switch dir {
	case domain.DirectionRecvOnly, domain.DirectionSendRecv:
		return domain.DirectionSendRecv
	default:
		return domain.DirectionSendOnly
	}
}

func (v *Viewer) onRemoteOffer(m domain.Offer) {
	if v.opts.Settings.APIVersion < domain.ServerOfferAPIVersion || v.remoteDescriptionSet {
		v.log.Warn().Msg("ignoring unexpected offer")
		return
	}
	if err := v.peer.SetRemoteDescription(domain.SDPOffer, m.SDP); err != nil {
		v.failNegotiation(err)
		return
	}
	v.remoteDescriptionSet = true
	v.candidates.flush(v.applyCandidate)

	s := v.opts.Settings
	if wantsCamera(s) {
		if err := v.swap.attach(domain.KindVideo, domain.DirectionUnset); err != nil {
			v.failNegotiation(err)
			return
		}
	}
	if wantsMicrophone(s) {
		if err := v.swap.attach(domain.KindAudio, domain.DirectionUnset); err != nil {
			v.failNegotiation(err)
			return
		}
	}

	sdp, err := v.peer.CreateAnswer()
	if err != nil {
		v.failNegotiation(err)
		return
	}
	v.localDescriptionSet = true
	if err := v.signal.Send(domain.Answer{SDP: sdp}); err != nil {
		v.fail(domain.WrapError(domain.CodeSignalingFailed, "failed to communicate with the signaler", err))
		return
	}
	v.setState(domain.StateAwaitingTransport)
}

func (v *Viewer) onRemoteAnswer(m domain.Answer) {
	if !v.localDescriptionSet || v.remoteDescriptionSet {
		v.log.Warn().Msg("ignoring unexpected answer")
		return
	}
	if err := v.peer.SetRemoteDescription(domain.SDPAnswer, m.SDP); err != nil {
		v.failNegotiation(err)
		return
	}
	v.remoteDescriptionSet = true
	v.candidates.flush(v.applyCandidate)
}

func (v *Viewer) applyCandidate(c domain.Candidate) {
	if err := v.peer.AddICECandidate(c); err != nil {
		v.log.Warn().Err(err).Msg("failed to add remote candidate")
	}
}

func (v *Viewer) onLocalCandidate(c *domain.Candidate) {
	if v.finished || c == nil || c.Candidate == "" {
		return
	}
	if v.signal == nil || v.signalClosing {
		return
	}
	if err := v.signal.Send(*c); err != nil {
		v.log.Debug().Err(err).Msg("send local candidate")
	}
}

func (v *Viewer) failNegotiation(err error) {
	v.fail(domain.WrapError(domain.CodeSignalingFailed, "failed to negotiate", err))
}
