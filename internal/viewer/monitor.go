package viewer

import (
	"errors"
	"time"

	"remoteplay/native/internal/domain"
)

func (v *Viewer) armSignalingTimer() {
	var t *time.Timer
	t = time.AfterFunc(v.opts.SignalingTimeout, func() {
		v.loop.post(func() {
			if v.signalingTimer != t {
				return
			}
			v.signalingTimer = nil
			v.log.Warn().Dur("timeout", v.opts.SignalingTimeout).Msg("signaling timed out")
			v.fail(domain.NewError(domain.CodeTimeout, "signaling timed out"))
		})
	})
	v.signalingTimer = t
}

func (v *Viewer) armGraceTimer() {
	if v.graceTimer != nil {
		return
	}
	var t *time.Timer
	t = time.AfterFunc(v.opts.DisconnectGrace, func() {
		v.loop.post(func() {
			if v.graceTimer != t {
				return
			}
			v.graceTimer = nil
			v.fail(domain.NewError(domain.CodeWebRTCLostConnection, "lost WebRTC connection"))
		})
	})
	v.graceTimer = t
}

func (v *Viewer) clearTimers() {
	if v.signalingTimer != nil {
		v.signalingTimer.Stop()
		v.signalingTimer = nil
	}
	if v.graceTimer != nil {
		v.graceTimer.Stop()
		v.graceTimer = nil
	}
}

func (v *Viewer) onTransportState(state domain.TransportState) {
	if v.finished {
		return
	}
	v.log.Info().Str("state", state.String()).Msg("transport state")

	switch state {
	case domain.TransportConnected:
		v.clearTimers()
		v.everConnected = true
		v.setState(domain.StateConnected)
		v.closeSignal()
		if v.opts.EnableStats {
			v.startStats()
		}
		if !v.opts.Settings.Video && !v.opts.Settings.Audio {
			v.raiseReady()
			return
		}
		v.checkReady()

	case domain.TransportDisconnected:
		v.armGraceTimer()

	case domain.TransportFailed:
		v.fail(domain.NewError(domain.CodeWebRTCFailed, "failed to establish a WebRTC connection via ICE"))

	case domain.TransportClosed:
		if !v.everConnected {
			v.fail(domain.NewError(domain.CodeSignalingTimeout,
				"timed out to establish a WebRTC connection as signaler did not respond"))
			return
		}
		v.closeGracefully()
	}
}

func (v *Viewer) onTrack(kind domain.MediaKind, track domain.RemoteTrack) {
	if v.finished {
		return
	}
	v.log.Info().Str("kind", string(kind)).Str("track", track.ID()).Msg("remote track")
	switch kind {
	case domain.KindVideo:
		v.videoTrack = track
	case domain.KindAudio:
		v.audioTrack = track
	}
	v.checkReady()
}

// checkReady raises ready once the declared media has arrived.
func (v *Viewer) checkReady() {
	s := v.opts.Settings
	hasVideo := v.videoTrack != nil
	hasAudio := v.audioTrack != nil

	var ready bool
	switch {
	case s.Audio && !s.Video:
		ready = hasAudio
	case s.Video && !s.Audio:
		ready = hasVideo
	default:
		ready = hasVideo && (!s.Speaker || hasAudio)
	}
	if ready {
		v.raiseReady()
	}
}

func (v *Viewer) raiseReady() {
	if v.readyRaised || v.finished {
		return
	}
	v.readyRaised = true
	v.log.Info().Msg("session ready")
	v.events.emit(domain.Event{
		Kind:  domain.EventReady,
		Video: v.videoTrack,
		Audio: v.audioTrack,
	})
}

func (v *Viewer) onSignalError(err error) {
	if v.finished || v.everConnected || v.signalClosing {
		return
	}
	var malformed *domain.MalformedSignalError
	if errors.As(err, &malformed) {
		v.failNegotiation(err)
		return
	}
	v.fail(domain.WrapError(domain.CodeSignalingFailed, "failed to communicate with the signaler", err))
}

func (v *Viewer) onSignalClose() {
	if v.finished || v.everConnected || v.signalClosing {
		return
	}
	v.fail(domain.NewError(domain.CodeSignalingFailed, "signaling connection closed"))
}

func (v *Viewer) closeSignal() {
	if v.signal == nil || v.signalClosing {
		return
	}
	v.signalClosing = true
	if err := v.signal.Close(); err != nil {
		v.log.Debug().Err(err).Msg("close signaling")
	}
}

// fail tears the session down and emits err as the terminal outcome.
func (v *Viewer) fail(err error) {
	if v.finished {
		return
	}
	v.log.Error().Err(err).Str("code", domain.CodeOf(err).String()).Msg("session failed")
	v.teardown(domain.StateFailed)
	v.events.emit(domain.Event{Kind: domain.EventError, Err: err})
}

func (v *Viewer) closeGracefully() {
	if v.finished {
		return
	}
	v.log.Info().Msg("session closed")
	v.teardown(domain.StateClosed)
	v.events.emit(domain.Event{Kind: domain.EventClosed})
}

// closeSession is the Stop path. It also covers a session that was never
// started.
func (v *Viewer) closeSession() {
	if v.finished {
		v.loop.stop()
		return
	}
	v.closeGracefully()
}

// teardown releases every resource exactly once. The loop stops accepting
// work first; tasks already queued still run and find the session finished.
func (v *Viewer) teardown(final domain.ConnectionState) {
	v.finished = true
	v.setState(domain.StateDisconnecting)
	v.loop.stop()

	v.clearTimers()
	v.poller.stop()
	if v.cancel != nil {
		v.cancel()
	}
	v.candidates.discard()

	if v.control != nil && v.control.IsOpen() {
		v.sendControl(domain.ControlStreamDisconnect, struct{}{})
	}
	v.channels.closeAll(v.events)
	if v.control != nil {
		if err := v.control.Close(); err != nil {
			v.log.Debug().Err(err).Msg("close control channel")
		}
	}

	if v.swap != nil {
		v.swap.stop()
	}

	v.closeSignal()
	if v.peer != nil {
		if err := v.peer.Close(); err != nil {
			v.log.Debug().Err(err).Msg("close peer")
		}
	}

	v.setState(final)
}
