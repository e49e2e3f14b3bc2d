package viewer

import (
	"encoding/json"
	"errors"
	"strings"

	"remoteplay/native/internal/domain"
)

// SendControlMessage writes {"type":typ,"data":data} on the control
// channel. It reports false when the message could not be sent.
func (v *Viewer) SendControlMessage(typ string, data any) bool {
	var ok bool
	v.loop.call(func() { ok = v.sendControl(typ, data) })
	return ok
}

// SendInputEvent sends an input::<typ> control message.
func (v *Viewer) SendInputEvent(typ string, data any) bool {
	return v.SendControlMessage(domain.ControlInputPrefix+typ, data)
}

// SendIMEEvent sends an input::ime-event control message.
func (v *Viewer) SendIMEEvent(kind domain.IMEEventType, data any) bool {
	return v.SendControlMessage(domain.ControlIMEEvent, domain.IMEEvent{Type: kind, Data: data})
}

func (v *Viewer) SendIMEText(text string) bool {
	return v.SendIMEEvent(domain.IMEText, map[string]string{"text": text})
}

func (v *Viewer) SendIMEComposingText(text string) bool {
	return v.SendIMEEvent(domain.IMEComposingText, map[string]string{"text": text})
}

func (v *Viewer) SendIMECode(code, times int) bool {
	return v.SendIMEEvent(domain.IMEKeycode, map[string]int{"code": code, "times": times})
}

func (v *Viewer) SendIMEAction(name string, params any) bool {
	return v.SendIMEEvent(domain.IMEAction, map[string]any{"name": name, "params": params})
}

func (v *Viewer) SendIMEComposingRegion(start, end int) bool {
	return v.SendIMEEvent(domain.IMEComposingRegion, map[string]int{"start": start, "end": end})
}

// SendIMETextDeletion deletes count characters before the cursor.
func (v *Viewer) SendIMETextDeletion(count int) bool {
	return v.SendIMECode(domain.AndroidKeycodeDel, count)
}

// SendLocationUpdate forwards a position fix to the remote endpoint.
func (v *Viewer) SendLocationUpdate(u domain.LocationUpdate) error {
	if err := u.Validate(); err != nil {
		return err
	}
	if !v.SendControlMessage(domain.ControlLocationUpdate, u) {
		return domain.NewError(domain.CodeWebRTCControlFailed, "failed to send location update")
	}
	return nil
}

func (v *Viewer) sendControl(typ string, data any) bool {
	if v.control == nil || !v.control.IsOpen() {
		return false
	}
	msg := domain.ControlMessage{Type: typ}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			v.log.Warn().Err(err).Str("type", typ).Msg("encode control message")
			return false
		}
		msg.Data = raw
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		v.log.Warn().Err(err).Str("type", typ).Msg("encode control message")
		return false
	}
	if err := v.control.SendText(string(payload)); err != nil {
		v.log.Warn().Err(err).Str("type", typ).Msg("send control message")
		return false
	}
	return true
}

func (v *Viewer) onControlOpen() {
	if v.finished {
		return
	}
	v.log.Info().Msg("control channel open")
	v.events.emit(domain.Event{Kind: domain.EventControlChannelOpen})
	if v.vhal != nil && v.discovery != nil && v.discovery.HasCapability(domain.CapabilityVhal) {
		v.sendControl(domain.ControlVhalGetAllConfigs, nil)
	}
}

func (v *Viewer) onControlError(err error) {
	if v.finished {
		return
	}
	if err != nil && strings.Contains(err.Error(), "user initiated abort") {
		v.fail(domain.WrapError(domain.CodeWebRTCDisconnected, "control channel closed by the remote", err))
		return
	}
	v.fail(domain.WrapError(domain.CodeWebRTCControlFailed, "error on control channel", err))
}

func (v *Viewer) onControlMessage(data []byte) {
	if v.finished {
		return
	}
	var msg domain.ControlMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		v.log.Warn().Err(err).Msg("malformed control message")
		return
	}
	v.log.Debug().Str("type", msg.Type).Msg("control <<<")
	// Reserved tags may carry their payload as a JSON encoded string.
	// Anything else is forwarded untouched.
	payload := msg.Data
	if isReservedControl(msg.Type) {
		payload = unwrapData(msg.Data)
	}

	switch msg.Type {
	case domain.ControlOpenCamera:
		var spec domain.CameraSpec
		if !v.decodeControl(msg.Type, payload, &spec) {
			return
		}
		v.openCamera(spec)
	case domain.ControlCloseCamera:
		v.revokeDevice(domain.KindVideo)
	case domain.ControlEnableMicrophone:
		var spec domain.MicrophoneSpec
		if !v.decodeControl(msg.Type, payload, &spec) {
			return
		}
		v.openMicrophone(spec)
	case domain.ControlDisableMicrophone:
		v.revokeDevice(domain.KindAudio)
	case domain.ControlShowIME:
		v.events.emit(domain.Event{Kind: domain.EventIMEStateChanged, IMEVisible: true})
	case domain.ControlHideIME:
		v.events.emit(domain.Event{Kind: domain.EventIMEStateChanged, IMEVisible: false})
	case domain.ControlVhalPropConfigs, domain.ControlVhalGetAnswer, domain.ControlVhalSetAnswer:
		v.routeVhal(msg.Type, payload)
	default:
		v.events.emit(domain.Event{Kind: domain.EventMessage, Type: msg.Type, Data: payload})
	}
}

func (v *Viewer) decodeControl(typ string, payload json.RawMessage, dst any) bool {
	if len(payload) == 0 {
		return true
	}
	if err := json.Unmarshal(payload, dst); err != nil {
		v.log.Warn().Err(err).Str("type", typ).Msg("malformed control payload")
		return false
	}
	return true
}

func isReservedControl(typ string) bool {
	switch typ {
	case domain.ControlOpenCamera, domain.ControlCloseCamera,
		domain.ControlEnableMicrophone, domain.ControlDisableMicrophone,
		domain.ControlShowIME, domain.ControlHideIME,
		domain.ControlVhalPropConfigs, domain.ControlVhalGetAnswer, domain.ControlVhalSetAnswer:
		return true
	default:
		return false
	}
}

// unwrapData accepts both an inline JSON value and a JSON string holding
// an encoded value.
func unwrapData(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || raw[0] != '"' {
		return raw
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil || !json.Valid([]byte(s)) {
		return raw
	}
	return json.RawMessage(s)
}

func (v *Viewer) routeVhal(typ string, payload json.RawMessage) {
	if v.vhal == nil {
		v.log.Debug().Str("type", typ).Msg("no vhal receiver")
		return
	}
	recv := v.vhal
	switch typ {
	case domain.ControlVhalPropConfigs:
		v.events.invoke(func() { recv.OnPropConfigs(payload) })
	case domain.ControlVhalGetAnswer:
		v.events.invoke(func() { recv.OnGetAnswer(payload) })
	case domain.ControlVhalSetAnswer:
		v.events.invoke(func() { recv.OnSetAnswer(payload) })
	}
}

func (v *Viewer) deviceAllowed(kind domain.MediaKind) bool {
	switch kind {
	case domain.KindVideo:
		if !v.cameraAllowed {
			v.cameraAllowed = v.opts.AllowCamera == nil || v.opts.AllowCamera()
		}
		return v.cameraAllowed
	default:
		if !v.microphoneAllowed {
			v.microphoneAllowed = v.opts.AllowMicrophone == nil || v.opts.AllowMicrophone()
		}
		return v.microphoneAllowed
	}
}

func (v *Viewer) canAcquire(kind domain.MediaKind) bool {
	if v.swap == nil || !v.swap.has(kind) || v.devices == nil {
		v.log.Warn().Str("kind", string(kind)).Msg("device requested but not negotiated")
		return false
	}
	if !v.deviceAllowed(kind) {
		v.log.Warn().Str("kind", string(kind)).Msg("device access not allowed")
		return false
	}
	return true
}

func (v *Viewer) openCamera(spec domain.CameraSpec) {
	if !v.canAcquire(domain.KindVideo) {
		return
	}
	gen := v.swap.begin(domain.KindVideo)
	ctx, devices := v.ctx, v.devices
	go func() {
		src, err := devices.OpenCamera(ctx, spec)
		v.deliverDevice(domain.KindVideo, gen, src, err)
	}()
}

func (v *Viewer) openMicrophone(spec domain.MicrophoneSpec) {
	if !v.canAcquire(domain.KindAudio) {
		return
	}
	gen := v.swap.begin(domain.KindAudio)
	ctx, devices := v.ctx, v.devices
	go func() {
		src, err := devices.OpenMicrophone(ctx, spec)
		v.deliverDevice(domain.KindAudio, gen, src, err)
	}()
}

// deliverDevice runs on the acquiring goroutine and hands the result to
// the loop, releasing src if the session is already gone.
func (v *Viewer) deliverDevice(kind domain.MediaKind, gen uint64, src domain.MediaSource, err error) {
	if v.loop.post(func() { v.onDeviceAcquired(kind, gen, src, err) }) {
		return
	}
	if src != nil {
		src.Stop()
	}
}

func (v *Viewer) onDeviceAcquired(kind domain.MediaKind, gen uint64, src domain.MediaSource, err error) {
	if err != nil {
		if v.finished || v.swap.slots[kind].gen != gen {
			return
		}
		msg := "failed to open microphone"
		if kind == domain.KindVideo {
			msg = "failed to open camera"
		}
		v.fail(domain.WrapError(domain.CodeUserMedia, msg, err))
		return
	}
	if err := v.swap.grant(kind, gen, src); err != nil {
		if errors.Is(err, errStaleAcquisition) {
			v.log.Debug().Str("kind", string(kind)).Msg("discarding stale device")
			return
		}
		v.log.Warn().Err(err).Str("kind", string(kind)).Msg("failed to swap device in")
		return
	}
	v.log.Info().Str("kind", string(kind)).Msg("device granted")
}

func (v *Viewer) revokeDevice(kind domain.MediaKind) {
	if v.swap == nil {
		return
	}
	if err := v.swap.revoke(kind); err != nil {
		v.log.Warn().Err(err).Str("kind", string(kind)).Msg("failed to restore placeholder")
		return
	}
	v.log.Info().Str("kind", string(kind)).Msg("device revoked")
}
