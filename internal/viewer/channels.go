package viewer

import (
	"remoteplay/native/internal/domain"
)

// auxChannel is one application data channel and its lifecycle flags.
type auxChannel struct {
	desc   domain.DataChannelDescriptor
	ch     domain.Channel
	opened bool
	closed bool
}

type channelRegistry struct {
	order  []string
	byName map[string]*auxChannel
}

func validateDataChannels(descs []domain.DataChannelDescriptor) error {
	if len(descs) > domain.MaxDataChannels {
		return domain.NewError(domain.CodeInvalidArgument, "too many data channels")
	}
	seen := make(map[string]bool, len(descs))
	for _, d := range descs {
		switch {
		case d.Name == "":
			return domain.NewError(domain.CodeInvalidArgument, "data channel name must not be empty")
		case d.Name == domain.ControlChannelLabel:
			return domain.NewError(domain.CodeInvalidArgument, "data channel name is reserved: "+d.Name)
		case seen[d.Name]:
			return domain.NewError(domain.CodeInvalidArgument, "duplicate data channel name: "+d.Name)
		}
		seen[d.Name] = true
	}
	return nil
}

func newChannelRegistry(descs []domain.DataChannelDescriptor) (*channelRegistry, error) {
	if err := validateDataChannels(descs); err != nil {
		return nil, err
	}
	r := &channelRegistry{byName: make(map[string]*auxChannel, len(descs))}
	for _, d := range descs {
		r.order = append(r.order, d.Name)
		r.byName[d.Name] = &auxChannel{desc: d}
	}
	return r, nil
}

// names returns the declared channel names in declaration order.
func (r *channelRegistry) names() []string {
	if len(r.order) == 0 {
		return nil
	}
	return append([]string(nil), r.order...)
}

// closeAll closes every channel and reports the close to channels that
// had opened.
func (r *channelRegistry) closeAll(events *emitter) {
	for _, name := range r.order {
		aux := r.byName[name]
		if aux.ch == nil || aux.closed {
			continue
		}
		aux.closed = true
		aux.ch.Close()
		if aux.opened {
			events.invoke(aux.desc.OnClose)
		}
	}
}

// openChannels creates the control channel and every declared aux channel
// on the new peer.
func (v *Viewer) openChannels() error {
	control, err := v.peer.CreateDataChannel(domain.ControlChannelLabel)
	if err != nil {
		return err
	}
	v.control = control
	control.OnOpen(func() { v.loop.post(v.onControlOpen) })
	control.OnMessage(func(data []byte) {
		v.loop.post(func() { v.onControlMessage(data) })
	})
	control.OnError(func(err error) {
		v.loop.post(func() { v.onControlError(err) })
	})

	for _, name := range v.channels.order {
		aux := v.channels.byName[name]
		ch, err := v.peer.CreateDataChannel(name)
		if err != nil {
			return err
		}
		aux.ch = ch
		ch.OnOpen(func() { v.loop.post(func() { v.onAuxOpen(aux) }) })
		ch.OnClose(func() { v.loop.post(func() { v.onAuxClose(aux) }) })
		ch.OnMessage(func(data []byte) {
			v.loop.post(func() { v.onAuxMessage(aux, data) })
		})
		ch.OnError(func(err error) {
			v.loop.post(func() { v.onAuxError(aux, err) })
		})
	}
	return nil
}

func (v *Viewer) onAuxOpen(aux *auxChannel) {
	if v.finished || aux.closed || aux.opened {
		return
	}
	aux.opened = true
	v.log.Debug().Str("channel", aux.desc.Name).Msg("data channel open")
	v.events.invoke(aux.desc.OnOpen)
}

func (v *Viewer) onAuxClose(aux *auxChannel) {
	if v.finished || aux.closed {
		return
	}
	aux.closed = true
	v.log.Debug().Str("channel", aux.desc.Name).Msg("data channel closed")
	if aux.opened {
		v.events.invoke(aux.desc.OnClose)
	}
}

func (v *Viewer) onAuxMessage(aux *auxChannel, data []byte) {
	if v.finished || aux.closed || aux.desc.OnMessage == nil {
		return
	}
	fn := aux.desc.OnMessage
	v.events.invoke(func() { fn(data) })
}

func (v *Viewer) onAuxError(aux *auxChannel, err error) {
	if v.finished || aux.closed {
		return
	}
	v.log.Warn().Err(err).Str("channel", aux.desc.Name).Msg("data channel error")
	if fn := aux.desc.OnError; fn != nil {
		v.events.invoke(func() { fn(err) })
	}
}

// SendData writes data on the aux channel name. It reports false for an
// unknown name or a channel that is not open.
func (v *Viewer) SendData(name string, data []byte) bool {
	var ok bool
	v.loop.call(func() {
		aux, found := v.channels.byName[name]
		if !found || aux.ch == nil || !aux.opened || aux.closed || !aux.ch.IsOpen() {
			return
		}
		if err := aux.ch.Send(data); err != nil {
			v.log.Warn().Err(err).Str("channel", name).Msg("send data")
			return
		}
		ok = true
	})
	return ok
}
