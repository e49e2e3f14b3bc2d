package webrtc

import (
	pion "github.com/pion/webrtc/v4"
)

// DataChannel adapts a Pion DataChannel to domain.Channel.
type DataChannel struct {
	raw *pion.DataChannel
}

func newDataChannel(dc *pion.DataChannel) *DataChannel {
	return &DataChannel{raw: dc}
}

func (c *DataChannel) Label() string { return c.raw.Label() }

func (c *DataChannel) IsOpen() bool {
	return c.raw.ReadyState() == pion.DataChannelStateOpen
}

func (c *DataChannel) Send(data []byte) error { return c.raw.Send(data) }
func (c *DataChannel) SendText(text string) error { return c.raw.SendText(text) }

func (c *DataChannel) OnOpen(fn func()) { c.raw.OnOpen(fn) }
func (c *DataChannel) OnClose(fn func()) { c.raw.OnClose(fn) }

func (c *DataChannel) OnMessage(fn func(data []byte)) {
	c.raw.OnMessage(func(msg pion.DataChannelMessage) {
		fn(msg.Data)
	})
}

func (c *DataChannel) OnError(fn func(err error)) { c.raw.OnError(fn) }

func (c *DataChannel) Close() error { return c.raw.Close() }
