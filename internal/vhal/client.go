// Package vhal issues vehicle property calls over the session's control
// channel. The channel has no request identifiers, so answers are matched
// to requests by arrival order, per verb.
package vhal

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"remoteplay/native/internal/domain"
	"remoteplay/native/internal/logging"

	"github.com/rs/zerolog"
)

const DefaultTimeout = time.Second

const (
	VerbGet = "get"
	VerbSet = "set"
)

// Sender writes a control message. *viewer.Viewer implements it.
type Sender interface {
	SendControlMessage(typ string, data any) bool
}

// Property is one item of a get or set call.
type Property struct {
	// Prop is the property id. Zero is not a valid id and marks the item
	// as incomplete.
	Prop        int32     `json:"prop"`
	AreaID      int32     `json:"area_id"`
	Status      *int32    `json:"status,omitempty"`
	Int32Values []int32   `json:"int32_values,omitempty"`
	FloatValues []float32 `json:"float_values,omitempty"`
	Int64Values []int64   `json:"int64_values,omitempty"`
	Bytes       []byte    `json:"-"`
	StringValue *string   `json:"string_value,omitempty"`
}

// MarshalJSON encodes Bytes as an array of integers.
func (p Property) MarshalJSON() ([]byte, error) {
	type plain Property
	out := struct {
		plain
		Bytes []int `json:"bytes,omitempty"`
	}{plain: plain(p)}
	for _, b := range p.Bytes {
		out.Bytes = append(out.Bytes, int(b))
	}
	return json.Marshal(out)
}

type pending struct {
	answer chan json.RawMessage
}

// Client correlates VHAL calls with their answers. It implements
// domain.VhalReceiver. Calls block until answered, so they must not be made
// from session event or channel callbacks.
type Client struct {
	sender  Sender
	timeout time.Duration
	log     zerolog.Logger

	// Supported, when set, is asked before every call.
	Supported func() bool

	sendMu sync.Mutex

	mu      sync.Mutex
	queues  map[string][]*pending
	configs map[int32]json.RawMessage
	order   []int32
}

// NewClient creates a client that writes through sender. A zero timeout
// takes DefaultTimeout.
func NewClient(sender Sender, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		sender:  sender,
		timeout: timeout,
		log:     logging.New("vhal"),
		queues:  make(map[string][]*pending),
	}
}

// Get reads the given properties.
func (c *Client) Get(ctx context.Context, props []Property) ([]json.RawMessage, error) {
	return c.Call(ctx, VerbGet, props)
}

// Set writes the given property values.
func (c *Client) Set(ctx context.Context, props []Property) ([]json.RawMessage, error) {
	return c.Call(ctx, VerbSet, props)
}

// Call sends one vhal::<verb> message per item and waits for all answers.
// A single timeout covers the whole batch.
func (c *Client) Call(ctx context.Context, verb string, items []Property) ([]json.RawMessage, error) {
	if c.Supported != nil && !c.Supported() {
		return nil, domain.ErrNotSupported
	}
	for _, item := range items {
		if item.Prop == 0 {
			return nil, domain.NewError(domain.CodeInvalidArgument, "must provide property ID for all properties")
		}
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	waiting, err := c.send(verb, items)
	if err != nil {
		return nil, err
	}

	results := make([]json.RawMessage, len(waiting))
	for i, p := range waiting {
		select {
		case answer := <-p.answer:
			results[i] = answer
		case <-timer.C:
			c.log.Warn().Str("verb", verb).Int("answered", i).Int("items", len(items)).Msg("call timed out")
			return nil, domain.NewError(domain.CodeTimeout,
				fmt.Sprintf("timeout while waiting for answer to %s request", verb))
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return results, nil
}

// send queues a resolver and writes the request for every item. Queue
// order and wire order must match, so the whole batch holds sendMu.
func (c *Client) send(verb string, items []Property) ([]*pending, error) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	waiting := make([]*pending, 0, len(items))
	for _, item := range items {
		p := &pending{answer: make(chan json.RawMessage, 1)}
		c.push(verb, p)
		if !c.sender.SendControlMessage("vhal::"+verb, item) {
			c.withdraw(verb, p)
			return nil, domain.NewError(domain.CodeWebRTCControlFailed,
				fmt.Sprintf("error when sending %s call through control channel", verb))
		}
		waiting = append(waiting, p)
	}
	return waiting, nil
}

func (c *Client) push(verb string, p *pending) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queues[verb] = append(c.queues[verb], p)
}

func (c *Client) withdraw(verb string, p *pending) {
	c.mu.Lock()
	defer c.mu.Unlock()
	queue := c.queues[verb]
	for i := len(queue) - 1; i >= 0; i-- {
		if queue[i] == p {
			c.queues[verb] = append(queue[:i], queue[i+1:]...)
			return
		}
	}
}

func (c *Client) resolve(verb string, answer json.RawMessage) {
	c.mu.Lock()
	queue := c.queues[verb]
	if len(queue) == 0 {
		c.mu.Unlock()
		c.log.Warn().Str("verb", verb).Msg("dropping unsolicited answer")
		return
	}
	head := queue[0]
	queue[0] = nil
	c.queues[verb] = queue[1:]
	c.mu.Unlock()

	head.answer <- append(json.RawMessage(nil), answer...)
}

// Pending returns the number of unanswered requests for verb.
func (c *Client) Pending(verb string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queues[verb])
}

// OnGetAnswer implements domain.VhalReceiver.
func (c *Client) OnGetAnswer(data json.RawMessage) { c.resolve(VerbGet, data) }

// OnSetAnswer implements domain.VhalReceiver.
func (c *Client) OnSetAnswer(data json.RawMessage) { c.resolve(VerbSet, data) }

// OnPropConfigs implements domain.VhalReceiver. It replaces the config
// cache with the received list.
func (c *Client) OnPropConfigs(data json.RawMessage) {
	var list []json.RawMessage
	if err := json.Unmarshal(data, &list); err != nil {
		c.log.Warn().Err(err).Msg("malformed prop configs")
		return
	}

	configs := make(map[int32]json.RawMessage, len(list))
	order := make([]int32, 0, len(list))
	for _, raw := range list {
		var head struct {
			Prop int32 `json:"prop"`
		}
		if err := json.Unmarshal(raw, &head); err != nil {
			c.log.Warn().Err(err).Msg("skipping malformed prop config")
			continue
		}
		if _, seen := configs[head.Prop]; !seen {
			order = append(order, head.Prop)
		}
		configs[head.Prop] = append(json.RawMessage(nil), raw...)
	}

	c.mu.Lock()
	c.configs, c.order = configs, order
	c.mu.Unlock()
	c.log.Info().Int("count", len(order)).Msg("prop configs received")
}

// PropConfigs returns copies of the cached configs for ids. Unknown ids are
// skipped.
func (c *Client) PropConfigs(ids ...int32) []json.RawMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]json.RawMessage, 0, len(ids))
	for _, id := range ids {
		if raw, ok := c.configs[id]; ok {
			out = append(out, append(json.RawMessage(nil), raw...))
		}
	}
	return out
}

// AllPropConfigs returns copies of every cached config in the order they
// were received.
func (c *Client) AllPropConfigs() []json.RawMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]json.RawMessage, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, append(json.RawMessage(nil), c.configs[id]...))
	}
	return out
}
