package viewer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"remoteplay/native/internal/domain"
)

const waitTimeout = 2 * time.Second

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// expectEvent reads events until one of kind arrives.
func expectEvent(t *testing.T, v *Viewer, kind domain.EventKind) domain.Event {
	t.Helper()
	timer := time.NewTimer(waitTimeout)
	defer timer.Stop()
	for {
		select {
		case ev, ok := <-v.Events():
			if !ok {
				t.Fatalf("event stream closed while waiting for %s", kind)
			}
			if ev.Kind == kind {
				return ev
			}
			if ev.Final() {
				t.Fatalf("got final %s (%v) while waiting for %s", ev.Kind, ev.Err, kind)
			}
		case <-timer.C:
			t.Fatalf("timed out waiting for %s", kind)
		}
	}
}

// expectClosedStream drains events and fails if another final event shows
// up before the stream ends.
func expectClosedStream(t *testing.T, v *Viewer) {
	t.Helper()
	timer := time.NewTimer(waitTimeout)
	defer timer.Stop()
	for {
		select {
		case ev, ok := <-v.Events():
			if !ok {
				return
			}
			if ev.Final() {
				t.Fatalf("unexpected second final event %s", ev.Kind)
			}
		case <-timer.C:
			t.Fatal("event stream not closed")
		}
	}
}

// --- signaling ---

type fakeSignaler struct {
	mu         sync.Mutex
	handler    domain.SignalHandler
	connectErr error
	sent       []domain.SignalMessage
	closed     bool
}

func (s *fakeSignaler) factory(url string, h domain.SignalHandler) domain.Signaler {
	s.mu.Lock()
	s.handler = h
	s.mu.Unlock()
	return s
}

func (s *fakeSignaler) Connect(ctx context.Context) error { return s.connectErr }

func (s *fakeSignaler) Send(msg domain.SignalMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("closed")
	}
	s.sent = append(s.sent, msg)
	return nil
}

func (s *fakeSignaler) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *fakeSignaler) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *fakeSignaler) deliver(msg domain.SignalMessage) {
	s.mu.Lock()
	h := s.handler
	s.mu.Unlock()
	h.OnSignalMessage(msg)
}

func (s *fakeSignaler) fail(err error) {
	s.mu.Lock()
	h := s.handler
	s.mu.Unlock()
	h.OnSignalError(err)
}

func (s *fakeSignaler) sentOfType(typ string) []domain.SignalMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.SignalMessage
	for _, m := range s.sent {
		if m.SignalType() == typ {
			out = append(out, m)
		}
	}
	return out
}

func (s *fakeSignaler) waitSent(t *testing.T, typ string) domain.SignalMessage {
	t.Helper()
	var msg domain.SignalMessage
	waitFor(t, "signal "+typ, func() bool {
		if sent := s.sentOfType(typ); len(sent) > 0 {
			msg = sent[0]
			return true
		}
		return false
	})
	return msg
}

// --- media ---

type fakeSource struct {
	kind domain.MediaKind
	name string

	mu      sync.Mutex
	stopped bool
}

func (s *fakeSource) Kind() domain.MediaKind { return s.kind }

func (s *fakeSource) Stop() error {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	return nil
}

func (s *fakeSource) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

type fakeSender struct {
	kind domain.MediaKind
	dir  domain.Direction

	mu       sync.Mutex
	current  domain.MediaSource
	replaced int
}

func (s *fakeSender) Replace(src domain.MediaSource) error {
	if src.Kind() != s.kind {
		return errors.New("kind mismatch")
	}
	s.mu.Lock()
	s.current = src
	s.replaced++
	s.mu.Unlock()
	return nil
}

func (s *fakeSender) source() domain.MediaSource {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

type fakeTrack struct{ id string }

func (t fakeTrack) ID() string       { return t.id }
func (t fakeTrack) StreamID() string { return "stream" }

type transceiver struct {
	kind domain.MediaKind
	dir  domain.Direction
}

type fakePeer struct {
	mu           sync.Mutex
	layout       []transceiver
	senders      map[domain.MediaKind]*fakeSender
	placeholders []*fakeSource
	channels     map[string]*fakeChannel
	offers       int
	answers      int
	remote       []domain.SDPType
	candidates   []domain.Candidate
	stats        domain.StatsReport
	closed       bool
	closeCalls   int

	onCandidate func(*domain.Candidate)
	onState     func(domain.TransportState)
	onTrack     func(domain.MediaKind, domain.RemoteTrack)
}

func newFakePeer() *fakePeer {
	return &fakePeer{
		senders:  make(map[domain.MediaKind]*fakeSender),
		channels: make(map[string]*fakeChannel),
	}
}

func (p *fakePeer) factory(relays []domain.RelayServer) (domain.Peer, error) {
	return p, nil
}

func (p *fakePeer) AddTransceiver(kind domain.MediaKind, dir domain.Direction) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.layout = append(p.layout, transceiver{kind, dir})
	return nil
}

func (p *fakePeer) NewPlaceholder(kind domain.MediaKind) (domain.MediaSource, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	src := &fakeSource{kind: kind, name: "placeholder"}
	p.placeholders = append(p.placeholders, src)
	return src, nil
}

func (p *fakePeer) AttachSource(src domain.MediaSource, dir domain.Direction) (domain.Sender, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := &fakeSender{kind: src.Kind(), dir: dir, current: src}
	p.senders[src.Kind()] = s
	p.layout = append(p.layout, transceiver{src.Kind(), dir})
	return s, nil
}

func (p *fakePeer) CreateDataChannel(label string) (domain.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch := &fakeChannel{label: label}
	p.channels[label] = ch
	return ch, nil
}

func (p *fakePeer) CreateOffer() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.offers++
	return "local-offer", nil
}

func (p *fakePeer) CreateAnswer() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.answers++
	return "local-answer", nil
}

func (p *fakePeer) SetRemoteDescription(typ domain.SDPType, sdp string) error {
	if sdp == "bad" {
		return errors.New("invalid sdp")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.remote = append(p.remote, typ)
	return nil
}

func (p *fakePeer) AddICECandidate(c domain.Candidate) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.candidates = append(p.candidates, c)
	return nil
}

func (p *fakePeer) OnICECandidate(fn func(c *domain.Candidate)) {
	p.mu.Lock()
	p.onCandidate = fn
	p.mu.Unlock()
}

func (p *fakePeer) OnTransportStateChange(fn func(state domain.TransportState)) {
	p.mu.Lock()
	p.onState = fn
	p.mu.Unlock()
}

func (p *fakePeer) OnTrack(fn func(kind domain.MediaKind, track domain.RemoteTrack)) {
	p.mu.Lock()
	p.onTrack = fn
	p.mu.Unlock()
}

func (p *fakePeer) GetStats() (domain.StatsReport, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats, nil
}

func (p *fakePeer) Close() error {
	p.mu.Lock()
	p.closed = true
	p.closeCalls++
	p.mu.Unlock()
	return nil
}

func (p *fakePeer) setState(s domain.TransportState) {
	p.mu.Lock()
	fn := p.onState
	p.mu.Unlock()
	fn(s)
}

func (p *fakePeer) addTrack(kind domain.MediaKind, id string) {
	p.mu.Lock()
	fn := p.onTrack
	p.mu.Unlock()
	fn(kind, fakeTrack{id: id})
}

func (p *fakePeer) gather(c *domain.Candidate) {
	p.mu.Lock()
	fn := p.onCandidate
	p.mu.Unlock()
	fn(c)
}

func (p *fakePeer) channel(label string) *fakeChannel {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.channels[label]
}

func (p *fakePeer) sender(kind domain.MediaKind) *fakeSender {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.senders[kind]
}

func (p *fakePeer) snapshot() (layout []transceiver, remote []domain.SDPType, candidates []domain.Candidate) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]transceiver(nil), p.layout...),
		append([]domain.SDPType(nil), p.remote...),
		append([]domain.Candidate(nil), p.candidates...)
}

func (p *fakePeer) closes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closeCalls
}

func (p *fakePeer) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

type fakeChannel struct {
	label string

	mu        sync.Mutex
	open      bool
	closed    bool
	texts     []string
	data      [][]byte
	onOpen    func()
	onMessage func([]byte)
	onClose   func()
	onError   func(error)
}

func (c *fakeChannel) Label() string { return c.label }

func (c *fakeChannel) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open && !c.closed
}

func (c *fakeChannel) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = append(c.data, data)
	return nil
}

func (c *fakeChannel) SendText(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.texts = append(c.texts, text)
	return nil
}

func (c *fakeChannel) OnOpen(fn func()) {
	c.mu.Lock()
	c.onOpen = fn
	c.mu.Unlock()
}

func (c *fakeChannel) OnMessage(fn func([]byte)) {
	c.mu.Lock()
	c.onMessage = fn
	c.mu.Unlock()
}

func (c *fakeChannel) OnClose(fn func()) {
	c.mu.Lock()
	c.onClose = fn
	c.mu.Unlock()
}

func (c *fakeChannel) OnError(fn func(err error)) {
	c.mu.Lock()
	c.onError = fn
	c.mu.Unlock()
}

func (c *fakeChannel) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func (c *fakeChannel) fireOpen() {
	c.mu.Lock()
	c.open = true
	fn := c.onOpen
	c.mu.Unlock()
	fn()
}

func (c *fakeChannel) receive(msg string) {
	c.mu.Lock()
	fn := c.onMessage
	c.mu.Unlock()
	fn([]byte(msg))
}

func (c *fakeChannel) fireError(err error) {
	c.mu.Lock()
	fn := c.onError
	c.mu.Unlock()
	fn(err)
}

func (c *fakeChannel) sentTexts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.texts...)
}

func (c *fakeChannel) sentData() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.data...)
}

// --- devices ---

type fakeDevices struct {
	mu         sync.Mutex
	cameraErr  error
	opened     []*fakeSource
	cameraSpec domain.CameraSpec
}

func (d *fakeDevices) OpenCamera(ctx context.Context, spec domain.CameraSpec) (domain.MediaSource, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cameraErr != nil {
		return nil, d.cameraErr
	}
	d.cameraSpec = spec
	src := &fakeSource{kind: domain.KindVideo, name: "camera"}
	d.opened = append(d.opened, src)
	return src, nil
}

func (d *fakeDevices) OpenMicrophone(ctx context.Context, spec domain.MicrophoneSpec) (domain.MediaSource, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	src := &fakeSource{kind: domain.KindAudio, name: "microphone"}
	d.opened = append(d.opened, src)
	return src, nil
}

func (d *fakeDevices) sources() []*fakeSource {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*fakeSource(nil), d.opened...)
}

type fakeVhal struct {
	mu      sync.Mutex
	configs []string
	gets    []string
	sets    []string
}

func (f *fakeVhal) OnPropConfigs(data json.RawMessage) {
	f.mu.Lock()
	f.configs = append(f.configs, string(data))
	f.mu.Unlock()
}

func (f *fakeVhal) OnGetAnswer(data json.RawMessage) {
	f.mu.Lock()
	f.gets = append(f.gets, string(data))
	f.mu.Unlock()
}

func (f *fakeVhal) OnSetAnswer(data json.RawMessage) {
	f.mu.Lock()
	f.sets = append(f.sets, string(data))
	f.mu.Unlock()
}

func (f *fakeVhal) getAnswers() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.gets...)
}

func (f *fakeVhal) configCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.configs)
}

// --- harness ---

type harness struct {
	v       *Viewer
	sig     *fakeSignaler
	peer    *fakePeer
	devices *fakeDevices
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	h := &harness{sig: &fakeSignaler{}, peer: newFakePeer(), devices: &fakeDevices{}}
	v, err := New(opts, h.peer.factory, h.sig.factory, h.devices)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.v = v
	t.Cleanup(v.Stop)
	return h
}

// sync waits until everything posted to the session so far has run.
func (h *harness) sync() {
	h.v.loop.call(func() {})
}

// start runs Start and waits for the discover request.
func (h *harness) start(t *testing.T) {
	t.Helper()
	if err := h.v.Start(context.Background(), domain.Session{SignalingURL: "ws://signal.test/ws"}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.sig.waitSent(t, domain.SignalDiscover)
}

// negotiate completes discovery and the server-offer exchange.
func (h *harness) negotiate(t *testing.T, caps ...string) {
	t.Helper()
	h.start(t)
	h.sig.deliver(domain.DiscoverResponse{MaxAPIVersion: 2, Capabilities: caps})
	h.sig.deliver(domain.Offer{SDP: "remote-offer"})
	h.sig.waitSent(t, domain.SignalAnswer)
}

// connect negotiates, opens the control channel and reports the transport
// as connected.
func (h *harness) connect(t *testing.T, caps ...string) *fakeChannel {
	t.Helper()
	h.negotiate(t, caps...)
	control := h.peer.channel(domain.ControlChannelLabel)
	control.fireOpen()
	expectEvent(t, h.v, domain.EventControlChannelOpen)
	h.peer.setState(domain.TransportConnected)
	waitFor(t, "connected state", func() bool { return h.v.State() == domain.StateConnected })
	return control
}
