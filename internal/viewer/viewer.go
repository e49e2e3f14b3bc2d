package viewer

import (
	"context"
	"sync"
	"time"

	"remoteplay/native/internal/domain"
	"remoteplay/native/internal/logging"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	DefaultSignalingTimeout = 5 * time.Minute
	DefaultDisconnectGrace  = 10 * time.Second
	DefaultStatsInterval    = time.Second
)

// PeerFactory creates the media engine of a session.
type PeerFactory func(relays []domain.RelayServer) (domain.Peer, error)

// SignalerFactory creates the signaling link of a session.
type SignalerFactory func(url string, handler domain.SignalHandler) domain.Signaler

// Options configure a Viewer. Zero durations take the defaults.
type Options struct {
	Settings     domain.StreamSettings
	DataChannels []domain.DataChannelDescriptor

	SignalingTimeout time.Duration
	DisconnectGrace  time.Duration

	EnableStats   bool
	StatsInterval time.Duration

	// AllowCamera and AllowMicrophone are asked when the remote requests a
	// device for the first time. They run on the session goroutine and must
	// not call back into the Viewer.
	AllowCamera     func() bool
	AllowMicrophone func() bool
}

// Viewer drives one streaming session: signaling, negotiation, transport
// monitoring and the control channel. It implements domain.SignalHandler.
type Viewer struct {
	id          string
	opts        Options
	newPeer     PeerFactory
	newSignaler SignalerFactory
	devices     domain.DeviceProvider
	log         zerolog.Logger

	loop   *loop
	events *emitter

	// Snapshot readable from any goroutine.
	mu        sync.RWMutex
	state     domain.ConnectionState
	discovery *domain.DiscoverResponse
	stats     domain.Stats

	// Everything below is owned by the loop goroutine.
	started  bool
	finished bool
	ctx      context.Context
	cancel   context.CancelFunc

	session       domain.Session
	signal        domain.Signaler
	signalClosing bool
	peer          domain.Peer
	vhal          domain.VhalReceiver
	candidates    candidateQueue

	localDescriptionSet  bool
	remoteDescriptionSet bool

	signalingTimer *time.Timer
	graceTimer     *time.Timer
	everConnected  bool
	readyRaised    bool
	videoTrack     domain.RemoteTrack
	audioTrack     domain.RemoteTrack

	control  domain.Channel
	channels *channelRegistry
	swap     *hotSwap
	poller   *statsPoller

	cameraAllowed     bool
	microphoneAllowed bool
}

// New creates a Viewer. devices may be nil when neither camera nor
// microphone is declared.
func New(opts Options, newPeer PeerFactory, newSignaler SignalerFactory, devices domain.DeviceProvider) (*Viewer, error) {
	if err := validateOptions(opts); err != nil {
		return nil, err
	}
	channels, err := newChannelRegistry(opts.DataChannels)
	if err != nil {
		return nil, err
	}

	if opts.SignalingTimeout <= 0 {
		opts.SignalingTimeout = DefaultSignalingTimeout
	}
	if opts.DisconnectGrace <= 0 {
		opts.DisconnectGrace = DefaultDisconnectGrace
	}
	if opts.StatsInterval <= 0 {
		opts.StatsInterval = DefaultStatsInterval
	}

	id := uuid.NewString()
	return &Viewer{
		id:          id,
		opts:        opts,
		newPeer:     newPeer,
		newSignaler: newSignaler,
		devices:     devices,
		log:         logging.New("viewer").With().Str("session", id).Logger(),
		loop:        newLoop(),
		events:      newEmitter(),
		channels:    channels,
		poller:      newStatsPoller(opts.StatsInterval),
	}, nil
}

func validateOptions(opts Options) error {
	s := opts.Settings
	if s.APIVersion < 0 || s.APIVersion > domain.MaxAPIVersion {
		return domain.NewError(domain.CodeInvalidArgument, "unsupported API version")
	}
	for _, codec := range s.PreferredVideoCodecs {
		if !domain.IsSupportedVideoCodec(codec) {
			return domain.NewError(domain.CodeInvalidArgument, "unsupported video codec "+codec)
		}
	}
	return nil
}

// SetVhal registers the receiver for VHAL answers. Call it before Start.
func (v *Viewer) SetVhal(r domain.VhalReceiver) {
	v.loop.call(func() { v.vhal = r })
}

// ID returns the session identifier used in logs.
func (v *Viewer) ID() string { return v.id }

// Events returns the event stream. It is closed after the error or closed
// event and must be drained by the caller.
func (v *Viewer) Events() <-chan domain.Event { return v.events.out }

// State returns the current connection state.
func (v *Viewer) State() domain.ConnectionState {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.state
}

// Discovery returns the remote's discover response once received.
func (v *Viewer) Discovery() (domain.DiscoverResponse, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.discovery == nil {
		return domain.DiscoverResponse{}, false
	}
	return *v.discovery, true
}

// HasCapability reports whether the remote advertised name.
func (v *Viewer) HasCapability(name string) bool {
	d, ok := v.Discovery()
	return ok && d.HasCapability(name)
}

// Stats returns a copy of the latest metrics.
func (v *Viewer) Stats() domain.Stats {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.stats
}

// Start begins the handshake with the signaling endpoint of session. ctx
// bounds the signaling dial and device acquisition.
func (v *Viewer) Start(ctx context.Context, session domain.Session) error {
	var err error
	if !v.loop.call(func() { err = v.start(ctx, session) }) {
		return domain.ErrClosed
	}
	return err
}

func (v *Viewer) start(ctx context.Context, session domain.Session) error {
	if v.finished {
		return domain.ErrClosed
	}
	if v.started {
		return domain.ErrAlreadyStarted
	}
	v.started = true
	v.session = session
	v.ctx, v.cancel = context.WithCancel(ctx)

	if session.SignalingURL == "" {
		err := domain.NewError(domain.CodeSignalingFailed, "no signaling information available")
		v.fail(err)
		return err
	}

	v.armSignalingTimer()
	v.setState(domain.StateDiscovering)

	sig := v.newSignaler(session.SignalingURL, v)
	v.signal = sig
	go func() {
		err := sig.Connect(v.ctx)
		if !v.loop.post(func() { v.onSignalConnected(sig, err) }) && err == nil {
			sig.Close()
		}
	}()
	return nil
}

// Stop tears the session down. It is idempotent and returns once every
// timer is cancelled and all resources are released.
func (v *Viewer) Stop() {
	v.loop.call(func() {
		v.log.Info().Msg("stopping session")
		v.closeSession()
	})
	<-v.loop.done
}

// OnSignalMessage implements domain.SignalHandler.
func (v *Viewer) OnSignalMessage(msg domain.SignalMessage) {
	v.loop.post(func() { v.handleSignal(msg) })
}

// OnSignalError implements domain.SignalHandler.
func (v *Viewer) OnSignalError(err error) {
	v.loop.post(func() { v.onSignalError(err) })
}

// OnSignalClose implements domain.SignalHandler.
func (v *Viewer) OnSignalClose() {
	v.loop.post(v.onSignalClose)
}

func (v *Viewer) setState(s domain.ConnectionState) {
	v.mu.Lock()
	prev := v.state
	v.state = s
	v.mu.Unlock()
	if prev != s {
		v.log.Debug().Str("from", prev.String()).Str("to", s.String()).Msg("state")
	}
}
