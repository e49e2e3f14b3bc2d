package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"remoteplay/native/internal/config"
	"remoteplay/native/internal/device"
	"remoteplay/native/internal/domain"
	"remoteplay/native/internal/logging"
	sigclient "remoteplay/native/internal/signal"
	"remoteplay/native/internal/vhal"
	"remoteplay/native/internal/viewer"
	"remoteplay/native/internal/webrtc"

	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/codec/opus"
	"github.com/pion/mediadevices/pkg/codec/vpx"
	_ "github.com/pion/mediadevices/pkg/driver/camera"
	_ "github.com/pion/mediadevices/pkg/driver/microphone"
	pion "github.com/pion/webrtc/v4"
	"github.com/pterm/pterm"
)

const helpText = `remoteplay - Stream a remote Android session via WebRTC

Usage:
  remoteplay [options]

Settings are read from a TOML file and may be overridden by environment
variables (a .env file in the working directory is honoured).

Environment Variables:
  REMOTEPLAY_SIGNALING_URL  Signaling endpoint of an allocated session
  REMOTEPLAY_STUN_URL       Optional STUN server
  REMOTEPLAY_TURN_URL       Optional TURN server
  REMOTEPLAY_TURN_USER      TURN username
  REMOTEPLAY_TURN_PASS      TURN credential
  REMOTEPLAY_API_VERSION    Signaling protocol version (0..2)
  REMOTEPLAY_LOG_LEVEL      trace, debug, info, warn, error or off

Examples:
  # Stream with settings from a file
  remoteplay -config remoteplay.toml

  # Print a stats table every second
  remoteplay -config remoteplay.toml -stats

Options:
  -config path  TOML configuration file
  -stats        Print connection stats while streaming
  -h, --help    Show this help message
`

func main() {
	fs := flag.NewFlagSet("remoteplay", flag.ContinueOnError)
	fs.Usage = func() { fmt.Fprint(os.Stderr, helpText) }
	configPath := fs.String("config", "", "")
	showStats := fs.Bool("stats", false, "")
	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
	logger := logging.Configure(cfg.Log.Level)
	log := logger.With().Str("component", "main").Logger()

	ctx, cancel := ossignal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	codecs, err := codecSelector()
	if err != nil {
		log.Fatal().Err(err).Msg("configure encoders")
	}

	names := cfg.Stream.DataChannels
	channels := make([]domain.DataChannelDescriptor, 0, len(names))
	for _, name := range names {
		channels = append(channels, domain.DataChannelDescriptor{
			Name:   name,
			OnOpen: func() { log.Info().Str("channel", name).Msg("data channel open") },
			OnMessage: func(data []byte) {
				log.Debug().Str("channel", name).Int("bytes", len(data)).Msg("data channel message")
			},
			OnClose: func() { log.Info().Str("channel", name).Msg("data channel closed") },
			OnError: func(err error) { log.Warn().Str("channel", name).Err(err).Msg("data channel error") },
		})
	}

	v, err := viewer.New(viewer.Options{
		Settings:         cfg.StreamSettings(),
		DataChannels:     channels,
		SignalingTimeout: cfg.Timeouts.Signaling.Duration,
		DisconnectGrace:  cfg.Timeouts.DisconnectGrace.Duration,
		EnableStats:      cfg.StatsEnabled(),
		StatsInterval:    cfg.Stats.Interval.Duration,
	}, newPeer, newSignaler, device.NewProvider(codecs))
	if err != nil {
		log.Fatal().Err(err).Msg("create viewer")
	}

	rpc := vhal.NewClient(v, cfg.Timeouts.RPC.Duration)
	rpc.Supported = func() bool { return v.HasCapability(domain.CapabilityVhal) }
	v.SetVhal(rpc)

	pterm.Info.Println(fmt.Sprintf("remoteplay session %s", v.ID()))
	if err := v.Start(ctx, cfg.Session); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}

	go func() {
		<-ctx.Done()
		log.Info().Msg("shutting down")
		v.Stop()
	}()

	code := 0
	for ev := range v.Events() {
		switch ev.Kind {
		case domain.EventDiscovered:
			log.Info().
				Int("max_api_version", ev.Discovery.MaxAPIVersion).
				Strs("capabilities", ev.Discovery.Capabilities).
				Msg("remote discovered")
		case domain.EventReady:
			pterm.Success.Println("stream ready")
			drain(ev.Video)
			drain(ev.Audio)
		case domain.EventControlChannelOpen:
			log.Info().Msg("control channel open")
		case domain.EventIMEStateChanged:
			log.Info().Bool("visible", ev.IMEVisible).Msg("ime state changed")
		case domain.EventMessage:
			log.Debug().Str("type", ev.Type).RawJSON("data", ev.Data).Msg("control message")
		case domain.EventStats:
			if *showStats {
				renderStats(ev.Stats)
			}
		case domain.EventError:
			pterm.Error.Println(ev.Err)
			code = 1
		case domain.EventClosed:
			pterm.Info.Println("session closed")
		}
	}
	os.Exit(code)
}

func codecSelector() (*mediadevices.CodecSelector, error) {
	vpxParams, err := vpx.NewVP8Params()
	if err != nil {
		return nil, fmt.Errorf("vp8 params: %w", err)
	}
	vpxParams.BitRate = 1_000_000
	vpxParams.RateControlEndUsage = vpx.RateControlVBR
	vpxParams.Deadline = 200 * time.Millisecond

	opusParams, err := opus.NewParams()
	if err != nil {
		return nil, fmt.Errorf("opus params: %w", err)
	}
	opusParams.Latency = opus.Latency20ms

	return mediadevices.NewCodecSelector(
		mediadevices.WithVideoEncoders(&vpxParams),
		mediadevices.WithAudioEncoders(&opusParams),
	), nil
}

func newPeer(relays []domain.RelayServer) (domain.Peer, error) {
	p, err := webrtc.NewPeer(relays)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func newSignaler(url string, handler domain.SignalHandler) domain.Signaler {
	return sigclient.NewClient(url, handler)
}

// drain keeps the receive buffers of a remote track moving. Rendering is
// left to an embedder.
func drain(track domain.RemoteTrack) {
	remote, ok := track.(*pion.TrackRemote)
	if !ok {
		return
	}
	go func() {
		for {
			if _, _, err := remote.ReadRTP(); err != nil {
				return
			}
		}
	}()
}

func renderStats(s domain.Stats) {
	data := pterm.TableData{
		{"stream", "mbit/s", "packets", "lost", "jitter", "codec"},
		{"video", fmt.Sprintf("%.2f", s.Video.BandwidthMbit), fmt.Sprint(s.Video.PacketsReceived),
			fmt.Sprint(s.Video.PacketsLost), fmt.Sprintf("%.1f", s.Video.Jitter), s.Video.Codec},
		{"audio out", fmt.Sprintf("%.2f", s.AudioOutput.BandwidthMbit), fmt.Sprint(s.AudioOutput.PacketsReceived),
			fmt.Sprint(s.AudioOutput.PacketsLost), fmt.Sprintf("%.1f", s.AudioOutput.Jitter), s.AudioOutput.Codec},
		{"audio in", fmt.Sprintf("%.2f", s.AudioInput.BandwidthMbit), "", "", "", s.AudioInput.Codec},
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
		return
	}
	pterm.Info.Println(fmt.Sprintf("rtt %.1fms via %s (%s/%s)", s.Network.CurrentRTT*1000,
		s.Network.TransportType, s.Network.LocalCandidateType, s.Network.RemoteCandidateType))
}
