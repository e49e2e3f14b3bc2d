package device

import (
	"context"
	"errors"
	"fmt"
	"time"

	"remoteplay/native/internal/domain"
	"remoteplay/native/internal/logging"

	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/prop"
	pion "github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
)

// Provider acquires capture devices through mediadevices. Drivers and
// encoders are registered by the binary.
type Provider struct {
	codecs *mediadevices.CodecSelector
	log    zerolog.Logger
}

// NewProvider returns a provider that encodes with codecs.
func NewProvider(codecs *mediadevices.CodecSelector) *Provider {
	return &Provider{codecs: codecs, log: logging.New("device")}
}

// OpenCamera acquires a camera matching spec.
func (p *Provider) OpenCamera(ctx context.Context, spec domain.CameraSpec) (domain.MediaSource, error) {
	if spec.FacingMode != "" {
		p.log.Debug().Str("facing_mode", spec.FacingMode).Msg("facing mode is not selectable, using default camera")
	}
	return p.open(ctx, domain.KindVideo, mediadevices.MediaStreamConstraints{
		Video: cameraConstraints(spec),
		Codec: p.codecs,
	})
}

// OpenMicrophone acquires a microphone matching spec.
func (p *Provider) OpenMicrophone(ctx context.Context, spec domain.MicrophoneSpec) (domain.MediaSource, error) {
	return p.open(ctx, domain.KindAudio, mediadevices.MediaStreamConstraints{
		Audio: microphoneConstraints(spec),
		Codec: p.codecs,
	})
}

type result struct {
	src *Source
	err error
}

func (p *Provider) open(ctx context.Context, kind domain.MediaKind, constraints mediadevices.MediaStreamConstraints) (domain.MediaSource, error) {
	done := make(chan result, 1)
	go func() {
		stream, err := mediadevices.GetUserMedia(constraints)
		if err != nil {
			done <- result{err: fmt.Errorf("get user media: %w", err)}
			return
		}

		var tracks []mediadevices.Track
		if kind == domain.KindVideo {
			tracks = stream.GetVideoTracks()
		} else {
			tracks = stream.GetAudioTracks()
		}
		if len(tracks) == 0 {
			done <- result{err: fmt.Errorf("no %s track available", kind)}
			return
		}
		for _, extra := range tracks[1:] {
			extra.Close()
		}

		src, err := newSource(kind, tracks[0])
		if err != nil {
			tracks[0].Close()
		}
		done <- result{src: src, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, r.err
		}
		p.log.Info().Str("kind", string(kind)).Str("track", r.src.track.ID()).Msg("device acquired")
		return r.src, nil
	case <-ctx.Done():
		// Release the device if acquisition finishes after the caller left.
		go func() {
			if r := <-done; r.src != nil {
				r.src.Stop()
			}
		}()
		return nil, ctx.Err()
	}
}

func cameraConstraints(spec domain.CameraSpec) func(*mediadevices.MediaTrackConstraints) {
	return func(c *mediadevices.MediaTrackConstraints) {
		if spec.Resolution.Width > 0 {
			c.Width = prop.Int(spec.Resolution.Width)
		}
		if spec.Resolution.Height > 0 {
			c.Height = prop.Int(spec.Resolution.Height)
		}
		if spec.FrameRate > 0 {
			c.FrameRate = prop.Float(spec.FrameRate)
		}
	}
}

func microphoneConstraints(spec domain.MicrophoneSpec) func(*mediadevices.MediaTrackConstraints) {
	return func(c *mediadevices.MediaTrackConstraints) {
		if spec.Freq > 0 {
			c.SampleRate = prop.Int(spec.Freq)
		}
		if spec.Channels > 0 {
			c.ChannelCount = prop.Int(spec.Channels)
		}
		// samples is the buffer size per callback; it maps to latency.
		if spec.Samples > 0 && spec.Freq > 0 {
			c.Latency = prop.Duration(time.Duration(spec.Samples) * time.Second / time.Duration(spec.Freq))
		}
	}
}

// Source is a captured device track.
type Source struct {
	kind  domain.MediaKind
	track mediadevices.Track
	local pion.TrackLocal
}

func newSource(kind domain.MediaKind, track mediadevices.Track) (*Source, error) {
	local, ok := track.(pion.TrackLocal)
	if !ok {
		return nil, errors.New("device track cannot be sent over webrtc")
	}
	return &Source{kind: kind, track: track, local: local}, nil
}

func (s *Source) Kind() domain.MediaKind { return s.kind }

// Track returns the track bound to the sender.
func (s *Source) Track() pion.TrackLocal { return s.local }

// Stop releases the device.
func (s *Source) Stop() error { return s.track.Close() }
