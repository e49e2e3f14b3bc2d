package webrtc

import (
	"fmt"
	"sync"

	"remoteplay/native/internal/domain"

	pion "github.com/pion/webrtc/v4"
)

// TrackSource is implemented by media sources that can be bound to a
// Pion sender.
type TrackSource interface {
	domain.MediaSource
	Track() pion.TrackLocal
}

// Placeholder is an inert producer: a static sample track that is never
// written to, so the sender emits no media until it is replaced.
type Placeholder struct {
	kind  domain.MediaKind
	track *pion.TrackLocalStaticSample
}

// NewPlaceholder creates a placeholder producer for kind.
func NewPlaceholder(kind domain.MediaKind) (*Placeholder, error) {
	capability := pion.RTPCodecCapability{MimeType: pion.MimeTypeVP8}
	if kind == domain.KindAudio {
		capability = pion.RTPCodecCapability{MimeType: pion.MimeTypeOpus}
	}

	track, err := pion.NewTrackLocalStaticSample(capability, "placeholder-"+string(kind), "placeholder")
	if err != nil {
		return nil, fmt.Errorf("create %s placeholder: %w", kind, err)
	}
	return &Placeholder{kind: kind, track: track}, nil
}

func (p *Placeholder) Kind() domain.MediaKind { return p.kind }
func (p *Placeholder) Track() pion.TrackLocal { return p.track }
func (p *Placeholder) Stop() error { return nil }

func localTrack(src domain.MediaSource) (pion.TrackLocal, error) {
	ts, ok := src.(TrackSource)
	if !ok {
		return nil, fmt.Errorf("source %T cannot be bound to a sender", src)
	}
	return ts.Track(), nil
}

// sender wraps the RTPSender fixed at negotiation time.
type sender struct {
	mu   sync.Mutex
	raw  *pion.RTPSender
	kind domain.MediaKind
}

// Replace swaps the producer on the existing sender without renegotiation.
func (s *sender) Replace(src domain.MediaSource) error {
	if src.Kind() != s.kind {
		return fmt.Errorf("cannot replace %s producer with %s source", s.kind, src.Kind())
	}
	track, err := localTrack(src)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.raw.ReplaceTrack(track); err != nil {
		return fmt.Errorf("replace %s track: %w", s.kind, err)
	}
	return nil
}
