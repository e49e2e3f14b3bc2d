package viewer

import (
	"time"

	"remoteplay/native/internal/domain"
)

// byteSample is the previous cumulative counter of one stats category.
type byteSample struct {
	bytes uint64
	at    time.Time
	valid bool
}

// bandwidth returns Mbit/s since the previous sample and records the new
// one. The first sample, a counter reset or a non-positive interval
// yields zero.
func (s *byteSample) bandwidth(bytes uint64, at time.Time) float64 {
	prev := *s
	*s = byteSample{bytes: bytes, at: at, valid: true}
	if !prev.valid || bytes < prev.bytes {
		return 0
	}
	elapsed := at.Sub(prev.at).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(bytes-prev.bytes) * 8 / 1e6 / elapsed
}

type statsPoller struct {
	interval time.Duration
	quit     chan struct{}
	running  bool
	inFlight bool

	video       byteSample
	audioOutput byteSample
	audioInput  byteSample
}

func newStatsPoller(interval time.Duration) *statsPoller {
	return &statsPoller{interval: interval}
}

func (p *statsPoller) start(tick func()) {
	if p.running {
		return
	}
	p.running = true
	p.quit = make(chan struct{})
	go func(quit chan struct{}) {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-quit:
				return
			case <-ticker.C:
				tick()
			}
		}
	}(p.quit)
}

func (p *statsPoller) stop() {
	if !p.running {
		return
	}
	p.running = false
	close(p.quit)
}

// update derives session metrics from a raw report.
func (p *statsPoller) update(r domain.StatsReport) domain.Stats {
	out := domain.Stats{RTCConfig: r.Config}

	for _, in := range r.Inbound {
		switch in.Kind {
		case domain.KindVideo:
			out.Video = domain.VideoStats{
				BandwidthMbit:        p.video.bandwidth(in.BytesReceived, in.Timestamp),
				TotalBytesReceived:   in.BytesReceived,
				PacketsReceived:      in.PacketsReceived,
				PacketsLost:          in.PacketsLost,
				Jitter:               in.Jitter,
				AvgJitterBufferDelay: avgJitterBufferDelay(in),
				FramesDecoded:        in.FramesDecoded,
				KeyFramesDecoded:     in.KeyFramesDecoded,
				FramesDropped:        in.FramesDropped,
				FrameWidth:           in.FrameWidth,
				FrameHeight:          in.FrameHeight,
				NACKCount:            in.NACKCount,
				PLICount:             in.PLICount,
				FIRCount:             in.FIRCount,
				QPSum:                in.QPSum,
				Codec:                r.Codecs[in.CodecID],
			}
		case domain.KindAudio:
			out.AudioOutput = domain.AudioOutputStats{
				BandwidthMbit:        p.audioOutput.bandwidth(in.BytesReceived, in.Timestamp),
				TotalBytesReceived:   in.BytesReceived,
				TotalSamplesReceived: in.TotalSamplesReceived,
				PacketsReceived:      in.PacketsReceived,
				PacketsLost:          in.PacketsLost,
				Jitter:               in.Jitter,
				AvgJitterBufferDelay: avgJitterBufferDelay(in),
				Codec:                r.Codecs[in.CodecID],
			}
		}
	}

	for _, o := range r.Outbound {
		if o.Kind != domain.KindAudio {
			continue
		}
		out.AudioInput = domain.AudioInputStats{
			BandwidthMbit:  p.audioInput.bandwidth(o.BytesSent, o.Timestamp),
			TotalBytesSent: o.BytesSent,
			Codec:          r.Codecs[o.CodecID],
		}
	}

	if pair, ok := selectPair(r.Pairs); ok {
		local := r.Candidates[pair.LocalCandidateID]
		remote := r.Candidates[pair.RemoteCandidateID]
		out.Network = domain.NetworkStats{
			CurrentRTT:          pair.CurrentRTT,
			TransportType:       local.Protocol,
			LocalCandidateType:  local.Type,
			RemoteCandidateType: remote.Type,
		}
	}
	return out
}

// avgJitterBufferDelay is in milliseconds.
func avgJitterBufferDelay(in domain.InboundRTPStats) float64 {
	if in.JitterBufferEmittedCount == 0 {
		return 0
	}
	return in.JitterBufferDelay / float64(in.JitterBufferEmittedCount) * 1000
}

// selectPair prefers a nominated and succeeded pair, then a nominated one,
// then any succeeded one.
func selectPair(pairs []domain.CandidatePairStats) (domain.CandidatePairStats, bool) {
	best, rank := domain.CandidatePairStats{}, 0
	for _, p := range pairs {
		r := 0
		switch {
		case p.Nominated && p.Succeeded:
			r = 3
		case p.Nominated:
			r = 2
		case p.Succeeded:
			r = 1
		}
		if r > rank {
			best, rank = p, r
		}
	}
	return best, rank > 0
}

func (v *Viewer) startStats() {
	peer := v.peer
	v.poller.start(func() {
		v.loop.post(func() { v.sampleStats(peer) })
	})
}

func (v *Viewer) sampleStats(peer domain.Peer) {
	if v.finished || v.poller.inFlight {
		return
	}
	v.poller.inFlight = true
	go func() {
		report, err := peer.GetStats()
		v.loop.post(func() { v.onStatsReport(report, err) })
	}()
}

func (v *Viewer) onStatsReport(report domain.StatsReport, err error) {
	v.poller.inFlight = false
	if v.finished {
		return
	}
	if err != nil {
		v.log.Debug().Err(err).Msg("stats sample unavailable")
		return
	}
	stats := v.poller.update(report)
	v.mu.Lock()
	v.stats = stats
	v.mu.Unlock()
	v.events.emit(domain.Event{Kind: domain.EventStats, Stats: stats})
}
