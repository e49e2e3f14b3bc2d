package domain

import "time"

// StatsReport is an engine-neutral snapshot of transport counters.
type StatsReport struct {
	Inbound    []InboundRTPStats
	Outbound   []OutboundRTPStats
	Pairs      []CandidatePairStats
	Candidates map[string]CandidateStats
	Codecs     map[string]string // codec id -> mime type
	Config     RTCConfig
}

type InboundRTPStats struct {
	Kind                     MediaKind
	Timestamp                time.Time
	CodecID                  string
	BytesReceived            uint64
	PacketsReceived          uint32
	PacketsLost              int32
	Jitter                   float64
	JitterBufferDelay        float64
	JitterBufferEmittedCount uint64
	TotalSamplesReceived     uint64
	FramesDecoded            uint32
	KeyFramesDecoded         uint32
	FramesDropped            uint32
	FrameWidth               uint32
	FrameHeight              uint32
	NACKCount                uint32
	PLICount                 uint32
	FIRCount                 uint32
	QPSum                    uint64
}

type OutboundRTPStats struct {
	Kind      MediaKind
	Timestamp time.Time
	CodecID   string
	BytesSent uint64
}

type CandidatePairStats struct {
	LocalCandidateID  string
	RemoteCandidateID string
	Nominated         bool
	Succeeded         bool
	CurrentRTT        float64
}

type CandidateStats struct {
	Type     string
	Protocol string
}

type RTCConfig struct {
	BundlePolicy         string
	RTCPMuxPolicy        string
	ICETransportPolicy   string
	ICECandidatePoolSize int
}

// Stats is the derived metrics structure kept by the session.
type Stats struct {
	Network     NetworkStats
	Video       VideoStats
	AudioOutput AudioOutputStats
	AudioInput  AudioInputStats
	RTCConfig   RTCConfig
}

type NetworkStats struct {
	CurrentRTT          float64
	TransportType       string
	LocalCandidateType  string
	RemoteCandidateType string
}

type VideoStats struct {
	BandwidthMbit        float64
	TotalBytesReceived   uint64
	PacketsReceived      uint32
	PacketsLost          int32
	Jitter               float64
	AvgJitterBufferDelay float64
	FramesDecoded        uint32
	KeyFramesDecoded     uint32
	FramesDropped        uint32
	FrameWidth           uint32
	FrameHeight          uint32
	NACKCount            uint32
	PLICount             uint32
	FIRCount             uint32
	QPSum                uint64
	Codec                string
}

type AudioOutputStats struct {
	BandwidthMbit        float64
	TotalBytesReceived   uint64
	TotalSamplesReceived uint64
	PacketsReceived      uint32
	PacketsLost          int32
	Jitter               float64
	AvgJitterBufferDelay float64
	Codec                string
}

type AudioInputStats struct {
	BandwidthMbit  float64
	TotalBytesSent uint64
	Codec          string
}
