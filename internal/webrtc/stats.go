package webrtc

import (
	"remoteplay/native/internal/domain"

	pion "github.com/pion/webrtc/v4"
)

func convertStats(report pion.StatsReport, cfg pion.Configuration) domain.StatsReport {
	out := domain.StatsReport{
		Candidates: make(map[string]domain.CandidateStats),
		Codecs:     make(map[string]string),
		Config: domain.RTCConfig{
			BundlePolicy:         cfg.BundlePolicy.String(),
			RTCPMuxPolicy:        cfg.RTCPMuxPolicy.String(),
			ICETransportPolicy:   cfg.ICETransportPolicy.String(),
			ICECandidatePoolSize: int(cfg.ICECandidatePoolSize),
		},
	}

	for _, s := range report {
		switch st := s.(type) {
		case pion.InboundRTPStreamStats:
			out.Inbound = append(out.Inbound, domain.InboundRTPStats{
				Kind:                     domain.MediaKind(st.Kind),
				Timestamp:                st.Timestamp.Time(),
				CodecID:                  st.CodecID,
				BytesReceived:            st.BytesReceived,
				PacketsReceived:          st.PacketsReceived,
				PacketsLost:              st.PacketsLost,
				Jitter:                   st.Jitter,
				JitterBufferDelay:        st.JitterBufferDelay,
				JitterBufferEmittedCount: st.JitterBufferEmittedCount,
				TotalSamplesReceived:     st.TotalSamplesReceived,
				FramesDecoded:            st.FramesDecoded,
				KeyFramesDecoded:         st.KeyFramesDecoded,
				FramesDropped:            st.FramesDropped,
				FrameWidth:               st.FrameWidth,
				FrameHeight:              st.FrameHeight,
				NACKCount:                st.NACKCount,
				PLICount:                 st.PLICount,
				FIRCount:                 st.FIRCount,
				QPSum:                    st.QPSum,
			})
		case pion.OutboundRTPStreamStats:
			out.Outbound = append(out.Outbound, domain.OutboundRTPStats{
				Kind:      domain.MediaKind(st.Kind),
				Timestamp: st.Timestamp.Time(),
				CodecID:   st.CodecID,
				BytesSent: st.BytesSent,
			})
		case pion.ICECandidatePairStats:
			out.Pairs = append(out.Pairs, domain.CandidatePairStats{
				LocalCandidateID:  st.LocalCandidateID,
				RemoteCandidateID: st.RemoteCandidateID,
				Nominated:         st.Nominated,
				Succeeded:         st.State == pion.StatsICECandidatePairStateSucceeded,
				CurrentRTT:        st.CurrentRoundTripTime,
			})
		case pion.ICECandidateStats:
			out.Candidates[st.ID] = domain.CandidateStats{
				Type:     st.CandidateType.String(),
				Protocol: st.Protocol,
			}
		case pion.CodecStats:
			out.Codecs[st.ID] = st.MimeType
		}
	}
	return out
}
