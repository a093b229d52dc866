package peer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pion/webrtc/v4"

	"github.com/s-uryansh/convoo/internal/negotiation"
)

// PionConnector implements the negotiation.PeerConnector capability on top
// of a pion PeerConnection carrying a single audio transceiver.
type PionConnector struct {
	pc *webrtc.PeerConnection
}

// NewPionConnector builds a peer connection with the given ICE
// configuration. Locally gathered candidates are handed to onCandidate as
// raw JSON, ready for the relay.
func NewPionConnector(cfg webrtc.Configuration, onCandidate func(candidate json.RawMessage)) (*PionConnector, error) {
	pc, err := webrtc.NewPeerConnection(cfg)
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}

	if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio); err != nil {
		pc.Close()
		return nil, fmt.Errorf("add audio transceiver: %w", err)
	}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		data, err := json.Marshal(c.ToJSON())
		if err != nil {
			return
		}
		onCandidate(data)
	})

	return &PionConnector{pc: pc}, nil
}

func (p *PionConnector) CreateOffer(_ context.Context) (json.RawMessage, error) {
	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return nil, err
	}
	return json.Marshal(offer)
}

func (p *PionConnector) CreateAnswer(_ context.Context) (json.RawMessage, error) {
	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return nil, err
	}
	return json.Marshal(answer)
}

func (p *PionConnector) SetLocalDescription(_ context.Context, sdp json.RawMessage) error {
	var desc webrtc.SessionDescription
	if err := json.Unmarshal(sdp, &desc); err != nil {
		return fmt.Errorf("decode local description: %w", err)
	}
	return p.pc.SetLocalDescription(desc)
}

func (p *PionConnector) SetRemoteDescription(_ context.Context, sdp json.RawMessage) error {
	var desc webrtc.SessionDescription
	if err := json.Unmarshal(sdp, &desc); err != nil {
		return fmt.Errorf("decode remote description: %w", err)
	}

	// Polite-side collision: abandon our in-flight offer before accepting
	// the remote one.
	if desc.Type == webrtc.SDPTypeOffer && p.pc.SignalingState() == webrtc.SignalingStateHaveLocalOffer {
		rollback := webrtc.SessionDescription{Type: webrtc.SDPTypeRollback}
		if err := p.pc.SetLocalDescription(rollback); err != nil {
			return fmt.Errorf("rollback local offer: %w", err)
		}
	}

	return p.pc.SetRemoteDescription(desc)
}

func (p *PionConnector) AddICECandidate(_ context.Context, candidate json.RawMessage) error {
	var init webrtc.ICECandidateInit
	if err := json.Unmarshal(candidate, &init); err != nil {
		return fmt.Errorf("decode candidate: %w", err)
	}
	return p.pc.AddICECandidate(init)
}

func (p *PionConnector) Close() error {
	return p.pc.Close()
}

var _ negotiation.PeerConnector = (*PionConnector)(nil)
