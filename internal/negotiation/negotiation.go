// Package negotiation implements the perfect-negotiation pattern for one
// peer link per pair of room members. The state machine is independent of
// both the signaling transport and the media stack: signaling goes out
// through a SendFunc and media operations go through the PeerConnector
// capability, so the collision and queueing rules are testable on their own.
package negotiation

import (
	"context"
	"encoding/json"
)

// State is the per-pair signaling state.
type State int

const (
	Idle State = iota
	HaveLocalOffer
	HaveRemoteOffer
	Stable
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case HaveLocalOffer:
		return "have-local-offer"
	case HaveRemoteOffer:
		return "have-remote-offer"
	case Stable:
		return "stable"
	}
	return "unknown"
}

// PeerConnector is the opaque peer-connection capability. Implementations
// wrap whatever media stack actually carries audio; descriptions and
// candidates pass through as raw JSON.
type PeerConnector interface {
	CreateOffer(ctx context.Context) (json.RawMessage, error)
	CreateAnswer(ctx context.Context) (json.RawMessage, error)
	SetLocalDescription(ctx context.Context, sdp json.RawMessage) error
	SetRemoteDescription(ctx context.Context, sdp json.RawMessage) error
	AddICECandidate(ctx context.Context, candidate json.RawMessage) error
	Close() error
}

// SendFunc delivers a signaling payload to the session's remote peer through
// the relay. eventType is one of the webrtc-* event types.
type SendFunc func(eventType string, payload json.RawMessage) error

// Polite reports whether the local side is the polite peer of the pair.
// Both sides compute this independently: the identity that sorts
// lexicographically lower yields during collisions.
func Polite(local, remote string) bool {
	return local < remote
}

// Initiates reports whether the local side originates the initial offer.
// Exactly one side of each pair does: the impolite one.
func Initiates(local, remote string) bool {
	return !Polite(local, remote)
}
