package domain

import "encoding/json"

// Event types exchanged over the room channel.
const (
	// client -> server
	EventMessage = "message" // also server -> client with the stored message

	// server -> client
	EventHistory    = "history"
	EventMembers    = "members"
	EventUserJoined = "user-joined"
	EventUserLeft   = "user-left"

	// admission rejections; the server closes the connection right after
	EventRoomFull          = "room-full"
	EventDuplicateUsername = "duplicate-username"
	EventRapidReconnection = "rapid-reconnection"

	// negotiation relay, both directions
	EventOffer     = "webrtc-offer"
	EventAnswer    = "webrtc-answer"
	EventCandidate = "webrtc-candidate"
)

// BaseEvent is the envelope all events share.
type BaseEvent struct {
	Type string `json:"type"`
}

// Client -> Server

type ChatSendEvent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Server -> Client

type HistoryEvent struct {
	Type     string    `json:"type"`
	Messages []Message `json:"messages"`
}

type MessageEvent struct {
	Type    string  `json:"type"`
	Message Message `json:"message"`
}

type MembersEvent struct {
	Type    string   `json:"type"`
	Members []string `json:"members"`
}

type PresenceEvent struct {
	Type     string `json:"type"`
	Username string `json:"username"`
}

type RejectEvent struct {
	Type string `json:"type"`
}

// SignalEvent carries offer/answer/candidate payloads between peers.
// A client addresses the counterpart with To; the relay rewrites it to From
// before delivery so the receiver knows who it came from.
type SignalEvent struct {
	Type      string          `json:"type"`
	To        string          `json:"to,omitempty"`
	From      string          `json:"from,omitempty"`
	SDP       json.RawMessage `json:"sdp,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

func NewRejectEvent(eventType string) *RejectEvent {
	return &RejectEvent{Type: eventType}
}
