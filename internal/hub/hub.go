package hub

import (
	"encoding/json"
	"errors"
	"sort"
	"sync"

	"github.com/s-uryansh/convoo/internal/log"
)

// Admission errors, checked in this order by Join.
var (
	ErrDuplicateIdentity = errors.New("identity already present in room")
	ErrRoomFull          = errors.New("room is full")
)

// TransitionHook is invoked under the hub's critical section when a room
// transitions between empty and occupied, so reaper arm/cancel cannot race
// with membership changes.
type TransitionHook func(roomID string)

// Hub owns the connection registry and the room membership table. Rooms are
// created lazily on first join and removed the instant their member set
// becomes empty.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client            // connID -> client
	rooms   map[string]map[string]*Client // roomID -> username -> client

	capacity int

	onOccupied TransitionHook // room went 0 -> 1 members
	onEmptied  TransitionHook // room went 1 -> 0 members
}

// NewHub creates a Hub enforcing the given room capacity.
func NewHub(capacity int) *Hub {
	return &Hub{
		clients:  make(map[string]*Client),
		rooms:    make(map[string]map[string]*Client),
		capacity: capacity,
	}
}

// OnRoomOccupied registers the hook called when a room gains its first member.
func (h *Hub) OnRoomOccupied(hook TransitionHook) { h.onOccupied = hook }

// OnRoomEmptied registers the hook called when a room loses its last member.
func (h *Hub) OnRoomEmptied(hook TransitionHook) { h.onEmptied = hook }

// Join admits the client into its room, or reports why it cannot:
// duplicate identity first, capacity second. On success the connection is
// registered and the empty->occupied hook runs before the lock is released.
func (h *Hub) Join(c *Client) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	room := h.rooms[c.RoomID]
	if room != nil {
		if _, taken := room[c.Username]; taken {
			return ErrDuplicateIdentity
		}
		if len(room) >= h.capacity {
			return ErrRoomFull
		}
	}

	if room == nil {
		room = make(map[string]*Client)
		h.rooms[c.RoomID] = room
	}

	room[c.Username] = c
	h.clients[c.ID] = c

	if len(room) == 1 && h.onOccupied != nil {
		h.onOccupied(c.RoomID)
	}

	log.L().Info().
		Str(log.FieldConnID, c.ID).
		Str(log.FieldRoomID, c.RoomID).
		Str(log.FieldUsername, c.Username).
		Int("members", len(room)).
		Msg("client joined room")
	return nil
}

// Leave removes the client from its room and the registry. Idempotent; a
// client that never joined (or already left) is a no-op. If the room becomes
// empty the occupied->empty hook runs before the lock is released.
func (h *Hub) Leave(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, registered := h.clients[c.ID]; !registered {
		return
	}
	delete(h.clients, c.ID)
	close(c.Send)

	room := h.rooms[c.RoomID]
	if room == nil {
		return
	}
	if member, ok := room[c.Username]; !ok || member.ID != c.ID {
		return
	}
	delete(room, c.Username)

	if len(room) == 0 {
		delete(h.rooms, c.RoomID)
		if h.onEmptied != nil {
			h.onEmptied(c.RoomID)
		}
	}

	log.L().Info().
		Str(log.FieldConnID, c.ID).
		Str(log.FieldRoomID, c.RoomID).
		Str(log.FieldUsername, c.Username).
		Int("members", len(room)).
		Msg("client left room")
}

// Members returns a self-consistent, sorted snapshot of a room's identities.
func (h *Hub) Members(roomID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	room := h.rooms[roomID]
	members := make([]string, 0, len(room))
	for username := range room {
		members = append(members, username)
	}
	sort.Strings(members)
	return members
}

// MemberCount returns the current size of a room's member set.
func (h *Hub) MemberCount(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// BroadcastToRoom marshals the message once and enqueues it to every member
// of the room, minus the excluded connection ID (empty string excludes noone).
func (h *Hub) BroadcastToRoom(roomID string, message interface{}, exclude string) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, member := range h.rooms[roomID] {
		if member.ID == exclude {
			continue
		}
		select {
		case member.Send <- data:
		default:
		}
	}
	return nil
}

// SendTo delivers a message to a single identity in a room. It reports
// whether the identity was present.
func (h *Hub) SendTo(roomID, username string, message interface{}) (bool, error) {
	data, err := json.Marshal(message)
	if err != nil {
		return false, err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	member, ok := h.rooms[roomID][username]
	if !ok {
		return false, nil
	}
	select {
	case member.Send <- data:
	default:
	}
	return true, nil
}
