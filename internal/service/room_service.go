package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/s-uryansh/convoo/internal/domain"
	"github.com/s-uryansh/convoo/internal/hub"
	"github.com/s-uryansh/convoo/internal/log"
	"github.com/s-uryansh/convoo/internal/reaper"
	"github.com/s-uryansh/convoo/internal/repository"
	"github.com/s-uryansh/convoo/internal/throttle"
)

type roomService struct {
	hub          *hub.Hub
	messages     repository.MessageRepository
	throttle     throttle.Store
	reaper       *reaper.Reaper
	historyLimit int
}

// NewRoomService wires the hub, message store, throttle and reaper together.
// The reaper is driven by the hub's room transitions so cancel/arm happen in
// the same critical section as the membership change.
func NewRoomService(
	h *hub.Hub,
	messages repository.MessageRepository,
	th throttle.Store,
	rp *reaper.Reaper,
	historyLimit int,
) RoomService {
	s := &roomService{
		hub:          h,
		messages:     messages,
		throttle:     th,
		reaper:       rp,
		historyLimit: historyLimit,
	}

	h.OnRoomOccupied(rp.Cancel)
	h.OnRoomEmptied(rp.Arm)

	return s
}

func (s *roomService) HandleJoin(ctx context.Context, c *hub.Client) error {
	l := log.Ctx(ctx)

	allowed, err := s.throttle.Attempt(ctx, c.RoomID, c.Username)
	if err != nil {
		// A broken throttle store must not block admission.
		l.Error().Err(err).Str(log.FieldRoomID, c.RoomID).Msg("throttle store failed, allowing join")
		allowed = true
	}
	if !allowed {
		return ErrThrottled
	}

	if err := s.hub.Join(c); err != nil {
		return err
	}

	// Presence first, then history to the newcomer only. Mirrors the order
	// existing members observe: a joined notification, then the new roster.
	s.hub.BroadcastToRoom(c.RoomID, &domain.PresenceEvent{
		Type:     domain.EventUserJoined,
		Username: c.Username,
	}, c.ID)
	s.broadcastMembers(c.RoomID)

	history, err := s.messages.RecentAscending(ctx, c.RoomID, s.historyLimit)
	if err != nil {
		// History is best-effort; admission already happened.
		l.Error().Err(err).Str(log.FieldRoomID, c.RoomID).Msg("history fetch failed, delivering empty history")
		history = nil
	}
	if history == nil {
		history = []domain.Message{}
	}
	return c.SendMessage(&domain.HistoryEvent{
		Type:     domain.EventHistory,
		Messages: history,
	})
}

func (s *roomService) HandleChatMessage(ctx context.Context, c *hub.Client, text string) error {
	msg := &domain.Message{
		ID:     uuid.New().String(),
		RoomID: c.RoomID,
		Sender: c.Username,
		Text:   text,
		SentAt: time.Now().UTC(),
	}

	if err := s.messages.Insert(ctx, msg); err != nil {
		// No broadcast for a message we could not store; the client treats
		// the missing echo as a transient failure and may retry.
		return err
	}

	s.trim(ctx, c.RoomID)

	// Everyone gets the stored message, the sender included: clients render
	// the broadcast rather than echoing locally.
	return s.hub.BroadcastToRoom(c.RoomID, &domain.MessageEvent{
		Type:    domain.EventMessage,
		Message: *msg,
	}, "")
}

// trim converges the room's stored history back to the retention window.
// Concurrent sends may interleave their trims; each pass deletes whatever
// excess it observes, so the window holds once the last one finishes.
func (s *roomService) trim(ctx context.Context, roomID string) {
	l := log.Ctx(ctx)

	count, err := s.messages.Count(ctx, roomID)
	if err != nil || count <= s.historyLimit {
		return
	}

	ids, err := s.messages.OldestIDs(ctx, roomID, count-s.historyLimit)
	if err != nil {
		return
	}
	if err := s.messages.DeleteByIDs(ctx, ids); err != nil {
		l.Error().Err(err).Str(log.FieldRoomID, roomID).Msg("history trim failed")
	}
}

func (s *roomService) HandleSignal(ctx context.Context, c *hub.Client, event *domain.SignalEvent) error {
	if event.To == "" || event.To == c.Username {
		return nil
	}

	// The relay is a dumb forwarder: rewrite the address and pass the
	// payload through untouched.
	out := &domain.SignalEvent{
		Type:      event.Type,
		From:      c.Username,
		SDP:       event.SDP,
		Candidate: event.Candidate,
	}

	delivered, err := s.hub.SendTo(c.RoomID, event.To, out)
	if err != nil {
		return err
	}
	if !delivered {
		// Target already left; negotiation messages for departed peers are
		// dropped, not queued.
		log.Ctx(ctx).Debug().
			Str(log.FieldRoomID, c.RoomID).
			Str(log.FieldPeer, event.To).
			Str("event", event.Type).
			Msg("dropped signal for absent peer")
	}
	return nil
}

func (s *roomService) HandleDisconnect(ctx context.Context, c *hub.Client) error {
	s.hub.Leave(c)

	if s.hub.MemberCount(c.RoomID) > 0 {
		s.hub.BroadcastToRoom(c.RoomID, &domain.PresenceEvent{
			Type:     domain.EventUserLeft,
			Username: c.Username,
		}, "")
		s.broadcastMembers(c.RoomID)
	}
	return nil
}

func (s *roomService) broadcastMembers(roomID string) {
	s.hub.BroadcastToRoom(roomID, &domain.MembersEvent{
		Type:    domain.EventMembers,
		Members: s.hub.Members(roomID),
	}, "")
}

func (s *roomService) Close() {
	s.throttle.Close()
	s.reaper.Close()
}
