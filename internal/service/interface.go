package service

import (
	"context"
	"errors"

	"github.com/s-uryansh/convoo/internal/domain"
	"github.com/s-uryansh/convoo/internal/hub"
)

// ErrThrottled rejects a join attempt made while the (room, identity)
// reconnection cooldown is still armed.
var ErrThrottled = errors.New("rapid reconnection throttled")

// RoomService coordinates admission, chat relay, and the negotiation relay
// for one coordinator process.
type RoomService interface {
	// HandleJoin admits the client or returns hub.ErrDuplicateIdentity,
	// hub.ErrRoomFull, or ErrThrottled. On success it delivers history to the
	// new client and presence updates to the room.
	HandleJoin(ctx context.Context, c *hub.Client) error
	HandleChatMessage(ctx context.Context, c *hub.Client, text string) error
	HandleSignal(ctx context.Context, c *hub.Client, event *domain.SignalEvent) error
	HandleDisconnect(ctx context.Context, c *hub.Client) error
	Close()
}
