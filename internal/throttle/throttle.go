// Package throttle enforces a per (room, identity) rejoin cooldown so a
// disconnect followed by an immediate reconnect cannot oscillate room
// membership.
package throttle

import "context"

// Store tracks cooldown windows. Attempt reports whether a join for the pair
// is currently allowed; an allowed attempt arms the cooldown, and further
// attempts for the same pair are denied until it expires. The cooldown is
// independent of membership state on purpose: it keeps running across a
// normal disconnect.
type Store interface {
	Attempt(ctx context.Context, roomID, username string) (bool, error)
	Close()
}
