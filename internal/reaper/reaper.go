// Package reaper purges the persisted history of abandoned rooms after a
// fixed idle TTL.
package reaper

import (
	"context"
	"sync"
	"time"

	"github.com/s-uryansh/convoo/internal/log"
)

// PurgeFunc deletes all persisted messages of a room.
type PurgeFunc func(ctx context.Context, roomID string) error

// Reaper schedules at most one deferred purge per room. Arm on an already
// armed room is a no-op; Cancel is idempotent and race-free with respect to
// firing: a timer that fires after a concurrent Cancel finds its entry gone
// and does nothing.
type Reaper struct {
	ttl   time.Duration
	purge PurgeFunc

	mu     sync.Mutex
	timers map[string]*time.Timer
	closed bool
}

// New creates a Reaper with the given idle TTL.
func New(ttl time.Duration, purge PurgeFunc) *Reaper {
	return &Reaper{
		ttl:    ttl,
		purge:  purge,
		timers: make(map[string]*time.Timer),
	}
}

// Arm schedules the purge for roomID after the TTL, unless one is already
// pending.
func (r *Reaper) Arm(roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	if _, armed := r.timers[roomID]; armed {
		return
	}

	r.timers[roomID] = time.AfterFunc(r.ttl, func() {
		r.fire(roomID)
	})
	log.L().Debug().Str(log.FieldRoomID, roomID).Dur("ttl", r.ttl).Msg("empty-room reaper armed")
}

// Cancel drops any pending purge for roomID.
func (r *Reaper) Cancel(roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t, armed := r.timers[roomID]; armed {
		t.Stop()
		delete(r.timers, roomID)
		log.L().Debug().Str(log.FieldRoomID, roomID).Msg("empty-room reaper cancelled")
	}
}

// Armed reports whether a purge is pending for roomID.
func (r *Reaper) Armed(roomID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, armed := r.timers[roomID]
	return armed
}

// Close stops every pending timer.
func (r *Reaper) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	for roomID, t := range r.timers {
		t.Stop()
		delete(r.timers, roomID)
	}
}

func (r *Reaper) fire(roomID string) {
	r.mu.Lock()
	if _, armed := r.timers[roomID]; !armed {
		// Cancelled while the callback was already scheduled.
		r.mu.Unlock()
		return
	}
	delete(r.timers, roomID)
	r.mu.Unlock()

	if err := r.purge(context.Background(), roomID); err != nil {
		log.L().Error().Err(err).Str(log.FieldRoomID, roomID).Msg("failed to purge abandoned room")
		return
	}
	log.L().Info().Str(log.FieldRoomID, roomID).Msg("abandoned room purged")
}
