package throttle

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is the in-process Store implementation backed by
// cancellable timers.
type MemoryStore struct {
	cooldown time.Duration

	mu     sync.Mutex
	timers map[string]*time.Timer
	closed bool
}

// NewMemoryStore creates a MemoryStore with the given cooldown window.
func NewMemoryStore(cooldown time.Duration) *MemoryStore {
	return &MemoryStore{
		cooldown: cooldown,
		timers:   make(map[string]*time.Timer),
	}
}

func pairKey(roomID, username string) string {
	return roomID + "/" + username
}

// Attempt reports whether the pair may join and, if so, arms its cooldown.
func (s *MemoryStore) Attempt(_ context.Context, roomID, username string) (bool, error) {
	key := pairKey(roomID, username)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return true, nil
	}
	if _, armed := s.timers[key]; armed {
		return false, nil
	}

	s.timers[key] = time.AfterFunc(s.cooldown, func() {
		s.mu.Lock()
		delete(s.timers, key)
		s.mu.Unlock()
	})
	return true, nil
}

// Close stops all armed timers. Attempts after Close are always allowed.
func (s *MemoryStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	for key, t := range s.timers {
		t.Stop()
		delete(s.timers, key)
	}
}
