package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s-uryansh/convoo/internal/domain"
	"github.com/s-uryansh/convoo/internal/hub"
	"github.com/s-uryansh/convoo/internal/reaper"
	"github.com/s-uryansh/convoo/internal/throttle"
)

// memMessageRepo is an in-memory MessageRepository keeping insertion order.
type memMessageRepo struct {
	mu         sync.Mutex
	msgs       []domain.Message
	failInsert bool
	failFetch  bool
}

func (r *memMessageRepo) Insert(_ context.Context, msg *domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failInsert {
		return errors.New("insert failed")
	}
	r.msgs = append(r.msgs, *msg)
	return nil
}

func (r *memMessageRepo) RecentAscending(_ context.Context, roomID string, limit int) ([]domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failFetch {
		return nil, errors.New("fetch failed")
	}
	var all []domain.Message
	for _, m := range r.msgs {
		if m.RoomID == roomID {
			all = append(all, m)
		}
	}
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}

func (r *memMessageRepo) Count(_ context.Context, roomID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, m := range r.msgs {
		if m.RoomID == roomID {
			n++
		}
	}
	return n, nil
}

func (r *memMessageRepo) OldestIDs(_ context.Context, roomID string, n int) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for _, m := range r.msgs {
		if m.RoomID == roomID && len(ids) < n {
			ids = append(ids, m.ID)
		}
	}
	return ids, nil
}

func (r *memMessageRepo) DeleteByIDs(_ context.Context, ids []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	kept := r.msgs[:0]
	for _, m := range r.msgs {
		if !drop[m.ID] {
			kept = append(kept, m)
		}
	}
	r.msgs = kept
	return nil
}

func (r *memMessageRepo) DeleteRoom(_ context.Context, roomID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.msgs[:0]
	for _, m := range r.msgs {
		if m.RoomID != roomID {
			kept = append(kept, m)
		}
	}
	r.msgs = kept
	return nil
}

func (r *memMessageRepo) stored(roomID string) []domain.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Message
	for _, m := range r.msgs {
		if m.RoomID == roomID {
			out = append(out, m)
		}
	}
	return out
}

type fixture struct {
	hub    *hub.Hub
	repo   *memMessageRepo
	reaper *reaper.Reaper
	svc    RoomService
}

func newFixture(t *testing.T, cooldown, emptyTTL time.Duration) *fixture {
	t.Helper()
	repo := &memMessageRepo{}
	rp := reaper.New(emptyTTL, repo.DeleteRoom)
	h := hub.NewHub(5)
	svc := NewRoomService(h, repo, throttle.NewMemoryStore(cooldown), rp, 15)
	t.Cleanup(svc.Close)
	return &fixture{hub: h, repo: repo, reaper: rp, svc: svc}
}

func newTestClient(id, roomID, username string) *hub.Client {
	return &hub.Client{
		ID:       id,
		RoomID:   roomID,
		Username: username,
		Send:     make(chan []byte, 256),
	}
}

type event struct {
	Type     string           `json:"type"`
	Username string           `json:"username"`
	Members  []string         `json:"members"`
	Messages []domain.Message `json:"messages"`
	Message  *domain.Message  `json:"message"`
	From     string           `json:"from"`
	SDP      json.RawMessage  `json:"sdp"`
}

func drain(t *testing.T, c *hub.Client) []event {
	t.Helper()
	var events []event
	for {
		select {
		case raw, ok := <-c.Send:
			if !ok {
				return events
			}
			var e event
			require.NoError(t, json.Unmarshal(raw, &e))
			events = append(events, e)
		default:
			return events
		}
	}
}

func TestJoinDeliversRosterThenHistory(t *testing.T) {
	f := newFixture(t, time.Millisecond, time.Hour)
	ctx := context.Background()

	alice := newTestClient("c1", "r1", "alice")
	require.NoError(t, f.svc.HandleJoin(ctx, alice))

	events := drain(t, alice)
	require.Len(t, events, 2)
	assert.Equal(t, domain.EventMembers, events[0].Type)
	assert.Equal(t, []string{"alice"}, events[0].Members)
	assert.Equal(t, domain.EventHistory, events[1].Type)
	assert.Empty(t, events[1].Messages)

	bob := newTestClient("c2", "r1", "bob")
	require.NoError(t, f.svc.HandleJoin(ctx, bob))

	aliceEvents := drain(t, alice)
	require.Len(t, aliceEvents, 2)
	assert.Equal(t, domain.EventUserJoined, aliceEvents[0].Type)
	assert.Equal(t, "bob", aliceEvents[0].Username)
	assert.Equal(t, []string{"alice", "bob"}, aliceEvents[1].Members)

	bobEvents := drain(t, bob)
	require.Len(t, bobEvents, 2, "the joiner gets the roster and history but not its own joined notification")
	assert.Equal(t, domain.EventMembers, bobEvents[0].Type)
	assert.Equal(t, domain.EventHistory, bobEvents[1].Type)
}

func TestAdmissionErrors(t *testing.T) {
	f := newFixture(t, time.Millisecond, time.Hour)
	ctx := context.Background()

	require.NoError(t, f.svc.HandleJoin(ctx, newTestClient("c1", "r1", "alice")))
	time.Sleep(5 * time.Millisecond)

	err := f.svc.HandleJoin(ctx, newTestClient("c2", "r1", "alice"))
	assert.ErrorIs(t, err, hub.ErrDuplicateIdentity)

	for i := 0; i < 4; i++ {
		name := fmt.Sprintf("user%d", i)
		require.NoError(t, f.svc.HandleJoin(ctx, newTestClient("c"+name, "r1", name)))
	}
	err = f.svc.HandleJoin(ctx, newTestClient("c9", "r1", "late"))
	assert.ErrorIs(t, err, hub.ErrRoomFull)

	// A rejected join must not alter membership.
	assert.Len(t, f.hub.Members("r1"), 5)
}

func TestThrottledRejoin(t *testing.T) {
	f := newFixture(t, 50*time.Millisecond, time.Hour)
	ctx := context.Background()

	alice := newTestClient("c1", "r1", "alice")
	require.NoError(t, f.svc.HandleJoin(ctx, alice))
	require.NoError(t, f.svc.HandleDisconnect(ctx, alice))

	err := f.svc.HandleJoin(ctx, newTestClient("c2", "r1", "alice"))
	assert.ErrorIs(t, err, ErrThrottled)

	time.Sleep(100 * time.Millisecond)

	require.NoError(t, f.svc.HandleJoin(ctx, newTestClient("c3", "r1", "alice")))
}

func TestRetentionWindowConverges(t *testing.T) {
	f := newFixture(t, time.Millisecond, time.Hour)
	ctx := context.Background()

	alice := newTestClient("c1", "r1", "alice")
	require.NoError(t, f.svc.HandleJoin(ctx, alice))

	for i := 0; i < 30; i++ {
		require.NoError(t, f.svc.HandleChatMessage(ctx, alice, fmt.Sprintf("msg-%d", i)))
	}

	stored := f.repo.stored("r1")
	require.Len(t, stored, 15)
	for i, m := range stored {
		assert.Equal(t, fmt.Sprintf("msg-%d", i+15), m.Text, "only the most recent 15 survive, in order")
	}
}

func TestMessageBroadcastIncludesSender(t *testing.T) {
	f := newFixture(t, time.Millisecond, time.Hour)
	ctx := context.Background()

	alice := newTestClient("c1", "r1", "alice")
	bob := newTestClient("c2", "r1", "bob")
	require.NoError(t, f.svc.HandleJoin(ctx, alice))
	require.NoError(t, f.svc.HandleJoin(ctx, bob))
	drain(t, alice)
	drain(t, bob)

	require.NoError(t, f.svc.HandleChatMessage(ctx, alice, "hi"))

	for _, c := range []*hub.Client{alice, bob} {
		events := drain(t, c)
		require.Len(t, events, 1)
		require.NotNil(t, events[0].Message)
		assert.Equal(t, "alice", events[0].Message.Sender)
		assert.Equal(t, "hi", events[0].Message.Text)
	}
}

func TestPersistFailureSkipsBroadcast(t *testing.T) {
	f := newFixture(t, time.Millisecond, time.Hour)
	ctx := context.Background()

	alice := newTestClient("c1", "r1", "alice")
	require.NoError(t, f.svc.HandleJoin(ctx, alice))
	drain(t, alice)

	f.repo.failInsert = true
	err := f.svc.HandleChatMessage(ctx, alice, "lost")
	assert.Error(t, err)
	assert.Empty(t, drain(t, alice), "no broadcast for a message that was not stored")
}

func TestHistoryFetchFailureDeliversEmptyHistory(t *testing.T) {
	f := newFixture(t, time.Millisecond, time.Hour)
	ctx := context.Background()

	f.repo.failFetch = true
	alice := newTestClient("c1", "r1", "alice")
	require.NoError(t, f.svc.HandleJoin(ctx, alice), "history failure must not block admission")

	events := drain(t, alice)
	require.Len(t, events, 2)
	assert.Equal(t, domain.EventHistory, events[1].Type)
	assert.Empty(t, events[1].Messages)
}

func TestSignalRelayRewritesAddress(t *testing.T) {
	f := newFixture(t, time.Millisecond, time.Hour)
	ctx := context.Background()

	alice := newTestClient("c1", "r1", "alice")
	bob := newTestClient("c2", "r1", "bob")
	require.NoError(t, f.svc.HandleJoin(ctx, alice))
	require.NoError(t, f.svc.HandleJoin(ctx, bob))
	drain(t, alice)
	drain(t, bob)

	require.NoError(t, f.svc.HandleSignal(ctx, bob, &domain.SignalEvent{
		Type: domain.EventOffer,
		To:   "alice",
		SDP:  json.RawMessage(`{"type":"offer","sdp":"o"}`),
	}))

	events := drain(t, alice)
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventOffer, events[0].Type)
	assert.Equal(t, "bob", events[0].From)
	assert.JSONEq(t, `{"type":"offer","sdp":"o"}`, string(events[0].SDP))
	assert.Empty(t, drain(t, bob), "nothing echoes back to the signal sender")

	// Signals for absent peers are dropped silently.
	require.NoError(t, f.svc.HandleSignal(ctx, bob, &domain.SignalEvent{
		Type: domain.EventCandidate,
		To:   "ghost",
	}))
}

func TestReaperCancelledByRejoin(t *testing.T) {
	f := newFixture(t, time.Millisecond, 40*time.Millisecond)
	ctx := context.Background()

	alice := newTestClient("c1", "r1", "alice")
	require.NoError(t, f.svc.HandleJoin(ctx, alice))
	require.NoError(t, f.svc.HandleChatMessage(ctx, alice, "keep me"))
	require.NoError(t, f.svc.HandleDisconnect(ctx, alice))
	require.True(t, f.reaper.Armed("r1"))

	// Rejoin before the TTL cancels the pending purge.
	time.Sleep(5 * time.Millisecond)
	rejoined := newTestClient("c2", "r1", "alice")
	require.NoError(t, f.svc.HandleJoin(ctx, rejoined))
	assert.False(t, f.reaper.Armed("r1"))

	time.Sleep(80 * time.Millisecond)
	assert.Len(t, f.repo.stored("r1"), 1, "messages survive a cancelled reaper")
}

func TestEndToEndScenario(t *testing.T) {
	f := newFixture(t, time.Millisecond, 40*time.Millisecond)
	ctx := context.Background()

	// alice joins: empty history, roster of one.
	alice := newTestClient("c1", "r1", "alice")
	require.NoError(t, f.svc.HandleJoin(ctx, alice))
	events := drain(t, alice)
	require.Len(t, events, 2)
	assert.Equal(t, []string{"alice"}, events[0].Members)
	assert.Empty(t, events[1].Messages)

	// bob joins: both see the new roster, alice sees user-joined.
	bob := newTestClient("c2", "r1", "bob")
	require.NoError(t, f.svc.HandleJoin(ctx, bob))
	aliceEvents := drain(t, alice)
	assert.Equal(t, domain.EventUserJoined, aliceEvents[0].Type)
	assert.Equal(t, "bob", aliceEvents[0].Username)
	assert.Equal(t, []string{"alice", "bob"}, aliceEvents[1].Members)
	drain(t, bob)

	// alice sends "hi": both receive it.
	require.NoError(t, f.svc.HandleChatMessage(ctx, alice, "hi"))
	for _, c := range []*hub.Client{alice, bob} {
		events := drain(t, c)
		require.Len(t, events, 1)
		assert.Equal(t, "alice", events[0].Message.Sender)
		assert.Equal(t, "hi", events[0].Message.Text)
	}

	// bob disconnects: alice sees user-left and the shrunken roster.
	require.NoError(t, f.svc.HandleDisconnect(ctx, bob))
	aliceEvents = drain(t, alice)
	require.Len(t, aliceEvents, 2)
	assert.Equal(t, domain.EventUserLeft, aliceEvents[0].Type)
	assert.Equal(t, "bob", aliceEvents[0].Username)
	assert.Equal(t, []string{"alice"}, aliceEvents[1].Members)

	// alice disconnects: the room empties and the reaper takes over.
	require.NoError(t, f.svc.HandleDisconnect(ctx, alice))
	assert.Empty(t, f.hub.Members("r1"))
	require.True(t, f.reaper.Armed("r1"))

	time.Sleep(80 * time.Millisecond)
	assert.Empty(t, f.repo.stored("r1"), "messages purged after the idle TTL")
}
