package negotiation

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s-uryansh/convoo/internal/domain"
)

type recordingSignaler struct {
	mu     sync.Mutex
	events []*domain.SignalEvent
}

func (r *recordingSignaler) SendSignal(event *domain.SignalEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingSignaler) byType(eventType string) []*domain.SignalEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.SignalEvent
	for _, e := range r.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

func newTestEngine(local string) (*Engine, *recordingSignaler, map[string]*fakeConnector) {
	signaler := &recordingSignaler{}
	connectors := make(map[string]*fakeConnector)
	var mu sync.Mutex

	factory := func(remote string) (PeerConnector, error) {
		pc := &fakeConnector{}
		mu.Lock()
		connectors[remote] = pc
		mu.Unlock()
		return pc, nil
	}

	return NewEngine(local, factory, signaler), signaler, connectors
}

func TestEngineCreatesSessionPerOtherMember(t *testing.T) {
	ctx := context.Background()
	e, _, connectors := newTestEngine("bob")
	defer e.Close()

	e.HandleMembers(ctx, []string{"alice", "bob", "carol"})

	assert.Len(t, connectors, 2)
	assert.NotNil(t, e.Session("alice"))
	assert.NotNil(t, e.Session("carol"))
	assert.Nil(t, e.Session("bob"), "no session with oneself")
}

func TestEngineOffersOnlyToPeersItIsImpoliteTowards(t *testing.T) {
	ctx := context.Background()
	e, signaler, _ := newTestEngine("bob")
	defer e.Close()

	// bob > alice: bob initiates toward alice. bob < carol: carol will
	// initiate, bob waits.
	e.HandleMembers(ctx, []string{"alice", "bob", "carol"})

	offers := signaler.byType(domain.EventOffer)
	require.Len(t, offers, 1)
	assert.Equal(t, "alice", offers[0].To)
}

func TestEngineRepeatSnapshotIsStable(t *testing.T) {
	ctx := context.Background()
	e, signaler, connectors := newTestEngine("bob")
	defer e.Close()

	e.HandleMembers(ctx, []string{"alice", "bob"})
	e.HandleMembers(ctx, []string{"alice", "bob"})

	assert.Len(t, connectors, 1, "no duplicate sessions for an unchanged roster")
	assert.Len(t, signaler.byType(domain.EventOffer), 1, "no re-offer for an unchanged roster")
}

func TestEngineTearsDownDepartedPeers(t *testing.T) {
	ctx := context.Background()
	e, _, connectors := newTestEngine("bob")
	defer e.Close()

	e.HandleMembers(ctx, []string{"alice", "bob"})
	require.NotNil(t, e.Session("alice"))

	e.HandleMembers(ctx, []string{"bob"})
	assert.Nil(t, e.Session("alice"))
	assert.True(t, connectors["alice"].closed)

	// Signaling from the departed peer is dropped, not processed.
	e.HandleSignal(ctx, &domain.SignalEvent{
		Type: domain.EventOffer,
		From: "alice",
		SDP:  json.RawMessage(`{"type":"offer","sdp":"o"}`),
	})
	assert.Nil(t, e.Session("alice"))
}

func TestEngineRoutesSignalsToOwningSession(t *testing.T) {
	ctx := context.Background()
	e, signaler, connectors := newTestEngine("alice")
	defer e.Close()

	// alice is polite toward bob, so she has a session but no offer in flight.
	e.HandleMembers(ctx, []string{"alice", "bob"})
	require.Empty(t, signaler.byType(domain.EventOffer))

	e.HandleSignal(ctx, &domain.SignalEvent{
		Type: domain.EventOffer,
		From: "bob",
		SDP:  json.RawMessage(`{"type":"offer","sdp":"o"}`),
	})

	answers := signaler.byType(domain.EventAnswer)
	require.Len(t, answers, 1)
	assert.Equal(t, "bob", answers[0].To)
	assert.Equal(t, Stable, e.Session("bob").State())

	e.HandleSignal(ctx, &domain.SignalEvent{
		Type:      domain.EventCandidate,
		From:      "bob",
		Candidate: json.RawMessage(`"cand"`),
	})
	assert.Equal(t, []string{`"cand"`}, connectors["bob"].candidates)
}
