package negotiation

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/s-uryansh/convoo/internal/domain"
	"github.com/s-uryansh/convoo/internal/log"
)

// ConnectorFactory builds the peer-connection capability for one remote peer.
type ConnectorFactory func(remote string) (PeerConnector, error)

// Signaler delivers addressed signaling events to the relay.
type Signaler interface {
	SendSignal(event *domain.SignalEvent) error
}

// Engine owns this participant's negotiation sessions, one per other room
// member. Membership snapshots drive session creation and teardown;
// incoming relay events are dispatched to the owning session.
type Engine struct {
	local   string
	factory ConnectorFactory
	signal  Signaler

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewEngine creates an engine for the local identity.
func NewEngine(local string, factory ConnectorFactory, signal Signaler) *Engine {
	return &Engine{
		local:    local,
		factory:  factory,
		signal:   signal,
		sessions: make(map[string]*Session),
	}
}

// HandleMembers reconciles the session set against a fresh membership
// snapshot: a session per newly observed member, teardown for members no
// longer present.
func (e *Engine) HandleMembers(ctx context.Context, members []string) {
	present := make(map[string]bool, len(members))
	for _, m := range members {
		present[m] = true
	}

	var started []*Session

	e.mu.Lock()
	for remote, sess := range e.sessions {
		if !present[remote] {
			delete(e.sessions, remote)
			sess.Close()
			log.L().Info().Str(log.FieldPeer, remote).Msg("peer left, session closed")
		}
	}
	for _, remote := range members {
		if remote == e.local {
			continue
		}
		if _, exists := e.sessions[remote]; exists {
			continue
		}

		pc, err := e.factory(remote)
		if err != nil {
			log.L().Error().Err(err).Str(log.FieldPeer, remote).Msg("failed to create peer connection")
			continue
		}

		sess := NewSession(e.local, remote, pc, e.sendFunc(remote))
		e.sessions[remote] = sess
		started = append(started, sess)
	}
	e.mu.Unlock()

	for _, sess := range started {
		if err := sess.Start(ctx); err != nil {
			log.L().Error().Err(err).Str(log.FieldPeer, sess.remote).Msg("failed to start negotiation")
		}
	}
}

// HandleSignal routes a relayed offer/answer/candidate to the session for
// its sender. Events from peers without a session (already departed) are
// dropped.
func (e *Engine) HandleSignal(ctx context.Context, event *domain.SignalEvent) {
	e.mu.Lock()
	sess, ok := e.sessions[event.From]
	e.mu.Unlock()
	if !ok {
		log.L().Debug().Str(log.FieldPeer, event.From).Str("event", event.Type).Msg("signal from unknown peer dropped")
		return
	}

	var err error
	switch event.Type {
	case domain.EventOffer:
		err = sess.HandleOffer(ctx, event.SDP)
	case domain.EventAnswer:
		err = sess.HandleAnswer(ctx, event.SDP)
	case domain.EventCandidate:
		err = sess.HandleCandidate(ctx, event.Candidate)
	}
	if err != nil {
		log.L().Error().Err(err).Str(log.FieldPeer, event.From).Str("event", event.Type).Msg("negotiation step failed")
	}
}

// Session returns the session for a remote peer, if any. Used by tests and
// by the peer runtime for state inspection.
func (e *Engine) Session(remote string) *Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sessions[remote]
}

// Close tears down every session.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for remote, sess := range e.sessions {
		sess.Close()
		delete(e.sessions, remote)
	}
}

func (e *Engine) sendFunc(remote string) SendFunc {
	return func(eventType string, payload json.RawMessage) error {
		event := &domain.SignalEvent{
			Type: eventType,
			To:   remote,
		}
		switch eventType {
		case domain.EventCandidate:
			event.Candidate = payload
		default:
			event.SDP = payload
		}
		return e.signal.SendSignal(event)
	}
}
