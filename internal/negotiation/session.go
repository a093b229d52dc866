package negotiation

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/s-uryansh/convoo/internal/domain"
	"github.com/s-uryansh/convoo/internal/log"
)

const defaultAnswerRetryDelay = 100 * time.Millisecond

// Session is the negotiation state machine for one (local, remote) pair.
// All handlers run under the session mutex, so candidate queueing and the
// flush after a remote description apply are atomic relative to each other.
type Session struct {
	local  string
	remote string
	polite bool

	pc   PeerConnector
	send SendFunc

	answerRetryDelay time.Duration

	mu            sync.Mutex
	state         State
	remoteApplied bool
	pending       []json.RawMessage
	closed        bool
}

// NewSession creates the session for a pair. Politeness is fixed for the
// lifetime of the pair relationship.
func NewSession(local, remote string, pc PeerConnector, send SendFunc) *Session {
	return &Session{
		local:            local,
		remote:           remote,
		polite:           Polite(local, remote),
		pc:               pc,
		send:             send,
		answerRetryDelay: defaultAnswerRetryDelay,
		state:            Idle,
	}
}

// Polite reports the local side's role for this pair.
func (s *Session) Polite() bool { return s.polite }

// State returns the current signaling state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start originates the initial offer if this side is the designated
// initiator; the other side just waits.
func (s *Session) Start(ctx context.Context) error {
	if !Initiates(s.local, s.remote) {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.state != Idle {
		return nil
	}

	offer, err := s.pc.CreateOffer(ctx)
	if err != nil {
		return fmt.Errorf("create offer: %w", err)
	}
	if err := s.pc.SetLocalDescription(ctx, offer); err != nil {
		return fmt.Errorf("set local offer: %w", err)
	}
	s.state = HaveLocalOffer

	return s.send(domain.EventOffer, offer)
}

// HandleOffer applies an incoming offer and answers it. On a collision
// (an offer arrives while our own is in flight) the impolite side ignores
// the incoming offer and keeps its own; the polite side abandons its offer
// and accepts the remote one.
func (s *Session) HandleOffer(ctx context.Context, sdp json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}

	if s.state == HaveLocalOffer && !s.polite {
		log.L().Debug().
			Str(log.FieldPeer, s.remote).
			Msg("offer collision, impolite side keeps own offer")
		return nil
	}

	if err := s.pc.SetRemoteDescription(ctx, sdp); err != nil {
		return fmt.Errorf("set remote offer: %w", err)
	}
	s.state = HaveRemoteOffer
	s.flushPendingLocked(ctx)

	answer, err := s.pc.CreateAnswer(ctx)
	if err != nil {
		return fmt.Errorf("create answer: %w", err)
	}
	if err := s.pc.SetLocalDescription(ctx, answer); err != nil {
		return fmt.Errorf("set local answer: %w", err)
	}
	s.state = Stable

	return s.send(domain.EventAnswer, answer)
}

// HandleAnswer applies an incoming answer. A transient failure is retried
// once after a short delay; a second failure leaves the pair unconnected
// until the next membership change triggers a fresh cycle.
func (s *Session) HandleAnswer(ctx context.Context, sdp json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}

	if err := s.pc.SetRemoteDescription(ctx, sdp); err != nil {
		log.L().Debug().Err(err).Str(log.FieldPeer, s.remote).Msg("answer apply failed, retrying")
		time.Sleep(s.answerRetryDelay)
		if err := s.pc.SetRemoteDescription(ctx, sdp); err != nil {
			log.L().Error().Err(err).Str(log.FieldPeer, s.remote).Msg("answer apply failed twice, pair left unconnected")
			return err
		}
	}
	s.state = Stable
	s.flushPendingLocked(ctx)
	return nil
}

// HandleCandidate applies the candidate immediately once a remote
// description is in place; before that it queues the candidate in arrival
// order.
func (s *Session) HandleCandidate(ctx context.Context, candidate json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}

	if !s.remoteApplied {
		s.pending = append(s.pending, candidate)
		return nil
	}
	return s.pc.AddICECandidate(ctx, candidate)
}

// flushPendingLocked drains the queued candidates exactly once, in arrival
// order, right after a remote description applied. Callers hold s.mu.
func (s *Session) flushPendingLocked(ctx context.Context) {
	s.remoteApplied = true
	for _, candidate := range s.pending {
		if err := s.pc.AddICECandidate(ctx, candidate); err != nil {
			log.L().Debug().Err(err).Str(log.FieldPeer, s.remote).Msg("queued candidate rejected")
		}
	}
	s.pending = nil
}

// Close tears the pair down and discards the pending queue. Signaling that
// arrives afterwards is ignored.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.pending = nil
	return s.pc.Close()
}
