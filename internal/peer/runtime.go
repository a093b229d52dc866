package peer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pion/webrtc/v4"
	"golang.org/x/sync/errgroup"

	"github.com/s-uryansh/convoo/internal/domain"
	"github.com/s-uryansh/convoo/internal/log"
	"github.com/s-uryansh/convoo/internal/negotiation"
)

// Rejection errors surfaced by the runtime when the coordinator refuses
// admission.
var (
	ErrRoomFull          = fmt.Errorf("room is full")
	ErrDuplicateUsername = fmt.Errorf("username already taken in this room")
	ErrRapidReconnection = fmt.Errorf("reconnecting too fast, wait a moment")
)

// MessageHandler receives chat traffic (history and live messages) so the
// embedding program can render it.
type MessageHandler func(msg domain.Message)

// Runtime is one participant's client runtime: it joins a room through the
// signaling client and negotiates one audio peer link per other member.
type Runtime struct {
	username string
	client   *SignalingClient
	engine   *negotiation.Engine
	onChat   MessageHandler
}

// NewRuntime wires a runtime for the given identity. iceCfg configures every
// peer connection the runtime creates.
func NewRuntime(username string, client *SignalingClient, iceCfg webrtc.Configuration, onChat MessageHandler) *Runtime {
	rt := &Runtime{
		username: username,
		client:   client,
		onChat:   onChat,
	}

	factory := func(remote string) (negotiation.PeerConnector, error) {
		return NewPionConnector(iceCfg, func(candidate json.RawMessage) {
			err := client.SendSignal(&domain.SignalEvent{
				Type:      domain.EventCandidate,
				To:        remote,
				Candidate: candidate,
			})
			if err != nil {
				log.L().Debug().Err(err).Str(log.FieldPeer, remote).Msg("could not send candidate")
			}
		})
	}

	rt.engine = negotiation.NewEngine(username, factory, client)
	return rt
}

// SendChat sends a chat message; the rendered copy comes back via the
// broadcast, not a local echo.
func (r *Runtime) SendChat(text string) error {
	return r.client.SendChat(text)
}

// Run processes coordinator events until the connection drops or the context
// is cancelled. It returns a rejection error if the coordinator refused
// admission.
func (r *Runtime) Run(ctx context.Context) error {
	defer r.engine.Close()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-ctx.Done()
		r.client.Close()
		return nil
	})

	g.Go(func() error {
		for raw := range r.client.Incoming() {
			if err := r.handleEvent(ctx, raw); err != nil {
				return err
			}
		}
		return nil
	})

	return g.Wait()
}

func (r *Runtime) handleEvent(ctx context.Context, raw []byte) error {
	var base domain.BaseEvent
	if err := json.Unmarshal(raw, &base); err != nil {
		return nil
	}

	switch base.Type {
	case domain.EventRoomFull:
		return ErrRoomFull
	case domain.EventDuplicateUsername:
		return ErrDuplicateUsername
	case domain.EventRapidReconnection:
		return ErrRapidReconnection

	case domain.EventMembers:
		var event domain.MembersEvent
		if err := json.Unmarshal(raw, &event); err != nil {
			return nil
		}
		r.engine.HandleMembers(ctx, event.Members)

	case domain.EventOffer, domain.EventAnswer, domain.EventCandidate:
		var event domain.SignalEvent
		if err := json.Unmarshal(raw, &event); err != nil {
			return nil
		}
		r.engine.HandleSignal(ctx, &event)

	case domain.EventHistory:
		var event domain.HistoryEvent
		if err := json.Unmarshal(raw, &event); err != nil {
			return nil
		}
		if r.onChat != nil {
			for _, msg := range event.Messages {
				r.onChat(msg)
			}
		}

	case domain.EventMessage:
		var event domain.MessageEvent
		if err := json.Unmarshal(raw, &event); err != nil {
			return nil
		}
		if r.onChat != nil {
			r.onChat(event.Message)
		}

	case domain.EventUserJoined, domain.EventUserLeft:
		var event domain.PresenceEvent
		if err := json.Unmarshal(raw, &event); err != nil {
			return nil
		}
		log.L().Info().Str(log.FieldUsername, event.Username).Str("event", base.Type).Msg("presence update")
	}

	return nil
}
