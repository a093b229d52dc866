package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/s-uryansh/convoo/internal/config"
	"github.com/s-uryansh/convoo/internal/domain"
	"github.com/s-uryansh/convoo/internal/hub"
	"github.com/s-uryansh/convoo/internal/log"
	"github.com/s-uryansh/convoo/internal/service"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSHandler handles WebSocket upgrades and event routing.
type WSHandler struct {
	hub     *hub.Hub
	service service.RoomService
	wsCfg   config.WebSocketConfig
}

// NewWSHandler creates a new WebSocket handler.
func NewWSHandler(h *hub.Hub, svc service.RoomService, wsCfg config.WebSocketConfig) *WSHandler {
	return &WSHandler{
		hub:     h,
		service: svc,
		wsCfg:   wsCfg,
	}
}

// HandleWebSocket upgrades the connection, admits the client into its room,
// and starts the pumps. Join parameters travel on the query string, so
// admission happens before any event is exchanged.
func (h *WSHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	l := log.Ctx(r.Context())

	roomID := r.URL.Query().Get("roomId")
	username := r.URL.Query().Get("username")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		l.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	if roomID == "" || username == "" {
		conn.Close()
		return
	}

	client := hub.NewClient(uuid.New().String(), h.hub, conn, h.wsCfg, roomID, username)

	if err := h.service.HandleJoin(r.Context(), client); err != nil {
		h.reject(conn, err)
		return
	}

	client.SetDisconnectHandler(func(c *hub.Client) {
		if err := h.service.HandleDisconnect(context.Background(), c); err != nil {
			l.Error().Err(err).Str(log.FieldConnID, c.ID).Msg("disconnect handler error")
		}
	})

	go client.WritePump()
	go client.ReadPump(h.handleMessage)
}

// reject emits the typed rejection event and forces the connection closed,
// per the admission contract.
func (h *WSHandler) reject(conn *websocket.Conn, err error) {
	var eventType string
	switch {
	case errors.Is(err, hub.ErrDuplicateIdentity):
		eventType = domain.EventDuplicateUsername
	case errors.Is(err, hub.ErrRoomFull):
		eventType = domain.EventRoomFull
	case errors.Is(err, service.ErrThrottled):
		eventType = domain.EventRapidReconnection
	default:
		conn.Close()
		return
	}

	conn.SetWriteDeadline(time.Now().Add(h.wsCfg.WriteWait))
	conn.WriteJSON(domain.NewRejectEvent(eventType))
	conn.Close()
}

func (h *WSHandler) handleMessage(client *hub.Client, message []byte) {
	l := log.L()

	var base domain.BaseEvent
	if err := json.Unmarshal(message, &base); err != nil {
		l.Debug().Err(err).Str(log.FieldConnID, client.ID).Msg("invalid event format")
		return
	}

	ctx := context.Background()

	switch base.Type {
	case domain.EventMessage:
		var event domain.ChatSendEvent
		if err := json.Unmarshal(message, &event); err != nil {
			return
		}
		if event.Text == "" {
			return
		}
		if err := h.service.HandleChatMessage(ctx, client, event.Text); err != nil {
			l.Error().Err(err).Str(log.FieldConnID, client.ID).Msg("chat message failed")
		}

	case domain.EventOffer, domain.EventAnswer, domain.EventCandidate:
		var event domain.SignalEvent
		if err := json.Unmarshal(message, &event); err != nil {
			return
		}
		if err := h.service.HandleSignal(ctx, client, &event); err != nil {
			l.Error().Err(err).Str(log.FieldConnID, client.ID).Msg("signal relay failed")
		}

	default:
		l.Debug().Str("event", base.Type).Str(log.FieldConnID, client.ID).Msg("unknown event type")
	}
}

// RegisterRoutes mounts the websocket endpoint on the gin engine.
func (h *WSHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/api/socket", func(c *gin.Context) {
		h.HandleWebSocket(c.Writer, c.Request)
	})
}
