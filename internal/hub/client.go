package hub

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"

	"github.com/s-uryansh/convoo/internal/config"
	"github.com/s-uryansh/convoo/internal/log"
)

// DisconnectHandler is called once when a client's read pump exits.
type DisconnectHandler func(*Client)

// Client is one live transport session, owned by exactly one identity within
// exactly one room for its lifetime.
type Client struct {
	ID       string
	RoomID   string
	Username string

	Hub  *Hub
	Conn *websocket.Conn
	Send chan []byte

	config            config.WebSocketConfig
	disconnectHandler DisconnectHandler
}

// NewClient creates a client bound to a room and identity.
func NewClient(id string, h *Hub, conn *websocket.Conn, cfg config.WebSocketConfig, roomID, username string) *Client {
	return &Client{
		ID:       id,
		RoomID:   roomID,
		Username: username,
		Hub:      h,
		Conn:     conn,
		Send:     make(chan []byte, 256),
		config:   cfg,
	}
}

// SetDisconnectHandler sets the handler to be called on disconnect.
func (c *Client) SetDisconnectHandler(handler DisconnectHandler) {
	c.disconnectHandler = handler
}

// ReadPump reads messages from the connection and hands them to handler.
// One goroutine per connection; this is what gives each connection its
// at-most-one-in-flight event ordering.
func (c *Client) ReadPump(handler func(*Client, []byte)) {
	defer func() {
		if c.disconnectHandler != nil {
			c.disconnectHandler(c)
		}
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.L().Debug().Err(err).Str(log.FieldConnID, c.ID).Msg("websocket read error")
			}
			break
		}

		handler(c, message)
	}
}

// WritePump drains the send channel onto the connection and keeps the
// connection alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendMessage marshals and enqueues a message for this client without
// blocking. A full send buffer drops the message; the keepalive deadlines
// will reap a stuck connection.
func (c *Client) SendMessage(message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	select {
	case c.Send <- data:
	default:
	}
	return nil
}
