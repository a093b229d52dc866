package peer

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/s-uryansh/convoo/internal/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// SignalingClient manages the WebSocket connection to the coordinator. Join
// parameters travel on the query string, so a rejection arrives as the first
// (and only) incoming event.
type SignalingClient struct {
	conn     *websocket.Conn
	incoming chan []byte
	outgoing chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

// NewSignalingClient creates an unconnected client.
func NewSignalingClient() *SignalingClient {
	return &SignalingClient{
		incoming: make(chan []byte, 16),
		outgoing: make(chan []byte, 16),
		done:     make(chan struct{}),
	}
}

// Connect dials the coordinator and starts the pumps.
func (c *SignalingClient) Connect(serverURL, roomID, username string) error {
	u, err := url.Parse(serverURL)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}
	u.Path = "/api/socket"
	q := u.Query()
	q.Set("roomId", roomID)
	q.Set("username", username)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	c.conn = conn

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go c.readPump()
	go c.writePump()

	return nil
}

// Incoming returns the channel of raw events from the coordinator. It is
// closed when the connection drops.
func (c *SignalingClient) Incoming() <-chan []byte {
	return c.incoming
}

// SendSignal queues an addressed negotiation event for the relay.
func (c *SignalingClient) SendSignal(event *domain.SignalEvent) error {
	return c.sendJSON(event)
}

// SendChat queues a chat message send.
func (c *SignalingClient) SendChat(text string) error {
	return c.sendJSON(&domain.ChatSendEvent{Type: domain.EventMessage, Text: text})
}

func (c *SignalingClient) sendJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	select {
	case c.outgoing <- data:
		return nil
	case <-c.done:
		return fmt.Errorf("signaling connection closed")
	}
}

// Close tears the connection down.
func (c *SignalingClient) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.conn != nil {
			c.conn.Close()
		}
	})
}

func (c *SignalingClient) readPump() {
	defer func() {
		c.Close()
		close(c.incoming)
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		select {
		case c.incoming <- message:
		case <-c.done:
			return
		}
	}
}

func (c *SignalingClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case message := <-c.outgoing:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
