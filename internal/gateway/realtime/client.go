package realtime

import (
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/syntrixbase/daybook/internal/core/identity/authn"
)

const (
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Maximum message size allowed from peer.
	maxMessageSize = 8 * 1024

	defaultWriteTimeout = 10 * time.Second
	defaultSendBuffer   = 64
)

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	verifier authn.TokenValidator
	logger   *slog.Logger

	pingInterval time.Duration
	writeTimeout time.Duration

	// Buffered channel of outbound messages.
	send chan BaseMessage

	mu          sync.Mutex
	owner       string
	communities map[string]struct{}
}

func (c *Client) ownerID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.owner
}

// wants reports whether a change scoped to scope belongs to this client.
func (c *Client) wants(scope string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.owner == "" {
		return false
	}
	if scope == c.owner {
		return true
	}
	_, ok := c.communities[scope]
	return ok
}

// reply queues a direct response without blocking the read loop.
func (c *Client) reply(msg BaseMessage) {
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if _, ok := c.hub.clients[c]; !ok {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

// readPump pumps messages from the websocket connection to the client.
// At most one reader runs per connection.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { return c.conn.SetReadDeadline(time.Now().Add(pongWait)) })
	c.logger.Debug("WebSocket connection established")

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("WebSocket connection closed", "error", err)
			} else {
				c.logger.Debug("WebSocket connection closed")
			}
			return
		}

		var msg BaseMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.reply(errorMessage("", errCodeInvalidMessage, "message must be JSON"))
			continue
		}
		c.handleMessage(msg)
	}
}

func (c *Client) handleMessage(msg BaseMessage) {
	if msg.Type == TypeAuth {
		c.handleAuth(msg)
		return
	}
	if c.ownerID() == "" {
		c.reply(errorMessage(msg.ID, errCodeUnauthorized, "authenticate first"))
		return
	}

	switch msg.Type {
	case TypeSubscribe, TypeUnsubscribe:
		var payload SubscribePayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil || strings.TrimSpace(payload.Community) == "" {
			c.reply(errorMessage(msg.ID, errCodeInvalidMessage, "community is required"))
			return
		}
		c.mu.Lock()
		if msg.Type == TypeSubscribe {
			c.communities[payload.Community] = struct{}{}
		} else {
			delete(c.communities, payload.Community)
		}
		c.mu.Unlock()
		ack := TypeSubscribeAck
		if msg.Type == TypeUnsubscribe {
			ack = TypeUnsubscribeAck
		}
		c.reply(BaseMessage{ID: msg.ID, Type: ack})
	default:
		c.reply(errorMessage(msg.ID, errCodeInvalidMessage, "unknown message type "+msg.Type))
	}
}

func (c *Client) handleAuth(msg BaseMessage) {
	var payload AuthPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil || payload.Token == "" {
		c.reply(errorMessage(msg.ID, errCodeInvalidMessage, "token is required"))
		return
	}
	owner, err := c.verifier.ValidateToken(payload.Token)
	if err != nil {
		c.reply(errorMessage(msg.ID, errCodeUnauthorized, "invalid token"))
		return
	}

	c.mu.Lock()
	if c.owner != "" && c.owner != owner.ID {
		c.communities = make(map[string]struct{})
	}
	c.owner = owner.ID
	c.mu.Unlock()
	c.reply(BaseMessage{ID: msg.ID, Type: TypeAuthAck})
}

// writePump pumps messages from the hub to the websocket connection.
// At most one writer runs per connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if !ok {
				// The hub closed the channel.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
