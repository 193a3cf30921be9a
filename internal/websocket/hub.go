package chatws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	websocket "github.com/gofiber/contrib/websocket"
	"go.uber.org/zap"

	"github.com/sin3107/matching-sub001/internal/services"
)

// Hub tracks live connections per user and which conversation channels each
// connection has open. It answers the presence queries and carries the emits
// the delivery path needs, so it satisfies services.Presence and
// services.Emitter.
type Hub struct {
	mu      sync.RWMutex
	clients map[int64]map[*Client]struct{}
	log     *zap.Logger
}

type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	userID int64
	send   chan []byte

	mu       sync.Mutex
	channels map[string]struct{}
}

type sender interface {
	SendMessage(
		ctx context.Context,
		senderID int64,
		conversationID int64,
		contentType string,
		content string,
	) (*services.MessageDelivery, error)
}

// Envelope is the wire shape for every event the hub writes.
type Envelope struct {
	Type      string          `json:"type"`
	Channel   string          `json:"channel,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Error     string          `json:"error,omitempty"`
	Timestamp string          `json:"timestamp"`
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[int64]map[*Client]struct{}),
		log:     log,
	}
}

func NewClient(hub *Hub, conn *websocket.Conn, userID int64) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		userID:   userID,
		send:     make(chan []byte, 32),
		channels: make(map[string]struct{}),
	}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.clients[client.userID]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[client.userID] = set
	}
	set[client] = struct{}{}
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.clients[client.userID]
	if !ok {
		return
	}
	if _, exists := set[client]; exists {
		delete(set, client)
		close(client.send)
	}
	if len(set) == 0 {
		delete(h.clients, client.userID)
	}
}

// IsPresent reports whether the user has any live connection; with a channel
// given, whether any of their connections has that channel open.
func (h *Hub) IsPresent(userID int64, channel string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	set, ok := h.clients[userID]
	if !ok || len(set) == 0 {
		return false
	}
	if channel == "" {
		return true
	}
	for client := range set {
		if client.subscribed(channel) {
			return true
		}
	}
	return false
}

// Emit delivers an event to the user's connections, restricted to those with
// the channel open when one is given. Connections with a full send buffer are
// dropped rather than blocking delivery.
func (h *Hub) Emit(userID int64, channel string, event string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		h.log.Error("hub: encode payload", zap.String("event", event), zap.Error(err))
		return
	}
	encoded, err := json.Marshal(Envelope{
		Type:      event,
		Channel:   channel,
		Payload:   body,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		h.log.Error("hub: encode envelope", zap.String("event", event), zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.clients[userID]
	if !ok {
		return
	}
	for client := range set {
		if channel != "" && !client.subscribed(channel) {
			continue
		}
		select {
		case client.send <- encoded:
		default:
			delete(set, client)
			close(client.send)
		}
	}
	if len(set) == 0 {
		delete(h.clients, userID)
	}
}

func (c *Client) subscribed(channel string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.channels[channel]
	return ok
}

func (c *Client) subscribe(channel string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.channels[channel] = struct{}{}
}

func (c *Client) unsubscribe(channel string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.channels, channel)
}

type inboundFrame struct {
	Type           string `json:"type"`
	ConversationID int64  `json:"conversation_id"`
	ContentType    string `json:"content_type"`
	Content        string `json:"content"`
}

// ReadPump consumes frames from the connection until it closes. Clients open
// a conversation with subscribe frames (which scopes presence for delivery
// routing) and may send messages over the same connection.
func (c *Client) ReadPump(service sender) {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var frame inboundFrame
		if err := json.Unmarshal(payload, &frame); err != nil {
			c.writeError("invalid frame")
			continue
		}
		if frame.ConversationID <= 0 {
			c.writeError("invalid conversation id")
			continue
		}

		switch frame.Type {
		case "subscribe":
			c.subscribe(services.ConversationChannel(frame.ConversationID))
		case "unsubscribe":
			c.unsubscribe(services.ConversationChannel(frame.ConversationID))
		case "message":
			delivery, err := service.SendMessage(
				context.Background(),
				c.userID,
				frame.ConversationID,
				frame.ContentType,
				frame.Content,
			)
			if err != nil {
				c.writeError("failed to send message")
				continue
			}
			// Echo the persisted message back to the sending connection;
			// recipient delivery is routed by the service.
			c.writeEvent("message:sent", services.ConversationChannel(frame.ConversationID), delivery.Message)
		default:
			c.writeError("unsupported frame type")
		}
	}
}

func (c *Client) WritePump() {
	defer func() {
		_ = c.conn.Close()
	}()

	for payload := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}

func (c *Client) writeEvent(event, channel string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		return
	}
	encoded, err := json.Marshal(Envelope{
		Type:      event,
		Channel:   channel,
		Payload:   body,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return
	}
	select {
	case c.send <- encoded:
	default:
	}
}

func (c *Client) writeError(message string) {
	encoded, err := json.Marshal(Envelope{
		Type:      "error",
		Error:     message,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return
	}
	select {
	case c.send <- encoded:
	default:
	}
}
