package chatws

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"sync"
	"time"

	websocket "github.com/gofiber/contrib/websocket"
	"github.com/redis/go-redis/v9"

	"github.com/makroxyz/simplechat/internal/services"
)

const fanoutChannel = "simplechat:deliveries"

// Hub fans stored messages out to the live sessions of both parties. With a
// Redis client attached, deliveries go through a pub/sub channel so every
// node sees them; without one, delivery stays in-process.
type Hub struct {
	clients    map[string]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan *Event
	redis      *redis.Client
}

type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	userID string

	mu     sync.Mutex
	closed bool
	send   chan []byte
}

// trySend queues a payload without blocking. It reports false when the
// client's buffer is full or the client has already been shut down, so
// callers never write to a closed channel.
func (c *Client) trySend(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// closeSend shuts the outbound channel exactly once. Both the unregister
// path and slow-consumer eviction funnel through here.
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

type sender interface {
	SendMessage(
		ctx context.Context,
		senderID int64,
		receiverID int64,
		text string,
	) (*services.ChatDelivery, error)
}

// Event is the wire format pushed to websocket clients and across the Redis
// fanout channel.
type Event struct {
	Type        string `json:"type"`
	MessageID   string `json:"message_id,omitempty"`
	SenderID    string `json:"sender_id,omitempty"`
	RecipientID string `json:"recipient_id,omitempty"`
	Text        string `json:"text"`
	Timestamp   string `json:"timestamp"`
}

func NewHub(redisClient *redis.Client) *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Event, 64),
		redis:      redisClient,
	}
}

func NewClient(hub *Hub, conn *websocket.Conn, userID string) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		userID: userID,
		send:   make(chan []byte, 32),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			set, ok := h.clients[client.userID]
			if !ok {
				set = make(map[*Client]struct{})
				h.clients[client.userID] = set
			}
			set[client] = struct{}{}
		case client := <-h.unregister:
			if set, ok := h.clients[client.userID]; ok {
				delete(set, client)
				if len(set) == 0 {
					delete(h.clients, client.userID)
				}
			}
			client.closeSend()
		case event := <-h.broadcast:
			h.push(event)
		}
	}
}

// SubscribeFanout consumes deliveries published by other nodes. Call in its
// own goroutine, only when a Redis client is attached.
func (h *Hub) SubscribeFanout() {
	pubsub := h.redis.Subscribe(context.Background(), fanoutChannel)
	for msg := range pubsub.Channel() {
		var event Event
		if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
			log.Printf("chat hub decode fanout event: %v", err)
			continue
		}
		h.broadcast <- &event
	}
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Deliver routes a stored message to both parties' live sessions, through
// Redis when clustered.
func (h *Hub) Deliver(delivery *services.ChatDelivery) {
	event := &Event{
		Type:        "message",
		MessageID:   strconv.FormatInt(delivery.Message.ID, 10),
		SenderID:    strconv.FormatInt(delivery.Message.SenderID, 10),
		RecipientID: strconv.FormatInt(delivery.RecipientID, 10),
		Text:        delivery.Message.Text,
		Timestamp:   services.FormatChatTimestamp(delivery.Message.CreatedAt),
	}

	if h.redis != nil {
		payload, err := json.Marshal(event)
		if err != nil {
			log.Printf("chat hub encode fanout event: %v", err)
			return
		}
		if err := h.redis.Publish(context.Background(), fanoutChannel, payload).Err(); err != nil {
			log.Printf("chat hub publish fanout event: %v", err)
		}
		return
	}

	h.broadcast <- event
}

func (h *Hub) push(event *Event) {
	encoded, err := json.Marshal(event)
	if err != nil {
		log.Printf("chat hub encode event: %v", err)
		return
	}

	h.sendToUser(event.SenderID, encoded)
	if event.RecipientID != "" && event.RecipientID != event.SenderID {
		h.sendToUser(event.RecipientID, encoded)
	}
}

func (h *Hub) sendToUser(userID string, payload []byte) {
	set, ok := h.clients[userID]
	if !ok {
		return
	}

	for client := range set {
		if !client.trySend(payload) {
			delete(set, client)
			client.closeSend()
		}
	}
	if len(set) == 0 {
		delete(h.clients, userID)
	}
}

func (c *Client) ReadPump(service sender) {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	senderID, err := strconv.ParseInt(c.userID, 10, 64)
	if err != nil {
		writeError(c, "invalid user")
		return
	}

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var incoming struct {
			Type      string `json:"type"`
			ContactID string `json:"contact_id"`
			Text      string `json:"text"`
		}
		if err := json.Unmarshal(payload, &incoming); err != nil {
			writeError(c, "invalid message payload")
			continue
		}
		if incoming.Type != "message" {
			writeError(c, "unsupported message type")
			continue
		}

		contactID, err := strconv.ParseInt(incoming.ContactID, 10, 64)
		if err != nil || contactID <= 0 {
			writeError(c, "invalid contact id")
			continue
		}

		delivery, err := service.SendMessage(
			context.Background(),
			senderID,
			contactID,
			incoming.Text,
		)
		if err != nil {
			writeError(c, "failed to send message")
			continue
		}

		c.hub.Deliver(delivery)
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

func writeError(client *Client, message string) {
	payload, err := json.Marshal(Event{
		Type:      "error",
		Text:      message,
		Timestamp: services.FormatChatTimestamp(time.Now().UTC()),
	})
	if err != nil {
		return
	}
	// Dropped for a stalled or already-evicted client; its pumps are on the
	// way out and the hub owns the channel shutdown.
	_ = client.trySend(payload)
}
