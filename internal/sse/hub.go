package sse

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
)

const EventProfileUpdated = "profile_updated"

type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Client is one open event stream. A user may hold several.
type Client struct {
	ID     string
	UserID uuid.UUID
	Send   chan []byte
}

func NewClient(userID uuid.UUID) *Client {
	return &Client{
		ID:     uuid.NewString(),
		UserID: userID,
		Send:   make(chan []byte, 64),
	}
}

type userMessage struct {
	userID uuid.UUID
	event  Event
}

// Hub fans events out to the streams of the user they concern.
type Hub struct {
	clients    map[uuid.UUID]map[string]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan userMessage
	done       chan struct{}
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[uuid.UUID]map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan userMessage, 256),
		done:       make(chan struct{}),
	}
}

// Run serves registrations and broadcasts until ctx is done, then closes
// every remaining client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for _, streams := range h.clients {
				for _, c := range streams {
					close(c.Send)
				}
			}
			h.clients = make(map[uuid.UUID]map[string]*Client)
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.UserID] == nil {
				h.clients[client.UserID] = make(map[string]*Client)
			}
			h.clients[client.UserID][client.ID] = client
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if streams, ok := h.clients[client.UserID]; ok {
				if _, ok := streams[client.ID]; ok {
					delete(streams, client.ID)
					close(client.Send)
				}
				if len(streams) == 0 {
					delete(h.clients, client.UserID)
				}
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			data, err := json.Marshal(msg.event)
			if err != nil {
				continue
			}
			h.mu.RLock()
			for _, client := range h.clients[msg.userID] {
				select {
				case client.Send <- data:
				default:
					// Slow reader; it will resync on its next full read.
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Register adds client. After shutdown it closes client.Send instead.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		close(client.Send)
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// BroadcastToUser queues an event for every stream of userID. It drops the
// event when the queue is full.
func (h *Hub) BroadcastToUser(userID uuid.UUID, eventType string, data any) {
	select {
	case h.broadcast <- userMessage{userID: userID, event: Event{Type: eventType, Data: data}}:
	default:
	}
}

// Connected reports how many streams userID has open.
func (h *Hub) Connected(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}
