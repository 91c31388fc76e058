package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Event is a message broadcast to every connected dashboard client.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Hub maintains the set of connected dashboard clients and fans events out to
// them. There is a single room: every admin session sees every status change.
type Hub struct {
	clients map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan Event

	mu sync.RWMutex
}

// NewHub creates a new Hub instance.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan Event, 256),
	}
}

// Run starts the hub's main loop.
// This should be called as a goroutine: go hub.Run()
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()

		case event := <-h.broadcast:
			message, err := json.Marshal(event)
			if err != nil {
				log.Error().Err(err).Str("type", event.Type).Msg("marshal ws event")
				continue
			}

			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Send buffer is full, the client is too slow. Drop it.
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast queues an event for every connected client.
func (h *Hub) Broadcast(event Event) {
	h.broadcast <- event
}

type statusPayload struct {
	RequestID   uuid.UUID `json:"request_id"`
	OrderNumber string    `json:"order_number"`
	Status      string    `json:"status"`
	At          time.Time `json:"at"`
}

// NotifyStatus broadcasts a request status change to the dashboard. It backs
// the notifier hook the HTTP handlers call after every lifecycle transition.
func (h *Hub) NotifyStatus(requestID uuid.UUID, orderNumber, status string) {
	payload, err := json.Marshal(statusPayload{
		RequestID:   requestID,
		OrderNumber: orderNumber,
		Status:      status,
		At:          time.Now().UTC(),
	})
	if err != nil {
		log.Error().Err(err).Str("order_number", orderNumber).Msg("marshal status payload")
		return
	}
	h.Broadcast(Event{Type: "request.status", Payload: payload})
}
