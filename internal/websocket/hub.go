package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
)

// TypeRefresh tells clients that something changed and they should refetch.
const TypeRefresh = "refresh"

// Message is the only thing ever sent over the push channel. It carries no
// description of what changed.
type Message struct {
	Type string `json:"type"`
}

func RefreshMessage() Message {
	return Message{Type: TypeRefresh}
}

// Publisher fans a refresh out to other server instances. Notify must not
// block.
type Publisher interface {
	Notify()
}

// Hub maintains the set of active WebSocket clients and broadcasts messages.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	relay   Publisher
	logger  *slog.Logger
}

// NewHub creates a new Hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger,
	}
}

// SetRelay makes Refresh also publish to other instances.
func (h *Hub) SetRelay(p Publisher) {
	h.mu.Lock()
	h.relay = p
	h.mu.Unlock()
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

// Unregister removes a client from the hub and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// Broadcast sends a message to all clients connected to this instance.
func (h *Hub) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal broadcast", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			// A client with a full buffer already has a refresh queued.
		}
	}
}

// Refresh signals every client, here and on other instances, to refetch.
// The relay publishes in the background, so a slow Redis never holds up the
// caller.
func (h *Hub) Refresh(ctx context.Context) {
	h.Broadcast(RefreshMessage())

	h.mu.RLock()
	relay := h.relay
	h.mu.RUnlock()
	if relay != nil {
		relay.Notify()
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
