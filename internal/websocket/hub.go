// Package websocket provides WebSocket connection management and per-user
// message delivery.
package websocket

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Hub tracks connected clients by user and delivers messages to them.
type Hub struct {
	// Registered clients grouped by user
	users map[int64]map[*Client]bool

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Closed once Run has returned
	done chan struct{}

	logger *zap.Logger

	// Mutex for thread-safe client access
	mu sync.RWMutex
}

// NewHub creates a new WebSocket hub.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		users:      make(map[int64]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger.Named("websocket"),
	}
}

// Run starts the hub's main event loop until ctx is cancelled, then
// disconnects every client. This should be called in a goroutine.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			set, ok := h.users[client.userID]
			if !ok {
				set = make(map[*Client]bool)
				h.users[client.userID] = set
			}
			set[client] = true
			h.mu.Unlock()
			h.logger.Info("client connected",
				zap.Int64("user_id", client.userID), zap.Int("total", h.ClientCount()))

		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()
			h.logger.Info("client disconnected",
				zap.Int64("user_id", client.userID), zap.Int("total", h.ClientCount()))

		case <-ctx.Done():
			h.mu.Lock()
			for _, set := range h.users {
				for client := range set {
					h.remove(client)
				}
			}
			h.mu.Unlock()
			close(h.done)
			return
		}
	}
}

// remove drops a client and closes its send channel. Callers hold mu.
func (h *Hub) remove(client *Client) {
	set, ok := h.users[client.userID]
	if !ok || !set[client] {
		return
	}
	delete(set, client)
	close(client.send)
	if len(set) == 0 {
		delete(h.users, client.userID)
	}
}

// SendToUser queues message for every connection of userID and returns how
// many connections accepted it. Clients with a full buffer are disconnected.
func (h *Hub) SendToUser(userID int64, message []byte) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	delivered := 0
	for client := range h.users[userID] {
		if h.offer(client, message) {
			delivered++
		}
	}
	return delivered
}

// SendToClient queues message for a single registered connection.
func (h *Hub) SendToClient(client *Client, message []byte) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.users[client.userID][client] {
		return false
	}
	return h.offer(client, message)
}

// Broadcast sends a message to all connected clients.
func (h *Hub) Broadcast(message []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, set := range h.users {
		for client := range set {
			h.offer(client, message)
		}
	}
}

func (h *Hub) offer(client *Client, message []byte) bool {
	select {
	case client.send <- message:
		return true
	default:
		// Client send buffer full, close connection
		h.logger.Warn("send buffer full, dropping client", zap.Int64("user_id", client.userID))
		h.remove(client)
		return false
	}
}

// Register adds a client to the hub. Once the hub has stopped the client's
// send channel is closed instead, so its writer exits.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		close(client.send)
	}
}

// Unregister removes a client from the hub. It is a no-op once the hub has
// stopped, since shutdown already disconnected every client.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for _, set := range h.users {
		n += len(set)
	}
	return n
}

// Connected reports whether userID has at least one open connection.
func (h *Hub) Connected(userID int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID]) > 0
}

// Client represents a WebSocket client connection owned by one user.
type Client struct {
	hub    *Hub
	userID int64
	send   chan []byte
}

// NewClient creates a new WebSocket client for userID.
func NewClient(hub *Hub, userID int64) *Client {
	return &Client{
		hub:    hub,
		userID: userID,
		send:   make(chan []byte, 256),
	}
}

// UserID returns the user the connection belongs to.
func (c *Client) UserID() int64 {
	return c.userID
}

// Send returns the send channel for the client.
func (c *Client) Send() chan []byte {
	return c.send
}
