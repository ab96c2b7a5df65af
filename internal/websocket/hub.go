package websocket

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/xreader/feed-service/internal/types"
)

// Hub maintains the set of active sessions and broadcasts events to them.
// Sessions are keyed by a hub-assigned session id, not by user id, so one
// user with several tabs holds several independent sessions and mutations
// from one tab still reach the others.
type Hub struct {
	// Registered clients mapped by session ID
	clients map[string]*Client

	// Register requests from the clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Mutex to protect clients map
	mu sync.RWMutex

	// Channel to broadcast events
	broadcast chan *BroadcastMessage
}

// BroadcastMessage represents an event to deliver to every session except
// the originating one.
type BroadcastMessage struct {
	SenderSessionID string       `json:"sender_session_id"`
	Event           *types.Event `json:"event"`
}

// NewHub creates a new WebSocket hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *BroadcastMessage, 64),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.sessionID] = client
			h.mu.Unlock()
			slog.Info("WebSocket session connected",
				slog.String("session_id", client.sessionID),
				slog.String("user_id", client.userID))

			// Tell the client its session id so later mutations can
			// be attributed to this session for no-self-echo.
			if err := client.SendEvent(types.NewEvent(types.EventSessionReady,
				types.SessionReadyEvent{SessionID: client.sessionID})); err != nil {
				slog.Error("Failed to send session ready event",
					slog.String("session_id", client.sessionID),
					slog.String("error", err.Error()))
			}

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.sessionID]; ok {
				delete(h.clients, client.sessionID)
				close(client.send)
				slog.Info("WebSocket session disconnected",
					slog.String("session_id", client.sessionID),
					slog.String("user_id", client.userID))
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.broadcastToOthers(message.SenderSessionID, message.Event)
		}
	}
}

// RegisterClient registers a new client
func (h *Hub) RegisterClient(client *Client) {
	h.register <- client
}

// UnregisterClient unregisters a client
func (h *Hub) UnregisterClient(client *Client) {
	h.unregister <- client
}

// BroadcastToOthers queues an event for every connected session except
// the sender's. Delivery is best-effort: when the broadcast queue is
// full the message is dropped rather than blocking the caller.
func (h *Hub) BroadcastToOthers(senderSessionID string, event *types.Event) {
	message := &BroadcastMessage{
		SenderSessionID: senderSessionID,
		Event:           event,
	}

	select {
	case h.broadcast <- message:
	default:
		slog.Warn("Broadcast channel is full, dropping message")
	}
}

// broadcastToOthers is the internal method that actually fans the event out
func (h *Hub) broadcastToOthers(senderSessionID string, event *types.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sessionID, client := range h.clients {
		if sessionID == senderSessionID {
			continue
		}
		err := client.SendEvent(event)
		if err != nil {
			slog.Error("Failed to send event to session",
				slog.String("session_id", sessionID),
				slog.String("error", err.Error()))
			// Remove the client if sending fails
			go func(c *Client) {
				h.unregister <- c
			}(client)
		}
	}
}

// NewSessionID returns a fresh session identifier.
func NewSessionID() string {
	return uuid.New().String()
}

// SessionCount returns the number of connected sessions
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients)
}

// IsSessionConnected checks if a session is currently connected
func (h *Hub) IsSessionConnected(sessionID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	_, exists := h.clients[sessionID]
	return exists
}
