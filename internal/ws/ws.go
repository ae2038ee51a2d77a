// Package ws broadcasts alteration progress to WebSocket clients.
package ws

import (
	"encoding/json"
	"log/slog"
	"sync"

	"nhooyr.io/websocket"

	"github.com/tablewright/tablewright/internal/migration"
)

// SnapshotFunc returns the current status as JSON for clients that
// connect or re-sync mid-run.
type SnapshotFunc func() ([]byte, error)

// Hub manages WebSocket connections and broadcasts messages to all clients.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	logger     *slog.Logger
	mu         sync.RWMutex
	snapshot   SnapshotFunc
}

// Client represents a single WebSocket connection.
type Client struct {
	hub  *Hub
	send chan []byte
	conn *websocket.Conn
}

// NewHub creates a new WebSocket hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger,
	}
}

// SetSnapshot sets the function that answers connects and sync requests.
func (h *Hub) SetSnapshot(fn SnapshotFunc) {
	h.snapshot = fn
}

// Run starts the hub's event loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Debug("websocket client connected")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Debug("websocket client disconnected")

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast sends a message to all connected clients.
func (h *Hub) Broadcast(message []byte) {
	h.broadcast <- message
}

// BroadcastProgress broadcasts the status of a running alteration.
func (h *Hub) BroadcastProgress(status *migration.Status) {
	p := ProgressPayload{
		Phase:     status.Phase,
		Statement: status.Statement,
		Done:      status.Overall.Done,
		Total:     status.Overall.Total,
		Percent:   status.Overall.PercentComplete,
		Failed:    status.Failed,
	}
	if n := len(status.Errors); n > 0 {
		p.Error = status.Errors[n-1]
	}
	h.send(MsgStatementProgress, p)
}

// ProgressCallback returns a StatusCallback that broadcasts every update.
func (h *Hub) ProgressCallback() migration.StatusCallback {
	return h.BroadcastProgress
}

// BroadcastComplete broadcasts the report of a finished alteration.
func (h *Hub) BroadcastComplete(payload any) {
	h.send(MsgAlterationComplete, payload)
}

// BroadcastValidationCheck broadcasts a validation check result.
func (h *Hub) BroadcastValidationCheck(table, check string, passed bool) {
	h.send(MsgValidationCheck, ValidationPayload{Table: table, Check: check, Passed: passed})
}

// BroadcastError broadcasts an error to all clients.
func (h *Hub) BroadcastError(errMsg string) {
	h.send(MsgError, map[string]string{"message": errMsg})
}

func (h *Hub) send(typ MessageType, payload any) {
	msg, err := NewMessage(typ, payload)
	if err != nil {
		h.logger.Error("failed to create message", "type", typ, "error", err)
		return
	}
	h.Broadcast(msg)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// BroadcastJSON broadcasts any JSON-serializable payload with the given message type.
func (h *Hub) BroadcastJSON(msgType MessageType, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("failed to marshal broadcast payload", "error", err)
		return
	}
	h.send(msgType, json.RawMessage(data))
}
