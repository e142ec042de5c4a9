package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/knexpress/booking-capture/internal/engine"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // local UI only
	},
}

// EventsHandler broadcasts capture state events to WebSocket clients. All
// sessions share one feed; clients filter by session ID.
type EventsHandler struct {
	logger  *slog.Logger
	clients map[*websocket.Conn]bool
	mu      sync.RWMutex
}

// NewEventsHandler creates an EventsHandler consuming the given feed.
func NewEventsHandler(events <-chan engine.StateEvent, logger *slog.Logger) *EventsHandler {
	h := &EventsHandler{
		logger:  logger,
		clients: make(map[*websocket.Conn]bool),
	}
	go h.broadcast(events)
	return h
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
	}()

	// Keep the connection alive by draining client messages.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// broadcast fans the event feed out to every connected client.
func (h *EventsHandler) broadcast(events <-chan engine.StateEvent) {
	for ev := range events {
		h.mu.RLock()
		if len(h.clients) == 0 {
			h.mu.RUnlock()
			continue
		}

		msg, err := json.Marshal(map[string]any{
			"event":     ev,
			"timestamp": time.Now().UnixMilli(),
		})
		if err != nil {
			h.mu.RUnlock()
			continue
		}

		for conn := range h.clients {
			conn.WriteMessage(websocket.TextMessage, msg)
		}
		h.mu.RUnlock()
	}
}
