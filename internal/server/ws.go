// Package server provides the HTTP server for the speedwatch monitoring system.
package server

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/speedwatch/speedwatch/internal/store"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// EventStreamHandler pushes live pipeline state and speed events to
// WebSocket clients. All writes happen on the broadcast goroutine; a
// websocket.Conn allows at most one concurrent writer, so PublishEvent
// hands its payload over a channel instead of writing directly.
type EventStreamHandler struct {
	pipeline Pipeline
	clients  map[*websocket.Conn]bool
	mu       sync.RWMutex
	events   chan []byte
}

// NewEventStreamHandler creates a new EventStreamHandler backed by the
// pipeline.
func NewEventStreamHandler(p Pipeline) *EventStreamHandler {
	h := &EventStreamHandler{
		pipeline: p,
		clients:  make(map[*websocket.Conn]bool),
		events:   make(chan []byte, 64),
	}
	go h.broadcast()
	return h
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *EventStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
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

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// PublishEvent queues a speed event for delivery to all connected
// clients. Wire it to the pipeline's event callback; it never writes to a
// connection itself and never blocks the pipeline.
func (h *EventStreamHandler) PublishEvent(ev *store.SpeedEvent) {
	msg, err := json.Marshal(map[string]any{
		"type": "speed_event",
		"event": map[string]any{
			"track_id":     ev.TrackID,
			"vehicle_type": ev.Label,
			"speed_kmh":    ev.SpeedKMH,
			"speed_limit":  ev.SpeedLimit,
			"is_overspeed": ev.IsOverspeed,
			"recorded_at":  ev.RecordedAt.UnixMilli(),
		},
	})
	if err != nil {
		return
	}

	select {
	case h.events <- msg:
	default:
		log.Printf("websocket event queue full, dropping event")
	}
}

// broadcast is the single writer for every client connection. It drains
// queued speed events and sends the pipeline snapshot on each tick.
func (h *EventStreamHandler) broadcast() {
	ticker := time.NewTicker(100 * time.Millisecond) // 10 updates/s
	defer ticker.Stop()

	for {
		select {
		case msg := <-h.events:
			h.send(msg)
		case <-ticker.C:
			h.mu.RLock()
			idle := len(h.clients) == 0
			h.mu.RUnlock()
			if idle {
				continue
			}

			msg, err := json.Marshal(map[string]any{
				"type":  "status",
				"state": h.pipeline.Snapshot(),
			})
			if err != nil {
				continue
			}
			h.send(msg)
		}
	}
}

// send writes one message to every client. Only the broadcast goroutine
// calls it; the lock guards the clients map, not the writes.
func (h *EventStreamHandler) send(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for conn := range h.clients {
		conn.WriteMessage(websocket.TextMessage, msg)
	}
}
