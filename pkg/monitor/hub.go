// Package monitor broadcasts P25 call state transitions to connected
// WebSocket clients, grounded on the teacher's web.WebSocketHub.
package monitor

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dbehnke/p25bridge/pkg/logger"
)

// Event is one call-state transition broadcast to dashboard clients.
type Event struct {
	Type      string         `json:"type"` // call_start, call_end, call_ignored
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data"`
}

func (e *Event) marshal() ([]byte, error) { return json.Marshal(e) }

type client struct {
	id       string
	conn     *websocket.Conn
	messages chan []byte
}

// Hub fans call events out to every connected WebSocket client.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan Event
	register   chan *client
	unregister chan *client
	log        *logger.Logger
	mu         sync.RWMutex
}

// NewHub constructs a hub; call Run to start its event loop.
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan Event, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		log:        log,
	}
}

// Run drives the hub's event loop until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.messages)
			}
			h.mu.Unlock()
		case event := <-h.broadcast:
			data, err := event.marshal()
			if err != nil {
				h.log.Error("failed to marshal monitor event", logger.Error(err))
				continue
			}
			h.mu.RLock()
			for c := range h.clients {
				select {
				case c.messages <- data:
				default:
					h.log.Warn("monitor client buffer full, dropping", logger.String("client_id", c.id))
				}
			}
			h.mu.RUnlock()
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.messages)
			}
			h.clients = make(map[*client]bool)
			h.mu.Unlock()
			return
		}
	}
}

// Broadcast queues event for delivery to every connected client.
func (h *Hub) Broadcast(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	select {
	case h.broadcast <- event:
	default:
		h.log.Warn("monitor broadcast channel full, dropping event", logger.String("event_type", event.Type))
	}
}

// BroadcastCallStart reports an RX or TX call entering the active state.
func (h *Hub) BroadcastCallStart(srcID, dstID uint32, encrypted bool) {
	h.Broadcast(Event{Type: "call_start", Data: map[string]any{
		"src_id": srcID, "dst_id": dstID, "encrypted": encrypted,
	}})
}

// BroadcastCallEnd reports a call ending normally.
func (h *Hub) BroadcastCallEnd(srcID, dstID uint32, durationSec float64) {
	h.Broadcast(Event{Type: "call_end", Data: map[string]any{
		"src_id": srcID, "dst_id": dstID, "duration_sec": durationSec,
	}})
}

// BroadcastCallIgnored reports a call dropped for an algorithm/key mismatch.
func (h *Hub) BroadcastCallIgnored(srcID, dstID uint32, reason string) {
	h.Broadcast(Event{Type: "call_ignored", Data: map[string]any{
		"src_id": srcID, "dst_id": dstID, "reason": reason,
	}})
}

// Handler upgrades HTTP connections to WebSocket and registers the
// resulting client with the hub.
func (h *Hub) Handler() http.Handler {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			http.Error(w, "websocket upgrade failed", http.StatusBadRequest)
			return
		}
		c := &client{id: r.RemoteAddr, conn: conn, messages: make(chan []byte, 256)}
		h.register <- c

		go func() {
			defer func() {
				h.unregister <- c
				_ = c.conn.Close()
			}()
			c.conn.SetReadLimit(1024)
			for {
				if _, _, err := c.conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		go func() {
			for msg := range c.messages {
				_ = c.conn.WriteMessage(websocket.TextMessage, msg)
			}
		}()
	})
}

// ClientCount reports the number of currently connected dashboard clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
