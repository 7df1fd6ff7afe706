package events

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/getpup/pupsourcing/es"
	"github.com/gorilla/websocket"
)

const writeTimeout = 5 * time.Second

// frame is the JSON envelope written to websocket clients.
type frame struct {
	Event string `json:"event"`
	Data  Event  `json:"data"`
}

// Hub streams bus events to websocket clients.
type Hub struct {
	bus      *Bus
	logger   es.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

// NewHub creates a hub for bus. logger may be nil.
// Upgrades carrying an Origin header outside allowedOrigins are refused;
// with no allowed origins every origin is accepted.
func NewHub(bus *Bus, logger es.Logger, allowedOrigins []string) *Hub {
	return &Hub{
		bus:    bus,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(allowedOrigins) == 0 || origin == "" || slices.Contains(allowedOrigins, origin)
			},
		},
		clients: make(map[*websocket.Conn]struct{}),
	}
}

// Run broadcasts events until ctx is cancelled, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	events, unsubscribe := h.bus.Subscribe()
	defer unsubscribe()
	defer h.closeAll()

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(frame{Event: LogEventName, Data: evt})
			if err != nil {
				continue
			}
			h.broadcast(ctx, data)
		}
	}
}

func (h *Hub) broadcast(ctx context.Context, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.clients {
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			if h.logger != nil {
				h.logger.Debug(ctx, "dropping websocket client", "error", err)
			}
			_ = conn.Close()
			delete(h.clients, conn)
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request to a websocket and keeps it registered
// until the client disconnects. Incoming messages are ignored.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		if h.logger != nil {
			h.logger.Error(r.Context(), "websocket upgrade failed", "error", err)
		}
		return
	}

	h.mu.Lock()
	h.clients[conn] = struct{}{}
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
		_ = conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		_ = conn.Close()
		delete(h.clients, conn)
	}
}
