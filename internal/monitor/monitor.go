// Package monitor exposes a session's status over a websocket, for
// dashboards or the galeamon CLI: a registry of connected clients guarded
// by an RWMutex, each with its own buffered send channel and write pump,
// and a non-blocking broadcast that drops a tick for any client that
// can't keep up rather than stalling the others.
package monitor

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// SnapshotSource is anything that can report a point-in-time status, most
// notably *acquisition.Session.Snapshot. Defined as a function type here
// (rather than importing acquisition directly) so monitor stays usable
// for any periodically-polled JSON-able status.
type SnapshotSource func() interface{}

// Hub upgrades HTTP connections to websockets and periodically broadcasts
// the snapshot source's current value to every connected client.
type Hub struct {
	source   SnapshotSource
	interval time.Duration
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]bool
}

type client struct {
	conn *websocket.Conn
	send chan interface{}
}

// NewHub builds a Hub that polls source every interval and fans the
// result out to all connected clients.
func NewHub(source SnapshotSource, interval time.Duration) *Hub {
	return &Hub{
		source:   source,
		interval: interval,
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		clients: make(map[*client]bool),
	}
}

// ServeHTTP upgrades the request to a websocket and registers the client
// until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("monitor: upgrade failed: %v", err)
		return
	}

	c := &client{conn: conn, send: make(chan interface{}, 16)}

	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()

	go c.writePump()

	defer func() {
		h.mu.Lock()
		delete(h.clients, c)
		h.mu.Unlock()
		close(c.send)
	}()

	// the status feed is read-only from the client's point of view; any
	// inbound message (including the close frame) ends the connection
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Run polls the snapshot source and broadcasts until ctx-equivalent stop
// is signaled by closing stop.
func (h *Hub) Run(stop <-chan struct{}) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			h.broadcast(h.source())
		}
	}
}

func (h *Hub) broadcast(msg interface{}) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			// slow client: drop this tick rather than block the broadcaster
		}
	}
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}
