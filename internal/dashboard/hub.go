package dashboard

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	// pingPeriod and pongWait implement spec.md §6's "ping/pong heartbeat
	// every ~5s; idle-close after ~10s": a client that misses two pings in
	// a row is considered idle and dropped.
	pingPeriod = 5 * time.Second
	pongWait   = 10 * time.Second
	writeWait  = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type client struct {
	conn *websocket.Conn
	send chan wsMessage
}

// Hub serves the `/ws/<room>` WebSocket endpoint. Clients across all rooms
// share the same underlying window and counters (spec.md §4.H describes a
// single dashboard feed); room only namespaces the connection, it does not
// partition the data.
type Hub struct {
	window *Window
	log    *logrus.Entry

	mu      sync.Mutex
	clients map[*client]struct{}
}

// NewHub binds a Hub to a Window.
func NewHub(window *Window, log *logrus.Entry) *Hub {
	return &Hub{window: window, log: log, clients: make(map[*client]struct{})}
}

// RegisterRoutes wires the `/ws/{room}` endpoint onto r.
func (h *Hub) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/ws/{room}", h.serveWS)
}

func (h *Hub) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	c := &client{conn: conn, send: make(chan wsMessage, 16)}
	h.register(c)
	defer h.unregister(c)

	counters, items := h.window.Snapshot()
	c.send <- toMessage(counters, items)

	go h.writeLoop(c)
	h.readLoop(c)
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.conn.Close()
}

// readLoop only exists to detect disconnects and pongs; the dashboard
// protocol has no client-to-server payload.
func (h *Hub) readLoop(c *client) {
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			body, err := json.Marshal(msg)
			if err != nil {
				h.log.WithError(err).Warn("dashboard message encode failed")
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, body); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Broadcast sends msg to every currently connected client, dropping it for
// any client whose send buffer is full rather than blocking the publisher.
func (h *Hub) Broadcast(msg wsMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.log.Warn("dashboard client send buffer full, dropping message")
		}
	}
}
