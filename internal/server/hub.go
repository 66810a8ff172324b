package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/onnwee/particle-dynamics/internal/logger"
	"github.com/onnwee/particle-dynamics/internal/metrics"
	"github.com/onnwee/particle-dynamics/internal/progress"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = 30 * time.Second

	maxMessageSize = 512
	sendBuffer     = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// the status server is read-only
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Message is the envelope for every frame sent to websocket clients.
type Message struct {
	Type    string      `json:"type"` // "progress" or "finished"
	Payload interface{} `json:"payload"`
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Hub streams run progress to websocket clients and remembers the latest
// report for polling clients. It implements progress.Reporter.
type Hub struct {
	clients    map[*client]bool
	register   chan *client
	unregister chan *client
	broadcast  chan []byte
	done       chan struct{}

	mu       sync.RWMutex
	latest   *progress.Report
	finished *progress.Summary
	lastMsg  []byte
}

// NewHub creates a hub. Run must be called for clients to be served.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*client]bool),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, 256),
		done:       make(chan struct{}),
	}
}

// Run serves registrations and broadcasts until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
				metrics.WebSocketConnections.Dec()
			}
			return

		case c := <-h.register:
			h.clients[c] = true
			metrics.WebSocketConnections.Inc()
			if msg := h.lastMessage(); msg != nil {
				c.send <- msg
			}
			logger.Debug("WebSocket client connected", "total_clients", len(h.clients))

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				metrics.WebSocketConnections.Dec()
				logger.Debug("WebSocket client disconnected", "total_clients", len(h.clients))
			}

		case msg := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// slow consumer
					delete(h.clients, c)
					close(c.send)
					metrics.WebSocketConnections.Dec()
				}
			}
		}
	}
}

// Report records r and broadcasts it without blocking the caller.
func (h *Hub) Report(r progress.Report) {
	h.publish(Message{Type: "progress", Payload: r}, func() { h.latest = &r })
}

// Finish records the run summary and broadcasts it.
func (h *Hub) Finish(s progress.Summary) {
	h.publish(Message{Type: "finished", Payload: s}, func() {
		h.finished = &s
		final := progress.Estimate(s.Steps, s.Steps, s.Elapsed)
		h.latest = &final
	})
}

func (h *Hub) publish(m Message, update func()) {
	data, err := json.Marshal(m)
	if err != nil {
		logger.Warn("Failed to marshal progress message", "error", err)
		return
	}
	h.mu.Lock()
	update()
	h.lastMsg = data
	h.mu.Unlock()

	select {
	case h.broadcast <- data:
	default:
	}
}

func (h *Hub) lastMessage() []byte {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lastMsg
}

// Latest returns the most recent report, if any.
func (h *Hub) Latest() (progress.Report, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.latest == nil {
		return progress.Report{}, false
	}
	return *h.latest, true
}

// Finished returns the run summary once the run has completed.
func (h *Hub) Finished() (progress.Summary, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.finished == nil {
		return progress.Summary{}, false
	}
	return *h.finished, true
}

// ServeWS upgrades the connection and attaches it to the hub.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response
		logger.Warn("Failed to upgrade to WebSocket", "error", err)
		return
	}
	c := &client{hub: h, conn: conn, send: make(chan []byte, sendBuffer)}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}
	go c.writePump()
	go c.readPump()
}

// readPump drains the connection so that pongs and closes are processed.
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("WebSocket unexpected close", "error", err)
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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
