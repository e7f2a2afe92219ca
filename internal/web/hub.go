package web

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"xyron.node/xyn/internal/logger"
	"xyron.node/xyn/internal/types"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 25 * time.Second
	sendBuffer   = 64
)

// Feeds a subscriber can follow.
const (
	feedBlocks = "blocks"
	feedLogs   = "logs"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Event is the envelope pushed to websocket subscribers.
type Event struct {
	Event     string `json:"event"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data"`
}

type client struct {
	id   string
	feed string
	send chan []byte
}

// Hub fans block notifications and log lines out to websocket subscribers.
// It implements ledger.Listener.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
	logger  *logger.Logger
}

func newHub(l *logger.Logger) *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		logger:  l,
	}
}

func (h *Hub) register(feed string) *client {
	c := &client{id: uuid.NewString(), feed: feed, send: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	return c
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// Clients returns the number of connected subscribers.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) publish(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Errorf("Encode %s event: %v", ev.Event, err)
		return
	}
	h.broadcast(feedBlocks, data)
}

func (h *Hub) broadcast(feed string, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if c.feed != feed {
			continue
		}
		select {
		case c.send <- data:
		default:
			// Client is slow/blocked, skip
		}
	}
}

// BlockMinted pushes a new_block event.
func (h *Hub) BlockMinted(b types.Block) {
	h.publish(Event{Event: "new_block", Timestamp: time.Now().UnixMilli(), Data: b})
}

// HalvingReached pushes a halving event.
func (h *Hub) HalvingReached(ev types.HalvingEvent) {
	h.publish(Event{Event: "halving", Timestamp: time.Now().UnixMilli(), Data: ev})
}

// LogMessage pushes a log line to the logs feed. It is registered with
// logger.Subscribe and must not log.
func (h *Hub) LogMessage(m logger.Message) {
	data, err := json.Marshal(m)
	if err != nil {
		return
	}
	h.broadcast(feedLogs, data)
}

// serve runs one subscriber connection on feed: it writes the frames
// returned by greeting, then relays hub traffic and keeps the connection
// alive with pings until either side closes. greeting runs after the client
// is registered, so nothing published in between is lost.
func (h *Hub) serve(conn *websocket.Conn, feed string, greeting func() [][]byte) {
	c := h.register(feed)
	defer h.unregister(c)
	defer conn.Close()
	frames := greeting()

	h.logger.Infof("WebSocket connected: %s | %s", c.id, types.StatusActive)
	defer h.logger.Infof("WebSocket disconnected: %s | %s", c.id, types.StatusIdle)

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// Reader: only needed to process control frames and notice close.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for _, f := range frames {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, f); err != nil {
			return
		}
	}

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
