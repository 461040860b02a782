// Package realtime pushes new notifications to members connected over
// websocket. It is a delivery shortcut; clients still poll the inbox.
package realtime

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sengunthar/matrimony/internal/service/notify"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Message is the frame written to clients.
type Message struct {
	Type         string       `json:"type"`
	Notification *notify.View `json:"notification,omitempty"`
}

// Client is one websocket connection. gorilla allows a single concurrent
// writer, hence the mutex.
type Client struct {
	userID uint64
	conn   *websocket.Conn
	mu     sync.Mutex
	closed chan struct{}
	once   sync.Once
}

func (c *Client) write(msgType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(msgType, data)
}

func (c *Client) close() {
	c.once.Do(func() {
		close(c.closed)
		c.conn.Close()
	})
}

// Hub tracks connections per user. A member may have several tabs open.
type Hub struct {
	mu      sync.RWMutex
	clients map[uint64]map[*Client]struct{}
	log     *slog.Logger
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[uint64]map[*Client]struct{}),
		log:     log.With("component", "realtime"),
	}
}

// Register adds conn for userID.
func (h *Hub) Register(userID uint64, conn *websocket.Conn) *Client {
	c := &Client{userID: userID, conn: conn, closed: make(chan struct{})}

	h.mu.Lock()
	set, ok := h.clients[userID]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[userID] = set
	}
	set[c] = struct{}{}
	h.mu.Unlock()

	h.log.Debug("websocket registered", "user_id", userID)
	return c
}

// Unregister removes and closes c.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if set, ok := h.clients[c.userID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.clients, c.userID)
		}
	}
	h.mu.Unlock()

	c.close()
	h.log.Debug("websocket unregistered", "user_id", c.userID)
}

// Connections returns how many sockets userID has open.
func (h *Hub) Connections(userID uint64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// Publish implements notify.Publisher. Offline users are skipped; the
// notification row is their copy.
func (h *Hub) Publish(userID uint64, v notify.View) {
	if h.Connections(userID) == 0 {
		h.log.Debug("no live sockets, push skipped", "user_id", userID)
		return
	}

	data, err := json.Marshal(Message{Type: "notification", Notification: &v})
	if err != nil {
		h.log.Error("failed to marshal notification", "err", err)
		return
	}

	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients[userID]))
	for c := range h.clients[userID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if err := c.write(websocket.TextMessage, data); err != nil {
			h.log.Warn("websocket write failed", "user_id", userID, "err", err)
			h.Unregister(c)
		}
	}
}

// Serve runs the connection until the peer goes away. Inbound frames are
// only read to process control messages.
func (h *Hub) Serve(userID uint64, conn *websocket.Conn) {
	c := h.Register(userID, conn)
	defer h.Unregister(c)

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go h.keepAlive(c)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("websocket closed", "user_id", userID, "err", err)
			}
			return
		}
	}
}

func (h *Hub) keepAlive(c *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-c.closed:
			return
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// CloseAll drops every connection; used on shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	var all []*Client
	for _, set := range h.clients {
		for c := range set {
			all = append(all, c)
		}
	}
	h.clients = make(map[uint64]map[*Client]struct{})
	h.mu.Unlock()

	for _, c := range all {
		c.close()
	}
}
