// handlers/hub.go - WebSocket connection hub
package handlers

import (
	"log"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"

	"quizparty/services"
)

const (
	// WebSocket timeouts
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 15 * time.Second

	// Send channel buffer size
	sendBufferSize = 256
)

// Message is the wire envelope for every WebSocket frame, both directions.
type Message struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Client is one live WebSocket connection. All writes go through the send
// channel so the write pump is the only goroutine touching the socket for
// output.
type Client struct {
	ConnectionID    string
	UserID          string
	IsAuthenticated bool

	conn *websocket.Conn
	send chan Message
	once sync.Once
}

// sendMessage queues a frame for the client. A full buffer drops the frame
// rather than blocking the dispatcher behind a slow reader.
func (c *Client) sendMessage(event string, data interface{}) {
	select {
	case c.send <- Message{Event: event, Data: data}:
	default:
		log.Printf("⚠️ Send buffer full for connection %s, dropping %s", c.ConnectionID, event)
	}
}

// closeSend closes the send channel exactly once.
func (c *Client) closeSend() {
	c.once.Do(func() { close(c.send) })
}

// writePump drains the send channel onto the socket and keeps the
// connection alive with pings. Exits when the channel closes or a write
// fails.
func (c *Client) writePump() {
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
			if err := c.conn.WriteJSON(msg); err != nil {
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

// Hub tracks every live client by connection id and fans events out to
// rooms. It satisfies services.Emitter so the timer and cleanup services
// can broadcast without knowing about sockets.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]*Client
	registry *services.RoomRegistry
}

// NewHub builds a hub over the room registry.
func NewHub(registry *services.RoomRegistry) *Hub {
	return &Hub{
		clients:  make(map[string]*Client),
		registry: registry,
	}
}

// Register adds a client and starts its write pump.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	h.clients[client.ConnectionID] = client
	h.mu.Unlock()
	go client.writePump()
}

// Unregister removes the client and closes its send channel. Idempotent.
func (h *Hub) Unregister(connectionID string) {
	h.mu.Lock()
	client, ok := h.clients[connectionID]
	if ok {
		delete(h.clients, connectionID)
	}
	h.mu.Unlock()
	if ok {
		client.closeSend()
	}
}

// Get returns the client for a connection id, or nil.
func (h *Hub) Get(connectionID string) *Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.clients[connectionID]
}

// Count returns the number of live connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ToRoom broadcasts an event to every live connection in the room, host
// included.
func (h *Hub) ToRoom(pin, event string, data interface{}) {
	room := h.registry.Get(pin)
	if room == nil {
		return
	}
	ids := room.ConnectionIDs()

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, id := range ids {
		if client, ok := h.clients[id]; ok {
			client.sendMessage(event, data)
		}
	}
}

// ToRoomExcept broadcasts to the room minus one connection. Used to give
// the host a different view of the same event than everyone else.
func (h *Hub) ToRoomExcept(pin, exceptID, event string, data interface{}) {
	room := h.registry.Get(pin)
	if room == nil {
		return
	}
	ids := room.ConnectionIDs()

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, id := range ids {
		if id == exceptID {
			continue
		}
		if client, ok := h.clients[id]; ok {
			client.sendMessage(event, data)
		}
	}
}

// ToConnection sends an event to one connection. Unknown ids are dropped
// silently: the client may have just disconnected.
func (h *Hub) ToConnection(connectionID, event string, data interface{}) {
	h.mu.RLock()
	client, ok := h.clients[connectionID]
	h.mu.RUnlock()
	if ok {
		client.sendMessage(event, data)
	}
}
