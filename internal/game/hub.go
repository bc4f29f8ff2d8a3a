package game

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
)

const (
	clientWriteDeadline = 10 * time.Second
	clientQueueSize     = 64
)

// Client is one connected viewer of a room. All writes to the connection go
// through the outbound queue and its single writer goroutine, so a handler
// reply can never interleave a frame with a hub broadcast.
type Client struct {
	conn          *websocket.Conn
	participantID string

	mu       sync.Mutex
	outbound chan []byte
	closed   bool
}

func newClient(conn *websocket.Conn, participantID string) *Client {
	return &Client{
		conn:          conn,
		participantID: participantID,
		outbound:      make(chan []byte, clientQueueSize),
	}
}

// Send queues a frame for this viewer. Never blocks; a viewer that cannot
// keep up loses messages, not the room.
func (c *Client) Send(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.outbound <- data:
	default:
		log.Printf("[WS] outbound queue full for %s, dropping message", c.participantID)
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.outbound)
	c.conn.Close()
}

// writePump owns the connection's write side.
func (c *Client) writePump() {
	for data := range c.outbound {
		c.conn.SetWriteDeadline(time.Now().Add(clientWriteDeadline))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Printf("[WS] write error for %s: %v", c.participantID, err)
		}
	}
}

// Hub fans the room's round state out to every connected viewer. One hub
// per room; nothing is shared between rooms.
type Hub struct {
	room       string
	clients    map[*Client]bool
	broadcast  chan any
	register   chan *Client
	unregister chan *Client
	stop       chan struct{}
	mu         sync.RWMutex
}

func NewHub(room string) *Hub {
	return &Hub{
		room:       room,
		clients:    make(map[*Client]bool),
		broadcast:  make(chan any, 100),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stop:       make(chan struct{}),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			log.Printf("[WS] %s joined room %s (total %d)", client.participantID, h.room, total)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.close()
				log.Printf("[WS] %s left room %s (total %d)", client.participantID, h.room, len(h.clients))
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			data, err := json.Marshal(message)
			if err != nil {
				log.Printf("[WS] marshal error: %v", err)
				continue
			}
			h.mu.RLock()
			for client := range h.clients {
				client.Send(data)
			}
			h.mu.RUnlock()

		case <-h.stop:
			h.mu.Lock()
			for client := range h.clients {
				client.close()
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return
		}
	}
}

func (h *Hub) Stop() {
	close(h.stop)
}

// Broadcast queues a message for every viewer. Never blocks the caller; a
// full queue drops the message since the next tick supersedes it.
func (h *Hub) Broadcast(message any) {
	select {
	case h.broadcast <- message:
	default:
		log.Printf("[WS] room %s broadcast queue full, dropping message", h.room)
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// RegisterClient attaches a connection and returns the client whose Send
// method is the only safe way to write to it from here on.
func (h *Hub) RegisterClient(conn *websocket.Conn, participantID string) *Client {
	client := newClient(conn, participantID)
	go client.writePump()
	h.register <- client
	return client
}

func (h *Hub) UnregisterClient(conn *websocket.Conn) {
	h.mu.RLock()
	for client := range h.clients {
		if client.conn == conn {
			h.mu.RUnlock()
			h.unregister <- client
			return
		}
	}
	h.mu.RUnlock()
}
