package server

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/livefir/livesync/internal/diff"
	"github.com/livefir/livesync/internal/remote"
)

// Message types exchanged with the page
const (
	MessageHello      = "hello"
	MessageEdits      = "edits"
	MessageErrors     = "errors"
	MessageDOM        = "dom"
	MessageReconciled = "reconciled"
)

// Message is one websocket frame in either direction
type Message struct {
	Type   string       `json:"type"`
	ID     string       `json:"id,omitempty"`
	Edits  []diff.Edit  `json:"edits,omitempty"`
	Errors []string     `json:"errors,omitempty"`
	Tree   *remote.Node `json:"tree,omitempty"`
}

// client is one connected page
type client struct {
	id   string
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *client) sendMessage(msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal %s message: %w", msg.Type, err)
	}
	return c.send(data)
}

// Hub tracks connected pages and fans edit lists out to them
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*client
	logger  *log.Logger
}

// NewHub creates an empty hub
func NewHub(logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.Default()
	}
	return &Hub{
		clients: make(map[string]*client),
		logger:  logger,
	}
}

func (h *Hub) add(conn *websocket.Conn) *client {
	c := &client{id: uuid.New().String(), conn: conn}

	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
	return c
}

func (h *Hub) remove(id string) {
	h.mu.Lock()
	delete(h.clients, id)
	h.mu.Unlock()
}

// Len returns the number of connected pages
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends msg to every page and returns how many received it.
// Pages that cannot be written to are dropped.
func (h *Hub) Broadcast(msg Message) int {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Printf("SERVER: failed to marshal %s message: %v", msg.Type, err)
		return 0
	}

	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	sent := 0
	for _, c := range clients {
		if err := c.send(data); err != nil {
			h.logger.Printf("SERVER: dropping client %s: %v", c.id, err)
			h.remove(c.id)
			c.conn.Close()
			continue
		}
		sent++
	}
	return sent
}
