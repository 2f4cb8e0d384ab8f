package broadcast

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/contrib/websocket"
)

const (
	writeWait = 10 * time.Second

	// sendBufferSize is how many frames may wait for a client before it is dropped.
	sendBufferSize = 256
)

// Conn is the part of a WebSocket connection the hub writes to.
// *websocket.Conn satisfies it.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Client represents a connected WebSocket client. Frames queue on send and
// are written by the client's own write pump.
type Client struct {
	ID   string
	Conn Conn

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// NewClient creates a client with an empty send queue.
func NewClient(id string, conn Conn) *Client {
	return &Client{
		ID:   id,
		Conn: conn,
		send: make(chan []byte, sendBufferSize),
		done: make(chan struct{}),
	}
}

// Done is closed once the write pump has exited and closed the connection.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) closeSend() {
	c.closeOnce.Do(func() { close(c.send) })
}

// Frame is the JSON structure sent to WebSocket clients.
type Frame struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Delivery is a frame addressed to a set of connection ids.
type Delivery struct {
	Targets []string
	Frame   Frame
}

// Hub owns the WebSocket connections. Its loop only enqueues frames, so a
// stalled socket never holds up delivery to anyone else.
type Hub struct {
	clients    map[string]*Client // clientID -> Client
	register   chan *Client
	unregister chan *Client
	deliver    chan *Delivery
	done       chan struct{}
	mu         sync.RWMutex
	logger     types.Logger
}

// NewHub creates a new Hub.
func NewHub(logger types.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		deliver:    make(chan *Delivery, 256),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run starts the hub's main loop. It accepts a context for graceful shutdown.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("Hub shutting down")
			h.closeAllClients()
			close(h.done)
			return
		case client := <-h.register:
			h.handleRegister(client)
		case client := <-h.unregister:
			h.handleUnregister(client)
		case d := <-h.deliver:
			h.handleDeliver(d)
		}
	}
}

// Wait blocks until the hub has stopped.
func (h *Hub) Wait() {
	<-h.done
}

// closeAllClients stops every write pump. Each pump closes its connection.
func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.clients {
		client.closeSend()
	}
	h.clients = make(map[string]*Client)
}

func (h *Hub) handleRegister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client.ID] = client
	h.logger.Debug("Client registered", "clientID", client.ID)
}

func (h *Hub) handleUnregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if current, ok := h.clients[client.ID]; ok && current == client {
		delete(h.clients, client.ID)
		h.logger.Debug("Client unregistered", "clientID", client.ID)
	}
	client.closeSend()
}

func (h *Hub) handleDeliver(d *Delivery) {
	data, err := json.Marshal(d.Frame)
	if err != nil {
		h.logger.Error("Failed to marshal frame", "type", d.Frame.Type, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, id := range d.Targets {
		client, ok := h.clients[id]
		if !ok {
			continue
		}
		select {
		case client.send <- data:
		default:
			h.logger.Warn("Client send queue full, dropping client", "clientID", id)
			delete(h.clients, id)
			client.closeSend()
		}
	}
}

// writePump writes queued frames until the queue is closed or a write fails.
func (h *Hub) writePump(client *Client) {
	defer func() {
		_ = client.Conn.Close()
		close(client.done)
	}()

	for data := range client.send {
		_ = client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := client.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.logger.Warn("Failed to send to client", "clientID", client.ID, "error", err)
			return
		}
	}
}

// Register adds a client created by NewClient and starts its write pump.
func (h *Hub) Register(client *Client) {
	go h.writePump(client)
	select {
	case h.register <- client:
	case <-h.done:
		client.closeSend()
	}
}

// Unregister removes a client and stops its write pump.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
		client.closeSend()
	}
}

// Deliver queues a frame for the given connection ids.
func (h *Hub) Deliver(targets []string, eventType string, payload any) {
	d := &Delivery{
		Targets: append([]string(nil), targets...),
		Frame:   Frame{Type: eventType, Payload: payload},
	}
	select {
	case h.deliver <- d:
	case <-h.done:
	}
}

// Send queues a frame for a single connection.
func (h *Hub) Send(clientID, eventType string, payload any) {
	h.Deliver([]string{clientID}, eventType, payload)
}

// ClientCount returns the total number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
