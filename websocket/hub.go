package websocket

import (
	"context"
	"log/slog"
	"sync"

	"github.com/Afterbark/youtube-to-mp3/types"
)

// Hub interface defines the methods for managing WebSocket connections
type Hub interface {
	Run(ctx context.Context)
	BroadcastTask(task types.Task)
	RegisterClient(client *Client)
	UnregisterClient(client *Client)
	ClientCount() int
}

// hub maintains the set of active clients and broadcasts task snapshots to them
type hub struct {
	// Registered clients mapped by task ID
	clients map[string]map[*Client]bool

	broadcast  chan types.ProgressMessage
	register   chan *Client
	unregister chan *Client

	// closed once Run returns so late register calls never block
	done chan struct{}

	mu     sync.RWMutex
	logger *slog.Logger
}

// NewHub creates a new WebSocket hub
func NewHub(logger *slog.Logger) Hub {
	return &hub{
		clients:    make(map[string]map[*Client]bool),
		broadcast:  make(chan types.ProgressMessage, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger.With("component", "websocket"),
	}
}

// Run starts the hub's main event loop
func (h *hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.taskID] == nil {
				h.clients[client.taskID] = make(map[*Client]bool)
			}
			h.clients[client.taskID][client] = true
			h.mu.Unlock()
			h.logger.Debug("client connected", "task_id", client.taskID)

		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()
			h.logger.Debug("client disconnected", "task_id", client.taskID)

		case message := <-h.broadcast:
			h.mu.Lock()
			h.deliver(message.TaskID, message)
			h.mu.Unlock()
		}
	}
}

// deliver sends to the subscribers of one task, dropping clients that cannot keep up
func (h *hub) deliver(taskID string, message types.ProgressMessage) {
	clients, ok := h.clients[taskID]
	if !ok {
		return
	}
	for client := range clients {
		select {
		case client.send <- message:
		default:
			h.remove(client)
		}
	}
}

func (h *hub) remove(client *Client) {
	clients, ok := h.clients[client.taskID]
	if !ok {
		return
	}
	if _, ok := clients[client]; ok {
		delete(clients, client)
		close(client.send)
		if len(clients) == 0 {
			delete(h.clients, client.taskID)
		}
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, clients := range h.clients {
		for client := range clients {
			h.remove(client)
		}
	}
}

// BroadcastTask queues a task snapshot for its subscribers. It never blocks
// the caller, which is usually a worker holding no locks.
func (h *hub) BroadcastTask(task types.Task) {
	select {
	case h.broadcast <- types.NewProgressMessage(task):
	default:
		h.logger.Warn("broadcast channel full, dropping update", "task_id", task.ID)
	}
}

// RegisterClient registers a new client with the hub
func (h *hub) RegisterClient(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		close(client.send)
	}
}

// UnregisterClient unregisters a client from the hub
func (h *hub) UnregisterClient(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// ClientCount returns the number of connected clients
func (h *hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, clients := range h.clients {
		n += len(clients)
	}
	return n
}
