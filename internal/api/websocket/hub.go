package websocket

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// Hub tracks the websocket clients watching each background execution.
type Hub struct {
	execConns  map[string]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		execConns:  make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			if _, ok := h.execConns[client.ExecutionID]; !ok {
				h.execConns[client.ExecutionID] = make(map[*Client]bool)
			}
			h.execConns[client.ExecutionID][client] = true
			h.mu.Unlock()

			log.Debug().
				Str("execution_id", client.ExecutionID).
				Msg("WebSocket client connected")

		case client := <-h.unregister:
			h.mu.Lock()
			h.removeLocked(client)
			h.mu.Unlock()

			log.Debug().
				Str("execution_id", client.ExecutionID).
				Msg("WebSocket client disconnected")
		}
	}
}

func (h *Hub) removeLocked(client *Client) {
	conns, ok := h.execConns[client.ExecutionID]
	if !ok || !conns[client] {
		return
	}
	delete(conns, client)
	client.Close()
	if len(conns) == 0 {
		delete(h.execConns, client.ExecutionID)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, conns := range h.execConns {
		for client := range conns {
			client.Close()
		}
	}
	h.execConns = make(map[string]map[*Client]bool)
}

// Register adds a client. After the hub stopped the client is closed instead.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		client.Close()
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// BroadcastToExecution queues data for every client watching the
// execution. Clients that cannot keep up are dropped.
func (h *Hub) BroadcastToExecution(executionID string, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.execConns[executionID] {
		if !client.Send(data) {
			h.removeLocked(client)
		}
	}
}

// CloseExecution ends every stream of a finished execution.
func (h *Hub) CloseExecution(executionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.execConns[executionID] {
		client.Close()
	}
	delete(h.execConns, executionID)
}

func (h *Hub) GetConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for _, conns := range h.execConns {
		n += len(conns)
	}
	return n
}
