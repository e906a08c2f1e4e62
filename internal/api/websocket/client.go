package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
)

type Client struct {
	Hub         *Hub
	Conn        *websocket.Conn
	ExecutionID string

	send    chan []byte
	mu      sync.Mutex
	closed  bool
	held    bool
	pending [][]byte
	closing bool
}

func NewClient(hub *Hub, conn *websocket.Conn, executionID string) *Client {
	return &Client{
		Hub:         hub,
		Conn:        conn,
		ExecutionID: executionID,
		send:        make(chan []byte, 256),
	}
}

// Send queues a message for the write pump. It reports false when the
// client is closed or its buffer is full. While the client is held the
// message is buffered until Release.
func (c *Client) Send(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.closing {
		return false
	}
	if c.held {
		if len(c.pending) >= cap(c.send) {
			return false
		}
		c.pending = append(c.pending, data)
		return true
	}
	return c.enqueueLocked(data)
}

// Hold buffers every message sent from now on until Release.
func (c *Client) Hold() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.held = true
}

// Release queues first ahead of the messages buffered since Hold and
// resumes direct delivery. A Close made while held takes effect here.
func (c *Client) Release(first []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if first != nil {
		c.enqueueLocked(first)
	}
	for _, data := range c.pending {
		c.enqueueLocked(data)
	}
	c.pending = nil
	c.held = false

	if c.closing {
		c.closeLocked()
	}
}

func (c *Client) enqueueLocked(data []byte) bool {
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// Close stops the write pump once the queued messages are flushed.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.held {
		c.closing = true
		return
	}
	c.closeLocked()
}

func (c *Client) closeLocked() {
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// ReadPump only drains control frames; the stream is server to client.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("execution_id", c.ExecutionID).Msg("WebSocket read error")
			}
			return
		}
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
