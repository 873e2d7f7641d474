package ws

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/davidmr/geotrack/internal/domain"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10
)

// Client binds one websocket to the protocol engine. The read pump feeds
// inbound frames to the engine one at a time; the write pump drains the send
// queue. Shutdown is idempotent, so a transport error and an explicit close
// can both fire without duplicating leave handling.
type Client struct {
	id     string
	engine *Engine
	conn   *websocket.Conn
	send   chan []byte

	once   sync.Once
	quit   chan struct{}
	mu     sync.RWMutex
	closed bool
}

// NewClient creates a Client with a fresh connection id
func NewClient(engine *Engine, conn *websocket.Conn) *Client {
	return &Client{
		id:     uuid.New().String(),
		engine: engine,
		conn:   conn,
		send:   make(chan []byte, domain.SendBufferSize),
		quit:   make(chan struct{}),
	}
}

// ID returns the process-unique connection identifier
func (c *Client) ID() string {
	return c.id
}

// Send queues a message for delivery. A closed client or a full queue
// declines the message instead of blocking the broadcaster.
func (c *Client) Send(msg []byte) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// Start registers the connection and launches the pumps
func (c *Client) Start() {
	c.engine.Connect(c)
	go c.writePump()
	go c.readPump()
}

// shutdown releases the transport and stops the write pump exactly once
func (c *Client) shutdown() {
	c.once.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.quit)
		c.conn.Close()
	})
}

func (c *Client) readPump() {
	defer func() {
		c.engine.Disconnect(c)
		c.shutdown()
	}()

	c.conn.SetReadLimit(c.engine.maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	ctx := context.Background()
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		c.engine.Handle(ctx, c, message)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)
			if err := w.Close(); err != nil {
				return
			}

		case <-c.quit:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
