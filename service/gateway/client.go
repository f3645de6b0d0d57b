package gateway

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"connectify/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Client is one live connection handle for an authenticated user. A user may
// hold several at once (multi-device); each maintains its own outbound queue
// consumed by a single writer goroutine, which is what gives per-handle
// delivery ordering.
type Client struct {
	ConnID      string
	UserID      string
	ConnectedAt time.Time

	ws   *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	closed bool
}

// NewClient wraps an upgraded websocket connection. ws may be nil in tests;
// Deliver and Close work without a transport.
func NewClient(connID, userID string, ws *websocket.Conn, queueSize int) *Client {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Client{
		ConnID:      connID,
		UserID:      userID,
		ConnectedAt: time.Now(),
		ws:          ws,
		send:        make(chan []byte, queueSize),
	}
}

// Deliver queues a payload without blocking. A full queue or a closed client
// counts as a missed delivery, not an error: durable state is the catch-up
// mechanism when the client reconnects.
func (c *Client) Deliver(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		logger.Warnf("[gateway] send queue full, dropping frame user=%s conn=%s", c.UserID, c.ConnID)
		return false
	}
}

// Close makes the client refuse further deliveries and stops the writer.
// Idempotent; racing with Deliver is safe.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
	if c.ws != nil {
		_ = c.ws.Close()
	}
}

// writePump is the single writer for this connection: outbound frames and
// keepalive pings. Exits when Close is called or a write fails.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		if c.ws != nil {
			_ = c.ws.Close()
		}
	}()
	for {
		select {
		case payload, ok := <-c.send:
			if !ok {
				if c.ws != nil {
					_ = c.ws.WriteControl(websocket.CloseMessage, []byte{}, time.Now().Add(writeWait))
				}
				return
			}
			if c.ws == nil {
				continue
			}
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				logger.Infof("[gateway] write failed user=%s conn=%s: %v", c.UserID, c.ConnID, err)
				return
			}
		case <-ticker.C:
			if c.ws == nil {
				continue
			}
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// queued reports the number of pending outbound frames. Test hook.
func (c *Client) queued() int { return len(c.send) }
