package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8192

	// Outbound queue per connection
	sendBufferSize = 256
)

// Client is a single websocket connection. It starts unauthenticated; the
// authenticate event binds it to exactly one identity for its lifetime.
type Client struct {
	ID      string
	conn    *websocket.Conn
	gateway *Gateway
	send    chan []byte

	mu     sync.RWMutex
	userID string
	closed bool

	teardown sync.Once
}

// Identity returns the bound user id, or "" while unauthenticated.
func (c *Client) Identity() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID
}

func (c *Client) setIdentity(userID string) {
	c.mu.Lock()
	c.userID = userID
	c.mu.Unlock()
}

// ReadPump pumps frames from the websocket connection into the gateway.
// When the transport dies, for any reason, it triggers the exactly-once
// teardown.
func (c *Client) ReadPump() {
	defer func() {
		c.gateway.Disconnect(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			break
		}

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			// Malformed frame from a misbehaving client; skip it.
			continue
		}
		c.gateway.dispatch(c, env.Event, env.Data)
	}
}

// WritePump pumps queued frames to the websocket connection and keeps the
// connection alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
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

// Send enqueues a frame without blocking. A full buffer drops the frame;
// delivery to a slow peer is the transport's problem, not the
// broadcaster's. Sends after teardown are no-ops.
func (c *Client) Send(frame []byte) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.send <- frame:
	default:
	}
}

// closeSend marks the client closed and closes the outbound queue. The
// read lock in Send guarantees no enqueue straddles the close.
func (c *Client) closeSend() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	close(c.send)
}
