package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 64
)

// Client is one authenticated websocket channel. Writes go through the
// buffered send channel so the write pump is the only goroutine
// touching the connection for output.
type Client struct {
	UserID   int
	Username string
	Info     ConnInfo

	conn      *websocket.Conn
	send      chan []byte
	closeOnce sync.Once
	done      chan struct{}
}

func newClient(conn *websocket.Conn, userID int, username string, info ConnInfo) *Client {
	return &Client{
		UserID:   userID,
		Username: username,
		Info:     info,
		conn:     conn,
		send:     make(chan []byte, sendBufferSize),
		done:     make(chan struct{}),
	}
}

// enqueue offers a payload to the client without blocking. A full
// buffer means the consumer is not keeping up; the caller drops the
// client in that case.
func (c *Client) enqueue(payload []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// close shuts the client down exactly once. Safe to call from any
// goroutine; the read pump unblocks via the closed connection.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.conn != nil {
			c.conn.Close()
		}
	})
}

// writePump drains the send channel onto the connection and keeps the
// peer alive with pings. Runs as the connection's single writer.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case payload := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
