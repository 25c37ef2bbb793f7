// internal/broadcast/client.go
package broadcast

import (
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second    // Time allowed to write a message to the peer.
	pongWait       = 60 * time.Second    // Time allowed to read the next pong message from the peer.
	pingPeriod     = (pongWait * 9) / 10 // Send pings to peer with this period. Must be less than pongWait.
	maxMessageSize = 512                 // Maximum message size allowed from peer.
)

// Client pumps broadcast events from a hub subscription to one
// websocket connection.
type Client struct {
	conn   *websocket.Conn
	sub    *Subscription
	logger *slog.Logger
}

// NewClient wraps an upgraded connection and its hub subscription.
func NewClient(conn *websocket.Conn, sub *Subscription, logger *slog.Logger) *Client {
	return &Client{conn: conn, sub: sub, logger: logger}
}

// ReadPump drains inbound frames so close and pong control messages are
// processed. Observer connections are broadcast-only; any text the peer
// sends is discarded.
func (c *Client) ReadPump() {
	defer func() {
		c.sub.Close()
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("websocket read error", "subscriber", c.sub.ID, "error", err)
			}
			return
		}
	}
}

// WritePump forwards subscription events to the peer and keeps the
// connection alive with pings. Exits when the subscription ends or a
// write fails.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.sub.Close()
		c.conn.Close()
	}()
	for {
		select {
		case event := <-c.sub.Events():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, event); err != nil {
				c.logger.Warn("websocket write error", "subscriber", c.sub.ID, "error", err)
				return
			}
		case <-c.sub.Done():
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
