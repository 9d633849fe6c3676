package server

import (
	"encoding/json"
	"time"

	"stock-chatbot/src/models"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 2 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
)

// Client is one websocket connection of a user. It only receives.
type Client struct {
	hub    *APIServer
	conn   *websocket.Conn
	userID int64
	send   chan models.MDelivery
}

// -----------------------------------------------------------------------------

// readPump watches the connection: it answers pongs, discards inbound frames
// and unregisters the client once the peer goes away.
func (c *Client) readPump() {
	defer c.leave()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.NextReader(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.Logger.Info("WebSocket error for %d: %v", c.userID, err)
			}
			return
		}
	}
}

func (c *Client) leave() {
	select {
	case c.hub.unregister <- c:
	case <-c.hub.done:
	}
	c.conn.Close()
	c.hub.Logger.Debug("Client %d disconnected", c.userID)
}

// -----------------------------------------------------------------------------

// writePump drains send until the hub closes it, pinging in between
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer c.conn.Close()

	for {
		select {
		case d, ok := <-c.send:
			if !ok {
				c.write(websocket.CloseMessage, nil)
				return
			}
			payload, err := json.Marshal(d)
			if err != nil {
				c.hub.Logger.Error("Encoding delivery for %d failed: %v", c.userID, err)
				continue
			}
			if err := c.write(websocket.TextMessage, payload); err != nil {
				c.hub.Logger.Info("Write to %d failed: %v", c.userID, err)
				return
			}

		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) write(messageType int, payload []byte) error {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(messageType, payload)
}
