package services

import (
	"sync"

	"github.com/gorilla/websocket"

	"github.com/bellapacxx/raffle-backend/utils/logger"
)

// Client is one connected websocket observer. Observers only receive raffle
// events; inbound messages are read and discarded to keep the connection open.
type Client struct {
	conn *websocket.Conn
	hub  *Hub
	send chan []byte
	once sync.Once
}

func (c *Client) Close() {
	c.once.Do(func() {
		close(c.send)
		c.conn.Close()
	})
}

func (c *Client) readPump() {
	defer func() {
		c.hub.remove(c)
		c.conn.Close()
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debugf("[WS] observer disconnected normally")
			} else {
				logger.Debugf("[WS] observer read error: %v", err)
			}
			return
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			logger.Debugf("[WS] observer write error: %v", err)
			return
		}
	}
}
