package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/playgomoku/backend/internal/game"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = 30 * time.Second
	maxMessageSize = 65536
	sendBufferSize = 256
)

// Client is one player's WebSocket connection.
type Client struct {
	conn     *websocket.Conn
	playerID string
	info     *game.PlayerInfo
	send     chan []byte

	hub     *Hub
	manager *game.Manager

	closeOnce sync.Once
}

func (c *Client) closeSend() {
	c.closeOnce.Do(func() { close(c.send) })
}

// writePump drains the send channel to the connection and keeps it alive
// with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("[WS] Write error for player %s: %v", c.playerID, err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Printf("[WS] Ping error for player %s: %v", c.playerID, err)
				return
			}
		}
	}
}

// readPump reads client messages until the connection drops, then runs the
// disconnect handling for this player unless a newer connection took over.
func (c *Client) readPump() {
	defer func() {
		if c.hub.unregister(c) {
			log.Printf("[WS] Player %s disconnected", c.playerID)
			c.manager.HandleDisconnect(context.Background(), c.playerID)
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[WS] Unexpected close for player %s: %v", c.playerID, err)
			}
			break
		}

		var msg Message
		if err := json.Unmarshal(message, &msg); err != nil {
			c.sendError(game.CodeValidation, "invalid message")
			continue
		}
		c.handleMessage(msg)
	}
}

func (c *Client) sendError(code, message string) {
	c.hub.ToPlayer(c.playerID, game.EventError, map[string]any{
		"code":    code,
		"message": message,
	})
}

// reportErr relays an engine error to the client. A nil error is silent.
func (c *Client) reportErr(err error) {
	if err == nil {
		return
	}
	c.sendError(game.ErrorCode(err), err.Error())
}
