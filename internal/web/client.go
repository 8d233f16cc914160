package web

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lawtest/lawtest/internal/consts"
	"github.com/lawtest/lawtest/internal/dispatch"
	"github.com/lawtest/lawtest/internal/logger"
)

// Client owns one WebSocket connection end-to-end. Messages are processed
// strictly in arrival order: the read loop dispatches each frame
// synchronously and queues its response before blocking on the next frame,
// so responses leave in request order and no two messages of one connection
// are ever in flight together.
type Client struct {
	ID         string
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	done       chan struct{}
	dispatcher *dispatch.Dispatcher
	maxMessage int64
}

// NewClient creates a client for an upgraded connection.
func NewClient(hub *Hub, conn *websocket.Conn, dispatcher *dispatch.Dispatcher, maxMessage int64) *Client {
	id, _ := generateClientID()

	if maxMessage <= 0 {
		maxMessage = consts.DefaultMaxMessageSize
	}

	return &Client{
		ID:         id,
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, 256),
		done:       make(chan struct{}),
		dispatcher: dispatcher,
		maxMessage: maxMessage,
	}
}

// ReadPump pumps messages from the WebSocket connection through the
// dispatcher. It exits only on transport failure or a close frame; a
// malformed or failing message produces an error envelope and the loop
// keeps waiting for the next message.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.maxMessage)
	_ = c.conn.SetReadDeadline(time.Now().Add(consts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(consts.PongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Error("WebSocket read error: %v", err)
			}
			break
		}

		response := c.dispatcher.Dispatch(ctx, message)
		if !c.queueResponse(response) {
			// Writer is gone; the in-flight result is discarded.
			return
		}
	}
}

// queueResponse hands a response to the write pump, blocking for
// backpressure rather than dropping. It reports false once the writer has
// exited.
func (c *Client) queueResponse(data []byte) bool {
	select {
	case c.send <- data:
		return true
	case <-c.done:
		return false
	}
}

// WritePump pumps queued responses to the WebSocket connection and keeps the
// peer alive with pings. It is the connection's only writer.
func (c *Client) WritePump() {
	ticker := time.NewTicker(consts.PingPeriod)
	defer func() {
		ticker.Stop()
		close(c.done)
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(consts.WriteWait))
			if !ok {
				// Hub closed the channel
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logger.Debug("WebSocket write error: %v", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(consts.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// generateClientID generates a random client ID
func generateClientID() (string, error) {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
