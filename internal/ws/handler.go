package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"nhooyr.io/websocket"
)

const (
	writeTimeout = 10 * time.Second
	readTimeout  = 60 * time.Second
	pingPeriod   = 30 * time.Second
	sendBuffer   = 256
)

// HandleWebSocket upgrades the request and streams alteration progress to
// the client until it disconnects. The client receives the latest status
// immediately and again whenever it sends a sync message.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.logger.Error("websocket accept failed", "error", err)
		return
	}

	client := &Client{hub: h, send: make(chan []byte, sendBuffer), conn: conn}
	h.register <- client
	client.sendSnapshot()

	go client.writePump(r.Context())
	client.readPump(r.Context())
}

func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				c.hub.logger.Debug("websocket client disconnected normally")
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.hub.logger.Debug("ignoring malformed websocket message", "error", err)
			continue
		}
		switch msg.Type {
		case MsgSync:
			c.sendSnapshot()
		default:
			c.hub.logger.Debug("ignoring websocket message", "type", msg.Type)
		}
	}
}

// sendSnapshot queues the current status for the client, if there is one.
func (c *Client) sendSnapshot() {
	if c.hub.snapshot == nil {
		return
	}
	data, err := c.hub.snapshot()
	if err != nil || data == nil {
		return
	}
	msg, err := NewMessage(MsgSnapshot, json.RawMessage(data))
	if err != nil {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				c.conn.Close(websocket.StatusNormalClosure, "")
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Write(writeCtx, websocket.MessageText, message)
			cancel()
			if err != nil {
				return
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}

		case <-ctx.Done():
			return
		}
	}
}
