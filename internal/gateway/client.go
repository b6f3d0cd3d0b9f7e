package gateway

import (
	"encoding/json"
	"math"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	readLimit  = 4096
)

// Client represents a single WebSocket peer subscribed to one symbol.
type Client struct {
	conn   *websocket.Conn
	send   chan []byte
	hub    *Hub
	symbol string
}

// clientMsg is the only message shape clients send:
// {"ping":N} for latency probes, {"type":"REPLAY","since":N} for gap backfill.
type clientMsg struct {
	Type  string `json:"type"`
	Ping  int64  `json:"ping"`
	Since int64  `json:"since"`
}

// enqueue queues msg without blocking. Callers hold hub.mu so send is open.
func (c *Client) enqueue(msg []byte) bool {
	select {
	case c.send <- msg:
		return true
	default:
		return false
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
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// Coalesce queued messages into one frame, newline separated.
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(msg)
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}
			if err := w.Close(); err != nil {
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

func (c *Client) readPump() {
	defer func() {
		c.hub.RemoveClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(readLimit)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg clientMsg
		if json.Unmarshal(raw, &msg) != nil {
			continue
		}

		switch {
		case msg.Type == "REPLAY":
			c.replay(msg.Since)
		case msg.Ping > 0:
			pong, _ := json.Marshal(map[string]interface{}{
				"type":      "pong",
				"ping":      msg.Ping,
				"server_ts": time.Now().UnixMilli(),
			})
			c.hub.mu.RLock()
			c.enqueue(pong)
			c.hub.mu.RUnlock()
		}
	}
}

// replay queues every buffered envelope after since.
func (c *Client) replay(since int64) {
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	for _, e := range c.hub.replayRange(c.symbol, since+1, math.MaxInt64) {
		if !c.enqueue(e.Data) {
			return
		}
	}
}
