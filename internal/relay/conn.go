package relay

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// sendBuffer must absorb a burst of pulses from a full classroom;
	// a slow monitor gets messages dropped rather than stalling the hub.
	sendBuffer = 64
)

// Conn wraps a WebSocket connection with a buffered outbound queue so the
// hub never blocks on a slow consumer.
type Conn struct {
	ws        *websocket.Conn
	send      chan []byte
	closeOnce sync.Once
	done      chan struct{}
}

// NewConn wraps an upgraded WebSocket connection. Callers must run
// WritePump in a goroutine.
func NewConn(ws *websocket.Conn) *Conn {
	return &Conn{
		ws:   ws,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
}

// Queue marshals and enqueues a message. Returns false if the outbound
// buffer is full or the connection closed; telemetry is best-effort, so
// the message is simply dropped.
func (c *Conn) Queue(msg Message) bool {
	raw, err := json.Marshal(msg)
	if err != nil {
		return false
	}
	select {
	case <-c.done:
		return false
	case c.send <- raw:
		return true
	default:
		return false
	}
}

// WritePump drains the send queue onto the socket and keeps the
// connection alive with pings. Exits when Close is called or a write
// fails.
func (c *Conn) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case <-c.done:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			c.ws.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case raw := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, raw); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ReadEnvelope reads and decodes the next inbound envelope, refreshing the
// read deadline.
func (c *Conn) ReadEnvelope(env *Envelope) error {
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	return c.ws.ReadJSON(env)
}

// SetupPongHandler extends the read deadline whenever a pong arrives.
func (c *Conn) SetupPongHandler() {
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})
}

// Close shuts the connection down exactly once.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}
