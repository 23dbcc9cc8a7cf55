package session

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 256 * 1024 // folder inventories can be large
	sendQueueSize  = 64
)

// Message is the wire envelope: every frame is {"event": ..., "data": ...}.
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode renders an outbound envelope.
func Encode(event string, payload any) ([]byte, error) {
	var data json.RawMessage
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		data = raw
	}
	return json.Marshal(Message{Event: event, Data: data})
}

// Conn is one viewer's full-duplex channel. A dedicated read pump feeds the
// dispatcher and a write pump drains the send queue, so per-connection
// delivery order matches enqueue order.
type Conn struct {
	ID         string
	RemoteAddr string
	JoinedAt   time.Time

	mu          sync.Mutex
	roomCode    string
	isAdmin     bool
	fingerprint string

	ws        *websocket.Conn
	send      chan []byte
	closeOnce sync.Once
	done      chan struct{}
}

func newConn(ws *websocket.Conn, remoteAddr string, now time.Time) *Conn {
	return &Conn{
		ID:         uuid.NewString(),
		RemoteAddr: remoteAddr,
		JoinedAt:   now,
		ws:         ws,
		send:       make(chan []byte, sendQueueSize),
		done:       make(chan struct{}),
	}
}

func (c *Conn) Room() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomCode
}

func (c *Conn) SetRoom(code string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roomCode = code
}

func (c *Conn) IsAdmin() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isAdmin
}

func (c *Conn) SetAdmin(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.isAdmin = v
}

func (c *Conn) Fingerprint() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fingerprint
}

func (c *Conn) SetFingerprint(fp string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fingerprint = fp
}

// Send marshals and enqueues an event. A viewer that cannot drain its
// queue is cut loose rather than allowed to stall the room.
func (c *Conn) Send(event string, payload any) {
	frame, err := Encode(event, payload)
	if err != nil {
		slog.Error("encode outbound event", "event", event, "error", err)
		return
	}
	c.enqueue(frame)
}

func (c *Conn) enqueue(frame []byte) {
	select {
	case c.send <- frame:
	case <-c.done:
	default:
		slog.Warn("send queue full, dropping connection", "conn", c.ID)
		c.Close()
	}
}

// Close tears the connection down exactly once.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.ws.Close()
	})
}

// CloseAfter schedules a teardown, giving the client time to read a final
// rejection event first.
func (c *Conn) CloseAfter(d time.Duration) {
	time.AfterFunc(d, c.Close)
}

// writePump drains the send queue onto the socket and keeps the connection
// alive with pings.
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()
	for {
		select {
		case frame := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// readPump feeds raw inbound frames to handle until the peer goes away.
func (c *Conn) readPump(handle func(*Conn, []byte)) {
	defer c.Close()
	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("websocket closed unexpectedly", "conn", c.ID, "error", err)
			}
			return
		}
		handle(c, raw)
	}
}
