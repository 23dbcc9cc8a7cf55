// Package session is the connection layer: websocket handles with read and
// write pumps, room-scoped subscription groups with exactly-once fan-out,
// and the per-address event rate limiter.
package session

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/Lakunake/Sync-Player/internal/clock"
)

// Hub owns every live connection and the room broadcast groups. Rooms
// reference connections by id only; the hub resolves ids to handles.
type Hub struct {
	mu     sync.RWMutex
	conns  map[string]*Conn
	groups map[string]map[string]*Conn // room code -> conn id -> conn

	clk      clock.Clock
	upgrader websocket.Upgrader

	// OnDisconnect runs after a connection is unregistered (room cleanup).
	OnDisconnect func(*Conn)
}

func NewHub(clk clock.Clock) *Hub {
	return &Hub{
		conns:  make(map[string]*Conn),
		groups: make(map[string]map[string]*Conn),
		clk:    clk,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Same-origin is not meaningful for LAN watch parties that
			// are reached by IP; fingerprint + admin auth carry identity.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Serve upgrades an HTTP request and runs the connection's pumps. handle
// is invoked once per inbound frame, on the read pump goroutine.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, handle func(*Conn, []byte)) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := newConn(ws, r.RemoteAddr, h.clk.Now())
	h.register(c)

	go c.writePump()
	c.readPump(handle)

	h.Unregister(c.ID)
	if h.OnDisconnect != nil {
		h.OnDisconnect(c)
	}
}

func (h *Hub) register(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[c.ID] = c
}

// Unregister drops a connection from the hub and any group it was in.
func (h *Hub) Unregister(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.conns[connID]
	if !ok {
		return
	}
	delete(h.conns, connID)
	if room := c.Room(); room != "" {
		if g, ok := h.groups[room]; ok {
			delete(g, connID)
			if len(g) == 0 {
				delete(h.groups, room)
			}
		}
	}
	c.Close()
}

// Get resolves a connection id to its handle.
func (h *Hub) Get(connID string) (*Conn, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.conns[connID]
	return c, ok
}

// Join subscribes a connection to a room's broadcast group (leaving any
// previous group first).
func (h *Hub) Join(c *Conn, roomCode string) {
	roomCode = strings.ToUpper(roomCode)
	h.mu.Lock()
	defer h.mu.Unlock()
	if prev := c.Room(); prev != "" {
		if g, ok := h.groups[prev]; ok {
			delete(g, c.ID)
			if len(g) == 0 {
				delete(h.groups, prev)
			}
		}
	}
	g, ok := h.groups[roomCode]
	if !ok {
		g = make(map[string]*Conn)
		h.groups[roomCode] = g
	}
	g[c.ID] = c
	c.SetRoom(roomCode)
}

// Leave removes a connection from its current group.
func (h *Hub) Leave(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room := c.Room()
	if room == "" {
		return
	}
	if g, ok := h.groups[room]; ok {
		delete(g, c.ID)
		if len(g) == 0 {
			delete(h.groups, room)
		}
	}
	c.SetRoom("")
}

// Broadcast delivers one event to every current member of a room group,
// exactly once each. Frames are serialized once and shared.
func (h *Hub) Broadcast(roomCode, event string, payload any) {
	frame, err := Encode(event, payload)
	if err != nil {
		slog.Error("encode broadcast", "event", event, "error", err)
		return
	}
	h.mu.RLock()
	members := make([]*Conn, 0, len(h.groups[strings.ToUpper(roomCode)]))
	for _, c := range h.groups[strings.ToUpper(roomCode)] {
		members = append(members, c)
	}
	h.mu.RUnlock()
	for _, c := range members {
		c.enqueue(frame)
	}
}

// BroadcastAll delivers a process-wide event to every connection.
func (h *Hub) BroadcastAll(event string, payload any) {
	frame, err := Encode(event, payload)
	if err != nil {
		slog.Error("encode broadcast", "event", event, "error", err)
		return
	}
	h.mu.RLock()
	all := make([]*Conn, 0, len(h.conns))
	for _, c := range h.conns {
		all = append(all, c)
	}
	h.mu.RUnlock()
	for _, c := range all {
		c.enqueue(frame)
	}
}

// GroupMembers snapshots the connections currently in a room group.
func (h *Hub) GroupMembers(roomCode string) []*Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	g := h.groups[strings.ToUpper(roomCode)]
	out := make([]*Conn, 0, len(g))
	for _, c := range g {
		out = append(out, c)
	}
	return out
}

// Count returns the number of live connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// CloseAll tears down every connection (graceful shutdown).
func (h *Hub) CloseAll() {
	h.mu.Lock()
	conns := make([]*Conn, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()
	for _, c := range conns {
		c.Close()
	}
}
