package protocol

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/Lakunake/Sync-Player/internal/auth"
	"github.com/Lakunake/Sync-Player/internal/clock"
	"github.com/Lakunake/Sync-Player/internal/config"
	"github.com/Lakunake/Sync-Player/internal/media"
	"github.com/Lakunake/Sync-Player/internal/metrics"
	"github.com/Lakunake/Sync-Player/internal/room"
	"github.com/Lakunake/Sync-Player/internal/session"
	"github.com/Lakunake/Sync-Player/internal/store"
)

// rejectDelay gives a client time to read a terminal auth rejection
// before the socket goes away.
const rejectDelay = time.Second

// Dispatcher is the single inbound pipeline: validate, resolve the room,
// take its write lock, route, broadcast. One instance serves the whole
// process.
type Dispatcher struct {
	cfg        *config.Config
	clk        clock.Clock
	hub        *session.Hub
	rooms      *room.Registry
	admins     *auth.Admins
	limiter    *session.RateLimiter
	mem        *store.Memory
	roomAdmins *store.RoomAdmins
	logs       *store.EventLog
	library    media.Library
	metrics    *metrics.Metrics

	// legacyCode is the implicit room used when rooms are disabled
	// (SERVER_MODE=false); empty in multi-room mode.
	legacyCode string
}

func NewDispatcher(
	cfg *config.Config,
	clk clock.Clock,
	hub *session.Hub,
	rooms *room.Registry,
	admins *auth.Admins,
	mem *store.Memory,
	roomAdmins *store.RoomAdmins,
	logs *store.EventLog,
	library media.Library,
	m *metrics.Metrics,
) *Dispatcher {
	d := &Dispatcher{
		cfg:        cfg,
		clk:        clk,
		hub:        hub,
		rooms:      rooms,
		admins:     admins,
		limiter:    session.NewRateLimiter(clk),
		mem:        mem,
		roomAdmins: roomAdmins,
		logs:       logs,
		library:    library,
		metrics:    m,
	}
	if !cfg.ServerMode {
		legacy := rooms.Create("Watch Party", true, "")
		d.legacyCode = legacy.Code
	}
	hub.OnDisconnect = d.Disconnected
	return d
}

// LegacyCode exposes the implicit room's code ("" in multi-room mode).
func (d *Dispatcher) LegacyCode() string { return d.legacyCode }

// Handle processes one inbound frame on the connection's read pump.
func (d *Dispatcher) Handle(c *session.Conn, raw []byte) {
	if ok, retry := d.limiter.Allow(c.RemoteAddr); !ok {
		d.metrics.RateLimited.Inc()
		c.Send(EvRateLimitError, RateLimitResp{
			Message:    "Too many events, slow down",
			RetryAfter: retry.Seconds(),
		})
		return
	}

	var msg session.Message
	if err := json.Unmarshal(raw, &msg); err != nil || msg.Event == "" {
		slog.Warn("dropping malformed frame", "conn", c.ID, "error", err)
		return
	}
	d.metrics.EventsIn.WithLabelValues(msg.Event).Inc()

	if adminOnly[msg.Event] {
		r, perr := d.roomOf(c, "")
		if perr != nil {
			c.Send(EvAdminError, AdminErrorResp{Event: msg.Event, Message: perr.Message})
			return
		}
		if !d.isRoomAdmin(c, r) {
			c.Send(EvAdminError, AdminErrorResp{Event: msg.Event, Message: "Admin only"})
			return
		}
	}

	switch msg.Event {
	case EvCreateRoom:
		d.handleCreateRoom(c, msg.Data)
	case EvJoinRoom:
		d.handleJoinRoom(c, msg.Data)
	case EvLeaveRoom:
		d.handleLeaveRoom(c)
	case EvDeleteRoom:
		d.handleDeleteRoom(c, msg.Data)
	case EvGetRooms:
		c.Send(EvRoomsUpdated, d.rooms.ListPublic())
	case EvInitialState:
		d.handleInitialState(c)
	case EvRequestSync:
		d.handleRequestSync(c)
	case EvControl:
		d.handleControl(c, msg.Data)
	case EvSetPlaylist:
		d.handleSetPlaylist(c, msg.Data)
	case EvPlaylistJump, EvPlaylistNext:
		d.handlePlaylistJump(c, msg.Data)
	case EvPlaylistOrder:
		d.handleReorder(c, msg.Data)
	case EvSkipToNext:
		d.handleSkipToNext(c)
	case EvTrackChange:
		d.handleTrackChange(c, msg.Data)
	case EvBslAdminReg:
		d.handleAdminRegister(c, msg.Data)
	case EvBslCheck:
		d.handleBslCheck(c)
	case EvBslGetStatus:
		d.handleBslGetStatus(c)
	case EvBslFolder:
		d.handleBslFolder(c, msg.Data)
	case EvBslManualMatch:
		d.handleBslManualMatch(c, msg.Data)
	case EvBslSetDrift:
		d.handleBslSetDrift(c, msg.Data)
	case EvClientRegister:
		d.handleClientRegister(c, msg.Data)
	case EvGetClientList:
		d.handleGetClientList(c)
	case EvSetClientName:
		d.handleSetClientName(c, msg.Data)
	case EvSetDisplayName:
		d.handleSetDisplayName(c, msg.Data)
	case EvChatMessage:
		d.handleChat(c, msg.Data)
	default:
		slog.Warn("unknown event", "event", msg.Event, "conn", c.ID)
	}
}

// Disconnected is the hub's post-unregister hook.
func (d *Dispatcher) Disconnected(c *session.Conn) {
	d.admins.Drop(c.ID)
	d.metrics.Connections.Set(float64(d.hub.Count()))

	code := c.Room()
	if code == "" {
		return
	}
	r, ok := d.rooms.Find(code)
	if !ok {
		return
	}
	r.Mu.Lock()
	r.RemoveViewer(c.ID)
	d.broadcastViewerCount(code, r.ViewerCount())
	r.Mu.Unlock()
}

// roomOf resolves the target room: an explicit code, the connection's
// current room, or the implicit legacy room.
func (d *Dispatcher) roomOf(c *session.Conn, explicit string) (*room.Room, *Error) {
	code := explicit
	if code == "" {
		code = c.Room()
	}
	if code == "" {
		code = d.legacyCode
	}
	if code == "" {
		return nil, Errf(KindNotFound, "not in a room")
	}
	r, ok := d.rooms.Find(code)
	if !ok {
		return nil, Errf(KindNotFound, "Room not found")
	}
	return r, nil
}

// isRoomAdmin accepts the live admin connection, or a fingerprint that
// matches the room's admin in memory or on disk. A match from disk
// repopulates the in-memory fingerprint, which is how admin authority
// survives restarts.
func (d *Dispatcher) isRoomAdmin(c *session.Conn, r *room.Room) bool {
	fp := c.Fingerprint()
	r.Mu.Lock()
	defer r.Mu.Unlock()

	if r.AdminConnID == c.ID {
		return true
	}
	if fp == "" {
		return false
	}
	if r.AdminFingerprint == fp {
		d.claimAdminLocked(c, r)
		return true
	}
	if saved, ok := d.roomAdmins.Lookup(r.Code); ok && saved == fp {
		r.AdminFingerprint = saved
		d.claimAdminLocked(c, r)
		return true
	}
	return false
}

// claimAdminLocked moves the single admin slot to c. Caller holds r.Mu.
func (d *Dispatcher) claimAdminLocked(c *session.Conn, r *room.Room) {
	if r.AdminConnID != "" && r.AdminConnID != c.ID {
		if old, ok := d.hub.Get(r.AdminConnID); ok {
			old.SetAdmin(false)
		}
	}
	r.AdminConnID = c.ID
	c.SetAdmin(true)
}

func (d *Dispatcher) broadcast(roomCode, event string, payload any) {
	d.metrics.Broadcasts.WithLabelValues(event).Inc()
	d.hub.Broadcast(roomCode, event, payload)
}

func (d *Dispatcher) broadcastViewerCount(roomCode string, count int) {
	d.broadcast(roomCode, EvViewerCount, count)
	if d.legacyCode != "" {
		d.broadcast(roomCode, EvClientCount, count)
	}
}

// RefreshTracks re-probes one file's track set and pushes updated
// playlists to every room that queues it. Called after an extract job
// lands new sidecars.
func (d *Dispatcher) RefreshTracks(filename string) {
	ts, err := d.library.TracksFor(filename)
	if err != nil {
		slog.Warn("track refresh failed", "file", filename, "error", err)
		return
	}
	for _, r := range d.rooms.All() {
		r.Mu.Lock()
		touched := false
		for i := range r.Playlist.Items {
			if lm := r.Playlist.Items[i].Local; lm != nil && lm.Filename == filename {
				lm.Tracks = ts
				touched = true
			}
		}
		if touched {
			d.broadcast(r.Code, EvPlaylistUpdate, r.Playlist.Snapshot())
		}
		r.Mu.Unlock()
	}
}
