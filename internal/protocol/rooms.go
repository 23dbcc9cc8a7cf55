package protocol

import (
	"encoding/json"
	"log/slog"
	"sort"
	"strings"

	"github.com/Lakunake/Sync-Player/internal/room"
	"github.com/Lakunake/Sync-Player/internal/session"
)

const maxRoomNameLen = 64

func (d *Dispatcher) handleCreateRoom(c *session.Conn, data json.RawMessage) {
	var req CreateRoomReq
	if err := json.Unmarshal(data, &req); err != nil {
		c.Send(EvCreateRoom, CreateRoomResp{Error: "invalid payload"})
		return
	}
	if !d.cfg.ServerMode {
		c.Send(EvCreateRoom, CreateRoomResp{Error: "Rooms are disabled on this server"})
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" || len(name) > maxRoomNameLen {
		c.Send(EvCreateRoom, CreateRoomResp{Error: "Room name must be 1-64 characters"})
		return
	}
	if req.Fingerprint == "" {
		c.Send(EvCreateRoom, CreateRoomResp{Error: "Fingerprint required"})
		return
	}

	c.SetFingerprint(req.Fingerprint)
	if ok, reason := d.admins.Register(c.ID, req.Fingerprint); !ok {
		c.Send(EvAdminAuthResult, AdminAuthResp{Success: false, Reason: reason})
		c.Send(EvCreateRoom, CreateRoomResp{Error: reason})
		c.CloseAfter(rejectDelay)
		return
	}

	r := d.rooms.Create(name, req.IsPrivate, req.Fingerprint)
	if err := d.roomAdmins.Save(r.Code, req.Fingerprint, d.clk.Now()); err != nil {
		slog.Error("persist room admin", "room", r.Code, "error", err)
	}

	displayName := d.displayNameFor(req.Fingerprint, "")
	d.hub.Join(c, r.Code)
	r.Mu.Lock()
	r.AdminConnID = c.ID
	r.AddViewer(c.ID, req.Fingerprint, displayName, d.clk.Now())
	c.Send(EvCreateRoom, CreateRoomResp{Success: true, RoomCode: r.Code, RoomName: r.Name})
	d.broadcastViewerCount(r.Code, r.ViewerCount())
	r.Mu.Unlock()
	c.SetAdmin(true)

	d.metrics.Rooms.Set(float64(d.rooms.Count()))
	d.logs.Room(r.Code, "room-created", map[string]any{"name": name, "private": req.IsPrivate})
	d.logs.General("room-created", map[string]any{"room": r.Code})
	if !r.Private {
		d.hub.BroadcastAll(EvRoomsUpdated, d.rooms.ListPublic())
	}
}

func (d *Dispatcher) handleJoinRoom(c *session.Conn, data json.RawMessage) {
	var req JoinRoomReq
	if err := json.Unmarshal(data, &req); err != nil {
		c.Send(EvJoinRoom, JoinRoomResp{Error: "invalid payload"})
		return
	}
	r, perr := d.roomOf(c, req.RoomCode)
	if perr != nil {
		c.Send(EvJoinRoom, JoinRoomResp{Error: perr.Message})
		return
	}

	if req.Fingerprint != "" {
		c.SetFingerprint(req.Fingerprint)
	}
	displayName := d.displayNameFor(req.Fingerprint, req.Name)

	d.hub.Join(c, r.Code)
	isAdmin := d.isRoomAdmin(c, r)

	now := d.clk.Now()
	r.Mu.Lock()
	r.AddViewer(c.ID, req.Fingerprint, displayName, now)
	if d.cfg.JoinMode == "reset" && r.Playlist.Len() > 0 {
		r.State.Position = 0
		r.State.Anchor = now
	}

	c.Send(EvJoinRoom, JoinRoomResp{
		Success:  true,
		RoomName: r.Name,
		IsAdmin:  isAdmin,
		Viewers:  viewerSummariesLocked(r),
	})
	c.Send(EvPlaylistUpdate, r.Playlist.Snapshot())
	c.Send(EvPlaylistPos, PlaylistPosResp{CurrentIndex: r.Playlist.CurrentIndex})
	if name, ok := d.mem.ClientName(req.Fingerprint); ok {
		c.Send(EvNameUpdated, NameUpdatedResp{DisplayName: name})
	}
	if d.cfg.JoinMode == "reset" {
		// Everyone restarts from the beginning when someone joins.
		d.broadcast(r.Code, EvSync, r.Sync(now))
	} else {
		c.Send(EvSync, r.Sync(now))
	}
	d.broadcastViewerCount(r.Code, r.ViewerCount())
	r.Mu.Unlock()

	d.logs.Room(r.Code, "viewer-joined", map[string]any{"name": displayName})
}

func (d *Dispatcher) handleLeaveRoom(c *session.Conn) {
	code := c.Room()
	if code == "" {
		return
	}
	r, ok := d.rooms.Find(code)
	if !ok {
		d.hub.Leave(c)
		return
	}
	d.hub.Leave(c)
	c.SetAdmin(false)
	r.Mu.Lock()
	r.RemoveViewer(c.ID)
	d.broadcastViewerCount(code, r.ViewerCount())
	r.Mu.Unlock()
}

func (d *Dispatcher) handleDeleteRoom(c *session.Conn, data json.RawMessage) {
	var req DeleteRoomReq
	_ = json.Unmarshal(data, &req)

	r, perr := d.roomOf(c, req.RoomCode)
	if perr != nil {
		c.Send(EvAdminError, AdminErrorResp{Event: EvDeleteRoom, Message: perr.Message})
		return
	}
	// The whitelist check covered the connection's own room; an explicit
	// code targeting another room needs its own admin check.
	if req.RoomCode != "" && !strings.EqualFold(req.RoomCode, c.Room()) && !d.isRoomAdmin(c, r) {
		c.Send(EvAdminError, AdminErrorResp{Event: EvDeleteRoom, Message: "Admin only"})
		return
	}
	if r.Code == d.legacyCode {
		c.Send(EvAdminError, AdminErrorResp{Event: EvDeleteRoom, Message: "The default room cannot be deleted"})
		return
	}

	d.broadcast(r.Code, EvRoomDeleted, RoomDeletedResp{RoomCode: r.Code})
	for _, member := range d.hub.GroupMembers(r.Code) {
		d.hub.Leave(member)
		member.SetAdmin(false)
	}
	d.rooms.Delete(r.Code)
	if err := d.roomAdmins.Delete(r.Code); err != nil {
		slog.Error("drop room admin record", "room", r.Code, "error", err)
	}
	d.logs.DeleteRoom(r.Code)
	d.logs.General("room-deleted", map[string]any{"room": r.Code})
	d.metrics.Rooms.Set(float64(d.rooms.Count()))
	d.hub.BroadcastAll(EvRoomsUpdated, d.rooms.ListPublic())
}

func (d *Dispatcher) handleInitialState(c *session.Conn) {
	r, perr := d.roomOf(c, "")
	if perr != nil {
		return
	}
	now := d.clk.Now()
	r.Mu.Lock()
	sync := r.Sync(now)
	pl := r.Playlist.Snapshot()
	pos := r.Playlist.CurrentIndex
	count := r.ViewerCount()
	r.Mu.Unlock()

	c.Send(EvSync, sync)
	c.Send(EvPlaylistUpdate, pl)
	c.Send(EvPlaylistPos, PlaylistPosResp{CurrentIndex: pos})
	c.Send(EvViewerCount, count)
}

func (d *Dispatcher) handleRequestSync(c *session.Conn) {
	r, perr := d.roomOf(c, "")
	if perr != nil {
		return
	}
	now := d.clk.Now()
	r.Mu.Lock()
	sync := r.Sync(now)
	r.Mu.Unlock()
	c.Send(EvSync, sync)
}

// displayNameFor prefers the name persisted for a fingerprint over the
// name the client sent.
func (d *Dispatcher) displayNameFor(fingerprint, sent string) string {
	if fingerprint != "" {
		if name, ok := d.mem.ClientName(fingerprint); ok {
			return name
		}
	}
	if name, ok := ValidDisplayName(sent); ok {
		return name
	}
	return "Viewer"
}

// viewerSummariesLocked flattens the viewer map. Caller holds r.Mu.
func viewerSummariesLocked(r *room.Room) []ViewerSummary {
	out := make([]ViewerSummary, 0, len(r.Viewers))
	for id, v := range r.Viewers {
		out = append(out, ViewerSummary{
			ConnectionID: id,
			DisplayName:  v.DisplayName,
			Fingerprint:  v.Fingerprint,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DisplayName < out[j].DisplayName })
	return out
}
