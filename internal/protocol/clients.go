package protocol

import (
	"encoding/json"
	"log/slog"

	"github.com/Lakunake/Sync-Player/internal/chat"
	"github.com/Lakunake/Sync-Player/internal/session"
)

func (d *Dispatcher) handleClientRegister(c *session.Conn, data json.RawMessage) {
	var req ClientRegisterReq
	if err := json.Unmarshal(data, &req); err != nil || req.Fingerprint == "" {
		return
	}
	c.SetFingerprint(req.Fingerprint)

	if name, ok := d.mem.ClientName(req.Fingerprint); ok {
		c.Send(EvNameUpdated, NameUpdatedResp{DisplayName: name})
	}

	// Without rooms, registering is joining: every connection lands in the
	// default room.
	if d.legacyCode != "" && c.Room() == "" {
		r, ok := d.rooms.Find(d.legacyCode)
		if !ok {
			return
		}
		d.hub.Join(c, r.Code)
		r.Mu.Lock()
		r.AddViewer(c.ID, req.Fingerprint, d.displayNameFor(req.Fingerprint, ""), d.clk.Now())
		d.broadcastViewerCount(r.Code, r.ViewerCount())
		r.Mu.Unlock()
	}
	d.metrics.Connections.Set(float64(d.hub.Count()))
}

func (d *Dispatcher) handleGetClientList(c *session.Conn) {
	r, perr := d.roomOf(c, "")
	if perr != nil {
		return
	}
	r.Mu.Lock()
	clients := viewerSummariesLocked(r)
	r.Mu.Unlock()
	c.Send(EvClientList, ClientListResp{Clients: clients})
}

// handleSetClientName renames one viewer by connection id (admin action).
func (d *Dispatcher) handleSetClientName(c *session.Conn, data json.RawMessage) {
	var req SetClientNameReq
	if err := json.Unmarshal(data, &req); err != nil {
		return
	}
	name, ok := ValidDisplayName(req.DisplayName)
	if !ok {
		return
	}
	r, perr := d.roomOf(c, "")
	if perr != nil {
		return
	}

	r.Mu.Lock()
	v, found := r.Viewers[req.ClientID]
	if !found {
		r.Mu.Unlock()
		return
	}
	v.DisplayName = name
	fp := v.Fingerprint
	if cs, ok := r.BSL.Lookup(req.ClientID); ok {
		cs.DisplayName = name
	}
	r.Mu.Unlock()

	d.persistName(fp, name)
	if conn, ok := d.hub.Get(req.ClientID); ok {
		conn.Send(EvNameUpdated, NameUpdatedResp{DisplayName: name})
	}
}

// handleSetDisplayName renames every connection of one device (admin
// action, keyed by fingerprint).
func (d *Dispatcher) handleSetDisplayName(c *session.Conn, data json.RawMessage) {
	var req SetDisplayNameReq
	if err := json.Unmarshal(data, &req); err != nil || req.Fingerprint == "" {
		return
	}
	name, ok := ValidDisplayName(req.DisplayName)
	if !ok {
		return
	}
	r, perr := d.roomOf(c, "")
	if perr != nil {
		return
	}

	r.Mu.Lock()
	ids := r.ConnIDsByFingerprint(req.Fingerprint)
	for _, id := range ids {
		r.Viewers[id].DisplayName = name
		if cs, ok := r.BSL.Lookup(id); ok {
			cs.DisplayName = name
		}
	}
	r.Mu.Unlock()

	d.persistName(req.Fingerprint, name)
	for _, id := range ids {
		if conn, ok := d.hub.Get(id); ok {
			conn.Send(EvNameUpdated, NameUpdatedResp{DisplayName: name})
		}
	}
}

func (d *Dispatcher) handleChat(c *session.Conn, data json.RawMessage) {
	if !d.cfg.ChatEnabled {
		return
	}
	var req ChatMessageReq
	if err := json.Unmarshal(data, &req); err != nil || req.Message == "" {
		return
	}
	r, perr := d.roomOf(c, "")
	if perr != nil {
		return
	}

	if newName, ok := chat.ParseRename(req.Message); ok {
		name, valid := ValidDisplayName(newName)
		if !valid {
			return
		}
		r.Mu.Lock()
		oldName := req.Sender
		fp := c.Fingerprint()
		if v, found := r.Viewers[c.ID]; found {
			if v.DisplayName != "" {
				oldName = v.DisplayName
			}
			v.DisplayName = name
			fp = v.Fingerprint
			if cs, ok := r.BSL.Lookup(c.ID); ok {
				cs.DisplayName = name
			}
		}
		r.Mu.Unlock()

		d.persistName(fp, name)
		c.Send(EvNameUpdated, NameUpdatedResp{DisplayName: name})
		d.broadcast(r.Code, EvChatMessage, ChatBroadcast{
			Message: chat.RenameNotice(oldName, name),
			System:  true,
		})
		return
	}

	sender := req.Sender
	r.Mu.Lock()
	if v, found := r.Viewers[c.ID]; found && v.DisplayName != "" {
		sender = v.DisplayName
	}
	r.Mu.Unlock()

	s, m := chat.Sanitize(sender, req.Message)
	d.broadcast(r.Code, EvChatMessage, ChatBroadcast{Sender: s, Message: m})
}

func (d *Dispatcher) persistName(fingerprint, name string) {
	if fingerprint == "" {
		return
	}
	if err := d.mem.SetClientName(fingerprint, name); err != nil {
		slog.Error("persist client name", "error", err)
	}
}
