package protocol

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/Lakunake/Sync-Player/internal/bsl"
	"github.com/Lakunake/Sync-Player/internal/room"
	"github.com/Lakunake/Sync-Player/internal/session"
)

func (d *Dispatcher) handleAdminRegister(c *session.Conn, data json.RawMessage) {
	var req AdminRegisterReq
	if err := json.Unmarshal(data, &req); err != nil || req.Fingerprint == "" {
		c.Send(EvAdminAuthResult, AdminAuthResp{Success: false, Reason: "Fingerprint required"})
		return
	}

	// A connection that already passed the lock with this fingerprint can
	// re-register (room switch, page rehydration) without another store read.
	if !d.admins.Verified(c.ID) || c.Fingerprint() != req.Fingerprint {
		if ok, reason := d.admins.Register(c.ID, req.Fingerprint); !ok {
			c.SetFingerprint(req.Fingerprint)
			c.Send(EvAdminAuthResult, AdminAuthResp{Success: false, Reason: reason})
			c.CloseAfter(rejectDelay)
			return
		}
	}
	c.SetFingerprint(req.Fingerprint)

	r, perr := d.roomOf(c, req.RoomCode)
	if perr != nil {
		c.Send(EvAdminAuthResult, AdminAuthResp{Success: false, Reason: perr.Message})
		return
	}

	if c.Room() != r.Code {
		d.hub.Join(c, r.Code)
	}

	now := d.clk.Now()
	r.Mu.Lock()
	switch {
	case r.AdminFingerprint == "":
		// Unclaimed room (the legacy default room starts this way); the
		// first registered admin takes it.
		r.AdminFingerprint = req.Fingerprint
		if err := d.roomAdmins.Save(r.Code, req.Fingerprint, now); err != nil {
			slog.Error("persist room admin", "room", r.Code, "error", err)
		}
	case r.AdminFingerprint != req.Fingerprint:
		r.Mu.Unlock()
		c.Send(EvAdminAuthResult, AdminAuthResp{Success: false, Reason: "Another device administers this room"})
		return
	}
	d.claimAdminLocked(c, r)
	if _, ok := r.Viewers[c.ID]; !ok {
		r.AddViewer(c.ID, req.Fingerprint, d.displayNameFor(req.Fingerprint, ""), now)
	}
	c.Send(EvAdminAuthResult, AdminAuthResp{Success: true})
	c.Send(EvBslStatusUpdate, d.bslStatusLocked(r))
	d.broadcastViewerCount(r.Code, r.ViewerCount())
	r.Mu.Unlock()

	d.logs.Room(r.Code, "admin-registered", nil)
}

// handleBslCheck re-prompts viewers that have not picked a folder yet.
// Viewers that already reported one are never prompted again.
func (d *Dispatcher) handleBslCheck(c *session.Conn) {
	r, perr := d.roomOf(c, "")
	if perr != nil {
		return
	}
	r.Mu.Lock()
	var targets []string
	for id := range r.Viewers {
		if id != r.AdminConnID && !r.BSL.HasFolder(id) {
			targets = append(targets, id)
		}
	}
	r.Mu.Unlock()

	for _, id := range targets {
		if conn, ok := d.hub.Get(id); ok {
			conn.Send(EvBslPrompt, nil)
		}
	}
}

func (d *Dispatcher) handleBslGetStatus(c *session.Conn) {
	r, perr := d.roomOf(c, "")
	if perr != nil {
		return
	}
	r.Mu.Lock()
	status := d.bslStatusLocked(r)
	r.Mu.Unlock()
	c.Send(EvBslStatusUpdate, status)
}

func (d *Dispatcher) handleBslFolder(c *session.Conn, data json.RawMessage) {
	var req BslFolderReq
	if err := json.Unmarshal(data, &req); err != nil {
		return
	}
	r, perr := d.roomOf(c, "")
	if perr != nil {
		return
	}

	fp := req.Fingerprint
	if fp == "" {
		fp = c.Fingerprint()
	} else {
		c.SetFingerprint(fp)
	}

	// Client filenames are compared, never executed; only obviously
	// dangerous entries are dropped.
	files := req.Files[:0]
	for _, f := range req.Files {
		if f.Name == "" || len(f.Name) > maxFilenameLen || strings.Contains(f.Name, "..") {
			continue
		}
		files = append(files, f)
	}

	matcher := d.matcherFor(fp)

	r.Mu.Lock()
	cs := r.BSL.Client(c.ID)
	cs.Fingerprint = fp
	cs.DisplayName = d.displayNameFor(fp, req.DisplayName)
	cs.FolderSelected = true
	cs.Files = files
	cands := candidatesLocked(r)
	cs.Matches = matcher.Match(files, cands)
	result := BslMatchResultResp{
		MatchedVideos: cs.Matches,
		TotalMatched:  len(cs.Matches),
		TotalPlaylist: len(cands),
	}
	drift := r.Drift.Values(fp)
	status := d.bslStatusLocked(r)
	adminID := r.AdminConnID
	r.Mu.Unlock()

	c.Send(EvBslMatchResult, result)
	if len(drift) > 0 {
		c.Send(EvBslDriftUpdate, BslDriftUpdateResp{DriftValues: drift})
	}
	d.sendBslStatus(adminID, status)
}

func (d *Dispatcher) handleBslManualMatch(c *session.Conn, data json.RawMessage) {
	var req BslManualMatchReq
	if err := json.Unmarshal(data, &req); err != nil || req.ClientFileName == "" {
		return
	}
	r, perr := d.roomOf(c, "")
	if perr != nil {
		return
	}

	r.Mu.Lock()
	cs, ok := r.BSL.Lookup(req.ClientConnectionID)
	if !ok || !r.Playlist.InRange(req.PlaylistIndex) {
		r.Mu.Unlock()
		return
	}
	lm := r.Playlist.Items[req.PlaylistIndex].Local
	if lm == nil {
		r.Mu.Unlock()
		return
	}
	cs.Matches[req.PlaylistIndex] = req.ClientFileName
	fp := cs.Fingerprint
	serverName := lm.Filename
	result := BslMatchResultResp{
		MatchedVideos: cs.Matches,
		TotalMatched:  len(cs.Matches),
		TotalPlaylist: len(candidatesLocked(r)),
	}
	status := d.bslStatusLocked(r)
	adminID := r.AdminConnID
	r.Mu.Unlock()

	// Remember the confirmed pair so future sessions match instantly.
	if fp != "" {
		if err := d.mem.SetMatch(fp, req.ClientFileName, serverName); err != nil {
			slog.Error("persist manual match", "error", err)
		}
	}
	if conn, ok := d.hub.Get(req.ClientConnectionID); ok {
		conn.Send(EvBslMatchResult, result)
	}
	d.sendBslStatus(adminID, status)
}

func (d *Dispatcher) handleBslSetDrift(c *session.Conn, data json.RawMessage) {
	var req BslSetDriftReq
	if err := json.Unmarshal(data, &req); err != nil || req.ClientFingerprint == "" {
		return
	}
	r, perr := d.roomOf(c, "")
	if perr != nil {
		return
	}

	r.Mu.Lock()
	r.Drift.Set(req.ClientFingerprint, req.PlaylistIndex, req.DriftSeconds)
	values := r.Drift.Values(req.ClientFingerprint)
	ids := r.ConnIDsByFingerprint(req.ClientFingerprint)
	status := d.bslStatusLocked(r)
	adminID := r.AdminConnID
	r.Mu.Unlock()

	for _, id := range ids {
		if conn, ok := d.hub.Get(id); ok {
			conn.Send(EvBslDriftUpdate, BslDriftUpdateResp{DriftValues: values})
		}
	}
	d.sendBslStatus(adminID, status)
}

// matcherFor builds a matcher primed with one fingerprint's persisted
// match memory and the library's size oracle.
func (d *Dispatcher) matcherFor(fingerprint string) bsl.Matcher {
	m := bsl.Matcher{
		Advanced:   d.cfg.BSLAdvancedMatch,
		Threshold:  d.cfg.BSLMatchThreshold,
		ServerSize: d.library.FileSize,
	}
	if fingerprint != "" {
		m.Persisted = d.mem.Matches(fingerprint)
	}
	return m
}

// candidatesLocked lists the local playlist items. Caller holds r.Mu.
func candidatesLocked(r *room.Room) []bsl.Candidate {
	var cands []bsl.Candidate
	for i, it := range r.Playlist.Items {
		if it.Local != nil {
			cands = append(cands, bsl.Candidate{Index: i, Filename: it.Local.Filename})
		}
	}
	return cands
}

// rematchLocked recomputes every reporting viewer's matches against the
// current playlist and pushes the results. Caller holds r.Mu.
func (d *Dispatcher) rematchLocked(r *room.Room) {
	cands := candidatesLocked(r)
	r.BSL.Each(func(connID string, cs *bsl.ClientState) {
		if !cs.FolderSelected {
			return
		}
		cs.Matches = d.matcherFor(cs.Fingerprint).Match(cs.Files, cands)
		if conn, ok := d.hub.Get(connID); ok {
			conn.Send(EvBslMatchResult, BslMatchResultResp{
				MatchedVideos: cs.Matches,
				TotalMatched:  len(cs.Matches),
				TotalPlaylist: len(cands),
			})
		}
	})
}

// bslStatusLocked builds the admin status view. Caller holds r.Mu.
func (d *Dispatcher) bslStatusLocked(r *room.Room) bsl.Status {
	return bsl.BuildStatus(r.BSL, r.Drift, candidatesLocked(r), bsl.AggregateMode(d.cfg.BSLMode))
}

func (d *Dispatcher) sendBslStatus(adminConnID string, status bsl.Status) {
	if adminConnID == "" {
		return
	}
	if conn, ok := d.hub.Get(adminConnID); ok {
		conn.Send(EvBslStatusUpdate, status)
	}
}
