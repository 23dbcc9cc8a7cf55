package protocol

import (
	"encoding/json"

	"github.com/Lakunake/Sync-Player/internal/playlist"
	"github.com/Lakunake/Sync-Player/internal/session"
)

func (d *Dispatcher) handleControl(c *session.Conn, data json.RawMessage) {
	r, perr := d.roomOf(c, "")
	if perr != nil {
		return
	}
	isAdmin := d.isRoomAdmin(c, r)
	if d.cfg.ClientControlsDisabled && !isAdmin {
		c.Send(EvAdminError, AdminErrorResp{Event: EvControl, Message: "Playback controls are admin only"})
		return
	}

	var req ControlReq
	if err := json.Unmarshal(data, &req); err != nil {
		return
	}

	now := d.clk.Now()
	r.Mu.Lock()
	defer r.Mu.Unlock()

	switch req.Action {
	case "playpause":
		target := !r.State.IsPlaying
		if req.State != nil {
			target = *req.State
		}
		r.State.SetPlaying(target, now)
	case "seek":
		if req.Time == nil || !ValidTime(*req.Time) {
			return
		}
		if !r.State.Seek(*req.Time, now) {
			return
		}
	case "skip":
		secs := float64(d.cfg.SkipSeconds)
		if req.Seconds != nil && *req.Seconds > 0 {
			secs = *req.Seconds
		}
		if req.Direction == "backward" {
			secs = -secs
		}
		r.State.SkipRelative(secs, now)
	case "skipIntro":
		r.State.SkipRelative(float64(d.cfg.SkipIntroSeconds), now)
	case "rate":
		if req.Rate == nil || !r.State.SetRate(*req.Rate, now) {
			return
		}
	case "selectTrack":
		if req.Index == nil || !ValidTrackIndex(req.Kind, *req.Index) {
			return
		}
		if !r.SelectTrack(req.Kind, *req.Index, now) {
			return
		}
	case "":
		// Full state push from a client-side player; only honoured while
		// client sync is enabled (the admin's pushes always are).
		if d.cfg.ClientSyncDisabled && !isAdmin {
			return
		}
		if req.Position != nil && ValidTime(*req.Position) {
			r.State.Seek(*req.Position, now)
		}
		if req.PushRate != nil {
			r.State.SetRate(*req.PushRate, now)
		}
		if req.IsPlaying != nil {
			r.State.SetPlaying(*req.IsPlaying, now)
		}
	default:
		return
	}

	d.broadcast(r.Code, EvSync, r.Sync(now))
}

func (d *Dispatcher) handleSetPlaylist(c *session.Conn, data json.RawMessage) {
	var req SetPlaylistReq
	if err := json.Unmarshal(data, &req); err != nil {
		c.Send(EvPlaylistSet, PlaylistSetResp{Error: "invalid payload"})
		return
	}
	r, perr := d.roomOf(c, "")
	if perr != nil {
		c.Send(EvPlaylistSet, PlaylistSetResp{Error: perr.Message})
		return
	}

	items := playlist.DecodeItems(req.Playlist)
	kept := items[:0]
	for _, it := range items {
		if it.Local != nil {
			if !ValidFilename(it.Local.Filename) {
				continue
			}
			d.enrichLocal(it.Local)
		}
		kept = append(kept, it)
	}

	// Broadcasts stay under the lock so every viewer sees the update,
	// position and sync in the same relative order.
	now := d.clk.Now()
	r.Mu.Lock()
	r.SetPlaylist(kept, req.MainVideoIndex, req.StartTime, d.cfg.VideoAutoplay, now)
	d.rematchLocked(r)
	c.Send(EvPlaylistSet, PlaylistSetResp{Success: true})
	d.broadcast(r.Code, EvPlaylistUpdate, r.Playlist.Snapshot())
	d.broadcast(r.Code, EvPlaylistPos, PlaylistPosResp{CurrentIndex: r.Playlist.CurrentIndex})
	d.broadcast(r.Code, EvSync, r.Sync(now))
	d.sendBslStatus(r.AdminConnID, d.bslStatusLocked(r))
	r.Mu.Unlock()

	d.logs.Room(r.Code, "playlist-set", map[string]any{"items": len(kept)})
}

// enrichLocal fills in the server-side metadata of a local item: probed
// tracks merged with sidecars, the tag-derived display title, and default
// track selections.
func (d *Dispatcher) enrichLocal(lm *playlist.LocalMedia) {
	ts, err := d.library.TracksFor(lm.Filename)
	if err == nil {
		lm.Tracks = ts
	}
	if lm.DisplayTitle == "" {
		lm.DisplayTitle = d.library.DisplayTitle(lm.Filename)
	}
	if lm.SelectedAudioTrack == 0 {
		lm.SelectedAudioTrack = lm.Tracks.DefaultAudio()
	}
	if lm.SelectedSubtitleTrack == -1 {
		lm.SelectedSubtitleTrack = lm.Tracks.DefaultSubtitle()
	}
}

func (d *Dispatcher) handlePlaylistJump(c *session.Conn, data json.RawMessage) {
	var req IndexReq
	if err := json.Unmarshal(data, &req); err != nil {
		return
	}
	r, perr := d.roomOf(c, "")
	if perr != nil {
		return
	}
	now := d.clk.Now()
	r.Mu.Lock()
	defer r.Mu.Unlock()
	if !r.Jump(req.Index, now) {
		return
	}
	d.broadcast(r.Code, EvPlaylistPos, PlaylistPosResp{CurrentIndex: r.Playlist.CurrentIndex})
	d.broadcast(r.Code, EvSync, r.Sync(now))
}

func (d *Dispatcher) handleReorder(c *session.Conn, data json.RawMessage) {
	var req ReorderReq
	if err := json.Unmarshal(data, &req); err != nil {
		return
	}
	r, perr := d.roomOf(c, "")
	if perr != nil {
		return
	}
	r.Mu.Lock()
	defer r.Mu.Unlock()
	if !r.Playlist.Swap(req.FromIndex, req.ToIndex) {
		return
	}
	d.rematchLocked(r)
	d.broadcast(r.Code, EvPlaylistUpdate, r.Playlist.Snapshot())
	d.broadcast(r.Code, EvPlaylistPos, PlaylistPosResp{CurrentIndex: r.Playlist.CurrentIndex})
}

func (d *Dispatcher) handleSkipToNext(c *session.Conn) {
	r, perr := d.roomOf(c, "")
	if perr != nil {
		return
	}
	now := d.clk.Now()
	r.Mu.Lock()
	defer r.Mu.Unlock()
	if !r.SkipToNext(now) {
		return
	}
	d.broadcast(r.Code, EvPlaylistPos, PlaylistPosResp{CurrentIndex: r.Playlist.CurrentIndex})
	d.broadcast(r.Code, EvSync, r.Sync(now))
}

func (d *Dispatcher) handleTrackChange(c *session.Conn, data json.RawMessage) {
	var req TrackChangeReq
	if err := json.Unmarshal(data, &req); err != nil {
		return
	}
	if !ValidTrackIndex(req.Type, req.TrackIndex) {
		return
	}
	r, perr := d.roomOf(c, "")
	if perr != nil {
		return
	}
	now := d.clk.Now()
	r.Mu.Lock()
	defer r.Mu.Unlock()
	if !r.Playlist.InRange(req.VideoIndex) {
		return
	}
	if req.VideoIndex == r.Playlist.CurrentIndex {
		if !r.SelectTrack(req.Type, req.TrackIndex, now) {
			return
		}
	} else if lm := r.Playlist.Items[req.VideoIndex].Local; lm != nil {
		// Remember the choice for when playback reaches the item.
		if req.Type == "audio" {
			lm.SelectedAudioTrack = req.TrackIndex
		} else {
			lm.SelectedSubtitleTrack = req.TrackIndex
		}
	} else {
		return
	}
	d.broadcast(r.Code, EvTrackChange, TrackChangeBroadcast{
		VideoIndex: req.VideoIndex,
		Type:       req.Type,
		TrackIndex: req.TrackIndex,
	})
	d.broadcast(r.Code, EvSync, r.Sync(now))
}
