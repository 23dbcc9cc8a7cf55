package room

import (
	"sync"
	"time"

	"github.com/Lakunake/Sync-Player/internal/bsl"
	"github.com/Lakunake/Sync-Player/internal/playback"
	"github.com/Lakunake/Sync-Player/internal/playlist"
)

// ViewerInfo is what a room remembers about one connected viewer.
type ViewerInfo struct {
	Fingerprint string    `json:"fingerprint"`
	DisplayName string    `json:"displayName"`
	JoinedAt    time.Time `json:"joinedAt"`
}

// Room is one coded session: a single playback state shared by many
// viewers. All mutations and the broadcasts they trigger must happen with
// Mu held, so viewers never observe an intermediate state. The room holds
// connection ids only; resolving an id to a live connection is the
// session hub's job (no back-edges).
type Room struct {
	Mu sync.Mutex

	Code      string
	Name      string
	Private   bool
	CreatedAt time.Time

	// AdminFingerprint is immutable after creation; AdminConnID tracks
	// the single live admin connection (empty when the admin is away).
	AdminFingerprint string
	AdminConnID      string

	Viewers map[string]*ViewerInfo // connection id -> viewer

	State    playback.State
	Playlist *playlist.Playlist

	BSL   *bsl.Index
	Drift bsl.DriftTable
}

func newRoom(code, name string, private bool, adminFingerprint string, now time.Time) *Room {
	return &Room{
		Code:             code,
		Name:             name,
		Private:          private,
		CreatedAt:        now,
		AdminFingerprint: adminFingerprint,
		Viewers:          make(map[string]*ViewerInfo),
		State:            playback.NewState(),
		Playlist:         playlist.New(),
		BSL:              bsl.NewIndex(),
		Drift:            bsl.NewDriftTable(),
	}
}

// The mutators below assume the caller holds Mu.

// AddViewer registers a connection as a viewer of this room.
func (r *Room) AddViewer(connID, fingerprint, displayName string, now time.Time) {
	r.Viewers[connID] = &ViewerInfo{
		Fingerprint: fingerprint,
		DisplayName: displayName,
		JoinedAt:    now,
	}
}

// RemoveViewer drops a connection; the admin slot is cleared if it held it.
func (r *Room) RemoveViewer(connID string) {
	delete(r.Viewers, connID)
	r.BSL.Forget(connID)
	if r.AdminConnID == connID {
		r.AdminConnID = ""
	}
}

// SetPlaylist replaces the queue and resets playback onto the first item.
func (r *Room) SetPlaylist(items []playlist.Item, mainIndex int, startTime float64, autoplay bool, now time.Time) {
	r.Playlist.Replace(items, mainIndex, startTime)
	r.State = playback.NewState()
	r.State.Anchor = now
	if startTime > 0 {
		r.State.Position = startTime
	}
	r.State.IsPlaying = autoplay && r.Playlist.Len() > 0
	r.reloadTrackSelections()
}

// Jump moves playback to item i at position 0. Out of range is ignored.
func (r *Room) Jump(i int, now time.Time) bool {
	if !r.Playlist.InRange(i) {
		return false
	}
	r.Playlist.CurrentIndex = i
	r.State.Position = 0
	r.State.Anchor = now
	r.reloadTrackSelections()
	return true
}

// SkipToNext advances to the next item, wrapping at the end.
func (r *Room) SkipToNext(now time.Time) bool {
	n := r.Playlist.Len()
	if n == 0 {
		return false
	}
	return r.Jump((r.Playlist.CurrentIndex+1)%n, now)
}

// SelectTrack updates both the live state and the current item's stored
// selection, so revisiting the item restores the choice.
func (r *Room) SelectTrack(kind string, index int, now time.Time) bool {
	switch kind {
	case "audio":
		if index < 0 {
			return false
		}
		r.State.AudioTrack = index
	case "subtitle":
		if index < -1 {
			return false
		}
		r.State.SubtitleTrack = index
	default:
		return false
	}
	if cur := r.Playlist.Current(); cur != nil && cur.Local != nil {
		if kind == "audio" {
			cur.Local.SelectedAudioTrack = index
		} else {
			cur.Local.SelectedSubtitleTrack = index
		}
	}
	return true
}

// reloadTrackSelections resets the live track choice from the current
// item's remembered (or default) selections.
func (r *Room) reloadTrackSelections() {
	cur := r.Playlist.Current()
	if cur == nil || cur.Local == nil {
		r.State.AudioTrack = 0
		r.State.SubtitleTrack = -1
		return
	}
	r.State.AudioTrack = cur.Local.SelectedAudioTrack
	r.State.SubtitleTrack = cur.Local.SelectedSubtitleTrack
}

// ViewerCount is safe to call with Mu held.
func (r *Room) ViewerCount() int { return len(r.Viewers) }

// ConnIDsByFingerprint returns every live connection of one device.
func (r *Room) ConnIDsByFingerprint(fp string) []string {
	var ids []string
	for id, v := range r.Viewers {
		if v.Fingerprint == fp {
			ids = append(ids, id)
		}
	}
	return ids
}

// SyncSnapshot captures the wire form of the playback tuple at now. The
// position is extrapolated and the anchor re-expressed as now so clients
// can extrapolate forward themselves.
type SyncSnapshot struct {
	IsPlaying     bool    `json:"isPlaying"`
	Position      float64 `json:"position"`
	Anchor        int64   `json:"anchor"` // unix milliseconds
	Rate          float64 `json:"rate"`
	AudioTrack    int     `json:"audioTrack"`
	SubtitleTrack int     `json:"subtitleTrack"`
}

func (r *Room) Sync(now time.Time) SyncSnapshot {
	return SyncSnapshot{
		IsPlaying:     r.State.IsPlaying,
		Position:      r.State.Extrapolate(now),
		Anchor:        now.UnixMilli(),
		Rate:          r.State.Rate,
		AudioTrack:    r.State.AudioTrack,
		SubtitleTrack: r.State.SubtitleTrack,
	}
}
