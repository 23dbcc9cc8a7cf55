// Package protocol defines the event vocabulary between server and
// clients, validates inbound payloads, and routes them to the state
// machine, the room registry, BSL and chat.
package protocol

import (
	"encoding/json"

	"github.com/Lakunake/Sync-Player/internal/bsl"
	"github.com/Lakunake/Sync-Player/internal/room"
)

// Client -> server events.
const (
	EvCreateRoom     = "create-room"
	EvJoinRoom       = "join-room"
	EvLeaveRoom      = "leave-room"
	EvDeleteRoom     = "delete-room"
	EvGetRooms       = "get-rooms"
	EvInitialState   = "request-initial-state"
	EvRequestSync    = "request-sync"
	EvControl        = "control"
	EvSetPlaylist    = "set-playlist"
	EvPlaylistJump   = "playlist-jump"
	EvPlaylistNext   = "playlist-next" // legacy alias of playlist-jump
	EvPlaylistOrder  = "playlist-reorder"
	EvSkipToNext     = "skip-to-next-video"
	EvTrackChange    = "track-change"
	EvBslAdminReg    = "bsl-admin-register"
	EvBslCheck       = "bsl-check-request"
	EvBslGetStatus   = "bsl-get-status"
	EvBslFolder      = "bsl-folder-selected"
	EvBslManualMatch = "bsl-manual-match"
	EvBslSetDrift    = "bsl-set-drift"
	EvClientRegister = "client-register"
	EvGetClientList  = "get-client-list"
	EvSetClientName  = "set-client-name"
	EvSetDisplayName = "set-client-display-name"
	EvChatMessage    = "chat-message"
)

// Server -> client events.
const (
	EvSync            = "sync"
	EvPlaylistUpdate  = "playlist-update"
	EvPlaylistSet     = "playlist-set"
	EvPlaylistPos     = "playlist-position"
	EvViewerCount     = "viewer-count"
	EvClientCount     = "client-count" // legacy mode
	EvRoomsUpdated    = "rooms-updated"
	EvRoomDeleted     = "room-deleted"
	EvRateLimitError  = "rate-limit-error"
	EvAdminAuthResult = "admin-auth-result"
	EvAdminError      = "admin-error"
	EvBslStatusUpdate = "bsl-status-update"
	EvBslMatchResult  = "bsl-match-result"
	EvBslDriftUpdate  = "bsl-drift-update"
	EvBslPrompt       = "bsl-check" // server asks a viewer to pick a folder
	EvClientList      = "client-list"
	EvNameUpdated     = "name-updated"
)

// adminOnly is the whitelist of events only the room's admin may issue.
// create-room and bsl-admin-register establish admin status and stay open.
var adminOnly = map[string]bool{
	EvSetPlaylist:    true,
	EvPlaylistOrder:  true,
	EvPlaylistJump:   true,
	EvPlaylistNext:   true,
	EvTrackChange:    true,
	EvSkipToNext:     true,
	EvBslCheck:       true,
	EvBslGetStatus:   true,
	EvBslManualMatch: true,
	EvBslSetDrift:    true,
	EvSetClientName:  true,
	EvSetDisplayName: true,
	EvGetClientList:  true,
	EvDeleteRoom:     true,
}

// --- inbound payloads ---

type CreateRoomReq struct {
	Name        string `json:"name"`
	IsPrivate   bool   `json:"isPrivate"`
	Fingerprint string `json:"fingerprint"`
}

type JoinRoomReq struct {
	RoomCode    string `json:"roomCode"`
	Name        string `json:"name"`
	Fingerprint string `json:"fingerprint"`
}

type DeleteRoomReq struct {
	RoomCode    string `json:"roomCode"`
	Fingerprint string `json:"fingerprint"`
}

// ControlReq is the merged control event. Action selects the operation;
// an absent action is a full state push (accepted only while client sync
// is enabled).
type ControlReq struct {
	Action string `json:"action,omitempty"`

	State     *bool    `json:"state,omitempty"`     // playpause
	Time      *float64 `json:"time,omitempty"`      // seek
	Direction string   `json:"direction,omitempty"` // skip: forward|backward
	Seconds   *float64 `json:"seconds,omitempty"`   // skip
	Rate      *float64 `json:"rate,omitempty"`      // rate
	Kind      string   `json:"kind,omitempty"`      // selectTrack: audio|subtitle
	Index     *int     `json:"index,omitempty"`     // selectTrack

	// Full state push fields (action omitted)
	IsPlaying *bool    `json:"isPlaying,omitempty"`
	Position  *float64 `json:"position,omitempty"`
	PushRate  *float64 `json:"playbackRate,omitempty"`
}

type SetPlaylistReq struct {
	Playlist       []json.RawMessage `json:"playlist"`
	MainVideoIndex int               `json:"mainVideoIndex"`
	StartTime      float64           `json:"startTime"`
}

type IndexReq struct {
	Index int `json:"index"`
}

type ReorderReq struct {
	FromIndex int `json:"fromIndex"`
	ToIndex   int `json:"toIndex"`
}

type TrackChangeReq struct {
	VideoIndex int    `json:"videoIndex"`
	Type       string `json:"type"` // audio|subtitle
	TrackIndex int    `json:"trackIndex"`
}

type AdminRegisterReq struct {
	Fingerprint string `json:"fingerprint"`
	RoomCode    string `json:"roomCode,omitempty"`
}

type BslFolderReq struct {
	Fingerprint string           `json:"fingerprint"`
	DisplayName string           `json:"displayName"`
	Files       []bsl.ClientFile `json:"files"`
}

type BslManualMatchReq struct {
	ClientConnectionID string `json:"clientConnectionId"`
	ClientFileName     string `json:"clientFileName"`
	PlaylistIndex      int    `json:"playlistIndex"`
}

type BslSetDriftReq struct {
	ClientFingerprint string `json:"clientFingerprint"`
	PlaylistIndex     int    `json:"playlistIndex"`
	DriftSeconds      int    `json:"driftSeconds"`
}

type ClientRegisterReq struct {
	Fingerprint string `json:"fingerprint"`
}

type SetClientNameReq struct {
	ClientID    string `json:"clientId"`
	DisplayName string `json:"displayName"`
}

type SetDisplayNameReq struct {
	Fingerprint string `json:"fingerprint"`
	DisplayName string `json:"displayName"`
}

type ChatMessageReq struct {
	Sender  string `json:"sender"`
	Message string `json:"message"`
}

// --- outbound payloads ---

type CreateRoomResp struct {
	Success  bool   `json:"success"`
	RoomCode string `json:"roomCode,omitempty"`
	RoomName string `json:"roomName,omitempty"`
	Error    string `json:"error,omitempty"`
}

type JoinRoomResp struct {
	Success  bool            `json:"success"`
	RoomName string          `json:"roomName,omitempty"`
	IsAdmin  bool            `json:"isAdmin,omitempty"`
	Viewers  []ViewerSummary `json:"viewers,omitempty"`
	Error    string          `json:"error,omitempty"`
}

type ViewerSummary struct {
	ConnectionID string `json:"connectionId"`
	DisplayName  string `json:"displayName"`
	Fingerprint  string `json:"fingerprint"`
}

type PlaylistSetResp struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type PlaylistPosResp struct {
	CurrentIndex int `json:"currentIndex"`
}

type TrackChangeBroadcast struct {
	VideoIndex int    `json:"videoIndex"`
	Type       string `json:"type"`
	TrackIndex int    `json:"trackIndex"`
}

type RoomDeletedResp struct {
	RoomCode string `json:"roomCode"`
}

type RateLimitResp struct {
	Message    string  `json:"message"`
	RetryAfter float64 `json:"retryAfter"` // seconds
}

type AdminAuthResp struct {
	Success bool   `json:"success"`
	Reason  string `json:"reason,omitempty"`
}

type AdminErrorResp struct {
	Event   string `json:"event"`
	Message string `json:"message"`
}

type BslMatchResultResp struct {
	MatchedVideos map[int]string `json:"matchedVideos"`
	TotalMatched  int            `json:"totalMatched"`
	TotalPlaylist int            `json:"totalPlaylist"`
}

type BslDriftUpdateResp struct {
	DriftValues map[int]int `json:"driftValues"`
}

type NameUpdatedResp struct {
	DisplayName string `json:"displayName"`
}

type ChatBroadcast struct {
	Sender  string `json:"sender"`
	Message string `json:"message"`
	System  bool   `json:"system,omitempty"`
}

type ClientListResp struct {
	Clients []ViewerSummary `json:"clients"`
}

// SyncResp mirrors room.SyncSnapshot on the wire.
type SyncResp = room.SyncSnapshot
