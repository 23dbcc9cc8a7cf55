package protocol

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Lakunake/Sync-Player/internal/auth"
	"github.com/Lakunake/Sync-Player/internal/clock"
	"github.com/Lakunake/Sync-Player/internal/config"
	"github.com/Lakunake/Sync-Player/internal/media"
	"github.com/Lakunake/Sync-Player/internal/metrics"
	"github.com/Lakunake/Sync-Player/internal/room"
	"github.com/Lakunake/Sync-Player/internal/session"
	"github.com/Lakunake/Sync-Player/internal/store"
)

// Prometheus collectors register globally, so the test binary shares one set.
var testMetrics = metrics.New()

type testEnv struct {
	hub   *session.Hub
	rooms *room.Registry
	srv   *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := &config.Config{
		ServerMode:        true,
		JoinMode:          "sync",
		BSLMode:           "any",
		BSLMatchThreshold: 2,
		ChatEnabled:       true,
	}
	clk := clock.RealClock{}

	var key [32]byte
	key[0] = 7
	mem, err := store.OpenMemory(filepath.Join(t.TempDir(), "memory.json"), key)
	if err != nil {
		t.Fatal(err)
	}
	roomAdmins, err := store.OpenRoomAdmins(filepath.Join(t.TempDir(), "room-admins.json"))
	if err != nil {
		t.Fatal(err)
	}
	logs := store.NewEventLog(t.TempDir(), clk)
	lib := media.NewScanner(media.NewLocalProvider(t.TempDir()), media.NewManifestStore(t.TempDir()), clk)

	hub := session.NewHub(clk)
	registry := room.NewRegistry(clk)
	admins := auth.NewAdmins(mem, false)
	d := NewDispatcher(cfg, clk, hub, registry, admins, mem, roomAdmins, logs, lib, testMetrics)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.Serve(w, r, d.Handle)
	}))
	t.Cleanup(srv.Close)

	return &testEnv{hub: hub, rooms: registry, srv: srv}
}

type wsClient struct {
	t  *testing.T
	ws *websocket.Conn
}

func (env *testEnv) dial(t *testing.T) *wsClient {
	t.Helper()
	url := "ws" + strings.TrimPrefix(env.srv.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { ws.Close() })
	return &wsClient{t: t, ws: ws}
}

func (c *wsClient) send(event string, payload any) {
	c.t.Helper()
	frame, err := session.Encode(event, payload)
	if err != nil {
		c.t.Fatal(err)
	}
	if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
		c.t.Fatalf("write %s: %v", event, err)
	}
}

func (c *wsClient) next() session.Message {
	c.t.Helper()
	c.ws.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, raw, err := c.ws.ReadMessage()
	if err != nil {
		c.t.Fatalf("read: %v", err)
	}
	var msg session.Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.t.Fatalf("malformed frame %q: %v", raw, err)
	}
	return msg
}

// waitFor drains events until the wanted one arrives.
func (c *wsClient) waitFor(event string) session.Message {
	c.t.Helper()
	for i := 0; i < 20; i++ {
		if msg := c.next(); msg.Event == event {
			return msg
		}
	}
	c.t.Fatalf("event %q never arrived", event)
	return session.Message{}
}

// createRoom drives the admin flow and returns the room code.
func createRoom(t *testing.T, admin *wsClient) string {
	t.Helper()
	admin.send(EvCreateRoom, CreateRoomReq{Name: "Movie Night", IsPrivate: true, Fingerprint: "fp-admin"})
	var resp CreateRoomResp
	if err := json.Unmarshal(admin.waitFor(EvCreateRoom).Data, &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Success || resp.RoomCode == "" {
		t.Fatalf("create-room failed: %+v", resp)
	}
	return resp.RoomCode
}

func joinRoom(t *testing.T, viewer *wsClient, code, fingerprint string) {
	t.Helper()
	viewer.send(EvJoinRoom, JoinRoomReq{RoomCode: code, Fingerprint: fingerprint, Name: "Second Screen"})
	var resp JoinRoomResp
	if err := json.Unmarshal(viewer.waitFor(EvJoinRoom).Data, &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Success {
		t.Fatalf("join-room failed: %+v", resp)
	}
	if resp.IsAdmin {
		t.Fatal("joiner granted admin status")
	}
	// The join flush ends with the room-wide viewer count.
	viewer.waitFor(EvViewerCount)
}

func TestAdminOnlyEventsRejectNonAdmins(t *testing.T) {
	env := newTestEnv(t)
	admin := env.dial(t)
	code := createRoom(t, admin)

	viewer := env.dial(t)
	joinRoom(t, viewer, code, "fp-viewer")

	viewer.send(EvSetPlaylist, SetPlaylistReq{})
	var ae AdminErrorResp
	if err := json.Unmarshal(viewer.waitFor(EvAdminError).Data, &ae); err != nil {
		t.Fatal(err)
	}
	if ae.Event != EvSetPlaylist {
		t.Fatalf("rejection names event %q, want %q", ae.Event, EvSetPlaylist)
	}

	viewer.send(EvDeleteRoom, DeleteRoomReq{})
	if err := json.Unmarshal(viewer.waitFor(EvAdminError).Data, &ae); err != nil {
		t.Fatal(err)
	}
	if ae.Event != EvDeleteRoom {
		t.Fatalf("rejection names event %q, want %q", ae.Event, EvDeleteRoom)
	}

	// The room is untouched by the rejected delete
	if _, ok := env.rooms.Find(code); !ok {
		t.Fatal("room vanished after rejected delete")
	}
}

func TestSetPlaylistBroadcastOrder(t *testing.T) {
	env := newTestEnv(t)
	admin := env.dial(t)
	code := createRoom(t, admin)

	viewer := env.dial(t)
	joinRoom(t, viewer, code, "fp-viewer")

	item, _ := json.Marshal(map[string]any{"filename": "intro.mkv"})
	admin.send(EvSetPlaylist, SetPlaylistReq{Playlist: []json.RawMessage{item}})

	// Every member must see update, position and sync in that order.
	admin.waitFor(EvPlaylistSet)
	for _, c := range []*wsClient{admin, viewer} {
		for _, want := range []string{EvPlaylistUpdate, EvPlaylistPos, EvSync} {
			if got := c.next(); got.Event != want {
				t.Fatalf("got %q, want %q", got.Event, want)
			}
		}
	}
}

func TestDeleteRoomEvictsMembers(t *testing.T) {
	env := newTestEnv(t)
	admin := env.dial(t)
	code := createRoom(t, admin)

	viewer := env.dial(t)
	joinRoom(t, viewer, code, "fp-viewer")

	admin.send(EvDeleteRoom, DeleteRoomReq{})
	for _, c := range []*wsClient{admin, viewer} {
		var resp RoomDeletedResp
		if err := json.Unmarshal(c.waitFor(EvRoomDeleted).Data, &resp); err != nil {
			t.Fatal(err)
		}
		if resp.RoomCode != code {
			t.Fatalf("room-deleted names %q, want %q", resp.RoomCode, code)
		}
		// rooms-updated is enqueued after eviction completes
		c.waitFor(EvRoomsUpdated)
	}

	if _, ok := env.rooms.Find(code); ok {
		t.Fatal("deleted room still registered")
	}
	if members := env.hub.GroupMembers(code); len(members) != 0 {
		t.Fatalf("%d members still grouped after delete", len(members))
	}
}
