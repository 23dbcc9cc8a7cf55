package store

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Lakunake/Sync-Player/internal/clock"
)

// Tail caps: the logs are a debugging aid, not an audit trail.
const (
	RoomLogCap    = 500
	GeneralLogCap = 1000
)

// LogEntry is one appended event. Extra fields are flattened into the
// JSON object next to timestamp and event.
type LogEntry map[string]any

type logDoc struct {
	RoomCode string     `json:"roomCode,omitempty"`
	Logs     []LogEntry `json:"logs"`
}

// EventLog appends room-scoped and process-wide entries to tail-capped
// JSON files. Writes are serialized; reads are whoever opens the file.
type EventLog struct {
	mu  sync.Mutex
	dir string
	clk clock.Clock
}

func NewEventLog(dir string, clk clock.Clock) *EventLog {
	_ = os.MkdirAll(dir, 0o755)
	return &EventLog{dir: dir, clk: clk}
}

// Room appends an entry to a room's log, trimming to the newest 500.
func (l *EventLog) Room(code, event string, fields map[string]any) {
	l.append(l.roomPath(code), code, event, fields, RoomLogCap)
}

// General appends an entry to the process-wide log, trimming to 1000.
func (l *EventLog) General(event string, fields map[string]any) {
	l.append(filepath.Join(l.dir, "server.json"), "", event, fields, GeneralLogCap)
}

// DeleteRoom removes a room's log file when the room is deleted.
func (l *EventLog) DeleteRoom(code string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_ = os.Remove(l.roomPath(code))
}

func (l *EventLog) roomPath(code string) string {
	return filepath.Join(l.dir, "room-"+strings.ToUpper(code)+".json")
}

func (l *EventLog) append(path, roomCode, event string, fields map[string]any, limit int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	doc := logDoc{RoomCode: roomCode}
	if raw, err := os.ReadFile(path); err == nil {
		_ = json.Unmarshal(raw, &doc)
	}

	entry := LogEntry{
		"timestamp": l.clk.Now().Format(time.RFC3339Nano),
		"event":     event,
	}
	for k, v := range fields {
		entry[k] = v
	}
	doc.Logs = append(doc.Logs, entry)
	if len(doc.Logs) > limit {
		doc.Logs = doc.Logs[len(doc.Logs)-limit:]
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		slog.Warn("event log write failed", "path", path, "error", err)
		return
	}
	_ = os.Rename(tmp, path)
}
