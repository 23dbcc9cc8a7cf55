package store

import (
	"encoding/json"
	"os"
	"strings"
	"sync"
	"time"
)

// AdminRecord binds a room code to the fingerprint that created it, so
// admin authority survives a process restart.
type AdminRecord struct {
	Fingerprint string    `json:"fingerprint"`
	SavedAt     time.Time `json:"savedAt"`
}

// RoomAdmins is the on-disk per-room admin table.
type RoomAdmins struct {
	mu    sync.Mutex
	path  string
	table map[string]AdminRecord // upper-case room code
}

func OpenRoomAdmins(path string) (*RoomAdmins, error) {
	ra := &RoomAdmins{path: path, table: make(map[string]AdminRecord)}
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return ra, nil
	}
	if err != nil {
		return nil, err
	}
	// A broken admin table only loses restart persistence; start fresh.
	_ = json.Unmarshal(raw, &ra.table)
	return ra, nil
}

func (ra *RoomAdmins) Save(code, fingerprint string, now time.Time) error {
	ra.mu.Lock()
	defer ra.mu.Unlock()
	ra.table[strings.ToUpper(code)] = AdminRecord{Fingerprint: fingerprint, SavedAt: now}
	return ra.write()
}

func (ra *RoomAdmins) Lookup(code string) (string, bool) {
	ra.mu.Lock()
	defer ra.mu.Unlock()
	rec, ok := ra.table[strings.ToUpper(code)]
	return rec.Fingerprint, ok
}

func (ra *RoomAdmins) Delete(code string) error {
	ra.mu.Lock()
	defer ra.mu.Unlock()
	delete(ra.table, strings.ToUpper(code))
	return ra.write()
}

func (ra *RoomAdmins) write() error {
	data, err := json.MarshalIndent(ra.table, "", "  ")
	if err != nil {
		return err
	}
	tmp := ra.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, ra.path)
}
