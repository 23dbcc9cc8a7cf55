package media

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Lakunake/Sync-Player/internal/playlist"
)

// StaleAfter is how long a manifest's source file may stay missing before
// the sweep deletes its sidecars and the manifest itself.
const StaleAfter = 7 * 24 * time.Hour

// ExternalTrack is one extracted sidecar referenced by a manifest.
type ExternalTrack struct {
	Type  string `json:"type"` // audio|subtitle
	Lang  string `json:"lang"`
	Title string `json:"title"`
	Path  string `json:"path"` // on disk
	URL   string `json:"url"`  // served to clients
}

// Manifest is the per-media-file record of extracted tracks.
type Manifest struct {
	LastSeen       time.Time       `json:"lastSeen"`
	ExternalTracks []ExternalTrack `json:"externalTracks"`
}

// ManifestStore keeps one manifest JSON per media file under its dir.
type ManifestStore struct {
	mu  sync.Mutex
	dir string
}

func NewManifestStore(dir string) *ManifestStore {
	_ = os.MkdirAll(dir, 0o755)
	return &ManifestStore{dir: dir}
}

// Dir is where manifests and their sidecar files live.
func (ms *ManifestStore) Dir() string { return ms.dir }

func (ms *ManifestStore) path(filename string) string {
	return filepath.Join(ms.dir, filename+".tracks.json")
}

// Load reads the manifest for one media file (empty when absent).
func (ms *ManifestStore) Load(filename string) Manifest {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.loadLocked(filename)
}

func (ms *ManifestStore) loadLocked(filename string) Manifest {
	var m Manifest
	raw, err := os.ReadFile(ms.path(filename))
	if err != nil {
		return m
	}
	_ = json.Unmarshal(raw, &m)
	return m
}

// Add appends a sidecar to a file's manifest and refreshes lastSeen.
func (ms *ManifestStore) Add(filename string, track ExternalTrack, now time.Time) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	m := ms.loadLocked(filename)
	m.ExternalTracks = append(m.ExternalTracks, track)
	m.LastSeen = now
	return ms.saveLocked(filename, m)
}

func (ms *ManifestStore) saveLocked(filename string, m Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	tmp := ms.path(filename) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, ms.path(filename))
}

// SidecarTracks converts a file's manifest into wire tracks, numbered from
// the external namespace base so they cannot collide with container
// stream indices.
func (ms *ManifestStore) SidecarTracks(filename string) playlist.TrackSet {
	m := ms.Load(filename)
	var ts playlist.TrackSet
	for i, et := range m.ExternalTracks {
		t := playlist.Track{
			Index:      playlist.ExternalTrackBase + i,
			Language:   et.Lang,
			Title:      et.Title,
			IsExternal: true,
			URL:        et.URL,
		}
		switch et.Type {
		case "audio":
			ts.Audio = append(ts.Audio, t)
		case "subtitle":
			ts.Subtitles = append(ts.Subtitles, t)
		}
	}
	return ts
}

// OrphanSidecars lists sidecar files in the manifest dir that no manifest
// references (exposed via /api/tracks/orphans for the operator).
func (ms *ManifestStore) OrphanSidecars() []string {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	referenced := make(map[string]bool)
	entries, err := os.ReadDir(ms.dir)
	if err != nil {
		return nil
	}
	var sidecars []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(name, ".tracks.json") {
			m := ms.loadLocked(strings.TrimSuffix(name, ".tracks.json"))
			for _, et := range m.ExternalTracks {
				referenced[filepath.Base(et.Path)] = true
			}
			continue
		}
		sidecars = append(sidecars, name)
	}

	var orphans []string
	for _, s := range sidecars {
		if !referenced[s] {
			orphans = append(orphans, s)
		}
	}
	return orphans
}

// Sweep walks every manifest at startup: if the source media file exists,
// lastSeen is refreshed; once a source has been missing for more than
// StaleAfter, the referenced sidecars and the manifest are deleted.
func (ms *ManifestStore) Sweep(sourceExists func(filename string) bool, now time.Time) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	entries, err := os.ReadDir(ms.dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".tracks.json") {
			continue
		}
		source := strings.TrimSuffix(e.Name(), ".tracks.json")
		m := ms.loadLocked(source)

		if sourceExists(source) {
			m.LastSeen = now
			_ = ms.saveLocked(source, m)
			continue
		}
		if m.LastSeen.IsZero() {
			// Start the missing clock now; deletion happens on a later
			// sweep once the source has been gone long enough.
			m.LastSeen = now
			_ = ms.saveLocked(source, m)
			continue
		}
		if now.Sub(m.LastSeen) <= StaleAfter {
			continue
		}
		for _, et := range m.ExternalTracks {
			if et.Path != "" {
				_ = os.Remove(et.Path)
			}
		}
		_ = os.Remove(ms.path(source))
		slog.Info("removed stale extracted tracks", "source", source, "tracks", len(m.ExternalTracks))
	}
}
