// Package media is the metadata adapter: it enumerates the library,
// probes per-file track manifests (container streams merged with
// extracted sidecars), renders thumbnails, and hosts the ffmpeg job
// queue. Nothing here ever holds a room lock.
package media

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dhowden/tag"

	"github.com/Lakunake/Sync-Player/internal/clock"
	"github.com/Lakunake/Sync-Player/internal/playlist"
)

// listCacheTTL bounds how stale the media listing may get; directory
// scans (or S3 listings) are too slow for per-request work.
const listCacheTTL = 20 * time.Second

// MediaFile is one listable library entry.
type MediaFile struct {
	Filename string             `json:"filename"`
	Kind     playlist.MediaKind `json:"kind"`
}

// Library is the metadata adapter the coordinator consumes.
type Library interface {
	ListMedia() ([]MediaFile, error)
	TracksFor(filename string) (playlist.TrackSet, error)
	// FileSize stats a library file; ok=false when it cannot be measured.
	FileSize(filename string) (int64, bool)
	// DisplayTitle reads a human title from embedded tags (audio files);
	// empty when unavailable.
	DisplayTitle(filename string) string
	// LocalPath exposes the provider's path resolution for jobs.
	LocalPath(filename string) (string, bool)
	// FetchURL exposes the provider's direct URL for remote backends.
	FetchURL(filename string) (string, bool)
}

// Scanner implements Library on top of a storage provider and the
// manifest store.
type Scanner struct {
	provider  Provider
	manifests *ManifestStore
	clk       clock.Clock

	mu       sync.Mutex
	cached   []MediaFile
	sizes    map[string]int64
	cachedAt time.Time

	// probe is swappable for tests
	probe func(path string) (playlist.TrackSet, error)
}

func NewScanner(provider Provider, manifests *ManifestStore, clk clock.Clock) *Scanner {
	return &Scanner{
		provider:  provider,
		manifests: manifests,
		clk:       clk,
		sizes:     make(map[string]int64),
		probe:     ProbeTracks,
	}
}

func (s *Scanner) ListMedia() ([]MediaFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != nil && s.clk.Now().Sub(s.cachedAt) < listCacheTTL {
		return s.cached, nil
	}

	files, err := s.provider.List()
	if err != nil {
		if s.cached != nil {
			return s.cached, nil // stale beats nothing
		}
		return nil, err
	}

	out := make([]MediaFile, 0, len(files))
	sizes := make(map[string]int64, len(files))
	for _, f := range files {
		out = append(out, MediaFile{
			Filename: f.Name,
			Kind:     playlist.DetectMediaKind(f.Name),
		})
		sizes[f.Name] = f.Size
	}
	s.cached = out
	s.sizes = sizes
	s.cachedAt = s.clk.Now()
	return out, nil
}

// TracksFor merges container streams with manifest sidecars. A probe
// failure degrades to sidecars only; the caller gets best-effort tracks,
// never a hard failure for a playable file.
func (s *Scanner) TracksFor(filename string) (playlist.TrackSet, error) {
	var ts playlist.TrackSet
	if path, ok := s.provider.LocalPath(filename); ok {
		probed, err := s.probe(path)
		if err != nil {
			slog.Warn("track probe failed", "file", filename, "error", err)
		} else {
			ts = probed
		}
	}
	side := s.manifests.SidecarTracks(filename)
	ts.Audio = append(ts.Audio, side.Audio...)
	ts.Subtitles = append(ts.Subtitles, side.Subtitles...)
	return ts, nil
}

func (s *Scanner) FileSize(filename string) (int64, bool) {
	s.mu.Lock()
	if size, ok := s.sizes[filename]; ok {
		s.mu.Unlock()
		return size, true
	}
	s.mu.Unlock()
	size, err := s.provider.Size(filename)
	if err != nil {
		return 0, false
	}
	return size, true
}

func (s *Scanner) DisplayTitle(filename string) string {
	if playlist.DetectMediaKind(filename) != playlist.MediaAudio {
		return CleanTitle(filename)
	}
	path, ok := s.provider.LocalPath(filename)
	if !ok {
		return CleanTitle(filename)
	}
	f, err := os.Open(path)
	if err != nil {
		return CleanTitle(filename)
	}
	defer f.Close()
	meta, err := tag.ReadFrom(f)
	if err != nil || meta.Title() == "" {
		return CleanTitle(filename)
	}
	if artist := meta.Artist(); artist != "" {
		return artist + " - " + meta.Title()
	}
	return meta.Title()
}

// CleanTitle turns a filename into a readable title: extension stripped,
// separators spaced out.
func CleanTitle(filename string) string {
	clean := strings.TrimSuffix(filename, filepath.Ext(filename))
	clean = strings.ReplaceAll(clean, "_", " ")
	clean = strings.ReplaceAll(clean, ".", " ")
	return strings.Join(strings.Fields(clean), " ")
}

func (s *Scanner) LocalPath(filename string) (string, bool) {
	return s.provider.LocalPath(filename)
}

func (s *Scanner) FetchURL(filename string) (string, bool) {
	return s.provider.FetchURL(filename)
}

// Exists reports whether a filename is currently in the library (used by
// the manifest sweep).
func (s *Scanner) Exists(filename string) bool {
	files, err := s.ListMedia()
	if err != nil {
		return true // fail safe: never treat IO trouble as "gone"
	}
	for _, f := range files {
		if f.Filename == filename {
			return true
		}
	}
	return false
}
