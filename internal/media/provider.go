package media

import (
	"time"
)

// Provider abstracts where the media library lives. The coordinator only
// needs listings and sizes; ffprobe/ffmpeg additionally need a real path,
// which only the local backend can give.
type Provider interface {
	List() ([]FileInfo, error)
	Size(name string) (int64, error)
	// LocalPath resolves a library filename to an on-disk path. ok is
	// false for remote backends; probing and jobs are disabled there.
	LocalPath(name string) (string, bool)
	// FetchURL returns a direct (possibly signed, short-lived) URL for
	// remote backends; ok is false when the file is served locally.
	FetchURL(name string) (string, bool)
}

// FileInfo is one library entry.
type FileInfo struct {
	Name    string
	Size    int64
	ModTime time.Time
}
