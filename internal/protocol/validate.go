package protocol

import (
	"math"
	"regexp"
	"strings"
)

const maxFilenameLen = 255

var (
	filenamePattern = regexp.MustCompile(`^[\w\s\-.()\[\]]+$`)
	// Shell metacharacters, path separators and newlines are rejected
	// outright; filenames reach exec argv (ffprobe, ffmpeg).
	forbiddenRunes = ";&|$`<>\n\r/\\"
)

// ValidFilename enforces the filename rules shared by playlist items,
// BSL inventories and the media HTTP endpoints.
func ValidFilename(name string) bool {
	if name == "" || len(name) > maxFilenameLen {
		return false
	}
	if strings.Contains(name, "..") {
		return false
	}
	if strings.ContainsAny(name, forbiddenRunes) {
		return false
	}
	return filenamePattern.MatchString(name)
}

// ValidTime accepts finite, non-negative positions.
func ValidTime(t float64) bool {
	return !math.IsNaN(t) && !math.IsInf(t, 0) && t >= 0
}

// ValidTrackIndex checks bounds per track kind (subtitles allow -1 = off).
func ValidTrackIndex(kind string, index int) bool {
	switch kind {
	case "audio":
		return index >= 0
	case "subtitle":
		return index >= -1
	}
	return false
}

const maxNameLen = 32

// ValidDisplayName trims and bounds a viewer display name.
func ValidDisplayName(name string) (string, bool) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxNameLen {
		return "", false
	}
	return name, true
}
