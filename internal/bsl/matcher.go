package bsl

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// SizeTolerance is how far apart the client and server file sizes may be
// for the size criterion to count (browsers round, containers differ).
const SizeTolerance = 1536 * 1024 // 1.5 MiB

// Candidate is a playlist slot a client file may be matched to. Only
// local-media items participate in BSL.
type Candidate struct {
	Index    int
	Filename string
}

// Matcher scores a viewer's file inventory against the room playlist.
type Matcher struct {
	// Advanced enables the four-criterion scoring; off means plain
	// case-insensitive filename equality.
	Advanced  bool
	Threshold int // 1..4, criteria needed for an advanced match

	// Persisted maps lowercase client filename -> lowercase playlist
	// filename, remembered from earlier sessions of this fingerprint.
	Persisted map[string]string

	// ServerSize stats a playlist file; return ok=false when the file
	// cannot be measured (missing, remote).
	ServerSize func(filename string) (int64, bool)
}

// Match resolves every candidate to at most one client file. Persisted
// matches win outright; otherwise the first file reaching the threshold
// takes the slot.
func (m Matcher) Match(files []ClientFile, candidates []Candidate) map[int]string {
	matches := make(map[int]string)
	for _, cand := range candidates {
		if name, ok := m.matchOne(files, cand); ok {
			matches[cand.Index] = name
		}
	}
	return matches
}

func (m Matcher) matchOne(files []ClientFile, cand Candidate) (string, bool) {
	serverLower := strings.ToLower(cand.Filename)

	// 1. Persisted exact match from an earlier session
	for _, f := range files {
		if m.Persisted[strings.ToLower(f.Name)] == serverLower {
			return f.Name, true
		}
	}

	// 2/3. Live scoring
	for _, f := range files {
		if m.Advanced {
			if m.Score(f, cand.Filename) >= m.Threshold {
				return f.Name, true
			}
		} else if strings.EqualFold(f.Name, cand.Filename) {
			return f.Name, true
		}
	}
	return "", false
}

// Score computes the advanced match score of one client file against one
// server filename: name, extension, size window, MIME agreement.
func (m Matcher) Score(f ClientFile, serverName string) int {
	score := 0
	if strings.EqualFold(f.Name, serverName) {
		score++
	}
	clientExt := strings.ToLower(filepath.Ext(f.Name))
	serverExt := strings.ToLower(filepath.Ext(serverName))
	if clientExt != "" && clientExt == serverExt {
		score++
	}
	if m.ServerSize != nil && f.Size > 0 {
		if size, ok := m.ServerSize(serverName); ok {
			diff := size - f.Size
			if diff < 0 {
				diff = -diff
			}
			if diff <= SizeTolerance {
				score++
			}
		}
	}
	if mimeAgrees(f.Type, serverExt) {
		score++
	}
	return score
}

// mimeByExt is the fixed table the MIME criterion is judged against.
var mimeByExt = map[string]string{
	".mp4":  "video/mp4",
	".mkv":  "video/x-matroska",
	".webm": "video/webm",
	".avi":  "video/x-msvideo",
	".mov":  "video/quicktime",
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".flac": "audio/flac",
	".ogg":  "audio/ogg",
	".wav":  "audio/wav",
}

// mimeAgrees accepts an exact MIME match or a shared top-level type
// (video/*, audio/*) between the client-reported MIME and the one derived
// from the server file's extension.
func mimeAgrees(clientMIME, serverExt string) bool {
	if clientMIME == "" {
		return false
	}
	want, ok := mimeByExt[serverExt]
	if !ok {
		return false
	}
	if strings.EqualFold(clientMIME, want) {
		return true
	}
	ct, _, okC := strings.Cut(clientMIME, "/")
	st, _, okS := strings.Cut(want, "/")
	return okC && okS && strings.EqualFold(ct, st)
}

// Suggest ranks a viewer's filenames by fuzzy similarity to an unmatched
// playlist filename. Purely advisory: shown to the admin next to the
// manual-match control.
func Suggest(files []ClientFile, serverName string, limit int) []string {
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Name
	}
	ranks := fuzzy.RankFindNormalizedFold(strings.TrimSuffix(serverName, filepath.Ext(serverName)), names)
	if len(ranks) == 0 {
		return nil
	}
	sort.Sort(ranks)
	out := make([]string, 0, limit)
	for _, r := range ranks {
		out = append(out, r.Target)
		if len(out) == limit {
			break
		}
	}
	return out
}
