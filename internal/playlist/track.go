package playlist

// ExternalTrackBase is the first index used for sidecar (extracted) tracks.
// Container-internal streams keep their ffprobe indices, which in practice
// stay far below this, so a single integer namespace serves both.
const ExternalTrackBase = 1000

// Track describes one selectable audio or subtitle stream of a local item.
type Track struct {
	Index      int    `json:"index"`
	Codec      string `json:"codec"`
	Language   string `json:"language"`
	Title      string `json:"title"`
	Default    bool   `json:"default"`
	IsExternal bool   `json:"isExternal"`
	URL        string `json:"url,omitempty"`
}

// IsSidecar reports whether the track lives outside the media container.
func (t Track) IsSidecar() bool {
	return t.IsExternal || t.Index >= ExternalTrackBase
}

// TrackSet groups the selectable streams of one media file.
type TrackSet struct {
	Audio     []Track `json:"audio"`
	Subtitles []Track `json:"subtitles"`
}

// DefaultAudio returns the index of the default audio track (0 if none is
// flagged, -1 when the set has no audio at all).
func (ts TrackSet) DefaultAudio() int {
	if len(ts.Audio) == 0 {
		return 0
	}
	for _, t := range ts.Audio {
		if t.Default {
			return t.Index
		}
	}
	return ts.Audio[0].Index
}

// DefaultSubtitle returns the index of the default subtitle track, or -1
// (off) when none is flagged.
func (ts TrackSet) DefaultSubtitle() int {
	for _, t := range ts.Subtitles {
		if t.Default {
			return t.Index
		}
	}
	return -1
}
