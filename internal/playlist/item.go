package playlist

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
)

// MediaKind classifies a local file by what the player should render.
type MediaKind string

const (
	MediaVideo MediaKind = "video"
	MediaAudio MediaKind = "audio"
	MediaImage MediaKind = "image"
)

// SyncLevel bounds which controls are meaningful for an external embed.
type SyncLevel string

const (
	SyncFull     SyncLevel = "full"     // play/pause/seek/rate
	SyncLimited  SyncLevel = "limited"  // play/pause only
	SyncAutoplay SyncLevel = "autoplay" // no per-frame control
)

// Platform identifies the origin of an external embed.
type Platform string

const (
	PlatformYouTube     Platform = "youtube"
	PlatformVimeo       Platform = "vimeo"
	PlatformDailymotion Platform = "dailymotion"
	PlatformTwitch      Platform = "twitch"
	PlatformSoundCloud  Platform = "soundcloud"
	PlatformStreamable  Platform = "streamable"
	PlatformGDrive      Platform = "gdrive"
	PlatformKick        Platform = "kick"
	PlatformRumble      Platform = "rumble"
	PlatformDirectURL   Platform = "directUrl"
)

var knownPlatforms = map[Platform]SyncLevel{
	PlatformYouTube:     SyncFull,
	PlatformVimeo:       SyncFull,
	PlatformDailymotion: SyncLimited,
	PlatformTwitch:      SyncAutoplay,
	PlatformSoundCloud:  SyncLimited,
	PlatformStreamable:  SyncLimited,
	PlatformGDrive:      SyncAutoplay,
	PlatformKick:        SyncAutoplay,
	PlatformRumble:      SyncAutoplay,
	PlatformDirectURL:   SyncFull,
}

// LocalMedia is a playlist entry backed by a file in the media library.
// Track selections live on the item so cycling through the playlist
// restores the viewer's choices.
type LocalMedia struct {
	Filename              string    `json:"filename"`
	Media                 MediaKind `json:"mediaKind"`
	DisplayTitle          string    `json:"displayTitle,omitempty"`
	Tracks                TrackSet  `json:"tracks"`
	SelectedAudioTrack    int       `json:"selectedAudioTrack"`
	SelectedSubtitleTrack int       `json:"selectedSubtitleTrack"`
}

// ExternalEmbed is a playlist entry hosted by a third-party platform.
type ExternalEmbed struct {
	Platform    Platform  `json:"platform"`
	ExternalID  string    `json:"externalId,omitempty"`
	ExternalURL string    `json:"externalUrl,omitempty"`
	Title       string    `json:"title"`
	Thumbnail   string    `json:"thumbnail,omitempty"`
	SyncLevel   SyncLevel `json:"syncLevel"`
}

// Item is the tagged union of the two playlist entry variants. Exactly one
// of Local / External is non-nil.
type Item struct {
	Local    *LocalMedia
	External *ExternalEmbed
}

var errInvalidItem = errors.New("playlist: invalid item shape")

func (it Item) IsLocal() bool    { return it.Local != nil }
func (it Item) IsExternal() bool { return it.External != nil }

// Name returns the identity used for BSL matching and display fallback.
func (it Item) Name() string {
	switch {
	case it.Local != nil:
		return it.Local.Filename
	case it.External != nil:
		return it.External.Title
	}
	return ""
}

type itemWire struct {
	Kind string `json:"kind"`
	*LocalMedia
	*ExternalEmbed
}

func (it Item) MarshalJSON() ([]byte, error) {
	switch {
	case it.Local != nil:
		return json.Marshal(itemWire{Kind: "local", LocalMedia: it.Local})
	case it.External != nil:
		return json.Marshal(itemWire{Kind: "external", ExternalEmbed: it.External})
	}
	return nil, errInvalidItem
}

func (it *Item) UnmarshalJSON(data []byte) error {
	// Probe the discriminator first. Older clients omit "kind" and send
	// a platform field on embeds only, so fall back on field presence.
	var head struct {
		Kind     string `json:"kind"`
		Platform string `json:"platform"`
		Filename string `json:"filename"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}

	kind := head.Kind
	if kind == "" {
		switch {
		case head.Platform != "":
			kind = "external"
		case head.Filename != "":
			kind = "local"
		}
	}

	switch kind {
	case "local":
		var lm LocalMedia
		if err := json.Unmarshal(data, &lm); err != nil {
			return err
		}
		if lm.Filename == "" {
			return errInvalidItem
		}
		if lm.Media == "" {
			lm.Media = DetectMediaKind(lm.Filename)
		}
		if lm.SelectedSubtitleTrack == 0 && len(lm.Tracks.Subtitles) == 0 {
			lm.SelectedSubtitleTrack = -1
		}
		it.Local, it.External = &lm, nil
		return nil
	case "external":
		var ee ExternalEmbed
		if err := json.Unmarshal(data, &ee); err != nil {
			return err
		}
		lvl, ok := knownPlatforms[ee.Platform]
		if !ok {
			return errInvalidItem
		}
		if ee.ExternalID == "" && ee.ExternalURL == "" {
			return errInvalidItem
		}
		if ee.SyncLevel == "" {
			ee.SyncLevel = lvl
		}
		it.Local, it.External = nil, &ee
		return nil
	}
	return errInvalidItem
}

var (
	videoExts = map[string]bool{
		".mp4": true, ".mkv": true, ".webm": true, ".avi": true,
		".mov": true, ".m4v": true, ".ts": true, ".flv": true, ".wmv": true,
	}
	audioExts = map[string]bool{
		".mp3": true, ".flac": true, ".wav": true, ".ogg": true,
		".m4a": true, ".aac": true, ".opus": true, ".wma": true,
	}
	imageExts = map[string]bool{
		".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
		".webp": true, ".bmp": true,
	}
)

// DetectMediaKind classifies a filename by extension; unknown extensions
// are treated as video so the player at least attempts them.
func DetectMediaKind(filename string) MediaKind {
	ext := strings.ToLower(filepath.Ext(filename))
	switch {
	case audioExts[ext]:
		return MediaAudio
	case imageExts[ext]:
		return MediaImage
	case videoExts[ext]:
		return MediaVideo
	}
	return MediaVideo
}
