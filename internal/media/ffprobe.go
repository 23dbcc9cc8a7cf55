package media

import (
	"encoding/json"
	"os/exec"
	"strconv"

	"github.com/Lakunake/Sync-Player/internal/playlist"
)

// ProbeTracks enumerates the container's audio and subtitle streams via
// ffprobe. The indices are the container stream indices, well below the
// sidecar namespace.
func ProbeTracks(path string) (playlist.TrackSet, error) {
	cmd := exec.Command("ffprobe", "-v", "quiet", "-print_format", "json", "-show_streams", path)
	out, err := cmd.Output()
	if err != nil {
		return playlist.TrackSet{}, err
	}

	var data struct {
		Streams []struct {
			Index       int               `json:"index"`
			CodecType   string            `json:"codec_type"`
			CodecName   string            `json:"codec_name"`
			Tags        map[string]string `json:"tags"`
			Disposition struct {
				Default int `json:"default"`
			} `json:"disposition"`
		} `json:"streams"`
	}
	if err := json.Unmarshal(out, &data); err != nil {
		return playlist.TrackSet{}, err
	}

	var ts playlist.TrackSet
	for _, s := range data.Streams {
		t := playlist.Track{
			Index:    s.Index,
			Codec:    s.CodecName,
			Language: s.Tags["language"],
			Title:    s.Tags["title"],
			Default:  s.Disposition.Default == 1,
		}
		switch s.CodecType {
		case "audio":
			ts.Audio = append(ts.Audio, t)
		case "subtitle":
			ts.Subtitles = append(ts.Subtitles, t)
		}
	}
	return ts, nil
}

// ProbeDuration returns the container duration in seconds (0 on failure);
// jobs use it to scale progress.
func ProbeDuration(path string) float64 {
	cmd := exec.Command("ffprobe", "-v", "quiet", "-print_format", "json", "-show_format", path)
	out, err := cmd.Output()
	if err != nil {
		return 0
	}
	var data struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal(out, &data); err != nil {
		return 0
	}
	d, _ := strconv.ParseFloat(data.Format.Duration, 64)
	return d
}
