package jobs

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/bogem/id3v2"

	"github.com/Lakunake/Sync-Player/internal/media"
	"github.com/Lakunake/Sync-Player/internal/playlist"
)

// runRemux copies every stream into a new container next to the source.
func (q *Queue) runRemux(ctx context.Context, id, path string, req Request, duration float64) error {
	out := strings.TrimSuffix(path, filepath.Ext(path)) + "_remux." + strings.TrimPrefix(req.Container, ".")
	cmd := exec.Command("ffmpeg", "-y",
		"-i", path,
		"-map", "0",
		"-c", "copy",
		"-progress", "pipe:1",
		"-loglevel", "error",
		out)
	return q.runProgress(ctx, id, cmd, duration)
}

// runReencode decodes, optionally scales, and encodes with the chosen
// codec and bitrate.
func (q *Queue) runReencode(ctx context.Context, id, path string, req Request, duration float64) error {
	ext := filepath.Ext(path)
	out := strings.TrimSuffix(path, ext) + "_encoded" + ext

	args := []string{"-y", "-i", path}
	if req.Scale != "" {
		args = append(args, "-vf", "scale="+req.Scale)
	}
	args = append(args, "-c:v", req.Codec)
	if req.Bitrate != "" {
		args = append(args, "-b:v", req.Bitrate)
	}
	args = append(args, "-c:a", "copy", "-progress", "pipe:1", "-loglevel", "error", out)

	return q.runProgress(ctx, id, exec.Command("ffmpeg", args...), duration)
}

// runExtract writes one sidecar per matching stream: audio becomes an
// id3-tagged mp3, subtitles become deduplicated WebVTT. Each sidecar is
// registered in the file's manifest with an index in the external
// namespace.
func (q *Queue) runExtract(ctx context.Context, id, path string, req Request) error {
	ts, err := media.ProbeTracks(path)
	if err != nil {
		return fmt.Errorf("probe before extract: %w", err)
	}

	var streams []playlist.Track
	if req.StreamType == "audio" {
		streams = ts.Audio
	} else {
		streams = ts.Subtitles
	}
	if len(streams) == 0 {
		return fmt.Errorf("no %s streams in %s", req.StreamType, req.Filename)
	}

	base := strings.TrimSuffix(req.Filename, filepath.Ext(req.Filename))
	extracted := 0
	for _, st := range streams {
		if st.IsSidecar() {
			continue
		}
		lang := st.Language
		if lang == "" {
			lang = fmt.Sprintf("und%d", st.Index)
		}

		var outName, codecArgs string
		if req.StreamType == "audio" {
			outName = fmt.Sprintf("%s.%s.mp3", base, lang)
			codecArgs = "libmp3lame"
		} else {
			outName = fmt.Sprintf("%s.%s.vtt", base, lang)
			codecArgs = "webvtt"
		}
		outPath := filepath.Join(q.manifests.Dir(), outName)

		cmd := exec.CommandContext(ctx, "ffmpeg", "-y",
			"-i", path,
			"-map", fmt.Sprintf("0:%d", st.Index),
			"-c", codecArgs,
			"-loglevel", "error",
			outPath)
		if err := cmd.Run(); err != nil {
			return fmt.Errorf("extract stream %d: %w", st.Index, err)
		}

		if req.StreamType == "subtitle" {
			if err := CleanVTT(outPath); err != nil {
				return fmt.Errorf("clean vtt: %w", err)
			}
		} else {
			stampSidecar(outPath, st, req.Filename)
		}

		err := q.manifests.Add(req.Filename, media.ExternalTrack{
			Type:  req.StreamType,
			Lang:  st.Language,
			Title: st.Title,
			Path:  outPath,
			URL:   "/media/tracks/" + outName,
		}, q.clk.Now())
		if err != nil {
			return err
		}
		extracted++
	}
	if extracted == 0 {
		return fmt.Errorf("all %s streams were already sidecars", req.StreamType)
	}
	return nil
}

// stampSidecar writes title/language tags onto an extracted mp3 so media
// players show something better than the raw filename. Best effort.
func stampSidecar(path string, st playlist.Track, source string) {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return
	}
	defer tag.Close()

	title := st.Title
	if title == "" {
		title = source
	}
	tag.SetTitle(title)
	if st.Language != "" {
		tag.AddTextFrame("TLAN", tag.DefaultEncoding(), st.Language)
	}
	_ = tag.Save()
}
