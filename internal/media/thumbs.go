package media

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Thumbnailer renders and caches video thumbnails in the OS temp
// directory, which the OS clears on reboot. Cache key is (source, width);
// width 720 keeps the legacy plain filename so old client caches stay
// valid.
type Thumbnailer struct {
	dir string
}

const legacyThumbWidth = 720

func NewThumbnailer() *Thumbnailer {
	dir := filepath.Join(os.TempDir(), "sync-player-thumbs")
	_ = os.MkdirAll(dir, 0o755)
	return &Thumbnailer{dir: dir}
}

func (t *Thumbnailer) cachePath(source string, width int) string {
	base := strings.TrimSuffix(source, filepath.Ext(source))
	if width == legacyThumbWidth {
		return filepath.Join(t.dir, base+".jpg")
	}
	return filepath.Join(t.dir, fmt.Sprintf("%s_w%d.jpg", base, width))
}

// Get returns the cached thumbnail path for (source, width), rendering it
// with ffmpeg on a miss. No locking: concurrent misses both render, the
// atomic rename makes last-writer-wins harmless.
func (t *Thumbnailer) Get(sourcePath, sourceName string, width int) (string, error) {
	if width <= 0 {
		width = legacyThumbWidth
	}
	out := t.cachePath(sourceName, width)
	if _, err := os.Stat(out); err == nil {
		return out, nil
	}

	tmp := out + ".tmp.jpg"
	cmd := exec.Command("ffmpeg", "-y",
		"-ss", "10",
		"-i", sourcePath,
		"-vframes", "1",
		"-vf", fmt.Sprintf("scale=%d:-1", width),
		tmp)
	if err := cmd.Run(); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("media: thumbnail render: %w", err)
	}
	if err := os.Rename(tmp, out); err != nil {
		return "", err
	}
	return out, nil
}
