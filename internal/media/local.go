package media

import (
	"os"
	"path/filepath"
)

// LocalProvider serves the media library from a directory on disk. Only
// the top level is scanned; playlist filenames never contain separators.
type LocalProvider struct {
	Root string
}

func NewLocalProvider(root string) *LocalProvider {
	_ = os.MkdirAll(root, 0o755)
	return &LocalProvider{Root: root}
}

func (l *LocalProvider) List() ([]FileInfo, error) {
	entries, err := os.ReadDir(l.Root)
	if err != nil {
		return nil, err
	}
	var out []FileInfo
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, FileInfo{
			Name:    e.Name(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	return out, nil
}

func (l *LocalProvider) Size(name string) (int64, error) {
	info, err := os.Stat(filepath.Join(l.Root, name))
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (l *LocalProvider) LocalPath(name string) (string, bool) {
	return filepath.Join(l.Root, name), true
}

func (l *LocalProvider) FetchURL(string) (string, bool) {
	return "", false
}
