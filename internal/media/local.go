package media

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Local writes media to a directory served by the webhook server at
// /media/<name>.
type Local struct {
	dir     string
	baseURL string
}

// NewLocal creates the directory if needed and returns a local store.
func NewLocal(dir, baseURL string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("media: create dir %s: %w", dir, err)
	}
	return &Local{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (l *Local) Save(ctx context.Context, name, contentType string, r io.Reader) (string, error) {
	name = cleanName(name)
	dst := filepath.Join(l.dir, name)

	f, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("media: create %s: %w", dst, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return "", fmt.Errorf("media: write %s: %w", dst, err)
	}
	return l.baseURL + "/media/" + name, nil
}

// Path resolves a stored object name to its on-disk location, for serving.
func (l *Local) Path(name string) string {
	return filepath.Join(l.dir, cleanName(name))
}
