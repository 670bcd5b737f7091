// Package media stores case images uploaded over WhatsApp and hands back
// public links for the ops team. Twilio hosts inbound media behind
// basic-auth URLs, so images are fetched here and re-hosted on the
// configured backend.
package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/jilsnshah/alignflow/internal/config"
)

// Store persists one media object and returns a URL the ops team can open.
type Store interface {
	Save(ctx context.Context, name string, contentType string, r io.Reader) (string, error)
}

// New builds the store selected by configuration.
func New(ctx context.Context, cfg config.MediaConfig) (Store, error) {
	switch cfg.Backend {
	case "local":
		return NewLocal(cfg.Dir, cfg.PublicBaseURL)
	case "s3":
		return NewS3(ctx, cfg)
	default:
		return nil, fmt.Errorf("media: unknown backend %q", cfg.Backend)
	}
}

// Fetcher downloads inbound media from the transport provider.
type Fetcher struct {
	client   *http.Client
	username string
	password string
}

// NewFetcher builds a downloader authenticated with the Twilio account
// credentials, which Twilio media URLs require.
func NewFetcher(cfg config.WhatsAppConfig) *Fetcher {
	return &Fetcher{
		client:   &http.Client{Timeout: 30 * time.Second},
		username: cfg.AccountSID,
		password: cfg.AuthToken,
	}
}

// Fetch downloads one media URL and returns its bytes and content type.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("media: build request for %s: %w", url, err)
	}
	req.SetBasicAuth(f.username, f.password)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("media: fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("media: fetch %s: status %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("media: read %s: %w", url, err)
	}
	return data, resp.Header.Get("Content-Type"), nil
}

// ObjectName builds a stable object name for one upload.
func ObjectName(caseID string, seq int, contentType string) string {
	ext := ".bin"
	switch {
	case strings.Contains(contentType, "jpeg"), strings.Contains(contentType, "jpg"):
		ext = ".jpg"
	case strings.Contains(contentType, "png"):
		ext = ".png"
	case strings.Contains(contentType, "pdf"):
		ext = ".pdf"
	}
	return fmt.Sprintf("%s-%02d%s", caseID, seq, ext)
}

// cleanName strips any path components from a client-supplied name.
func cleanName(name string) string {
	return path.Base(path.Clean("/" + name))
}
