package images

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "golang.org/x/image/webp"
)

var (
	ErrDownload   = errors.New("image download failed")
	ErrUnreadable = errors.New("image unreadable")
)

// maxImageBytes caps a single download.
const maxImageBytes = 50 << 20

// Acquirer downloads generated images and stages them on local disk
type Acquirer struct {
	HTTPClient *http.Client
	// ImageHost prefixes root-relative URLs, e.g. "https://bing.com".
	ImageHost string
	// ScratchDir holds staged files. Empty means os.TempDir().
	ScratchDir string
}

// NewAcquirer creates an acquirer with a bounded request timeout
func NewAcquirer(imageHost, scratchDir string, timeout time.Duration) *Acquirer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Acquirer{
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
		ImageHost:  imageHost,
		ScratchDir: scratchDir,
	}
}

// Staged is a downloaded image waiting to be composed.
type Staged struct {
	Path   string
	Format string
	Width  int
	Height int
}

// Release deletes the staged file.
func (s *Staged) Release() error {
	if s == nil || s.Path == "" {
		return nil
	}
	if err := os.Remove(s.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove staged image: %w", err)
	}
	return nil
}

// Resolve turns an image reference from the page into an absolute URL.
// Scheme-relative references get https, root-relative ones get the image
// host. data: URLs are returned unchanged.
func Resolve(raw, imageHost string) (string, error) {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == "":
		return "", fmt.Errorf("%w: empty image URL", ErrDownload)
	case strings.HasPrefix(raw, "data:"):
		return raw, nil
	case strings.HasPrefix(raw, "//"):
		return "https:" + raw, nil
	case strings.HasPrefix(raw, "/"):
		if imageHost == "" {
			return "", fmt.Errorf("%w: root-relative URL %q with no image host", ErrDownload, raw)
		}
		return strings.TrimRight(imageHost, "/") + raw, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: invalid image URL: %v", ErrDownload, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: unsupported image URL %q", ErrDownload, raw)
	}
	return raw, nil
}

// Acquire resolves raw, downloads it and stages the bytes in ScratchDir.
// The bytes must decode as an image.
func (a *Acquirer) Acquire(ctx context.Context, raw string) (*Staged, error) {
	resolved, err := Resolve(raw, a.ImageHost)
	if err != nil {
		return nil, err
	}

	var data []byte
	if strings.HasPrefix(resolved, "data:") {
		data, err = decodeDataURL(resolved)
	} else {
		slog.Debug("Downloading image", "url", resolved)
		data, err = a.download(ctx, resolved)
	}
	if err != nil {
		return nil, err
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}

	dir := a.ScratchDir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create scratch directory: %w", err)
	}

	path := filepath.Join(dir, "cardforge-"+uuid.NewString()+".png")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write staged image: %w", err)
	}

	slog.Debug("Staged image", "path", path, "format", format, "width", cfg.Width, "height", cfg.Height, "bytes", len(data))
	return &Staged{Path: path, Format: format, Width: cfg.Width, Height: cfg.Height}, nil
}

func (a *Acquirer) download(ctx context.Context, imageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDownload, err)
	}
	req.Header.Set("Accept", "image/*")

	client := a.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to fetch image: %v", ErrDownload, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: image URL returned status %d", ErrDownload, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read image data: %v", ErrDownload, err)
	}
	if len(data) > maxImageBytes {
		return nil, fmt.Errorf("%w: image larger than %d bytes", ErrDownload, maxImageBytes)
	}
	return data, nil
}

func decodeDataURL(s string) ([]byte, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(s, "data:"), ",")
	if !ok {
		return nil, fmt.Errorf("%w: malformed data URL", ErrUnreadable)
	}
	if !strings.HasSuffix(meta, ";base64") {
		unescaped, err := url.PathUnescape(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: malformed data URL: %v", ErrUnreadable, err)
		}
		return []byte(unescaped), nil
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64 payload: %v", ErrUnreadable, err)
	}
	return data, nil
}

// DataURL encodes image bytes as a base64 data URL.
func DataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
