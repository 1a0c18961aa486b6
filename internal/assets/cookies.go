package assets

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Cookie is one stored cookie, in the shape browser automation tools export.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"`
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
	SameSite string  `json:"sameSite,omitempty"`
}

// CookieJar persists browser cookies as a JSON array of cookie objects.
type CookieJar struct {
	path string
}

// NewCookieJar returns a jar stored at path.
func NewCookieJar(path string) *CookieJar {
	return &CookieJar{path: path}
}

// Path returns the jar's file location.
func (j *CookieJar) Path() string {
	return j.path
}

// Load returns the stored cookies. A jar that was never saved is empty.
func (j *CookieJar) Load() ([]Cookie, error) {
	data, err := os.ReadFile(j.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cookie file: %w", err)
	}

	var cookies []Cookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		return nil, fmt.Errorf("failed to parse cookie file %s: %w", j.path, err)
	}
	return cookies, nil
}

// Save replaces the stored cookies through a temp file and rename.
func (j *CookieJar) Save(cookies []Cookie) error {
	if cookies == nil {
		cookies = []Cookie{}
	}
	data, err := json.MarshalIndent(cookies, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode cookies: %w", err)
	}

	if dir := filepath.Dir(j.path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create cookie directory: %w", err)
		}
	}

	tmp := j.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write cookie file: %w", err)
	}
	if err := os.Rename(tmp, j.path); err != nil {
		return fmt.Errorf("failed to replace cookie file: %w", err)
	}

	slog.Debug("Saved cookies", "path", j.path, "count", len(cookies))
	return nil
}
