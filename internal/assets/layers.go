// Package assets loads the fixed card template layers and persists the
// browser session cookie jar.
package assets

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"path/filepath"

	"github.com/disintegration/imaging"
)

// Template layer file names inside the assets directory.
const (
	BackgroundFile = "background.png"
	TitleFile      = "title.png"
	CaptionFile    = "introduce.png"
)

var ErrMissingLayer = errors.New("template layer missing")

// TemplateLayers are the three fixed rasters every card is built from.
// They are shared by all compositions and must not be drawn on.
type TemplateLayers struct {
	Background *image.NRGBA
	Title      *image.NRGBA
	Caption    *image.NRGBA
}

// LoadLayers reads the template layers from dir.
func LoadLayers(dir string) (*TemplateLayers, error) {
	background, err := loadLayer(dir, BackgroundFile)
	if err != nil {
		return nil, err
	}
	title, err := loadLayer(dir, TitleFile)
	if err != nil {
		return nil, err
	}
	caption, err := loadLayer(dir, CaptionFile)
	if err != nil {
		return nil, err
	}

	slog.Debug("Loaded template layers",
		"dir", dir,
		"background", background.Bounds().Size(),
		"title", title.Bounds().Size(),
		"caption", caption.Bounds().Size())

	return &TemplateLayers{Background: background, Title: title, Caption: caption}, nil
}

func loadLayer(dir, name string) (*image.NRGBA, error) {
	path := filepath.Join(dir, name)
	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMissingLayer, path, err)
	}
	return imaging.Clone(img), nil
}

// Validate checks that every layer is present and non-empty.
func (t *TemplateLayers) Validate() error {
	if t == nil {
		return fmt.Errorf("%w: no layers loaded", ErrMissingLayer)
	}
	for name, layer := range map[string]*image.NRGBA{
		BackgroundFile: t.Background,
		TitleFile:      t.Title,
		CaptionFile:    t.Caption,
	} {
		if layer == nil || layer.Bounds().Empty() {
			return fmt.Errorf("%w: %s is empty", ErrMissingLayer, name)
		}
	}
	return nil
}
