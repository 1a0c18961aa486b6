// Package text resolves fonts and measures and wraps strings for card
// rendering.
package text

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/goregular"
)

// EmbeddedGo names the Go Regular font compiled into the binary.
const EmbeddedGo = "goregular"

// Family produces faces of one typeface at any size.
type Family interface {
	Name() string
	Face(size float64) font.Face
}

type trueTypeFamily struct {
	name string
	font *truetype.Font
}

func (f *trueTypeFamily) Name() string { return f.name }

func (f *trueTypeFamily) Face(size float64) font.Face {
	return truetype.NewFace(f.font, &truetype.Options{Size: size, Hinting: font.HintingNone})
}

// bitmapFamily is the last resort: a fixed 7x13 face that ignores size.
type bitmapFamily struct{}

func (bitmapFamily) Name() string { return "basicfont" }

func (bitmapFamily) Face(float64) font.Face { return basicfont.Face7x13 }

// Bitmap returns the built-in bitmap family.
func Bitmap() Family { return bitmapFamily{} }

// ParseFamily parses TrueType data.
func ParseFamily(name string, data []byte) (Family, error) {
	f, err := truetype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse font %s: %w", name, err)
	}
	return &trueTypeFamily{name: name, font: f}, nil
}

var (
	goOnce   sync.Once
	goFamily Family
)

// GoRegular returns the embedded Go Regular family.
func GoRegular() Family {
	goOnce.Do(func() {
		f, err := ParseFamily(EmbeddedGo, goregular.TTF)
		if err != nil {
			panic(err)
		}
		goFamily = f
	})
	return goFamily
}

// Resolver finds the first loadable font from a prioritized list.
type Resolver struct {
	Candidates []string
	Dirs       []string
}

// Resolve returns the first candidate that loads, or the bitmap family when
// none do. It never fails.
func (r Resolver) Resolve() Family {
	for _, candidate := range r.Candidates {
		if strings.EqualFold(candidate, EmbeddedGo) {
			return GoRegular()
		}
		for _, path := range r.paths(candidate) {
			data, err := os.ReadFile(path)
			if err != nil {
				continue
			}
			family, err := ParseFamily(filepath.Base(path), data)
			if err != nil {
				slog.Warn("Skipping unusable font", "path", path, "err", err)
				continue
			}
			slog.Debug("Resolved font", "path", path)
			return family
		}
	}
	slog.Warn("No font candidate resolved, using built-in bitmap font", "candidates", r.Candidates)
	return Bitmap()
}

func (r Resolver) paths(candidate string) []string {
	if filepath.IsAbs(candidate) || strings.ContainsRune(candidate, filepath.Separator) {
		return []string{candidate}
	}
	paths := []string{candidate}
	for _, dir := range r.Dirs {
		paths = append(paths, filepath.Join(dir, candidate))
	}
	return paths
}
