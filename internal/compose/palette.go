package compose

import (
	"image/color"
	"strings"

	"github.com/chunqiusha/cardforge/internal/config"
)

type paletteEntry struct {
	keywords []string
	color    color.NRGBA
}

// Palette picks a glyph color for a color theme. Entries are tried in
// order and the first entry with a keyword contained in the theme wins.
type Palette struct {
	entries  []paletteEntry
	fallback color.NRGBA
}

// NewPalette parses configured palette entries.
func NewPalette(entries []config.PaletteEntry, fallback string) (Palette, error) {
	def, err := config.ParseColor(fallback)
	if err != nil {
		return Palette{}, err
	}
	p := Palette{fallback: def}
	for _, e := range entries {
		c, err := config.ParseColor(e.Color)
		if err != nil {
			return Palette{}, err
		}
		var keywords []string
		for _, k := range e.Keywords {
			if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
				keywords = append(keywords, k)
			}
		}
		p.entries = append(p.entries, paletteEntry{keywords: keywords, color: c})
	}
	return p, nil
}

// Match returns the color for theme.
func (p Palette) Match(theme string) color.NRGBA {
	theme = strings.ToLower(theme)
	for _, e := range p.entries {
		for _, k := range e.keywords {
			if strings.Contains(theme, k) {
				return e.color
			}
		}
	}
	return p.fallback
}
