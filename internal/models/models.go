package models

import (
	"image"
	"time"

	"github.com/chunqiusha/cardforge/internal/cards"
)

// Preview is a card composed by the preview server
type Preview struct {
	ID        string        `json:"id"`
	Card      cards.Card    `json:"card"`
	ImageURL  string        `json:"image_url"`
	ImagePath string        `json:"-"`
	Source    string        `json:"source"` // "upload" or "url"
	Art       ArtInfo       `json:"art"`
	Layout    LayoutSummary `json:"layout"`
	CreatedAt time.Time     `json:"created_at"`
}

// ArtInfo describes the generated image a preview was composed from
type ArtInfo struct {
	Format string `json:"format"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// LayoutSummary reports where the compositor placed each element
type LayoutSummary struct {
	Width        int      `json:"width"`
	Height       int      `json:"height"`
	Title        Rect     `json:"title"`
	Caption      Rect     `json:"caption"`
	Art          Rect     `json:"art"`
	NameSize     float64  `json:"name_size"`
	Name         Rect     `json:"name"`
	Glyph        Rect     `json:"glyph"`
	GlyphColor   string   `json:"glyph_color,omitempty"`
	CaptionLines []string `json:"caption_lines"`
}

type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// RectOf converts an image rectangle
func RectOf(r image.Rectangle) Rect {
	return Rect{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()}
}
