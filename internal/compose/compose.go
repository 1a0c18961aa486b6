// Package compose builds finished card rasters from the template layers, a
// generated illustration and a card record.
package compose

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/chunqiusha/cardforge/internal/assets"
	"github.com/chunqiusha/cardforge/internal/cards"
	"github.com/chunqiusha/cardforge/internal/config"
	"github.com/chunqiusha/cardforge/internal/text"
	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"golang.org/x/image/font"
)

var ErrComposition = errors.New("card composition failed")

// Options configures a Compositor.
type Options struct {
	Layout       config.Layout
	Palette      []config.PaletteEntry
	DefaultColor string
	Glyphs       map[string]string
	// TextFont renders the name and caption, GlyphFont the group marker.
	TextFont  text.Family
	GlyphFont text.Family
}

// OptionsFromConfig resolves fonts and copies the layout settings.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Layout:       cfg.Layout,
		Palette:      cfg.Palette,
		DefaultColor: cfg.DefaultColor,
		Glyphs:       cfg.Glyphs,
		TextFont:     text.Resolver{Candidates: cfg.Fonts.Text, Dirs: fontDirs(cfg)}.Resolve(),
		GlyphFont:    text.Resolver{Candidates: cfg.Fonts.Glyph, Dirs: fontDirs(cfg)}.Resolve(),
	}
}

func fontDirs(cfg *config.Config) []string {
	return append([]string{cfg.Paths.Assets, filepath.Join(cfg.Paths.Assets, "fonts")}, cfg.Fonts.Dirs...)
}

// Compositor renders cards. It only reads the shared template layers and is
// safe for concurrent use.
type Compositor struct {
	layers       *assets.TemplateLayers
	layout       config.Layout
	palette      Palette
	glyphs       map[string]string
	textFont     text.Family
	glyphFont    text.Family
	nameColor    color.NRGBA
	captionColor color.NRGBA

	// truetype faces cache glyphs and are not safe for concurrent use
	mu    sync.Mutex
	faces map[faceKey]font.Face
}

type faceKey struct {
	family text.Family
	size   float64
}

// New creates a compositor over layers.
func New(layers *assets.TemplateLayers, opts Options) (*Compositor, error) {
	if err := layers.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrComposition, err)
	}
	palette, err := NewPalette(opts.Palette, opts.DefaultColor)
	if err != nil {
		return nil, err
	}
	nameColor, err := config.ParseColor(opts.Layout.NameColor)
	if err != nil {
		return nil, err
	}
	captionColor, err := config.ParseColor(opts.Layout.CaptionColor)
	if err != nil {
		return nil, err
	}
	if opts.TextFont == nil {
		opts.TextFont = text.Bitmap()
	}
	if opts.GlyphFont == nil {
		opts.GlyphFont = opts.TextFont
	}

	return &Compositor{
		layers:       layers,
		layout:       opts.Layout,
		palette:      palette,
		glyphs:       opts.Glyphs,
		textFont:     opts.TextFont,
		glyphFont:    opts.GlyphFont,
		nameColor:    nameColor,
		captionColor: captionColor,
		faces:        make(map[faceKey]font.Face),
	}, nil
}

// Line is one rendered caption line and the slot it occupies.
type Line struct {
	Text   string
	Bounds image.Rectangle
}

// Layout records where each element of a card landed.
type Layout struct {
	Title        image.Rectangle
	TitleContent image.Rectangle
	Caption      image.Rectangle
	Art          image.Rectangle
	Name         image.Rectangle
	NameSize     float64
	Glyph        image.Rectangle
	GlyphColor   color.NRGBA
	CaptionLines []Line
}

// Card is a finished card raster.
type Card struct {
	Image  *image.RGBA
	Layout Layout
}

// Save writes the card as PNG, replacing any existing file. Nothing is
// written if encoding fails.
func (c *Card) Save(path string) error {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, c.Image, imaging.PNG); err != nil {
		return fmt.Errorf("failed to encode card: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write card: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to move card into place: %w", err)
	}
	return nil
}

// ComposeFile composes card from the image stored at path.
func (c *Compositor) ComposeFile(card cards.Card, path string) (*Card, error) {
	art, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: staged image: %v", ErrComposition, err)
	}
	return c.Compose(card, art)
}

// Compose renders one card. On any failure it returns an error and no image.
func (c *Compositor) Compose(card cards.Card, art image.Image) (result *Card, err error) {
	if art == nil || art.Bounds().Empty() {
		return nil, fmt.Errorf("%w: no generated image", ErrComposition)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, fmt.Errorf("%w: %v", ErrComposition, r)
		}
	}()

	l := c.layout
	bg := c.layers.Background
	bgSize := bg.Bounds().Size()

	canvas := image.NewRGBA(image.Rect(0, 0, bgSize.X, bgSize.Y))
	draw.Draw(canvas, canvas.Bounds(), bg, bg.Bounds().Min, draw.Src)

	var layout Layout

	title := c.layers.Title
	content := ContentBounds(title).Sub(title.Bounds().Min)
	titleAt := image.Pt((bgSize.X-content.Dx())/2-content.Min.X, l.TitleTop)
	layout.Title = image.Rectangle{Min: titleAt, Max: titleAt.Add(title.Bounds().Size())}
	layout.TitleContent = content.Add(titleAt)
	draw.Draw(canvas, layout.Title, title, title.Bounds().Min, draw.Over)

	caption := c.layers.Caption
	captionSize := caption.Bounds().Size()
	captionAt := image.Pt((bgSize.X-captionSize.X)/2, bgSize.Y-captionSize.Y-l.CaptionBottom)
	layout.Caption = image.Rectangle{Min: captionAt, Max: captionAt.Add(captionSize)}
	draw.Draw(canvas, layout.Caption, caption, caption.Bounds().Min, draw.Over)

	fitted, err := FitArt(art, bgSize.X, l)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrComposition, err)
	}
	artSize := fitted.Bounds().Size()
	artAt := image.Pt((bgSize.X-artSize.X)/2, layout.Title.Max.Y+l.ArtGap)
	layout.Art = image.Rectangle{Min: artAt, Max: artAt.Add(artSize)}
	Feather(canvas, fitted, artAt, l.FeatherHeight)

	dc := gg.NewContextForRGBA(canvas)
	c.drawTitle(dc, card, &layout)
	c.drawCaption(dc, card.Description, &layout)

	return &Card{Image: canvas, Layout: layout}, nil
}

func (c *Compositor) face(family text.Family, size float64) font.Face {
	key := faceKey{family: family, size: size}
	if f, ok := c.faces[key]; ok {
		return f
	}
	f := family.Face(size)
	c.faces[key] = f
	return f
}

func (c *Compositor) glyphFor(group string) string {
	g := c.glyphs[strings.TrimSpace(group)]
	// variation selectors have no outline of their own
	return strings.ReplaceAll(g, "\ufe0f", "")
}

// drawTitle centers the name's ink on the title content center, using the
// largest size between NameSize and NameMinSize at which name and glyph fit.
func (c *Compositor) drawTitle(dc *gg.Context, card cards.Card, layout *Layout) {
	l := c.layout
	name := strings.TrimSpace(card.Name)
	glyph := c.glyphFor(card.Group)
	box := layout.TitleContent

	size := l.NameSize
	minSize := math.Min(l.NameMinSize, l.NameSize)
	if minSize <= 0 {
		minSize = l.NameSize
	}
	for ; size > minSize; size -= 2 {
		needed := text.InkBounds(c.face(c.textFont, size), name).Dx()
		if glyph != "" {
			needed += l.GlyphGap + text.InkBounds(c.face(c.glyphFont, size), glyph).Dx()
		}
		if needed <= box.Dx() {
			break
		}
	}
	if size < minSize {
		size = minSize
	}
	layout.NameSize = size

	cx := float64(box.Min.X) + float64(box.Dx())/2
	cy := float64(box.Min.Y) + float64(box.Dy())/2
	right := cx

	if name != "" {
		face := c.face(c.textFont, size)
		minX, minY, maxX, maxY := text.InkBoundsF(face, name)
		x := cx - (minX+maxX)/2
		y := cy - (minY+maxY)/2
		dc.SetFontFace(face)
		dc.SetColor(c.nameColor)
		dc.DrawString(name, x, y)
		layout.Name = floatRect(x+minX, y+minY, x+maxX, y+maxY)
		right = x + maxX
	}

	if glyph == "" {
		return
	}
	face := c.face(c.glyphFont, size)
	minX, minY, maxX, maxY := text.InkBoundsF(face, glyph)
	x := right + float64(l.GlyphGap) - minX
	if name == "" {
		x = cx - (minX+maxX)/2
	}
	y := cy - (minY+maxY)/2
	layout.GlyphColor = c.palette.Match(card.ColorTheme)
	dc.SetFontFace(face)
	dc.SetColor(layout.GlyphColor)
	dc.DrawString(glyph, x, y)
	layout.Glyph = floatRect(x+minX, y+minY, x+maxX, y+maxY)
}

// drawCaption wraps the description to the margined caption width and
// centers the block vertically in the caption layer.
func (c *Compositor) drawCaption(dc *gg.Context, description string, layout *Layout) {
	l := c.layout
	box := layout.Caption
	left := box.Min.X + l.CaptionMargin
	available := box.Dx() - 2*l.CaptionMargin

	face := c.face(c.textFont, l.CaptionSize)
	lines := text.Wrap(face, description, available)
	if len(lines) == 0 {
		return
	}

	lineHeight := int(l.CaptionSize) + l.LineSpacing
	top := box.Min.Y + (box.Dy()-len(lines)*lineHeight)/2
	ascent := text.Ascent(face)

	dc.SetFontFace(face)
	dc.SetColor(c.captionColor)
	for i, line := range lines {
		w := text.Width(face, line)
		x := left + (available-w)/2
		if x < left {
			x = left
		}
		y := top + i*lineHeight
		if line != "" {
			dc.DrawString(line, float64(x), float64(y+ascent))
		}
		layout.CaptionLines = append(layout.CaptionLines, Line{
			Text:   line,
			Bounds: image.Rect(x, y, x+w, y+lineHeight),
		})
	}
}

func floatRect(minX, minY, maxX, maxY float64) image.Rectangle {
	return image.Rect(int(math.Floor(minX)), int(math.Floor(minY)), int(math.Ceil(maxX)), int(math.Ceil(maxY)))
}
