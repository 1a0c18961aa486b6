package text

import (
	"image"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

// Width is the advance width of s in whole pixels, rounded up.
func Width(face font.Face, s string) int {
	return font.MeasureString(face, s).Ceil()
}

// InkBounds is the pixel box covered by the glyphs of s when drawn with the
// dot at the origin. Min.Y is negative above the baseline.
func InkBounds(face font.Face, s string) image.Rectangle {
	b, _ := font.BoundString(face, s)
	return image.Rect(b.Min.X.Floor(), b.Min.Y.Floor(), b.Max.X.Ceil(), b.Max.Y.Ceil())
}

// InkBoundsF is InkBounds without rounding.
func InkBoundsF(face font.Face, s string) (minX, minY, maxX, maxY float64) {
	b, _ := font.BoundString(face, s)
	return toFloat(b.Min.X), toFloat(b.Min.Y), toFloat(b.Max.X), toFloat(b.Max.Y)
}

// Ascent is the face ascent in pixels.
func Ascent(face font.Face) int {
	return face.Metrics().Ascent.Ceil()
}

func toFloat(v fixed.Int26_6) float64 {
	return float64(v) / 64
}
