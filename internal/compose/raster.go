package compose

import (
	"fmt"
	"image"
	"image/draw"

	"github.com/chunqiusha/cardforge/internal/config"
	"github.com/disintegration/imaging"
)

// ContentBounds is the tight box around the non-transparent pixels of img.
// A fully opaque or fully transparent layer yields its full extent.
func ContentBounds(img *image.NRGBA) image.Rectangle {
	b := img.Bounds()
	minX, minY, maxX, maxY := b.Max.X, b.Max.Y, b.Min.X, b.Min.Y
	found := false
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[img.PixOffset(b.Min.X, y):]
		for x := b.Min.X; x < b.Max.X; x++ {
			if row[(x-b.Min.X)*4+3] == 0 {
				continue
			}
			found = true
			if x < minX {
				minX = x
			}
			if x >= maxX {
				maxX = x + 1
			}
			if y < minY {
				minY = y
			}
			if y >= maxY {
				maxY = y + 1
			}
		}
	}
	if !found {
		return b
	}
	return image.Rect(minX, minY, maxX, maxY)
}

// FitArt runs the fitting stages in order: fixed margin shrink, fit to the
// available width when still wider, uniform final scale, symmetric side crop,
// then a light blur.
func FitArt(art image.Image, backgroundWidth int, l config.Layout) (*image.NRGBA, error) {
	size := art.Bounds().Size()

	w, h := size.X-l.MarginShrink, size.Y-l.MarginShrink
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("generated image %dx%d is smaller than the %dpx margin", size.X, size.Y, l.MarginShrink)
	}
	img := imaging.Resize(art, w, h, imaging.Lanczos)

	if available := backgroundWidth - l.SideReserve; w > available {
		scale := float64(available) / float64(w)
		w, h = available, int(float64(h)*scale)
		if w <= 0 || h <= 0 {
			return nil, fmt.Errorf("background width %d leaves no room for art", backgroundWidth)
		}
		img = imaging.Resize(img, w, h, imaging.Lanczos)
	}

	w, h = int(float64(w)*l.FinalScale), int(float64(h)*l.FinalScale)
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("final scale %v collapses art to %dx%d", l.FinalScale, w, h)
	}
	img = imaging.Resize(img, w, h, imaging.Lanczos)

	cropped := w - 2*l.CropEachSide
	if cropped <= 0 {
		return nil, fmt.Errorf("side crop of %dpx removes the whole %dpx wide art", l.CropEachSide, w)
	}
	img = imaging.Crop(img, image.Rect(l.CropEachSide, 0, l.CropEachSide+cropped, h))

	if l.BlurSigma > 0 {
		img = imaging.Blur(img, l.BlurSigma)
	}
	return img, nil
}

// FeatherAlpha is the opacity of row i of a ramp of n rows, rising from 0 to
// 255. A one-row ramp is fully opaque.
func FeatherAlpha(i, n int) uint8 {
	if n <= 1 {
		return 255
	}
	return uint8(255 * i / (n - 1))
}

// Feather pastes src onto dst with its top-left corner at at. The middle band
// is copied as is; the top and bottom fade rows of the source are blended one
// row at a time through a single-row alpha mask, ramping in from transparent
// at the top edge and out to transparent at the bottom edge.
func Feather(dst draw.Image, src *image.NRGBA, at image.Point, fade int) {
	size := src.Bounds().Size()
	if fade > size.Y/2 {
		fade = size.Y / 2
	}
	if fade < 0 {
		fade = 0
	}

	if middle := size.Y - 2*fade; middle > 0 {
		r := image.Rect(at.X, at.Y+fade, at.X+size.X, at.Y+fade+middle)
		draw.Draw(dst, r, src, src.Bounds().Min.Add(image.Pt(0, fade)), draw.Src)
	}

	mask := image.NewAlpha(image.Rect(0, 0, size.X, 1))
	blendRow := func(row int, alpha uint8) {
		for i := range mask.Pix {
			mask.Pix[i] = alpha
		}
		r := image.Rect(at.X, at.Y+row, at.X+size.X, at.Y+row+1)
		draw.DrawMask(dst, r, src, src.Bounds().Min.Add(image.Pt(0, row)), mask, image.Point{}, draw.Over)
	}

	for i := 0; i < fade; i++ {
		blendRow(i, FeatherAlpha(i, fade))
		blendRow(size.Y-fade+i, FeatherAlpha(fade-1-i, fade))
	}
}
