package processing

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"

	"github.com/menta2k/texture-upscaler/pkg/tile"
)

var (
	gridColor    = color.NRGBA{R: 255, G: 0, B: 0, A: 255}
	overlapColor = color.NRGBA{R: 0, G: 128, B: 255, A: 96}
)

// DrawTileGrid draws every tile box over a copy of img. Overlap bands are
// tinted so seams can be inspected.
func DrawTileGrid(img image.Image, boxes []tile.Box, stroke int) *image.NRGBA {
	nrgba := imaging.Clone(img)
	if stroke < 1 {
		stroke = 1
	}

	// Tint pixels covered by more than one box
	w, h := nrgba.Rect.Dx(), nrgba.Rect.Dy()
	hits := make([]uint8, w*h)
	for _, b := range boxes {
		for y := max(b.Top, 0); y < min(b.Bottom, h); y++ {
			for x := max(b.Left, 0); x < min(b.Right, w); x++ {
				if hits[y*w+x] < 2 {
					hits[y*w+x]++
				}
			}
		}
	}
	for i, n := range hits {
		if n > 1 {
			blend(nrgba.Pix[i*4:i*4+4], overlapColor)
		}
	}

	for _, b := range boxes {
		drawBox(nrgba, b, gridColor, stroke)
	}
	return nrgba
}

func blend(px []uint8, c color.NRGBA) {
	a := uint32(c.A)
	px[0] = uint8((uint32(px[0])*(255-a) + uint32(c.R)*a) / 255)
	px[1] = uint8((uint32(px[1])*(255-a) + uint32(c.G)*a) / 255)
	px[2] = uint8((uint32(px[2])*(255-a) + uint32(c.B)*a) / 255)
}

func drawBox(img *image.NRGBA, b tile.Box, c color.NRGBA, stroke int) {
	for s := 0; s < stroke; s++ {
		drawHLine(img, b.Top+s, b.Left, b.Right, c)
		drawHLine(img, b.Bottom-1-s, b.Left, b.Right, c)
		drawVLine(img, b.Left+s, b.Top, b.Bottom, c)
		drawVLine(img, b.Right-1-s, b.Top, b.Bottom, c)
	}
}

func drawHLine(img *image.NRGBA, y, x0, x1 int, c color.NRGBA) {
	if y < 0 || y >= img.Bounds().Dy() {
		return
	}
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	x0 = max(x0, 0)
	x1 = min(x1, img.Bounds().Dx())
	i := y*img.Stride + x0*4
	for x := x0; x < x1; x++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += 4
	}
}

func drawVLine(img *image.NRGBA, x, y0, y1 int, c color.NRGBA) {
	if x < 0 || x >= img.Bounds().Dx() {
		return
	}
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	y0 = max(y0, 0)
	y1 = min(y1, img.Bounds().Dy())
	i := y0*img.Stride + x*4
	for y := y0; y < y1; y++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += img.Stride
	}
}
