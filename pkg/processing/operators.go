package processing

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"

	"github.com/disintegration/gift"
	"github.com/disintegration/imaging"
	xdraw "golang.org/x/image/draw"
)

var filters = map[string]imaging.ResampleFilter{
	"nearest":    imaging.NearestNeighbor,
	"box":        imaging.Box,
	"linear":     imaging.Linear,
	"hermite":    imaging.Hermite,
	"catmullrom": imaging.CatmullRom,
	"bspline":    imaging.BSpline,
	"lanczos":    imaging.Lanczos,
}

// ParseFilter maps a filter name to an imaging resampling filter. An empty
// name selects Lanczos.
func ParseFilter(name string) (imaging.ResampleFilter, error) {
	if name == "" {
		return imaging.Lanczos, nil
	}
	f, ok := filters[strings.ToLower(name)]
	if !ok {
		return imaging.ResampleFilter{}, fmt.Errorf("unknown resample filter %q", name)
	}
	return f, nil
}

// Resize resizes img to width x height. A zero dimension preserves the aspect ratio.
func Resize(img image.Image, width, height int, filter imaging.ResampleFilter) *image.NRGBA {
	return imaging.Resize(img, width, height, filter)
}

// ScaleBy resizes img by factor, rounding to the nearest pixel.
func ScaleBy(img image.Image, factor float64, filter imaging.ResampleFilter) *image.NRGBA {
	b := img.Bounds()
	w := max(1, int(math.Round(float64(b.Dx())*factor)))
	h := max(1, int(math.Round(float64(b.Dy())*factor)))
	return imaging.Resize(img, w, h, filter)
}

// ScaleCatmullRom resizes img by factor with the x/image CatmullRom kernel.
func ScaleCatmullRom(img image.Image, factor float64) *image.NRGBA {
	b := img.Bounds()
	w := max(1, int(math.Round(float64(b.Dx())*factor)))
	h := max(1, int(math.Round(float64(b.Dy())*factor)))
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	return dst
}

// Crop cuts rect out of img; rect is relative to the image origin.
func Crop(img image.Image, rect image.Rectangle) (*image.NRGBA, error) {
	b := img.Bounds()
	r := rect.Add(b.Min).Intersect(b)
	if r.Empty() {
		return nil, fmt.Errorf("empty crop rectangle %v for %dx%d image", rect, b.Dx(), b.Dy())
	}
	return imaging.Crop(img, r), nil
}

// Grayscale converts img to luminance, keeping alpha.
func Grayscale(img image.Image) *image.NRGBA {
	g := gift.New(gift.Grayscale())
	dst := image.NewNRGBA(g.Bounds(img.Bounds()))
	g.Draw(dst, img)
	return dst
}

// Threshold maps every pixel to black or white at the given level in percent.
func Threshold(img image.Image, level float32) *image.NRGBA {
	g := gift.New(gift.Threshold(level))
	dst := image.NewNRGBA(g.Bounds(img.Bounds()))
	g.Draw(dst, img)
	return dst
}

// Sharpen applies an unsharp mask.
func Sharpen(img image.Image, sigma, amount, threshold float32) *image.NRGBA {
	g := gift.New(gift.UnsharpMask(sigma, amount, threshold))
	dst := image.NewNRGBA(g.Bounds(img.Bounds()))
	g.Draw(dst, img)
	return dst
}

// Opaque drops the alpha channel.
func Opaque(img image.Image) *image.NRGBA {
	dst := imaging.Clone(img)
	for i := 3; i < len(dst.Pix); i += 4 {
		dst.Pix[i] = 0xff
	}
	return dst
}

// SplitAlpha separates img into an opaque colour image and a grayscale
// image holding the alpha channel.
func SplitAlpha(img image.Image) (*image.NRGBA, *image.NRGBA) {
	src := imaging.Clone(img)
	colour := image.NewNRGBA(src.Rect)
	alpha := image.NewNRGBA(src.Rect)
	for i := 0; i < len(src.Pix); i += 4 {
		copy(colour.Pix[i:i+3], src.Pix[i:i+3])
		colour.Pix[i+3] = 0xff
		a := src.Pix[i+3]
		alpha.Pix[i+0], alpha.Pix[i+1], alpha.Pix[i+2], alpha.Pix[i+3] = a, a, a, 0xff
	}
	return colour, alpha
}

// MergeAlpha combines an RGB image with the luminance of an alpha image.
// The alpha image is resized to the colour image when they differ.
func MergeAlpha(colour, alpha image.Image) *image.NRGBA {
	dst := imaging.Clone(colour)
	if alpha.Bounds().Size() != dst.Rect.Size() {
		alpha = imaging.Resize(alpha, dst.Rect.Dx(), dst.Rect.Dy(), imaging.Lanczos)
	}
	a := imaging.Clone(alpha)
	for y := 0; y < dst.Rect.Dy(); y++ {
		for x := 0; x < dst.Rect.Dx(); x++ {
			i := dst.PixOffset(x, y)
			j := a.PixOffset(x, y)
			l := color.GrayModel.Convert(color.NRGBA{a.Pix[j], a.Pix[j+1], a.Pix[j+2], 0xff}).(color.Gray)
			dst.Pix[i+3] = l.Y
		}
	}
	return dst
}
