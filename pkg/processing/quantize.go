package processing

import (
	"fmt"
	"image"

	"github.com/1lann/imagequant"
	"github.com/disintegration/imaging"
)

// QuantizeOptions controls palette reduction.
type QuantizeOptions struct {
	Colors int     // palette size, 2..256
	Speed  int     // 1 (slow, best) .. 10 (fast)
	Dither float64 // 0..1
}

// DefaultQuantizeOptions mirrors the pngquant defaults.
func DefaultQuantizeOptions() QuantizeOptions {
	return QuantizeOptions{Colors: 256, Speed: 3, Dither: 1}
}

// Quantize reduces img to a palette of at most opts.Colors colours.
func Quantize(img image.Image, opts QuantizeOptions) (*image.NRGBA, error) {
	if opts.Colors < 2 || opts.Colors > 256 {
		return nil, fmt.Errorf("quantize: colors must be within 2..256, got %d", opts.Colors)
	}
	attr, err := imagequant.NewAttributes()
	if err != nil {
		return nil, fmt.Errorf("NewAttributes: %w", err)
	}
	defer attr.Release()

	if err := attr.SetSpeed(opts.Speed); err != nil {
		return nil, fmt.Errorf("SetSpeed: %w", err)
	}
	if err := attr.SetMaxColors(opts.Colors); err != nil {
		return nil, fmt.Errorf("SetMaxColors: %w", err)
	}

	b := img.Bounds()
	quant, err := imagequant.NewImage(attr, imagequant.GoImageToRgba32(img), b.Dx(), b.Dy(), 0)
	if err != nil {
		return nil, fmt.Errorf("NewImage: %w", err)
	}
	defer quant.Release()

	res, err := quant.Quantize(attr)
	if err != nil {
		return nil, fmt.Errorf("Quantize: %w", err)
	}

	if err := res.SetDitheringLevel(float32(opts.Dither)); err != nil {
		return nil, fmt.Errorf("SetDitheringLevel: %w", err)
	}
	rgb8, err := res.WriteRemappedImage()
	if err != nil {
		return nil, fmt.Errorf("WriteRemappedImage: %w", err)
	}
	out := imagequant.Rgb8PaletteToGoImage(res.GetImageWidth(), res.GetImageHeight(), rgb8, res.GetPalette())
	return imaging.Clone(out), nil
}
