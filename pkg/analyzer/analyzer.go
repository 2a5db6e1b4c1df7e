package analyzer

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// Mode is the colour class of an image as seen by the sorters.
type Mode string

const (
	ModeAlpha Mode = "alpha"
	ModeGray  Mode = "gray"
	ModeColor Mode = "color"
)

// Modes lists every Mode in a fixed order
var Modes = []Mode{ModeAlpha, ModeGray, ModeColor}

// ImageAnalyzer inspects images for the routing stages
type ImageAnalyzer struct {
	config Config
}

// Config holds configuration for the image analyzer
type Config struct {
	ChromaTolerance float64 // max HCL chroma still considered gray
	MaxSamples      int     // pixels inspected per image, 0 = all
	MinImageSize    int
}

// New creates a new ImageAnalyzer with default configuration
func New() *ImageAnalyzer {
	return &ImageAnalyzer{
		config: Config{
			ChromaTolerance: 0.02,
			MaxSamples:      1 << 16,
			MinImageSize:    1,
		},
	}
}

// NewWithConfig creates a new ImageAnalyzer with custom configuration
func NewWithConfig(config Config) *ImageAnalyzer {
	return &ImageAnalyzer{config: config}
}

// ImageInfo contains basic image metadata
type ImageInfo struct {
	Width       int
	Height      int
	AspectRatio float64
	Area        int
	HasAlpha    bool
	Grayscale   bool
	MaxChroma   float64
}

// Mode returns the colour class: alpha when any sampled pixel is not
// fully opaque, gray when no pixel exceeds the chroma tolerance, color
// otherwise.
func (i ImageInfo) Mode() Mode {
	switch {
	case i.HasAlpha:
		return ModeAlpha
	case i.Grayscale:
		return ModeGray
	default:
		return ModeColor
	}
}

// GetImageInfo returns size and colour information about an image
func (a *ImageAnalyzer) GetImageInfo(img image.Image) ImageInfo {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	info := ImageInfo{
		Width:  width,
		Height: height,
		Area:   width * height,
	}
	if height > 0 {
		info.AspectRatio = float64(width) / float64(height)
	}
	if info.Area == 0 {
		return info
	}

	step := 1
	if a.config.MaxSamples > 0 && info.Area > a.config.MaxSamples {
		step = int(math.Ceil(math.Sqrt(float64(info.Area) / float64(a.config.MaxSamples))))
	}

	for y := bounds.Min.Y; y < bounds.Max.Y; y += step {
		for x := bounds.Min.X; x < bounds.Max.X; x += step {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			if c.A != 0xff {
				info.HasAlpha = true
			}
			cf := colorful.Color{R: float64(c.R) / 255, G: float64(c.G) / 255, B: float64(c.B) / 255}
			if _, chroma, _ := cf.Hcl(); chroma > info.MaxChroma {
				info.MaxChroma = chroma
			}
		}
	}
	info.Grayscale = info.MaxChroma <= a.config.ChromaTolerance
	return info
}

// Mode is shorthand for GetImageInfo(img).Mode().
func (a *ImageAnalyzer) Mode(img image.Image) Mode {
	return a.GetImageInfo(img).Mode()
}

// ValidateImage checks if an image meets minimum requirements
func (a *ImageAnalyzer) ValidateImage(img image.Image) error {
	bounds := img.Bounds()
	if bounds.Dx() < a.config.MinImageSize || bounds.Dy() < a.config.MinImageSize {
		return fmt.Errorf("image too small: %dx%d (minimum: %d)",
			bounds.Dx(), bounds.Dy(), a.config.MinImageSize)
	}
	return nil
}
