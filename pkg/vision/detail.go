// Package vision measures how much fine structure an image carries, so
// flat masks and gradients can take a cheaper scaling route than detailed
// surfaces.
package vision

import (
	"image"
	"math"
)

// DetailAnalyzer measures edge density
type DetailAnalyzer struct {
	config DetailConfig
}

// DetailConfig holds configuration for detail measurement
type DetailConfig struct {
	EdgeThreshold float64 // edge strength above which a pixel counts as an edge
	MaxSamples    int     // pixels visited at most; larger images are strided
}

// Detail is the result of Measure.
type Detail struct {
	Energy    float64 // mean edge strength over the sampled pixels
	EdgeRatio float64 // share of sampled pixels above EdgeThreshold
	Samples   int
}

// New creates a new DetailAnalyzer with default configuration
func New() *DetailAnalyzer {
	return &DetailAnalyzer{
		config: DetailConfig{
			EdgeThreshold: 0.05,
			MaxSamples:    1 << 16,
		},
	}
}

// NewWithConfig creates a new DetailAnalyzer with custom configuration
func NewWithConfig(config DetailConfig) *DetailAnalyzer {
	if config.MaxSamples <= 0 {
		config.MaxSamples = 1 << 16
	}
	return &DetailAnalyzer{config: config}
}

var neighbours = [8][2]int{{-1, -1}, {-1, 0}, {-1, 1}, {0, -1}, {0, 1}, {1, -1}, {1, 0}, {1, 1}}

// Measure samples interior pixels of img and compares each with its eight
// neighbours. Images narrower than three pixels have no interior and
// measure as flat.
func (d *DetailAnalyzer) Measure(img image.Image) Detail {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width < 3 || height < 3 {
		return Detail{}
	}

	step := 1
	if interior := (width - 2) * (height - 2); interior > d.config.MaxSamples {
		step = int(math.Ceil(math.Sqrt(float64(interior) / float64(d.config.MaxSamples))))
	}

	var total float64
	var edges, samples int
	for y := 1; y < height-1; y += step {
		for x := 1; x < width-1; x += step {
			s := d.edgeStrength(img, bounds.Min.X+x, bounds.Min.Y+y)
			total += s
			if s > d.config.EdgeThreshold {
				edges++
			}
			samples++
		}
	}

	return Detail{
		Energy:    total / float64(samples),
		EdgeRatio: float64(edges) / float64(samples),
		Samples:   samples,
	}
}

// edgeStrength is the mean colour distance to the eight neighbours,
// normalised so that black next to white is 1. Alpha counts as a channel.
func (d *DetailAnalyzer) edgeStrength(img image.Image, x, y int) float64 {
	r1, g1, b1, a1 := img.At(x, y).RGBA()

	var sum float64
	for _, off := range neighbours {
		r2, g2, b2, a2 := img.At(x+off[0], y+off[1]).RGBA()
		dr := float64(r1) - float64(r2)
		dg := float64(g1) - float64(g2)
		db := float64(b1) - float64(b2)
		da := float64(a1) - float64(a2)
		sum += math.Sqrt((dr*dr + dg*dg + db*db + da*da) / 3)
	}
	return sum / (8.0 * 65535.0)
}
