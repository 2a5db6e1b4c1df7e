package tile

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// ErrUncovered means a canvas pixel received no weight from any tile.
var ErrUncovered = errors.New("tile: pixel not covered by any tile")

// weighted is one tile's contribution: premultiplied-by-weight channels and
// the weight mask itself, both laid out on the tile's box.
type weighted struct {
	box  Box
	pix  []float64 // 4 per pixel
	mask []float64
}

// Recompose blends the tiles of s into a single image. Each tile is
// multiplied by its edge tapers, summed onto a float canvas and normalised
// by the summed weights.
func Recompose(ctx context.Context, s *SubdividedImage) (*image.NRGBA, error) {
	bounds := s.Bounds()
	w, h := bounds.Max.X, bounds.Max.Y

	maps := map[[2]int]*WeightMap{}
	for _, b := range s.boxes {
		key := [2]int{b.Width(), b.Height()}
		if _, ok := maps[key]; !ok {
			maps[key] = NewWeightMap(b.Width(), b.Height(), s.overlap)
		}
	}

	parts := make([]weighted, len(s.tiles))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i := range s.tiles {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			b := s.boxes[i]
			wm := maps[[2]int{b.Width(), b.Height()}]
			parts[i] = weigh(s.tiles[i], b, wm.Mask(s.sides(i)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	acc := make([]float64, w*h*4)
	total := make([]float64, w*h)
	for _, p := range parts {
		bw := p.box.Width()
		for y := 0; y < p.box.Height(); y++ {
			row := (p.box.Top+y)*w + p.box.Left
			for x := 0; x < bw; x++ {
				j := y*bw + x
				total[row+x] += p.mask[j]
				o := (row + x) * 4
				acc[o+0] += p.pix[j*4+0]
				acc[o+1] += p.pix[j*4+1]
				acc[o+2] += p.pix[j*4+2]
				acc[o+3] += p.pix[j*4+3]
			}
		}
	}

	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i, t := range total {
		if t <= 0 {
			return nil, fmt.Errorf("%w: (%d,%d)", ErrUncovered, i%w, i/w)
		}
		o := (i/w)*out.Stride + (i%w)*4
		for c := 0; c < 4; c++ {
			out.Pix[o+c] = clampUint8(acc[i*4+c] / t)
		}
	}
	return out, nil
}

func weigh(img image.Image, b Box, mask []float64) weighted {
	src := toNRGBA(img)
	bw, bh := b.Width(), b.Height()
	pix := make([]float64, bw*bh*4)
	for y := 0; y < bh; y++ {
		for x := 0; x < bw; x++ {
			m := mask[y*bw+x]
			s := src.PixOffset(src.Rect.Min.X+x, src.Rect.Min.Y+y)
			d := (y*bw + x) * 4
			pix[d+0] = float64(src.Pix[s+0]) * m
			pix[d+1] = float64(src.Pix[s+1]) * m
			pix[d+2] = float64(src.Pix[s+2]) * m
			pix[d+3] = float64(src.Pix[s+3]) * m
		}
	}
	return weighted{box: b, pix: pix, mask: mask}
}

func toNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok {
		return n
	}
	b := img.Bounds()
	n := image.NewNRGBA(b)
	draw.Draw(n, b, img, b.Min, draw.Src)
	return n
}

func clampUint8(v float64) uint8 {
	return uint8(math.Round(math.Min(255, math.Max(0, v))))
}
