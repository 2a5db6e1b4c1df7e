package tile

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
)

// Side is a bit set of tile edges.
type Side uint8

const (
	Left Side = 1 << iota
	Top
	Right
	Bottom
)

// Ramp samples the error function over [-2, 2] and rescales it into [0, 1].
// The result rises from ~0.002 at index 0 to ~0.998 at the last index.
func Ramp(overlap int) []float64 {
	if overlap <= 0 {
		return nil
	}
	xs := make([]float64, overlap)
	if overlap == 1 {
		xs[0] = -2
	} else {
		floats.Span(xs, -2, 2)
	}
	for i, x := range xs {
		xs[i] = (math.Erf(x) + 1) / 2
	}
	return xs
}

// WeightMap holds the four edge tapers for one tile shape. Each grid is
// row-major with Width*Height entries and equals 1 outside its band.
type WeightMap struct {
	Width   int
	Height  int
	Overlap int
	Left    []float64
	Top     []float64
	Right   []float64
	Bottom  []float64
}

// EdgeTapers builds the weight map for a square tile.
func EdgeTapers(size, overlap int) *WeightMap {
	return NewWeightMap(size, size, overlap)
}

// NewWeightMap builds the weight map for a width x height tile. A band wider
// than the tile is clipped to the tile.
func NewWeightMap(width, height, overlap int) *WeightMap {
	wm := &WeightMap{
		Width:   width,
		Height:  height,
		Overlap: overlap,
		Left:    ones(width * height),
		Top:     ones(width * height),
		Right:   ones(width * height),
		Bottom:  ones(width * height),
	}
	ramp := Ramp(overlap)
	rev := slices.Clone(ramp)
	slices.Reverse(rev)

	bandX := min(len(ramp), width)
	bandY := min(len(ramp), height)
	for y := 0; y < height; y++ {
		row := y * width
		for i := 0; i < bandX; i++ {
			wm.Left[row+i] = ramp[i]
			wm.Right[row+width-bandX+i] = rev[len(rev)-bandX+i]
		}
	}
	for i := 0; i < bandY; i++ {
		top := i * width
		bottom := (height - bandY + i) * width
		for x := 0; x < width; x++ {
			wm.Top[top+x] = ramp[i]
			wm.Bottom[bottom+x] = rev[len(rev)-bandY+i]
		}
	}
	return wm
}

// Mask multiplies the tapers of the requested sides into one grid.
func (wm *WeightMap) Mask(sides Side) []float64 {
	mask := ones(wm.Width * wm.Height)
	for _, e := range []struct {
		side Side
		grid []float64
	}{
		{Left, wm.Left},
		{Top, wm.Top},
		{Right, wm.Right},
		{Bottom, wm.Bottom},
	} {
		if sides&e.side != 0 {
			floats.Mul(mask, e.grid)
		}
	}
	return mask
}

func ones(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = 1
	}
	return s
}
