// Package tile splits images into overlapping tiles and blends them back
// together once every tile has been transformed.
//
// Tiles are placed per axis. The outer tiles are anchored to the image
// boundary and the interior tiles are spread evenly between them, so the
// effective overlap is usually a little larger than the requested one:
//
//	count   = 2 + ceil((full - 2*size + overlap) / (size - overlap))
//	spacing = (full - size) / (count - 1)
//
// An axis shorter than one tile gets a single tile spanning the whole axis.
package tile

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// ErrInvalidGeometry is returned when a tile size and overlap cannot tile anything.
var ErrInvalidGeometry = errors.New("tile: invalid geometry")

// Span is a half-open [Start, End) interval along one axis.
type Span struct {
	Start int
	End   int
}

// Len returns the length of the span
func (s Span) Len() int {
	return s.End - s.Start
}

// Box is an axis-aligned rectangle in pixel coordinates.
type Box struct {
	Left   int
	Top    int
	Right  int
	Bottom int
}

// Width returns the horizontal extent of the box
func (b Box) Width() int {
	return b.Right - b.Left
}

// Height returns the vertical extent of the box
func (b Box) Height() int {
	return b.Bottom - b.Top
}

func (b Box) scaled(ratio float64, w, h int) Box {
	left := int(math.Round(float64(b.Left) * ratio))
	top := int(math.Round(float64(b.Top) * ratio))
	return Box{Left: left, Top: top, Right: left + w, Bottom: top + h}
}

func (b Box) String() string {
	return fmt.Sprintf("%d,%d,%d,%d", b.Left, b.Top, b.Right, b.Bottom)
}

// CheckGeometry validates a tile size and overlap pair.
func CheckGeometry(size, overlap int) error {
	if size <= 0 {
		return fmt.Errorf("%w: size %d must be positive", ErrInvalidGeometry, size)
	}
	if overlap < 0 {
		return fmt.Errorf("%w: overlap %d must not be negative", ErrInvalidGeometry, overlap)
	}
	if size <= overlap {
		return fmt.Errorf("%w: size %d must be greater than overlap %d", ErrInvalidGeometry, size, overlap)
	}
	return nil
}

// CheckScale validates that a tile of the given size scales by factor to a
// whole number of pixels. The scale of a tiling is read back from its
// scaled tiles, so a rounded tile width skews the whole output.
func CheckScale(size int, factor float64) error {
	if factor <= 0 {
		return fmt.Errorf("%w: factor %g must be positive", ErrInvalidGeometry, factor)
	}
	scaled := float64(size) * factor
	if math.Abs(scaled-math.Round(scaled)) > 1e-6 {
		return fmt.Errorf("%w: size %d scaled by %g is %g, not a whole number of pixels",
			ErrInvalidGeometry, size, factor, scaled)
	}
	return nil
}

// Count returns how many tiles of the given size are needed to cover full
// pixels with at least the requested overlap between neighbours.
func Count(full, size, overlap int) (int, error) {
	if err := CheckGeometry(size, overlap); err != nil {
		return 0, err
	}
	if full <= 0 {
		return 0, fmt.Errorf("%w: extent %d must be positive", ErrInvalidGeometry, full)
	}
	inner := float64(full-2*size+overlap) / float64(size-overlap)
	n := 2 + int(math.Ceil(inner))
	return max(n, 1), nil
}

// Edges places count tiles of the given size along an axis of full pixels.
// The first tile starts at zero and the last one ends at full.
func Edges(full, size, count int) []Span {
	if count <= 1 || full <= size {
		return []Span{{Start: 0, End: full}}
	}
	spans := make([]Span, count)
	spans[0] = Span{Start: 0, End: size}
	spans[count-1] = Span{Start: full - size, End: full}
	if count == 2 {
		return spans
	}

	eff := float64(count*size-full) / float64(count-1)
	half := float64(size) / 2
	first := float64(size) - eff + half
	last := float64(full-size) + eff - half

	centres := make([]float64, count-2)
	if len(centres) == 1 {
		centres[0] = (first + last) / 2
	} else {
		floats.Span(centres, first, last)
	}
	for i, c := range centres {
		start := int(math.Round(c - half))
		start = min(max(start, 0), full-size)
		spans[i+1] = Span{Start: start, End: start + size}
	}
	return spans
}

// Split combines Count and Edges for one axis.
func Split(full, size, overlap int) ([]Span, error) {
	n, err := Count(full, size, overlap)
	if err != nil {
		return nil, err
	}
	return Edges(full, size, n), nil
}
