package tile

import (
	"errors"
	"fmt"
	"image"
	"slices"

	"github.com/disintegration/imaging"
)

// ErrTileCount is returned when a replacement tile set does not match the tiling.
var ErrTileCount = errors.New("tile: tile count mismatch")

// SubdividedImage is an image cut into overlapping tiles. Tiles are stored
// row-major: index = y*nx + x.
type SubdividedImage struct {
	source   image.Image
	boxes    []Box
	tiles    []image.Image
	nx, ny   int
	tileSize int
	overlap  int
	scale    float64
}

// Subdivide cuts img into tiles of the given size. Each tile is an
// independent copy, so callers may transform tiles freely.
func Subdivide(img image.Image, size, overlap int) (*SubdividedImage, error) {
	b := img.Bounds()
	xs, err := Split(b.Dx(), size, overlap)
	if err != nil {
		return nil, fmt.Errorf("width: %w", err)
	}
	ys, err := Split(b.Dy(), size, overlap)
	if err != nil {
		return nil, fmt.Errorf("height: %w", err)
	}

	s := &SubdividedImage{
		source:   img,
		nx:       len(xs),
		ny:       len(ys),
		tileSize: size,
		overlap:  overlap,
		scale:    1,
	}
	s.boxes = make([]Box, 0, len(xs)*len(ys))
	s.tiles = make([]image.Image, 0, len(xs)*len(ys))
	for _, y := range ys {
		for _, x := range xs {
			box := Box{Left: x.Start, Top: y.Start, Right: x.End, Bottom: y.End}
			rect := image.Rect(b.Min.X+box.Left, b.Min.Y+box.Top, b.Min.X+box.Right, b.Min.Y+box.Bottom)
			s.boxes = append(s.boxes, box)
			s.tiles = append(s.tiles, imaging.Crop(img, rect))
		}
	}
	return s, nil
}

// Source returns the image the tiling was built from
func (s *SubdividedImage) Source() image.Image { return s.source }

// Tiles returns the current tiles in row-major order.
func (s *SubdividedImage) Tiles() []image.Image { return slices.Clone(s.tiles) }

// Boxes returns the tile boxes in row-major order.
func (s *SubdividedImage) Boxes() []Box { return slices.Clone(s.boxes) }

// Grid returns the number of tiles along each axis.
func (s *SubdividedImage) Grid() (int, int) { return s.nx, s.ny }

// Len returns the number of tiles
func (s *SubdividedImage) Len() int { return len(s.tiles) }

// TileSize returns the current tile edge length.
func (s *SubdividedImage) TileSize() int { return s.tileSize }

// Overlap returns the current requested overlap.
func (s *SubdividedImage) Overlap() int { return s.overlap }

// Scale returns how much the tiles have grown relative to the original tiling.
func (s *SubdividedImage) Scale() float64 { return s.scale }

// Bounds returns the extent covered by the current boxes.
func (s *SubdividedImage) Bounds() image.Rectangle {
	var r image.Rectangle
	for _, b := range s.boxes {
		r = r.Union(image.Rect(b.Left, b.Top, b.Right, b.Bottom))
	}
	return r
}

// sides reports which edges of tile i face a neighbouring tile.
func (s *SubdividedImage) sides(i int) Side {
	x, y := i%s.nx, i/s.nx
	var sd Side
	if x > 0 {
		sd |= Left
	}
	if x < s.nx-1 {
		sd |= Right
	}
	if y > 0 {
		sd |= Top
	}
	if y < s.ny-1 {
		sd |= Bottom
	}
	return sd
}

// ReplaceTiles returns a copy of s holding the given tiles. The scale is
// inferred from the width of the first tile; boxes, tile size and overlap
// are rescaled to match. s itself is never modified.
func (s *SubdividedImage) ReplaceTiles(tiles []image.Image) (*SubdividedImage, error) {
	if len(tiles) != len(s.tiles) {
		return nil, fmt.Errorf("%w: got %d tiles, want %d", ErrTileCount, len(tiles), len(s.tiles))
	}
	for i, t := range tiles {
		if t == nil || t.Bounds().Empty() {
			return nil, fmt.Errorf("tile %d: empty image", i)
		}
	}

	ratio := float64(tiles[0].Bounds().Dx()) / float64(s.boxes[0].Width())
	next := &SubdividedImage{
		source:   s.source,
		boxes:    slices.Clone(s.boxes),
		tiles:    slices.Clone(tiles),
		nx:       s.nx,
		ny:       s.ny,
		tileSize: s.tileSize,
		overlap:  s.overlap,
		scale:    s.scale,
	}
	if ratio == 1 {
		for i, t := range tiles {
			if t.Bounds().Dx() != s.boxes[i].Width() || t.Bounds().Dy() != s.boxes[i].Height() {
				return nil, fmt.Errorf("tile %d: size %dx%d does not match box %s", i, t.Bounds().Dx(), t.Bounds().Dy(), s.boxes[i])
			}
		}
		return next, nil
	}

	for i, t := range tiles {
		w, h := t.Bounds().Dx(), t.Bounds().Dy()
		if abs(float64(w)-float64(s.boxes[i].Width())*ratio) > 1 || abs(float64(h)-float64(s.boxes[i].Height())*ratio) > 1 {
			return nil, fmt.Errorf("tile %d: size %dx%d is not box %s scaled by %.3f", i, w, h, s.boxes[i], ratio)
		}
		next.boxes[i] = s.boxes[i].scaled(ratio, w, h)
	}
	next.tileSize = int(float64(s.tileSize)*ratio + 0.5)
	next.overlap = int(float64(s.overlap)*ratio + 0.5)
	next.scale = s.scale * ratio
	return next, nil
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
