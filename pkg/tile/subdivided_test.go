package tile

import (
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestImage creates a deterministic, busy RGB test image
func createTestImage(width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8((x * 255) / max(width-1, 1)),
				G: uint8((y * 255) / max(height-1, 1)),
				B: uint8((x*7 + y*13) ^ (x * y)),
				A: 255,
			})
		}
	}
	return img
}

func requireSameImage(t *testing.T, want, got image.Image, tolerance int) {
	t.Helper()
	require.Equal(t, want.Bounds().Size(), got.Bounds().Size())
	wn, gn := imaging.Clone(want), imaging.Clone(got)
	for i := range wn.Pix {
		d := int(wn.Pix[i]) - int(gn.Pix[i])
		if d < 0 {
			d = -d
		}
		if d > tolerance {
			require.Failf(t, "pixel mismatch", "byte %d (x=%d y=%d): want %d got %d",
				i, (i%wn.Stride)/4, i/wn.Stride, wn.Pix[i], gn.Pix[i])
		}
	}
}

func TestSubdivideGrid(t *testing.T) {
	img := createTestImage(256, 256)
	s, err := Subdivide(img, 128, 16)
	require.NoError(t, err)

	nx, ny := s.Grid()
	assert.Equal(t, 3, nx)
	assert.Equal(t, 3, ny)
	assert.Equal(t, 9, s.Len())
	assert.Equal(t, 1.0, s.Scale())
	assert.Equal(t, "0,0,128,128", s.Boxes()[0].String())
	assert.Equal(t, "64,0,192,128", s.Boxes()[1].String())
	assert.Equal(t, "128,128,256,256", s.Boxes()[8].String())
	for _, tl := range s.Tiles() {
		assert.Equal(t, image.Pt(128, 128), tl.Bounds().Size())
	}

	s, err = Subdivide(createTestImage(240, 240), 128, 16)
	require.NoError(t, err)
	nx, ny = s.Grid()
	assert.Equal(t, 2, nx)
	assert.Equal(t, 2, ny)
}

func TestSubdivideSmallImage(t *testing.T) {
	img := createTestImage(50, 300)
	s, err := Subdivide(img, 128, 16)
	require.NoError(t, err)
	nx, ny := s.Grid()
	assert.Equal(t, 1, nx)
	assert.Equal(t, 3, ny)
	for _, b := range s.Boxes() {
		assert.Equal(t, 50, b.Width())
	}

	out, err := Recompose(context.Background(), s)
	require.NoError(t, err)
	requireSameImage(t, img, out, 0)
}

func TestSubdivideRejectsBadGeometry(t *testing.T) {
	_, err := Subdivide(createTestImage(64, 64), 16, 16)
	require.ErrorIs(t, err, ErrInvalidGeometry)
}

func TestRecomposeIdentity(t *testing.T) {
	for _, g := range []struct{ w, h, size, overlap int }{
		{256, 256, 128, 16},
		{300, 170, 64, 8},
		{37, 23, 10, 3},
		{41, 41, 9, 8},
		{33, 65, 7, 1},
	} {
		img := createTestImage(g.w, g.h)
		s, err := Subdivide(img, g.size, g.overlap)
		require.NoError(t, err)
		out, err := Recompose(context.Background(), s)
		require.NoError(t, err)
		requireSameImage(t, img, out, 1)
	}
}

func TestRecomposeWithOffsetOrigin(t *testing.T) {
	full := createTestImage(120, 90)
	sub := full.SubImage(image.Rect(10, 5, 110, 85))
	s, err := Subdivide(sub, 32, 6)
	require.NoError(t, err)
	out, err := Recompose(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 100, 80), out.Bounds())
	requireSameImage(t, imaging.Crop(full, image.Rect(10, 5, 110, 85)), out, 0)
}

func TestReplaceTilesScales(t *testing.T) {
	img := createTestImage(256, 200)
	s, err := Subdivide(img, 128, 16)
	require.NoError(t, err)

	var scaled []image.Image
	for _, tl := range s.Tiles() {
		b := tl.Bounds()
		scaled = append(scaled, imaging.Resize(tl, b.Dx()*2, b.Dy()*2, imaging.Lanczos))
	}
	next, err := s.ReplaceTiles(scaled)
	require.NoError(t, err)

	assert.Equal(t, 2.0, next.Scale())
	assert.Equal(t, 256, next.TileSize())
	assert.Equal(t, 32, next.Overlap())
	for i, b := range next.Boxes() {
		orig := s.Boxes()[i]
		assert.Equal(t, Box{orig.Left * 2, orig.Top * 2, orig.Right * 2, orig.Bottom * 2}, b)
	}

	out, err := Recompose(context.Background(), next)
	require.NoError(t, err)
	assert.Equal(t, image.Pt(512, 400), out.Bounds().Size())

	// a second pass compounds the scale factor
	var again []image.Image
	for _, tl := range next.Tiles() {
		b := tl.Bounds()
		again = append(again, imaging.Resize(tl, b.Dx()*3/2, b.Dy()*3/2, imaging.Box))
	}
	third, err := next.ReplaceTiles(again)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, third.Scale(), 1e-9)
}

func TestReplaceTilesCountMismatch(t *testing.T) {
	img := createTestImage(256, 256)
	s, err := Subdivide(img, 128, 16)
	require.NoError(t, err)
	before := s.Boxes()

	tiles := s.Tiles()
	_, err = s.ReplaceTiles(tiles[:4])
	require.ErrorIs(t, err, ErrTileCount)

	_, err = s.ReplaceTiles(append(tiles, tiles[0]))
	require.ErrorIs(t, err, ErrTileCount)

	assert.Equal(t, 9, s.Len())
	assert.Equal(t, before, s.Boxes())
	assert.Equal(t, 1.0, s.Scale())
	assert.Equal(t, 128, s.TileSize())
}

func TestReplaceTilesInconsistentSizes(t *testing.T) {
	s, err := Subdivide(createTestImage(200, 200), 100, 10)
	require.NoError(t, err)
	tiles := s.Tiles()
	for i := range tiles {
		tiles[i] = imaging.Resize(tiles[i], 200, 200, imaging.Box)
	}
	tiles[3] = imaging.Resize(tiles[3], 150, 150, imaging.Box)
	_, err = s.ReplaceTiles(tiles)
	require.Error(t, err)
	assert.Equal(t, 1.0, s.Scale())
}

func TestApplyDoublesCorners(t *testing.T) {
	img := createTestImage(256, 256)
	double := func(_ context.Context, _ int, tl image.Image) (image.Image, error) {
		b := tl.Bounds()
		return imaging.Resize(tl, b.Dx()*2, b.Dy()*2, imaging.Lanczos), nil
	}

	out, sub, err := Apply(context.Background(), img, Options{Size: 128, Overlap: 16}, double)
	require.NoError(t, err)
	assert.Equal(t, image.Pt(512, 512), out.Bounds().Size())
	assert.Equal(t, 2.0, sub.Scale())

	direct := imaging.Resize(img, 512, 512, imaging.Lanczos)
	for _, p := range []image.Point{{0, 0}, {511, 0}, {0, 511}, {511, 511}} {
		assert.Equal(t, direct.NRGBAAt(p.X, p.Y), out.NRGBAAt(p.X, p.Y), "corner %v", p)
	}
}

func TestApplyIdentityOperatorIsLossless(t *testing.T) {
	img := createTestImage(97, 131)
	same := func(_ context.Context, _ int, tl image.Image) (image.Image, error) { return tl, nil }
	out, _, err := Apply(context.Background(), img, Options{Size: 24, Overlap: 5, Workers: 3}, same)
	require.NoError(t, err)
	requireSameImage(t, img, out, 0)
}

func TestApplyPropagatesOperatorError(t *testing.T) {
	img := createTestImage(64, 64)
	boom := func(_ context.Context, i int, tl image.Image) (image.Image, error) {
		if i == 2 {
			return nil, assert.AnError
		}
		return tl, nil
	}
	_, _, err := Apply(context.Background(), img, Options{Size: 32, Overlap: 4}, boom)
	require.ErrorIs(t, err, assert.AnError)
	require.Contains(t, err.Error(), "tile 2")
}
