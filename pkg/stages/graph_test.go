package stages

import (
	"context"
	"fmt"
	"image"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/texture-upscaler/internal/config"
	"github.com/menta2k/texture-upscaler/pkg/pipeline"
	"github.com/menta2k/texture-upscaler/pkg/processing"
)

const textureGraph = `
stages:
  source:
    Directory: {path: %[1]s}
    downstream: backup
  backup:
    Backup: {}
    downstream: mode
  mode:
    ModeSorter: {}
    downstream:
      alpha: split
      gray: gray
      color: size
  split:
    AlphaSplit: {}
    downstream:
      color: double
      alpha: double
  double:
    Resize: {factor: 2}
    downstream: merge
  merge:
    AlphaMerge: {}
    downstream: out
  gray:
    Mode: {mode: gray}
    downstream: out
  size:
    SizeSorter: {threshold: 256}
    downstream:
      large: tiled
  tiled:
    TiledScale: {factor: 2, size: 128, overlap: 16}
    downstream: out
  out:
    Output: {directory: %[2]s}
`

func TestTextureGraph(t *testing.T) {
	in, outDir, wip := t.TempDir(), t.TempDir(), t.TempDir()
	writeImage(t, filepath.Join(in, "decal.png"), createTestImage(64, 64, true))
	writeImage(t, filepath.Join(in, "height.png"), createGrayImage(64, 64))
	writeImage(t, filepath.Join(in, "wall.png"), createTestImage(300, 200, false))
	writeImage(t, filepath.Join(in, "icon.png"), createTestImage(32, 32, false))

	doc, err := config.Parse([]byte(fmt.Sprintf(textureGraph, in, outDir)))
	require.NoError(t, err)
	env := pipeline.NewContext(wip, 0, nil)
	g, err := pipeline.Build(doc, Default(), env)
	require.NoError(t, err)

	sum, err := g.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, sum.Items)

	size := func(name string) image.Point {
		img, err := processing.NewProcessor().LoadImage(filepath.Join(outDir, name))
		require.NoError(t, err)
		return img.Bounds().Size()
	}
	assert.Equal(t, image.Pt(128, 128), size("decal.png"))
	assert.Equal(t, image.Pt(64, 64), size("height.png"))
	assert.Equal(t, image.Pt(600, 400), size("wall.png"))
	assert.NoFileExists(t, filepath.Join(outDir, "icon.png"), "small colour images have no route")

	decal, err := imaging.Open(filepath.Join(outDir, "decal.png"))
	require.NoError(t, err)
	assert.Less(t, imaging.Clone(decal).NRGBAAt(127, 0).A, uint8(255), "alpha survives the split")

	assert.Equal(t, []string{"decal", "height", "wall"}, env.Originals())
	for _, name := range []string{"decal", "height", "wall", "icon"} {
		assert.FileExists(t, filepath.Join(wip, "originals", name+".png"))
	}
}

func TestTextureGraphRejectsBadWiring(t *testing.T) {
	doc, err := config.Parse([]byte(`
stages:
  source:
    Directory: {path: .}
    downstream: mode
  mode:
    ModeSorter: {}
    downstream:
      transparent: out
  out:
    Discard: {}
`))
	require.NoError(t, err)
	_, err = pipeline.Build(doc, Default(), pipeline.NewContext(t.TempDir(), 0, nil))
	require.ErrorIs(t, err, pipeline.ErrUnknownOutlet)
}
