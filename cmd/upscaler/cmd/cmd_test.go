package cmd

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/texture-upscaler/pkg/processing"
)

func writeTexture(t *testing.T, dir string) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 48, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 48; x++ {
			img.SetNRGBA(x, y, color.NRGBA{uint8(x * 5), uint8(y * 7), 60, 255})
		}
	}
	path := filepath.Join(dir, "tex.png")
	require.NoError(t, processing.NewProcessor().SaveImage(img, path))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRoot(context.Background(), "test")
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs(append(args, "--log-level", "ERROR"))
	err := root.Execute()
	return out.String(), err
}

func TestStageSpec(t *testing.T) {
	spec, err := stageSpec("Resize", []string{"factor=1.5", "filter=box"})
	require.NoError(t, err)
	assert.Equal(t, "Resize", spec.Class)

	var p struct {
		Factor float64 `yaml:"factor"`
		Filter string  `yaml:"filter"`
	}
	require.NoError(t, spec.Decode(&p))
	assert.Equal(t, 1.5, p.Factor)
	assert.Equal(t, "box", p.Filter)

	_, err = stageSpec("Resize", []string{"factor"})
	assert.Error(t, err)
}

func TestTileCommand(t *testing.T) {
	dir := t.TempDir()
	in := writeTexture(t, dir)
	out := filepath.Join(dir, "big.png")

	stdout, err := execute(t, "tile", "--in", in, "--out", out, "--size", "24", "--overlap", "4", "--debug")
	require.NoError(t, err)
	assert.Contains(t, stdout, out)

	img, err := processing.NewProcessor().LoadImage(out)
	require.NoError(t, err)
	assert.Equal(t, image.Pt(96, 64), img.Bounds().Size())
	assert.FileExists(t, filepath.Join(dir, "big_grid.png"))
}

func TestProcessCommand(t *testing.T) {
	dir := t.TempDir()
	in := writeTexture(t, dir)

	stdout, err := execute(t, "process", "Resize", "--in", in, "-p", "factor=0.5")
	require.NoError(t, err)
	out := strings.TrimSpace(stdout)
	assert.Equal(t, filepath.Join(dir, "tex_x0.5.png"), out)
	img, err := processing.NewProcessor().LoadImage(out)
	require.NoError(t, err)
	assert.Equal(t, image.Pt(24, 16), img.Bounds().Size())

	stdout, err = execute(t, "process", "SizeSorter", "--in", in, "-p", "threshold=40")
	require.NoError(t, err)
	assert.Equal(t, "large\n", stdout)

	_, err = execute(t, "process", "Discard", "--in", in)
	assert.Error(t, err)
}

func TestStagesCommand(t *testing.T) {
	stdout, err := execute(t, "stages")
	require.NoError(t, err)
	assert.Contains(t, stdout, "TiledScale\n")
	assert.Contains(t, stdout, "AlphaMerge\n")
}

func TestLoadGraphVerbosity(t *testing.T) {
	dir := t.TempDir()
	write := func(verbosity int) string {
		path := filepath.Join(dir, fmt.Sprintf("v%d.yaml", verbosity))
		doc := fmt.Sprintf(`
wip_directory: %s
verbosity: %d
stages:
  source:
    Directory: {path: %s}
    downstream: out
  out:
    Output: {directory: %s}
`, filepath.Join(dir, "wip"), verbosity, dir, filepath.Join(dir, "out"))
		require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
		return path
	}
	t.Cleanup(func() { logLevel.Set(slog.LevelInfo) })

	for v, want := range map[int]slog.Level{0: slog.LevelWarn, 1: slog.LevelInfo, 2: slog.LevelDebug} {
		_, _, err := loadGraph(write(v), "", false)
		require.NoError(t, err)
		assert.Equal(t, want, logLevel.Level(), "verbosity %d", v)
	}

	logLevel.Set(slog.LevelError)
	_, _, err := loadGraph(write(2), "", true)
	require.NoError(t, err)
	assert.Equal(t, slog.LevelError, logLevel.Level(), "an explicit --log-level wins")
}
