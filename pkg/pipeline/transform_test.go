package pipeline

import (
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/texture-upscaler/pkg/processing"
)

func TestObjectLineage(t *testing.T) {
	root := NewObject("/textures/walls/brick.png")
	assert.Equal(t, "brick", root.Base)
	assert.Equal(t, "brick", root.Name())

	a := root.Derive("scale2x")
	b := a.Derive("sharpen me")
	assert.Equal(t, "brick_scale2x", a.Name())
	assert.Equal(t, "brick_scale2x_sharpen-me", b.Name())
	assert.Empty(t, root.Chain, "parent chain must not be shared")
	assert.Same(t, root, b.Root())
	assert.Equal(t, b.Name(), b.Derive("").Name())

	alpha := a.WithRole("alpha")
	assert.Equal(t, "brick_scale2x[alpha]", alpha.String())
	assert.Empty(t, a.Role)
}

func TestObjectValidate(t *testing.T) {
	img := createTestImage(2, 2)

	require.NoError(t, NewObject("x.png").Validate())
	require.NoError(t, FromImage("x", img).Validate())

	child := FromImage("x", img).Derive("y")
	require.ErrorIs(t, child.Validate(), ErrInvalidObject, "no payload")
	child.Image = img
	require.NoError(t, child.Validate())

	require.ErrorIs(t, FromImage("", img).Validate(), ErrInvalidObject)
	orphan := FromImage("", img)
	orphan.Parents = []*Object{NewObject("p.png")}
	require.NoError(t, orphan.Validate())

	var nilObj *Object
	require.ErrorIs(t, nilObj.Validate(), ErrInvalidObject)
}

func TestObjectLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.png")
	require.NoError(t, processing.NewProcessor().SaveImage(createTestImage(6, 5), path))

	obj := NewObject(path)
	img, err := obj.Load()
	require.NoError(t, err)
	assert.Equal(t, image.Pt(6, 5), img.Bounds().Size())
	assert.NotNil(t, obj.Image)

	_, err = NewObject(filepath.Join(t.TempDir(), "missing.png")).Load()
	require.Error(t, err)

	_, err = (&Object{Base: "x"}).Load()
	require.ErrorIs(t, err, ErrInvalidObject)
}

func TestContextRecords(t *testing.T) {
	env := NewContext("/wip", 1, nil)
	assert.NotEmpty(t, env.RunID)

	env.Record("brick", "brick_2x.png")
	env.Record("brick", "brick_2x.png")
	env.Record("brick", "brick_alpha.png")
	env.Record("moss", "moss.png")

	assert.Equal(t, []string{"brick_2x.png", "brick_alpha.png"}, env.Produced("brick"))
	assert.Equal(t, []string{"brick", "moss"}, env.Originals())
	assert.True(t, env.Seen("moss.png"))
	assert.False(t, env.Seen("other.png"))

	env.RecordWrite("/out", "walls/brick.png")
	assert.True(t, env.Written("/out/", filepath.Join("walls", "brick.png")))
	assert.True(t, env.Written("/out/walls/..", "walls/brick.png"))
	assert.False(t, env.Written("/elsewhere", "walls/brick.png"))

	obj := FromImage("walls/brick", nil).Derive("2x")
	assert.Equal(t, filepath.Join("/wip", "walls", "brick_2x.png"), env.Path(obj, "png"))
	assert.Equal(t, filepath.Join("/wip", "walls", "brick_2x_alpha.tga"), env.Path(obj.WithRole("alpha"), ".tga"))
}

func TestTransformCaches(t *testing.T) {
	env := NewContext(t.TempDir(), 0, nil)
	calls := 0
	double := func(ctx context.Context, img image.Image) (image.Image, error) {
		calls++
		b := img.Bounds()
		return imaging.Resize(img, b.Dx()*2, b.Dy()*2, imaging.NearestNeighbor), nil
	}

	src := FromImage("tex", createTestImage(8, 8))
	out, err := Transform(context.Background(), env, src, "2x", double)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.FileExists(t, out.Path)
	assert.Equal(t, "tex_2x", out.Name())

	// same lineage, fresh object: the transform is not invoked again
	again, err := Transform(context.Background(), env, FromImage("tex", createTestImage(8, 8)), "2x", double)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, out.Path, again.Path)
	img, err := again.Load()
	require.NoError(t, err)
	assert.Equal(t, image.Pt(16, 16), img.Bounds().Size())

	// a different suffix is a different item
	_, err = Transform(context.Background(), env, src, "4x", double)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestTransformError(t *testing.T) {
	env := NewContext(t.TempDir(), 0, nil)
	boom := errors.New("boom")
	_, err := Transform(context.Background(), env, FromImage("tex", createTestImage(2, 2)), "x",
		func(context.Context, image.Image) (image.Image, error) { return nil, boom })
	require.ErrorIs(t, err, boom)

	_, err = os.Stat(env.Path(FromImage("tex", nil).Derive("x"), "png"))
	assert.True(t, os.IsNotExist(err))
}

func TestTransformFailedEncodeLeavesNoCache(t *testing.T) {
	env := NewContext(t.TempDir(), 0, nil)
	// png refuses to encode an empty image
	empty := func(context.Context, image.Image) (image.Image, error) {
		return image.NewNRGBA(image.Rect(0, 0, 0, 0)), nil
	}
	_, err := Transform(context.Background(), env, FromImage("tex", createTestImage(2, 2)), "empty", empty)
	require.Error(t, err)

	entries, err := os.ReadDir(env.WIPDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "neither the cache file nor its temp file may remain")

	calls := 0
	_, err = Transform(context.Background(), env, FromImage("tex", createTestImage(2, 2)), "empty",
		func(ctx context.Context, img image.Image) (image.Image, error) {
			calls++
			return img, nil
		})
	require.NoError(t, err)
	assert.Equal(t, 1, calls, "a failed encode must not be served from the cache")
}

func TestTransformFile(t *testing.T) {
	env := NewContext(t.TempDir(), 0, nil)
	calls := 0
	cp := func(ctx context.Context, in, out string) error {
		calls++
		data, err := os.ReadFile(in)
		if err != nil {
			return err
		}
		return os.WriteFile(out, data, 0o644)
	}

	src := FromImage("tex", createTestImage(4, 4))
	out, err := TransformFile(context.Background(), env, src, "copy", "png", cp)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.FileExists(t, src.Path, "in-memory input is materialized")
	assert.FileExists(t, out.Path)

	_, err = TransformFile(context.Background(), env, src, "copy", "png", cp)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	// a tool that writes nothing is an error and leaves no cache entry
	_, err = TransformFile(context.Background(), env, src, "silent", "png",
		func(context.Context, string, string) error { return nil })
	require.Error(t, err)
	assert.NoFileExists(t, env.Path(src.Derive("silent"), "png"))

	failed := errors.New("exit 1")
	_, err = TransformFile(context.Background(), env, src, "fail", "png",
		func(ctx context.Context, in, out string) error {
			_ = os.WriteFile(out, []byte("partial"), 0o644)
			return failed
		})
	require.ErrorIs(t, err, failed)
	assert.NoFileExists(t, env.Path(src.Derive("fail"), "png"))
}
