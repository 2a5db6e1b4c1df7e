package pipeline

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
)

// ImageFunc transforms an in-memory image.
type ImageFunc func(ctx context.Context, img image.Image) (image.Image, error)

// FileFunc transforms the file at in into the file at out.
type FileFunc func(ctx context.Context, in, out string) error

// Transform derives obj with suffix and runs fn on its image, storing the
// result as PNG in the WIP directory. When that file already exists fn is
// not called and the cached file is returned.
func Transform(ctx context.Context, env *Context, obj *Object, suffix string, fn ImageFunc) (*Object, error) {
	child := obj.Derive(suffix)
	out := env.Path(child, "png")
	if exists(out) {
		env.Logger.DebugContext(ctx, "cached", "object", child.String(), "path", out)
		child.Path = out
		return child, nil
	}

	img, err := obj.Load()
	if err != nil {
		return nil, err
	}
	res, err := fn(ctx, img)
	if err != nil {
		return nil, err
	}
	return env.Save(child, res, "png")
}

// TransformFile is Transform for tools that work on files. The input is
// written to the WIP directory first when it only exists in memory; the
// output is produced with extension ext.
func TransformFile(ctx context.Context, env *Context, obj *Object, suffix, ext string, fn FileFunc) (*Object, error) {
	child := obj.Derive(suffix)
	out := env.Path(child, ext)
	if exists(out) {
		env.Logger.DebugContext(ctx, "cached", "object", child.String(), "path", out)
		child.Path = out
		return child, nil
	}

	in, err := env.Materialize(obj)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return nil, err
	}

	// A partial file at out would read as cached on the next run.
	tmp := env.tempPath(out)
	if err := fn(ctx, in, tmp); err != nil {
		os.Remove(tmp)
		return nil, err
	}
	if !exists(tmp) {
		return nil, fmt.Errorf("%s produced no output", child.Name())
	}
	if err := os.Rename(tmp, out); err != nil {
		return nil, err
	}
	child.Path = out
	return child, nil
}
