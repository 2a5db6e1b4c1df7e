package stages

import (
	"context"
	"fmt"
	"iter"
	"path/filepath"

	"github.com/menta2k/texture-upscaler/internal/config"
	"github.com/menta2k/texture-upscaler/internal/utils"
	"github.com/menta2k/texture-upscaler/pkg/pipeline"
)

// Directory yields every image file below a directory in path order.
type Directory struct {
	Path       string   `yaml:"path"`
	Extensions []string `yaml:"extensions"`
	Recursive  bool     `yaml:"recursive"`
}

func newDirectory(env *pipeline.Context, spec config.StageSpec) (pipeline.Stage, error) {
	d := &Directory{}
	if err := decode(spec, d); err != nil {
		return nil, err
	}
	if d.Path == "" {
		return nil, fmt.Errorf("path is required")
	}
	return d, nil
}

// Objects lists the directory when iteration starts; a missing directory
// surfaces as the first element's error.
func (d *Directory) Objects(ctx context.Context) iter.Seq2[*pipeline.Object, error] {
	return func(yield func(*pipeline.Object, error) bool) {
		files, err := utils.ListImageFiles(d.Path, d.Extensions, d.Recursive)
		if err != nil {
			yield(nil, fmt.Errorf("failed to list %s: %w", d.Path, err))
			return
		}
		for _, f := range files {
			if ctx.Err() != nil {
				yield(nil, ctx.Err())
				return
			}
			obj := pipeline.NewObject(f)
			if rel, err := filepath.Rel(d.Path, f); err == nil {
				obj.Base = filepath.ToSlash(utils.StripExtension(rel))
			}
			if !yield(obj, nil) {
				return
			}
		}
	}
}
