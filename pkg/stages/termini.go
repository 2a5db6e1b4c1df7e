package stages

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/menta2k/texture-upscaler/internal/config"
	"github.com/menta2k/texture-upscaler/internal/utils"
	"github.com/menta2k/texture-upscaler/pkg/pipeline"
	"github.com/menta2k/texture-upscaler/pkg/processing"
	"github.com/menta2k/texture-upscaler/pkg/runner"
)

// Output writes objects into Directory under their original name. With
// Lineage set the file carries the full lineage name instead. With Purge
// set, image files in Directory that no Output of this run wrote are
// removed once the source is exhausted.
type Output struct {
	Directory string `yaml:"directory"`
	Format    string `yaml:"format"`
	Lineage   bool   `yaml:"lineage"`
	Purge     bool   `yaml:"purge"`

	env *pipeline.Context
}

func newOutput(env *pipeline.Context, spec config.StageSpec) (pipeline.Stage, error) {
	o := &Output{env: env}
	if err := decode(spec, o); err != nil {
		return nil, err
	}
	if o.Directory == "" {
		return nil, fmt.Errorf("directory is required")
	}
	o.Format = strings.ToLower(strings.TrimPrefix(o.Format, "."))
	return o, nil
}

func (o *Output) target(obj *pipeline.Object) (string, string) {
	format := o.Format
	if format == "" {
		format = "png"
		if obj.Path != "" {
			format = utils.GetFileExtension(obj.Path)
		}
	}
	name := obj.Base
	if o.Lineage {
		name = obj.Name()
	}
	if obj.Role != "" && !strings.HasSuffix(name, obj.Role) {
		name += "_" + obj.Role
	}
	rel := name + "." + format
	return rel, filepath.Join(o.Directory, filepath.FromSlash(rel))
}

func (o *Output) Consume(ctx context.Context, obj *pipeline.Object) error {
	rel, dst := o.target(obj)

	if obj.Path != "" && utils.GetFileExtension(obj.Path) == utils.GetFileExtension(dst) {
		if err := runner.CopyFile(obj.Path, dst); err != nil {
			return err
		}
	} else {
		img, err := obj.Load()
		if err != nil {
			return err
		}
		if err := processing.NewProcessor().SaveImage(img, dst); err != nil {
			return fmt.Errorf("failed to write %s: %w", dst, err)
		}
	}

	o.env.RecordWrite(o.Directory, rel)
	o.env.Record(obj.Base, filepath.ToSlash(rel))
	o.env.Logger.InfoContext(ctx, "wrote output", "object", obj.String(), "path", dst)
	return nil
}

// Finish purges stale outputs when Purge is set.
func (o *Output) Finish(ctx context.Context) error {
	if !o.Purge {
		return nil
	}
	if !utils.DirExists(o.Directory) {
		return nil
	}
	removed := 0
	err := filepath.WalkDir(o.Directory, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !utils.IsImageFile(path) {
			return err
		}
		rel, err := filepath.Rel(o.Directory, path)
		if err != nil {
			return err
		}
		if o.env.Written(o.Directory, rel) {
			return nil
		}
		if err := os.Remove(path); err != nil {
			return err
		}
		removed++
		o.env.Logger.InfoContext(ctx, "purged stale output", "path", path)
		return nil
	})
	if err != nil {
		return fmt.Errorf("purge failed: %w", err)
	}
	o.env.Logger.DebugContext(ctx, "purge complete", "directory", o.Directory, "removed", removed)
	return nil
}

// Discard drops every object.
type Discard struct {
	env *pipeline.Context
}

func newDiscard(env *pipeline.Context, spec config.StageSpec) (pipeline.Stage, error) {
	return &Discard{env: env}, nil
}

func (d *Discard) Consume(ctx context.Context, obj *pipeline.Object) error {
	d.env.Logger.DebugContext(ctx, "discarded", "object", obj.String())
	return nil
}
