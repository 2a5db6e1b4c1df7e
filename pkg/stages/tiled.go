package stages

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/menta2k/texture-upscaler/internal/config"
	"github.com/menta2k/texture-upscaler/pkg/pipeline"
	"github.com/menta2k/texture-upscaler/pkg/processing"
	"github.com/menta2k/texture-upscaler/pkg/runner"
	"github.com/menta2k/texture-upscaler/pkg/tile"
)

// TiledScale upscales large images tile by tile and blends the seams.
// Method is catmullrom, any resample filter name, or runner to hand each
// tile to an external upscaler (Tool fields). Size times Factor must be a
// whole number of pixels.
type TiledScale struct {
	Factor  float64 `yaml:"factor"`
	Size    int     `yaml:"size"`
	Overlap int     `yaml:"overlap"`
	Method  string  `yaml:"method"`
	Workers int     `yaml:"workers"`
	Tool    `yaml:",inline"`

	env    *pipeline.Context
	runner *runner.Runner
	op     tile.Operator
}

func newTiledScale(env *pipeline.Context, spec config.StageSpec) (pipeline.Stage, error) {
	s := &TiledScale{Factor: 2, Size: 256, Overlap: 16, Method: "catmullrom", env: env}
	if err := decode(spec, s); err != nil {
		return nil, err
	}
	if err := tile.CheckGeometry(s.Size, s.Overlap); err != nil {
		return nil, err
	}
	if s.Overlap < 1 {
		return nil, fmt.Errorf("%w: overlap must be at least 1", tile.ErrInvalidGeometry)
	}
	if s.Factor <= 0 {
		return nil, fmt.Errorf("factor must be positive")
	}

	s.Method = strings.ToLower(s.Method)
	switch s.Method {
	case "catmullrom":
		s.op = func(_ context.Context, _ int, t image.Image) (image.Image, error) {
			return processing.ScaleCatmullRom(t, s.Factor), nil
		}
	case "runner":
		r, err := s.Tool.newRunner(env)
		if err != nil {
			return nil, err
		}
		s.runner = r
		if s.Workers == 0 {
			s.Workers = 1
		}
	default:
		filter, err := processing.ParseFilter(s.Method)
		if err != nil {
			return nil, err
		}
		s.op = func(_ context.Context, _ int, t image.Image) (image.Image, error) {
			return processing.ScaleBy(t, s.Factor, filter), nil
		}
	}
	if s.runner == nil {
		if err := tile.CheckScale(s.Size, s.Factor); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *TiledScale) suffix() string {
	return fmt.Sprintf("tile%sx-%s", formatFactor(s.Factor), s.Method)
}

func (s *TiledScale) Process(ctx context.Context, obj *pipeline.Object) ([]*pipeline.Object, error) {
	out, err := pipeline.Transform(ctx, s.env, obj, s.suffix(), func(ctx context.Context, img image.Image) (image.Image, error) {
		op := s.op
		if s.runner != nil {
			if err := os.MkdirAll(s.env.WIPDir, 0o755); err != nil {
				return nil, err
			}
			dir, err := os.MkdirTemp(s.env.WIPDir, ".tiles-")
			if err != nil {
				return nil, err
			}
			defer os.RemoveAll(dir)
			op = s.runTile(dir)
		}
		res, sub, err := tile.Apply(ctx, img, tile.Options{Size: s.Size, Overlap: s.Overlap, Workers: s.Workers}, op)
		if err != nil {
			return nil, err
		}
		nx, ny := sub.Grid()
		s.env.Logger.DebugContext(ctx, "tiled scale", "object", obj.String(), "tiles", fmt.Sprintf("%dx%d", nx, ny),
			"scale", sub.Scale(), "size", res.Bounds().Size().String())
		return res, nil
	})
	if err != nil {
		return nil, err
	}
	return []*pipeline.Object{out}, nil
}

// runTile writes each tile to dir, runs the tool on it and reads the result.
func (s *TiledScale) runTile(dir string) tile.Operator {
	p := processing.NewProcessor()
	return func(ctx context.Context, i int, t image.Image) (image.Image, error) {
		in := filepath.Join(dir, fmt.Sprintf("tile_%04d.png", i))
		out := filepath.Join(dir, fmt.Sprintf("tile_%04d_out.png", i))
		if err := p.SaveImage(t, in); err != nil {
			return nil, err
		}
		if _, err := s.runner.Run(ctx, in, out); err != nil {
			return nil, err
		}
		return p.LoadImage(out)
	}
}
