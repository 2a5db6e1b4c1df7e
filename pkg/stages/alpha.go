package stages

import (
	"context"
	"fmt"
	"image"
	"sort"
	"strings"

	"github.com/menta2k/texture-upscaler/internal/config"
	"github.com/menta2k/texture-upscaler/pkg/pipeline"
	"github.com/menta2k/texture-upscaler/pkg/processing"
)

// Roles and outlets of the alpha split.
const (
	RoleColor = "color"
	RoleAlpha = "alpha"
)

// AlphaSplit separates an image into an opaque colour image and a
// grayscale image of its alpha channel, so both can be scaled by tools
// that ignore transparency.
type AlphaSplit struct {
	env *pipeline.Context
}

func newAlphaSplit(env *pipeline.Context, spec config.StageSpec) (pipeline.Stage, error) {
	return &AlphaSplit{env: env}, nil
}

func (s *AlphaSplit) Outlets() []string { return []string{RoleColor, RoleAlpha} }

func (s *AlphaSplit) Split(ctx context.Context, obj *pipeline.Object) ([]pipeline.Output, error) {
	part := func(alpha bool) pipeline.ImageFunc {
		return func(_ context.Context, img image.Image) (image.Image, error) {
			c, a := processing.SplitAlpha(img)
			if alpha {
				return a, nil
			}
			return c, nil
		}
	}

	colour, err := pipeline.Transform(ctx, s.env, obj, RoleColor, part(false))
	if err != nil {
		return nil, err
	}
	alpha, err := pipeline.Transform(ctx, s.env, obj, RoleAlpha, part(true))
	if err != nil {
		return nil, err
	}
	return []pipeline.Output{
		{Outlet: RoleColor, Object: colour.WithRole(RoleColor)},
		{Outlet: RoleAlpha, Object: alpha.WithRole(RoleAlpha)},
	}, nil
}

// AlphaMerge waits for the colour and alpha halves of each original and
// emits the recombined image once both arrived.
type AlphaMerge struct {
	env     *pipeline.Context
	pending map[string]map[string]*pipeline.Object
}

func newAlphaMerge(env *pipeline.Context, spec config.StageSpec) (pipeline.Stage, error) {
	return &AlphaMerge{env: env, pending: map[string]map[string]*pipeline.Object{}}, nil
}

func (s *AlphaMerge) Process(ctx context.Context, obj *pipeline.Object) ([]*pipeline.Object, error) {
	if obj.Role != RoleColor && obj.Role != RoleAlpha {
		return nil, fmt.Errorf("AlphaMerge needs a %q or %q object, got role %q", RoleColor, RoleAlpha, obj.Role)
	}
	parts := s.pending[obj.Base]
	if parts == nil {
		parts = map[string]*pipeline.Object{}
		s.pending[obj.Base] = parts
	}
	parts[obj.Role] = obj
	colour, alpha := parts[RoleColor], parts[RoleAlpha]
	if colour == nil || alpha == nil {
		return nil, nil
	}
	delete(s.pending, obj.Base)

	src := colour.WithRole("")
	merged, err := pipeline.Transform(ctx, s.env, src, "merged", func(_ context.Context, img image.Image) (image.Image, error) {
		a, err := alpha.Load()
		if err != nil {
			return nil, err
		}
		return processing.MergeAlpha(img, a), nil
	})
	if err != nil {
		return nil, err
	}
	merged.Parents = []*pipeline.Object{colour, alpha}
	return []*pipeline.Object{merged}, nil
}

// Finish fails when a half never found its partner.
func (s *AlphaMerge) Finish(ctx context.Context) error {
	if len(s.pending) == 0 {
		return nil
	}
	bases := make([]string, 0, len(s.pending))
	for b := range s.pending {
		bases = append(bases, b)
	}
	sort.Strings(bases)
	return fmt.Errorf("incomplete merges for %s", strings.Join(bases, ", "))
}
