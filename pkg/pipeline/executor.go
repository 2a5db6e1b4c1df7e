package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/menta2k/texture-upscaler/internal/config"
	"github.com/menta2k/texture-upscaler/pkg/logging"
)

// StageError identifies the stage and object a per-item failure came from.
type StageError struct {
	Stage  string
	Object string
	Err    error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %q on %s: %v", e.Stage, e.Object, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Summary describes a finished run.
type Summary struct {
	RunID    string
	Items    int // objects produced by the source
	Visits   int // stage invocations
	Duration time.Duration
}

type frame struct {
	stage string
	obj   *Object
}

// Run drives every source object through the graph, one at a time and
// depth first: an object and everything derived from it reach their
// termini before the source is asked for the next one. After the source is
// exhausted every terminus implementing Finisher is finished.
func (g *Graph) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()
	ctx = logging.AppendCtx(ctx, slog.String("run", g.env.RunID))
	sum := &Summary{RunID: g.env.RunID}
	log := g.env.Logger

	log.InfoContext(ctx, "pipeline started", "stages", len(g.names), "wip", g.env.WIPDir)
	for obj, err := range g.source.Objects(ctx) {
		if err != nil {
			return sum, &StageError{Stage: config.SourceStage, Object: "-", Err: err}
		}
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		if err := obj.Validate(); err != nil {
			return sum, &StageError{Stage: config.SourceStage, Object: obj.String(), Err: err}
		}
		sum.Items++
		log.InfoContext(ctx, "processing", "object", obj.String())

		visits, err := g.Push(ctx, config.SourceStage, obj)
		sum.Visits += visits
		if err != nil {
			return sum, err
		}
	}

	for _, name := range g.names {
		if f, ok := g.vertices[name].stage.(Finisher); ok {
			if err := f.Finish(ctx); err != nil {
				return sum, &StageError{Stage: name, Object: "-", Err: err}
			}
		}
	}

	sum.Duration = time.Since(start)
	log.InfoContext(ctx, "pipeline finished", "items", sum.Items, "visits", sum.Visits,
		"duration", sum.Duration.Round(time.Millisecond))
	return sum, nil
}

// Push delivers obj to the named stage and follows its results through
// the graph until every branch has terminated. It returns the number of
// stage invocations.
func (g *Graph) Push(ctx context.Context, stage string, obj *Object) (int, error) {
	if _, ok := g.vertices[stage]; !ok {
		return 0, fmt.Errorf("%w: %q", ErrStageNotFound, stage)
	}

	visits := 0
	stack := []frame{{stage: stage, obj: obj}}
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return visits, err
		}
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		v := g.vertices[f.stage]

		g.env.Logger.DebugContext(ctx, "stage", "stage", v.name, "class", v.class, "object", f.obj.String())
		outs, err := v.node.run(ctx, f.obj)
		visits++
		if err != nil {
			return visits, &StageError{Stage: v.name, Object: f.obj.String(), Err: err}
		}

		// Push in reverse so the first result and its first target run first.
		var next []frame
		allowed := v.node.outlets()
		for _, out := range outs {
			if !slices.Contains(allowed, out.Outlet) {
				return visits, &StageError{Stage: v.name, Object: f.obj.String(),
					Err: fmt.Errorf("%w %q", ErrUnknownOutlet, out.Outlet)}
			}
			if err := out.Object.Validate(); err != nil {
				return visits, &StageError{Stage: v.name, Object: f.obj.String(), Err: err}
			}
			targets := v.targets(out.Outlet)
			if len(targets) == 0 {
				g.env.Logger.DebugContext(ctx, "unwired outlet", "stage", v.name, "outlet", out.Outlet,
					"object", out.Object.String())
			}
			for _, t := range targets {
				next = append(next, frame{stage: t, obj: out.Object})
			}
		}
		for i := len(next) - 1; i >= 0; i-- {
			stack = append(stack, next[i])
		}
	}
	return visits, nil
}
