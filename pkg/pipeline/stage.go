package pipeline

import (
	"context"
	"iter"

	"github.com/menta2k/texture-upscaler/internal/config"
)

// Stage is any of Source, Sorter, Segment, Splitter or Terminus.
type Stage any

// Source produces the objects a run starts from. The sequence is lazy,
// finite and walked once.
type Source interface {
	Objects(ctx context.Context) iter.Seq2[*Object, error]
}

// Sorter routes every object to exactly one of its outlets.
type Sorter interface {
	Outlets() []string
	Sort(ctx context.Context, obj *Object) (string, error)
}

// Segment transforms an object. Its results go to the default outlet; a
// segment may return nothing, for instance while it waits for the other
// half of a merge.
type Segment interface {
	Process(ctx context.Context, obj *Object) ([]*Object, error)
}

// Splitter fans one object out to several named outlets.
type Splitter interface {
	Outlets() []string
	Split(ctx context.Context, obj *Object) ([]Output, error)
}

// Terminus consumes objects. Consuming the same logical object twice
// must leave the same result.
type Terminus interface {
	Consume(ctx context.Context, obj *Object) error
}

// Finisher is implemented by termini that need a pass after the source is
// exhausted, such as purging stale outputs.
type Finisher interface {
	Finish(ctx context.Context) error
}

// Output is one routed result of a stage.
type Output struct {
	Outlet string
	Object *Object
}

// node is the uniform shape the executor drives.
type node interface {
	run(ctx context.Context, obj *Object) ([]Output, error)
	outlets() []string
}

type sorterNode struct{ s Sorter }

func (n sorterNode) run(ctx context.Context, obj *Object) ([]Output, error) {
	outlet, err := n.s.Sort(ctx, obj)
	if err != nil {
		return nil, err
	}
	return []Output{{Outlet: outlet, Object: obj}}, nil
}

func (n sorterNode) outlets() []string { return n.s.Outlets() }

type segmentNode struct{ s Segment }

func (n segmentNode) run(ctx context.Context, obj *Object) ([]Output, error) {
	objs, err := n.s.Process(ctx, obj)
	if err != nil {
		return nil, err
	}
	out := make([]Output, len(objs))
	for i, o := range objs {
		out[i] = Output{Outlet: config.DefaultOutlet, Object: o}
	}
	return out, nil
}

func (n segmentNode) outlets() []string { return []string{config.DefaultOutlet} }

type splitterNode struct{ s Splitter }

func (n splitterNode) run(ctx context.Context, obj *Object) ([]Output, error) {
	return n.s.Split(ctx, obj)
}

func (n splitterNode) outlets() []string { return n.s.Outlets() }

type terminusNode struct{ t Terminus }

func (n terminusNode) run(ctx context.Context, obj *Object) ([]Output, error) {
	return nil, n.t.Consume(ctx, obj)
}

func (n terminusNode) outlets() []string { return nil }

// sourceNode lets the source stage sit in the graph like any other.
type sourceNode struct{}

func (sourceNode) run(_ context.Context, obj *Object) ([]Output, error) {
	return []Output{{Outlet: config.DefaultOutlet, Object: obj}}, nil
}

func (sourceNode) outlets() []string { return []string{config.DefaultOutlet} }

// adapt picks the node for a stage. Sorter and Splitter are checked before
// Segment so a stage implementing several roles routes by outlet.
func adapt(s Stage) (node, bool) {
	switch v := s.(type) {
	case Sorter:
		return sorterNode{v}, true
	case Splitter:
		return splitterNode{v}, true
	case Segment:
		return segmentNode{v}, true
	case Terminus:
		return terminusNode{v}, true
	case Source:
		return sourceNode{}, true
	}
	return nil, false
}
