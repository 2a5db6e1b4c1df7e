package pipeline

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/menta2k/texture-upscaler/internal/config"
)

var (
	ErrUnknownClass  = errors.New("unknown stage class")
	ErrStageNotFound = errors.New("stage not found")
	ErrUnknownOutlet = errors.New("unknown outlet")
	ErrCycle         = errors.New("stage graph has a cycle")
	ErrNoSource      = errors.New("no source stage")
)

type vertex struct {
	name       string
	class      string
	stage      Stage
	node       node
	downstream config.Downstream
}

// targets returns the downstream stages of outlet in declaration order.
func (v *vertex) targets(outlet string) []string {
	return v.downstream[outlet]
}

// Graph is a validated, instantiated pipeline.
type Graph struct {
	env      *Context
	source   Source
	vertices map[string]*vertex
	names    []string
}

// Build instantiates every stage of doc and validates the wiring. All
// configuration errors surface here, before any image is read.
func Build(doc *config.Config, reg *Registry, env *Context) (*Graph, error) {
	if err := doc.Validate(); err != nil {
		if _, ok := doc.Stages[config.SourceStage]; !ok {
			return nil, fmt.Errorf("%w: %w", ErrNoSource, err)
		}
		return nil, err
	}
	names := doc.StageNames()

	// Names and classes first; nothing is instantiated until the whole
	// declaration resolves.
	for _, name := range names {
		spec := doc.Stages[name]
		if _, ok := reg.Lookup(spec.Class); !ok {
			return nil, fmt.Errorf("stage %q: %w: %s", name, ErrUnknownClass, spec.Class)
		}
		for _, target := range spec.Downstream.Names() {
			if _, ok := doc.Stages[target]; !ok {
				return nil, fmt.Errorf("%w: %q (downstream of %q)", ErrStageNotFound, target, name)
			}
		}
	}
	if err := checkCycles(doc, names); err != nil {
		return nil, err
	}

	g := &Graph{env: env, vertices: make(map[string]*vertex, len(names)), names: names}
	for _, name := range names {
		spec := doc.Stages[name]
		f, _ := reg.Lookup(spec.Class)
		stage, err := f(env, spec)
		if err != nil {
			return nil, fmt.Errorf("stage %q (%s): %w", name, spec.Class, err)
		}
		n, ok := adapt(stage)
		if !ok {
			return nil, fmt.Errorf("stage %q: %s implements no stage interface", name, spec.Class)
		}
		v := &vertex{name: name, class: spec.Class, stage: stage, node: n, downstream: spec.Downstream}
		if err := checkOutlets(v); err != nil {
			return nil, err
		}
		g.vertices[name] = v
	}

	src, ok := g.vertices[config.SourceStage].stage.(Source)
	if !ok {
		return nil, fmt.Errorf("%w: stage %q (%s) is not a source", ErrNoSource,
			config.SourceStage, doc.Stages[config.SourceStage].Class)
	}
	g.source = src
	for _, name := range names {
		if name == config.SourceStage {
			continue
		}
		if _, isSource := g.vertices[name].node.(sourceNode); isSource {
			return nil, fmt.Errorf("stage %q: only %q may be a source", name, config.SourceStage)
		}
	}
	return g, nil
}

func checkOutlets(v *vertex) error {
	allowed := v.node.outlets()
	for outlet := range v.downstream {
		if !slices.Contains(allowed, outlet) {
			if len(allowed) == 0 {
				return fmt.Errorf("stage %q: %w: a terminus has no downstream", v.name, ErrUnknownOutlet)
			}
			return fmt.Errorf("stage %q: %w %q (have %s)", v.name, ErrUnknownOutlet, outlet, describeOutlets(allowed))
		}
	}
	return nil
}

func describeOutlets(outlets []string) string {
	quoted := make([]string, len(outlets))
	for i, o := range outlets {
		quoted[i] = fmt.Sprintf("%q", o)
	}
	return strings.Join(quoted, ", ")
}

// checkCycles walks the declared edges depth first.
func checkCycles(doc *config.Config, names []string) error {
	const (
		white = iota
		grey
		black
	)
	state := make(map[string]int, len(names))
	var path []string

	var visit func(name string) error
	visit = func(name string) error {
		switch state[name] {
		case grey:
			i := slices.Index(path, name)
			return fmt.Errorf("%w: %s", ErrCycle, strings.Join(append(path[i:], name), " -> "))
		case black:
			return nil
		}
		state[name] = grey
		path = append(path, name)
		for _, next := range doc.Stages[name].Downstream.Names() {
			if err := visit(next); err != nil {
				return err
			}
		}
		path = path[:len(path)-1]
		state[name] = black
		return nil
	}

	for _, name := range names {
		if err := visit(name); err != nil {
			return err
		}
	}
	return nil
}

// Names returns the stage names, sorted.
func (g *Graph) Names() []string { return slices.Clone(g.names) }

// Stage returns the instantiated stage called name.
func (g *Graph) Stage(name string) (Stage, bool) {
	v, ok := g.vertices[name]
	if !ok {
		return nil, false
	}
	return v.stage, true
}

// Class returns the class name a stage was declared with.
func (g *Graph) Class(name string) string {
	if v, ok := g.vertices[name]; ok {
		return v.class
	}
	return ""
}

// Segments returns the names of the stages that transform images, sorted.
func (g *Graph) Segments() []string {
	var out []string
	for _, name := range g.names {
		if _, ok := g.vertices[name].node.(segmentNode); ok {
			out = append(out, name)
		}
	}
	return out
}

// Context returns the shared stage context.
func (g *Graph) Context() *Context { return g.env }
