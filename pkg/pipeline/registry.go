package pipeline

import (
	"fmt"
	"sort"
	"sync"

	"github.com/menta2k/texture-upscaler/internal/config"
)

// Factory builds a stage from its declaration. Factories validate their
// parameters and must not touch image files.
type Factory func(env *Context, spec config.StageSpec) (Stage, error)

// Registry maps class names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

// Register adds a factory. Registering a class twice panics.
func (r *Registry) Register(class string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if f == nil {
		panic("pipeline: Register factory is nil for " + class)
	}
	if _, dup := r.factories[class]; dup {
		panic("pipeline: Register called twice for " + class)
	}
	r.factories[class] = f
}

// Lookup returns the factory for class.
func (r *Registry) Lookup(class string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[class]
	return f, ok
}

// Classes returns the registered class names, sorted.
func (r *Registry) Classes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for c := range r.factories {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// New instantiates a single stage outside of a graph.
func (r *Registry) New(env *Context, spec config.StageSpec) (Stage, error) {
	f, ok := r.Lookup(spec.Class)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownClass, spec.Class)
	}
	return f(env, spec)
}
