package asset

import (
	"sort"

	"github.com/emberfx/graphc/internal/graph"
)

// ResolveState reports the outcome of resolving a callable by stored
// path.
type ResolveState int

const (
	// StateMissing: the path names nothing the registry knows about.
	StateMissing ResolveState = iota
	// StateNotLoaded: the path is declared by a pending asset whose
	// definition has not been loaded yet.
	StateNotLoaded
	// StateResolved: the callable is available.
	StateResolved
)

func (s ResolveState) String() string {
	switch s {
	case StateResolved:
		return "resolved"
	case StateNotLoaded:
		return "not_loaded"
	default:
		return "missing"
	}
}

// Registry maps stored paths to loaded callables. It is the graph
// storage surface the compiler consumes; loading itself is a fallible
// precondition that happens before resolution begins, never during a
// compile.
//
// Not safe for concurrent mutation; populate fully, then share
// read-only.
type Registry struct {
	callables map[string]graph.Callable
	pending   map[string]bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		callables: make(map[string]graph.Callable),
		pending:   make(map[string]bool),
	}
}

// Register stores a loaded callable under its path.
func (r *Registry) Register(path string, c graph.Callable) {
	r.callables[path] = c
	delete(r.pending, path)
}

// MarkPending declares a path that exists but is not yet loaded.
func (r *Registry) MarkPending(path string) {
	if _, ok := r.callables[path]; !ok {
		r.pending[path] = true
	}
}

// Resolve returns the callable stored under path and its state. The
// callable is nil unless the state is StateResolved.
func (r *Registry) Resolve(path string) (graph.Callable, ResolveState) {
	if c, ok := r.callables[path]; ok {
		return c, StateResolved
	}
	if r.pending[path] {
		return nil, StateNotLoaded
	}
	return nil, StateMissing
}

// Graph returns the graph registered under path, or nil.
func (r *Registry) Graph(path string) *graph.Graph {
	c, state := r.Resolve(path)
	if state != StateResolved {
		return nil
	}
	return graph.CalledGraph(c)
}

// Paths lists every registered path in sorted order.
func (r *Registry) Paths() []string {
	paths := make([]string, 0, len(r.callables))
	for p := range r.callables {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
