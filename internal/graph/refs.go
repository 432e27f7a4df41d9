package graph

import (
	"fmt"
	"strings"
)

// ReferencedGraphs computes the transitive set of graphs referenced by
// a callable, including the callable's own body. Signatures reference
// nothing. Order is deterministic (DFS over node IDs) and entries are
// deduplicated by storage identity, so diamond references yield one
// entry.
func ReferencedGraphs(c Callable) []*Graph {
	root := CalledGraph(c)
	if root == nil {
		return nil
	}
	seen := make(map[string]bool)
	var out []*Graph
	var visit func(g *Graph)
	visit = func(g *Graph) {
		if seen[g.Identity] {
			return
		}
		seen[g.Identity] = true
		out = append(out, g)
		for _, site := range g.CallSites() {
			if callee := CalledGraph(site.Call.Callable); callee != nil {
				visit(callee)
			}
		}
	}
	visit(root)
	return out
}

// CompositionCycleError rejects introducing a callable reference that
// would close a cycle across the graph-dependency forest.
type CompositionCycleError struct {
	Target string   // storage identity of the graph being edited
	Path   []string // reference chain from the callable to the target
}

// Error implements the error interface.
func (e *CompositionCycleError) Error() string {
	return fmt.Sprintf("cannot add to graph %s: the referenced callable would lead to a cycle (%s)",
		e.Target, strings.Join(e.Path, " -> "))
}

// CanAddToGraph validates that composing a callable into a target graph
// cannot create a reference cycle. It must run before the call site is
// inserted; on rejection the target graph has not been mutated.
//
// This is the only point a cycle could be introduced: call sites cannot
// reference their own enclosing graph directly by construction, so
// insertion-time rejection makes compile-time cycles structurally
// impossible.
func CanAddToGraph(c Callable, target *Graph) error {
	root := CalledGraph(c)
	if root == nil {
		return nil
	}
	path := findPath(root, target.Identity, make(map[string]bool))
	if path == nil {
		return nil
	}
	return &CompositionCycleError{Target: target.Identity, Path: path}
}

// findPath returns the identity chain from g to the target identity,
// or nil when the target is unreachable.
func findPath(g *Graph, target string, seen map[string]bool) []string {
	if seen[g.Identity] {
		return nil
	}
	seen[g.Identity] = true
	if g.Identity == target {
		return []string{g.Identity}
	}
	for _, site := range g.CallSites() {
		if callee := CalledGraph(site.Call.Callable); callee != nil {
			if rest := findPath(callee, target, seen); rest != nil {
				return append([]string{g.Identity}, rest...)
			}
		}
	}
	return nil
}
