package asset

import (
	"fmt"
	"strings"

	"github.com/emberfx/graphc/internal/graph"
)

// Validate runs the structural checks that only make sense over the
// complete asset set: unresolved call paths and composition cycles.
// Fail-slow: every violation is reported, none aborts the walk.
func Validate(res *LoadResult) []error {
	var errs []error
	for _, g := range res.Graphs {
		for _, n := range g.CallSites() {
			if n.Call.Callable == nil {
				errs = append(errs, &CompileError{
					Code:  ErrUnresolvedPath,
					Field: g.Name + ".body",
					Message: fmt.Sprintf("call site %q references unresolved path %q",
						n.Call.DisplayName, n.Call.CallablePath),
				})
			}
		}
	}
	errs = append(errs, findCompositionCycles(res.Graphs)...)
	return errs
}

// findCompositionCycles walks the call edges of every loaded graph and
// reports each distinct cycle once, keyed by its smallest member.
func findCompositionCycles(graphs []*graph.Graph) []error {
	var errs []error
	reported := map[string]bool{}
	for _, g := range graphs {
		state := map[string]int{} // 0 unvisited, 1 on stack, 2 done
		var stack []string
		var visit func(cur *graph.Graph)
		visit = func(cur *graph.Graph) {
			state[cur.Identity] = 1
			stack = append(stack, cur.Identity)
			for _, n := range cur.CallSites() {
				callee := graph.CalledGraph(n.Call.Callable)
				if callee == nil {
					continue
				}
				switch state[callee.Identity] {
				case 0:
					visit(callee)
				case 1:
					cycle := extractCycle(stack, callee.Identity)
					key := cycleKey(cycle)
					if !reported[key] {
						reported[key] = true
						errs = append(errs, &CompileError{
							Code:    ErrCompositionCycle,
							Field:   cur.Name + ".body",
							Message: "composition cycle: " + strings.Join(cycle, " -> "),
						})
					}
				}
			}
			stack = stack[:len(stack)-1]
			state[cur.Identity] = 2
		}
		if state[g.Identity] == 0 {
			visit(g)
		}
	}
	return errs
}

func extractCycle(stack []string, start string) []string {
	for i, id := range stack {
		if id == start {
			cycle := append([]string(nil), stack[i:]...)
			return append(cycle, start)
		}
	}
	return []string{start, start}
}

// cycleKey canonicalizes a cycle so A->B->A and B->A->B collapse.
func cycleKey(cycle []string) string {
	members := cycle[:len(cycle)-1]
	min := 0
	for i := range members {
		if members[i] < members[min] {
			min = i
		}
	}
	rotated := append(append([]string(nil), members[min:]...), members[:min]...)
	return strings.Join(rotated, "|")
}
