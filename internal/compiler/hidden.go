package compiler

import (
	"strings"

	"github.com/zclconf/go-cty/cty"

	"github.com/emberfx/graphc/internal/graph"
)

// normName folds a symbol name for map keys; equivalence ignores case.
func normName(s string) string { return strings.ToLower(s) }

// UnusedInputs computes the declared inputs of a callee body that are
// unreachable from its terminal output contract under the given
// static-switch constants. These are excluded from the parameter
// set-up of the call so unused values (in particular capsule-typed
// resources) are never initialized for nothing.
//
// Reachability walks backwards from the preferred output node. Switch
// nodes contribute only their selected branch; a switch with no
// resolved constant contributes every branch (conservative: nothing
// wrongly hidden).
func UnusedInputs(callee *graph.Graph, consts map[string]cty.Value) map[string]bool {
	hidden := make(map[string]bool)
	if callee == nil {
		return hidden
	}
	out := callee.PreferredOutputNode()
	if out == nil {
		return hidden
	}

	reachedInputs := make(map[string]bool)
	visited := make(map[graph.NodeID]bool)

	var visit func(id graph.NodeID)
	visit = func(id graph.NodeID) {
		if visited[id] {
			return
		}
		visited[id] = true
		n := callee.Node(id)
		if n == nil {
			return
		}

		if n.Kind == graph.KindInput {
			reachedInputs[normName(n.Input.Var.Name)] = true
			return
		}

		follow := func(pin *graph.Pin) {
			if pin.Link != nil {
				visit(pin.Link.Node)
			}
		}

		if n.Kind == graph.KindSwitch {
			if val, ok := consts[n.Selector.Name]; ok {
				if branch, err := n.SelectBranch(val); err == nil {
					follow(&n.In[branch])
					return
				}
			}
			// Unresolved discriminant: keep every branch live.
		}
		for i := range n.In {
			follow(&n.In[i])
		}
	}
	visit(out.ID)

	for _, decl := range callee.InputDecls() {
		if decl.Exposed && !reachedInputs[normName(decl.Var.Name)] {
			hidden[decl.Var.Name] = true
		}
	}
	return hidden
}
