package compiler

import (
	"fmt"

	"github.com/emberfx/graphc/internal/graph"
	"github.com/emberfx/graphc/internal/ir"
)

// findAutoBound attempts to resolve an unconnected, auto-bindable input
// to a contextual symbol.
//
// Lookup order is a deliberate tie-break and must be preserved:
//  1. an attribute of the caller's enclosing executable context (the
//     nearest spawn or update output contract, preferring spawn when
//     both exist),
//  2. the injected system-constant registry.
//
// The lookup is pure; materializeAutoBind performs the graph mutation
// when the result is consumed.
func (c *Compiler) findAutoBound(caller *graph.Graph, decl graph.InputDecl, pin *graph.Pin) (AutoBound, bool) {
	if pin.Link != nil || !decl.CanAutoBind || !decl.Exposed {
		return AutoBound{}, false
	}

	spawn := caller.OutputNode(ir.UsageSpawn)
	update := caller.OutputNode(ir.UsageUpdate)
	if spawn != nil || update != nil {
		contract := spawn
		if contract == nil {
			contract = update
		}
		if i := contract.FindInput(pin.Var); i >= 0 {
			return AutoBound{Kind: SymbolAttribute, Var: contract.In[i].Var}, true
		}
	}

	if c.constants.Contains(pin.Var) {
		return AutoBound{Kind: SymbolSystemConstant, Var: pin.Var}, true
	}

	return AutoBound{}, false
}

// materializeAutoBind inserts (or reuses) the discovered symbol's
// source node in the caller graph and rewires the call-site slot to it,
// so repeat compiles see a stable linked state.
//
// Idempotent: re-resolving an already auto-bound slot reuses the
// existing source node instead of inserting a duplicate.
func (c *Compiler) materializeAutoBind(caller *graph.Graph, site graph.NodeID, pinIndex int, ab AutoBound) (graph.PinRef, error) {
	kind := graph.InputAttribute
	if ab.Kind == SymbolSystemConstant {
		kind = graph.InputSystemConstant
	}

	var src graph.PinRef
	found := false
	for _, n := range caller.Nodes() {
		if n.Kind == graph.KindInput && n.Input.Kind == kind && n.Input.Var.Equivalent(ab.Var) {
			src = graph.PinRef{Node: n.ID, Dir: graph.Out, Index: 0}
			found = true
			break
		}
	}
	if !found {
		id := caller.AddInput(graph.InputDecl{Var: ab.Var, Kind: kind})
		src = graph.PinRef{Node: id, Dir: graph.Out, Index: 0}
	}

	dst := graph.PinRef{Node: site, Dir: graph.In, Index: pinIndex}
	if err := caller.Link(src, dst); err != nil {
		return graph.PinRef{}, fmt.Errorf("auto-bind %s: %w", ab.Var.Name, err)
	}
	return src, nil
}
