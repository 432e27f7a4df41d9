package compiler

import (
	"github.com/zclconf/go-cty/cty"

	"github.com/emberfx/graphc/internal/graph"
)

// SwitchConstants assigns a concrete value to every static switch of
// the callee before its body is traversed. For each declared switch:
//
//  1. the caller-propagated value, if the call site declares one for
//     that switch name+type;
//  2. else the caller-side literal on the corresponding switch pin
//     (switch pins are never linkable);
//  3. else the callee's own declared default.
//
// While a switch is propagated its pin is caller-immutable (the pin's
// binding is ignored) so outer-scope edits take precedence.
func SwitchConstants(node *graph.Node, callee *graph.Graph) map[string]cty.Value {
	if callee == nil {
		return nil
	}
	consts := make(map[string]cty.Value, len(callee.Switches))
	for _, sw := range callee.Switches {
		if p := node.Call.FindPropagated(sw.Var); p != nil {
			consts[sw.Var.Name] = p.Value
			continue
		}
		if i := node.FindInput(sw.Var); i >= 0 {
			pin := &node.In[i]
			if pin.Switch && !pin.DefaultIgnored && pin.Default != cty.NilVal {
				consts[sw.Var.Name] = pin.Default
				continue
			}
		}
		consts[sw.Var.Name] = sw.Default
	}
	return consts
}
