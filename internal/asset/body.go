package asset

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue"

	"github.com/emberfx/graphc/internal/graph"
	"github.com/emberfx/graphc/internal/ir"
)

// loadBody parses the deferred body section of one graph: named call
// sites first, then the link list. Errors are appended, never
// fail-fast, so a broken link does not hide a broken call.
func loadBody(b bodySpec, reg *Registry, errs *[]error) {
	g := b.g
	nodes := map[string]graph.NodeID{}

	if callsVal := b.value.LookupPath(cue.ParsePath("calls")); callsVal.Exists() {
		iter, err := callsVal.Fields()
		if err != nil {
			*errs = append(*errs, formatCUEError(err))
			return
		}
		for iter.Next() {
			name := strings.Trim(iter.Selector().String(), `"`)
			id, err := loadCall(g, name, iter.Value(), reg)
			if err != nil {
				*errs = append(*errs, err)
				continue
			}
			nodes[strings.ToLower(name)] = id
		}
	}

	if linksVal := b.value.LookupPath(cue.ParsePath("links")); linksVal.Exists() {
		iter, err := linksVal.List()
		if err != nil {
			*errs = append(*errs, formatCUEError(err))
			return
		}
		for iter.Next() {
			if err := loadLink(g, nodes, iter.Value()); err != nil {
				*errs = append(*errs, err)
			}
		}
	}
}

// loadCall inserts one call-site node. The callable is resolved against
// the registry; unresolved paths are a load error, not a deferred
// compile diagnostic, since assets are self-contained.
func loadCall(g *graph.Graph, name string, v cue.Value, reg *Registry) (graph.NodeID, error) {
	path, err := stringField(v, "path")
	if err != nil || path == "" {
		return graph.InvalidNode, &CompileError{
			Code: ErrUnresolvedPath, Field: g.Name + ".body.calls." + name,
			Message: "call path is required", Pos: v.Pos(),
		}
	}
	callable, state := reg.Resolve(path)
	if state == StateMissing {
		return graph.InvalidNode, &CompileError{
			Code: ErrUnresolvedPath, Field: g.Name + ".body.calls." + name,
			Message: fmt.Sprintf("callable %q not found in asset set", path), Pos: v.Pos(),
		}
	}

	id := g.AddCallSite(path, callable)
	if display, _ := stringField(v, "displayName"); display != "" {
		g.ComputeCallName(id, display, true)
	} else {
		g.ComputeCallName(id, name, false)
	}
	if disabled, _ := boolField(v, "disabled"); disabled {
		g.SetEnabled(id, false)
	}

	node := g.Node(id)
	if specVal := v.LookupPath(cue.ParsePath("specifiers")); specVal.Exists() {
		iter, err := specVal.Fields()
		if err != nil {
			return graph.InvalidNode, formatCUEError(err)
		}
		for iter.Next() {
			key := strings.Trim(iter.Selector().String(), `"`)
			val, err := iter.Value().String()
			if err != nil {
				return graph.InvalidNode, formatCUEError(err)
			}
			node.Call.Specifiers[key] = val
		}
	}

	if propVal := v.LookupPath(cue.ParsePath("propagated")); propVal.Exists() {
		if err := loadPropagated(g, id, name, propVal); err != nil {
			return graph.InvalidNode, err
		}
	}

	if litVal := v.LookupPath(cue.ParsePath("literals")); litVal.Exists() {
		if err := loadLiterals(g, id, name, litVal); err != nil {
			return graph.InvalidNode, err
		}
	}

	return id, nil
}

// loadPropagated records caller-chosen static-switch values on a call
// site. The switch variable's declared type drives literal conversion.
func loadPropagated(g *graph.Graph, id graph.NodeID, name string, v cue.Value) error {
	callee := graph.CalledGraph(g.Node(id).Call.Callable)
	iter, err := v.Fields()
	if err != nil {
		return formatCUEError(err)
	}
	for iter.Next() {
		swName := strings.Trim(iter.Selector().String(), `"`)
		var decl *graph.SwitchDecl
		if callee != nil {
			for i := range callee.Switches {
				if strings.EqualFold(callee.Switches[i].Var.Name, swName) {
					decl = &callee.Switches[i]
					break
				}
			}
		}
		if decl == nil {
			return &CompileError{
				Code: ErrGeneric, Field: g.Name + ".body.calls." + name + ".propagated." + swName,
				Message: fmt.Sprintf("callee declares no static switch %q", swName), Pos: iter.Value().Pos(),
			}
		}
		val, err := cueToCty(iter.Value(), decl.Var.Type)
		if err != nil {
			return &CompileError{
				Code: ErrDefaultTypeMismatch, Field: g.Name + ".body.calls." + name + ".propagated." + swName,
				Message: err.Error(), Pos: iter.Value().Pos(),
			}
		}
		if err := g.SetPropagated(id, decl.Var, val); err != nil {
			return err
		}
	}
	return nil
}

// loadLiterals sets edited inline defaults on a call site's input pins.
func loadLiterals(g *graph.Graph, id graph.NodeID, name string, v cue.Value) error {
	node := g.Node(id)
	iter, err := v.Fields()
	if err != nil {
		return formatCUEError(err)
	}
	for iter.Next() {
		pinName := strings.Trim(iter.Selector().String(), `"`)
		idx := findPinByName(node.In, pinName)
		if idx < 0 {
			return &CompileError{
				Code: ErrUnknownEndpoint, Field: g.Name + ".body.calls." + name + ".literals." + pinName,
				Message: fmt.Sprintf("call has no input pin %q", pinName), Pos: iter.Value().Pos(),
			}
		}
		val, err := cueToCty(iter.Value(), node.In[idx].Var.Type)
		if err != nil {
			return &CompileError{
				Code: ErrDefaultTypeMismatch, Field: g.Name + ".body.calls." + name + ".literals." + pinName,
				Message: err.Error(), Pos: iter.Value().Pos(),
			}
		}
		node.In[idx].Default = val
		g.Touch()
	}
	return nil
}

// loadLink resolves one {from, to} pair and wires it.
func loadLink(g *graph.Graph, nodes map[string]graph.NodeID, v cue.Value) error {
	fromSpec, err := stringField(v, "from")
	if err != nil {
		return formatCUEError(err)
	}
	toSpec, err := stringField(v, "to")
	if err != nil {
		return formatCUEError(err)
	}
	from, err := resolveEndpoint(g, nodes, fromSpec, graph.Out)
	if err != nil {
		return &CompileError{
			Code: ErrUnknownEndpoint, Field: g.Name + ".body.links",
			Message: err.Error(), Pos: v.Pos(),
		}
	}
	to, err := resolveEndpoint(g, nodes, toSpec, graph.In)
	if err != nil {
		return &CompileError{
			Code: ErrUnknownEndpoint, Field: g.Name + ".body.links",
			Message: err.Error(), Pos: v.Pos(),
		}
	}
	if err := g.Link(from, to); err != nil {
		return &CompileError{
			Code: ErrGeneric, Field: g.Name + ".body.links",
			Message: fmt.Sprintf("link %s -> %s: %v", fromSpec, toSpec, err), Pos: v.Pos(),
		}
	}
	return nil
}

// resolveEndpoint parses a link endpoint. The grammar:
//
//	inputs.<Name>             output pin of a declared input
//	outputs.<usage>.<Name>    input pin on a terminal output contract
//	<call>.<Pin>              named pin on a call site from the body
func resolveEndpoint(g *graph.Graph, nodes map[string]graph.NodeID, spec string, dir graph.PinDir) (graph.PinRef, error) {
	parts := strings.Split(spec, ".")
	switch {
	case parts[0] == "inputs" && len(parts) == 2:
		if dir != graph.Out {
			return graph.PinRef{}, fmt.Errorf("%s: graph inputs are sources, not targets", spec)
		}
		for _, n := range g.InputNodes() {
			if strings.EqualFold(n.Input.Var.Name, parts[1]) {
				return graph.PinRef{Node: n.ID, Dir: graph.Out, Index: 0}, nil
			}
		}
		return graph.PinRef{}, fmt.Errorf("%s: no such graph input", spec)

	case parts[0] == "outputs" && len(parts) == 3:
		if dir != graph.In {
			return graph.PinRef{}, fmt.Errorf("%s: output contracts are targets, not sources", spec)
		}
		usage, err := ir.ParseUsage(parts[1])
		if err != nil {
			return graph.PinRef{}, fmt.Errorf("%s: %w", spec, err)
		}
		out := g.OutputNode(usage)
		if out == nil {
			return graph.PinRef{}, fmt.Errorf("%s: graph declares no %s output contract", spec, usage)
		}
		if idx := findPinByName(out.In, parts[2]); idx >= 0 {
			return graph.PinRef{Node: out.ID, Dir: graph.In, Index: idx}, nil
		}
		return graph.PinRef{}, fmt.Errorf("%s: contract has no variable %q", spec, parts[2])

	case len(parts) == 2:
		id, ok := nodes[strings.ToLower(parts[0])]
		if !ok {
			return graph.PinRef{}, fmt.Errorf("%s: no call named %q in body", spec, parts[0])
		}
		node := g.Node(id)
		pins := node.In
		if dir == graph.Out {
			pins = node.Out
		}
		if idx := findPinByName(pins, parts[1]); idx >= 0 {
			return graph.PinRef{Node: id, Dir: dir, Index: idx}, nil
		}
		side := "input"
		if dir == graph.Out {
			side = "output"
		}
		return graph.PinRef{}, fmt.Errorf("%s: call has no %s pin %q", spec, side, parts[1])

	default:
		return graph.PinRef{}, fmt.Errorf("%s: malformed endpoint", spec)
	}
}

func findPinByName(pins []graph.Pin, name string) int {
	for i := range pins {
		if strings.EqualFold(pins[i].Var.Name, name) {
			return i
		}
	}
	return -1
}
