package compiler

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"

	"github.com/emberfx/graphc/internal/graph"
)

// resolveGraphInputs runs the per-input decision procedure for a
// graph-defined callee, in declaration order:
//
//  1. Locate the matching caller slot by name+type equivalence. No slot
//     and exposed: stale call site, error. No slot, unexposed but
//     required: compile the declared default as a constant. Otherwise
//     absent.
//  2. Slot with an upstream link: trace to the true source, Linked.
//  3. No link: attempt auto-bind; success materializes a synthetic
//     link so repeat compiles see a stable linked state.
//  4. Required otherwise: inline default if the slot permits one, else
//     a required-input-unbound error.
//  5. Optional otherwise: inline default when one is declared, else
//     absent and the callee falls back to its internal value.
//
// Errors accumulate; resolution continues for the remaining inputs so a
// single compile reports all unbound inputs at once. The returned flag
// is true when any fatal diagnostic was recorded.
func (c *Compiler) resolveGraphInputs(
	tr Translator,
	caller *graph.Graph,
	node *graph.Node,
	callee *graph.Graph,
	diags *Diagnostics,
) ([]ResolvedInput, bool) {
	cs := node.Call
	fatal := false

	fail := func(code Code, slot, msg string) {
		*diags = append(*diags, Diagnostic{
			Severity: SeverityError,
			Code:     code,
			Message:  msg,
			CallSite: cs.DisplayName,
			Node:     node.ID,
			Slot:     slot,
		})
		tr.ReportError(msg, node.ID, slot)
		fatal = true
	}

	var resolved []ResolvedInput
	for _, decl := range callee.InputDecls() {
		pinIndex := node.FindInput(decl.Var)
		if pinIndex < 0 {
			switch {
			case decl.Exposed:
				// No caller slot for an exposed input: the call site has
				// drifted from the callee and needs a refresh.
				fail(CodeStaleBinding, decl.Var.Name, "Function call is stale and needs to be refreshed.")
				resolved = append(resolved, ResolvedInput{Decl: decl, Binding: Absent{}, Handle: InvalidValue})
			case decl.Required:
				// Unexposed but required: substitute the declared
				// default as a compiled constant. Never an error.
				handle := tr.GetConstant(Constant{Var: decl.Var, Value: decl.Default})
				resolved = append(resolved, ResolvedInput{Decl: decl, Binding: InlineDefault{Value: decl.Default}, Handle: handle})
			default:
				resolved = append(resolved, ResolvedInput{Decl: decl, Binding: Absent{}, Handle: InvalidValue})
			}
			continue
		}

		pin := &node.In[pinIndex]
		if pin.Link == nil {
			if ab, ok := c.findAutoBound(caller, decl, pin); ok {
				if _, err := c.materializeAutoBind(caller, node.ID, pinIndex, ab); err != nil {
					fail(CodeStaleBinding, pin.Var.Name, fmt.Sprintf("auto-bind failed: %v", err))
					resolved = append(resolved, ResolvedInput{Decl: decl, Slot: pin.Var.Name, Binding: Absent{}, Handle: InvalidValue})
					continue
				}
				src := caller.TraceOutput(*pin.Link)
				handle := tr.CompileUpstream(src)
				resolved = append(resolved, ResolvedInput{Decl: decl, Slot: pin.Var.Name, Binding: ab, Handle: handle})
				continue
			}
		}

		if pin.Link != nil {
			// Provided by the caller; the typical case. A link into a
			// synthesized attribute or system-constant source is a prior
			// auto-bind, and re-resolution must classify it identically.
			src := caller.TraceOutput(*pin.Link)
			handle := tr.CompileUpstream(src)
			binding := Binding(Linked{Source: src})
			if decl.CanAutoBind {
				if srcNode := caller.Node(src.Node); srcNode != nil && srcNode.Kind == graph.KindInput {
					switch srcNode.Input.Kind {
					case graph.InputAttribute:
						binding = AutoBound{Kind: SymbolAttribute, Var: srcNode.Input.Var}
					case graph.InputSystemConstant:
						binding = AutoBound{Kind: SymbolSystemConstant, Var: srcNode.Input.Var}
					}
				}
			}
			resolved = append(resolved, ResolvedInput{Decl: decl, Slot: pin.Var.Name, Binding: binding, Handle: handle})
			continue
		}

		if decl.Required {
			if pin.DefaultIgnored {
				fail(CodeRequiredInputUnbound, pin.Var.Name,
					fmt.Sprintf("Required input %q was not bound and could not be automatically bound.", pin.Var.Name))
				resolved = append(resolved, ResolvedInput{Decl: decl, Slot: pin.Var.Name, Binding: Absent{}, Handle: InvalidValue})
			} else {
				value := pin.Default
				if value == cty.NilVal {
					value = decl.Default
				}
				handle := tr.GetConstant(Constant{Var: pin.Var, Value: value})
				resolved = append(resolved, ResolvedInput{Decl: decl, Slot: pin.Var.Name, Binding: InlineDefault{Value: value}, Handle: handle})
			}
			continue
		}

		// Optional, unlinked, not auto-bindable. A caller-edited literal
		// wins when the slot permits one; otherwise the declared default
		// is compiled in. Absent only when the callee has no default at
		// all and must fall back to its internal value.
		value := cty.NilVal
		if !pin.DefaultIgnored {
			value = pin.Default
		}
		if value == cty.NilVal {
			value = decl.Default
		}
		if value != cty.NilVal {
			handle := tr.GetConstant(Constant{Var: pin.Var, Value: value})
			resolved = append(resolved, ResolvedInput{Decl: decl, Slot: pin.Var.Name, Binding: InlineDefault{Value: value}, Handle: handle})
			continue
		}
		resolved = append(resolved, ResolvedInput{Decl: decl, Slot: pin.Var.Name, Binding: Absent{}, Handle: InvalidValue})
	}

	return resolved, fatal
}

// resolveSignatureInputs compiles the caller-side slots of an intrinsic
// call in pin order. Signature inputs are declaratively required: an
// unlinked slot without a usable literal is an error.
func (c *Compiler) resolveSignatureInputs(
	tr Translator,
	caller *graph.Graph,
	node *graph.Node,
	diags *Diagnostics,
) ([]ResolvedInput, bool) {
	cs := node.Call
	fatal := false

	var resolved []ResolvedInput
	for i := range node.In {
		pin := &node.In[i]
		decl := graph.InputDecl{Var: pin.Var, Exposed: true, Required: true}

		if pin.Link != nil {
			src := caller.TraceOutput(*pin.Link)
			handle := tr.CompileUpstream(src)
			resolved = append(resolved, ResolvedInput{Decl: decl, Slot: pin.Var.Name, Binding: Linked{Source: src}, Handle: handle})
			continue
		}
		if !pin.DefaultIgnored && pin.Default != cty.NilVal {
			handle := tr.GetConstant(Constant{Var: pin.Var, Value: pin.Default})
			resolved = append(resolved, ResolvedInput{Decl: decl, Slot: pin.Var.Name, Binding: InlineDefault{Value: pin.Default}, Handle: handle})
			continue
		}

		msg := fmt.Sprintf("Required input %q was not bound and has no usable default.", pin.Var.Name)
		*diags = append(*diags, Diagnostic{
			Severity: SeverityError,
			Code:     CodeRequiredInputUnbound,
			Message:  msg,
			CallSite: cs.DisplayName,
			Node:     node.ID,
			Slot:     pin.Var.Name,
		})
		tr.ReportError(msg, node.ID, pin.Var.Name)
		fatal = true
		resolved = append(resolved, ResolvedInput{Decl: decl, Slot: pin.Var.Name, Binding: Absent{}, Handle: InvalidValue})
	}

	return resolved, fatal
}
