package graph

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/zclconf/go-cty/cty"

	"github.com/emberfx/graphc/internal/ir"
)

// PropagatedSwitch is a caller-supplied static-switch value that
// overrides the callee's default discriminant. While a switch is
// propagated, its pin on the call site is caller-immutable (the pin's
// inline default is ignored) so edits at the outer scope win.
type PropagatedSwitch struct {
	Var   ir.Variable
	Value cty.Value
}

// CallSite is the payload of a KindCallSite node: a non-owning
// reference to a callable plus the caller-side state that survives
// between compiles. Bindings themselves are compile-transient and live
// in internal/compiler.
type CallSite struct {
	// CallablePath is the stored path the callable was resolved from.
	CallablePath string

	// Callable is the resolved definition. Nil means unresolved: the
	// asset is missing or not yet loaded.
	Callable Callable

	// CachedChangeID is the callable's change ID at the last pin sync.
	// A mismatch means the call site is stale and needs a refresh.
	CachedChangeID uuid.UUID

	// DisplayName is unique among sibling call sites; it feeds
	// name-sensitive generated output and therefore the node hash.
	DisplayName string

	Propagated []PropagatedSwitch

	// Specifiers are forwarded verbatim to intrinsic signatures.
	Specifiers map[string]string
}

// FindPropagated returns the propagated entry for a switch variable,
// or nil when the call site does not propagate it.
func (cs *CallSite) FindPropagated(v ir.Variable) *PropagatedSwitch {
	for i := range cs.Propagated {
		if cs.Propagated[i].Var.Equivalent(v) {
			return &cs.Propagated[i]
		}
	}
	return nil
}

// RemovePropagated drops the propagated entry for a switch variable.
func (cs *CallSite) RemovePropagated(v ir.Variable) {
	for i := range cs.Propagated {
		if cs.Propagated[i].Var.Equivalent(v) {
			cs.Propagated = append(cs.Propagated[:i], cs.Propagated[i+1:]...)
			return
		}
	}
}

// isValidPropagated reports whether v still exists as a declared static
// switch on the current callee.
func (cs *CallSite) isValidPropagated(v ir.Variable) bool {
	g := CalledGraph(cs.Callable)
	if g == nil {
		return false
	}
	return g.FindStaticSwitch(v) != nil
}

// CleanupPropagatedSwitches prunes propagations whose switch no longer
// exists on the current callee. Stale propagation is self-healing
// cleanup, not a user-facing failure, so it is silent.
func (cs *CallSite) CleanupPropagatedSwitches() {
	for i := len(cs.Propagated) - 1; i >= 0; i-- {
		p := cs.Propagated[i]
		if p.Var.Name == "" || !cs.isValidPropagated(p.Var) {
			cs.Propagated = append(cs.Propagated[:i], cs.Propagated[i+1:]...)
		}
	}
}

// SetPropagated records (or replaces) a propagated switch value on the
// call site and re-marks the matching pin caller-immutable.
func (g *Graph) SetPropagated(id NodeID, v ir.Variable, val cty.Value) error {
	n := g.Node(id)
	if n == nil || n.Kind != KindCallSite {
		return fmt.Errorf("node %d is not a call site", id)
	}
	callee := CalledGraph(n.Call.Callable)
	if callee == nil || callee.FindStaticSwitch(v) == nil {
		return fmt.Errorf("callable %q declares no static switch %s", n.Call.CallablePath, v.Name)
	}
	if p := n.Call.FindPropagated(v); p != nil {
		p.Value = val
	} else {
		n.Call.Propagated = append(n.Call.Propagated, PropagatedSwitch{Var: v, Value: val})
	}
	if i := n.FindInput(v); i >= 0 {
		n.In[i].DefaultIgnored = true
	}
	g.Touch()
	return nil
}

// SyncCallPins rebuilds the call-site node's pins from its callable's
// declarations, preserving links and edited literals on pins whose
// variable survives the resync. Records the callable's change ID as
// the synchronized snapshot.
func (g *Graph) SyncCallPins(id NodeID) error {
	n := g.Node(id)
	if n == nil || n.Kind != KindCallSite {
		return fmt.Errorf("node %d is not a call site", id)
	}
	cs := n.Call
	if cs.Callable == nil {
		// Unresolved: keep whatever pins we had so a later resolve can
		// preserve links, but mark the snapshot invalid.
		cs.CachedChangeID = uuid.Nil
		return nil
	}

	oldIn, oldOut := n.In, n.Out
	var in, out []Pin

	switch c := cs.Callable.(type) {
	case *Graph:
		for _, decl := range c.InputDecls() {
			if !decl.Exposed {
				continue
			}
			in = append(in, Pin{
				Var:            decl.Var,
				Default:        decl.Default,
				DefaultIgnored: !decl.AllowsInlineDefault(),
				Advanced:       decl.Hidden,
			})
		}
		for _, sw := range c.Switches {
			in = append(in, Pin{
				Var:            sw.Var,
				Default:        sw.Default,
				DefaultIgnored: cs.FindPropagated(sw.Var) != nil,
				NotConnectable: true,
				Switch:         true,
			})
		}
		for _, v := range c.CallableOutputs() {
			out = append(out, Pin{Var: v, DefaultIgnored: true})
		}
		cs.CachedChangeID = c.ChangeID

	case *Signature:
		if c.RequiresExecPin {
			in = append(in, Pin{Var: ir.Var("Exec", ir.FlowType), DefaultIgnored: true})
		}
		for _, decl := range c.Inputs {
			in = append(in, Pin{Var: decl.Var, Default: decl.Default})
		}
		if c.RequiresExecPin {
			out = append(out, Pin{Var: ir.Var("Exec", ir.FlowType), DefaultIgnored: true})
		}
		for _, v := range c.Outputs {
			out = append(out, Pin{Var: v, DefaultIgnored: true})
		}
		// Signatures have no external body to synchronize against.
		cs.CachedChangeID = uuid.Nil
	}

	// Carry over links and edited literals from surviving pins.
	for i := range in {
		for j := range oldIn {
			if oldIn[j].Var.Equivalent(in[i].Var) {
				in[i].Link = oldIn[j].Link
				if oldIn[j].Default != cty.NilVal {
					in[i].Default = oldIn[j].Default
				}
				break
			}
		}
	}
	_ = oldOut // output links live on the receiving side; nothing to carry

	n.In, n.Out = in, out
	g.Touch()
	return nil
}

// RefreshCallSite re-synchronizes a call site against external changes
// to its callable: prunes stale propagated switches, recomputes the
// caller-immutable flag on switch pins, and rebuilds pins when the
// cached change ID no longer matches. Returns true when a pin rebuild
// happened.
func (g *Graph) RefreshCallSite(id NodeID) (bool, error) {
	n := g.Node(id)
	if n == nil || n.Kind != KindCallSite {
		return false, fmt.Errorf("node %d is not a call site", id)
	}
	cs := n.Call

	stale := false
	switch c := cs.Callable.(type) {
	case *Graph:
		stale = cs.CachedChangeID != c.ChangeID
	case *Signature:
		// Signatures are re-described in place on every load.
		stale = true
	}

	if callee := CalledGraph(cs.Callable); callee != nil {
		cs.CleanupPropagatedSwitches()
		for _, sw := range callee.Switches {
			if i := n.FindInput(sw.Var); i >= 0 {
				n.In[i].DefaultIgnored = cs.FindPropagated(sw.Var) != nil
			}
		}
	}

	if !stale {
		return false, nil
	}
	if err := g.SyncCallPins(id); err != nil {
		return false, err
	}
	g.ComputeCallName(id, "", false)
	return true, nil
}

// StatusNotes renders the non-fatal advisory messages for a call site:
// deprecation warnings for graphs, soft-deprecation and experimental
// notes for both callable kinds. An unresolved callable yields nothing;
// compile reports that as a hard error instead.
func (cs *CallSite) StatusNotes() []string {
	var notes []string
	switch c := cs.Callable.(type) {
	case *Graph:
		if c.Status.Deprecated {
			notes = append(notes, formatDeprecation(cs.DisplayName, c.Status))
		}
		if c.Status.Experimental {
			notes = append(notes, formatExperimental(c.Status))
		}
	case *Signature:
		if c.SoftDeprecated {
			notes = append(notes, "There is a newer version of this function, consider switching over to it.")
		}
		if c.Status.Experimental {
			notes = append(notes, formatExperimental(c.Status))
		}
	}
	return notes
}

func formatDeprecation(name string, st Status) string {
	switch {
	case st.Replacement != "" && st.DeprecationMessage != "":
		return fmt.Sprintf("Function call %q is deprecated. Reason: %s. Please use %s instead.",
			name, st.DeprecationMessage, st.Replacement)
	case st.Replacement != "":
		return fmt.Sprintf("Function call %q is deprecated. Please use %s instead.", name, st.Replacement)
	case st.DeprecationMessage != "":
		return fmt.Sprintf("Function call %q is deprecated. Reason: %s", name, st.DeprecationMessage)
	default:
		return fmt.Sprintf("Function call %q is deprecated. No recommendation was provided.", name)
	}
}

func formatExperimental(st Status) string {
	if st.ExperimentalMessage == "" {
		return "This function is marked as experimental, use with care!"
	}
	return fmt.Sprintf("This function is marked as experimental, reason: %s.", st.ExperimentalMessage)
}
