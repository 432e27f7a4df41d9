package graph

import (
	"github.com/emberfx/graphc/internal/ir"
)

// Callable is the sealed sum over the two kinds of invocable
// definition: a graph-defined subroutine (*Graph) or a built-in
// intrinsic (*Signature). Nothing else implements it.
//
// A call site whose callable is nil is unresolved; compiling it is a
// hard diagnostic, never a silent no-op.
type Callable interface {
	callable()

	// CallableName is the base name used for display-name computation.
	CallableName() string

	// CallableInputs lists declared inputs in resolution order.
	CallableInputs() []InputDecl

	// CallableOutputs lists declared outputs in order.
	CallableOutputs() []ir.Variable
}

func (*Graph) callable()     {}
func (*Signature) callable() {}

// CallableName implements Callable.
func (g *Graph) CallableName() string { return g.Name }

// CallableInputs implements Callable.
func (g *Graph) CallableInputs() []InputDecl { return g.InputDecls() }

// CallableOutputs implements Callable. The outputs are the variables of
// the preferred terminal output contract.
func (g *Graph) CallableOutputs() []ir.Variable {
	out := g.PreferredOutputNode()
	if out == nil {
		return nil
	}
	vars := make([]ir.Variable, len(out.In))
	for i := range out.In {
		vars[i] = out.In[i].Var
	}
	return vars
}

// Signature describes a built-in intrinsic declaratively: same
// declaration-list contract as a graph, but no body. The intrinsic's
// implementation lives in the downstream code generator.
type Signature struct {
	Name    string
	Inputs  []InputDecl
	Outputs []ir.Variable

	// RequiresExecPin adds a leading execution-context input pin and a
	// trailing execution-context output pin to call sites.
	RequiresExecPin bool

	// Specifiers are compile-time key/value configuration consumed by
	// the intrinsic itself, opaque to the type system. A call site's
	// own specifier map overrides these at compile time.
	Specifiers map[string]string

	Status         Status
	SoftDeprecated bool

	// Validate, when set, is the intrinsic-specific precondition check.
	// Returned messages abort compilation of the call site before any
	// code is emitted.
	Validate func(sig *Signature, specifiers map[string]string) []string
}

// CallableName implements Callable.
func (s *Signature) CallableName() string { return s.Name }

// CallableInputs implements Callable.
func (s *Signature) CallableInputs() []InputDecl { return s.Inputs }

// CallableOutputs implements Callable.
func (s *Signature) CallableOutputs() []ir.Variable { return s.Outputs }

// CalledGraph returns the graph body of a callable, or nil for
// signatures and unresolved callables.
func CalledGraph(c Callable) *Graph {
	if g, ok := c.(*Graph); ok {
		return g
	}
	return nil
}
