package compiler

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"

	"github.com/emberfx/graphc/internal/graph"
	"github.com/emberfx/graphc/internal/ir"
)

// Binding is the sealed outcome of resolving one declared input.
// Only Linked, InlineDefault, AutoBound, and Absent implement it.
//
// Bindings are derived fresh per compile and never cached across
// structural edits.
type Binding interface {
	binding()
	String() string
}

// Linked binds the input to an upstream output, traced through any
// pass-through nodes to the true source.
type Linked struct {
	Source graph.PinRef
}

func (Linked) binding() {}

func (b Linked) String() string { return fmt.Sprintf("linked(%s)", b.Source) }

// InlineDefault binds the input to a caller-side literal (or, for a
// required unexposed input, the callee's declared default compiled as
// a constant).
type InlineDefault struct {
	Value cty.Value
}

func (InlineDefault) binding() {}

func (b InlineDefault) String() string { return fmt.Sprintf("inline(%s)", ir.FormatValue(b.Value)) }

// SymbolKind identifies which contextual namespace an auto-bound
// symbol came from.
type SymbolKind int

const (
	// SymbolAttribute is an attribute of the nearest enclosing spawn or
	// update output contract.
	SymbolAttribute SymbolKind = iota
	// SymbolSystemConstant is an engine-wide read-only value.
	SymbolSystemConstant
)

// String implements fmt.Stringer.
func (k SymbolKind) String() string {
	if k == SymbolAttribute {
		return "attribute"
	}
	return "system_constant"
}

// AutoBound binds the input to a discovered contextual symbol.
type AutoBound struct {
	Kind SymbolKind
	Var  ir.Variable
}

func (AutoBound) binding() {}

func (b AutoBound) String() string { return fmt.Sprintf("auto(%s, %s)", b.Kind, b.Var.Name) }

// Absent means the callee must use its own internal default.
type Absent struct{}

func (Absent) binding() {}

func (Absent) String() string { return "absent" }

// ResolvedInput pairs one declared input with its binding outcome and
// the translator value handle that carries it into the emitted call.
type ResolvedInput struct {
	Decl    graph.InputDecl
	Slot    string // caller slot name; empty when no slot matched
	Binding Binding
	Handle  ValueHandle
}
