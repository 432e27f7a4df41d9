package compiler

import (
	"github.com/zclconf/go-cty/cty"

	"github.com/emberfx/graphc/internal/graph"
	"github.com/emberfx/graphc/internal/ir"
)

// ValueHandle identifies a value inside the downstream code generator.
// Handles are opaque to the compiler; InvalidValue tells the generator
// the input is not provided and the callee's local default applies.
type ValueHandle int

// InvalidValue is the out-of-band handle for absent inputs.
const InvalidValue ValueHandle = -1

// Constant is a declared input together with the literal the generator
// should materialize for it.
type Constant struct {
	Var   ir.Variable
	Value cty.Value
}

// Translator is the consumed code-generation capability. The compiler
// only sequences these calls; it never emits target code itself.
//
// Implementations are expected to be single-threaded per compile.
type Translator interface {
	// EnterCall opens a call scope. Inputs named in hidden are unused
	// under the current static-switch constants and must be excluded
	// from the parameter set-up of the call.
	EnterCall(hidden map[string]bool)

	// ExitCall closes the scope opened by the matching EnterCall.
	ExitCall()

	// CompileUpstream compiles the producer behind a traced output pin
	// and returns the handle of the produced value.
	CompileUpstream(src graph.PinRef) ValueHandle

	// GetConstant materializes a compile-time constant.
	GetConstant(c Constant) ValueHandle

	// EmitCall emits the call itself and returns one handle per
	// declared output of the call site.
	EmitCall(site graph.NodeID, inputs []ValueHandle) []ValueHandle

	// ReportError records a fatal diagnostic against the call site and
	// optionally a specific slot.
	ReportError(msg string, site graph.NodeID, slot string)

	// ReportWarning records a non-fatal diagnostic.
	ReportWarning(msg string, site graph.NodeID, slot string)
}
