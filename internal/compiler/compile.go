package compiler

import (
	"fmt"
	"log/slog"

	"github.com/zclconf/go-cty/cty"

	"github.com/emberfx/graphc/internal/env"
	"github.com/emberfx/graphc/internal/graph"
)

// Compiler drives call-site compilation against a Translator.
//
// The system-constant registry is injected; the compiler holds no
// global state and a single Compiler may serve many graphs, one
// compile at a time per graph (single-writer discipline: auto-binding
// mutates the caller graph in place).
type Compiler struct {
	log       *slog.Logger
	constants *env.Registry
}

// New creates a compiler. A nil logger discards debug output; a nil
// registry means no system constants are available to auto-bind.
func New(log *slog.Logger, constants *env.Registry) *Compiler {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if constants == nil {
		constants = env.NewRegistry()
	}
	return &Compiler{log: log, constants: constants}
}

// Result is the outcome of compiling one call site.
type Result struct {
	// Inputs holds one entry per declared input, in declaration order.
	Inputs []ResolvedInput

	// Outputs holds the translator handles for the call's outputs;
	// empty when a fatal diagnostic suppressed emission.
	Outputs []ValueHandle

	// Switches are the static-switch constants in effect for the
	// callee's body during this compile.
	Switches map[string]cty.Value

	// Hidden names the declared inputs suppressed because unused.
	Hidden map[string]bool

	// Diags accumulates everything reported against this call site.
	Diags Diagnostics
}

// Emitted reports whether target code was emitted for the call site.
func (r *Result) Emitted() bool {
	return !r.Diags.HasErrors()
}

// CompileCallSite resolves and compiles a single call site. Non-fatal
// diagnostics (deprecation, experimental) never suppress emission; any
// fatal diagnostic suppresses emission for this call site only, so
// sibling call sites in the same graph still compile.
//
// Returns an error only on API misuse (the node is not a call site);
// user-facing problems are always diagnostics in the Result.
func (c *Compiler) CompileCallSite(tr Translator, caller *graph.Graph, id graph.NodeID) (*Result, error) {
	node := caller.Node(id)
	if node == nil || node.Kind != graph.KindCallSite {
		return nil, fmt.Errorf("node %d is not a call site", id)
	}
	cs := node.Call
	res := &Result{}

	switch callee := cs.Callable.(type) {
	case *graph.Graph:
		c.compileGraphCall(tr, caller, node, callee, res)

	case *graph.Signature:
		c.compileSignatureCall(tr, caller, node, callee, res)

	default:
		// Neither graph nor signature: an invalid/unresolved state that
		// must compile to a hard diagnostic, never silently.
		msg := fmt.Sprintf("Unknown function call! Missing graph or signature. Stack name: %s", cs.DisplayName)
		res.Diags = append(res.Diags, Diagnostic{
			Severity: SeverityError,
			Code:     CodeUnresolvedCallable,
			Message:  msg,
			CallSite: cs.DisplayName,
			Node:     id,
		})
		tr.ReportError(msg, id, "")
	}

	if !res.Diags.HasErrors() {
		handles := make([]ValueHandle, len(res.Inputs))
		for i := range res.Inputs {
			handles[i] = res.Inputs[i].Handle
		}
		res.Outputs = tr.EmitCall(id, handles)
	}

	c.log.Debug("compiled call site",
		"call", cs.DisplayName,
		"inputs", len(res.Inputs),
		"emitted", res.Emitted(),
		"diagnostics", len(res.Diags))
	return res, nil
}

func (c *Compiler) compileGraphCall(tr Translator, caller *graph.Graph, node *graph.Node, callee *graph.Graph, res *Result) {
	cs := node.Call

	if callee.Status.Deprecated && node.Enabled {
		msg := graphDeprecationMessage(cs)
		res.Diags = append(res.Diags, Diagnostic{
			Severity: SeverityWarning,
			Code:     CodeDeprecatedUsage,
			Message:  msg,
			CallSite: cs.DisplayName,
			Node:     node.ID,
		})
		tr.ReportWarning(msg, node.ID, "")
	}
	if callee.Status.Experimental {
		res.Diags = append(res.Diags, Diagnostic{
			Severity: SeverityInfo,
			Code:     CodeExperimentalUsage,
			Message:  experimentalMessage(callee.Status.ExperimentalMessage),
			CallSite: cs.DisplayName,
			Node:     node.ID,
		})
	}

	res.Switches = SwitchConstants(node, callee)
	res.Hidden = UnusedInputs(callee, res.Switches)

	tr.EnterCall(res.Hidden)
	res.Inputs, _ = c.resolveGraphInputs(tr, caller, node, callee, &res.Diags)
	tr.ExitCall()
}

func (c *Compiler) compileSignatureCall(tr Translator, caller *graph.Graph, node *graph.Node, sig *graph.Signature, res *Result) {
	cs := node.Call

	// Intrinsic-specific precondition check, before any emission.
	if sig.Validate != nil {
		specifiers := effectiveSpecifiers(sig, cs)
		if msgs := sig.Validate(sig, specifiers); len(msgs) > 0 {
			for _, msg := range msgs {
				res.Diags = append(res.Diags, Diagnostic{
					Severity: SeverityError,
					Code:     CodeValidationFailure,
					Message:  msg,
					CallSite: cs.DisplayName,
					Node:     node.ID,
				})
				tr.ReportError(msg, node.ID, "")
			}
			return
		}
	}

	if sig.SoftDeprecated {
		res.Diags = append(res.Diags, Diagnostic{
			Severity: SeverityInfo,
			Code:     CodeDeprecatedUsage,
			Message:  "There is a newer version of this function, consider switching over to it.",
			CallSite: cs.DisplayName,
			Node:     node.ID,
		})
	}
	if sig.Status.Experimental {
		res.Diags = append(res.Diags, Diagnostic{
			Severity: SeverityInfo,
			Code:     CodeExperimentalUsage,
			Message:  experimentalMessage(sig.Status.ExperimentalMessage),
			CallSite: cs.DisplayName,
			Node:     node.ID,
		})
	}

	tr.EnterCall(map[string]bool{})
	res.Inputs, _ = c.resolveSignatureInputs(tr, caller, node, &res.Diags)
	tr.ExitCall()
}

// effectiveSpecifiers overlays the call site's specifier map onto the
// signature's declared defaults; the call site wins.
func effectiveSpecifiers(sig *graph.Signature, cs *graph.CallSite) map[string]string {
	out := make(map[string]string, len(sig.Specifiers)+len(cs.Specifiers))
	for k, v := range sig.Specifiers {
		out[k] = v
	}
	for k, v := range cs.Specifiers {
		out[k] = v
	}
	return out
}

func graphDeprecationMessage(cs *graph.CallSite) string {
	notes := cs.StatusNotes()
	if len(notes) > 0 {
		return notes[0]
	}
	return fmt.Sprintf("Function call %q is deprecated.", cs.DisplayName)
}

func experimentalMessage(reason string) string {
	if reason == "" {
		return "This function is marked as experimental, use with care!"
	}
	return fmt.Sprintf("This function is marked as experimental, reason: %s.", reason)
}
