package compiler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/emberfx/graphc/internal/graph"
	"github.com/emberfx/graphc/internal/ir"
)

// TraceTranslator is a Translator that records the exact call sequence
// instead of generating code. It backs the CLI's trace output and the
// golden-file compile tests; deterministic output is the whole point,
// so hidden-input sets are emitted sorted.
type TraceTranslator struct {
	g     *graph.Graph
	next  ValueHandle
	Trace []string
}

// NewTraceTranslator creates a trace translator for one caller graph.
// The graph is only consulted to size EmitCall's output handles.
func NewTraceTranslator(g *graph.Graph) *TraceTranslator {
	return &TraceTranslator{g: g}
}

func (t *TraceTranslator) record(format string, args ...any) {
	t.Trace = append(t.Trace, fmt.Sprintf(format, args...))
}

func (t *TraceTranslator) alloc() ValueHandle {
	h := t.next
	t.next++
	return h
}

// EnterCall implements Translator.
func (t *TraceTranslator) EnterCall(hidden map[string]bool) {
	names := make([]string, 0, len(hidden))
	for name := range hidden {
		names = append(names, name)
	}
	sort.Strings(names)
	t.record("enter_call hidden=[%s]", strings.Join(names, ","))
}

// ExitCall implements Translator.
func (t *TraceTranslator) ExitCall() {
	t.record("exit_call")
}

// CompileUpstream implements Translator.
func (t *TraceTranslator) CompileUpstream(src graph.PinRef) ValueHandle {
	h := t.alloc()
	t.record("compile_upstream %s -> v%d", src, h)
	return h
}

// GetConstant implements Translator.
func (t *TraceTranslator) GetConstant(c Constant) ValueHandle {
	h := t.alloc()
	t.record("get_constant %s = %s -> v%d", c.Var, ir.FormatValue(c.Value), h)
	return h
}

// EmitCall implements Translator.
func (t *TraceTranslator) EmitCall(site graph.NodeID, inputs []ValueHandle) []ValueHandle {
	parts := make([]string, len(inputs))
	for i, in := range inputs {
		if in == InvalidValue {
			parts[i] = "_"
		} else {
			parts[i] = fmt.Sprintf("v%d", in)
		}
	}

	outCount := 0
	name := fmt.Sprintf("node%d", site)
	if n := t.g.Node(site); n != nil {
		outCount = len(n.Out)
		if n.Kind == graph.KindCallSite {
			name = n.Call.DisplayName
		}
	}
	outs := make([]ValueHandle, outCount)
	outParts := make([]string, outCount)
	for i := range outs {
		outs[i] = t.alloc()
		outParts[i] = fmt.Sprintf("v%d", outs[i])
	}
	t.record("emit_call %q inputs=[%s] -> [%s]", name, strings.Join(parts, ","), strings.Join(outParts, ","))
	return outs
}

// ReportError implements Translator.
func (t *TraceTranslator) ReportError(msg string, site graph.NodeID, slot string) {
	if slot != "" {
		t.record("error %d/%s: %s", site, slot, msg)
		return
	}
	t.record("error %d: %s", site, msg)
}

// ReportWarning implements Translator.
func (t *TraceTranslator) ReportWarning(msg string, site graph.NodeID, slot string) {
	if slot != "" {
		t.record("warning %d/%s: %s", site, slot, msg)
		return
	}
	t.record("warning %d: %s", site, msg)
}
