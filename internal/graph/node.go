package graph

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"

	"github.com/emberfx/graphc/internal/ir"
)

// NodeID indexes a node within its owning Graph's arena.
type NodeID int

// InvalidNode is the out-of-band node index.
const InvalidNode NodeID = -1

// PinDir distinguishes input from output pins.
type PinDir int

const (
	// In pins receive values; each holds at most one upstream link.
	In PinDir = iota
	// Out pins produce values; fan-out is implicit (links live on the
	// receiving side only).
	Out
)

// PinRef addresses a single pin without an owning pointer.
type PinRef struct {
	Node  NodeID
	Dir   PinDir
	Index int
}

func (r PinRef) String() string {
	dir := "in"
	if r.Dir == Out {
		dir = "out"
	}
	return fmt.Sprintf("%d.%s[%d]", r.Node, dir, r.Index)
}

// Pin is one typed slot on a node.
type Pin struct {
	Var ir.Variable

	// Link is the upstream output this input pin is connected to.
	// Always nil on output pins.
	Link *PinRef

	// Default is the inline literal used when the pin is unlinked.
	// cty.NilVal when the pin carries no literal.
	Default cty.Value

	// DefaultIgnored marks pins whose inline literal must not be used:
	// outputs, capsule-typed or optional inputs, and switch pins whose
	// value is propagated from an outer scope.
	DefaultIgnored bool

	// NotConnectable forbids links entirely. Static-switch pins are
	// never linkable.
	NotConnectable bool

	// Advanced hides the pin in the collapsed node view.
	Advanced bool

	// Switch marks a static-switch pin on a call site.
	Switch bool
}

// NodeKind discriminates the node payloads.
type NodeKind int

const (
	// KindInput declares a graph input (or a discovered contextual
	// symbol inserted by auto-binding).
	KindInput NodeKind = iota
	// KindOutput is a terminal output contract for one usage kind.
	KindOutput
	// KindCallSite invokes a callable.
	KindCallSite
	// KindReroute is a pass-through identity node; link tracing walks
	// straight through it.
	KindReroute
	// KindSwitch selects one of its input branches from a static-switch
	// constant at compile time.
	KindSwitch
)

var nodeKindNames = map[NodeKind]string{
	KindInput:    "input",
	KindOutput:   "output",
	KindCallSite: "call",
	KindReroute:  "reroute",
	KindSwitch:   "switch",
}

func (k NodeKind) String() string {
	if name, ok := nodeKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// InputKind records how an input node sources its value.
type InputKind int

const (
	// InputParameter is a regular declared parameter.
	InputParameter InputKind = iota
	// InputAttribute reads an attribute of the enclosing executable
	// context (spawn/update output contract).
	InputAttribute
	// InputSystemConstant reads an engine-wide read-only value.
	InputSystemConstant
)

func (k InputKind) String() string {
	switch k {
	case InputAttribute:
		return "attribute"
	case InputSystemConstant:
		return "system_constant"
	default:
		return "parameter"
	}
}

// InputDecl describes one declared input of a callable.
type InputDecl struct {
	Var         ir.Variable
	Kind        InputKind
	Exposed     bool
	Required    bool
	Hidden      bool
	CanAutoBind bool
	Default     cty.Value
}

// AllowsInlineDefault reports whether a caller-facing slot for this
// input may carry an inline literal. Only required, non-capsule inputs
// qualify; everything else either links, auto-binds, or falls back to
// the callee's own internal default.
func (d InputDecl) AllowsInlineDefault() bool {
	return d.Required && !d.Var.Type.IsCapsuleType()
}

// Node is one arena entry. Exactly one payload field is set, matching
// Kind; the rest are nil (or zero for Usage).
type Node struct {
	ID      NodeID
	Kind    NodeKind
	Enabled bool
	In      []Pin
	Out     []Pin

	Input    *InputDecl   // KindInput
	Usage    ir.UsageKind // KindOutput
	Call     *CallSite    // KindCallSite
	Selector *ir.Variable // KindSwitch
}

// Pin returns the addressed pin, or nil when the reference is out of
// range for this node.
func (n *Node) Pin(ref PinRef) *Pin {
	if ref.Node != n.ID {
		return nil
	}
	pins := n.In
	if ref.Dir == Out {
		pins = n.Out
	}
	if ref.Index < 0 || ref.Index >= len(pins) {
		return nil
	}
	return &pins[ref.Index]
}

// FindInput returns the index of the first input pin equivalent to v,
// or -1 when none matches.
func (n *Node) FindInput(v ir.Variable) int {
	for i := range n.In {
		if n.In[i].Var.Equivalent(v) {
			return i
		}
	}
	return -1
}

// FindOutput returns the index of the first output pin equivalent to v,
// or -1 when none matches.
func (n *Node) FindOutput(v ir.Variable) int {
	for i := range n.Out {
		if n.Out[i].Var.Equivalent(v) {
			return i
		}
	}
	return -1
}

// SelectBranch picks the input pin of a switch node matching the given
// discriminant value. Branch pins are named by the formatted constant.
func (n *Node) SelectBranch(val cty.Value) (int, error) {
	if n.Kind != KindSwitch {
		return -1, fmt.Errorf("node %d is not a switch node", n.ID)
	}
	want := ir.FormatValue(val)
	for i := range n.In {
		if n.In[i].Var.Name == want {
			return i, nil
		}
	}
	return -1, fmt.Errorf("switch node %d has no branch for %s=%s", n.ID, n.Selector.Name, want)
}
