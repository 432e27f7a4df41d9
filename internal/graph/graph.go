package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/zclconf/go-cty/cty"

	"github.com/emberfx/graphc/internal/ir"
)

// Status carries the deprecation/experimental flags of a callable.
type Status struct {
	Deprecated         bool
	DeprecationMessage string
	Replacement        string // suggested replacement identity path

	Experimental        bool
	ExperimentalMessage string
}

// SwitchDecl declares one static-switch parameter of a graph: a
// compile-time discriminant that selects among structurally different
// sub-paths of the body.
type SwitchDecl struct {
	Var     ir.Variable
	Default cty.Value
}

// Graph is one node graph: a callable body plus its declarations.
//
// Graphs are created by the authoring/storage layer and outlive the
// call sites that reference them. ChangeID is bumped on every
// structural edit; call sites cache the last ChangeID they synchronized
// against to detect staleness.
type Graph struct {
	Name     string
	Identity string // storage path of the containing package/unit
	ChangeID uuid.UUID
	Status   Status
	Switches []SwitchDecl

	nodes []*Node
}

// New creates an empty graph with a fresh change ID.
func New(name, identity string) *Graph {
	return &Graph{
		Name:     name,
		Identity: identity,
		ChangeID: uuid.Must(uuid.NewV7()),
	}
}

// Touch bumps the change ID. Every mutating method calls this; callers
// composing multiple edits only pay for staleness detection, not for
// any eager recompilation.
func (g *Graph) Touch() {
	g.ChangeID = uuid.Must(uuid.NewV7())
}

func (g *Graph) add(n *Node) NodeID {
	n.ID = NodeID(len(g.nodes))
	n.Enabled = true
	g.nodes = append(g.nodes, n)
	g.Touch()
	return n.ID
}

// Node returns the node with the given ID, or nil when out of range.
func (g *Graph) Node(id NodeID) *Node {
	if id < 0 || int(id) >= len(g.nodes) {
		return nil
	}
	return g.nodes[id]
}

// Nodes returns the arena in ID order. The slice must not be mutated.
func (g *Graph) Nodes() []*Node {
	return g.nodes
}

// AddInput declares a graph input (or inserts a discovered contextual
// symbol source). The node exposes one output pin of the input's type.
func (g *Graph) AddInput(decl InputDecl) NodeID {
	d := decl
	return g.add(&Node{
		Kind:  KindInput,
		Input: &d,
		Out:   []Pin{{Var: d.Var}},
	})
}

// AddOutput declares the terminal output contract for one usage kind.
// The contract's variables become linkable input pins on the node.
func (g *Graph) AddOutput(usage ir.UsageKind, vars []ir.Variable) NodeID {
	pins := make([]Pin, len(vars))
	for i, v := range vars {
		pins[i] = Pin{Var: v}
	}
	return g.add(&Node{
		Kind:  KindOutput,
		Usage: usage,
		In:    pins,
	})
}

// AddReroute inserts a pass-through identity node of the given type.
func (g *Graph) AddReroute(ty cty.Type) NodeID {
	v := ir.Var("value", ty)
	return g.add(&Node{
		Kind: KindReroute,
		In:   []Pin{{Var: v}},
		Out:  []Pin{{Var: v}},
	})
}

// AddSwitch inserts a compile-time branch selector. Each branch is an
// input pin named by the formatted discriminant value it serves.
func (g *Graph) AddSwitch(selector ir.Variable, outType cty.Type, branches []string) NodeID {
	pins := make([]Pin, len(branches))
	for i, b := range branches {
		pins[i] = Pin{Var: ir.Var(b, outType)}
	}
	sel := selector
	return g.add(&Node{
		Kind:     KindSwitch,
		Selector: &sel,
		In:       pins,
		Out:      []Pin{{Var: ir.Var("value", outType)}},
	})
}

// AddCallSite inserts a call-site node referencing the given callable
// and synchronizes its pins against the callable's declarations.
// A nil callable produces an unresolved call site (hard diagnostic at
// compile time).
func (g *Graph) AddCallSite(path string, c Callable) NodeID {
	id := g.add(&Node{
		Kind: KindCallSite,
		Call: &CallSite{
			CallablePath: path,
			Callable:     c,
			Specifiers:   map[string]string{},
		},
	})
	g.SyncCallPins(id)
	g.ComputeCallName(id, "", false)
	return id
}

// SetEnabled administratively turns a node on or off.
func (g *Graph) SetEnabled(id NodeID, enabled bool) {
	if n := g.Node(id); n != nil && n.Enabled != enabled {
		n.Enabled = enabled
		g.Touch()
	}
}

// Pin resolves a pin reference against the arena, or nil.
func (g *Graph) Pin(ref PinRef) *Pin {
	n := g.Node(ref.Node)
	if n == nil {
		return nil
	}
	return n.Pin(ref)
}

// Link connects an output pin to an input pin. The receiving pin holds
// the link; an existing link on it is replaced.
func (g *Graph) Link(from, to PinRef) error {
	if from.Dir != Out || to.Dir != In {
		return fmt.Errorf("link must run output to input, got %s -> %s", from, to)
	}
	src := g.Pin(from)
	dst := g.Pin(to)
	if src == nil || dst == nil {
		return fmt.Errorf("link %s -> %s references a missing pin", from, to)
	}
	if dst.NotConnectable {
		return fmt.Errorf("pin %s (%s) is not connectable", to, dst.Var.Name)
	}
	if !src.Var.Type.Equals(dst.Var.Type) {
		return fmt.Errorf("link %s -> %s: type mismatch %s vs %s",
			from, to, ir.TypeName(src.Var.Type), ir.TypeName(dst.Var.Type))
	}
	f := from
	dst.Link = &f
	g.Touch()
	return nil
}

// Unlink removes the upstream link of an input pin, if any.
func (g *Graph) Unlink(to PinRef) {
	if p := g.Pin(to); p != nil && p.Link != nil {
		p.Link = nil
		g.Touch()
	}
}

// TraceOutput walks from an output pin through any reroute nodes to the
// true producing output. A reroute with an unlinked input terminates
// the trace at the reroute itself.
func (g *Graph) TraceOutput(ref PinRef) PinRef {
	for {
		n := g.Node(ref.Node)
		if n == nil || n.Kind != KindReroute || len(n.In) == 0 || n.In[0].Link == nil {
			return ref
		}
		ref = *n.In[0].Link
	}
}

// InputNodes returns the graph's input-declaration nodes sorted by name
// and deduplicated by variable equivalence (first occurrence wins).
// Only parameter inputs participate; attribute and system-constant
// nodes inserted by auto-binding are value sources, not declarations.
func (g *Graph) InputNodes() []*Node {
	var inputs []*Node
	for _, n := range g.nodes {
		if n.Kind == KindInput && n.Input.Kind == InputParameter {
			dup := false
			for _, seen := range inputs {
				if seen.Input.Var.Equivalent(n.Input.Var) {
					dup = true
					break
				}
			}
			if !dup {
				inputs = append(inputs, n)
			}
		}
	}
	sort.SliceStable(inputs, func(i, j int) bool {
		return strings.ToLower(inputs[i].Input.Var.Name) < strings.ToLower(inputs[j].Input.Var.Name)
	})
	return inputs
}

// InputDecls returns the declared inputs in resolution order.
func (g *Graph) InputDecls() []InputDecl {
	nodes := g.InputNodes()
	decls := make([]InputDecl, len(nodes))
	for i, n := range nodes {
		decls[i] = *n.Input
	}
	return decls
}

// OutputNode returns the terminal output contract for a usage kind, or
// nil when the graph does not support it.
func (g *Graph) OutputNode(usage ir.UsageKind) *Node {
	for _, n := range g.nodes {
		if n.Kind == KindOutput && n.Usage == usage {
			return n
		}
	}
	return nil
}

// PreferredOutputNode selects the callee output contract in the fixed
// preference order used when recursing into a body.
func (g *Graph) PreferredOutputNode() *Node {
	for _, usage := range ir.CalleeUsagePreference {
		if n := g.OutputNode(usage); n != nil {
			return n
		}
	}
	return nil
}

// SupportedUsages lists the usage kinds this graph has an output
// contract for, in stable declaration order.
func (g *Graph) SupportedUsages() []ir.UsageKind {
	var usages []ir.UsageKind
	for _, usage := range ir.AllUsageKinds {
		if g.OutputNode(usage) != nil {
			usages = append(usages, usage)
		}
	}
	return usages
}

// FindStaticSwitch returns the declared switch equivalent to v, or nil.
func (g *Graph) FindStaticSwitch(v ir.Variable) *SwitchDecl {
	for i := range g.Switches {
		if g.Switches[i].Var.Equivalent(v) {
			return &g.Switches[i]
		}
	}
	return nil
}

// CallSites returns all call-site nodes in ID order.
func (g *Graph) CallSites() []*Node {
	var sites []*Node
	for _, n := range g.nodes {
		if n.Kind == KindCallSite {
			sites = append(sites, n)
		}
	}
	return sites
}
