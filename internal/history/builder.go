package history

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"

	"github.com/emberfx/graphc/internal/compiler"
	"github.com/emberfx/graphc/internal/graph"
	"github.com/emberfx/graphc/internal/ir"
)

// Builder runs one traversal. A Builder is single-use: construct,
// Build once, read the History.
type Builder struct {
	ignoreDisabled bool

	hist  *History
	stack []int // indices of active frames, innermost last

	// pinScope attributes producing output pins to the scope that
	// registered them, keyed per graph instance.
	pinScope map[*graph.Graph]map[graph.PinRef]int

	// onStack guards against reference cycles during traversal. One
	// can only exist through internal state corruption; insertion-time
	// rejection makes cycles structurally impossible, so discovering
	// one here is fatal rather than something to loop on.
	onStack map[string]bool
}

// Option configures a Builder.
type Option func(*Builder)

// WithIgnoreDisabled elides administratively disabled call sites,
// routing parameter flow around them instead of entering a scope.
func WithIgnoreDisabled(ignore bool) Option {
	return func(b *Builder) { b.ignoreDisabled = ignore }
}

// NewBuilder creates a Builder.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		hist:     &History{},
		pinScope: make(map[*graph.Graph]map[graph.PinRef]int),
		onStack:  make(map[string]bool),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build traverses the graph's terminal output contract for the given
// usage kind and returns the completed history. The root graph itself
// occupies frame 0.
func (b *Builder) Build(g *graph.Graph, usage ir.UsageKind) (*History, error) {
	out := g.OutputNode(usage)
	if out == nil {
		return nil, fmt.Errorf("graph %s has no output contract for usage %s", g.Identity, usage)
	}

	exit, root, err := b.enterScope(g.Name, g, nil, nil, -1)
	if err != nil {
		return nil, err
	}
	b.onStack[g.Identity] = true
	walkErr := b.walk(g, out.ID, make(map[graph.NodeID]bool))
	delete(b.onStack, g.Identity)
	if advErr := root.advance(StateOutputsProduced); advErr != nil && walkErr == nil {
		walkErr = advErr
	}
	exit()
	if walkErr != nil {
		return nil, walkErr
	}
	return b.hist, nil
}

// enterScope pushes a frame and returns the guaranteed-pop closure.
// The closure must run on every exit path, error or not.
func (b *Builder) enterScope(name string, c graph.Callable, switches map[string]cty.Value, hidden map[string]bool, producer int) (func(), *Scope, error) {
	parent := -1
	if len(b.stack) > 0 {
		parent = b.stack[len(b.stack)-1]
	}
	s := &Scope{
		Index:    len(b.hist.Scopes),
		Name:     name,
		Callable: c,
		Parent:   parent,
		Producer: producer,
		State:    StateNotEntered,
		Switches: switches,
		Hidden:   hidden,
		Cursor:   len(b.hist.Pairings),
	}
	if err := s.advance(StateEntered); err != nil {
		return nil, nil, err
	}
	b.hist.Scopes = append(b.hist.Scopes, s)
	b.stack = append(b.stack, s.Index)

	exited := false
	exit := func() {
		if exited {
			return
		}
		exited = true
		b.stack = b.stack[:len(b.stack)-1]
		s.State = StateExited
	}
	return exit, s, nil
}

func (b *Builder) currentScope() int {
	if len(b.stack) == 0 {
		return -1
	}
	return b.stack[len(b.stack)-1]
}

// walk visits nodes upstream of id within one graph instance. The
// visited set is per traversal path: re-entering the same body through
// a different call site starts a fresh walk with fresh frames.
func (b *Builder) walk(g *graph.Graph, id graph.NodeID, visited map[graph.NodeID]bool) error {
	if visited[id] {
		return nil
	}
	visited[id] = true
	n := g.Node(id)
	if n == nil {
		return nil
	}

	if n.Kind == graph.KindCallSite {
		if err := b.visitCallSite(g, n); err != nil {
			return err
		}
	}

	followAll := true
	if n.Kind == graph.KindSwitch {
		// Under a resolved discriminant only the selected branch is
		// part of the compiled structure.
		if scope := b.hist.ScopeAt(b.currentScope()); scope != nil && scope.Switches != nil {
			if val, ok := scope.Switches[n.Selector.Name]; ok {
				if branch, err := n.SelectBranch(val); err == nil {
					followAll = false
					if link := n.In[branch].Link; link != nil {
						if err := b.walk(g, link.Node, visited); err != nil {
							return err
						}
					}
				}
			}
		}
	}

	if followAll {
		for i := range n.In {
			if link := n.In[i].Link; link != nil {
				if err := b.walk(g, link.Node, visited); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// visitCallSite performs the enter/recurse/exit protocol for one call
// site, or elides it entirely when disabled.
func (b *Builder) visitCallSite(g *graph.Graph, n *graph.Node) error {
	cs := n.Call

	if !n.Enabled && b.ignoreDisabled {
		b.routeAround(g, n)
		return nil
	}

	callee := graph.CalledGraph(cs.Callable)
	if callee == nil {
		// Signatures with an execution-context pin, and unresolved
		// callables, contribute no scope; flow is routed around them.
		if sig, ok := cs.Callable.(*graph.Signature); cs.Callable == nil || (ok && sig.RequiresExecPin) {
			b.routeAround(g, n)
		}
		return nil
	}

	if b.onStack[callee.Identity] {
		return fmt.Errorf("internal: reference cycle through %s discovered during traversal", callee.Identity)
	}

	calleeOut := callee.PreferredOutputNode()
	if calleeOut == nil {
		return fmt.Errorf("callable %s has no terminal output contract", callee.Identity)
	}

	// Attribute the incoming execution-context flow to its producing
	// scope before entering, while the caller context is still live.
	producer := -1
	if idx := flowInputPin(n); idx >= 0 && n.In[idx].Link != nil {
		traced := g.TraceOutput(*n.In[idx].Link)
		producer = b.scopeForPin(g, traced)
	}

	switches := compiler.SwitchConstants(n, callee)
	hidden := compiler.UnusedInputs(callee, switches)

	exit, scope, err := b.enterScope(cs.DisplayName, cs.Callable, switches, hidden, producer)
	if err != nil {
		return err
	}
	b.onStack[callee.Identity] = true

	walkErr := b.walk(callee, calleeOut.ID, make(map[graph.NodeID]bool))

	// Pair callee outputs with caller slots while both contexts are
	// still available; registration happens only after ExitScope so
	// output wiring cannot leak into the child scope's symbol table.
	var pairs []OutputPairing
	if walkErr == nil {
		if walkErr = scope.advance(StateOutputsProduced); walkErr == nil {
			pairs = matchOutputPairs(g, n, callee, calleeOut)
		}
	}

	delete(b.onStack, callee.Identity)
	exit()
	if walkErr != nil {
		return walkErr
	}

	callerScope := b.currentScope()
	for _, p := range pairs {
		p.Scope = callerScope
		b.hist.Pairings = append(b.hist.Pairings, p)
		b.registerPin(g, p.CallerPin, callerScope)
	}
	return nil
}

// routeAround wires a call site's output slots directly to its own
// input slots of matching name+type, with no scope pushed.
func (b *Builder) routeAround(g *graph.Graph, n *graph.Node) {
	for oi := range n.Out {
		if ii := n.FindInput(n.Out[oi].Var); ii >= 0 {
			out := graph.PinRef{Node: n.ID, Dir: graph.Out, Index: oi}
			in := graph.PinRef{Node: n.ID, Dir: graph.In, Index: ii}
			b.hist.PassThroughs = append(b.hist.PassThroughs, PassThrough{Node: n.ID, In: in, Out: out})
			b.registerPin(g, out, b.currentScope())
		}
	}
}

// matchOutputPairs finds, by name+type equivalence, the caller output
// slots fed by the callee's execution-context outputs, tracing each
// callee-side link to its true producer.
func matchOutputPairs(g *graph.Graph, n *graph.Node, callee *graph.Graph, calleeOut *graph.Node) []OutputPairing {
	var pairs []OutputPairing
	for i := range calleeOut.In {
		childPin := &calleeOut.In[i]
		if !childPin.Var.Type.Equals(ir.FlowType) || childPin.Link == nil {
			continue
		}
		for oi := range n.Out {
			if n.Out[oi].Var.Equivalent(childPin.Var) {
				pairs = append(pairs, OutputPairing{
					CallerPin: graph.PinRef{Node: n.ID, Dir: graph.Out, Index: oi},
					Source:    callee.TraceOutput(*childPin.Link),
				})
			}
		}
	}
	return pairs
}

// flowInputPin returns the index of the execution-context input pin,
// or -1.
func flowInputPin(n *graph.Node) int {
	for i := range n.In {
		if n.In[i].Var.Type.Equals(ir.FlowType) {
			return i
		}
	}
	return -1
}

func (b *Builder) registerPin(g *graph.Graph, pin graph.PinRef, scope int) {
	m := b.pinScope[g]
	if m == nil {
		m = make(map[graph.PinRef]int)
		b.pinScope[g] = m
	}
	m[pin] = scope
}

// scopeForPin resolves which scope produced an output pin; pins never
// explicitly registered belong to the scope currently being traversed.
func (b *Builder) scopeForPin(g *graph.Graph, pin graph.PinRef) int {
	if m := b.pinScope[g]; m != nil {
		if idx, ok := m[pin]; ok {
			return idx
		}
	}
	return b.currentScope()
}
