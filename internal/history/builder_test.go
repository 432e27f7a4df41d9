package history

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/emberfx/graphc/internal/graph"
	"github.com/emberfx/graphc/internal/ir"
	"github.com/emberfx/graphc/internal/testutil"
)

// linkExec wires the caller's update output contract to a chain of
// call sites, threading the Exec flow through each.
func linkExecChain(t *testing.T, caller *graph.Graph, sites ...graph.NodeID) {
	t.Helper()
	out := caller.OutputNode(ir.UsageUpdate)
	require.NotNil(t, out)

	execVar := ir.Var("Exec", ir.FlowType)
	prev := graph.PinRef{}
	havePrev := false
	for _, site := range sites {
		n := caller.Node(site)
		if havePrev {
			idx := n.FindInput(execVar)
			require.GreaterOrEqual(t, idx, 0)
			require.NoError(t, caller.Link(prev, graph.PinRef{Node: site, Dir: graph.In, Index: idx}))
		}
		outIdx := n.FindOutput(execVar)
		require.GreaterOrEqual(t, outIdx, 0)
		prev = graph.PinRef{Node: site, Dir: graph.Out, Index: outIdx}
		havePrev = true
	}
	require.NoError(t, caller.Link(prev, graph.PinRef{Node: out.ID, Dir: graph.In, Index: 0}))
}

func TestBuildSingleCallSite(t *testing.T) {
	callee := testutil.FlowModule("Integrate", "modules/integrate")
	caller := testutil.FlowEmitter()
	site := caller.AddCallSite(callee.Identity, callee)
	linkExecChain(t, caller, site)

	hist, err := NewBuilder().Build(caller, ir.UsageUpdate)
	require.NoError(t, err)

	require.Len(t, hist.Scopes, 2)
	root := hist.Scopes[0]
	assert.Equal(t, "FlowEmitter", root.Name)
	assert.Equal(t, -1, root.Parent)
	assert.Equal(t, StateExited, root.State)

	child := hist.Scopes[1]
	assert.Equal(t, "Integrate", child.Name)
	assert.Equal(t, 0, child.Parent)
	assert.Equal(t, StateExited, child.State)
}

func TestBuildPairsOutputsAgainstCallerScope(t *testing.T) {
	callee := testutil.FlowModule("Integrate", "modules/integrate")
	caller := testutil.FlowEmitter()
	site := caller.AddCallSite(callee.Identity, callee)
	linkExecChain(t, caller, site)

	hist, err := NewBuilder().Build(caller, ir.UsageUpdate)
	require.NoError(t, err)

	require.Len(t, hist.Pairings, 1)
	p := hist.Pairings[0]
	assert.Equal(t, 0, p.Scope, "pairings are registered against the caller frame, never the child")
	assert.Equal(t, site, p.CallerPin.Node)
	assert.Equal(t, graph.Out, p.CallerPin.Dir)
}

func TestBuildChainAttributesProducers(t *testing.T) {
	first := testutil.FlowModule("First", "modules/first")
	second := testutil.FlowModule("Second", "modules/second")
	caller := testutil.FlowEmitter()
	a := caller.AddCallSite(first.Identity, first)
	b := caller.AddCallSite(second.Identity, second)
	linkExecChain(t, caller, a, b)

	hist, err := NewBuilder().Build(caller, ir.UsageUpdate)
	require.NoError(t, err)
	require.Len(t, hist.Scopes, 3)

	// Traversal is upstream from the output contract: Second first.
	assert.Equal(t, "Second", hist.Scopes[1].Name)
	assert.Equal(t, "First", hist.Scopes[2].Name)

	// First has no upstream producer; Second's flow comes from First's
	// call site, which is paired after First's frame exits, so at
	// Second's entry the producer is still the enclosing frame.
	assert.Equal(t, 0, hist.Scopes[1].Producer)
	assert.Equal(t, -1, hist.Scopes[2].Producer)
}

func TestBuildDisabledCallSiteRoutesAround(t *testing.T) {
	callee := testutil.FlowModule("Integrate", "modules/integrate")
	caller := testutil.FlowEmitter()
	site := caller.AddCallSite(callee.Identity, callee)
	linkExecChain(t, caller, site)
	caller.SetEnabled(site, false)

	hist, err := NewBuilder(WithIgnoreDisabled(true)).Build(caller, ir.UsageUpdate)
	require.NoError(t, err)

	require.Len(t, hist.Scopes, 1, "no scope for a disabled call site")
	require.Len(t, hist.PassThroughs, 1)
	pt := hist.PassThroughs[0]
	assert.Equal(t, site, pt.Node)
	assert.Equal(t, graph.In, pt.In.Dir)
	assert.Equal(t, graph.Out, pt.Out.Dir)
}

func TestBuildDisabledCallSiteEnteredWhenNotIgnoring(t *testing.T) {
	callee := testutil.FlowModule("Integrate", "modules/integrate")
	caller := testutil.FlowEmitter()
	site := caller.AddCallSite(callee.Identity, callee)
	linkExecChain(t, caller, site)
	caller.SetEnabled(site, false)

	hist, err := NewBuilder().Build(caller, ir.UsageUpdate)
	require.NoError(t, err)
	assert.Len(t, hist.Scopes, 2)
}

func TestBuildExecSignatureRoutesAround(t *testing.T) {
	sig := &graph.Signature{
		Name:            "Intrinsic",
		RequiresExecPin: true,
	}
	caller := testutil.FlowEmitter()
	site := caller.AddCallSite("signature:Intrinsic", sig)
	linkExecChain(t, caller, site)

	hist, err := NewBuilder().Build(caller, ir.UsageUpdate)
	require.NoError(t, err)

	assert.Len(t, hist.Scopes, 1, "exec-pin signatures contribute no scope")
	assert.Len(t, hist.PassThroughs, 1)
}

func TestBuildSwitchFollowsSelectedBranchOnly(t *testing.T) {
	// Outer branches on a resolved static switch; only the selected
	// branch's call site gets a frame.
	low := testutil.FlowModule("Low", "modules/low")
	high := testutil.FlowModule("High", "modules/high")

	outer := testutil.FlowModule("Outer", "modules/outer")
	outer.Switches = append(outer.Switches, graph.SwitchDecl{
		Var:     ir.Var("Quality", cty.String),
		Default: cty.StringVal("low"),
	})
	a := outer.AddCallSite(low.Identity, low)
	b := outer.AddCallSite(high.Identity, high)
	sw := outer.AddSwitch(ir.Var("Quality", cty.String), ir.FlowType, []string{"low", "high"})
	out := outer.OutputNode(ir.UsageModule)

	execVar := ir.Var("Exec", ir.FlowType)
	for i, site := range []graph.NodeID{a, b} {
		n := outer.Node(site)
		require.NoError(t, outer.Link(
			graph.PinRef{Node: site, Dir: graph.Out, Index: n.FindOutput(execVar)},
			graph.PinRef{Node: sw, Dir: graph.In, Index: i},
		))
	}
	outer.Unlink(graph.PinRef{Node: out.ID, Dir: graph.In, Index: 0})
	require.NoError(t, outer.Link(
		graph.PinRef{Node: sw, Dir: graph.Out, Index: 0},
		graph.PinRef{Node: out.ID, Dir: graph.In, Index: 0},
	))

	caller := testutil.FlowEmitter()
	site := caller.AddCallSite(outer.Identity, outer)
	linkExecChain(t, caller, site)

	hist, err := NewBuilder().Build(caller, ir.UsageUpdate)
	require.NoError(t, err)

	require.Len(t, hist.Scopes, 3)
	assert.Equal(t, "Outer", hist.Scopes[1].Name)
	assert.Equal(t, cty.StringVal("low"), hist.Scopes[1].Switches["Quality"])
	assert.Equal(t, "Low", hist.Scopes[2].Name, "unselected branch contributes no frame")
}

func TestBuildReportsCycleAsInternalError(t *testing.T) {
	// Force a cycle by hand; insertion-time rejection normally makes
	// this impossible.
	a := testutil.FlowModule("A", "modules/a")
	b := testutil.FlowModule("B", "modules/b")

	wire := func(caller, callee *graph.Graph) {
		site := caller.AddCallSite(callee.Identity, callee)
		execVar := ir.Var("Exec", ir.FlowType)
		n := caller.Node(site)
		out := caller.OutputNode(ir.UsageModule)
		caller.Unlink(graph.PinRef{Node: out.ID, Dir: graph.In, Index: 0})
		require.NoError(t, caller.Link(
			graph.PinRef{Node: site, Dir: graph.Out, Index: n.FindOutput(execVar)},
			graph.PinRef{Node: out.ID, Dir: graph.In, Index: 0},
		))
	}
	wire(a, b)
	wire(b, a)

	_, err := NewBuilder().Build(a, ir.UsageModule)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reference cycle")
}

func TestScopeAdvanceRejectsSkippedStates(t *testing.T) {
	s := &Scope{State: StateNotEntered}
	require.NoError(t, s.advance(StateEntered))
	assert.Error(t, s.advance(StateExited), "states cannot be skipped")
	require.NoError(t, s.advance(StateOutputsProduced))
}
