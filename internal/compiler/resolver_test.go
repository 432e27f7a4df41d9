package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/emberfx/graphc/internal/env"
	"github.com/emberfx/graphc/internal/graph"
	"github.com/emberfx/graphc/internal/ir"
	"github.com/emberfx/graphc/internal/testutil"
)

func newTestCompiler(constants *env.Registry) *Compiler {
	if constants == nil {
		constants = env.NewRegistry()
	}
	return New(nil, constants)
}

func bindingFor(t *testing.T, res *Result, name string) Binding {
	t.Helper()
	for _, in := range res.Inputs {
		if in.Decl.Var.Name == name {
			return in.Binding
		}
	}
	t.Fatalf("no resolved input named %q", name)
	return nil
}

func TestInlineDefaultFallback(t *testing.T) {
	callee := graph.New("Drag", "modules/drag")
	sp := callee.AddInput(graph.InputDecl{
		Var:      ir.Var("Strength", cty.Number),
		Exposed:  true,
		Required: true,
		Default:  cty.NumberFloatVal(2.5),
	})
	out := callee.AddOutput(ir.UsageModule, []ir.Variable{ir.Var("Strength", cty.Number)})
	require.NoError(t, callee.Link(
		graph.PinRef{Node: sp, Dir: graph.Out, Index: 0},
		graph.PinRef{Node: out, Dir: graph.In, Index: 0},
	))

	caller := graph.New("caller", "pkg/caller")
	site := caller.AddCallSite(callee.Identity, callee)

	c := newTestCompiler(nil)
	res, err := c.CompileCallSite(NewTraceTranslator(caller), caller, site)
	require.NoError(t, err)
	require.False(t, res.Diags.HasErrors())

	b := bindingFor(t, res, "Strength")
	require.IsType(t, InlineDefault{}, b)
	assert.Equal(t, cty.NumberFloatVal(2.5), b.(InlineDefault).Value)
	assert.True(t, res.Emitted())
}

func TestRequiredInputUnboundResolvesSiblings(t *testing.T) {
	callee := graph.New("Integrate", "modules/integrate")
	ex := callee.AddInput(graph.InputDecl{Var: ir.Var("Exec", ir.FlowType), Exposed: true, Required: true})
	sc := callee.AddInput(graph.InputDecl{Var: ir.Var("Scale", cty.Number), Exposed: true, Required: true, Default: cty.NumberFloatVal(1.0)})
	out := callee.AddOutput(ir.UsageModule, []ir.Variable{
		ir.Var("Exec", ir.FlowType),
		ir.Var("Scale", cty.Number),
	})
	require.NoError(t, callee.Link(graph.PinRef{Node: ex, Dir: graph.Out, Index: 0}, graph.PinRef{Node: out, Dir: graph.In, Index: 0}))
	require.NoError(t, callee.Link(graph.PinRef{Node: sc, Dir: graph.Out, Index: 0}, graph.PinRef{Node: out, Dir: graph.In, Index: 1}))

	caller := graph.New("caller", "pkg/caller")
	site := caller.AddCallSite(callee.Identity, callee)

	c := newTestCompiler(nil)
	res, err := c.CompileCallSite(NewTraceTranslator(caller), caller, site)
	require.NoError(t, err)

	errs := res.Diags.Errors()
	require.Len(t, errs, 1, "exactly one diagnostic for the unbound slot")
	assert.Equal(t, CodeRequiredInputUnbound, errs[0].Code)
	assert.Equal(t, "Exec", errs[0].Slot)

	// The sibling still resolved.
	b := bindingFor(t, res, "Scale")
	require.IsType(t, InlineDefault{}, b)
	assert.Equal(t, cty.NumberFloatVal(1.0), b.(InlineDefault).Value)

	assert.False(t, res.Emitted(), "a fatal diagnostic suppresses emission")
}

func TestAutoBindPrefersAttributeOverSystemConstant(t *testing.T) {
	callee := testutil.VelocityModule()
	caller := testutil.Emitter(ir.Var("Velocity", ir.VectorType))
	site := caller.AddCallSite(callee.Identity, callee)

	// The registry also knows a Velocity constant; the attribute must
	// win the tie-break.
	constants := env.NewRegistry(ir.Var("Velocity", ir.VectorType))

	c := newTestCompiler(constants)
	res, err := c.CompileCallSite(NewTraceTranslator(caller), caller, site)
	require.NoError(t, err)
	require.False(t, res.Diags.HasErrors())

	b := bindingFor(t, res, "Velocity")
	require.IsType(t, AutoBound{}, b)
	assert.Equal(t, SymbolAttribute, b.(AutoBound).Kind)
	assert.Equal(t, "Velocity", b.(AutoBound).Var.Name)
}

func TestAutoBindFallsBackToSystemConstant(t *testing.T) {
	callee := graph.New("Age", "modules/age")
	dt := callee.AddInput(graph.InputDecl{
		Var:         ir.Var("Engine.DeltaTime", cty.Number),
		Exposed:     true,
		Required:    true,
		CanAutoBind: true,
	})
	out := callee.AddOutput(ir.UsageModule, []ir.Variable{ir.Var("Engine.DeltaTime", cty.Number)})
	require.NoError(t, callee.Link(graph.PinRef{Node: dt, Dir: graph.Out, Index: 0}, graph.PinRef{Node: out, Dir: graph.In, Index: 0}))

	caller := testutil.Emitter(ir.Var("Position", ir.VectorType))
	site := caller.AddCallSite(callee.Identity, callee)

	c := newTestCompiler(env.Default())
	res, err := c.CompileCallSite(NewTraceTranslator(caller), caller, site)
	require.NoError(t, err)
	require.False(t, res.Diags.HasErrors())

	b := bindingFor(t, res, "Engine.DeltaTime")
	require.IsType(t, AutoBound{}, b)
	assert.Equal(t, SymbolSystemConstant, b.(AutoBound).Kind)
}

func TestAutoBindIdempotent(t *testing.T) {
	callee := testutil.VelocityModule()
	caller := testutil.Emitter(ir.Var("Velocity", ir.VectorType))
	site := caller.AddCallSite(callee.Identity, callee)

	c := newTestCompiler(nil)

	first, err := c.CompileCallSite(NewTraceTranslator(caller), caller, site)
	require.NoError(t, err)
	require.False(t, first.Diags.HasErrors())
	nodesAfterFirst := len(caller.Nodes())

	second, err := c.CompileCallSite(NewTraceTranslator(caller), caller, site)
	require.NoError(t, err)
	require.False(t, second.Diags.HasErrors())

	assert.Equal(t, nodesAfterFirst, len(caller.Nodes()),
		"re-resolution must not duplicate the synthesized source node")

	require.Equal(t, len(first.Inputs), len(second.Inputs))
	for i := range first.Inputs {
		assert.Equal(t, first.Inputs[i].Binding, second.Inputs[i].Binding,
			"binding outcomes are identical across repeat compiles")
	}
}

func TestAutoBindUnavailableIsRequiredInputUnbound(t *testing.T) {
	callee := testutil.VelocityModule()
	// No Velocity attribute on the caller, no matching constant.
	caller := testutil.Emitter(ir.Var("Position", ir.VectorType))
	site := caller.AddCallSite(callee.Identity, callee)

	// Velocity's slot allows an inline default but the declaration
	// carries none; force the unbound path by marking the slot ignored.
	n := caller.Node(site)
	idx := n.FindInput(ir.Var("Velocity", ir.VectorType))
	n.In[idx].DefaultIgnored = true

	c := newTestCompiler(nil)
	res, err := c.CompileCallSite(NewTraceTranslator(caller), caller, site)
	require.NoError(t, err)

	errs := res.Diags.Errors()
	require.Len(t, errs, 1)
	assert.Equal(t, CodeRequiredInputUnbound, errs[0].Code)
	assert.Equal(t, "Velocity", errs[0].Slot)
}

func TestEndToEndVelocityScale(t *testing.T) {
	callee := testutil.VelocityModule()

	t.Run("with enclosing attribute", func(t *testing.T) {
		caller := testutil.Emitter(ir.Var("Velocity", ir.VectorType))
		site := caller.AddCallSite(callee.Identity, callee)

		c := newTestCompiler(nil)
		res, err := c.CompileCallSite(NewTraceTranslator(caller), caller, site)
		require.NoError(t, err)
		require.False(t, res.Diags.HasErrors())

		vel := bindingFor(t, res, "Velocity")
		require.IsType(t, AutoBound{}, vel)
		assert.Equal(t, SymbolAttribute, vel.(AutoBound).Kind)

		scale := bindingFor(t, res, "Scale")
		require.IsType(t, InlineDefault{}, scale)
		assert.Equal(t, cty.NumberFloatVal(1.0), scale.(InlineDefault).Value)
	})

	t.Run("without enclosing attribute", func(t *testing.T) {
		caller := testutil.Emitter(ir.Var("Position", ir.VectorType))
		site := caller.AddCallSite(callee.Identity, callee)
		n := caller.Node(site)
		n.In[n.FindInput(ir.Var("Velocity", ir.VectorType))].DefaultIgnored = true

		c := newTestCompiler(nil)
		res, err := c.CompileCallSite(NewTraceTranslator(caller), caller, site)
		require.NoError(t, err)

		errs := res.Diags.Errors()
		require.Len(t, errs, 1)
		assert.Equal(t, CodeRequiredInputUnbound, errs[0].Code)
		assert.Equal(t, "Velocity", errs[0].Slot)

		scale := bindingFor(t, res, "Scale")
		require.IsType(t, InlineDefault{}, scale)
		assert.Equal(t, cty.NumberFloatVal(1.0), scale.(InlineDefault).Value)
	})
}

func TestStaleCallSiteIsError(t *testing.T) {
	callee := testutil.VelocityModule()
	caller := testutil.Emitter(ir.Var("Velocity", ir.VectorType))
	site := caller.AddCallSite(callee.Identity, callee)

	// A new exposed declaration appears on the callee after the last
	// sync; the call site has no slot for it.
	callee.AddInput(graph.InputDecl{Var: ir.Var("Drag", cty.Number), Exposed: true})

	c := newTestCompiler(nil)
	res, err := c.CompileCallSite(NewTraceTranslator(caller), caller, site)
	require.NoError(t, err)

	errs := res.Diags.Errors()
	require.NotEmpty(t, errs)
	assert.Equal(t, CodeStaleBinding, errs[0].Code)
	assert.Equal(t, "Drag", errs[0].Slot)
	assert.Contains(t, errs[0].Message, "stale")
}

func TestUnexposedRequiredCompilesDeclaredDefault(t *testing.T) {
	callee := graph.New("Noise", "modules/noise")
	seed := callee.AddInput(graph.InputDecl{
		Var:      ir.Var("Seed", cty.Number),
		Exposed:  false,
		Required: true,
		Default:  cty.NumberIntVal(42),
	})
	out := callee.AddOutput(ir.UsageModule, []ir.Variable{ir.Var("Seed", cty.Number)})
	require.NoError(t, callee.Link(graph.PinRef{Node: seed, Dir: graph.Out, Index: 0}, graph.PinRef{Node: out, Dir: graph.In, Index: 0}))

	caller := graph.New("caller", "pkg/caller")
	site := caller.AddCallSite(callee.Identity, callee)

	c := newTestCompiler(nil)
	res, err := c.CompileCallSite(NewTraceTranslator(caller), caller, site)
	require.NoError(t, err)
	require.False(t, res.Diags.HasErrors(), "unexposed required inputs are never an error")

	b := bindingFor(t, res, "Seed")
	require.IsType(t, InlineDefault{}, b)
	assert.Equal(t, cty.NumberIntVal(42), b.(InlineDefault).Value)
}

func TestLinkedBindingTracesReroutes(t *testing.T) {
	callee := testutil.VelocityModule()
	caller := testutil.Emitter(ir.Var("Position", ir.VectorType))

	src := caller.AddInput(graph.InputDecl{Var: ir.Var("Wind", ir.VectorType), Exposed: true})
	reroute := caller.AddReroute(ir.VectorType)
	site := caller.AddCallSite(callee.Identity, callee)

	require.NoError(t, caller.Link(
		graph.PinRef{Node: src, Dir: graph.Out, Index: 0},
		graph.PinRef{Node: reroute, Dir: graph.In, Index: 0},
	))
	velIdx := caller.Node(site).FindInput(ir.Var("Velocity", ir.VectorType))
	require.NoError(t, caller.Link(
		graph.PinRef{Node: reroute, Dir: graph.Out, Index: 0},
		graph.PinRef{Node: site, Dir: graph.In, Index: velIdx},
	))

	c := newTestCompiler(nil)
	res, err := c.CompileCallSite(NewTraceTranslator(caller), caller, site)
	require.NoError(t, err)
	require.False(t, res.Diags.HasErrors())

	b := bindingFor(t, res, "Velocity")
	require.IsType(t, Linked{}, b)
	assert.Equal(t, graph.PinRef{Node: src, Dir: graph.Out, Index: 0}, b.(Linked).Source,
		"the binding records the true producer behind the reroute")
}
