// Package testutil provides canonical graph fixtures shared by the
// compiler, history, and cache tests.
package testutil

import (
	"github.com/zclconf/go-cty/cty"

	"github.com/emberfx/graphc/internal/graph"
	"github.com/emberfx/graphc/internal/ir"
)

// VelocityModule builds the canonical callee: a module graph with a
// required auto-bindable vector input (Velocity) and an optional scalar
// (Scale) carrying a literal default of 1.0. Both inputs feed the
// module output contract so neither is pruned as unused.
func VelocityModule() *graph.Graph {
	g := graph.New("ApplyVelocity", "modules/apply_velocity")
	vel := g.AddInput(graph.InputDecl{
		Var:         ir.Var("Velocity", ir.VectorType),
		Exposed:     true,
		Required:    true,
		CanAutoBind: true,
	})
	scale := g.AddInput(graph.InputDecl{
		Var:     ir.Var("Scale", cty.Number),
		Exposed: true,
		Default: cty.NumberFloatVal(1.0),
	})
	out := g.AddOutput(ir.UsageModule, []ir.Variable{
		ir.Var("Velocity", ir.VectorType),
		ir.Var("Scale", cty.Number),
	})
	mustLink(g, outPin(vel), inPin(out, 0))
	mustLink(g, outPin(scale), inPin(out, 1))
	return g
}

// Emitter builds a caller graph with spawn and update output contracts
// carrying the given attributes. Attributes on the spawn contract are
// auto-bind candidates for call sites placed in this graph.
func Emitter(attrs ...ir.Variable) *graph.Graph {
	g := graph.New("SparksEmitter", "emitters/sparks")
	g.AddOutput(ir.UsageSpawn, attrs)
	g.AddOutput(ir.UsageUpdate, attrs)
	return g
}

// SwitchedModule builds a module whose body branches on a static switch
// (Quality: string, default "low"). Each branch is fed by its own
// exposed input, so the unselected branch's input is prunable.
func SwitchedModule() *graph.Graph {
	g := graph.New("QualityModule", "modules/quality")
	g.Switches = append(g.Switches, graph.SwitchDecl{
		Var:     ir.Var("Quality", cty.String),
		Default: cty.StringVal("low"),
	})
	lo := g.AddInput(graph.InputDecl{Var: ir.Var("LowInput", cty.Number), Exposed: true, Default: cty.NumberIntVal(1)})
	hi := g.AddInput(graph.InputDecl{Var: ir.Var("HighInput", cty.Number), Exposed: true, Default: cty.NumberIntVal(8)})
	sw := g.AddSwitch(ir.Var("Quality", cty.String), cty.Number, []string{"low", "high"})
	out := g.AddOutput(ir.UsageModule, []ir.Variable{ir.Var("Samples", cty.Number)})
	mustLink(g, outPin(lo), inPin(sw, 0))
	mustLink(g, outPin(hi), inPin(sw, 1))
	mustLink(g, graph.PinRef{Node: sw, Dir: graph.Out, Index: 0}, inPin(out, 0))
	return g
}

// FlowModule builds a module whose output contract threads an
// execution-context value: Exec flows in through an exposed input and
// out through the contract, the shape the scope builder pairs on.
func FlowModule(name, identity string) *graph.Graph {
	g := graph.New(name, identity)
	exec := g.AddInput(graph.InputDecl{
		Var:      ir.Var("Exec", ir.FlowType),
		Exposed:  true,
		Required: true,
	})
	out := g.AddOutput(ir.UsageModule, []ir.Variable{ir.Var("Exec", ir.FlowType)})
	mustLink(g, outPin(exec), inPin(out, 0))
	return g
}

// FlowEmitter builds a caller whose update contract consumes an Exec
// flow, ready for a chain of FlowModule call sites.
func FlowEmitter() *graph.Graph {
	g := graph.New("FlowEmitter", "emitters/flow")
	g.AddOutput(ir.UsageUpdate, []ir.Variable{ir.Var("Exec", ir.FlowType)})
	return g
}

// Diamond builds the reference shape A->B, A->C, B->D, C->D used by
// dependency-hash aggregation tests.
func Diamond() (a, b, c, d *graph.Graph) {
	d = leafGraph("D", "lib/d")
	b = leafGraph("B", "lib/b")
	c = leafGraph("C", "lib/c")
	a = leafGraph("A", "lib/a")
	b.AddCallSite(d.Identity, d)
	c.AddCallSite(d.Identity, d)
	a.AddCallSite(b.Identity, b)
	a.AddCallSite(c.Identity, c)
	return a, b, c, d
}

func leafGraph(name, identity string) *graph.Graph {
	g := graph.New(name, identity)
	g.AddOutput(ir.UsageFunction, []ir.Variable{ir.Var("Out", cty.Number)})
	return g
}

func outPin(id graph.NodeID) graph.PinRef {
	return graph.PinRef{Node: id, Dir: graph.Out, Index: 0}
}

func inPin(id graph.NodeID, index int) graph.PinRef {
	return graph.PinRef{Node: id, Dir: graph.In, Index: index}
}

func mustLink(g *graph.Graph, from, to graph.PinRef) {
	if err := g.Link(from, to); err != nil {
		panic(err)
	}
}
