package graph

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/zclconf/go-cty/cty"

	"github.com/emberfx/graphc/internal/ir"
)

// ContentHash computes the content hash of this graph for one usage
// kind. Two graphs with identical declarations, switches, and body
// structure hash identically; any structural edit changes the hash.
// The usage kind participates so a graph's module and function
// artifacts invalidate independently.
func (g *Graph) ContentHash(usage ir.UsageKind) ir.Hash {
	fields := []string{g.Name, g.Identity, usage.String()}
	for _, sw := range g.Switches {
		fields = append(fields, "switch", sw.Var.String(), ir.FormatValue(sw.Default))
	}
	for _, decl := range g.InputDecls() {
		fields = append(fields, "input", describeDecl(decl))
	}
	for _, n := range g.nodes {
		fields = append(fields, describeNode(n))
	}
	return ir.HashFields(ir.DomainGraph, fields...)
}

// SignatureHash computes the content hash of a built-in signature
// declaration.
func SignatureHash(s *Signature) ir.Hash {
	fields := []string{s.Name, strconv.FormatBool(s.RequiresExecPin)}
	for _, decl := range s.Inputs {
		fields = append(fields, "input", describeDecl(decl))
	}
	for _, v := range s.Outputs {
		fields = append(fields, "output", v.String())
	}
	// Specifier defaults are declaration content: intrinsics compile
	// differently under different specifier values.
	for _, k := range sortedKeys(s.Specifiers) {
		fields = append(fields, "specifier", k, s.Specifiers[k])
	}
	return ir.HashFields(ir.DomainSignature, fields...)
}

// NodeCompileHash computes the node-level compile hash. For call sites
// the resolved display name is folded in: generated symbol names depend
// on it, so renaming a call site must invalidate caches that depend on
// name-sensitive output without touching unrelated siblings.
func (g *Graph) NodeCompileHash(id NodeID) ir.Hash {
	n := g.Node(id)
	if n == nil {
		return ir.HashFields(ir.DomainNode, "missing", strconv.Itoa(int(id)))
	}
	fields := []string{n.Kind.String(), strconv.FormatBool(n.Enabled), describeNode(n)}
	if n.Kind == KindCallSite {
		fields = append(fields, n.Call.CallablePath, n.Call.DisplayName)
		for _, k := range sortedKeys(n.Call.Specifiers) {
			fields = append(fields, "specifier", k, n.Call.Specifiers[k])
		}
	}
	return ir.HashFields(ir.DomainNode, fields...)
}

func describeDecl(d InputDecl) string {
	def := ""
	if d.Default != cty.NilVal {
		def = ir.FormatValue(d.Default)
	}
	return fmt.Sprintf("%s|%s|req=%t|exp=%t|hid=%t|auto=%t|def=%s",
		d.Var.String(), d.Kind, d.Required, d.Exposed, d.Hidden, d.CanAutoBind, def)
}

func describeNode(n *Node) string {
	desc := fmt.Sprintf("%d:%s", n.ID, n.Kind)
	switch n.Kind {
	case KindInput:
		desc += ":" + describeDecl(*n.Input)
	case KindOutput:
		desc += ":" + n.Usage.String()
	case KindSwitch:
		desc += ":" + n.Selector.String()
	}
	for i := range n.In {
		p := &n.In[i]
		desc += fmt.Sprintf("|in[%d]=%s", i, p.Var.String())
		if p.Link != nil {
			desc += "<-" + p.Link.String()
		} else if p.Default != cty.NilVal && !p.DefaultIgnored {
			desc += "=" + ir.FormatValue(p.Default)
		}
	}
	for i := range n.Out {
		desc += fmt.Sprintf("|out[%d]=%s", i, n.Out[i].Var.String())
	}
	return desc
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
