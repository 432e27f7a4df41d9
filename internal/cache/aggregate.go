// Package cache provides dependency-hash aggregation for cache-key
// construction and the SQLite-backed artifact cache that consumes the
// resulting keys.
package cache

import (
	"github.com/emberfx/graphc/internal/graph"
	"github.com/emberfx/graphc/internal/ir"
)

// Aggregate walks the transitive callee set of a callable, collecting
// a (usage-kind, content-hash, identity-path) triple for every usage
// kind each referenced graph supports.
//
// The result is ordered but deduplicated by identity path: the first
// occurrence wins, so diamond dependencies collapse to a single entry
// and the sequence is stable across repeated calls. Two compiles with
// identical aggregated sequences may safely reuse a cached artifact.
func Aggregate(c graph.Callable, usage ir.UsageKind) []ir.DependencyHash {
	switch callee := c.(type) {
	case *graph.Graph:
		seen := make(map[string]bool)
		var out []ir.DependencyHash
		aggregateGraph(callee, seen, &out)
		return out

	case *graph.Signature:
		return []ir.DependencyHash{{
			Usage:    usage,
			Identity: "signature:" + callee.Name,
			Hash:     graph.SignatureHash(callee),
		}}

	default:
		return nil
	}
}

func aggregateGraph(g *graph.Graph, seen map[string]bool, out *[]ir.DependencyHash) {
	if seen[g.Identity] {
		return
	}
	seen[g.Identity] = true

	// The referencing caller doesn't know which usage kind it will
	// consume, so every supported contract contributes.
	for _, usage := range g.SupportedUsages() {
		*out = append(*out, ir.DependencyHash{
			Usage:    usage,
			Identity: g.Identity,
			Hash:     g.ContentHash(usage),
		})
	}

	for _, site := range g.CallSites() {
		switch callee := site.Call.Callable.(type) {
		case *graph.Graph:
			aggregateGraph(callee, seen, out)
		case *graph.Signature:
			id := "signature:" + callee.Name
			if !seen[id] {
				seen[id] = true
				*out = append(*out, ir.DependencyHash{
					Usage:    ir.UsageFunction,
					Identity: id,
					Hash:     graph.SignatureHash(callee),
				})
			}
		}
	}
}

// Key folds an aggregated sequence into a single cache key. Equal
// sequences (order and content) produce equal keys.
func Key(deps []ir.DependencyHash) ir.Hash {
	fields := make([]string, 0, len(deps)*3)
	for _, d := range deps {
		fields = append(fields, d.Usage.String(), d.Identity, string(d.Hash))
	}
	return ir.HashFields(ir.DomainCacheKey, fields...)
}
