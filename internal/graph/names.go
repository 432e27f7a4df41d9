package graph

import (
	"fmt"
	"strings"
)

// UniqueName returns proposed if it is free, otherwise the first
// "proposed NNN" suffix that is. Comparison ignores case so display
// names stay unambiguous in case-insensitive generated output.
func UniqueName(proposed string, taken map[string]bool) string {
	if !taken[strings.ToLower(proposed)] {
		return proposed
	}
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s %03d", proposed, i)
		if !taken[strings.ToLower(candidate)] {
			return candidate
		}
	}
}

// ComputeCallName recomputes a call site's display name. A suggested
// name is accepted when forced, or when it matches the callable name
// (optionally with a numeric suffix, i.e. a permutation from an earlier
// uniquification). The result is uniquified against sibling call sites.
func (g *Graph) ComputeCallName(id NodeID, suggested string, force bool) {
	n := g.Node(id)
	if n == nil || n.Kind != KindCallSite {
		return
	}
	cs := n.Call

	base := ""
	if cs.Callable != nil {
		base = cs.Callable.CallableName()
	}

	proposed := ""
	if suggested != "" {
		if force || base == "" || suggested == base || isNumericPermutation(suggested, base) {
			proposed = suggested
		}
	}
	if proposed == "" {
		if base != "" {
			proposed = base
		} else {
			proposed = cs.DisplayName
		}
	}
	if proposed == "" {
		proposed = "Call"
	}

	taken := make(map[string]bool)
	for _, sibling := range g.CallSites() {
		if sibling.ID != id {
			taken[strings.ToLower(sibling.Call.DisplayName)] = true
		}
	}

	name := UniqueName(proposed, taken)
	if cs.DisplayName != name {
		cs.DisplayName = name
		g.Touch()
	}
}

// SuggestCallName proposes a display name, forcing it past the
// permutation check when asked.
func (g *Graph) SuggestCallName(id NodeID, suggested string, force bool) {
	g.ComputeCallName(id, suggested, force)
}

// isNumericPermutation reports whether s is base plus a numeric suffix
// (ignoring separating spaces), e.g. "Add Velocity 002" for
// "Add Velocity".
func isNumericPermutation(s, base string) bool {
	if base == "" || !strings.HasPrefix(s, base) {
		return false
	}
	rest := strings.TrimSpace(strings.TrimPrefix(s, base))
	if rest == "" {
		return true
	}
	for _, r := range rest {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
