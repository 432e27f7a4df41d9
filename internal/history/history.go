// Package history builds the symbol-visibility/parameter-flow record
// for a compile: a depth-first traversal of a graph that enters a scope
// for every call site with a resolvable callable, attributes incoming
// parameter flow to the producing ancestor scope, and re-pairs callee
// outputs with caller slots once the callee scope has exited.
package history

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"

	"github.com/emberfx/graphc/internal/graph"
)

// ScopeState tracks the strict per-call-site lifecycle of a frame
// within one traversal.
type ScopeState int

const (
	StateNotEntered ScopeState = iota
	StateEntered
	StateOutputsProduced
	StateExited
)

func (s ScopeState) String() string {
	switch s {
	case StateEntered:
		return "entered"
	case StateOutputsProduced:
		return "outputs_produced"
	case StateExited:
		return "exited"
	default:
		return "not_entered"
	}
}

// Scope is the activation record for one callee traversal. Frames obey
// strict stack discipline: pushed on entry, popped on every exit path,
// never shared across sibling calls or traversal paths (re-entrant
// traversals of the same call site get independent instances).
type Scope struct {
	Index    int
	Name     string
	Callable graph.Callable

	// Parent is the scope index of the enclosing frame, -1 for the
	// root.
	Parent int

	// Producer is the scope index attributed to the value flowing into
	// the callee's execution-context input, -1 when there is none.
	// This is what makes shadowing correct when the same callee is
	// invoked multiple times with different upstream bindings.
	Producer int

	State    ScopeState
	Switches map[string]cty.Value
	Hidden   map[string]bool

	// Cursor is an opaque traversal position in the enclosing record,
	// used by consumers that interleave their own bookkeeping.
	Cursor int
}

// advance enforces the NotEntered -> Entered -> OutputsProduced ->
// Exited sequence; any other transition is an internal error.
func (s *Scope) advance(to ScopeState) error {
	if to != s.State+1 {
		return fmt.Errorf("scope %q: invalid state transition %s -> %s", s.Name, s.State, to)
	}
	s.State = to
	return nil
}

// OutputPairing records that a caller-facing output slot is fed by a
// traced source from inside the (already exited) callee body. Pairings
// are registered against the caller's scope only, never the child's.
type OutputPairing struct {
	Scope     int
	CallerPin graph.PinRef
	Source    graph.PinRef
}

// PassThrough records the elision of a disabled call site: an output
// slot wired directly to the same-name+type input slot, with no scope
// pushed.
type PassThrough struct {
	Node graph.NodeID
	In   graph.PinRef
	Out  graph.PinRef
}

// History is the completed record of one traversal.
type History struct {
	Scopes       []*Scope
	Pairings     []OutputPairing
	PassThroughs []PassThrough
}

// ScopeAt returns the frame with the given index, or nil.
func (h *History) ScopeAt(i int) *Scope {
	if i < 0 || i >= len(h.Scopes) {
		return nil
	}
	return h.Scopes[i]
}
