package compiler

import (
	"fmt"

	"github.com/emberfx/graphc/internal/graph"
)

// Severity ranks a diagnostic.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
	SeverityInfo
)

// String implements fmt.Stringer.
func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return "info"
	}
}

// Code categorizes call-site compile diagnostics (C200-C299).
type Code string

const (
	// CodeUnresolvedCallable: neither graph nor signature is attached.
	// Fatal; no code is emitted for the call.
	CodeUnresolvedCallable Code = "C200"

	// CodeStaleBinding: a declared, exposed input has no matching
	// caller slot. The call site needs a refresh. Fatal for the call;
	// remaining inputs still resolve.
	CodeStaleBinding Code = "C201"

	// CodeRequiredInputUnbound: a required input has no link, no
	// auto-bind candidate, and its slot forbids inline defaults.
	// Fatal for the call; surfaces the specific slot.
	CodeRequiredInputUnbound Code = "C202"

	// CodeValidationFailure: the signature's own validator rejected an
	// intrinsic-specific precondition. Fatal, aborts before emission.
	CodeValidationFailure Code = "C203"

	// CodeDeprecatedUsage: non-fatal warning, compilation proceeds.
	CodeDeprecatedUsage Code = "C204"

	// CodeExperimentalUsage: non-fatal info, compilation proceeds.
	CodeExperimentalUsage Code = "C205"

	// CodeInternalCycle: a reference cycle was discovered during
	// compilation. Insertion-time rejection makes this structurally
	// impossible; seeing it means internal state corruption.
	CodeInternalCycle Code = "C206"
)

// Diagnostic is one problem reported against a call site, and
// optionally against a specific input slot of it.
type Diagnostic struct {
	Severity Severity     `json:"severity"`
	Code     Code         `json:"code"`
	Message  string       `json:"message"`
	CallSite string       `json:"call_site"`      // display name
	Node     graph.NodeID `json:"node"`           // call-site node
	Slot     string       `json:"slot,omitempty"` // offending input slot
}

// Error implements the error interface.
func (d Diagnostic) Error() string {
	if d.Slot != "" {
		return fmt.Sprintf("[%s] %s: %s (call=%s, slot=%s)", d.Code, d.Severity, d.Message, d.CallSite, d.Slot)
	}
	return fmt.Sprintf("[%s] %s: %s (call=%s)", d.Code, d.Severity, d.Message, d.CallSite)
}

// Diagnostics accumulates problems for one compile. Errors never abort
// sibling-input resolution; callers check HasErrors to decide whether
// emission is suppressed.
type Diagnostics []Diagnostic

// HasErrors reports whether any accumulated diagnostic is fatal.
func (ds Diagnostics) HasErrors() bool {
	for _, d := range ds {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Errors returns only the fatal entries.
func (ds Diagnostics) Errors() Diagnostics {
	var out Diagnostics
	for _, d := range ds {
		if d.Severity == SeverityError {
			out = append(out, d)
		}
	}
	return out
}
