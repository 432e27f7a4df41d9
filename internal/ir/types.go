package ir

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/zclconf/go-cty/cty"
)

// flowCell is the opaque payload of FlowType. Flow values never exist at
// compile time; the capsule type is only used for pin typing.
type flowCell struct{}

// FlowType is the execution-context type threaded through call chains.
// It is a capsule type so it can never carry an inline literal default.
var FlowType = cty.Capsule("flow", reflect.TypeOf(flowCell{}))

// VectorType is the three-component vector type used by attributes such
// as positions and velocities.
var VectorType = cty.Tuple([]cty.Type{cty.Number, cty.Number, cty.Number})

// Variable is a named, typed symbol: a declared parameter, an attribute,
// or a system constant.
type Variable struct {
	Name string
	Type cty.Type
}

// Var is shorthand for constructing a Variable.
func Var(name string, ty cty.Type) Variable {
	return Variable{Name: name, Type: ty}
}

// Equivalent reports whether two variables refer to the same symbol:
// names equal ignoring case, types exactly equal. This is the single
// equivalence query used for slot matching, auto-binding, and output
// re-pairing; all of them must agree.
func (v Variable) Equivalent(other Variable) bool {
	return strings.EqualFold(v.Name, other.Name) && v.Type.Equals(other.Type)
}

// String returns "Name: type" for diagnostics.
func (v Variable) String() string {
	return fmt.Sprintf("%s: %s", v.Name, TypeName(v.Type))
}

// UsageKind identifies which terminal output contract of a graph a
// traversal or compilation targets.
type UsageKind int

const (
	UsageFunction UsageKind = iota
	UsageModule
	UsageDynamicInput
	UsageSpawn
	UsageUpdate
)

// AllUsageKinds lists every usage kind in declaration order. Iteration
// over this slice must be stable; dependency-hash aggregation relies on it.
var AllUsageKinds = []UsageKind{UsageFunction, UsageModule, UsageDynamicInput, UsageSpawn, UsageUpdate}

// CalleeUsagePreference is the fixed order in which a callee's terminal
// output contract is selected when recursing into its body.
var CalleeUsagePreference = []UsageKind{UsageFunction, UsageModule, UsageDynamicInput}

var usageNames = map[UsageKind]string{
	UsageFunction:     "function",
	UsageModule:       "module",
	UsageDynamicInput: "dynamic_input",
	UsageSpawn:        "spawn",
	UsageUpdate:       "update",
}

// String returns the lowercase name used in asset files and hashes.
func (u UsageKind) String() string {
	if name, ok := usageNames[u]; ok {
		return name
	}
	return fmt.Sprintf("usage(%d)", int(u))
}

// ParseUsage converts an asset-file usage name to a UsageKind.
func ParseUsage(s string) (UsageKind, error) {
	for kind, name := range usageNames {
		if name == s {
			return kind, nil
		}
	}
	return 0, fmt.Errorf("unknown usage kind %q", s)
}

// namedTypes maps asset-file type names to cty types. Object and capsule
// types beyond these are constructed programmatically, not authored.
var namedTypes = map[string]cty.Type{
	"number": cty.Number,
	"string": cty.String,
	"bool":   cty.Bool,
	"vector": VectorType,
	"flow":   FlowType,
}

// TypeFromString resolves an asset-file type name.
func TypeFromString(s string) (cty.Type, error) {
	if ty, ok := namedTypes[s]; ok {
		return ty, nil
	}
	return cty.NilType, fmt.Errorf("unknown type name %q", s)
}

// TypeName returns the asset-file name for a type, falling back to the
// cty friendly name for types that have no registered short name.
func TypeName(ty cty.Type) string {
	for name, named := range namedTypes {
		if named.Equals(ty) {
			return name
		}
	}
	return ty.FriendlyName()
}
