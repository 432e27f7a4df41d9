// Package env provides the registry of engine-wide read-only system
// constants consulted by auto-binding.
//
// The registry is an injected capability, never a process-wide
// singleton, so compiles stay reproducible and testable in isolation.
package env

import (
	"fmt"
	"os"

	"github.com/zclconf/go-cty/cty"
	"gopkg.in/yaml.v3"

	"github.com/emberfx/graphc/internal/ir"
)

// Registry is a fixed, read-only set of system constants. The zero
// value is an empty registry. Safe for concurrent reads.
type Registry struct {
	vars []ir.Variable
}

// NewRegistry builds a registry from an explicit variable list.
func NewRegistry(vars ...ir.Variable) *Registry {
	return &Registry{vars: vars}
}

// Default returns the built-in engine constants.
func Default() *Registry {
	return NewRegistry(
		ir.Var("Engine.DeltaTime", cty.Number),
		ir.Var("Engine.Time", cty.Number),
		ir.Var("Engine.Owner.Position", ir.VectorType),
		ir.Var("Engine.Owner.Velocity", ir.VectorType),
		ir.Var("Engine.Owner.Scale", ir.VectorType),
		ir.Var("Engine.ExecutionCount", cty.Number),
	)
}

// Contains reports whether the registry holds a constant equivalent to
// v (name ignoring case, type exact).
func (r *Registry) Contains(v ir.Variable) bool {
	for _, entry := range r.vars {
		if entry.Equivalent(v) {
			return true
		}
	}
	return false
}

// Variables returns the registry contents in declaration order; the
// slice must not be mutated.
func (r *Registry) Variables() []ir.Variable {
	return r.vars
}

// constantsFile is the YAML shape of a registry file.
type constantsFile struct {
	Constants []struct {
		Name string `yaml:"name"`
		Type string `yaml:"type"`
	} `yaml:"constants"`
}

// LoadYAML reads a registry from a YAML file of the form:
//
//	constants:
//	  - name: Engine.DeltaTime
//	    type: number
//	  - name: Engine.Owner.Velocity
//	    type: vector
func LoadYAML(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read constants file: %w", err)
	}
	var file constantsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse constants file %s: %w", path, err)
	}
	vars := make([]ir.Variable, 0, len(file.Constants))
	for i, c := range file.Constants {
		if c.Name == "" {
			return nil, fmt.Errorf("%s: constants[%d]: name is required", path, i)
		}
		ty, err := ir.TypeFromString(c.Type)
		if err != nil {
			return nil, fmt.Errorf("%s: constants[%d] (%s): %w", path, i, c.Name, err)
		}
		vars = append(vars, ir.Var(c.Name, ty))
	}
	return NewRegistry(vars...), nil
}
