package asset

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/zclconf/go-cty/cty"

	"github.com/emberfx/graphc/internal/graph"
	"github.com/emberfx/graphc/internal/ir"
)

// AssetExt is the file extension of graph asset files.
const AssetExt = ".gcg.cue"

// LoadResult holds everything loaded from an asset set.
type LoadResult struct {
	Registry   *Registry
	Graphs     []*graph.Graph
	Signatures []*graph.Signature
}

// bodySpec defers body construction until every declaration in the
// asset set has been registered, so bodies may reference graphs from
// later files.
type bodySpec struct {
	g     *graph.Graph
	value cue.Value
}

// LoadDir loads every asset file in a directory (non-recursive).
// Errors are collected, not fail-fast: one bad asset must not hide
// problems in its siblings.
func LoadDir(dir string) (*LoadResult, []error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, []error{fmt.Errorf("read asset dir: %w", err)}
	}
	var paths []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), AssetExt) {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	if len(paths) == 0 {
		return nil, []error{fmt.Errorf("no %s files in %s", AssetExt, dir)}
	}
	return LoadFiles(paths...)
}

// LoadFiles loads an explicit set of asset files.
func LoadFiles(paths ...string) (*LoadResult, []error) {
	res := &LoadResult{Registry: NewRegistry()}
	var errs []error
	var bodies []bodySpec

	ctx := cuecontext.New()
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			errs = append(errs, fmt.Errorf("read asset %s: %w", path, err))
			continue
		}
		root := ctx.CompileBytes(data, cue.Filename(path))
		if err := root.Err(); err != nil {
			errs = append(errs, formatCUEError(err))
			continue
		}
		bodies = append(bodies, loadDeclarations(root, res, &errs)...)
	}

	// Second phase: bodies, now that every declaration is registered.
	for _, b := range bodies {
		loadBody(b, res.Registry, &errs)
	}

	return res, errs
}

// loadDeclarations parses the graphs: and signatures: sections of one
// file, registering each declaration. Body sections are returned for
// the second phase.
func loadDeclarations(root cue.Value, res *LoadResult, errs *[]error) []bodySpec {
	var bodies []bodySpec

	if graphsVal := root.LookupPath(cue.ParsePath("graphs")); graphsVal.Exists() {
		iter, err := graphsVal.Fields()
		if err != nil {
			*errs = append(*errs, formatCUEError(err))
		} else {
			for iter.Next() {
				name := strings.Trim(iter.Selector().String(), `"`)
				g, body, err := compileGraph(name, iter.Value())
				if err != nil {
					*errs = append(*errs, err)
					continue
				}
				res.Graphs = append(res.Graphs, g)
				res.Registry.Register(g.Identity, g)
				if body.Exists() {
					bodies = append(bodies, bodySpec{g: g, value: body})
				}
			}
		}
	}

	if sigsVal := root.LookupPath(cue.ParsePath("signatures")); sigsVal.Exists() {
		iter, err := sigsVal.Fields()
		if err != nil {
			*errs = append(*errs, formatCUEError(err))
		} else {
			for iter.Next() {
				name := strings.Trim(iter.Selector().String(), `"`)
				sig, path, err := compileSignature(name, iter.Value())
				if err != nil {
					*errs = append(*errs, err)
					continue
				}
				res.Signatures = append(res.Signatures, sig)
				res.Registry.Register(path, sig)
			}
		}
	}

	return bodies
}

// compileGraph parses one graph declaration into a Graph with its
// inputs, output contracts, and static switches. The body value, if
// present, is returned unparsed.
func compileGraph(name string, v cue.Value) (*graph.Graph, cue.Value, error) {
	identity, err := stringField(v, "identity")
	if err != nil || identity == "" {
		return nil, cue.Value{}, &CompileError{
			Code: ErrIdentityEmpty, Field: name + ".identity",
			Message: "identity is required", Pos: v.Pos(),
		}
	}

	g := graph.New(name, identity)
	g.Status = compileStatus(v)

	if inputsVal := v.LookupPath(cue.ParsePath("inputs")); inputsVal.Exists() {
		decls, err := compileInputDecls(name, inputsVal)
		if err != nil {
			return nil, cue.Value{}, err
		}
		for _, decl := range decls {
			g.AddInput(decl)
		}
	}

	if switchesVal := v.LookupPath(cue.ParsePath("switches")); switchesVal.Exists() {
		iter, err := switchesVal.List()
		if err != nil {
			return nil, cue.Value{}, formatCUEError(err)
		}
		for iter.Next() {
			sw, err := compileSwitch(name, iter.Value())
			if err != nil {
				return nil, cue.Value{}, err
			}
			g.Switches = append(g.Switches, sw)
		}
	}

	outputsVal := v.LookupPath(cue.ParsePath("outputs"))
	if !outputsVal.Exists() {
		return nil, cue.Value{}, &CompileError{
			Code: ErrNoOutputContract, Field: name + ".outputs",
			Message: "graph declares no terminal output contract", Pos: v.Pos(),
		}
	}
	usageIter, err := outputsVal.Fields()
	if err != nil {
		return nil, cue.Value{}, formatCUEError(err)
	}
	for usageIter.Next() {
		usageName := strings.Trim(usageIter.Selector().String(), `"`)
		usage, err := ir.ParseUsage(usageName)
		if err != nil {
			return nil, cue.Value{}, &CompileError{
				Code: ErrUnknownUsage, Field: name + ".outputs." + usageName,
				Message: err.Error(), Pos: usageIter.Value().Pos(),
			}
		}
		vars, err := compileVariables(name+".outputs."+usageName, usageIter.Value())
		if err != nil {
			return nil, cue.Value{}, err
		}
		g.AddOutput(usage, vars)
	}

	return g, v.LookupPath(cue.ParsePath("body")), nil
}

// compileSignature parses one built-in signature declaration.
func compileSignature(name string, v cue.Value) (*graph.Signature, string, error) {
	if name == "" {
		return nil, "", &CompileError{
			Code: ErrSignatureNoName, Field: "signatures",
			Message: "signature name is required", Pos: v.Pos(),
		}
	}

	sig := &graph.Signature{Name: name, Status: compileStatus(v)}
	sig.RequiresExecPin, _ = boolField(v, "execPin")
	sig.SoftDeprecated, _ = boolField(v, "softDeprecated")

	if inputsVal := v.LookupPath(cue.ParsePath("inputs")); inputsVal.Exists() {
		decls, err := compileInputDecls(name, inputsVal)
		if err != nil {
			return nil, "", err
		}
		sig.Inputs = decls
	}

	outputsVal := v.LookupPath(cue.ParsePath("outputs"))
	if outputsVal.Exists() {
		vars, err := compileVariables(name+".outputs", outputsVal)
		if err != nil {
			return nil, "", err
		}
		sig.Outputs = vars
	}
	if len(sig.Outputs) == 0 && !sig.RequiresExecPin {
		return nil, "", &CompileError{
			Code: ErrSignatureNoOutputs, Field: name + ".outputs",
			Message: "signature must declare outputs or an exec pin", Pos: v.Pos(),
		}
	}

	if specVal := v.LookupPath(cue.ParsePath("specifiers")); specVal.Exists() {
		sig.Specifiers = make(map[string]string)
		iter, err := specVal.Fields()
		if err != nil {
			return nil, "", formatCUEError(err)
		}
		for iter.Next() {
			key := strings.Trim(iter.Selector().String(), `"`)
			val, err := iter.Value().String()
			if err != nil {
				return nil, "", formatCUEError(err)
			}
			sig.Specifiers[key] = val
		}
	}

	path, _ := stringField(v, "identity")
	if path == "" {
		path = "signature:" + name
	}
	return sig, path, nil
}

func compileStatus(v cue.Value) graph.Status {
	var st graph.Status
	st.Deprecated, _ = boolField(v, "deprecated")
	st.DeprecationMessage, _ = stringField(v, "deprecationMessage")
	st.Replacement, _ = stringField(v, "replacement")
	st.Experimental, _ = boolField(v, "experimental")
	st.ExperimentalMessage, _ = stringField(v, "experimentalMessage")
	return st
}

// compileInputDecls parses a list of input declarations, rejecting
// duplicates by name+type equivalence.
func compileInputDecls(owner string, v cue.Value) ([]graph.InputDecl, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var decls []graph.InputDecl
	for iter.Next() {
		decl, err := compileInputDecl(owner, iter.Value())
		if err != nil {
			return nil, err
		}
		for _, seen := range decls {
			if seen.Var.Equivalent(decl.Var) {
				return nil, &CompileError{
					Code: ErrDuplicateInput, Field: owner + ".inputs",
					Message: fmt.Sprintf("duplicate input %q", decl.Var.Name), Pos: iter.Value().Pos(),
				}
			}
		}
		decls = append(decls, decl)
	}
	return decls, nil
}

func compileInputDecl(owner string, v cue.Value) (graph.InputDecl, error) {
	varSpec, err := compileVariable(owner+".inputs", v)
	if err != nil {
		return graph.InputDecl{}, err
	}
	decl := graph.InputDecl{Var: varSpec, Exposed: true}
	decl.Required, _ = boolField(v, "required")
	decl.Hidden, _ = boolField(v, "hidden")
	decl.CanAutoBind, _ = boolField(v, "autoBind")
	if exposed := v.LookupPath(cue.ParsePath("exposed")); exposed.Exists() {
		decl.Exposed, _ = exposed.Bool()
	}

	if defVal := v.LookupPath(cue.ParsePath("default")); defVal.Exists() {
		lit, err := cueToCty(defVal, varSpec.Type)
		if err != nil {
			return graph.InputDecl{}, &CompileError{
				Code: ErrDefaultTypeMismatch, Field: owner + ".inputs." + varSpec.Name,
				Message: err.Error(), Pos: defVal.Pos(),
			}
		}
		decl.Default = lit
	}
	return decl, nil
}

func compileSwitch(owner string, v cue.Value) (graph.SwitchDecl, error) {
	varSpec, err := compileVariable(owner+".switches", v)
	if err != nil {
		return graph.SwitchDecl{}, err
	}
	defVal := v.LookupPath(cue.ParsePath("default"))
	if !defVal.Exists() {
		return graph.SwitchDecl{}, &CompileError{
			Code: ErrBadSwitchDefault, Field: owner + ".switches." + varSpec.Name,
			Message: "static switch requires a default discriminant", Pos: v.Pos(),
		}
	}
	lit, err := cueToCty(defVal, varSpec.Type)
	if err != nil {
		return graph.SwitchDecl{}, &CompileError{
			Code: ErrBadSwitchDefault, Field: owner + ".switches." + varSpec.Name,
			Message: err.Error(), Pos: defVal.Pos(),
		}
	}
	return graph.SwitchDecl{Var: varSpec, Default: lit}, nil
}

// compileVariables parses a list of {name, type} declarations.
func compileVariables(owner string, v cue.Value) ([]ir.Variable, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var vars []ir.Variable
	for iter.Next() {
		varSpec, err := compileVariable(owner, iter.Value())
		if err != nil {
			return nil, err
		}
		vars = append(vars, varSpec)
	}
	return vars, nil
}

func compileVariable(owner string, v cue.Value) (ir.Variable, error) {
	name, err := stringField(v, "name")
	if err != nil || name == "" {
		return ir.Variable{}, &CompileError{
			Code: ErrGeneric, Field: owner,
			Message: "name is required", Pos: v.Pos(),
		}
	}
	typeName, err := stringField(v, "type")
	if err != nil {
		return ir.Variable{}, &CompileError{
			Code: ErrUnknownType, Field: owner + "." + name,
			Message: "type is required", Pos: v.Pos(),
		}
	}
	ty, err := ir.TypeFromString(typeName)
	if err != nil {
		return ir.Variable{}, &CompileError{
			Code: ErrUnknownType, Field: owner + "." + name,
			Message: err.Error(), Pos: v.Pos(),
		}
	}
	return ir.Var(name, ty), nil
}

// cueToCty converts a CUE literal to a cty value of the declared type.
func cueToCty(v cue.Value, ty cty.Type) (cty.Value, error) {
	switch {
	case ty == cty.Number:
		f, err := v.Float64()
		if err != nil {
			return cty.NilVal, fmt.Errorf("expected a number: %w", err)
		}
		return cty.NumberFloatVal(f), nil
	case ty == cty.String:
		s, err := v.String()
		if err != nil {
			return cty.NilVal, fmt.Errorf("expected a string: %w", err)
		}
		return cty.StringVal(s), nil
	case ty == cty.Bool:
		b, err := v.Bool()
		if err != nil {
			return cty.NilVal, fmt.Errorf("expected a bool: %w", err)
		}
		return cty.BoolVal(b), nil
	case ty.Equals(ir.VectorType):
		iter, err := v.List()
		if err != nil {
			return cty.NilVal, fmt.Errorf("expected a vector literal: %w", err)
		}
		var elems []cty.Value
		for iter.Next() {
			f, err := iter.Value().Float64()
			if err != nil {
				return cty.NilVal, fmt.Errorf("vector component: %w", err)
			}
			elems = append(elems, cty.NumberFloatVal(f))
		}
		if len(elems) != 3 {
			return cty.NilVal, fmt.Errorf("vector literal needs 3 components, got %d", len(elems))
		}
		return cty.TupleVal(elems), nil
	default:
		return cty.NilVal, fmt.Errorf("type %s cannot carry a literal default", ir.TypeName(ty))
	}
}

func stringField(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", fmt.Errorf("field %s missing", field)
	}
	return fv.String()
}

func boolField(v cue.Value, field string) (bool, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return false, fmt.Errorf("field %s missing", field)
	}
	return fv.Bool()
}
