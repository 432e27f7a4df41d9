package asset

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/emberfx/graphc/internal/graph"
	"github.com/emberfx/graphc/internal/ir"
)

func writeAsset(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// requireCode asserts that exactly one collected error carries the
// given code.
func requireCode(t *testing.T, errs []error, code string) *CompileError {
	t.Helper()
	var found *CompileError
	for _, err := range errs {
		var ce *CompileError
		if errors.As(err, &ce) && ce.Code == code {
			require.Nil(t, found, "expected a single %s error", code)
			found = ce
		}
	}
	require.NotNil(t, found, "expected an error with code %s, got %v", code, errs)
	return found
}

const velocityAsset = `
graphs: {
	ApplyVelocity: {
		identity: "modules/apply_velocity"
		inputs: [
			{name: "Velocity", type: "vector", required: true, autoBind: true},
			{name: "Scale", type: "number", default: 1.0},
		]
		outputs: module: [
			{name: "Velocity", type: "vector"},
			{name: "Scale", type: "number"},
		]
		body: links: [
			{from: "inputs.Velocity", to: "outputs.module.Velocity"},
			{from: "inputs.Scale", to: "outputs.module.Scale"},
		]
	}
}
`

const emitterAsset = `
graphs: {
	SparksEmitter: {
		identity: "emitters/sparks"
		outputs: update: [
			{name: "Velocity", type: "vector"},
		]
		body: {
			calls: apply: {
				path:        "modules/apply_velocity"
				displayName: "Apply Velocity"
				literals: Scale: 2.0
			}
			links: [
				{from: "apply.Velocity", to: "outputs.update.Velocity"},
			]
		}
	}
}
`

func TestLoadDirCrossFileReferences(t *testing.T) {
	dir := t.TempDir()
	// Sorted load order puts the referencing emitter before the module
	// it calls; declarations load in a separate phase, so order must
	// not matter.
	writeAsset(t, dir, "a_emitter.gcg.cue", emitterAsset)
	writeAsset(t, dir, "b_modules.gcg.cue", velocityAsset)

	res, errs := LoadDir(dir)
	require.Empty(t, errs)
	require.Len(t, res.Graphs, 2)

	emitter := res.Registry.Graph("emitters/sparks")
	require.NotNil(t, emitter)
	sites := emitter.CallSites()
	require.Len(t, sites, 1)
	cs := sites[0].Call
	assert.Equal(t, "Apply Velocity", cs.DisplayName)
	assert.NotNil(t, cs.Callable, "cross-file call must resolve")

	scaleIdx := sites[0].FindInput(ir.Var("Scale", cty.Number))
	require.GreaterOrEqual(t, scaleIdx, 0)
	assert.Equal(t, cty.NumberFloatVal(2.0), sites[0].In[scaleIdx].Default,
		"literals: overrides the pin default")

	out := emitter.OutputNode(ir.UsageUpdate)
	require.NotNil(t, out)
	assert.NotNil(t, out.In[0].Link, "body link should be wired")
}

func TestLoadFilesGraphDeclarations(t *testing.T) {
	dir := t.TempDir()
	path := writeAsset(t, dir, "modules.gcg.cue", velocityAsset)

	res, errs := LoadFiles(path)
	require.Empty(t, errs)
	require.Len(t, res.Graphs, 1)

	g := res.Graphs[0]
	assert.Equal(t, "ApplyVelocity", g.Name)
	assert.Equal(t, "modules/apply_velocity", g.Identity)

	decls := g.InputDecls()
	require.Len(t, decls, 2)
	assert.Equal(t, "Scale", decls[0].Var.Name, "declarations sort by name")
	assert.Equal(t, cty.NumberFloatVal(1.0), decls[0].Default)
	assert.True(t, decls[1].Required)
	assert.True(t, decls[1].CanAutoBind)
	assert.True(t, decls[1].Exposed, "exposed defaults to true")
}

func TestLoadFilesSwitchesAndPropagation(t *testing.T) {
	dir := t.TempDir()
	path := writeAsset(t, dir, "quality.gcg.cue", `
graphs: {
	QualityModule: {
		identity: "modules/quality"
		switches: [
			{name: "Quality", type: "string", default: "low"},
		]
		inputs: [
			{name: "Samples", type: "number", default: 4},
		]
		outputs: module: [
			{name: "Samples", type: "number"},
		]
	}
	Caller: {
		identity: "emitters/caller"
		outputs: update: [
			{name: "Samples", type: "number"},
		]
		body: {
			calls: quality: {
				path: "modules/quality"
				propagated: Quality: "high"
			}
			links: [
				{from: "quality.Samples", to: "outputs.update.Samples"},
			]
		}
	}
}
`)

	res, errs := LoadFiles(path)
	require.Empty(t, errs)

	quality := res.Registry.Graph("modules/quality")
	require.NotNil(t, quality)
	require.Len(t, quality.Switches, 1)
	assert.Equal(t, cty.StringVal("low"), quality.Switches[0].Default)

	caller := res.Registry.Graph("emitters/caller")
	require.NotNil(t, caller)
	sites := caller.CallSites()
	require.Len(t, sites, 1)

	p := sites[0].Call.FindPropagated(ir.Var("Quality", cty.String))
	require.NotNil(t, p)
	assert.Equal(t, cty.StringVal("high"), p.Value)

	swIdx := sites[0].FindInput(ir.Var("Quality", cty.String))
	require.GreaterOrEqual(t, swIdx, 0)
	assert.True(t, sites[0].In[swIdx].DefaultIgnored, "propagated switch pin is caller-immutable")
}

func TestLoadFilesSignatures(t *testing.T) {
	dir := t.TempDir()
	path := writeAsset(t, dir, "builtins.gcg.cue", `
signatures: {
	SampleTexture: {
		inputs: [
			{name: "UV", type: "vector"},
		]
		outputs: [
			{name: "Color", type: "vector"},
		]
		specifiers: texture: "default"
	}
	Advance: {
		execPin:        true
		softDeprecated: true
	}
}
`)

	res, errs := LoadFiles(path)
	require.Empty(t, errs)
	require.Len(t, res.Signatures, 2)

	c, state := res.Registry.Resolve("signature:SampleTexture")
	require.Equal(t, StateResolved, state)
	sig := c.(*graph.Signature)
	assert.Equal(t, "default", sig.Specifiers["texture"])
	require.Len(t, sig.Inputs, 1)
	assert.Equal(t, "UV", sig.Inputs[0].Var.Name)

	c, state = res.Registry.Resolve("signature:Advance")
	require.Equal(t, StateResolved, state)
	adv := c.(*graph.Signature)
	assert.True(t, adv.RequiresExecPin)
	assert.True(t, adv.SoftDeprecated)
}

func TestLoadFilesDisabledCall(t *testing.T) {
	dir := t.TempDir()
	path := writeAsset(t, dir, "assets.gcg.cue", velocityAsset+`
graphs: Wrapper: {
	identity: "modules/wrapper"
	outputs: module: [
		{name: "Velocity", type: "vector"},
	]
	body: {
		calls: apply: {
			path:     "modules/apply_velocity"
			disabled: true
		}
		links: [
			{from: "apply.Velocity", to: "outputs.module.Velocity"},
		]
	}
}
`)

	res, errs := LoadFiles(path)
	require.Empty(t, errs)

	wrapper := res.Registry.Graph("modules/wrapper")
	require.NotNil(t, wrapper)
	sites := wrapper.CallSites()
	require.Len(t, sites, 1)
	assert.False(t, sites[0].Enabled)
}

func TestLoadDirSkipsOtherFiles(t *testing.T) {
	dir := t.TempDir()
	writeAsset(t, dir, "modules.gcg.cue", velocityAsset)
	writeAsset(t, dir, "README.md", "not an asset")
	writeAsset(t, dir, "stray.cue", `graphs: Bad: {}`)

	res, errs := LoadDir(dir)
	require.Empty(t, errs)
	assert.Len(t, res.Graphs, 1)
}

func TestLoadDirEmpty(t *testing.T) {
	_, errs := LoadDir(t.TempDir())
	require.Len(t, errs, 1)
	assert.ErrorContains(t, errs[0], "no .gcg.cue files")
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name  string
		asset string
		code  string
	}{
		{
			name:  "missing identity",
			asset: `graphs: Bad: outputs: module: [{name: "Out", type: "number"}]`,
			code:  ErrIdentityEmpty,
		},
		{
			name: "unknown type",
			asset: `graphs: Bad: {
				identity: "modules/bad"
				inputs: [{name: "X", type: "matrix"}]
				outputs: module: [{name: "Out", type: "number"}]
			}`,
			code: ErrUnknownType,
		},
		{
			name: "duplicate input",
			asset: `graphs: Bad: {
				identity: "modules/bad"
				inputs: [
					{name: "Scale", type: "number"},
					{name: "scale", type: "number"},
				]
				outputs: module: [{name: "Out", type: "number"}]
			}`,
			code: ErrDuplicateInput,
		},
		{
			name: "default type mismatch",
			asset: `graphs: Bad: {
				identity: "modules/bad"
				inputs: [{name: "Scale", type: "number", default: "big"}]
				outputs: module: [{name: "Out", type: "number"}]
			}`,
			code: ErrDefaultTypeMismatch,
		},
		{
			name: "no output contract",
			asset: `graphs: Bad: {
				identity: "modules/bad"
			}`,
			code: ErrNoOutputContract,
		},
		{
			name: "switch without default",
			asset: `graphs: Bad: {
				identity: "modules/bad"
				switches: [{name: "Quality", type: "string"}]
				outputs: module: [{name: "Out", type: "number"}]
			}`,
			code: ErrBadSwitchDefault,
		},
		{
			name: "unknown usage kind",
			asset: `graphs: Bad: {
				identity: "modules/bad"
				outputs: render: [{name: "Out", type: "number"}]
			}`,
			code: ErrUnknownUsage,
		},
		{
			name:  "signature without outputs or exec pin",
			asset: `signatures: Bad: inputs: [{name: "X", type: "number"}]`,
			code:  ErrSignatureNoOutputs,
		},
		{
			name: "unresolved call path",
			asset: `graphs: Bad: {
				identity: "modules/bad"
				outputs: module: [{name: "Out", type: "number"}]
				body: calls: missing: path: "modules/nope"
			}`,
			code: ErrUnresolvedPath,
		},
		{
			name: "unknown link endpoint",
			asset: `graphs: Bad: {
				identity: "modules/bad"
				outputs: module: [{name: "Out", type: "number"}]
				body: links: [
					{from: "inputs.Nope", to: "outputs.module.Out"},
				]
			}`,
			code: ErrUnknownEndpoint,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeAsset(t, t.TempDir(), "bad.gcg.cue", tt.asset)
			_, errs := LoadFiles(path)
			requireCode(t, errs, tt.code)
		})
	}
}

func TestLoadErrorsAreCollectedNotFailFast(t *testing.T) {
	dir := t.TempDir()
	writeAsset(t, dir, "a.gcg.cue", `graphs: First: outputs: module: [{name: "Out", type: "number"}]`)
	writeAsset(t, dir, "b.gcg.cue", `graphs: Second: identity: "modules/second"`)

	_, errs := LoadDir(dir)
	require.Len(t, errs, 2, "one bad asset must not hide problems in its siblings")
	requireCode(t, errs, ErrIdentityEmpty)
	requireCode(t, errs, ErrNoOutputContract)
}
