package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCompileCommand(t *testing.T, rootOpts *RootOptions, args ...string) (*bytes.Buffer, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewCompileCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs(args)
	return buf, cmd.Execute()
}

func TestCompileValidAssets(t *testing.T) {
	dir := writeAssetDir(t, velocityAssets)

	buf, err := runCompileCommand(t, &RootOptions{Format: "text"}, dir)
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "ApplyVelocity (modules/apply_velocity): 0/0 call site(s) compiled")
	assert.Contains(t, output, "SparksEmitter (emitters/sparks): 1/1 call site(s) compiled")
}

func TestCompileValidAssetsJSON(t *testing.T) {
	dir := writeAssetDir(t, velocityAssets)

	buf, err := runCompileCommand(t, &RootOptions{Format: "json"}, dir)
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)

	payload, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var summary CompileSummary
	require.NoError(t, json.Unmarshal(payload, &summary))
	require.Len(t, summary.Graphs, 2)
	assert.Equal(t, "SparksEmitter", summary.Graphs[1].Graph)
	require.Len(t, summary.Graphs[1].CallSites, 1)
	assert.True(t, summary.Graphs[1].CallSites[0].Emitted)
}

func TestCompileSingleGraphFilter(t *testing.T) {
	dir := writeAssetDir(t, velocityAssets)

	buf, err := runCompileCommand(t, &RootOptions{Format: "text"}, dir, "--graph", "sparksemitter")
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "SparksEmitter")
	assert.NotContains(t, output, "ApplyVelocity (")
}

func TestCompileUnknownGraphFilter(t *testing.T) {
	dir := writeAssetDir(t, velocityAssets)

	_, err := runCompileCommand(t, &RootOptions{Format: "text"}, dir, "--graph", "Nope")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestCompileLoadErrorsAreCommandErrors(t *testing.T) {
	dir := writeAssetDir(t, brokenAssets)

	buf, err := runCompileCommand(t, &RootOptions{Format: "text"}, dir)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, buf.String(), "modules/nope")
}

func TestCompileDiagnosticsFailTheRun(t *testing.T) {
	// The callee's required flow input cannot auto-bind and carries no
	// default, so its call site compiles with an error diagnostic.
	dir := writeAssetDir(t, `
graphs: {
	Step: {
		identity: "modules/step"
		inputs: [
			{name: "Exec", type: "flow", required: true},
		]
		outputs: module: [
			{name: "Exec", type: "flow"},
		]
		body: links: [
			{from: "inputs.Exec", to: "outputs.module.Exec"},
		]
	}
	Host: {
		identity: "emitters/host"
		outputs: update: [
			{name: "Out", type: "number"},
		]
		body: calls: step: path: "modules/step"
	}
}
`)

	buf, err := runCompileCommand(t, &RootOptions{Format: "text"}, dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, buf.String(), "Host (emitters/host): 0/1 call site(s) compiled")
	assert.Contains(t, buf.String(), "Exec")
}

func TestCompileWithArtifactCache(t *testing.T) {
	dir := writeAssetDir(t, velocityAssets)
	db := filepath.Join(t.TempDir(), "cache.db")
	rootOpts := &RootOptions{Format: "text"}

	buf, err := runCompileCommand(t, rootOpts, dir, "--cache", db)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "(miss)", "first compile populates the cache")
	assert.NotContains(t, buf.String(), "(hit)")

	buf, err = runCompileCommand(t, rootOpts, dir, "--cache", db)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "(hit)", "unchanged assets reuse the stored artifact")
	assert.NotContains(t, buf.String(), "(miss)")
}

func TestCompileWithConstantsFile(t *testing.T) {
	dir := writeAssetDir(t, velocityAssets)
	constants := filepath.Join(t.TempDir(), "constants.yaml")
	writeFile(t, constants, "constants:\n  - name: Engine.DeltaTime\n    type: number\n")

	_, err := runCompileCommand(t, &RootOptions{Format: "text"}, dir, "--constants", constants)
	require.NoError(t, err)
}

func TestCompileBadConstantsFile(t *testing.T) {
	dir := writeAssetDir(t, velocityAssets)

	_, err := runCompileCommand(t, &RootOptions{Format: "text"}, dir,
		"--constants", filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
