package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const velocityAssets = `
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
	SparksEmitter: {
		identity: "emitters/sparks"
		outputs: update: [
			{name: "Velocity", type: "vector"},
		]
		body: {
			calls: apply: path: "modules/apply_velocity"
			links: [
				{from: "apply.Velocity", to: "outputs.update.Velocity"},
			]
		}
	}
}
`

// brokenAssets references a callable the asset set does not declare.
const brokenAssets = `
graphs: Broken: {
	identity: "modules/broken"
	outputs: module: [
		{name: "Out", type: "number"},
	]
	body: calls: missing: path: "modules/nope"
}
`

func writeAssetDir(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "assets.gcg.cue"), content)
	return dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}
