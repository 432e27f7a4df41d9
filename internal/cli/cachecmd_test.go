package cli

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCacheCommand(t *testing.T, args ...string) (*bytes.Buffer, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewCacheCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs(args)
	return buf, cmd.Execute()
}

func TestCacheLifecycle(t *testing.T) {
	assets := writeAssetDir(t, velocityAssets)
	db := filepath.Join(t.TempDir(), "cache.db")

	// Populate the cache through a compile.
	_, err := runCompileCommand(t, &RootOptions{Format: "text"}, assets, "--cache", db)
	require.NoError(t, err)

	buf, err := runCacheCommand(t, "count", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "2 artifact(s)")

	buf, err = runCacheCommand(t, "invalidate", "modules/apply_velocity", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "invalidated 1 artifact(s) for modules/apply_velocity")

	buf, err = runCacheCommand(t, "flush", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "flushed 1 artifact(s)")

	buf, err = runCacheCommand(t, "count", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "0 artifact(s)")
}

func TestCacheCountEmptyDatabase(t *testing.T) {
	db := filepath.Join(t.TempDir(), "cache.db")

	buf, err := runCacheCommand(t, "count", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "0 artifact(s)")
}
