package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultHasRuncRuntime(t *testing.T) {
	cfg := Default()
	assert.Contains(t, cfg.Runtimes, "runc")
}

func TestDefaultAllowListsAreIndependent(t *testing.T) {
	// Restricted and baseline sets
	// must be exposed independently, not assumed to be in an inclusion
	// relationship.
	cfg := Default()
	assert.NotEqual(t, cfg.MountAllowRestricted, cfg.MountAllowBaseline)
	assert.Contains(t, cfg.MountAllowBaseline, "/home")
	assert.NotContains(t, cfg.MountAllowRestricted, "/home")
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadMergesOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lockc.yaml")
	err := os.WriteFile(path, []byte("runtimes:\n  - runc\n  - crun\n"), 0o644)
	require.NoError(t, err)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"runc", "crun"}, cfg.Runtimes)
	// Unspecified keys keep their defaults.
	assert.Equal(t, Default().OpenDenyBaseline, cfg.OpenDenyBaseline)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lockc.yaml")
	err := os.WriteFile(path, []byte("runtimes: [unterminated"), 0o644)
	require.NoError(t, err)

	_, err = Load(path)
	assert.Error(t, err)
}
