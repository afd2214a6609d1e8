package bpf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withLSMFixture(t *testing.T, contents string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "lsm")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	orig := lsmSysfsPath
	lsmSysfsPath = path
	t.Cleanup(func() { lsmSysfsPath = orig })
}

func TestCheckLSMSupportedWithBPFEnabled(t *testing.T) {
	withLSMFixture(t, "lockdown,capability,yama,apparmor,bpf\n")
	assert.NoError(t, CheckLSMSupported())
}

func TestCheckLSMSupportedWithoutBPF(t *testing.T) {
	withLSMFixture(t, "lockdown,capability,yama,apparmor\n")
	err := CheckLSMSupported()
	assert.Error(t, err)
}

func TestCheckLSMSupportedMissingFile(t *testing.T) {
	orig := lsmSysfsPath
	lsmSysfsPath = filepath.Join(t.TempDir(), "does-not-exist")
	t.Cleanup(func() { lsmSysfsPath = orig })

	err := CheckLSMSupported()
	assert.Error(t, err)
}

func TestCheckLSMUnlessSkippedHonorsEnvOverride(t *testing.T) {
	withLSMFixture(t, "lockdown,capability,yama,apparmor\n")

	t.Setenv(envCheckLSMSkip, "1")
	assert.NoError(t, checkLSMUnlessSkipped())
}

func TestCheckLSMUnlessSkippedRunsByDefault(t *testing.T) {
	withLSMFixture(t, "lockdown,capability,yama,apparmor\n")

	t.Setenv(envCheckLSMSkip, "")
	assert.Error(t, checkLSMUnlessSkipped())
}

func TestPathTableMapsMatchSeedGroups(t *testing.T) {
	// Every map name in pathTableMaps must have exactly one corresponding
	// config.Paths field handled in seedPaths; this guards against the two
	// lists drifting apart silently.
	assert.Len(t, pathTableMaps, 6)
}
