package runtimewatcher

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommFromPidReadsOwnComm(t *testing.T) {
	comm, err := commFromPid(os.Getpid())
	require.NoError(t, err)
	assert.NotEmpty(t, comm)
}

func TestCmdlineFromPidReadsOwnArgs(t *testing.T) {
	cmdline, err := cmdlineFromPid(os.Getpid())
	require.NoError(t, err)
	assert.NotEmpty(t, cmdline)
}

func TestCommFromPidUnknownPidErrors(t *testing.T) {
	_, err := commFromPid(1<<30 - 1)
	assert.Error(t, err)
}
