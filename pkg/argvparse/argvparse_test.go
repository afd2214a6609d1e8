package argvparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRuncCreate(t *testing.T) {
	argv := []string{"--root", "/run/runc", "--log", "/tmp/log", "create", "--bundle", "/run/containerd/io.containerd.runtime.v2.task/k8s.io/abc123", "abc123"}
	r := ParseRunc(argv)

	assert.Equal(t, ActionCreate, r.Action)
	assert.Equal(t, "abc123", r.ContainerID)
	assert.Equal(t, "/run/containerd/io.containerd.runtime.v2.task/k8s.io/abc123", r.Bundle)
}

func TestParseRuncDelete(t *testing.T) {
	argv := []string{"--root", "/run/runc", "delete", "abc123"}
	r := ParseRunc(argv)

	assert.Equal(t, ActionDelete, r.Action)
	assert.Equal(t, "abc123", r.ContainerID)
}

func TestParseRuncOtherSubcommand(t *testing.T) {
	argv := []string{"state", "abc123"}
	r := ParseRunc(argv)

	assert.Equal(t, ActionOther, r.Action)
	assert.Equal(t, "abc123", r.ContainerID)
}

func TestParseRuncSkipsOptionPositionalArgs(t *testing.T) {
	// --process takes a filename positional that must never be mistaken
	// for the container id.
	argv := []string{"exec", "--process", "/tmp/spec.json", "abc123"}
	r := ParseRunc(argv)

	assert.Equal(t, "abc123", r.ContainerID)
}

func TestParseRuncNoBundleFlagLeavesBundleEmpty(t *testing.T) {
	argv := []string{"create", "abc123"}
	r := ParseRunc(argv)
	assert.Empty(t, r.Bundle)
}

func TestParseContainerdShimDelete(t *testing.T) {
	argv := []string{"-namespace", "k8s.io", "-id", "abc123", "-address", "/run/containerd/containerd.sock", "delete"}
	r := ParseContainerdShim(argv)

	assert.Equal(t, ActionDelete, r.Action)
	assert.Equal(t, "abc123", r.ContainerID)
}

func TestParseContainerdShimOtherRichFlagSet(t *testing.T) {
	// -publish-binary's positional value must not be captured as an id.
	argv := []string{"-namespace", "k8s.io", "-publish-binary", "/usr/bin/containerd", "-id", "abc123", "start"}
	r := ParseContainerdShim(argv)

	assert.Equal(t, ActionOther, r.Action)
	assert.Equal(t, "abc123", r.ContainerID)
}

func TestParseContainerdShimNoID(t *testing.T) {
	argv := []string{"-address", "/run/containerd/containerd.sock"}
	r := ParseContainerdShim(argv)
	assert.Empty(t, r.ContainerID)
	assert.Equal(t, ActionOther, r.Action)
}
