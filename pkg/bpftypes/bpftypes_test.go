package bpftypes

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContainerIDRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		id   string
	}{
		{"short id", "abc123"},
		{"empty id", ""},
		{"max length id", strings.Repeat("a", ContainerIDLen-1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cid := NewContainerID(tt.id)
			assert.Equal(t, tt.id, cid.String())
		})
	}
}

func TestContainerIDTruncates(t *testing.T) {
	long := make([]byte, ContainerIDLen+16)
	for i := range long {
		long[i] = 'a'
	}
	cid := NewContainerID(string(long))
	assert.Len(t, cid.String(), ContainerIDLen)
}

func TestParsePolicyLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    PolicyLevel
		wantOK  bool
	}{
		{"restricted", PolicyRestricted, true},
		{"baseline", PolicyBaseline, true},
		{"privileged", PolicyPrivileged, true},
		{"bogus", PolicyNotFound, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParsePolicyLevel(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			if ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestPolicyLevelString(t *testing.T) {
	assert.Equal(t, "not-found", PolicyNotFound.String())
	assert.Equal(t, "restricted", PolicyRestricted.String())
	assert.Equal(t, "baseline", PolicyBaseline.String())
	assert.Equal(t, "privileged", PolicyPrivileged.String())
}

func TestPathBufString(t *testing.T) {
	var buf PathBuf
	copy(buf[:], "/proc/acpi")
	assert.Equal(t, "/proc/acpi", buf.String())
}
