package nsengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStateString(t *testing.T) {
	cases := []struct {
		s    State
		want string
	}{
		{Absent, "absent"},
		{Initializing, "initializing"},
		{Bound, "bound"},
		{Ready, "ready"},
		{Broken, "broken"},
		{State(99), "unknown"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.s.String())
	}
}

func TestPathsFor(t *testing.T) {
	p := PathsFor("/var/lib/bastion/ns", 42)
	assert.Equal(t, "/var/lib/bastion/ns/42", p.JobMount)
	assert.Equal(t, "/var/lib/bastion/ns/42/.ns", p.NSHolder)
	assert.Equal(t, "/var/lib/bastion/ns/42/.42", p.SrcBind)
	assert.Equal(t, "/var/lib/bastion/ns/42/.active", p.Active)
}
