package hostlist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseExpandsBracketedRange(t *testing.T) {
	hl, err := Parse("node[01-03,07]")
	require.NoError(t, err)
	assert.Equal(t, []string{"node01", "node02", "node03", "node07"}, hl.Hosts())
}

func TestParseCommaSeparatedPlainNames(t *testing.T) {
	hl, err := Parse("alpha,beta,gamma")
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta", "gamma"}, hl.Hosts())
}

func TestParseMultipleBracketGroups(t *testing.T) {
	hl, err := Parse("a[1-2],b[3-4]")
	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "a2", "b3", "b4"}, hl.Hosts())
}

func TestIndexOf(t *testing.T) {
	hl, err := Parse("node[00-02]")
	require.NoError(t, err)

	idx, err := hl.IndexOf("node01")
	require.NoError(t, err)
	assert.Equal(t, 1, idx)
}

func TestIndexOfMissingHost(t *testing.T) {
	hl, err := Parse("node[00-02]")
	require.NoError(t, err)

	_, err = hl.IndexOf("node99")
	assert.ErrorIs(t, err, ErrHostNotFound)
}

func TestFormatCompressedRange(t *testing.T) {
	cases := []struct {
		in   []int
		want string
	}{
		{[]int{0, 1, 2, 7, 12, 13, 14}, "0-2,7,12-14"},
		{[]int{5}, "5"},
		{nil, ""},
		{[]int{3, 1, 2}, "1-3"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, FormatCompressedRange(c.in))
	}
}
