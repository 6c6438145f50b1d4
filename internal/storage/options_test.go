package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/istore/internal/fault"
)

func TestParseOptions(t *testing.T) {
	opts, err := ParseOptions("mode=w;arrays=true&single=false; compact=1;id=myid;timeout=5s")
	require.NoError(t, err)

	assert.Equal(t, ModeWrite, opts.Mode)
	assert.True(t, opts.Arrays)
	require.NotNil(t, opts.Single)
	assert.False(t, *opts.Single)
	assert.True(t, opts.Compact)
	assert.Equal(t, "myid", opts.ID)
	assert.Equal(t, map[string]string{"timeout": "5s"}, opts.Extra)
	assert.Equal(t, "mode=w;arrays=true;single=false;compact=true;id=myid;timeout=5s", opts.String())
}

func TestParseOptionsEmpty(t *testing.T) {
	opts, err := ParseOptions("")
	require.NoError(t, err)
	assert.Equal(t, ModeUnset, opts.Mode)
	assert.Nil(t, opts.Single)
	assert.Equal(t, "", opts.String())
}

func TestParseOptionsErrors(t *testing.T) {
	for _, s := range []string{"mode", "mode=x", "arrays=maybe"} {
		_, err := ParseOptions(s)
		require.Error(t, err, s)
		assert.True(t, fault.Is(err, fault.InvalidInput), s)
	}
}

func TestWithDefaultMode(t *testing.T) {
	assert.Equal(t, ModeRead, Options{}.WithDefaultMode(ModeRead).Mode)
	assert.Equal(t, ModeWrite, Options{Mode: ModeWrite}.WithDefaultMode(ModeRead).Mode)
}

func TestSelectorFragmentWins(t *testing.T) {
	opts := Options{ID: "from-option"}
	assert.Equal(t, "from-fragment", opts.Selector("from-fragment"))
	assert.Equal(t, "from-option", opts.Selector(""))
}

func TestCheckExtra(t *testing.T) {
	opts, err := ParseOptions("timeout=3s;bogus=1")
	require.NoError(t, err)

	err = opts.CheckExtra("http", "timeout")
	require.Error(t, err)
	assert.Equal(t, "InvalidInputError: unknown option for http storage: bogus", err.Error())
	assert.NoError(t, opts.CheckExtra("http", "timeout", "bogus"))
}

func TestCheckWritable(t *testing.T) {
	err := CheckWritable(ModeRead, false, "x")
	assert.True(t, fault.Is(err, fault.StorageIO))

	err = CheckWritable(ModeAppend, true, "x")
	assert.True(t, fault.Is(err, fault.ImmutableTarget))

	assert.NoError(t, CheckWritable(ModeAppend, false, "x"))
	assert.NoError(t, CheckWritable(ModeWrite, true, "x"))
}
