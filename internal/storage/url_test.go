package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/istore/internal/fault"
)

func TestParseURL(t *testing.T) {
	tests := []struct {
		raw      string
		expected URL
	}{
		{
			"json://inst.json?mode=r#46a67765-3d8b-5764-9583-3aec59a17983",
			URL{Driver: "json", Location: "inst.json", Options: "mode=r", Fragment: "46a67765-3d8b-5764-9583-3aec59a17983"},
		},
		{
			"json:///tmp/x/MyEntity.json",
			URL{Driver: "json", Location: "/tmp/x/MyEntity.json"},
		},
		{
			"yaml://yyy.yaml?mode=w",
			URL{Driver: "yaml", Location: "yyy.yaml", Options: "mode=w"},
		},
		{
			"entity_schema.json?mode=w;arrays=false",
			URL{Driver: "json", Location: "entity_schema.json", Options: "mode=w;arrays=false"},
		},
		{
			"data/store.sqlite",
			URL{Driver: "sqlite", Location: "data/store.sqlite"},
		},
		{
			"https://example.com/meta/MyEntity.json?raw=1#abc",
			URL{Driver: "https", Location: "https://example.com/meta/MyEntity.json?raw=1", Fragment: "abc"},
		},
		{
			"redis://localhost:6379/0?prefix=test:",
			URL{Driver: "redis", Location: "localhost:6379/0", Options: "prefix=test:"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			u, err := ParseURL(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, u)

			again, err := ParseURL(u.String())
			require.NoError(t, err)
			assert.Equal(t, u, again)
		})
	}
}

func TestParseURLErrors(t *testing.T) {
	_, err := ParseURL("")
	assert.True(t, fault.Is(err, fault.InvalidInput))

	_, err = ParseURL("file.unknown")
	assert.True(t, fault.Is(err, fault.UnsupportedScheme))
}

func TestDriverForPath(t *testing.T) {
	d, err := DriverForPath("x/Y.YML")
	require.NoError(t, err)
	assert.Equal(t, "yaml", d)
}
