package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/istore/internal/fault"
)

type nopDriver struct{ name string }

func (d nopDriver) Name() string { return d.name }

func (d nopDriver) Open(context.Context, string, Options) (Handle, error) {
	return nil, nil
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register(nopDriver{name: "json"})
	r.Register(nopDriver{name: "sqlite"}, "sqlite3")

	d, err := r.Lookup("JSON")
	require.NoError(t, err)
	assert.Equal(t, "json", d.Name())

	d, err = r.Lookup("sqlite3")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", d.Name())

	assert.Equal(t, []string{"json", "sqlite", "sqlite3"}, r.Schemes())
}

func TestRegistryUnknownScheme(t *testing.T) {
	r := NewRegistry()
	_, err := r.Open(context.Background(), "hdf5", "x.h5", Options{})
	require.Error(t, err)
	assert.True(t, fault.Is(err, fault.UnsupportedScheme), "got %v", err)
	assert.Equal(t, "UnsupportedSchemeError: no storage driver registered for scheme: hdf5", err.Error())
}
