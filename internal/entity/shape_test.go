package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/istore/internal/fault"
	"github.com/roach88/istore/internal/types"
)

func TestShapeExpressions(t *testing.T) {
	dims := map[string]int{"N": 4, "M": 3, "n_atoms": 10, "Nα": 5, "δ2": 2}
	lookup := func(name string) (int, bool) {
		v, ok := dims[name]
		return v, ok
	}

	tests := []struct {
		src    string
		want   int
		idents []string
	}{
		{"N", 4, []string{"N"}},
		{"7", 7, nil},
		{"N+2", 6, []string{"N"}},
		{"N + 2 * M", 10, []string{"N", "M"}},
		{"(N+2)*M", 18, []string{"N", "M"}},
		{"2*(M-1)", 4, []string{"M"}},
		{"N/3", 1, []string{"N"}},
		{"n_atoms%N", 2, []string{"n_atoms", "N"}},
		{"-N+5", 1, []string{"N"}},
		{"N-M-1", 0, []string{"N", "M"}},
		{"Nα+1", 6, []string{"Nα"}},
		{"δ2*Nα", 10, []string{"δ2", "Nα"}},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			e, err := parseShape(tt.src)
			require.NoError(t, err)
			got, err := e.eval(lookup)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.idents, e.idents(nil))
		})
	}
}

func TestShapeExpressionErrors(t *testing.T) {
	for _, src := range []string{"", "N+", "(N", "N)", "N $ 2", "2N", "N€2", "é"[:1]} {
		_, err := parseShape(src)
		assert.Error(t, err, "%q", src)
	}

	e, err := parseShape("N/(M-3)")
	require.NoError(t, err)
	_, err = e.eval(func(string) (int, bool) { return 3, true })
	assert.True(t, fault.Is(err, fault.InvalidInput), "got %v", err)

	e, err = parseShape("K")
	require.NoError(t, err)
	_, err = e.eval(func(string) (int, bool) { return 0, false })
	assert.True(t, fault.Is(err, fault.UnresolvedDimension), "got %v", err)
}

func TestShapeWithUnicodeDimension(t *testing.T) {
	m, err := NewMetadata("http://onto-ns.com/meta/0.1/Grid",
		[]Dimension{{Name: "Nα"}},
		[]Property{{Name: "cells", Type: types.TypeInt32, Shape: []string{"Nα+1"}}}, "")
	require.NoError(t, err)

	l, err := newLayout(m, []int{3})
	require.NoError(t, err)
	assert.Equal(t, []int{4}, l.slots[0].shape)
	assert.Equal(t, 16, l.size)
}
