package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/istore/internal/fault"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name      string
		expected  Type
		canonical string
	}{
		{"bool", TypeBool, "bool"},
		{"int", TypeInt32, "int32"},
		{"int8", TypeInt8, "int8"},
		{"int64", TypeInt64, "int64"},
		{"uint", TypeUint32, "uint32"},
		{"uint16", TypeUint16, "uint16"},
		{"float", TypeFloat32, "float32"},
		{"double", TypeFloat64, "float64"},
		{"float64", TypeFloat64, "float64"},
		{"string", TypeString, "string"},
		{"string10", FixStringOf(10), "string10"},
		{"blob4", BlobOf(4), "blob4"},
		{"Blob16", BlobOf(16), "blob16"},
		{"relation", TypeRelation, "relation"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			typ, err := Parse(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, typ)
			assert.Equal(t, tt.canonical, typ.String())
			assert.True(t, typ.Valid())

			again, err := Parse(typ.String())
			require.NoError(t, err)
			assert.Equal(t, typ, again, "canonical name must parse back")
		})
	}
}

func TestParseRejectsUnknown(t *testing.T) {
	for _, name := range []string{"", "int7", "complex", "blob0", "string-3", "blobx"} {
		_, err := Parse(name)
		require.Error(t, err, name)
		assert.True(t, fault.Is(err, fault.InvalidInput))
	}
}

func TestSizeAndAlign(t *testing.T) {
	assert.Equal(t, 8, TypeFloat64.ElemSize())
	assert.Equal(t, 8, TypeFloat64.Align())
	assert.Equal(t, 4, BlobOf(4).ElemSize())
	assert.Equal(t, 1, BlobOf(4).Align())
	assert.Equal(t, 3, FixStringOf(3).ElemSize())
	assert.Equal(t, 1, TypeBool.Align())

	assert.False(t, TypeString.Fixed())
	assert.False(t, TypeRelation.Fixed())
	assert.Equal(t, 0, TypeString.ElemSize())
	assert.True(t, TypeInt16.Numeric())
	assert.False(t, BlobOf(2).Numeric())
}

func TestRelationMatches(t *testing.T) {
	r := Rel("dog", "is_a", "mammal")
	assert.True(t, r.Matches("", "", ""))
	assert.True(t, r.Matches("dog", "", "mammal"))
	assert.False(t, r.Matches("cat", "", ""))
	assert.Equal(t, []string{"dog", "is_a", "mammal"}, r.Triple())
	assert.Equal(t, "(dog, is_a, mammal)", r.String())
}

func TestRelationKindAndTriple(t *testing.T) {
	typ, err := Parse("relation")
	require.NoError(t, err)
	assert.Equal(t, KindRelation, typ.Kind)
	assert.Equal(t, "relation", KindRelation.String())

	var r Relation = Rel("a", "b", "c")
	assert.Equal(t, Relation{Subject: "a", Predicate: "b", Object: "c"}, r)
}
