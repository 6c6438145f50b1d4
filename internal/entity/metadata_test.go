package entity

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/istore/internal/fault"
	"github.com/roach88/istore/internal/ident"
	"github.com/roach88/istore/internal/types"
)

const pointURI = "http://onto-ns.com/meta/0.1/Point"

func newPoint(t *testing.T) *Metadata {
	t.Helper()
	m, err := NewMetadata(pointURI,
		[]Dimension{{Name: "N", Description: "Number of coordinates."}},
		[]Property{
			{Name: "coords", Type: types.TypeFloat64, Shape: []string{"N"}, Unit: "m"},
			{Name: "padded", Type: types.TypeInt8, Shape: []string{"N+2"}},
			{Name: "name", Type: types.TypeString},
		},
		"A point.")
	require.NoError(t, err)
	return m
}

func TestNewMetadata(t *testing.T) {
	m := newPoint(t)

	assert.Equal(t, ident.MustDerive(pointURI), m.UUID())
	assert.Equal(t, "A point.", m.Description())
	assert.Equal(t, EntitySchemaURI, m.Meta().URI())
	assert.Equal(t, ClassMeta, m.Class())
	assert.Equal(t, "Metadata("+pointURI+")", m.String())
	assert.False(t, m.Frozen())

	d, err := m.Dimension("N")
	require.NoError(t, err)
	assert.Equal(t, "Number of coordinates.", d.Description)

	_, err = m.Dimension("M")
	assert.True(t, fault.Is(err, fault.NotFound), "got %v", err)
	_, err = m.Property("missing")
	assert.True(t, fault.Is(err, fault.NotFound), "got %v", err)

	p, err := m.Property("padded")
	require.NoError(t, err)
	assert.Equal(t, 1, p.NDims())
}

func TestNewMetadataValidation(t *testing.T) {
	n := []Dimension{{Name: "N"}}
	tests := []struct {
		name  string
		uri   string
		dims  []Dimension
		props []Property
		kind  fault.Kind
	}{
		{"empty uri", "", nil, nil, fault.InvalidInput},
		{"unnamed dimension", pointURI, []Dimension{{}}, nil, fault.SchemaViolation},
		{"duplicate dimension", pointURI, []Dimension{{Name: "N"}, {Name: "N"}}, nil, fault.SchemaViolation},
		{"duplicate property", pointURI, n, []Property{
			{Name: "x", Type: types.TypeBool}, {Name: "x", Type: types.TypeBool},
		}, fault.SchemaViolation},
		{"invalid type", pointURI, n, []Property{{Name: "x"}}, fault.SchemaViolation},
		{"undeclared dimension", pointURI, n, []Property{
			{Name: "x", Type: types.TypeBool, Shape: []string{"M"}},
		}, fault.SchemaViolation},
		{"bad expression", pointURI, n, []Property{
			{Name: "x", Type: types.TypeBool, Shape: []string{"N+"}},
		}, fault.SchemaViolation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewMetadata(tt.uri, tt.dims, tt.props, "")
			require.Error(t, err)
			assert.Equal(t, tt.kind, fault.KindOf(err), "got %v", err)
		})
	}
}

func TestMetadataFrozenAfterInstantiate(t *testing.T) {
	s := NewStore()
	m := newPoint(t)
	require.NoError(t, m.AddDimension(Dimension{Name: "K"}))
	require.NoError(t, m.AddProperty(Property{Name: "k", Type: types.TypeUint16, Shape: []string{"K"}}))
	require.NoError(t, m.AddRelation(types.Rel("Point", "subClassOf", "Thing")))
	require.NoError(t, s.AddMetadata(m))

	inst, err := m.Instantiate(map[string]int{"N": 3, "K": 1},
		map[string]any{"coords": []float64{1, 2, 3}, "name": "p"}, "origin")
	require.NoError(t, err)
	assert.True(t, m.Frozen())

	err = m.AddDimension(Dimension{Name: "L"})
	assert.True(t, fault.Is(err, fault.ImmutableTarget), "got %v", err)
	err = m.AddProperty(Property{Name: "l", Type: types.TypeBool})
	assert.True(t, fault.Is(err, fault.ImmutableTarget), "got %v", err)
	err = m.AddRelation(types.Rel("a", "b", "c"))
	assert.True(t, fault.Is(err, fault.ImmutableTarget), "got %v", err)

	assert.Equal(t, []int{5}, mustGet(t, inst, "padded").Shape())
	assert.Equal(t, "p", mustGet(t, inst, "name").Str(0))
	assert.Len(t, m.MetaRelations(), 1)

	err = s.AddMetadata(m)
	assert.True(t, fault.Is(err, fault.InvalidInput), "got %v", err)
}

func TestInstantiateValidation(t *testing.T) {
	m := newPoint(t)
	_, err := m.Instantiate(map[string]int{"N": 1}, nil, "")
	assert.True(t, fault.Is(err, fault.InvalidInput), "unregistered metadata: got %v", err)

	s := NewStore()
	require.NoError(t, s.AddMetadata(m))

	tests := []struct {
		name  string
		dims  map[string]int
		props map[string]any
		kind  fault.Kind
	}{
		{"missing dimension", map[string]int{}, nil, fault.UnresolvedDimension},
		{"unknown dimension", map[string]int{"N": 1, "Q": 2}, nil, fault.NotFound},
		{"negative dimension", map[string]int{"N": -1}, nil, fault.InvalidInput},
		{"unknown property", map[string]int{"N": 1}, map[string]any{"nope": 1}, fault.NotFound},
		{"bad value", map[string]int{"N": 1}, map[string]any{"coords": []float64{1, 2}}, fault.ShapeMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Instantiate(tt.dims, tt.props, "")
			require.Error(t, err)
			assert.Equal(t, tt.kind, fault.KindOf(err), "got %v", err)
		})
	}
}

func TestResolveShape(t *testing.T) {
	m := newPoint(t)

	shape, err := m.ResolveShape("padded", map[string]int{"N": 4})
	require.NoError(t, err)
	assert.Equal(t, []int{6}, shape)

	_, err = m.ResolveShape("padded", map[string]int{})
	assert.True(t, fault.Is(err, fault.UnresolvedDimension), "got %v", err)

	_, err = m.ResolveShape("coords", map[string]int{"N": -1})
	assert.True(t, fault.Is(err, fault.InvalidInput), "got %v", err)

	_, err = m.ResolveShape("missing", nil)
	assert.True(t, fault.Is(err, fault.NotFound), "got %v", err)
}

func TestRootSchemaClasses(t *testing.T) {
	assert.Equal(t, ClassMetaMeta, basicMetadataSchema.Class())
	assert.Same(t, basicMetadataSchema, basicMetadataSchema.Meta())
	assert.Equal(t, ClassMetaMeta, entitySchema.Class())
	assert.Equal(t, ClassMeta, collectionEntity.Class())
	assert.Equal(t, "metameta", ClassMetaMeta.String())
	assert.Equal(t, "Class(7)", Class(7).String())

	assert.Equal(t, map[string]int{"ndimensions": 2, "nproperties": 4}, entitySchema.Dimensions())
}

func TestRootSchemaSaveLoad(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	root, err := s.Get(EntitySchemaURI)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "schema.json")

	require.NoError(t, s.Save(ctx, root, "json://"+path+"?mode=w"))
	require.NoError(t, s.SaveLocation(ctx, root, "json", path, "mode=w"))

	err = root.Save(ctx, "json://"+path+"?mode=w")
	require.Error(t, err)
	assert.True(t, fault.Is(err, fault.InvalidInput), "got %v", err)
	assert.Contains(t, err.Error(), "Store.Save")

	other := newTestStore(t)
	loaded, err := other.Load(ctx, "json://"+path)
	require.NoError(t, err)
	assert.Same(t, root, loaded)
	assert.Equal(t, 1, loaded.RefCount())
	assert.Equal(t, 3, other.Len())
}

func TestMetadataDocumentRelations(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	m := newPoint(t)
	require.NoError(t, m.AddRelation(types.Rel("Point", "subClassOf", "Thing")))
	require.NoError(t, s.AddMetadata(m))
	path := filepath.Join(t.TempDir(), "point.json")
	require.NoError(t, m.Save(ctx, "json://"+path+"?mode=w"))

	other := newTestStore(t)
	loaded, err := other.Load(ctx, "json://"+path)
	require.NoError(t, err)
	lm, _ := loaded.Metadata()
	assert.Equal(t, []types.Relation{types.Rel("Point", "subClassOf", "Thing")}, lm.MetaRelations())

	rels := mustGet(t, lm.Instance, "relations")
	assert.Equal(t, 1, rels.Len())
}

func TestParseMetadataFromNameVersionNamespace(t *testing.T) {
	s := NewStore()
	doc := `{
  "name": "Atom",
  "version": "0.2",
  "namespace": "http://onto-ns.com/meta/",
  "description": "An atom.",
  "dimensions": [{"name": "ncoords"}],
  "properties": [
    {"name": "symbol", "type": "string"},
    {"name": "position", "type": "float64", "dims": ["ncoords"], "unit": "Å"}
  ]
}`
	inst, err := s.FromJSON(context.Background(), []byte(doc))
	require.NoError(t, err)
	m, ok := inst.Metadata()
	require.True(t, ok)
	assert.Equal(t, "http://onto-ns.com/meta/0.2/Atom", m.URI())

	p, err := m.Property("position")
	require.NoError(t, err)
	assert.Equal(t, []string{"ncoords"}, p.Shape)
	assert.Equal(t, "Å", p.Unit)
}

func TestParseMetadataRejectsMismatchedUUID(t *testing.T) {
	s := NewStore()
	doc := `{
  "uri": "http://onto-ns.com/meta/0.1/Thing",
  "uuid": "00000000-0000-5000-8000-000000000000",
  "dimensions": {},
  "properties": {}
}`
	_, err := s.FromJSON(context.Background(), []byte(doc))
	require.Error(t, err)
	assert.True(t, fault.Is(err, fault.SchemaViolation), "got %v", err)
	assert.Contains(t, err.Error(), "http://onto-ns.com/meta/0.1/Thing")
}

func TestMetaURI(t *testing.T) {
	uri := JoinMetaURI("MyEntity", "0.1", "http://onto-ns.com/meta/")
	assert.Equal(t, "http://onto-ns.com/meta/0.1/MyEntity", uri)

	name, version, namespace, err := SplitMetaURI(uri)
	require.NoError(t, err)
	assert.Equal(t, "MyEntity", name)
	assert.Equal(t, "0.1", version)
	assert.Equal(t, "http://onto-ns.com/meta", namespace)

	for _, bad := range []string{"", "name", "/0.1/x", "ns/0.1/", "ns//x"} {
		_, _, _, err := SplitMetaURI(bad)
		assert.True(t, fault.Is(err, fault.InvalidInput), "%q: got %v", bad, err)
	}
}
