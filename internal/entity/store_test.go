package entity

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/istore/internal/fault"
	"github.com/roach88/istore/internal/ident"
	"github.com/roach88/istore/internal/storage/builtin"
	"github.com/roach88/istore/internal/testutil"
)

func newTestStore(t *testing.T, opts ...StoreOption) *Store {
	t.Helper()
	return NewStore(append([]StoreOption{WithRegistry(builtin.Registry())}, opts...)...)
}

// loadMyEntity writes the MyEntity fixture to a temporary file, loads it
// into s and returns the metadata with its path.
func loadMyEntity(t *testing.T, s *Store) (*Metadata, string) {
	t.Helper()
	path := testutil.WriteFile(t, "myentity.json", testutil.MyEntityJSON)
	inst, err := s.Load(context.Background(), "json://"+path)
	require.NoError(t, err)
	m, ok := inst.Metadata()
	require.True(t, ok, "loaded %v is not metadata", inst)
	return m, path
}

func TestNewStoreHoldsRootSchemas(t *testing.T) {
	s := NewStore()

	assert.Equal(t, 3, s.Len())
	for _, uri := range []string{BasicMetadataSchemaURI, EntitySchemaURI, CollectionEntityURI} {
		assert.True(t, s.Has(uri), uri)
		assert.True(t, s.Has(ident.MustDerive(uri)), uri)
		assert.True(t, IsRootSchema(uri), uri)
	}
	assert.False(t, IsRootSchema(testutil.MyEntityURI))
}

func TestLoadMyEntity(t *testing.T) {
	s := newTestStore(t)
	m, _ := loadMyEntity(t, s)

	assert.Equal(t, testutil.MyEntityUUID, m.UUID())
	assert.Equal(t, testutil.MyEntityURI, m.URI())
	assert.Equal(t, EntitySchemaURI, m.Meta().URI())
	assert.Equal(t, map[string]int{"ndimensions": 2, "nproperties": 14}, m.Dimensions())
	assert.True(t, m.IsMeta())
	assert.False(t, m.IsData())
	assert.False(t, m.IsMetaMeta())
	assert.Equal(t, []string{"N", "M"}, m.DimensionNames())
	assert.Len(t, m.PropertyNames(), 14)
	assert.Equal(t, 1, m.RefCount())

	p, err := m.Property("a-blob-array")
	require.NoError(t, err)
	assert.Equal(t, "blob4", p.Type.String())
	assert.Equal(t, []string{"N", "N"}, p.Shape)
	assert.Equal(t, "A blob array.", p.Description)
	assert.Empty(t, p.Unit)
}

func TestLoadSameEntityTwiceSharesInstance(t *testing.T) {
	s := newTestStore(t)
	m, path := loadMyEntity(t, s)

	again, err := s.LoadLocation(context.Background(), "json", path, "", "")
	require.NoError(t, err)
	assert.Same(t, m.Instance, again)
	assert.Equal(t, 2, m.RefCount())
}

func TestSaveMetadataRefusesOverwrite(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	m, _ := loadMyEntity(t, s)
	path := filepath.Join(t.TempDir(), "saved.json")

	require.NoError(t, m.Save(ctx, "json://"+path+"?mode=w"))
	err := m.Save(ctx, "json://"+path)
	require.Error(t, err)
	assert.True(t, fault.Is(err, fault.ImmutableTarget), "got %v", err)

	require.NoError(t, m.SaveLocation(ctx, "json", path, "mode=w"))

	other := newTestStore(t)
	loaded, err := other.Load(ctx, "json://"+path)
	require.NoError(t, err)
	assert.Equal(t, testutil.MyEntityUUID, loaded.UUID())
	lm, ok := loaded.Metadata()
	require.True(t, ok)
	assert.Equal(t, m.PropertyDefs(), lm.PropertyDefs())
	assert.Equal(t, m.DimensionDefs(), lm.DimensionDefs())
}

func TestSaveMetadataAsArrays(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	m, _ := loadMyEntity(t, s)
	path := filepath.Join(t.TempDir(), "arrays.json")

	require.NoError(t, m.Save(ctx, "json://"+path+"?mode=w;arrays=true"))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"name": "a-blob"`)

	other := newTestStore(t)
	loaded, err := other.Load(ctx, "json://"+path)
	require.NoError(t, err)
	lm, _ := loaded.Metadata()
	assert.Equal(t, m.PropertyNames(), lm.PropertyNames())
}

func TestLoadFailures(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	missing := filepath.Join(t.TempDir(), "non-existing-path.json")

	tests := []struct {
		name     string
		location string
		options  string
		kind     fault.Kind
	}{
		{"directory read", "/", "mode=r", fault.StorageIO},
		{"directory write", "/", "mode=w", fault.StorageIO},
		{"empty location", "", "", fault.StorageIO},
		{"missing file", missing, "mode=r", fault.StorageIO},
		{"missing file default mode", missing, "", fault.StorageIO},
		{"bad option", missing, "mode=x", fault.InvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.LoadLocation(ctx, "json", tt.location, tt.options, "")
			require.Error(t, err)
			assert.Equal(t, tt.kind, fault.KindOf(err), "got %v", err)
		})
	}

	_, err := s.LoadLocation(ctx, "nosuchdriver", missing, "", "")
	assert.True(t, fault.Is(err, fault.UnsupportedScheme), "got %v", err)
}

func TestSaveFailures(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	m, _ := loadMyEntity(t, s)

	for _, location := range []string{"", "/", filepath.Join(t.TempDir(), "no", "such", "dir.json")} {
		err := m.SaveLocation(ctx, "json", location, "mode=w")
		require.Error(t, err, location)
		assert.True(t, fault.Is(err, fault.StorageIO), "%q: got %v", location, err)
	}
}

func TestSchemaViolationMessage(t *testing.T) {
	s := newTestStore(t)

	_, err := s.FromJSON(context.Background(), []byte(testutil.InvalidEntityJSON))
	require.Error(t, err)
	assert.Equal(t,
		"SchemaViolationError: metadata does not conform to schema, please check dimensions, properties and/or relations: http://onto-ns.com/ex/0.1/test",
		err.Error())

	path := testutil.WriteFile(t, "invalid.json", testutil.InvalidEntityJSON)
	_, err = s.LoadLocation(context.Background(), "json", path, "", "")
	assert.True(t, fault.Is(err, fault.SchemaViolation), "got %v", err)
}

func TestFromJSONRejectsMalformedInput(t *testing.T) {
	s := newTestStore(t)

	_, err := s.FromJSON(context.Background(), []byte(`{"uri":`))
	assert.True(t, fault.Is(err, fault.InvalidInput), "got %v", err)

	_, err = s.FromJSON(context.Background(), []byte(`[1, 2]`))
	assert.True(t, fault.Is(err, fault.InvalidInput), "got %v", err)
}

func TestMetadataNotFound(t *testing.T) {
	s := newTestStore(t)
	doc := `{
  "uuid": "1f8a63d1-5b29-4c27-9d56-1d2a4b6c8e01",
  "meta": "http://onto-ns.com/meta/0.1/Unknown",
  "dimensions": {},
  "properties": {}
}`
	_, err := s.FromJSON(context.Background(), []byte(doc))
	require.Error(t, err)
	assert.True(t, fault.Is(err, fault.NotFound), "got %v", err)
	assert.Contains(t, err.Error(), "http://onto-ns.com/meta/0.1/Unknown")
}

func TestSearchPaths(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	_, metaPath := loadMyEntity(t, s)

	inst, err := s.NewInstance(testutil.MyEntityURI, []int{2, 3}, "")
	require.NoError(t, err)
	require.NoError(t, inst.Set("an-int", 42))
	instPath := filepath.Join(t.TempDir(), "inst.json")
	require.NoError(t, inst.Save(ctx, "json://"+instPath+"?mode=w"))

	bare := newTestStore(t)
	_, err = bare.Load(ctx, "json://"+instPath+"#"+inst.UUID())
	assert.True(t, fault.Is(err, fault.NotFound), "got %v", err)

	searching := newTestStore(t, WithSearchPaths("json://"+filepath.Join(t.TempDir(), "absent.json"), "json://"+metaPath))
	loaded, err := searching.Load(ctx, "json://"+instPath+"#"+inst.UUID())
	require.NoError(t, err)
	assert.Equal(t, inst.UUID(), loaded.UUID())
	assert.True(t, searching.Has(testutil.MyEntityURI))

	v, err := loaded.Get("an-int")
	require.NoError(t, err)
	assert.EqualValues(t, 42, v.Int(0))
}

func TestGetAddsReference(t *testing.T) {
	s := newTestStore(t)
	m, _ := loadMyEntity(t, s)

	inst, err := m.Instantiate(map[string]int{"N": 2, "M": 3}, nil, "newinst")
	require.NoError(t, err)
	assert.Equal(t, 1, inst.RefCount())
	assert.Equal(t, 2, m.RefCount())

	same, err := s.Get("newinst")
	require.NoError(t, err)
	assert.Same(t, inst, same)
	assert.Equal(t, 2, inst.RefCount())

	byUUID, err := s.Get(inst.UUID())
	require.NoError(t, err)
	assert.Same(t, inst, byUUID)
	assert.Equal(t, 3, inst.RefCount())

	found, ok := s.Lookup("newinst")
	assert.True(t, ok)
	assert.Same(t, inst, found)
	assert.Equal(t, 3, inst.RefCount())

	inst.Release()
	inst.Release()
	inst.Release()
	assert.False(t, s.Has("newinst"))
	assert.False(t, s.Has(inst.UUID()))
	assert.Equal(t, 1, m.RefCount())

	_, err = s.Get("newinst")
	assert.True(t, fault.Is(err, fault.NotFound), "got %v", err)
	_, err = inst.Get("an-int")
	assert.True(t, fault.Is(err, fault.NotFound), "got %v", err)
}

func TestReleaseFreesMetadataLast(t *testing.T) {
	s := newTestStore(t)
	m, _ := loadMyEntity(t, s)

	inst, err := s.NewInstance(testutil.MyEntityURI, []int{1, 1}, "")
	require.NoError(t, err)
	assert.Equal(t, 5, s.Len())

	m.Release()
	assert.True(t, s.Has(testutil.MyEntityURI), "metadata is held by its instance")
	assert.Equal(t, 1, m.RefCount())

	inst.Release()
	assert.False(t, s.Has(testutil.MyEntityURI))
	assert.Equal(t, 3, s.Len())
}

func TestReleaseInvariants(t *testing.T) {
	s := newTestStore(t)
	other := newTestStore(t)
	m, _ := loadMyEntity(t, s)

	inst, err := s.NewInstance(testutil.MyEntityURI, []int{1, 1}, "")
	require.NoError(t, err)

	assert.PanicsWithValue(t,
		"istore: invariant violated: release of instance "+inst.UUID()+" through a foreign store",
		func() { other.Release(inst) })

	inst.Release()
	assert.Panics(t, func() { inst.Release() }, "double release")

	assert.NotPanics(t, func() { s.Release(nil) })
	m.Release()
}

func TestRootSchemasArePinned(t *testing.T) {
	s := NewStore()

	root, err := s.Get(EntitySchemaURI)
	require.NoError(t, err)
	assert.Equal(t, 1, root.RefCount())
	root.Release()
	root.Release()
	assert.True(t, s.Has(EntitySchemaURI))
	assert.Equal(t, 1, root.RefCount())
}

func TestNewInstanceValidation(t *testing.T) {
	s := newTestStore(t)
	loadMyEntity(t, s)

	tests := []struct {
		name   string
		metaID string
		dims   []int
		kind   fault.Kind
	}{
		{"unknown metadata", "http://onto-ns.com/meta/0.1/Nope", []int{1}, fault.NotFound},
		{"too few dimensions", testutil.MyEntityURI, []int{1}, fault.InvalidInput},
		{"negative dimension", testutil.MyEntityURI, []int{1, -1}, fault.InvalidInput},
		{"schema", EntitySchemaURI, []int{0, 0}, fault.InvalidInput},
		{"collection", CollectionEntityURI, []int{0}, fault.InvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.NewInstance(tt.metaID, tt.dims, "")
			require.Error(t, err)
			assert.Equal(t, tt.kind, fault.KindOf(err), "got %v", err)
		})
	}
}

func TestDuplicateLabel(t *testing.T) {
	s := newTestStore(t)
	loadMyEntity(t, s)

	first, err := s.NewInstance(testutil.MyEntityURI, []int{2, 3}, "myid")
	require.NoError(t, err)
	_, err = s.NewInstance(testutil.MyEntityURI, []int{2, 3}, "myid")
	assert.True(t, fault.Is(err, fault.InvalidInput), "got %v", err)

	// A different shape derives a different uuid.
	second, err := s.NewInstance(testutil.MyEntityURI, []int{3, 2}, "myid")
	require.NoError(t, err)
	assert.NotEqual(t, first.UUID(), second.UUID())

	again, err := ident.DeriveInstance(testutil.MyEntityURI, []int{2, 3}, "myid")
	require.NoError(t, err)
	assert.Equal(t, first.UUID(), again)
}

func TestOpenStorageSession(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	loadMyEntity(t, s)
	path := filepath.Join(t.TempDir(), "session.json")

	st, err := s.OpenStorage(ctx, "json", path, "mode=w")
	require.NoError(t, err)
	assert.Equal(t, "json", st.Driver())
	assert.Equal(t, path, st.Location())

	var ids []string
	for i := 0; i < 3; i++ {
		inst, err := s.NewInstance(testutil.MyEntityURI, []int{1, i}, "")
		require.NoError(t, err)
		require.NoError(t, st.Save(ctx, inst))
		ids = append(ids, inst.UUID())
	}
	got, err := st.IDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, ids, got)
	require.NoError(t, st.Close())
	require.NoError(t, st.Close())

	_, err = st.Load(ctx, ids[0])
	assert.True(t, fault.Is(err, fault.StorageIO), "got %v", err)

	ro, err := s.OpenStorage(ctx, "json", path, "mode=r")
	require.NoError(t, err)
	defer ro.Close()
	inst, err := ro.Load(ctx, ids[1])
	require.NoError(t, err)
	assert.Equal(t, []int{1, 1}, inst.DimensionValues())

	err = ro.Save(ctx, inst)
	assert.True(t, fault.Is(err, fault.StorageIO), "got %v", err)
}

func TestUUIDsSorted(t *testing.T) {
	s := NewStore()
	ids := s.UUIDs()
	require.Len(t, ids, 3)
	assert.IsIncreasing(t, ids)
}

func TestFromJSONRejectsOversizedDimensions(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	loadMyEntity(t, s)
	before := s.Len()

	doc := `{
  "meta": "http://onto-ns.com/meta/0.1/MyEntity",
  "dimensions": {"N": 4611686018427387904, "M": 4},
  "properties": {}
}`
	var err error
	require.NotPanics(t, func() { _, err = s.FromJSON(ctx, []byte(doc)) })
	require.Error(t, err)
	assert.True(t, fault.Is(err, fault.InvalidInput), "got %v", err)

	beyondInt64 := `{
  "meta": "http://onto-ns.com/meta/0.1/MyEntity",
  "dimensions": {"N": 18446744073709551615, "M": 1},
  "properties": {}
}`
	require.NotPanics(t, func() { _, err = s.FromJSON(ctx, []byte(beyondInt64)) })
	assert.True(t, fault.Is(err, fault.SchemaViolation), "got %v", err)
	assert.Equal(t, before, s.Len())
}

func TestStoreConcurrentGetReleaseNewInstance(t *testing.T) {
	s := newTestStore(t)
	m, _ := loadMyEntity(t, s)
	shared, err := s.NewInstance(testutil.MyEntityURI, []int{1, 1}, "shared")
	require.NoError(t, err)

	baseLen := s.Len()
	baseMeta := m.RefCount()
	baseShared := shared.RefCount()

	const workers, rounds = 8, 50
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for r := range rounds {
				meta, err := s.Get(testutil.MyEntityURI)
				if err != nil {
					errs <- err
					return
				}
				ref, err := s.Get("shared")
				if err != nil {
					errs <- err
					return
				}
				inst, err := s.NewInstance(testutil.MyEntityURI, []int{2, 2}, fmt.Sprintf("w%d-%d", w, r))
				if err != nil {
					errs <- err
					return
				}
				if err := inst.Set("an-int", r); err != nil {
					errs <- err
					return
				}
				s.Has(inst.UUID())
				s.UUIDs()
				inst.Release()
				ref.Release()
				meta.Release()
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	assert.Equal(t, baseLen, s.Len())
	assert.Equal(t, baseMeta, m.RefCount())
	assert.Equal(t, baseShared, shared.RefCount())
	assert.False(t, s.Has("w0-0"))
}

func TestSaveSecondEntityIntoSingleEntityFile(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	m, _ := loadMyEntity(t, s)
	point := newPoint(t)
	require.NoError(t, s.AddMetadata(point))
	path := filepath.Join(t.TempDir(), "one.json")

	require.NoError(t, m.Save(ctx, "json://"+path+"?mode=w"))
	err := point.Save(ctx, "json://"+path)
	require.Error(t, err)
	assert.True(t, fault.Is(err, fault.ImmutableTarget), "got %v", err)

	other := newTestStore(t)
	loaded, err := other.Load(ctx, "json://"+path)
	require.NoError(t, err)
	assert.Equal(t, testutil.MyEntityUUID, loaded.UUID())
}
