package entity

import "github.com/roach88/istore/internal/types"

// Root schemas shared by every store. They are immutable and pinned.
var (
	basicMetadataSchema *Metadata
	entitySchema        *Metadata
	collectionEntity    *Metadata
)

func init() {
	schemaDims := []Dimension{
		{Name: "ndimensions", Description: "Number of dimensions."},
		{Name: "nproperties", Description: "Number of properties."},
	}
	schemaProps := []Property{
		{Name: "uri", Type: types.TypeString, Description: "Unique URI identifying the entity."},
		{Name: "description", Type: types.TypeString, Description: "Human-readable description of the entity."},
		{Name: "dimensions", Type: types.TypeString, Shape: []string{"ndimensions"}, Description: "Dimension names."},
		{Name: "properties", Type: types.TypeString, Shape: []string{"nproperties"}, Description: "Property names."},
	}

	basicMetadataSchema = mustRoot(BasicMetadataSchemaURI, nil, schemaDims, schemaProps,
		"Meta-metadata describing a basic metadata schema.")
	entitySchema = mustRoot(EntitySchemaURI, basicMetadataSchema, schemaDims, schemaProps,
		"Meta-metadata describing an entity.")
	collectionEntity = mustRoot(CollectionEntityURI, entitySchema,
		[]Dimension{{Name: "nrelations", Description: "Number of relations."}},
		[]Property{{Name: "relations", Type: types.TypeRelation, Shape: []string{"nrelations"},
			Description: "Array of relations (subject, predicate, object)."}},
		"Meta-data for collections.")
}

func mustRoot(uri string, meta *Metadata, dims []Dimension, props []Property, description string) *Metadata {
	m, err := newMetadata(uri, meta, dims, props, nil, description)
	if err != nil {
		panic(err)
	}
	m.frozen.Store(true)
	m.Instance.pinned = true
	m.Instance.refcount = 1
	return m
}

// roots returns the root schemas in dependency order.
func roots() []*Metadata {
	return []*Metadata{basicMetadataSchema, entitySchema, collectionEntity}
}

// IsRootSchema reports whether uri names one of the built-in schemas.
func IsRootSchema(uri string) bool {
	for _, r := range roots() {
		if r.uri == uri {
			return true
		}
	}
	return false
}
