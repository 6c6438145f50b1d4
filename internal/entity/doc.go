// Package entity implements self-describing metadata, the instances it
// describes and the Store that owns both.
//
// # Hierarchy
//
// Every Instance refers to the Metadata describing it. Metadata is itself
// an instance of a schema, and the chain ends at BasicMetadataSchema,
// which describes itself:
//
//	MyEntity instance -> MyEntity -> EntitySchema -> BasicMetadataSchema
//
// Class reports where an instance sits: data, meta or metameta.
//
// # Properties
//
// Property values live in one buffer per instance, laid out once from the
// resolved property shapes. Get returns an Array view; Set converts and
// checks a Go value before writing anything. Set accepts:
//
//   - bool for bool properties
//   - any Go integer or float with an integral value for ints and uints
//   - any Go integer or float for floats
//   - string for string and fixed-string properties (fixed strings are
//     truncated on a rune boundary)
//   - []byte or a hex string of exactly the blob width for blobs
//   - types.Relation, a three-element list or a mapping with keys
//     s, p, o or subject, predicate, object for relations
//
// Arrays are nested slices (of any element type) or ir.Array values
// matching the resolved shape.
//
// # Ownership
//
// Store.Get, Store.Load and Metadata.Instantiate return a reference the
// caller releases with Instance.Release. An instance holds a reference to
// its metadata, and a collection to each member, so metadata stays
// registered while instances of it exist.
package entity
