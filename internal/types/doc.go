// Package types is the registry of primitive property types.
//
// A Type pairs a Kind with a byte width. Numeric kinds and the fixed-width
// stringN and blobN kinds are stored inline in an instance buffer and have
// a size and alignment. Variable-length strings and relation triples are
// stored out of line.
package types
