// Package ir provides the document representation exchanged between the
// entity model and storage drivers.
//
// This package contains value types and their JSON encodings only. It
// imports nothing internal; every other internal package may import it.
//
// Key design constraints:
//   - Object preserves member order. Dimension and property order in an
//     entity document is significant and must survive a load/save cycle.
//   - Numbers keep their kind: integers decode to Int (or Uint above
//     MaxInt64), anything with a fraction or exponent decodes to Float.
//   - MarshalCanonical (RFC 8785) is the only encoding used for identity
//     hashing. It sorts keys and forbids floats and null.
package ir
