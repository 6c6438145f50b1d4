package ir

import (
	"bytes"

	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical produces RFC 8785 canonical JSON for hashing.
// This is the ONLY serialization that should be used when computing
// identities from structured input.
//
// Differences from Marshal:
//  1. Object keys sorted by UTF-16 code units (not insertion order)
//  2. Strings and keys are NFC normalized
//  3. Floats are rejected
//  4. Null is rejected
func MarshalCanonical(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := encode(&buf, v, true); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// normalize applies NFC at the serialization boundary so visually equal
// strings hash equally.
func normalize(s string) string {
	return norm.NFC.String(s)
}
