// Package testutil holds entity documents and helpers shared by tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// MyEntityURI is the uri of the MyEntity fixture.
const MyEntityURI = "http://onto-ns.com/meta/0.1/MyEntity"

// MyEntityUUID is the uuid derived from MyEntityURI.
const MyEntityUUID = "a0e63529-3397-5c4f-a56c-14bf07ecc219"

// MyEntityJSON is a metadata document with two dimensions and one
// property of every type family, scalar and array.
const MyEntityJSON = `{
  "uri": "http://onto-ns.com/meta/0.1/MyEntity",
  "meta": "http://onto-ns.com/meta/0.3/EntitySchema",
  "description": "An example entity.",
  "dimensions": {
    "N": "Number of elements along the first axis.",
    "M": "Number of elements along the second axis."
  },
  "properties": {
    "a-blob": {
      "type": "blob16",
      "description": "A blob."
    },
    "a-blob-array": {
      "type": "blob4",
      "shape": ["N", "N"],
      "description": "A blob array."
    },
    "a-bool": {
      "type": "bool",
      "description": "A boolean."
    },
    "a-bool-array": {
      "type": "bool",
      "shape": ["N"],
      "description": "A boolean array."
    },
    "an-int": {
      "type": "int",
      "description": "An integer."
    },
    "an-int-array": {
      "type": "int",
      "shape": ["M"],
      "description": "An integer array."
    },
    "a-float": {
      "type": "float",
      "unit": "m",
      "description": "A float."
    },
    "a-float64-array": {
      "type": "float64",
      "shape": ["M"],
      "unit": "m",
      "description": "A float64 array."
    },
    "a-fixstring": {
      "type": "string10",
      "description": "A fixed string."
    },
    "a-fixstring-array": {
      "type": "string3",
      "shape": ["N", "N"],
      "description": "A fixed string array."
    },
    "a-string": {
      "type": "string",
      "description": "A string."
    },
    "a-string-array": {
      "type": "string",
      "shape": ["N", "M"],
      "description": "A string array."
    },
    "a-relation": {
      "type": "relation",
      "description": "A relation."
    },
    "a-relation-array": {
      "type": "relation",
      "shape": ["N"],
      "description": "A relation array."
    }
  }
}
`

// InvalidEntityJSON lacks the required dimensions member.
const InvalidEntityJSON = `{
  "uri": "http://onto-ns.com/ex/0.1/test",
  "description": "Entity without dimensions.",
  "properties": {
    "name": {
      "type": "string",
      "description": "Name."
    }
  }
}
`

// WriteFile writes content to name inside a fresh temporary directory
// and returns the path.
func WriteFile(t testing.TB, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}
