package entity

import (
	"strings"

	"github.com/roach88/istore/internal/fault"
)

// Well-known metadata URIs.
const (
	// BasicMetadataSchemaURI is the root of every meta chain. It is its own meta.
	BasicMetadataSchemaURI = "http://onto-ns.com/meta/0.1/BasicMetadataSchema"

	// EntitySchemaURI is the meta of ordinary entities.
	EntitySchemaURI = "http://onto-ns.com/meta/0.3/EntitySchema"

	// CollectionEntityURI is the meta of collections.
	CollectionEntityURI = "http://onto-ns.com/meta/0.1/Collection"
)

// JoinMetaURI builds "namespace/version/name".
func JoinMetaURI(name, version, namespace string) string {
	return strings.TrimSuffix(namespace, "/") + "/" + version + "/" + name
}

// SplitMetaURI splits a metadata URI into name, version and namespace.
func SplitMetaURI(uri string) (name, version, namespace string, err error) {
	i := strings.LastIndexByte(uri, '/')
	if i <= 0 || i == len(uri)-1 {
		return "", "", "", fault.New(fault.InvalidInput, "metadata uri must be namespace/version/name", uri)
	}
	j := strings.LastIndexByte(uri[:i], '/')
	if j <= 0 || j == i-1 {
		return "", "", "", fault.New(fault.InvalidInput, "metadata uri must be namespace/version/name", uri)
	}
	return uri[i+1:], uri[j+1 : i], uri[:j], nil
}
