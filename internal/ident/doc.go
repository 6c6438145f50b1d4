// Package ident derives the UUIDs that identify metadata and instances.
//
// Metadata identity is UUIDv5 over the metadata URI in the DNS namespace.
// Labelled instances hash an RFC 8785 canonical key built from their
// metadata URI, dimension values and label, with domain separation.
// Unlabelled instances get a random version 4 UUID.
package ident
