package ident

import (
	"github.com/google/uuid"

	"github.com/roach88/istore/internal/fault"
	"github.com/roach88/istore/internal/ir"
)

// DomainInstance prefixes the canonical key of labelled instances so that an
// instance key can never collide with a bare URI. The version suffix enables
// future algorithm migration.
const DomainInstance = "istore/instance/v1"

// Namespace is the UUIDv5 namespace used for every derived identity.
// It is the RFC 4122 DNS namespace, which keeps derived metadata UUIDs
// identical to those produced by other implementations of the same scheme.
var Namespace = uuid.NameSpaceDNS

// Derive computes the UUID of the entity identified by uri.
// The same uri always yields the same UUID (version 5, SHA-1).
func Derive(uri string) (string, error) {
	if uri == "" {
		return "", fault.New(fault.InvalidInput, "cannot derive uuid from empty uri", "")
	}
	return uuid.NewSHA1(Namespace, []byte(uri)).String(), nil
}

// MustDerive is like Derive but panics on error.
// Use only in tests or with constant URIs.
func MustDerive(uri string) string {
	id, err := Derive(uri)
	if err != nil {
		panic(err)
	}
	return id
}

// DeriveInstance computes the UUID of a data instance.
//
// Without a label a random (version 4) UUID is returned. A label that is
// already a valid UUID is returned in canonical form. Any other label is
// combined with metaID and dims into an RFC 8785 canonical key, so
// re-deriving with the same inputs yields the same UUID.
func DeriveInstance(metaID string, dims []int, label string) (string, error) {
	if metaID == "" {
		return "", fault.New(fault.InvalidInput, "cannot derive instance uuid without metadata id", label)
	}
	values := make(ir.Array, len(dims))
	for i, d := range dims {
		if d < 0 {
			return "", fault.New(fault.InvalidInput, "negative dimension value", metaID).
				WithDetail("dimension %d is %d", i, d)
		}
		values[i] = ir.Int(d)
	}

	if label == "" {
		id, err := uuid.NewRandom()
		if err != nil {
			return "", fault.Wrap(fault.InvalidInput, err, "cannot generate random uuid", metaID)
		}
		return id.String(), nil
	}
	if id, ok := Parse(label); ok {
		return id, nil
	}

	key := ir.NewObject(
		ir.M("dims", values),
		ir.M("label", ir.String(label)),
		ir.M("meta", ir.String(metaID)),
	)
	canonical, err := ir.MarshalCanonical(key)
	if err != nil {
		return "", fault.Wrap(fault.InvalidInput, err, "cannot encode instance key", label)
	}
	return uuid.NewSHA1(Namespace, domainKey(DomainInstance, canonical)).String(), nil
}

// Resolve maps an arbitrary id to a UUID: a valid UUID is returned in
// canonical form, an empty id yields a random UUID, and anything else is
// passed through Derive.
func Resolve(id string) (string, error) {
	if id == "" {
		u, err := uuid.NewRandom()
		if err != nil {
			return "", fault.Wrap(fault.InvalidInput, err, "cannot generate random uuid", "")
		}
		return u.String(), nil
	}
	if u, ok := Parse(id); ok {
		return u, nil
	}
	return Derive(id)
}

// Parse returns the canonical form of s if it is a valid UUID.
func Parse(s string) (string, bool) {
	// uuid.Parse also accepts urn and brace forms; require the plain form
	if len(s) != 36 {
		return "", false
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return "", false
	}
	return u.String(), true
}

// Version returns the UUID version of id, or 0 if id is not a UUID.
func Version(id string) int {
	u, err := uuid.Parse(id)
	if err != nil {
		return 0
	}
	return int(u.Version())
}

// domainKey builds domain + 0x00 + data.
// The null byte separator prevents domain/data boundary ambiguity.
func domainKey(domain string, data []byte) []byte {
	key := make([]byte, 0, len(domain)+1+len(data))
	key = append(key, domain...)
	key = append(key, 0x00)
	return append(key, data...)
}
