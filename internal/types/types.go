package types

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/istore/internal/fault"
)

// Kind is the primitive category of a property type.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindBool
	KindInt
	KindUint
	KindFloat
	KindFixString
	KindString
	KindBlob
	KindRelation
)

var kindNames = [...]string{
	KindInvalid:   "invalid",
	KindBool:      "bool",
	KindInt:       "int",
	KindUint:      "uint",
	KindFloat:     "float",
	KindFixString: "fixstring",
	KindString:    "string",
	KindBlob:      "blob",
	KindRelation:  "relation",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// Type describes a property type: its kind and, where relevant, its byte
// width. Size is the integer/float width for numeric kinds and n for
// stringN and blobN. It is zero for string and relation, which are
// stored outside the fixed-size buffer.
type Type struct {
	Kind Kind
	Size int
}

// Common types.
var (
	TypeBool     = Type{Kind: KindBool, Size: 1}
	TypeInt8     = Type{Kind: KindInt, Size: 1}
	TypeInt16    = Type{Kind: KindInt, Size: 2}
	TypeInt32    = Type{Kind: KindInt, Size: 4}
	TypeInt64    = Type{Kind: KindInt, Size: 8}
	TypeUint8    = Type{Kind: KindUint, Size: 1}
	TypeUint16   = Type{Kind: KindUint, Size: 2}
	TypeUint32   = Type{Kind: KindUint, Size: 4}
	TypeUint64   = Type{Kind: KindUint, Size: 8}
	TypeFloat32  = Type{Kind: KindFloat, Size: 4}
	TypeFloat64  = Type{Kind: KindFloat, Size: 8}
	TypeString   = Type{Kind: KindString}
	TypeRelation = Type{Kind: KindRelation}
)

// FixStringOf returns the type of NUL-padded strings of n bytes.
func FixStringOf(n int) Type { return Type{Kind: KindFixString, Size: n} }

// BlobOf returns the type of opaque byte blobs of n bytes.
func BlobOf(n int) Type { return Type{Kind: KindBlob, Size: n} }

// aliases maps the short names accepted in documents to sized types.
var aliases = map[string]Type{
	"bool":     TypeBool,
	"boolean":  TypeBool,
	"int":      TypeInt32,
	"int8":     TypeInt8,
	"int16":    TypeInt16,
	"int32":    TypeInt32,
	"int64":    TypeInt64,
	"integer":  TypeInt32,
	"uint":     TypeUint32,
	"uint8":    TypeUint8,
	"uint16":   TypeUint16,
	"uint32":   TypeUint32,
	"uint64":   TypeUint64,
	"float":    TypeFloat32,
	"float32":  TypeFloat32,
	"float64":  TypeFloat64,
	"double":   TypeFloat64,
	"string":   TypeString,
	"str":      TypeString,
	"relation": TypeRelation,
}

// Parse parses a type name as found in the "type" field of a property
// definition. Besides the fixed names, "stringN" and "blobN" give
// fixed-width strings and blobs of N bytes.
func Parse(name string) (Type, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if t, ok := aliases[n]; ok {
		return t, nil
	}
	for _, prefix := range []string{"string", "blob"} {
		rest, ok := strings.CutPrefix(n, prefix)
		if !ok || rest == "" {
			continue
		}
		size, err := strconv.Atoi(rest)
		if err != nil || size <= 0 {
			break
		}
		if prefix == "string" {
			return FixStringOf(size), nil
		}
		return BlobOf(size), nil
	}
	return Type{}, fault.New(fault.InvalidInput, "unknown property type", name)
}

// MustParse is like Parse but panics on error.
func MustParse(name string) Type {
	t, err := Parse(name)
	if err != nil {
		panic(err)
	}
	return t
}

// String returns the canonical type name, the one written on save.
func (t Type) String() string {
	switch t.Kind {
	case KindBool, KindString, KindRelation:
		return t.Kind.String()
	case KindInt, KindUint, KindFloat:
		return fmt.Sprintf("%s%d", t.Kind, t.Size*8)
	case KindFixString:
		return fmt.Sprintf("string%d", t.Size)
	case KindBlob:
		return fmt.Sprintf("blob%d", t.Size)
	default:
		return "invalid"
	}
}

// Fixed reports whether values of t live in the instance's fixed-size
// buffer. Variable-length strings and relations live in side pools.
func (t Type) Fixed() bool {
	switch t.Kind {
	case KindString, KindRelation, KindInvalid:
		return false
	default:
		return true
	}
}

// ElemSize is the number of buffer bytes used by one element.
func (t Type) ElemSize() int {
	if !t.Fixed() {
		return 0
	}
	return t.Size
}

// Align is the alignment of one element in the fixed-size buffer.
// Byte-oriented kinds are unaligned.
func (t Type) Align() int {
	switch t.Kind {
	case KindInt, KindUint, KindFloat:
		return t.Size
	default:
		return 1
	}
}

// Numeric reports whether t is an integer or floating point type.
func (t Type) Numeric() bool {
	return t.Kind == KindInt || t.Kind == KindUint || t.Kind == KindFloat
}

// Valid reports whether t is a well-formed type.
func (t Type) Valid() bool {
	switch t.Kind {
	case KindBool:
		return t.Size == 1
	case KindInt, KindUint:
		return t.Size == 1 || t.Size == 2 || t.Size == 4 || t.Size == 8
	case KindFloat:
		return t.Size == 4 || t.Size == 8
	case KindFixString, KindBlob:
		return t.Size > 0
	case KindString, KindRelation:
		return t.Size == 0
	default:
		return false
	}
}
