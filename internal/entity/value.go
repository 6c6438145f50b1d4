package entity

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"math"
	"slices"
	"strconv"

	"github.com/roach88/istore/internal/fault"
	"github.com/roach88/istore/internal/ir"
	"github.com/roach88/istore/internal/types"
)

// Array is a typed view of a property value. Scalars have an empty shape
// and one element. Elements are addressed by their row-major flat index.
//
// For fixed-size types the view shares memory with the instance; it is
// invalidated when the instance is released.
type Array struct {
	typ   types.Type
	shape []int
	raw   []byte
	strs  []string
	rels  []types.Relation
}

func stringArray(shape []int, values ...string) Array {
	return Array{typ: types.TypeString, shape: shape, strs: values}
}

func relationArray(rels []types.Relation) Array {
	return Array{typ: types.TypeRelation, shape: []int{len(rels)}, rels: rels}
}

// Type returns the element type.
func (a Array) Type() types.Type { return a.typ }

// Shape returns the dimension sizes. It is empty for scalars.
func (a Array) Shape() []int { return slices.Clone(a.shape) }

// NDims returns the number of dimensions.
func (a Array) NDims() int { return len(a.shape) }

// Len returns the number of elements.
func (a Array) Len() int {
	n := 1
	for _, d := range a.shape {
		n *= d
	}
	return n
}

// Index converts a multi-dimensional index to a flat index.
func (a Array) Index(idx ...int) (int, error) {
	if len(idx) != len(a.shape) {
		return 0, fault.New(fault.ShapeMismatch, "index rank differs from array rank", "").
			WithDetail("got %d indices for shape %v", len(idx), a.shape)
	}
	flat := 0
	for k, i := range idx {
		if i < 0 || i >= a.shape[k] {
			return 0, fault.New(fault.ShapeMismatch, "index out of range", "").
				WithDetail("index %d of dimension %d with size %d", i, k, a.shape[k])
		}
		flat = flat*a.shape[k] + i
	}
	return flat, nil
}

func (a Array) elem(i int) []byte {
	n := a.typ.ElemSize()
	return a.raw[i*n : (i+1)*n]
}

// Bool returns element i of a bool array.
func (a Array) Bool(i int) bool {
	return a.elem(i)[0] != 0
}

// Int returns element i of an integer array, sign-extended.
func (a Array) Int(i int) int64 {
	b := a.elem(i)
	if a.typ.Kind == types.KindUint {
		return int64(a.Uint(i))
	}
	switch len(b) {
	case 1:
		return int64(int8(b[0]))
	case 2:
		return int64(int16(binary.LittleEndian.Uint16(b)))
	case 4:
		return int64(int32(binary.LittleEndian.Uint32(b)))
	default:
		return int64(binary.LittleEndian.Uint64(b))
	}
}

// Uint returns element i of an unsigned integer array.
func (a Array) Uint(i int) uint64 {
	b := a.elem(i)
	switch len(b) {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(binary.LittleEndian.Uint16(b))
	case 4:
		return uint64(binary.LittleEndian.Uint32(b))
	default:
		return binary.LittleEndian.Uint64(b)
	}
}

// Float returns element i of a floating point array.
func (a Array) Float(i int) float64 {
	b := a.elem(i)
	if len(b) == 4 {
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b))
}

// Str returns element i of a string or fixed-string array. Fixed strings
// end at the first NUL byte.
func (a Array) Str(i int) string {
	if a.typ.Kind == types.KindFixString {
		b := a.elem(i)
		if n := bytes.IndexByte(b, 0); n >= 0 {
			b = b[:n]
		}
		return string(b)
	}
	return a.strs[i]
}

// Blob returns a copy of element i of a blob array.
func (a Array) Blob(i int) []byte {
	return slices.Clone(a.elem(i))
}

// Relation returns element i of a relation array.
func (a Array) Relation(i int) types.Relation {
	return a.rels[i]
}

// Elem returns element i as a plain Go value: bool, int64, uint64,
// float64, string, []byte or types.Relation.
func (a Array) Elem(i int) any {
	switch a.typ.Kind {
	case types.KindBool:
		return a.Bool(i)
	case types.KindInt:
		return a.Int(i)
	case types.KindUint:
		return a.Uint(i)
	case types.KindFloat:
		return a.Float(i)
	case types.KindFixString, types.KindString:
		return a.Str(i)
	case types.KindBlob:
		return a.Blob(i)
	case types.KindRelation:
		return a.Relation(i)
	}
	return nil
}

// Interface returns the element of a scalar, or nested []any for arrays.
func (a Array) Interface() any {
	if len(a.shape) == 0 {
		return a.Elem(0)
	}
	next := 0
	var build func(depth int) any
	build = func(depth int) any {
		if depth == len(a.shape) {
			v := a.Elem(next)
			next++
			return v
		}
		out := make([]any, a.shape[depth])
		for k := range out {
			out[k] = build(depth + 1)
		}
		return out
	}
	return build(0)
}

// Value returns the document representation: nested lists per shape,
// blobs as hex strings and relations as [subject, predicate, object].
func (a Array) Value() ir.Value {
	next := 0
	var build func(depth int) ir.Value
	build = func(depth int) ir.Value {
		if depth == len(a.shape) {
			v := a.elemValue(next)
			next++
			return v
		}
		out := make(ir.Array, a.shape[depth])
		for k := range out {
			out[k] = build(depth + 1)
		}
		return out
	}
	return build(0)
}

func (a Array) elemValue(i int) ir.Value {
	switch a.typ.Kind {
	case types.KindBool:
		return ir.Bool(a.Bool(i))
	case types.KindInt:
		return ir.Int(a.Int(i))
	case types.KindUint:
		u := a.Uint(i)
		if u > math.MaxInt64 {
			return ir.Uint(u)
		}
		return ir.Int(int64(u))
	case types.KindFloat:
		return ir.Float(shortestFloat(a.Float(i), a.typ.Size*8))
	case types.KindFixString, types.KindString:
		return ir.String(a.Str(i))
	case types.KindBlob:
		return ir.String(hex.EncodeToString(a.elem(i)))
	case types.KindRelation:
		r := a.Relation(i)
		return ir.Array{ir.String(r.Subject), ir.String(r.Predicate), ir.String(r.Object)}
	}
	return ir.Null{}
}

// shortestFloat returns the float64 whose shortest decimal form equals
// the shortest form of f at the given bit size, so that float32 values
// are written as 42.3 rather than 42.29999923706055.
func shortestFloat(f float64, bitSize int) float64 {
	if bitSize == 64 || math.IsNaN(f) || math.IsInf(f, 0) {
		return f
	}
	s := strconv.FormatFloat(f, 'g', -1, bitSize)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return f
	}
	return v
}
