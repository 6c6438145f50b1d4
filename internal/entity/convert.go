package entity

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"reflect"
	"unicode/utf8"

	"github.com/roach88/istore/internal/fault"
	"github.com/roach88/istore/internal/ir"
	"github.com/roach88/istore/internal/types"
)

// encoded is a fully converted property value, ready to be copied into
// an instance.
type encoded struct {
	raw  []byte
	strs []string
	rels []types.Relation
}

func encodeValue(p Property, shape []int, value any) (encoded, error) {
	if a, ok := value.(Array); ok {
		value = a.Interface()
	}
	elems, err := flatten(value, shape, nil, p.Name)
	if err != nil {
		return encoded{}, err
	}

	var enc encoded
	switch p.Type.Kind {
	case types.KindString:
		enc.strs = make([]string, len(elems))
		for i, e := range elems {
			s, ok := stringValue(e)
			if !ok {
				return encoded{}, convError(p.Name, i, "want string, got %T", e)
			}
			enc.strs[i] = s
		}
	case types.KindRelation:
		enc.rels = make([]types.Relation, len(elems))
		for i, e := range elems {
			r, ok := relationValue(e)
			if !ok {
				return encoded{}, convError(p.Name, i,
					"want (subject, predicate, object) or a mapping with keys s, p, o, got %T", e)
			}
			enc.rels[i] = r
		}
	default:
		n := p.Type.ElemSize()
		enc.raw = make([]byte, len(elems)*n)
		for i, e := range elems {
			if err := putFixed(enc.raw[i*n:(i+1)*n], p, i, e); err != nil {
				return encoded{}, err
			}
		}
	}
	return enc, nil
}

// flatten walks value to the depth of shape, checking each list length,
// and appends the leaves to out in row-major order.
func flatten(value any, shape []int, out []any, name string) ([]any, error) {
	if len(shape) == 0 {
		return append(out, value), nil
	}
	items, ok := listItems(value)
	if !ok {
		return nil, fault.New(fault.ShapeMismatch, "value shape differs from property shape", name).
			WithDetail("want a list of %d elements, got %T", shape[0], value)
	}
	if len(items) != shape[0] {
		return nil, fault.New(fault.ShapeMismatch, "value shape differs from property shape", name).
			WithDetail("want %d elements, got %d", shape[0], len(items))
	}
	var err error
	for _, item := range items {
		if out, err = flatten(item, shape[1:], out, name); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// listItems returns the elements of a list-like value.
func listItems(value any) ([]any, bool) {
	switch l := value.(type) {
	case nil, string:
		return nil, false
	case []any:
		return l, true
	case ir.Array:
		out := make([]any, len(l))
		for i, e := range l {
			out[i] = e
		}
		return out, true
	case ir.Value:
		return nil, false
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func convError(name string, elem int, format string, args ...any) error {
	return fault.New(fault.InvalidInput, "value cannot be stored in property", name).
		WithDetail("element %d: "+format, append([]any{elem}, args...)...)
}

func putFixed(dst []byte, p Property, elem int, v any) error {
	t := p.Type
	switch t.Kind {
	case types.KindBool:
		b, ok := boolValue(v)
		if !ok {
			return convError(p.Name, elem, "want bool, got %T", v)
		}
		if b {
			dst[0] = 1
		}
	case types.KindInt:
		n, err := intValue(v, t.Size*8)
		if err != nil {
			return convError(p.Name, elem, "%v", err)
		}
		putUint(dst, uint64(n))
	case types.KindUint:
		n, err := uintValue(v, t.Size*8)
		if err != nil {
			return convError(p.Name, elem, "%v", err)
		}
		putUint(dst, n)
	case types.KindFloat:
		f, err := floatValue(v, t.Size*8)
		if err != nil {
			return convError(p.Name, elem, "%v", err)
		}
		if t.Size == 4 {
			binary.LittleEndian.PutUint32(dst, math.Float32bits(float32(f)))
		} else {
			binary.LittleEndian.PutUint64(dst, math.Float64bits(f))
		}
	case types.KindFixString:
		s, ok := stringValue(v)
		if !ok {
			return convError(p.Name, elem, "want string, got %T", v)
		}
		copy(dst, truncateUTF8(s, len(dst)))
	case types.KindBlob:
		b, err := blobValue(v, len(dst))
		if err != nil {
			return convError(p.Name, elem, "%v", err)
		}
		if len(b) != len(dst) {
			return fault.New(fault.ShapeMismatch, "blob size differs from property width", p.Name).
				WithDetail("element %d: want exactly %d bytes, got %d", elem, len(dst), len(b))
		}
		copy(dst, b)
	}
	return nil
}

func putUint(dst []byte, v uint64) {
	switch len(dst) {
	case 1:
		dst[0] = byte(v)
	case 2:
		binary.LittleEndian.PutUint16(dst, uint16(v))
	case 4:
		binary.LittleEndian.PutUint32(dst, uint32(v))
	default:
		binary.LittleEndian.PutUint64(dst, v)
	}
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// number is a numeric input value of one of three kinds.
type number struct {
	kind byte // 'i', 'u' or 'f'
	i    int64
	u    uint64
	f    float64
}

func asNumber(v any) (number, bool) {
	switch n := v.(type) {
	case int:
		return number{kind: 'i', i: int64(n)}, true
	case int8:
		return number{kind: 'i', i: int64(n)}, true
	case int16:
		return number{kind: 'i', i: int64(n)}, true
	case int32:
		return number{kind: 'i', i: int64(n)}, true
	case int64:
		return number{kind: 'i', i: n}, true
	case ir.Int:
		return number{kind: 'i', i: int64(n)}, true
	case uint:
		return number{kind: 'u', u: uint64(n)}, true
	case uint8:
		return number{kind: 'u', u: uint64(n)}, true
	case uint16:
		return number{kind: 'u', u: uint64(n)}, true
	case uint32:
		return number{kind: 'u', u: uint64(n)}, true
	case uint64:
		return number{kind: 'u', u: n}, true
	case ir.Uint:
		return number{kind: 'u', u: uint64(n)}, true
	case float32:
		return number{kind: 'f', f: float64(n)}, true
	case float64:
		return number{kind: 'f', f: n}, true
	case ir.Float:
		return number{kind: 'f', f: float64(n)}, true
	}
	return number{}, false
}

type convErr string

func (e convErr) Error() string { return string(e) }

const (
	errNotNumber  convErr = "not a number"
	errNotInteger convErr = "not an integer"
	errRange      convErr = "value out of range"
	errNotFinite  convErr = "not a finite number"
)

func intValue(v any, bits int) (int64, error) {
	n, ok := asNumber(v)
	if !ok {
		return 0, errNotNumber
	}
	var x int64
	switch n.kind {
	case 'i':
		x = n.i
	case 'u':
		if n.u > math.MaxInt64 {
			return 0, errRange
		}
		x = int64(n.u)
	default:
		if n.f != math.Trunc(n.f) || math.IsInf(n.f, 0) {
			return 0, errNotInteger
		}
		if n.f < math.MinInt64 || n.f >= math.MaxInt64 {
			return 0, errRange
		}
		x = int64(n.f)
	}
	if bits < 64 {
		lo, hi := int64(-1)<<(bits-1), int64(1)<<(bits-1)-1
		if x < lo || x > hi {
			return 0, errRange
		}
	}
	return x, nil
}

func uintValue(v any, bits int) (uint64, error) {
	n, ok := asNumber(v)
	if !ok {
		return 0, errNotNumber
	}
	var x uint64
	switch n.kind {
	case 'i':
		if n.i < 0 {
			return 0, errRange
		}
		x = uint64(n.i)
	case 'u':
		x = n.u
	default:
		if n.f != math.Trunc(n.f) || math.IsInf(n.f, 0) {
			return 0, errNotInteger
		}
		if n.f < 0 || n.f >= math.MaxUint64 {
			return 0, errRange
		}
		x = uint64(n.f)
	}
	if bits < 64 && x > uint64(1)<<bits-1 {
		return 0, errRange
	}
	return x, nil
}

func floatValue(v any, bits int) (float64, error) {
	n, ok := asNumber(v)
	if !ok {
		return 0, errNotNumber
	}
	var f float64
	switch n.kind {
	case 'i':
		f = float64(n.i)
	case 'u':
		f = float64(n.u)
	default:
		f = n.f
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errNotFinite
	}
	if bits == 32 && math.Abs(f) > math.MaxFloat32 {
		return 0, errRange
	}
	return f, nil
}

func boolValue(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case ir.Bool:
		return bool(b), true
	}
	return false, false
}

func stringValue(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case ir.String:
		return string(s), true
	case []byte:
		return string(s), true
	}
	return "", false
}

// blobValue accepts raw bytes, a hex string, or a fixed-width integer
// exactly width bytes wide, stored little-endian like the rest of the
// instance buffer.
func blobValue(v any, width int) ([]byte, error) {
	var s string
	switch b := v.(type) {
	case []byte:
		return b, nil
	case string:
		s = b
	case ir.String:
		s = string(b)
	case int8, int16, int32, int64, uint8, uint16, uint32, uint64:
		size := binary.Size(b)
		if size != width {
			return nil, convErr(fmt.Sprintf("%T is %d bytes wide, want %d", v, size, width))
		}
		out, err := binary.Append(nil, binary.LittleEndian, b)
		if err != nil {
			return nil, convErr(err.Error())
		}
		return out, nil
	default:
		return nil, convErr(fmt.Sprintf("want bytes, a hex string or a %d-byte integer, got %T", width, v))
	}
	out, err := hex.DecodeString(s)
	if err != nil {
		return nil, convErr("invalid hex string: " + err.Error())
	}
	return out, nil
}

// relationValue accepts a types.Relation, a three-element list of
// strings, or a mapping with keys s, p, o or subject, predicate, object.
func relationValue(v any) (types.Relation, bool) {
	switch r := v.(type) {
	case types.Relation:
		return r, true
	case *types.Relation:
		if r == nil {
			return types.Relation{}, false
		}
		return *r, true
	case map[string]string:
		return relationFromMap(func(k string) (string, bool) {
			s, ok := r[k]
			return s, ok
		})
	case map[string]any:
		return relationFromMap(func(k string) (string, bool) {
			return stringValue(r[k])
		})
	case *ir.Object:
		return relationFromMap(r.GetString)
	}
	items, ok := listItems(v)
	if !ok || len(items) != 3 {
		return types.Relation{}, false
	}
	var triple [3]string
	for i, item := range items {
		if triple[i], ok = stringValue(item); !ok {
			return types.Relation{}, false
		}
	}
	return types.Rel(triple[0], triple[1], triple[2]), true
}

func relationFromMap(get func(string) (string, bool)) (types.Relation, bool) {
	for _, keys := range [][3]string{{"s", "p", "o"}, {"subject", "predicate", "object"}} {
		s, ok1 := get(keys[0])
		p, ok2 := get(keys[1])
		o, ok3 := get(keys[2])
		if ok1 && ok2 && ok3 {
			return types.Rel(s, p, o), true
		}
	}
	return types.Relation{}, false
}
