package ir

import (
	"slices"
	"unicode/utf16"
)

// Value is a sealed interface over the document value kinds.
// Only Null, String, Int, Uint, Float, Bool, Array and *Object implement it.
type Value interface {
	irValue() // Sealed - only these types implement it
}

// Null represents a JSON null.
type Null struct{}

func (Null) irValue() {}

// String represents a string value.
type String string

func (String) irValue() {}

// Int represents an integer value that fits in int64.
type Int int64

func (Int) irValue() {}

// Uint represents an integer value above MaxInt64.
type Uint uint64

func (Uint) irValue() {}

// Float represents a number with a fraction or exponent.
type Float float64

func (Float) irValue() {}

// Bool represents a boolean value.
type Bool bool

func (Bool) irValue() {}

// Array represents an ordered list of values.
type Array []Value

func (Array) irValue() {}

// Member is a key-value pair used to build objects.
type Member struct {
	Key   string
	Value Value
}

// M is a shorthand for Member.
// Example: NewObject(M("uri", String(uri)), M("dimensions", NewObject()))
func M(key string, v Value) Member {
	return Member{Key: key, Value: v}
}

// Object is a string-keyed mapping that remembers insertion order.
// The zero value is not usable; create objects with NewObject.
type Object struct {
	keys []string
	vals map[string]Value
}

func (*Object) irValue() {}

// NewObject creates an object holding members in the given order.
func NewObject(members ...Member) *Object {
	o := &Object{vals: make(map[string]Value, len(members))}
	for _, m := range members {
		o.Set(m.Key, m.Value)
	}
	return o
}

// Set assigns key. A new key is appended; an existing key keeps its position.
func (o *Object) Set(key string, v Value) {
	if _, ok := o.vals[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.vals[key] = v
}

// Get returns the value stored under key.
func (o *Object) Get(key string) (Value, bool) {
	if o == nil {
		return nil, false
	}
	v, ok := o.vals[key]
	return v, ok
}

// Has reports whether key is present.
func (o *Object) Has(key string) bool {
	_, ok := o.Get(key)
	return ok
}

// Delete removes key, if present.
func (o *Object) Delete(key string) {
	if _, ok := o.vals[key]; !ok {
		return
	}
	delete(o.vals, key)
	o.keys = slices.DeleteFunc(o.keys, func(k string) bool { return k == key })
}

// Len returns the number of members.
func (o *Object) Len() int {
	if o == nil {
		return 0
	}
	return len(o.keys)
}

// Keys returns the keys in insertion order.
func (o *Object) Keys() []string {
	if o == nil {
		return nil
	}
	return slices.Clone(o.keys)
}

// Members returns the members in insertion order.
func (o *Object) Members() []Member {
	if o == nil {
		return nil
	}
	out := make([]Member, len(o.keys))
	for i, k := range o.keys {
		out[i] = Member{Key: k, Value: o.vals[k]}
	}
	return out
}

// GetString returns the string stored under key.
// ok is false when the key is absent or not a string.
func (o *Object) GetString(key string) (string, bool) {
	v, _ := o.Get(key)
	s, ok := v.(String)
	return string(s), ok
}

// GetObject returns the object stored under key.
func (o *Object) GetObject(key string) (*Object, bool) {
	v, _ := o.Get(key)
	obj, ok := v.(*Object)
	return obj, ok
}

// Clone returns a deep copy of o.
func (o *Object) Clone() *Object {
	if o == nil {
		return nil
	}
	c := &Object{keys: slices.Clone(o.keys), vals: make(map[string]Value, len(o.vals))}
	for k, v := range o.vals {
		c.vals[k] = Clone(v)
	}
	return c
}

// Clone returns a deep copy of v.
func Clone(v Value) Value {
	switch val := v.(type) {
	case *Object:
		return val.Clone()
	case Array:
		out := make(Array, len(val))
		for i, e := range val {
			out[i] = Clone(e)
		}
		return out
	default:
		return v
	}
}

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
// Go's string comparison uses UTF-8 bytes, which orders some keys differently.
func (o *Object) SortedKeys() []string {
	keys := o.Keys()
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

// compareKeysRFC8785 compares strings by UTF-16 code units.
func compareKeysRFC8785(a, b string) int {
	return slices.Compare(utf16.Encode([]rune(a)), utf16.Encode([]rune(b)))
}

// ToAny converts v to plain Go values: map[string]any, []any, string,
// int64, uint64, float64, bool or nil.
func ToAny(v Value) any {
	switch val := v.(type) {
	case String:
		return string(val)
	case Int:
		return int64(val)
	case Uint:
		return uint64(val)
	case Float:
		return float64(val)
	case Bool:
		return bool(val)
	case Array:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = ToAny(e)
		}
		return out
	case *Object:
		out := make(map[string]any, val.Len())
		for _, m := range val.Members() {
			out[m.Key] = ToAny(m.Value)
		}
		return out
	default:
		return nil
	}
}
