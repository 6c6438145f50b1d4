package entity

import (
	"fmt"
	"slices"

	"github.com/roach88/istore/internal/fault"
	"github.com/roach88/istore/internal/ir"
	"github.com/roach88/istore/internal/types"
)

// Class is the level of an instance in the meta hierarchy.
type Class int

const (
	// ClassData is an ordinary data instance.
	ClassData Class = iota

	// ClassMeta is metadata describing data instances.
	ClassMeta

	// ClassMetaMeta is a schema describing metadata.
	ClassMetaMeta
)

func (c Class) String() string {
	switch c {
	case ClassData:
		return "data"
	case ClassMeta:
		return "meta"
	case ClassMetaMeta:
		return "metameta"
	default:
		return fmt.Sprintf("Class(%d)", int(c))
	}
}

// view serves dimensions and properties computed from another object
// instead of a property buffer. Metadata and collections are views.
type view interface {
	viewDims() []int
	viewGet(name string) (Array, error)
}

// Instance is a data object: a reference to its metadata, concrete
// dimension values and typed property storage laid out from both.
//
// Property access is not synchronized. Callers must not mutate the same
// instance from two goroutines without external locking.
type Instance struct {
	uuid  string
	label string
	meta  *Metadata
	dims  []int

	layout *layout
	raw    []byte
	strs   []string
	rels   []types.Relation

	view view

	// store, refcount and freed are guarded by store.mu.
	store    *Store
	refcount int
	pinned   bool
	freed    bool
}

func newInstance(meta *Metadata, dims []int, id, label string) (*Instance, error) {
	l, err := newLayout(meta, dims)
	if err != nil {
		return nil, err
	}
	return &Instance{
		uuid:   id,
		label:  label,
		meta:   meta,
		dims:   slices.Clone(dims),
		layout: l,
		raw:    make([]byte, l.size),
		strs:   make([]string, l.nstrs),
		rels:   make([]types.Relation, l.nrels),
	}, nil
}

// UUID returns the instance uuid.
func (i *Instance) UUID() string { return i.uuid }

// Label returns the label the instance was created with, if any.
func (i *Instance) Label() string { return i.label }

// URI returns the label of a data instance or the uri of metadata.
func (i *Instance) URI() string {
	if m, ok := i.view.(*Metadata); ok {
		return m.uri
	}
	return i.label
}

// Meta returns the metadata describing the instance.
func (i *Instance) Meta() *Metadata { return i.meta }

// Metadata returns the instance as metadata, if it is.
func (i *Instance) Metadata() (*Metadata, bool) {
	m, ok := i.view.(*Metadata)
	return m, ok
}

// Collection returns the instance as a collection, if it is.
func (i *Instance) Collection() (*Collection, bool) {
	c, ok := i.view.(*Collection)
	return c, ok
}

// Class classifies the instance. Metadata within one step of the root
// schema describes metadata and is meta-metadata.
func (i *Instance) Class() Class {
	m, ok := i.view.(*Metadata)
	switch {
	case !ok:
		return ClassData
	case m.depth <= 1:
		return ClassMetaMeta
	default:
		return ClassMeta
	}
}

// IsData reports whether the instance is a plain data instance.
func (i *Instance) IsData() bool { return i.Class() == ClassData }

// IsMeta reports whether the instance is metadata for data instances.
func (i *Instance) IsMeta() bool { return i.Class() == ClassMeta }

// IsMetaMeta reports whether the instance is a schema for metadata.
func (i *Instance) IsMetaMeta() bool { return i.Class() == ClassMetaMeta }

func (i *Instance) dimValues() []int {
	if i.view != nil {
		return i.view.viewDims()
	}
	return i.dims
}

// Dimensions returns dimension values keyed by name.
func (i *Instance) Dimensions() map[string]int {
	values := i.dimValues()
	out := make(map[string]int, len(values))
	for k, d := range i.meta.dims {
		out[d.Name] = values[k]
	}
	return out
}

// DimensionValues returns the dimension values in declaration order.
func (i *Instance) DimensionValues() []int {
	return slices.Clone(i.dimValues())
}

// Dimension returns the value of the named dimension.
func (i *Instance) Dimension(name string) (int, error) {
	k, ok := i.meta.dimIndex[name]
	if !ok {
		return 0, fault.New(fault.NotFound, "no such dimension in "+i.meta.uri, name)
	}
	return i.dimValues()[k], nil
}

// Get returns the value of the named property. Numeric values are a view
// over the instance buffer; use the typed accessors of Array to read.
func (i *Instance) Get(name string) (Array, error) {
	if i.freed {
		return Array{}, fault.New(fault.NotFound, "instance has been released", i.uuid)
	}
	if i.view != nil {
		return i.view.viewGet(name)
	}
	k, ok := i.meta.propIndex[name]
	if !ok {
		return Array{}, fault.New(fault.NotFound, "no such property in "+i.meta.uri, name)
	}
	return i.array(k), nil
}

func (i *Instance) array(k int) Array {
	p := i.meta.props[k]
	s := i.layout.slots[k]
	a := Array{typ: p.Type, shape: s.shape}
	switch p.Type.Kind {
	case types.KindString:
		a.strs = i.strs[s.offset : s.offset+s.count]
	case types.KindRelation:
		a.rels = i.rels[s.offset : s.offset+s.count]
	default:
		end := s.offset + s.count*p.Type.ElemSize()
		if s.offset < 0 || end > len(i.raw) {
			fault.Invariant("property %q spans [%d:%d] outside buffer of %d bytes", p.Name, s.offset, end, len(i.raw))
		}
		a.raw = i.raw[s.offset:end:end]
	}
	return a
}

// Set assigns the named property.
//
// The value must have the resolved shape of the property: nested slices
// for arrays, a single value for scalars. Elements are converted to the
// property type; see the package documentation for accepted Go values.
// Nothing is written unless the whole value converts.
func (i *Instance) Set(name string, value any) error {
	if i.freed {
		return fault.New(fault.NotFound, "instance has been released", i.uuid)
	}
	if i.view != nil {
		return fault.New(fault.ImmutableTarget, "properties of this instance are read-only", name)
	}
	k, ok := i.meta.propIndex[name]
	if !ok {
		return fault.New(fault.NotFound, "no such property in "+i.meta.uri, name)
	}
	p := i.meta.props[k]
	dst := i.array(k)

	enc, err := encodeValue(p, dst.shape, value)
	if err != nil {
		return err
	}
	switch p.Type.Kind {
	case types.KindString:
		copy(dst.strs, enc.strs)
	case types.KindRelation:
		copy(dst.rels, enc.rels)
	default:
		copy(dst.raw, enc.raw)
	}
	return nil
}

// free drops the property storage of a released instance.
func (i *Instance) free() {
	i.raw, i.strs, i.rels = nil, nil, nil
	i.freed = true
}

func (i *Instance) String() string {
	if i.label != "" {
		return fmt.Sprintf("Instance(%s, %s)", i.label, i.uuid)
	}
	return fmt.Sprintf("Instance(%s)", i.uuid)
}

// Document encodes the instance as an entity document. arrays selects
// list-of-objects output for metadata dimensions and properties.
func (i *Instance) Document(arrays bool) (*ir.Object, error) {
	if m, ok := i.view.(*Metadata); ok {
		return m.document(arrays), nil
	}
	return i.dataDocument()
}
