package entity

import (
	"fmt"
	"slices"
	"sync/atomic"

	"github.com/roach88/istore/internal/fault"
	"github.com/roach88/istore/internal/ident"
	"github.com/roach88/istore/internal/types"
)

// Dimension names an integer size that parametrizes property shapes.
type Dimension struct {
	Name        string
	Description string
}

// Property describes a named, typed, optionally shaped field.
// Each Shape entry is a dimension name or an arithmetic expression over
// dimension names, such as "N+2".
type Property struct {
	Name        string
	Type        types.Type
	Shape       []string
	Unit        string
	Description string
}

// NDims returns the number of dimensions of the property.
func (p Property) NDims() int { return len(p.Shape) }

// Metadata is an entity schema. It is also an instance of its own meta
// (a root schema), reachable through the embedded Instance.
type Metadata struct {
	*Instance

	uri         string
	description string
	dims        []Dimension
	props       []Property
	rels        []types.Relation

	dimIndex  map[string]int
	propIndex map[string]int
	shapes    [][]shapeExpr

	// depth is the distance to the root schema along the meta chain.
	depth int

	// frozen is set by the first instantiation.
	frozen atomic.Bool
}

// NewMetadata creates an entity whose meta is the entity schema. The
// result is not registered; see Store.AddMetadata.
func NewMetadata(uri string, dims []Dimension, props []Property, description string) (*Metadata, error) {
	return newMetadata(uri, entitySchema, dims, props, nil, description)
}

// newMetadata builds metadata described by meta. A nil meta makes the
// metadata its own meta (the root schema).
func newMetadata(uri string, meta *Metadata, dims []Dimension, props []Property, rels []types.Relation, description string) (*Metadata, error) {
	if uri == "" {
		return nil, fault.New(fault.InvalidInput, "metadata uri is empty", "")
	}
	id, err := ident.Derive(uri)
	if err != nil {
		return nil, err
	}

	m := &Metadata{
		uri:         uri,
		description: description,
		dimIndex:    make(map[string]int),
		propIndex:   make(map[string]int),
	}
	for _, d := range dims {
		if err := m.addDimension(d); err != nil {
			return nil, err
		}
	}
	for _, p := range props {
		if err := m.addProperty(p); err != nil {
			return nil, err
		}
	}
	m.rels = slices.Clone(rels)

	m.Instance = &Instance{uuid: id, view: m}
	if meta == nil {
		m.Instance.meta = m
	} else {
		m.Instance.meta = meta
		m.depth = meta.depth + 1
	}
	return m, nil
}

func (m *Metadata) violation(format string, args ...any) error {
	return fault.New(fault.SchemaViolation, schemaReason, m.uri).WithDetail(format, args...)
}

func (m *Metadata) checkMutable() error {
	if m.frozen.Load() {
		return fault.New(fault.ImmutableTarget, "metadata is immutable once instantiated", m.uri)
	}
	return nil
}

// AddDimension appends a dimension.
func (m *Metadata) AddDimension(d Dimension) error {
	if err := m.checkMutable(); err != nil {
		return err
	}
	return m.addDimension(d)
}

func (m *Metadata) addDimension(d Dimension) error {
	if d.Name == "" {
		return m.violation("dimension without name")
	}
	if _, dup := m.dimIndex[d.Name]; dup {
		return m.violation("duplicate dimension %q", d.Name)
	}
	m.dimIndex[d.Name] = len(m.dims)
	m.dims = append(m.dims, d)
	return nil
}

// AddProperty appends a property. Every dimension its shape refers to
// must already be declared.
func (m *Metadata) AddProperty(p Property) error {
	if err := m.checkMutable(); err != nil {
		return err
	}
	return m.addProperty(p)
}

func (m *Metadata) addProperty(p Property) error {
	if p.Name == "" {
		return m.violation("property without name")
	}
	if _, dup := m.propIndex[p.Name]; dup {
		return m.violation("duplicate property %q", p.Name)
	}
	if !p.Type.Valid() {
		return m.violation("property %q has invalid type", p.Name)
	}

	exprs := make([]shapeExpr, len(p.Shape))
	for i, s := range p.Shape {
		e, err := parseShape(s)
		if err != nil {
			return m.violation("property %q: %v", p.Name, err)
		}
		for _, name := range e.idents(nil) {
			if _, ok := m.dimIndex[name]; !ok {
				return m.violation("property %q refers to undeclared dimension %q", p.Name, name)
			}
		}
		exprs[i] = e
	}

	p.Shape = slices.Clone(p.Shape)
	m.propIndex[p.Name] = len(m.props)
	m.props = append(m.props, p)
	m.shapes = append(m.shapes, exprs)
	return nil
}

// AddRelation appends a relation to the metadata.
func (m *Metadata) AddRelation(r types.Relation) error {
	if err := m.checkMutable(); err != nil {
		return err
	}
	m.rels = append(m.rels, r)
	return nil
}

// URI returns the metadata URI.
func (m *Metadata) URI() string { return m.uri }

// Description returns the human-readable description.
func (m *Metadata) Description() string { return m.description }

// Frozen reports whether an instance has been created from m.
func (m *Metadata) Frozen() bool { return m.frozen.Load() }

// DimensionDefs returns the declared dimensions in order.
func (m *Metadata) DimensionDefs() []Dimension { return slices.Clone(m.dims) }

// PropertyDefs returns the declared properties in order.
func (m *Metadata) PropertyDefs() []Property {
	out := make([]Property, len(m.props))
	for i, p := range m.props {
		p.Shape = slices.Clone(p.Shape)
		out[i] = p
	}
	return out
}

// MetaRelations returns the relations declared by the metadata itself.
func (m *Metadata) MetaRelations() []types.Relation { return slices.Clone(m.rels) }

// DimensionNames returns the dimension names in order.
func (m *Metadata) DimensionNames() []string {
	names := make([]string, len(m.dims))
	for i, d := range m.dims {
		names[i] = d.Name
	}
	return names
}

// PropertyNames returns the property names in order.
func (m *Metadata) PropertyNames() []string {
	names := make([]string, len(m.props))
	for i, p := range m.props {
		names[i] = p.Name
	}
	return names
}

// Dimension looks up a dimension by name.
func (m *Metadata) Dimension(name string) (Dimension, error) {
	i, ok := m.dimIndex[name]
	if !ok {
		return Dimension{}, fault.New(fault.NotFound, "no such dimension in "+m.uri, name)
	}
	return m.dims[i], nil
}

// Property looks up a property by name.
func (m *Metadata) Property(name string) (Property, error) {
	i, ok := m.propIndex[name]
	if !ok {
		return Property{}, fault.New(fault.NotFound, "no such property in "+m.uri, name)
	}
	p := m.props[i]
	p.Shape = slices.Clone(p.Shape)
	return p, nil
}

// ResolveShape evaluates the shape of the named property against
// dimension values.
func (m *Metadata) ResolveShape(property string, dims map[string]int) ([]int, error) {
	i, ok := m.propIndex[property]
	if !ok {
		return nil, fault.New(fault.NotFound, "no such property in "+m.uri, property)
	}
	return m.resolveShape(i, func(name string) (int, bool) {
		v, ok := dims[name]
		return v, ok
	})
}

func (m *Metadata) resolveShape(prop int, dims func(string) (int, bool)) ([]int, error) {
	exprs := m.shapes[prop]
	shape := make([]int, len(exprs))
	for i, e := range exprs {
		v, err := e.eval(dims)
		if err != nil {
			return nil, err
		}
		if v < 0 {
			return nil, fault.New(fault.InvalidInput, "shape evaluates to a negative size", m.props[prop].Name).
				WithDetail("%s = %d", m.props[prop].Shape[i], v)
		}
		shape[i] = v
	}
	return shape, nil
}

// dimValues orders a name-keyed dimension map per the declared
// dimensions. Every dimension must have a non-negative value.
func (m *Metadata) dimValues(dims map[string]int) ([]int, error) {
	for name := range dims {
		if _, ok := m.dimIndex[name]; !ok {
			return nil, fault.New(fault.NotFound, "no such dimension in "+m.uri, name)
		}
	}
	values := make([]int, len(m.dims))
	for i, d := range m.dims {
		v, ok := dims[d.Name]
		if !ok {
			return nil, fault.New(fault.UnresolvedDimension, "dimension has no value", d.Name)
		}
		if v < 0 {
			return nil, fault.New(fault.InvalidInput, "negative dimension value", d.Name).
				WithDetail("%s = %d", d.Name, v)
		}
		values[i] = v
	}
	return values, nil
}

// Instantiate creates an instance of m, assigns props and registers the
// instance in m's store. The caller owns the returned reference.
//
// Every declared dimension needs a value. Unset properties default to
// zero values. A label makes the uuid deterministic and can be used
// instead of the uuid for lookups.
func (m *Metadata) Instantiate(dims map[string]int, props map[string]any, label string) (*Instance, error) {
	if m.store == nil {
		return nil, fault.New(fault.InvalidInput, "metadata is not registered in a store", m.uri)
	}
	if m.IsMetaMeta() {
		return nil, fault.New(fault.InvalidInput, "cannot instantiate a metadata schema, use NewMetadata", m.uri)
	}
	values, err := m.dimValues(dims)
	if err != nil {
		return nil, err
	}
	inst, err := m.build(values, label)
	if err != nil {
		return nil, err
	}

	for name := range props {
		if _, ok := m.propIndex[name]; !ok {
			return nil, fault.New(fault.NotFound, "no such property in "+m.uri, name)
		}
	}
	for _, p := range m.props {
		v, ok := props[p.Name]
		if !ok {
			continue
		}
		if err := inst.Set(p.Name, v); err != nil {
			return nil, err
		}
	}

	if err := m.store.add(inst); err != nil {
		return nil, err
	}
	return inst, nil
}

// build derives the uuid and allocates an unregistered instance of m.
func (m *Metadata) build(dims []int, label string) (*Instance, error) {
	id, err := ident.DeriveInstance(m.uri, dims, label)
	if err != nil {
		return nil, err
	}
	if _, isUUID := ident.Parse(label); isUUID {
		label = ""
	}
	return newInstance(m, dims, id, label)
}

// viewDims implements view: the sizes of m seen as an instance of its meta.
func (m *Metadata) viewDims() []int {
	schema := m.Instance.meta
	values := make([]int, len(schema.dims))
	for i, d := range schema.dims {
		switch d.Name {
		case "ndimensions":
			values[i] = len(m.dims)
		case "nproperties":
			values[i] = len(m.props)
		case "nrelations":
			values[i] = len(m.rels)
		}
	}
	return values
}

// viewGet implements view: the properties of m seen as an instance.
// relations is served for every metadata although the schemas leave it
// undeclared.
func (m *Metadata) viewGet(name string) (Array, error) {
	switch name {
	case "uri":
		return stringArray(nil, m.uri), nil
	case "description":
		return stringArray(nil, m.description), nil
	case "dimensions":
		names := m.DimensionNames()
		return stringArray([]int{len(names)}, names...), nil
	case "properties":
		names := m.PropertyNames()
		return stringArray([]int{len(names)}, names...), nil
	case "relations":
		return relationArray(slices.Clone(m.rels)), nil
	}
	return Array{}, fault.New(fault.NotFound, "no such property in "+m.Instance.meta.uri, name)
}

func (m *Metadata) String() string {
	return fmt.Sprintf("Metadata(%s)", m.uri)
}
