package entity

import (
	"github.com/roach88/istore/internal/fault"
	"github.com/roach88/istore/internal/ident"
	"github.com/roach88/istore/internal/ir"
	"github.com/roach88/istore/internal/types"
)

// dataDocument encodes a data instance:
//
//	{"uuid": ..., "uri": label, "meta": ..., "dimensions": {...}, "properties": {...}}
func (i *Instance) dataDocument() (*ir.Object, error) {
	if i.freed {
		return nil, fault.New(fault.NotFound, "instance has been released", i.uuid)
	}
	doc := ir.NewObject(ir.M("uuid", ir.String(i.uuid)))
	if i.label != "" {
		doc.Set("uri", ir.String(i.label))
	}
	doc.Set("meta", ir.String(i.meta.uri))

	dims := ir.NewObject()
	values := i.dimValues()
	for k, d := range i.meta.dims {
		dims.Set(d.Name, ir.Int(values[k]))
	}
	doc.Set("dimensions", dims)

	props := ir.NewObject()
	for _, p := range i.meta.props {
		a, err := i.Get(p.Name)
		if err != nil {
			return nil, err
		}
		props.Set(p.Name, a.Value())
	}
	doc.Set("properties", props)
	return doc, nil
}

// document encodes metadata. With arrays, dimensions and properties are
// lists of objects carrying a "name"; otherwise they are name-keyed.
func (m *Metadata) document(arrays bool) *ir.Object {
	doc := ir.NewObject(
		ir.M("uri", ir.String(m.uri)),
		ir.M("meta", ir.String(m.Instance.meta.uri)),
	)
	if m.description != "" {
		doc.Set("description", ir.String(m.description))
	}

	if arrays {
		dims := make(ir.Array, len(m.dims))
		for k, d := range m.dims {
			obj := ir.NewObject(ir.M("name", ir.String(d.Name)))
			if d.Description != "" {
				obj.Set("description", ir.String(d.Description))
			}
			dims[k] = obj
		}
		doc.Set("dimensions", dims)

		props := make(ir.Array, len(m.props))
		for k, p := range m.props {
			obj := propertyDocument(p)
			props[k] = ir.NewObject(append([]ir.Member{ir.M("name", ir.String(p.Name))}, obj.Members()...)...)
		}
		doc.Set("properties", props)
	} else {
		dims := ir.NewObject()
		for _, d := range m.dims {
			dims.Set(d.Name, ir.String(d.Description))
		}
		doc.Set("dimensions", dims)

		props := ir.NewObject()
		for _, p := range m.props {
			props.Set(p.Name, propertyDocument(p))
		}
		doc.Set("properties", props)
	}

	if len(m.rels) > 0 {
		rels := make(ir.Array, len(m.rels))
		for k, r := range m.rels {
			rels[k] = ir.Array{ir.String(r.Subject), ir.String(r.Predicate), ir.String(r.Object)}
		}
		doc.Set("relations", rels)
	}
	return doc
}

func propertyDocument(p Property) *ir.Object {
	obj := ir.NewObject(ir.M("type", ir.String(p.Type.String())))
	if len(p.Shape) > 0 {
		shape := make(ir.Array, len(p.Shape))
		for k, s := range p.Shape {
			shape[k] = ir.String(s)
		}
		obj.Set("shape", shape)
	}
	if p.Unit != "" {
		obj.Set("unit", ir.String(p.Unit))
	}
	if p.Description != "" {
		obj.Set("description", ir.String(p.Description))
	}
	return obj
}

// documentURI returns the uri of a metadata document, built from name,
// version and namespace when "uri" is absent.
func documentURI(doc *ir.Object) string {
	if uri, ok := doc.GetString("uri"); ok && uri != "" {
		return uri
	}
	name, _ := doc.GetString("name")
	version, _ := doc.GetString("version")
	namespace, _ := doc.GetString("namespace")
	if name == "" || version == "" || namespace == "" {
		return ""
	}
	return JoinMetaURI(name, version, namespace)
}

// parseMetadata decodes a metadata document described by meta.
// Any structural problem is a SchemaViolationError naming the uri.
func parseMetadata(doc *ir.Object, meta *Metadata) (*Metadata, error) {
	uri := documentURI(doc)
	if uri == "" {
		return nil, fault.New(fault.SchemaViolation, schemaReason, "").
			WithDetail("document has neither uri nor name, version and namespace")
	}
	violation := func(format string, args ...any) error {
		return fault.New(fault.SchemaViolation, schemaReason, uri).WithDetail(format, args...)
	}
	if err := schemaValidator().validateEntity(doc); err != nil {
		return nil, fault.Wrap(fault.SchemaViolation, err, schemaReason, uri).WithDetail("%v", err)
	}

	if s, ok := doc.GetString("uuid"); ok {
		derived, _ := ident.Derive(uri)
		if id, valid := ident.Parse(s); !valid || id != derived {
			return nil, violation("uuid %s does not match uri", s)
		}
	}
	description := optString(doc, "description")

	var dims []Dimension
	switch v, _ := doc.Get("dimensions"); d := v.(type) {
	case *ir.Object:
		for _, mem := range d.Members() {
			desc, _ := mem.Value.(ir.String)
			dims = append(dims, Dimension{Name: mem.Key, Description: string(desc)})
		}
	case ir.Array:
		for _, e := range d {
			obj := e.(*ir.Object)
			name, _ := obj.GetString("name")
			dims = append(dims, Dimension{Name: name, Description: optString(obj, "description")})
		}
	}

	var props []Property
	switch v, _ := doc.Get("properties"); p := v.(type) {
	case *ir.Object:
		for _, mem := range p.Members() {
			prop, err := parseProperty(mem.Key, mem.Value.(*ir.Object))
			if err != nil {
				return nil, violation("%v", err)
			}
			props = append(props, prop)
		}
	case ir.Array:
		for _, e := range p {
			obj := e.(*ir.Object)
			name, _ := obj.GetString("name")
			prop, err := parseProperty(name, obj)
			if err != nil {
				return nil, violation("%v", err)
			}
			props = append(props, prop)
		}
	}

	var rels []types.Relation
	if v, ok := doc.Get("relations"); ok {
		for _, e := range v.(ir.Array) {
			r, ok := relationValue(e)
			if !ok {
				return nil, violation("malformed relation")
			}
			rels = append(rels, r)
		}
	}

	return newMetadata(uri, meta, dims, props, rels, description)
}

func parseProperty(name string, obj *ir.Object) (Property, error) {
	typeName, _ := obj.GetString("type")
	typ, err := types.Parse(typeName)
	if err != nil {
		return Property{}, err
	}
	p := Property{
		Name:        name,
		Type:        typ,
		Unit:        optString(obj, "unit"),
		Description: optString(obj, "description"),
	}
	shape, ok := obj.Get("shape")
	if !ok {
		shape, _ = obj.Get("dims")
	}
	if arr, ok := shape.(ir.Array); ok {
		for _, e := range arr {
			s, _ := e.(ir.String)
			p.Shape = append(p.Shape, string(s))
		}
	}
	return p, nil
}

// optString returns a string member, treating null and absence as "".
func optString(obj *ir.Object, key string) string {
	s, _ := obj.GetString(key)
	return s
}

// decodeInstance builds an unregistered data instance of meta from doc.
func decodeInstance(doc *ir.Object, meta *Metadata) (*Instance, error) {
	label := optString(doc, "uri")
	subject := label
	if s, ok := doc.GetString("uuid"); ok {
		subject = s
	}
	violation := func(format string, args ...any) error {
		return fault.New(fault.SchemaViolation, "instance does not conform to its metadata", subject).
			WithDetail(format, args...)
	}
	if err := schemaValidator().validateInstance(doc); err != nil {
		return nil, fault.Wrap(fault.SchemaViolation, err, "instance does not conform to schema", subject).
			WithDetail("%v", err)
	}

	dims := make([]int, len(meta.dims))
	switch v, _ := doc.Get("dimensions"); d := v.(type) {
	case *ir.Object:
		for k, dim := range meta.dims {
			n, ok := d.Get(dim.Name)
			if !ok {
				return nil, violation("missing value for dimension %q", dim.Name)
			}
			if dims[k], ok = dimValue(n); !ok {
				return nil, violation("dimension %q value %v out of range", dim.Name, n)
			}
		}
	case ir.Array:
		if len(d) != len(dims) {
			return nil, violation("want %d dimension values, got %d", len(dims), len(d))
		}
		for k, n := range d {
			var ok bool
			if dims[k], ok = dimValue(n); !ok {
				return nil, violation("dimension %q value %v out of range", meta.dims[k].Name, n)
			}
		}
	}

	var (
		inst *Instance
		err  error
	)
	if s, ok := doc.GetString("uuid"); ok {
		id, valid := ident.Parse(s)
		if !valid {
			return nil, violation("invalid uuid %q", s)
		}
		inst, err = newInstance(meta, dims, id, label)
	} else {
		inst, err = meta.build(dims, label)
	}
	if err != nil {
		return nil, err
	}

	props, _ := doc.GetObject("properties")
	for _, mem := range props.Members() {
		if _, ok := meta.propIndex[mem.Key]; !ok {
			return nil, violation("unknown property %q", mem.Key)
		}
		if err := inst.Set(mem.Key, mem.Value); err != nil {
			return nil, err
		}
	}
	return inst, nil
}

// dimValue converts a schema-checked dimension value. Integers above
// MaxInt64 decode to ir.Uint and are rejected here; large values that
// fit are bounded later by the layout.
func dimValue(v any) (int, bool) {
	n, ok := v.(ir.Int)
	if !ok || n < 0 {
		return 0, false
	}
	return int(n), true
}
