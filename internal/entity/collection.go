package entity

import (
	"context"
	"slices"

	"github.com/roach88/istore/internal/fault"
	"github.com/roach88/istore/internal/ident"
	"github.com/roach88/istore/internal/ir"
	"github.com/roach88/istore/internal/storage"
	"github.com/roach88/istore/internal/types"
)

// Predicates recording collection membership.
const (
	PredicateIsA     = "_is-a"
	PredicateHasUUID = "_has-uuid"
	PredicateHasMeta = "_has-meta"
)

// Collection is an instance of the collection entity holding labeled
// references to other instances and relations between them.
//
// Each member is held with a reference that is released when the member
// is removed or the collection is freed. Its relations property lists,
// per member, (label, _is-a, Instance), (label, _has-uuid, uuid) and
// (label, _has-meta, meta uri), followed by the user relations.
type Collection struct {
	*Instance

	members map[string]*Instance
	order   []string
	rels    []types.Relation
}

func attachCollection(inst *Instance) *Collection {
	c := &Collection{Instance: inst, members: make(map[string]*Instance)}
	inst.view = c
	return c
}

// NewCollection creates and registers an empty collection. The caller
// owns the returned reference.
func (s *Store) NewCollection(label string) (*Collection, error) {
	inst, err := collectionEntity.build([]int{0}, label)
	if err != nil {
		return nil, err
	}
	c := attachCollection(inst)
	if err := s.add(inst); err != nil {
		return nil, err
	}
	return c, nil
}

// Add stores a reference to inst under label. A member already stored
// under label is replaced and its reference released.
func (c *Collection) Add(label string, inst *Instance) error {
	if label == "" {
		return fault.New(fault.InvalidInput, "empty collection label", c.uuid)
	}
	if inst.store == nil || inst.store != c.store {
		return fault.New(fault.InvalidInput, "instance is not registered in the collection's store", inst.uuid)
	}
	if inst.freed {
		return fault.New(fault.NotFound, "instance has been released", inst.uuid)
	}
	c.store.retain(inst)
	old, replaced := c.members[label]
	c.members[label] = inst
	if !replaced {
		c.order = append(c.order, label)
		return nil
	}
	c.store.Release(old)
	return nil
}

// Remove drops the member stored under label and releases it.
func (c *Collection) Remove(label string) error {
	inst, ok := c.members[label]
	if !ok {
		return fault.New(fault.NotFound, "no such label in collection", label)
	}
	delete(c.members, label)
	c.order = slices.DeleteFunc(c.order, func(l string) bool { return l == label })
	c.store.Release(inst)
	return nil
}

// Member returns the instance stored under label. The reference is
// borrowed from the collection; use Store.Get to keep it longer.
func (c *Collection) Member(label string) (*Instance, error) {
	inst, ok := c.members[label]
	if !ok {
		return nil, fault.New(fault.NotFound, "no such label in collection", label)
	}
	return inst, nil
}

// Labels returns the member labels in insertion order.
func (c *Collection) Labels() []string { return slices.Clone(c.order) }

// Size returns the number of members.
func (c *Collection) Size() int { return len(c.order) }

// AddRelation adds a user relation.
func (c *Collection) AddRelation(r types.Relation) {
	c.rels = append(c.rels, r)
}

// RemoveRelations removes the user relations matching the pattern and
// returns how many were removed. Empty fields match anything.
func (c *Collection) RemoveRelations(s, p, o string) int {
	n := len(c.rels)
	c.rels = slices.DeleteFunc(c.rels, func(r types.Relation) bool { return r.Matches(s, p, o) })
	return n - len(c.rels)
}

// FindRelations returns every relation, membership relations included,
// matching the pattern. Empty fields match anything.
func (c *Collection) FindRelations(s, p, o string) []types.Relation {
	var out []types.Relation
	for _, r := range c.relations() {
		if r.Matches(s, p, o) {
			out = append(out, r)
		}
	}
	return out
}

func (c *Collection) relations() []types.Relation {
	out := make([]types.Relation, 0, 3*len(c.order)+len(c.rels))
	for _, label := range c.order {
		inst := c.members[label]
		out = append(out,
			types.Rel(label, PredicateIsA, "Instance"),
			types.Rel(label, PredicateHasUUID, inst.uuid),
			types.Rel(label, PredicateHasMeta, inst.meta.uri),
		)
	}
	return append(out, c.rels...)
}

// detach empties the collection and returns the members whose references
// it held.
func (c *Collection) detach() []*Instance {
	out := make([]*Instance, 0, len(c.order))
	for _, label := range c.order {
		out = append(out, c.members[label])
	}
	c.members = make(map[string]*Instance)
	c.order = nil
	return out
}

// SaveTo writes every member and then the collection itself to st.
func (c *Collection) SaveTo(ctx context.Context, st *Storage) error {
	for _, label := range c.order {
		if err := st.Save(ctx, c.members[label]); err != nil {
			return err
		}
	}
	return st.Save(ctx, c.Instance)
}

// viewDims implements view.
func (c *Collection) viewDims() []int {
	return []int{3*len(c.order) + len(c.rels)}
}

// viewGet implements view.
func (c *Collection) viewGet(name string) (Array, error) {
	if name != "relations" {
		return Array{}, fault.New(fault.NotFound, "no such property in "+collectionEntity.uri, name)
	}
	return relationArray(c.relations()), nil
}

// decodeCollection restores a collection document. Members are loaded
// from h, or taken from the store when h is nil.
func (s *Store) decodeCollection(ctx context.Context, doc *ir.Object, h storage.Handle, seen map[string]bool) (*Collection, error) {
	label := optString(doc, "uri")
	if err := schemaValidator().validateInstance(doc); err != nil {
		return nil, fault.Wrap(fault.SchemaViolation, err, "instance does not conform to schema", label).
			WithDetail("%v", err)
	}

	var rels []types.Relation
	props, _ := doc.GetObject("properties")
	if v, ok := props.Get("relations"); ok {
		arr, ok := v.(ir.Array)
		if !ok {
			return nil, fault.New(fault.SchemaViolation, "collection relations must be a list", label)
		}
		for _, e := range arr {
			r, ok := relationValue(e)
			if !ok {
				return nil, fault.New(fault.SchemaViolation, "malformed collection relation", label)
			}
			rels = append(rels, r)
		}
	}

	var (
		inst *Instance
		err  error
	)
	if id, ok := doc.GetString("uuid"); ok {
		u, valid := ident.Parse(id)
		if !valid {
			return nil, fault.New(fault.SchemaViolation, "invalid collection uuid", id)
		}
		inst, err = newInstance(collectionEntity, []int{0}, u, label)
	} else {
		inst, err = collectionEntity.build([]int{0}, label)
	}
	if err != nil {
		return nil, err
	}
	c := attachCollection(inst)

	for _, r := range rels {
		switch r.Predicate {
		case PredicateIsA, PredicateHasMeta:
		case PredicateHasUUID:
			member, err := s.loadMember(ctx, h, r.Object, seen)
			if err == nil {
				err = c.attachMember(r.Subject, member)
			}
			if err != nil {
				for _, m := range c.detach() {
					s.Release(m)
				}
				return nil, err
			}
		default:
			c.rels = append(c.rels, r)
		}
	}

	if live := s.adopt(inst); live != inst {
		for _, m := range c.detach() {
			s.Release(m)
		}
		c, _ := live.Collection()
		return c, nil
	}
	return c, nil
}

// attachMember adds a member whose reference is already owned by c.
func (c *Collection) attachMember(label string, inst *Instance) error {
	if _, dup := c.members[label]; dup {
		inst.Release()
		return fault.New(fault.SchemaViolation, "label is used twice in collection", label)
	}
	c.members[label] = inst
	c.order = append(c.order, label)
	return nil
}

func (s *Store) loadMember(ctx context.Context, h storage.Handle, id string, seen map[string]bool) (*Instance, error) {
	if h == nil {
		return s.Get(id)
	}
	doc, err := h.Load(ctx, id)
	if err != nil {
		if live, gerr := s.Get(id); gerr == nil {
			return live, nil
		}
		return nil, err
	}
	return s.instantiateDocument(ctx, doc, h, seen)
}
