package storage

import (
	"fmt"
	"slices"

	"github.com/roach88/istore/internal/fault"
	"github.com/roach88/istore/internal/ident"
	"github.com/roach88/istore/internal/ir"
)

// DocSet is an ordered set of entity documents keyed by uuid. It backs the
// file-based drivers, which read and write the whole set at once.
//
// On disk a set has one of two layouts. A single-entity document is the
// entity itself, recognised by its "properties" member. A multi-entity
// document maps uuid to entity.
type DocSet struct {
	keys   []string
	docs   map[string]*ir.Object
	single bool
}

// NewDocSet creates an empty set.
func NewDocSet() *DocSet {
	return &DocSet{docs: make(map[string]*ir.Object)}
}

// ParseDocSet reads a set from a decoded root document.
func ParseDocSet(root *ir.Object) (*DocSet, error) {
	set := NewDocSet()
	if root == nil || root.Len() == 0 {
		return set, nil
	}
	if IsEntityDocument(root) {
		key, err := EntityKey(root)
		if err != nil {
			return nil, err
		}
		set.Put(key, root)
		set.single = true
		return set, nil
	}
	for _, m := range root.Members() {
		doc, ok := m.Value.(*ir.Object)
		if !ok {
			return nil, fault.New(fault.StorageIO, "malformed multi-entity document", m.Key).
				WithDetail("member is %s, want object", ir.TypeName(m.Value))
		}
		set.Put(m.Key, doc)
	}
	return set, nil
}

// IsEntityDocument reports whether doc is a single entity rather than a
// uuid-keyed mapping of entities.
func IsEntityDocument(doc *ir.Object) bool {
	return doc.Has("properties")
}

// EntityKey returns the uuid under which doc is stored: its "uuid" member
// if present, otherwise the uuid derived from its uri.
func EntityKey(doc *ir.Object) (string, error) {
	if s, ok := doc.GetString("uuid"); ok {
		if id, ok := ident.Parse(s); ok {
			return id, nil
		}
		return "", fault.New(fault.InvalidInput, "document uuid is not a valid uuid", s)
	}
	if uri, ok := doc.GetString("uri"); ok && uri != "" {
		return ident.Derive(uri)
	}
	return "", fault.New(fault.InvalidInput, "document has neither uuid nor uri", "")
}

// Single reports whether the set was read from a single-entity document.
func (s *DocSet) Single() bool { return s.single }

// Len returns the number of documents.
func (s *DocSet) Len() int { return len(s.keys) }

// Keys returns the uuids in insertion order.
func (s *DocSet) Keys() []string { return slices.Clone(s.keys) }

// Has reports whether key is present.
func (s *DocSet) Has(key string) bool {
	_, ok := s.docs[key]
	return ok
}

// Put stores doc under key, replacing any existing document.
func (s *DocSet) Put(key string, doc *ir.Object) {
	if _, ok := s.docs[key]; !ok {
		s.keys = append(s.keys, key)
	}
	s.docs[key] = doc
}

// Find returns a copy of the document selected by id.
//
// An empty id selects the only document. Otherwise id is matched against
// the keys, then as a uuid or a uri-derived uuid, then against the "uri"
// member of each document (metadata uri or instance label). A returned
// document lacking a "uuid" member that its uri does not imply gets one.
func (s *DocSet) Find(id string) (*ir.Object, error) {
	key, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	doc := s.docs[key].Clone()
	if !doc.Has("uuid") {
		uri, _ := doc.GetString("uri")
		if derived, err := ident.Derive(uri); err != nil || derived != key {
			doc.Set("uuid", ir.String(key))
		}
	}
	return doc, nil
}

func (s *DocSet) lookup(id string) (string, error) {
	if id == "" {
		switch len(s.keys) {
		case 1:
			return s.keys[0], nil
		case 0:
			return "", fault.New(fault.NotFound, "storage holds no entities", "")
		default:
			return "", fault.New(fault.NotFound,
				fmt.Sprintf("storage holds %d entities, an id is required", len(s.keys)), "")
		}
	}
	if s.Has(id) {
		return id, nil
	}
	if uid, err := ident.Resolve(id); err == nil && s.Has(uid) {
		return uid, nil
	}
	for _, k := range s.keys {
		if uri, ok := s.docs[k].GetString("uri"); ok && uri == id {
			return k, nil
		}
	}
	return "", fault.New(fault.NotFound, "no entity with this id in storage", id)
}

// Root builds the document to write. single forces the layout; when nil,
// the single-entity layout is used for exactly one document without a
// "uuid" member (a metadata document).
func (s *DocSet) Root(single *bool) (*ir.Object, error) {
	useSingle := len(s.keys) == 1 && !s.docs[s.keys[0]].Has("uuid")
	if single != nil {
		useSingle = *single
		if useSingle && len(s.keys) != 1 {
			return nil, fault.New(fault.StorageIO,
				fmt.Sprintf("single-entity layout needs exactly one entity, have %d", len(s.keys)), "")
		}
	}
	if useSingle {
		return s.docs[s.keys[0]], nil
	}
	root := ir.NewObject()
	for _, k := range s.keys {
		root.Set(k, s.docs[k])
	}
	return root, nil
}
