package entity

import (
	"context"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/roach88/istore/internal/fault"
	"github.com/roach88/istore/internal/ident"
	"github.com/roach88/istore/internal/ir"
	"github.com/roach88/istore/internal/storage"
)

// Store owns instances and their reference counts. Every registration,
// lookup and release goes through one mutex.
//
// The root schemas are registered in every store. They are pinned: Get
// and Release do not change their reference count.
type Store struct {
	mu        sync.Mutex
	instances map[string]*Instance
	labels    map[string]string

	registry    *storage.Registry
	searchPaths []string
	logger      *zap.Logger
	metrics     *Metrics
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) StoreOption {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRegistry sets the storage drivers used by Load and Save.
func WithRegistry(r *storage.Registry) StoreOption {
	return func(s *Store) {
		if r != nil {
			s.registry = r
		}
	}
}

// WithSearchPaths sets storage URLs searched, in order, for metadata that
// is neither registered nor present in the storage being loaded from.
func WithSearchPaths(urls ...string) StoreOption {
	return func(s *Store) {
		s.searchPaths = append(s.searchPaths, urls...)
	}
}

// WithMetrics records store activity in m.
func WithMetrics(m *Metrics) StoreOption {
	return func(s *Store) {
		s.metrics = m
	}
}

// NewStore creates a store holding only the root schemas.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		instances: make(map[string]*Instance),
		labels:    make(map[string]string),
		registry:  storage.NewRegistry(),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	for _, r := range roots() {
		s.instances[r.uuid] = r.Instance
		s.metrics.registered()
	}
	return s
}

// Registry returns the storage driver registry.
func (s *Store) Registry() *storage.Registry { return s.registry }

// add registers a new instance with a reference count of one, owned by
// the caller. The instance holds a reference to its metadata.
func (s *Store) add(inst *Instance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.instances[inst.uuid]; dup {
		return fault.New(fault.InvalidInput, "uuid is already registered", inst.uuid)
	}
	s.addLocked(inst)
	return nil
}

// adopt registers inst, or returns the instance already registered under
// its uuid with an extra reference.
func (s *Store) adopt(inst *Instance) *Instance {
	s.mu.Lock()
	defer s.mu.Unlock()
	if live, ok := s.instances[inst.uuid]; ok {
		s.retainLocked(live)
		return live
	}
	s.addLocked(inst)
	return inst
}

func (s *Store) addLocked(inst *Instance) {
	meta := inst.meta
	if meta.Instance.store != s && !meta.pinned {
		fault.Invariant("instance %s refers to metadata %s outside its store", inst.uuid, meta.uri)
	}
	meta.frozen.Store(true)
	s.retainLocked(meta.Instance)

	inst.store = s
	inst.refcount = 1
	s.instances[inst.uuid] = inst
	if inst.label != "" {
		s.labels[inst.label] = inst.uuid
	}
	s.metrics.registered()
	s.logger.Debug("instance registered",
		zap.String("uuid", inst.uuid),
		zap.String("label", inst.label),
		zap.String("meta", meta.uri))
}

func (s *Store) retainLocked(inst *Instance) {
	if !inst.pinned {
		inst.refcount++
	}
}

// retain adds a reference to a registered instance.
func (s *Store) retain(inst *Instance) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retainLocked(inst)
}

func (s *Store) lookupLocked(id string) (*Instance, bool) {
	if inst, ok := s.instances[id]; ok {
		return inst, true
	}
	if u, ok := ident.Parse(id); ok {
		inst, ok := s.instances[u]
		return inst, ok
	}
	if u, ok := s.labels[id]; ok {
		if inst, ok := s.instances[u]; ok {
			return inst, true
		}
	}
	if u, err := ident.Derive(id); err == nil {
		inst, ok := s.instances[u]
		return inst, ok
	}
	return nil, false
}

// Get returns the instance with the given uuid, label or metadata uri and
// adds a reference that the caller must release.
func (s *Store) Get(id string) (*Instance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.lookupLocked(id)
	if !ok {
		return nil, fault.New(fault.NotFound, "no instance with this uuid or label", id)
	}
	s.retainLocked(inst)
	return inst, nil
}

// Lookup is Get without adding a reference. The result is only valid
// while the caller otherwise holds a reference.
func (s *Store) Lookup(id string) (*Instance, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookupLocked(id)
}

// Has reports whether id resolves to a registered instance.
func (s *Store) Has(id string) bool {
	_, ok := s.Lookup(id)
	return ok
}

// GetMetadata returns registered metadata by uri or uuid with a new
// reference.
func (s *Store) GetMetadata(id string) (*Metadata, error) {
	inst, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	m, ok := inst.Metadata()
	if !ok {
		s.Release(inst)
		return nil, fault.New(fault.InvalidInput, "instance is not metadata", id)
	}
	return m, nil
}

// AddMetadata registers m. The caller owns the initial reference.
func (s *Store) AddMetadata(m *Metadata) error {
	if m.Instance.store != nil {
		return fault.New(fault.InvalidInput, "metadata is already registered", m.uri)
	}
	meta := m.Instance.meta
	if !meta.pinned && meta.Instance.store != s {
		return fault.New(fault.NotFound, "meta of metadata is not registered in this store", meta.uri)
	}
	return s.add(m.Instance)
}

// Release drops one reference to inst. At zero the instance is removed
// from the store, its storage is freed and the references it held (its
// metadata, collection members) are released in turn.
func (s *Store) Release(inst *Instance) {
	if inst == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releaseLocked(inst)
}

func (s *Store) releaseLocked(inst *Instance) {
	work := []*Instance{inst}
	for len(work) > 0 {
		i := work[len(work)-1]
		work = work[:len(work)-1]
		if i.pinned || i.store == nil {
			continue
		}
		if i.store != s {
			fault.Invariant("release of instance %s through a foreign store", i.uuid)
		}
		if i.freed {
			fault.Invariant("release of freed instance %s", i.uuid)
		}
		i.refcount--
		if i.refcount < 0 {
			fault.Invariant("negative reference count %d for %s", i.refcount, i.uuid)
		}
		if i.refcount > 0 {
			continue
		}

		delete(s.instances, i.uuid)
		if i.label != "" && s.labels[i.label] == i.uuid {
			delete(s.labels, i.label)
		}
		if c, ok := i.view.(*Collection); ok {
			work = append(work, c.detach()...)
		}
		work = append(work, i.meta.Instance)
		i.free()
		s.metrics.released()
		s.logger.Debug("instance freed", zap.String("uuid", i.uuid))
	}
}

// RefCount returns the reference count of inst. Pinned instances always
// report one.
func (s *Store) RefCount(inst *Instance) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return inst.refcount
}

// UUIDs returns the uuids of all registered instances in sorted order.
func (s *Store) UUIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.instances))
	for id := range s.instances {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// Len returns the number of registered instances, root schemas included.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.instances)
}

// NewInstance creates an instance of the metadata identified by metaID
// with dimension values in declaration order. Properties start zeroed.
func (s *Store) NewInstance(metaID string, dims []int, label string) (*Instance, error) {
	m, err := s.GetMetadata(metaID)
	if err != nil {
		return nil, err
	}
	defer s.Release(m.Instance)

	if m.IsMetaMeta() {
		return nil, fault.New(fault.InvalidInput, "cannot instantiate a metadata schema, use NewMetadata", m.uri)
	}
	if m == collectionEntity {
		return nil, fault.New(fault.InvalidInput, "use NewCollection to create collections", m.uri)
	}
	if len(dims) != len(m.dims) {
		return nil, fault.New(fault.InvalidInput, "wrong number of dimension values", m.uri).
			WithDetail("want %d, got %d", len(m.dims), len(dims))
	}
	for k, d := range dims {
		if d < 0 {
			return nil, fault.New(fault.InvalidInput, "negative dimension value", m.dims[k].Name).
				WithDetail("%s = %d", m.dims[k].Name, d)
		}
	}
	inst, err := m.build(dims, label)
	if err != nil {
		return nil, err
	}
	if err := s.add(inst); err != nil {
		return nil, err
	}
	return inst, nil
}

// FromDocument registers the entity described by doc. Metadata it refers
// to must be registered or reachable through the search paths.
func (s *Store) FromDocument(ctx context.Context, doc *ir.Object) (*Instance, error) {
	inst, err := s.instantiateDocument(ctx, doc, nil, map[string]bool{})
	s.metrics.failed("decode", err)
	return inst, err
}

// FromJSON decodes a single entity document and registers it.
func (s *Store) FromJSON(ctx context.Context, data []byte) (*Instance, error) {
	v, err := ir.Unmarshal(data)
	if err != nil {
		return nil, fault.Wrap(fault.InvalidInput, err, "cannot parse entity document", "")
	}
	doc, ok := v.(*ir.Object)
	if !ok {
		return nil, fault.New(fault.InvalidInput, "entity document is not an object", "").
			WithDetail("got %s", ir.TypeName(v))
	}
	return s.FromDocument(ctx, doc)
}

// instantiateDocument decodes doc and registers the result, or returns
// the registered instance with the same uuid. h, when not nil, is the
// storage doc came from and is searched for missing metadata first.
func (s *Store) instantiateDocument(ctx context.Context, doc *ir.Object, h storage.Handle, seen map[string]bool) (*Instance, error) {
	if key, err := storage.EntityKey(doc); err == nil {
		if live, err := s.Get(key); err == nil {
			return live, nil
		}
	}

	metaURI, _ := doc.GetString("meta")
	if metaURI == "" {
		metaURI = EntitySchemaURI
	}
	meta, err := s.acquireMeta(ctx, metaURI, h, seen)
	if err != nil {
		return nil, err
	}
	defer s.Release(meta.Instance)

	switch {
	case meta.IsMetaMeta():
		m, err := parseMetadata(doc, meta)
		if err != nil {
			return nil, err
		}
		return s.adopt(m.Instance), nil
	case meta == collectionEntity:
		c, err := s.decodeCollection(ctx, doc, h, seen)
		if err != nil {
			return nil, err
		}
		return c.Instance, nil
	default:
		inst, err := decodeInstance(doc, meta)
		if err != nil {
			return nil, err
		}
		return s.adopt(inst), nil
	}
}

// acquireMeta returns the metadata named uri with a reference owned by
// the caller. It is looked up in the store, then in h, then in each
// search path. Metadata found in storage is registered.
func (s *Store) acquireMeta(ctx context.Context, uri string, h storage.Handle, seen map[string]bool) (*Metadata, error) {
	m, err := s.GetMetadata(uri)
	if err == nil || !fault.Is(err, fault.NotFound) {
		return m, err
	}
	if seen[uri] {
		return nil, fault.New(fault.NotFound, "metadata refers to itself", uri)
	}
	seen[uri] = true

	if h != nil {
		if doc, err := h.Load(ctx, uri); err == nil {
			return s.metadataFromDocument(ctx, doc, h, seen)
		}
	}
	for _, raw := range s.searchPaths {
		m, err := s.metadataFromSearchPath(ctx, raw, uri, seen)
		if err == nil {
			return m, nil
		}
		s.logger.Debug("metadata not in search path",
			zap.String("uri", uri),
			zap.String("path", raw),
			zap.Error(err))
	}
	return nil, fault.New(fault.NotFound, "cannot find metadata", uri)
}

func (s *Store) metadataFromSearchPath(ctx context.Context, raw, uri string, seen map[string]bool) (*Metadata, error) {
	u, err := storage.ParseURL(raw)
	if err != nil {
		return nil, err
	}
	opts, err := storage.ParseOptions(u.Options)
	if err != nil {
		return nil, err
	}
	h, err := s.registry.Open(ctx, u.Driver, u.Location, opts.WithDefaultMode(storage.ModeRead))
	if err != nil {
		return nil, err
	}
	defer h.Close()
	doc, err := h.Load(ctx, uri)
	if err != nil {
		return nil, err
	}
	return s.metadataFromDocument(ctx, doc, h, seen)
}

func (s *Store) metadataFromDocument(ctx context.Context, doc *ir.Object, h storage.Handle, seen map[string]bool) (*Metadata, error) {
	inst, err := s.instantiateDocument(ctx, doc, h, seen)
	if err != nil {
		return nil, err
	}
	m, ok := inst.Metadata()
	if !ok {
		uri := inst.URI()
		s.Release(inst)
		return nil, fault.New(fault.InvalidInput, "instance is not metadata", uri)
	}
	return m, nil
}

// OpenStorage opens a storage session. options is an option string such
// as "mode=r;arrays=true".
func (s *Store) OpenStorage(ctx context.Context, driver, location, options string) (*Storage, error) {
	opts, err := storage.ParseOptions(options)
	if err != nil {
		return nil, err
	}
	return s.openStorage(ctx, driver, location, opts)
}

func (s *Store) openStorage(ctx context.Context, driver, location string, opts storage.Options) (*Storage, error) {
	h, err := s.registry.Open(ctx, driver, location, opts)
	if err != nil {
		s.metrics.failed("open", err)
		return nil, err
	}
	return &Storage{store: s, driver: driver, location: location, opts: opts, handle: h}, nil
}

// Load loads the entity addressed by a storage URL such as
// "json://file.json#<uuid>". The fragment takes precedence over an "id"
// option. Without either the storage must hold exactly one entity.
func (s *Store) Load(ctx context.Context, rawURL string) (*Instance, error) {
	u, err := storage.ParseURL(rawURL)
	if err != nil {
		return nil, err
	}
	opts, err := storage.ParseOptions(u.Options)
	if err != nil {
		return nil, err
	}
	return s.loadLocation(ctx, u.Driver, u.Location, opts, opts.Selector(u.Fragment))
}

// LoadLocation loads entity id from the storage at location. An empty
// id selects the only entity of the storage.
func (s *Store) LoadLocation(ctx context.Context, driver, location, options, id string) (*Instance, error) {
	opts, err := storage.ParseOptions(options)
	if err != nil {
		return nil, err
	}
	return s.loadLocation(ctx, driver, location, opts, opts.Selector(id))
}

func (s *Store) loadLocation(ctx context.Context, driver, location string, opts storage.Options, id string) (*Instance, error) {
	st, err := s.openStorage(ctx, driver, location, opts.WithDefaultMode(storage.ModeRead))
	if err != nil {
		return nil, err
	}
	defer st.Close()
	return st.Load(ctx, id)
}

// Save writes inst to the storage addressed by a URL. Without a mode
// option an existing entity with the same uuid is not overwritten.
func (s *Store) Save(ctx context.Context, inst *Instance, rawURL string) error {
	u, err := storage.ParseURL(rawURL)
	if err != nil {
		return err
	}
	opts, err := storage.ParseOptions(u.Options)
	if err != nil {
		return err
	}
	return s.saveLocation(ctx, inst, u.Driver, u.Location, opts)
}

// SaveLocation writes inst to the storage at location.
func (s *Store) SaveLocation(ctx context.Context, inst *Instance, driver, location, options string) error {
	opts, err := storage.ParseOptions(options)
	if err != nil {
		return err
	}
	return s.saveLocation(ctx, inst, driver, location, opts)
}

func (s *Store) saveLocation(ctx context.Context, inst *Instance, driver, location string, opts storage.Options) error {
	st, err := s.openStorage(ctx, driver, location, opts.WithDefaultMode(storage.ModeAppend))
	if err != nil {
		return err
	}
	if c, ok := inst.Collection(); ok {
		err = c.SaveTo(ctx, st)
	} else {
		err = st.Save(ctx, inst)
	}
	if cerr := st.Close(); err == nil {
		err = cerr
	}
	return err
}

// Save writes the instance to the storage addressed by a URL; see
// Store.Save. Root schemas are shared by every store and have no store
// of their own, so they are saved with Store.Save instead.
func (i *Instance) Save(ctx context.Context, rawURL string) error {
	if err := i.checkBound(); err != nil {
		return err
	}
	return i.store.Save(ctx, i, rawURL)
}

// SaveLocation writes the instance to the storage at location.
func (i *Instance) SaveLocation(ctx context.Context, driver, location, options string) error {
	if err := i.checkBound(); err != nil {
		return err
	}
	return i.store.SaveLocation(ctx, i, driver, location, options)
}

func (i *Instance) checkBound() error {
	switch {
	case i.store != nil:
		return nil
	case i.pinned:
		return fault.New(fault.InvalidInput, "root schema is shared by every store, save it with Store.Save", i.uuid)
	default:
		return fault.New(fault.InvalidInput, "instance is not registered in a store", i.uuid)
	}
}

// Release drops the caller's reference; see Store.Release.
func (i *Instance) Release() {
	if i.store != nil {
		i.store.Release(i)
	}
}

// RefCount returns the current reference count.
func (i *Instance) RefCount() int {
	if i.store == nil {
		return i.refcount
	}
	return i.store.RefCount(i)
}
