package storage

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/roach88/istore/internal/fault"
	"github.com/roach88/istore/internal/ir"
)

// Driver opens storages of one kind.
type Driver interface {
	// Name is the primary scheme of the driver.
	Name() string

	// Open connects to the storage at location.
	Open(ctx context.Context, location string, opts Options) (Handle, error)
}

// Handle is an open storage holding entity documents keyed by uuid.
//
// Load with an empty id returns the only entity when the storage holds
// exactly one. Otherwise id may be a uuid, a metadata uri or a label.
// Handles are not safe for concurrent use.
type Handle interface {
	Load(ctx context.Context, id string) (*ir.Object, error)
	Save(ctx context.Context, doc *ir.Object, id string) error
	IDs(ctx context.Context) ([]string, error)
	Close() error
}

// Registry maps URL schemes to drivers.
type Registry struct {
	mu      sync.RWMutex
	drivers map[string]Driver
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{drivers: make(map[string]Driver)}
}

// Register adds d under its name and any extra schemes.
// A later registration for the same scheme replaces the earlier one.
func (r *Registry) Register(d Driver, schemes ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drivers[strings.ToLower(d.Name())] = d
	for _, s := range schemes {
		r.drivers[strings.ToLower(s)] = d
	}
}

// Lookup returns the driver for scheme.
func (r *Registry) Lookup(scheme string) (Driver, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.drivers[strings.ToLower(scheme)]
	if !ok {
		return nil, fault.New(fault.UnsupportedScheme, "no storage driver registered for scheme", scheme)
	}
	return d, nil
}

// Open looks up the driver for scheme and opens location with it.
func (r *Registry) Open(ctx context.Context, scheme, location string, opts Options) (Handle, error) {
	d, err := r.Lookup(scheme)
	if err != nil {
		return nil, err
	}
	return d.Open(ctx, location, opts)
}

// Schemes returns the registered schemes in sorted order.
func (r *Registry) Schemes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.drivers))
	for s := range r.drivers {
		out = append(out, s)
	}
	slices.Sort(out)
	return out
}
