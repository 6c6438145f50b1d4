package entity

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/roach88/istore/internal/fault"
	"github.com/roach88/istore/internal/storage"
)

// Storage is an open storage bound to a Store. Instances loaded through it
// are registered in the store; metadata they need is looked up in the
// same storage before the store's search paths.
//
// A Storage is not safe for concurrent use.
type Storage struct {
	store    *Store
	driver   string
	location string
	opts     storage.Options
	handle   storage.Handle
	closed   bool
}

// Driver returns the driver name the storage was opened with.
func (st *Storage) Driver() string { return st.driver }

// Location returns the storage location.
func (st *Storage) Location() string { return st.location }

// Options returns the parsed storage options.
func (st *Storage) Options() storage.Options { return st.opts }

// Load loads and registers the entity with the given uuid, uri or label.
// The caller owns a reference to the result.
func (st *Storage) Load(ctx context.Context, id string) (*Instance, error) {
	if st.closed {
		return nil, fault.New(fault.StorageIO, "storage is closed", st.location)
	}
	start := time.Now()
	doc, err := st.handle.Load(ctx, id)
	if err != nil {
		st.store.metrics.failed("load", err)
		return nil, err
	}
	inst, err := st.store.instantiateDocument(ctx, doc, st.handle, map[string]bool{})
	if err != nil {
		st.store.metrics.failed("load", err)
		return nil, err
	}
	st.store.metrics.loaded(st.driver, start)
	st.store.logger.Info("instance loaded",
		zap.String("driver", st.driver),
		zap.String("location", st.location),
		zap.String("uuid", inst.uuid))
	return inst, nil
}

// Save writes inst. Metadata and collection members are not saved with
// it; see Collection.SaveTo.
func (st *Storage) Save(ctx context.Context, inst *Instance) error {
	if st.closed {
		return fault.New(fault.StorageIO, "storage is closed", st.location)
	}
	start := time.Now()
	doc, err := inst.Document(st.opts.Arrays)
	if err != nil {
		st.store.metrics.failed("save", err)
		return err
	}
	if err := st.handle.Save(ctx, doc, inst.uuid); err != nil {
		st.store.metrics.failed("save", err)
		return err
	}
	st.store.metrics.saved(st.driver, start)
	st.store.logger.Info("instance saved",
		zap.String("driver", st.driver),
		zap.String("location", st.location),
		zap.String("uuid", inst.uuid))
	return nil
}

// IDs returns the uuids of the entities in the storage.
func (st *Storage) IDs(ctx context.Context) ([]string, error) {
	if st.closed {
		return nil, fault.New(fault.StorageIO, "storage is closed", st.location)
	}
	return st.handle.IDs(ctx)
}

// Close releases the storage. Closing twice is a no-op.
func (st *Storage) Close() error {
	if st.closed {
		return nil
	}
	st.closed = true
	return st.handle.Close()
}
