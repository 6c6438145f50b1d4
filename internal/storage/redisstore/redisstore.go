// Package redisstore implements the redis:// storage driver.
//
// Entities are kept in one hash per storage, mapping uuid to the JSON
// document, next to a list recording insertion order:
//
//	<prefix>entities  hash  uuid -> document
//	<prefix>order     list  uuid, ...
package redisstore

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/roach88/istore/internal/fault"
	"github.com/roach88/istore/internal/ir"
	"github.com/roach88/istore/internal/storage"
	"github.com/roach88/istore/internal/storage/jsonstore"
)

const (
	// Name is the scheme served by the driver.
	Name = "redis"

	// DefaultPrefix namespaces keys when no prefix option is given.
	DefaultPrefix = "istore:"
)

// Driver connects to Redis servers.
type Driver struct{}

// New returns the Redis driver.
func New() Driver { return Driver{} }

// Name implements storage.Driver.
func (Driver) Name() string { return Name }

// Open implements storage.Driver. location is host:port[/db], optionally
// with user:password@ in front. The prefix option namespaces the keys.
func (Driver) Open(ctx context.Context, location string, opts storage.Options) (storage.Handle, error) {
	if err := opts.CheckExtra(Name, "prefix"); err != nil {
		return nil, err
	}
	if location == "" {
		return nil, fault.New(fault.StorageIO, "empty redis location", "")
	}
	ropts, err := redis.ParseURL("redis://" + location)
	if err != nil {
		return nil, fault.Wrap(fault.StorageIO, err, "invalid redis location", location)
	}
	client := redis.NewClient(ropts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fault.Wrap(fault.StorageIO, err, "cannot connect to redis", ropts.Addr)
	}

	prefix := DefaultPrefix
	if p, ok := opts.Extra["prefix"]; ok {
		prefix = p
	}
	h, err := NewHandle(ctx, client, prefix, opts)
	if err != nil {
		client.Close()
		return nil, err
	}
	h.owned = true
	return h, nil
}

// Handle is an open Redis storage.
type Handle struct {
	client *redis.Client
	prefix string
	opts   storage.Options
	owned  bool
}

// NewHandle wraps a connected client. In mode r the storage must exist;
// in mode w existing entities are deleted. Close does not close client.
func NewHandle(ctx context.Context, client *redis.Client, prefix string, opts storage.Options) (*Handle, error) {
	h := &Handle{client: client, prefix: prefix, opts: opts.WithDefaultMode(storage.ModeAppend)}
	switch h.opts.Mode {
	case storage.ModeRead:
		n, err := client.Exists(ctx, h.entitiesKey()).Result()
		if err != nil {
			return nil, fault.Wrap(fault.StorageIO, err, "cannot query redis", prefix)
		}
		if n == 0 {
			return nil, fault.New(fault.StorageIO, "no such redis storage", prefix)
		}
	case storage.ModeWrite:
		if err := client.Del(ctx, h.entitiesKey(), h.orderKey()).Err(); err != nil {
			return nil, fault.Wrap(fault.StorageIO, err, "cannot truncate redis storage", prefix)
		}
	}
	return h, nil
}

func (h *Handle) entitiesKey() string { return h.prefix + "entities" }
func (h *Handle) orderKey() string    { return h.prefix + "order" }

// set reads the whole storage into a DocSet.
func (h *Handle) set(ctx context.Context) (*storage.DocSet, error) {
	ids, err := h.client.LRange(ctx, h.orderKey(), 0, -1).Result()
	if err != nil {
		return nil, fault.Wrap(fault.StorageIO, err, "cannot query redis", h.prefix)
	}
	set := storage.NewDocSet()
	if len(ids) == 0 {
		return set, nil
	}
	texts, err := h.client.HMGet(ctx, h.entitiesKey(), ids...).Result()
	if err != nil {
		return nil, fault.Wrap(fault.StorageIO, err, "cannot query redis", h.prefix)
	}
	for i, t := range texts {
		text, ok := t.(string)
		if !ok {
			continue
		}
		doc, err := jsonstore.Codec{}.Decode([]byte(text))
		if err != nil {
			return nil, fault.Wrap(fault.StorageIO, err, "cannot parse stored document", ids[i])
		}
		set.Put(ids[i], doc)
	}
	return set, nil
}

// Load implements storage.Handle.
func (h *Handle) Load(ctx context.Context, id string) (*ir.Object, error) {
	set, err := h.set(ctx)
	if err != nil {
		return nil, err
	}
	return set.Find(id)
}

// Save implements storage.Handle.
func (h *Handle) Save(ctx context.Context, doc *ir.Object, id string) error {
	exists, err := h.client.HExists(ctx, h.entitiesKey(), id).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fault.Wrap(fault.StorageIO, err, "cannot query redis", h.prefix)
	}
	if err := storage.CheckWritable(h.opts.Mode, exists, id); err != nil {
		return err
	}
	data, err := ir.Marshal(doc)
	if err != nil {
		return fault.Wrap(fault.StorageIO, err, "cannot encode document", id)
	}
	_, err = h.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, h.entitiesKey(), id, string(data))
		if !exists {
			p.RPush(ctx, h.orderKey(), id)
		}
		return nil
	})
	if err != nil {
		return fault.Wrap(fault.StorageIO, err, "cannot save entity", id)
	}
	return nil
}

// IDs implements storage.Handle.
func (h *Handle) IDs(ctx context.Context) ([]string, error) {
	ids, err := h.client.LRange(ctx, h.orderKey(), 0, -1).Result()
	if err != nil {
		return nil, fault.Wrap(fault.StorageIO, err, "cannot query redis", h.prefix)
	}
	return ids, nil
}

// Close implements storage.Handle.
func (h *Handle) Close() error {
	if !h.owned || h.client == nil {
		return nil
	}
	err := h.client.Close()
	h.client = nil
	return err
}
