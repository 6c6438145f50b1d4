// Package sqlstore implements the sqlite:// and postgresql:// storage
// drivers over database/sql. Both keep one row per entity in the
// entities table, holding the JSON document.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/istore/internal/fault"
	"github.com/roach88/istore/internal/ident"
	"github.com/roach88/istore/internal/ir"
	"github.com/roach88/istore/internal/storage"
	"github.com/roach88/istore/internal/storage/jsonstore"
)

const (
	queryFirst    = `SELECT uuid, document FROM entities ORDER BY seq LIMIT 2`
	queryByUUID   = `SELECT document FROM entities WHERE uuid = ?`
	queryByURI    = `SELECT document FROM entities WHERE uri = ? ORDER BY seq LIMIT 1`
	queryIDs      = `SELECT uuid FROM entities ORDER BY seq`
	queryExists   = `SELECT COUNT(*) FROM entities WHERE uuid = ?`
	queryTruncate = `DELETE FROM entities`
	queryUpsert   = `INSERT INTO entities (uuid, uri, meta, document) VALUES (?, ?, ?, ?) ` +
		`ON CONFLICT (uuid) DO UPDATE SET uri = excluded.uri, meta = excluded.meta, document = excluded.document`
)

// Handle is an open SQL storage.
type Handle struct {
	db       *sql.DB
	dialect  Dialect
	location string
	opts     storage.Options
	owned    bool
}

// OpenDB wraps an open database. The schema is created if missing and,
// in mode w, existing entities are deleted. Close does not close db.
func OpenDB(ctx context.Context, db *sql.DB, dialect Dialect, location string, opts storage.Options) (*Handle, error) {
	h := &Handle{db: db, dialect: dialect, location: location, opts: opts.WithDefaultMode(storage.ModeAppend)}
	if _, err := db.ExecContext(ctx, dialect.Schema); err != nil {
		return nil, fault.Wrap(fault.StorageIO, err, "cannot apply schema", location)
	}
	if h.opts.Mode == storage.ModeWrite {
		if _, err := db.ExecContext(ctx, queryTruncate); err != nil {
			return nil, fault.Wrap(fault.StorageIO, err, "cannot truncate storage", location)
		}
	}
	return h, nil
}

func (h *Handle) queryDocument(ctx context.Context, query string, arg any) (*ir.Object, error) {
	var text string
	err := h.db.QueryRowContext(ctx, h.dialect.rebind(query), arg).Scan(&text)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fault.Wrap(fault.StorageIO, err, "cannot query storage", h.location)
	}
	return decode(text, h.location)
}

func decode(text, location string) (*ir.Object, error) {
	doc, err := jsonstore.Codec{}.Decode([]byte(text))
	if err != nil {
		return nil, fault.Wrap(fault.StorageIO, err, "cannot parse stored document", location)
	}
	return doc, nil
}

// Load implements storage.Handle. id is matched as a uuid, then as a
// uri-derived uuid, then against the uri column.
func (h *Handle) Load(ctx context.Context, id string) (*ir.Object, error) {
	if id == "" {
		return h.loadOnly(ctx)
	}
	if key, err := ident.Resolve(id); err == nil {
		doc, err := h.queryDocument(ctx, queryByUUID, key)
		if err != nil || doc != nil {
			return doc, err
		}
	}
	doc, err := h.queryDocument(ctx, queryByURI, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fault.New(fault.NotFound, "no entity with this id in storage", id)
	}
	return doc, nil
}

func (h *Handle) loadOnly(ctx context.Context) (*ir.Object, error) {
	rows, err := h.db.QueryContext(ctx, queryFirst)
	if err != nil {
		return nil, fault.Wrap(fault.StorageIO, err, "cannot query storage", h.location)
	}
	defer rows.Close()

	var texts []string
	for rows.Next() {
		var id, text string
		if err := rows.Scan(&id, &text); err != nil {
			return nil, fault.Wrap(fault.StorageIO, err, "cannot read row", h.location)
		}
		texts = append(texts, text)
	}
	if err := rows.Err(); err != nil {
		return nil, fault.Wrap(fault.StorageIO, err, "cannot read rows", h.location)
	}
	switch len(texts) {
	case 1:
		return decode(texts[0], h.location)
	case 0:
		return nil, fault.New(fault.NotFound, "storage holds no entities", h.location)
	default:
		return nil, fault.New(fault.NotFound, "storage holds several entities, an id is required", h.location)
	}
}

// Save implements storage.Handle.
func (h *Handle) Save(ctx context.Context, doc *ir.Object, id string) error {
	var n int
	if err := h.db.QueryRowContext(ctx, h.dialect.rebind(queryExists), id).Scan(&n); err != nil {
		return fault.Wrap(fault.StorageIO, err, "cannot query storage", h.location)
	}
	if err := storage.CheckWritable(h.opts.Mode, n > 0, id); err != nil {
		return err
	}

	data, err := jsonstore.Codec{}.Encode(doc, true)
	if err != nil {
		return fault.Wrap(fault.StorageIO, err, "cannot encode document", id)
	}
	uri, _ := doc.GetString("uri")
	meta, _ := doc.GetString("meta")
	_, err = h.db.ExecContext(ctx, h.dialect.rebind(queryUpsert),
		id, nullable(uri), nullable(meta), string(data[:len(data)-1]))
	if err != nil {
		return fault.Wrap(fault.StorageIO, err, "cannot save entity", id)
	}
	return nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// IDs implements storage.Handle.
func (h *Handle) IDs(ctx context.Context) ([]string, error) {
	rows, err := h.db.QueryContext(ctx, queryIDs)
	if err != nil {
		return nil, fault.Wrap(fault.StorageIO, err, "cannot query storage", h.location)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fault.Wrap(fault.StorageIO, err, "cannot read row", h.location)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fault.Wrap(fault.StorageIO, err, "cannot read rows", h.location)
	}
	return ids, nil
}

// Close implements storage.Handle.
func (h *Handle) Close() error {
	if !h.owned || h.db == nil {
		return nil
	}
	err := h.db.Close()
	h.db = nil
	if err != nil {
		return fmt.Errorf("close %s: %w", h.location, err)
	}
	return nil
}
